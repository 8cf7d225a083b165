// Package xdr implements the big-endian, 4-byte-aligned external data
// representation NFSv4 compounds are built from (RFC 4506), for the
// hot path (opaque/string/fixed-size fields in READ, WRITE, and
// file-handle payloads). It mirrors the encode/decode shape of
// dittofs's internal/protocol/xdr package.
package xdr

import (
	"encoding/binary"
	"fmt"
)

// Encoder appends XDR-encoded values to an in-memory buffer.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an Encoder with capacity hinted by size.
func NewEncoder(size int) *Encoder {
	return &Encoder{buf: make([]byte, 0, size)}
}

func (e *Encoder) Bytes() []byte { return e.buf }
func (e *Encoder) Len() int      { return len(e.buf) }

func (e *Encoder) PutUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) PutUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) PutBool(v bool) {
	if v {
		e.PutUint32(1)
	} else {
		e.PutUint32(0)
	}
}

// PutOpaque writes a length-prefixed byte string, padded to a 4-byte
// boundary.
func (e *Encoder) PutOpaque(data []byte) {
	e.PutUint32(uint32(len(data)))
	e.buf = append(e.buf, data...)
	e.pad(len(data))
}

// PutFixedOpaque writes exactly len(data) bytes with no length prefix,
// padded to a 4-byte boundary — used for stateids and verifiers whose
// size is fixed by the protocol.
func (e *Encoder) PutFixedOpaque(data []byte) {
	e.buf = append(e.buf, data...)
	e.pad(len(data))
}

func (e *Encoder) PutString(s string) {
	e.PutOpaque([]byte(s))
}

func (e *Encoder) pad(n int) {
	if r := n % 4; r != 0 {
		e.buf = append(e.buf, make([]byte, 4-r)...)
	}
}

// Decoder reads XDR-encoded values from an in-memory buffer in order.
type Decoder struct {
	buf []byte
	off int
}

func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

func (d *Decoder) Remaining() int { return len(d.buf) - d.off }

func (d *Decoder) need(n int) error {
	if d.Remaining() < n {
		return fmt.Errorf("xdr: short buffer: need %d, have %d", n, d.Remaining())
	}
	return nil
}

func (d *Decoder) GetUint32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(d.buf[d.off : d.off+4])
	d.off += 4
	return v, nil
}

func (d *Decoder) GetUint64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(d.buf[d.off : d.off+8])
	d.off += 8
	return v, nil
}

func (d *Decoder) GetBool() (bool, error) {
	v, err := d.GetUint32()
	return v != 0, err
}

func (d *Decoder) GetOpaque() ([]byte, error) {
	n, err := d.GetUint32()
	if err != nil {
		return nil, err
	}
	return d.GetFixedOpaque(int(n))
}

func (d *Decoder) GetFixedOpaque(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, d.buf[d.off:d.off+n])
	d.off += n
	if pad := (4 - n%4) % 4; pad != 0 {
		if err := d.need(pad); err != nil {
			return nil, err
		}
		d.off += pad
	}
	return out, nil
}

func (d *Decoder) GetString() (string, error) {
	b, err := d.GetOpaque()
	return string(b), err
}
