package port

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	mberrors "github.com/alxayo/mediabroker/internal/errors"
)

// Framed carries Envelopes over an io.ReadWriter (typically a net.Conn)
// between two processes. Wire format per envelope:
//
//	[opcode:4 big-endian][payload length:4 big-endian][payload bytes]
//
// A send mutex serializes concurrent writers — unlike a channel-backed
// Port, a stream has no atomic "one send" primitive of its own, so two
// concurrent Sends could otherwise interleave their bytes.
type Framed struct {
	rw      io.ReadWriter
	sendMu  sync.Mutex
	scratch []byte // reused read-side header buffer, single reader goroutine only
}

// NewFramed wraps rw (a net.Conn in the common case) as a Framed port.
func NewFramed(rw io.ReadWriter) *Framed {
	return &Framed{rw: rw, scratch: make([]byte, 8)}
}

// Send writes env to the stream, serialized against other concurrent
// Sends on this Framed.
func (f *Framed) Send(env Envelope) error {
	if len(env.Payload) > MaxPayload {
		return mberrors.NewArgument("framed.send", errTooLarge(len(env.Payload)))
	}
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], env.Opcode)
	binary.BigEndian.PutUint32(hdr[4:8], uint32(len(env.Payload)))

	f.sendMu.Lock()
	defer f.sendMu.Unlock()
	if _, err := f.rw.Write(hdr[:]); err != nil {
		return mberrors.NewTransport("framed.send", err)
	}
	if len(env.Payload) > 0 {
		if _, err := f.rw.Write(env.Payload); err != nil {
			return mberrors.NewTransport("framed.send", err)
		}
	}
	return nil
}

// Receive reads the next envelope. Only one goroutine may call Receive
// on a given Framed at a time (the connection's single reader).
func (f *Framed) Receive() (Envelope, error) {
	if _, err := io.ReadFull(f.rw, f.scratch[:8]); err != nil {
		return Envelope{}, mberrors.NewTransport("framed.receive", err)
	}
	opcode := binary.BigEndian.Uint32(f.scratch[0:4])
	length := binary.BigEndian.Uint32(f.scratch[4:8])
	if length > MaxPayload {
		return Envelope{}, mberrors.NewArgument("framed.receive", fmt.Errorf("payload length %d exceeds 16KiB", length))
	}
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(f.rw, payload); err != nil {
			return Envelope{}, mberrors.NewTransport("framed.receive", err)
		}
	}
	return Envelope{Opcode: opcode, Payload: payload}, nil
}
