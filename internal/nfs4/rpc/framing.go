package rpc

import (
	"encoding/binary"
	"fmt"
	"io"
)

// lastFragment marks the top bit of a record-mark fragment header as
// per RFC 1831 §10: the 31 low bits are the fragment's byte count.
const lastFragment = 0x80000000

const maxFragment = 1 << 20

// writeRecord frames data as a single record-marked fragment. NFSv4
// messages from this client are always small enough to fit in one
// fragment; multi-fragment sends are not needed on the send side.
func writeRecord(w io.Writer, data []byte) error {
	if len(data) > maxFragment {
		return fmt.Errorf("rpc: record too large: %d bytes", len(data))
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(data))|lastFragment)
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	_, err := w.Write(data)
	return err
}

// readRecord reassembles one RPC record from one or more fragments.
func readRecord(r io.Reader) ([]byte, error) {
	var record []byte
	for {
		var hdr [4]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, err
		}
		mark := binary.BigEndian.Uint32(hdr[:])
		size := mark &^ lastFragment
		if size > maxFragment {
			return nil, fmt.Errorf("rpc: fragment too large: %d bytes", size)
		}
		frag := make([]byte, size)
		if size > 0 {
			if _, err := io.ReadFull(r, frag); err != nil {
				return nil, err
			}
		}
		record = append(record, frag...)
		if mark&lastFragment != 0 {
			return record, nil
		}
	}
}
