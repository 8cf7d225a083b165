package xdr

import (
	"bytes"

	rxdr "github.com/rasky/go-xdr/xdr2"
)

// Verifier is the 8-byte opaque NFSv4 uses to detect client/server
// reboots (SETCLIENTID) and to disambiguate write replies (WRITE).
type Verifier [8]byte

// clientIDArgs is the reflectable shape of a SETCLIENTID call's
// argument, generic enough that a reflection-based encoder (rather
// than the hand-written hot-path codec in xdr.go) is the appropriate tool:
// it is sent once per reclaim, never in a hot loop.
type clientIDArgs struct {
	Verifier Verifier
	ID       []byte
}

// MarshalSetClientID encodes the client-identifying verifier/id pair
// for a SETCLIENTID call via reflection, mirroring the generic-struct
// path dittofs's own (declared but little-used) go-xdr dependency
// exists for.
func MarshalSetClientID(verifier Verifier, id []byte) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := rxdr.Marshal(&buf, clientIDArgs{Verifier: verifier, ID: id}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalSetClientID decodes the verifier/id pair that
// MarshalSetClientID encodes.
func UnmarshalSetClientID(data []byte) (Verifier, []byte, error) {
	var args clientIDArgs
	if _, err := rxdr.Unmarshal(bytes.NewReader(data), &args); err != nil {
		return Verifier{}, nil, err
	}
	return args.Verifier, args.ID, nil
}
