package client

import (
	"testing"

	"github.com/alxayo/mediabroker/internal/nfs4/xdr"
)

func TestEncodeDecodeStateIDRoundTrips(t *testing.T) {
	want := StateID{Seq: 7, Other: [12]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}}

	e := xdr.NewEncoder(16)
	encodeStateID(e, want)

	got, err := decodeStateID(xdr.NewDecoder(e.Bytes()))
	if err != nil {
		t.Fatalf("decodeStateID: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestOpEncodePutFHRejectsOversizeHandle(t *testing.T) {
	oversize := make([]byte, 129)
	if _, err := opEncodePutFH(oversize); err == nil {
		t.Fatalf("expected an error for a handle over NFS4_FHSIZE")
	}
}

func TestOpEncodePutFHAcceptsMaxSizeHandle(t *testing.T) {
	handle := make([]byte, 128)
	encoded, err := opEncodePutFH(handle)
	if err != nil {
		t.Fatalf("opEncodePutFH: %v", err)
	}
	if len(encoded) == 0 {
		t.Fatalf("expected non-empty encoded PUTFH op")
	}
}

func TestBuildCompoundEncodesOpCount(t *testing.T) {
	buf := buildCompound(opEncodeGetFH(), opEncodeGetFH())

	d := xdr.NewDecoder(buf)
	if _, err := d.GetString(); err != nil {
		t.Fatalf("tag: %v", err)
	}
	if _, err := d.GetUint32(); err != nil { // minorversion
		t.Fatalf("minorversion: %v", err)
	}
	n, err := d.GetUint32()
	if err != nil {
		t.Fatalf("numops: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 ops, got %d", n)
	}
}
