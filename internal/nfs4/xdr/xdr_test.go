package xdr

import "testing"

func TestEncodeDecodeOpaquePadding(t *testing.T) {
	e := NewEncoder(16)
	e.PutOpaque([]byte("abc"))
	e.PutUint32(0xdeadbeef)

	d := NewDecoder(e.Bytes())
	got, err := d.GetOpaque()
	if err != nil {
		t.Fatalf("GetOpaque: %v", err)
	}
	if string(got) != "abc" {
		t.Fatalf("got %q, want %q", got, "abc")
	}
	marker, err := d.GetUint32()
	if err != nil {
		t.Fatalf("GetUint32: %v", err)
	}
	if marker != 0xdeadbeef {
		t.Fatalf("padding misaligned the next field: got %#x", marker)
	}
}

func TestDecoderShortBufferErrors(t *testing.T) {
	d := NewDecoder([]byte{0, 0})
	if _, err := d.GetUint32(); err == nil {
		t.Fatalf("expected an error reading past a short buffer")
	}
}

func TestFixedOpaqueRoundTrip(t *testing.T) {
	e := NewEncoder(16)
	stateOther := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	e.PutFixedOpaque(stateOther)

	d := NewDecoder(e.Bytes())
	got, err := d.GetFixedOpaque(12)
	if err != nil {
		t.Fatalf("GetFixedOpaque: %v", err)
	}
	if string(got) != string(stateOther) {
		t.Fatalf("got %v, want %v", got, stateOther)
	}
}
