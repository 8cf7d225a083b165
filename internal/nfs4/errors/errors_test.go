package errors

import (
	"testing"

	mberrors "github.com/alxayo/mediabroker/internal/errors"
)

func TestClassifyRetryAndReclaim(t *testing.T) {
	cases := map[Status]Op{
		ERR_DELAY:          OpRetry,
		ERR_GRACE:          OpRetry,
		ERR_STALE_CLIENTID: OpReclaim,
		ERR_STALE_STATEID:  OpReclaim,
		ERR_EXPIRED:        OpReclaim,
		ERR_NOENT:          OpNone,
		OK:                 OpNone,
	}
	for status, want := range cases {
		if got := Classify(status); got != want {
			t.Errorf("Classify(%v) = %v, want %v", status, got, want)
		}
	}
}

func TestToPortableNilOnOK(t *testing.T) {
	if err := ToPortable("op", OK); err != nil {
		t.Fatalf("expected nil error for NFS4_OK, got %v", err)
	}
}

func TestToPortableMapsKinds(t *testing.T) {
	cases := map[Status]mberrors.Kind{
		ERR_NOENT:          mberrors.NotFound,
		ERR_STALE:          mberrors.NotFound,
		ERR_ACCESS:         mberrors.Permission,
		ERR_NOSPC:          mberrors.Resource,
		ERR_BAD_STATEID:    mberrors.State,
		ERR_STALE_CLIENTID: mberrors.State,
		ERR_NOTSUPP:        mberrors.Argument,
	}
	for status, want := range cases {
		err := ToPortable("op", status)
		if err == nil {
			t.Fatalf("expected an error for status %v", status)
		}
		got, ok := mberrors.KindOf(err)
		if !ok {
			t.Fatalf("KindOf(%v) did not recognize a *mberrors.Error", err)
		}
		if got != want {
			t.Errorf("ToPortable(%v) kind = %v, want %v", status, got, want)
		}
	}
}
