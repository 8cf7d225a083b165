package buffer

import (
	"testing"

	mberrors "github.com/alxayo/mediabroker/internal/errors"
)

func TestRegisterBufferRequiresKnownRegion(t *testing.T) {
	r := New()
	if _, err := r.RegisterBuffer(99, 0, 1024, 0, "procA"); !mberrors.Is(err, mberrors.NotFound) {
		t.Fatalf("expected not-found for unknown region, got %v", err)
	}
}

func TestLookupIncrementsRefcount(t *testing.T) {
	r := New()
	regionID := r.RegisterRegion(make([]byte, 4096))
	b, err := r.RegisterBuffer(regionID, 0, 1024, 0, "procA")
	if err != nil {
		t.Fatalf("register buffer: %v", err)
	}
	if b.RefCount() != 1 {
		t.Fatalf("expected refcount 1 after registration, got %d", b.RefCount())
	}

	got, region, err := r.Lookup(b.ID, "procB")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if region.ID != regionID {
		t.Fatalf("expected region %d, got %d", regionID, region.ID)
	}
	if got.RefCount() != 2 {
		t.Fatalf("expected refcount 2 after procB's lookup, got %d", got.RefCount())
	}
}

func TestReleaseDestroysBufferAndRegionAtZeroRefcount(t *testing.T) {
	r := New()
	regionID := r.RegisterRegion(make([]byte, 4096))
	b, _ := r.RegisterBuffer(regionID, 0, 1024, 0, "procA")

	if err := r.Release(b.ID, "procA"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, _, err := r.Lookup(b.ID, "procC"); !mberrors.Is(err, mberrors.NotFound) {
		t.Fatalf("expected buffer gone after last release")
	}
	if r.Count() != 0 {
		t.Fatalf("expected zero live buffers, got %d", r.Count())
	}
}

func TestRegionSurvivesWhileAnotherBufferReferencesIt(t *testing.T) {
	r := New()
	regionID := r.RegisterRegion(make([]byte, 4096))
	b1, _ := r.RegisterBuffer(regionID, 0, 512, 0, "procA")
	b2, _ := r.RegisterBuffer(regionID, 512, 512, 0, "procA")

	if err := r.Release(b1.ID, "procA"); err != nil {
		t.Fatalf("release b1: %v", err)
	}
	if _, _, err := r.Lookup(b2.ID, "procB"); err != nil {
		t.Fatalf("expected b2 and its region still alive: %v", err)
	}
}

func TestDropProcessReleasesAllItsReferences(t *testing.T) {
	r := New()
	regionID := r.RegisterRegion(make([]byte, 4096))
	b, _ := r.RegisterBuffer(regionID, 0, 1024, 0, "procA")
	r.Lookup(b.ID, "procB")

	r.DropProcess("procA")
	if b.RefCount() != 1 {
		t.Fatalf("expected only procB's reference left, got refcount %d", b.RefCount())
	}

	r.DropProcess("procB")
	if r.Count() != 0 {
		t.Fatalf("expected buffer destroyed once all processes drop, got %d live", r.Count())
	}
}
