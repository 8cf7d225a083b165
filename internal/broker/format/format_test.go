package format

import (
	"testing"
	"time"
)

func TestRegisterAssignsEncodingIDsFrom1000(t *testing.T) {
	m := New()
	d := m.Register(Description{Family: FamilyEncodedAudio, FamilyID: 42})
	if d.EncodingID != 1000 {
		t.Fatalf("expected first assigned encoding id 1000, got %d", d.EncodingID)
	}
}

func TestRegisterIsIdempotentForEquivalentDescriptions(t *testing.T) {
	m := New()
	d1 := m.Register(Description{Family: FamilyEncodedVideo, FamilyID: 7})
	d2 := m.Register(Description{Family: FamilyEncodedVideo, FamilyID: 7})
	if d1.EncodingID != d2.EncodingID {
		t.Fatalf("expected re-registering an equivalent format to return the same encoding id, got %d and %d", d1.EncodingID, d2.EncodingID)
	}
}

func TestLookupExactMatch(t *testing.T) {
	m := New()
	m.Register(Description{Family: FamilyRawAudio, FamilyID: 1})
	if _, ok := m.Lookup(Description{Family: FamilyRawAudio, FamilyID: 2}); ok {
		t.Fatalf("expected no match for an unregistered family id")
	}
	got, ok := m.Lookup(Description{Family: FamilyRawAudio, FamilyID: 1})
	if !ok || got.FamilyID != 1 {
		t.Fatalf("expected exact match, got %+v ok=%v", got, ok)
	}
}

func TestASFFormatsCompareByGUIDByteLex(t *testing.T) {
	m := New()
	low := Description{Family: FamilyASF, GUID: [16]byte{0x01}}
	high := Description{Family: FamilyASF, GUID: [16]byte{0x02}}
	m.Register(high)
	m.Register(low)

	list, _ := m.QueryChanges(time.Time{})
	var asf []Description
	for _, d := range list {
		if d.Family == FamilyASF {
			asf = append(asf, d)
		}
	}
	if len(asf) != 2 || asf[0].GUID != low.GUID || asf[1].GUID != high.GUID {
		t.Fatalf("expected ASF formats sorted by GUID byte-lex, got %+v", asf)
	}
}

func TestMetaFormatsCompareByName(t *testing.T) {
	m := New()
	m.Register(Description{Family: FamilyMeta, Name: "zeta"})
	m.Register(Description{Family: FamilyMeta, Name: "alpha"})

	list, _ := m.QueryChanges(time.Time{})
	var names []string
	for _, d := range list {
		if d.Family == FamilyMeta {
			names = append(names, d.Name)
		}
	}
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Fatalf("expected meta formats sorted by name, got %v", names)
	}
}

func TestQueryChangesReportsNoChangesSinceLastUpdate(t *testing.T) {
	m := New()
	m.Register(Description{Family: FamilyRawAudio, FamilyID: 1})
	last := m.LastUpdate()

	_, changed := m.QueryChanges(last)
	if changed {
		t.Fatalf("expected no changes when querying with the current last-update timestamp")
	}

	m.Register(Description{Family: FamilyRawAudio, FamilyID: 2})
	list, changed := m.QueryChanges(last)
	if !changed || len(list) != 2 {
		t.Fatalf("expected changes after a new registration, got changed=%v list=%v", changed, list)
	}
}
