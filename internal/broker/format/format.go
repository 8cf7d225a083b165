// Package format implements the broker's format manager (spec §4.2.4):
// an interned, sorted table of media format descriptions and the
// encoding ids the broker mints for newly seen encoded formats.
package format

import (
	"bytes"
	"sort"
	"sync"
	"time"
)

// Family tags a Description's union member, mirroring the "family tag"
// sort key from spec §4.2.4.
type Family uint8

const (
	FamilyRawAudio Family = iota
	FamilyRawVideo
	FamilyEncodedAudio
	FamilyEncodedVideo
	FamilyMultistream
	FamilyASF
	FamilyMeta
)

// Description is a union-tagged media format record. Only the field(s)
// relevant to Family are meaningful; the rest are zero.
type Description struct {
	Family     Family
	FamilyID   int64  // family-specific id, e.g. a raw codec enum value
	GUID       [16]byte // populated when Family == FamilyASF
	Name       string   // populated when Family == FamilyMeta
	EncodingID int32    // assigned by the manager on first sight, 0 until then
}

// less implements the sort order from spec §4.2.4: by family tag, then
// by family-specific id; ASF compares by 16-byte GUID byte-lexically;
// meta compares by name string.
func less(a, b Description) bool {
	if a.Family != b.Family {
		return a.Family < b.Family
	}
	switch a.Family {
	case FamilyASF:
		return bytes.Compare(a.GUID[:], b.GUID[:]) < 0
	case FamilyMeta:
		return a.Name < b.Name
	default:
		return a.FamilyID < b.FamilyID
	}
}

func equal(a, b Description) bool {
	if a.Family != b.Family {
		return false
	}
	switch a.Family {
	case FamilyASF:
		return a.GUID == b.GUID
	case FamilyMeta:
		return a.Name == b.Name
	default:
		return a.FamilyID == b.FamilyID
	}
}

// Manager is the broker's format table: a sorted list supporting
// O(log n) exact-match lookup, with an encoding-id counter starting at
// 1000 and a last-update timestamp for change queries.
type Manager struct {
	mu         sync.RWMutex
	sorted     []Description
	nextEncID  int32
	lastUpdate time.Time
}

// New creates an empty format manager.
func New() *Manager {
	return &Manager{nextEncID: 1000, lastUpdate: time.Now()}
}

// Lookup returns the interned Description matching want (family plus
// the family-specific key), if already registered.
func (m *Manager) Lookup(want Description) (Description, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := sort.Search(len(m.sorted), func(i int) bool { return !less(m.sorted[i], want) })
	if i < len(m.sorted) && equal(m.sorted[i], want) {
		return m.sorted[i], true
	}
	return Description{}, false
}

// Register interns desc. If an equivalent description is already known
// it is returned unchanged; otherwise desc is assigned a fresh encoding
// id (the manager's counter, starting at 1000) and inserted in sorted
// order.
func (m *Manager) Register(desc Description) Description {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := sort.Search(len(m.sorted), func(i int) bool { return !less(m.sorted[i], desc) })
	if i < len(m.sorted) && equal(m.sorted[i], desc) {
		return m.sorted[i]
	}

	desc.EncodingID = m.nextEncID
	m.nextEncID++
	m.sorted = append(m.sorted, Description{})
	copy(m.sorted[i+1:], m.sorted[i:])
	m.sorted[i] = desc
	m.lastUpdate = time.Now()
	return desc
}

// QueryChanges implements the "send last-seen timestamp, get 'no
// changes' or the full list" protocol. A zero sinceTimestamp always
// returns the full list.
func (m *Manager) QueryChanges(since time.Time) (list []Description, changed bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !since.IsZero() && !m.lastUpdate.After(since) {
		return nil, false
	}
	out := make([]Description, len(m.sorted))
	copy(out, m.sorted)
	return out, true
}

// LastUpdate returns the timestamp of the most recent Register that
// actually inserted a new description.
func (m *Manager) LastUpdate() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUpdate
}
