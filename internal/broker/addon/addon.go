// Package addon implements the broker's add-on & flavor registry
// (spec §4.2, component D): the table mapping loadable-component ids to
// file references and the flavors (node templates) each add-on declares.
package addon

import (
	"fmt"
	"sort"
	"sync"

	mberrors "github.com/alxayo/mediabroker/internal/errors"
)

// Flavor flag bits.
const (
	// FlagGlobal marks a flavor that instantiates as a single shared
	// instance across every caller, rather than a fresh instance per
	// caller. The default-endpoint manager does not check this flag:
	// Rescan picks a slot's flavor by kind alone and instantiates it
	// through Instantiator.InstantiateGlobal.
	FlagGlobal uint32 = 1 << iota
)

// Flavor is a node template declared by an add-on.
type Flavor struct {
	ID                   int32
	Name                 string
	Info                 string
	Kinds                uint32 // registry.Kind bitmask, kept untyped to avoid an import cycle
	Flags                uint32
	PossibleInstanceCount int32 // -1 = unlimited
	InputFormats         []any
	OutputFormats        []any

	liveInstances int32
}

// Record is the broker's entry for one loaded add-on.
type Record struct {
	ID      int32
	FileRef string

	mu      sync.Mutex
	flavors map[int32]*Flavor
}

// Flavors returns a snapshot of the add-on's declared flavors, sorted by
// flavor id.
func (r *Record) Flavors() []Flavor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Flavor, 0, len(r.flavors))
	for _, f := range r.flavors {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LiveInstanceCount returns the loaded instance count, for the
// "add-on unloaded only when its last live flavor instance has been
// released" invariant.
func (r *Record) LiveInstanceCount() int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int32
	for _, f := range r.flavors {
		sum += f.liveInstances
	}
	return sum
}

// Registry is the broker's add-on table.
type Registry struct {
	mu     sync.RWMutex
	addons map[int32]*Record
	nextID int32
}

// New creates an empty add-on registry.
func New() *Registry {
	return &Registry{addons: make(map[int32]*Record)}
}

// LoadAddon registers an add-on's file reference and declared flavors,
// assigning a broker id. Flavor ids must be unique within the add-on.
func (r *Registry) LoadAddon(fileRef string, flavors []Flavor) (*Record, error) {
	if fileRef == "" {
		return nil, mberrors.NewArgument("addon.LoadAddon", fmt.Errorf("file reference must not be empty"))
	}
	flavorMap := make(map[int32]*Flavor, len(flavors))
	for i := range flavors {
		f := flavors[i]
		if _, dup := flavorMap[f.ID]; dup {
			return nil, mberrors.NewArgument("addon.LoadAddon", fmt.Errorf("duplicate flavor id %d", f.ID))
		}
		fCopy := f
		flavorMap[f.ID] = &fCopy
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	rec := &Record{ID: r.nextID, FileRef: fileRef, flavors: flavorMap}
	r.addons[rec.ID] = rec
	return rec, nil
}

// Get returns the add-on record for id.
func (r *Registry) Get(addonID int32) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.addons[addonID]
	if !ok {
		return nil, mberrors.NewNotFound("addon.Get", fmt.Errorf("add-on %d not found", addonID))
	}
	return rec, nil
}

// Flavor returns the declared flavor within an add-on.
func (r *Registry) Flavor(addonID, flavorID int32) (Flavor, error) {
	rec, err := r.Get(addonID)
	if err != nil {
		return Flavor{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	f, ok := rec.flavors[flavorID]
	if !ok {
		return Flavor{}, mberrors.NewNotFound("addon.Flavor", fmt.Errorf("flavor %d not declared by add-on %d", flavorID, addonID))
	}
	return *f, nil
}

// AcquireInstance records a new live instance of a flavor, failing if
// the flavor's possible-instance-count is exhausted.
func (r *Registry) AcquireInstance(addonID, flavorID int32) error {
	rec, err := r.Get(addonID)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	f, ok := rec.flavors[flavorID]
	if !ok {
		return mberrors.NewNotFound("addon.AcquireInstance", fmt.Errorf("flavor %d not declared by add-on %d", flavorID, addonID))
	}
	if f.PossibleInstanceCount >= 0 && f.liveInstances >= f.PossibleInstanceCount {
		return mberrors.NewResource("addon.AcquireInstance", fmt.Errorf("flavor %d has no remaining instance slots", flavorID))
	}
	f.liveInstances++
	return nil
}

// ReleaseInstance drops one live instance of a flavor. When the add-on's
// last live flavor instance is released, Unload may be called safely
// (the invariant in spec §4.2's component D).
func (r *Registry) ReleaseInstance(addonID, flavorID int32) error {
	rec, err := r.Get(addonID)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	f, ok := rec.flavors[flavorID]
	if !ok {
		return mberrors.NewNotFound("addon.ReleaseInstance", fmt.Errorf("flavor %d not declared by add-on %d", flavorID, addonID))
	}
	if f.liveInstances == 0 {
		return mberrors.NewState("addon.ReleaseInstance", fmt.Errorf("flavor %d has no live instances to release", flavorID))
	}
	f.liveInstances--
	return nil
}

// Unload removes an add-on's record. Fails if any flavor still has a
// live instance, preserving the "unloaded only when last instance is
// released" invariant.
func (r *Registry) Unload(addonID int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.addons[addonID]
	if !ok {
		return mberrors.NewNotFound("addon.Unload", fmt.Errorf("add-on %d not found", addonID))
	}
	if rec.LiveInstanceCount() > 0 {
		return mberrors.NewState("addon.Unload", fmt.Errorf("add-on %d still has live flavor instances", addonID))
	}
	delete(r.addons, addonID)
	return nil
}

// FindFlavor scans every loaded add-on for a flavor whose kinds include
// want, returning the first match. Used by the default-endpoint
// manager's "rescan defaults" to find exactly one flavor per physical
// role.
func (r *Registry) FindFlavor(want uint32) (addonID int32, flavor Flavor, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int32, 0, len(r.addons))
	for id := range r.addons {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		rec := r.addons[id]
		rec.mu.Lock()
		flavorIDs := make([]int32, 0, len(rec.flavors))
		for fid := range rec.flavors {
			flavorIDs = append(flavorIDs, fid)
		}
		sort.Slice(flavorIDs, func(i, j int) bool { return flavorIDs[i] < flavorIDs[j] })
		for _, fid := range flavorIDs {
			f := rec.flavors[fid]
			if f.Kinds&want == want {
				match := *f
				rec.mu.Unlock()
				return id, match, true
			}
		}
		rec.mu.Unlock()
	}
	return 0, Flavor{}, false
}

// TotalLiveInstances sums every loaded add-on's live flavor instance
// count, for the add-on-instance gauge internal/metrics reads.
func (r *Registry) TotalLiveInstances() int32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int32
	for _, rec := range r.addons {
		sum += rec.LiveInstanceCount()
	}
	return sum
}
