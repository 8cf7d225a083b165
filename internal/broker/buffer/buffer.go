// Package buffer implements the broker's buffer registry (spec §4.2.3):
// shared-memory regions registered by producers, handed out to consumers
// by opaque buffer id, with per-process reference counts that gate
// region reclamation.
package buffer

import (
	"fmt"
	"sort"
	"sync"

	mberrors "github.com/alxayo/mediabroker/internal/errors"
)

// Region stands in for a clone_area()'d shared-memory region: a byte
// slice the broker owns, handed out to consumers as a cloned view.
type Region struct {
	ID   int32
	Data []byte
}

// Buffer is one (region, offset, size, flags) triple registered with
// the broker.
type Buffer struct {
	ID       int32
	RegionID int32
	Offset   int32
	Size     int32
	Flags    uint32

	mu      sync.Mutex
	perProc map[string]int32
}

// RefCount returns the buffer's total live reference count across all
// processes.
func (b *Buffer) RefCount() int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var sum int32
	for _, v := range b.perProc {
		sum += v
	}
	return sum
}

// Registry is the broker's buffer table.
type Registry struct {
	mu         sync.RWMutex
	regions    map[int32]*Region
	buffers    map[int32]*Buffer
	nextRegion int32
	nextBuffer int32
}

// New creates an empty buffer registry.
func New() *Registry {
	return &Registry{
		regions: make(map[int32]*Region),
		buffers: make(map[int32]*Buffer),
	}
}

// RegisterRegion registers a shared-memory region exactly once,
// returning its broker-assigned id.
func (r *Registry) RegisterRegion(data []byte) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextRegion++
	r.regions[r.nextRegion] = &Region{ID: r.nextRegion, Data: data}
	return r.nextRegion
}

// RegisterBuffer assigns a buffer id to a (region, offset, size, flags)
// triple, owned initially by process. Idempotent would require a
// caller-supplied id; the broker always mints a fresh one here, per
// spec §4.2.3 ("the broker assigns a buffer id per buffer").
func (r *Registry) RegisterBuffer(regionID int32, offset, size int32, flags uint32, process string) (*Buffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.regions[regionID]; !ok {
		return nil, mberrors.NewNotFound("buffer.RegisterBuffer", fmt.Errorf("region %d not registered", regionID))
	}
	r.nextBuffer++
	b := &Buffer{
		ID:       r.nextBuffer,
		RegionID: regionID,
		Offset:   offset,
		Size:     size,
		Flags:    flags,
		perProc:  map[string]int32{process: 1},
	}
	r.buffers[b.ID] = b
	return b, nil
}

// Lookup resolves a buffer id to its region/offset/size/flags and
// increments process's reference count, so the consumer can clone the
// backing region into its own address space.
func (r *Registry) Lookup(bufferID int32, process string) (*Buffer, *Region, error) {
	r.mu.RLock()
	b, ok := r.buffers[bufferID]
	if !ok {
		r.mu.RUnlock()
		return nil, nil, mberrors.NewNotFound("buffer.Lookup", fmt.Errorf("buffer %d not registered", bufferID))
	}
	region := r.regions[b.RegionID]
	r.mu.RUnlock()

	b.mu.Lock()
	b.perProc[process]++
	b.mu.Unlock()
	return b, region, nil
}

// Release decrements process's reference to bufferID. When the buffer's
// total refcount reaches zero it (and its region, if no other buffer
// still references it) is destroyed.
func (r *Registry) Release(bufferID int32, process string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buffers[bufferID]
	if !ok {
		return mberrors.NewNotFound("buffer.Release", fmt.Errorf("buffer %d not registered", bufferID))
	}
	b.mu.Lock()
	if b.perProc[process] > 0 {
		b.perProc[process]--
		if b.perProc[process] == 0 {
			delete(b.perProc, process)
		}
	}
	var total int32
	for _, v := range b.perProc {
		total += v
	}
	b.mu.Unlock()

	if total == 0 {
		delete(r.buffers, bufferID)
		r.gcRegionLocked(b.RegionID)
	}
	return nil
}

// gcRegionLocked removes regionID if no remaining buffer references it.
// Caller must hold r.mu.
func (r *Registry) gcRegionLocked(regionID int32) {
	for _, b := range r.buffers {
		if b.RegionID == regionID {
			return
		}
	}
	delete(r.regions, regionID)
}

// DropProcess implements the app manager's cascading cleanup: every
// reference process held across every buffer is released, destroying
// any buffer/region that reaches zero refcount as a result.
func (r *Registry) DropProcess(process string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, b := range r.buffers {
		b.mu.Lock()
		delete(b.perProc, process)
		var total int32
		for _, v := range b.perProc {
			total += v
		}
		b.mu.Unlock()
		if total == 0 {
			delete(r.buffers, id)
			r.gcRegionLocked(b.RegionID)
		}
	}
}

// Count returns the number of live buffers, for metrics.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.buffers)
}

// Info is the reduced record returned by ListBuffers.
type Info struct {
	ID       int32
	RegionID int32
	Offset   int32
	Size     int32
	Flags    uint32
	RefCount int32
}

// ListBuffers returns a snapshot of every live buffer, sorted by id, for
// the admin HTTP surface's /buffers route.
func (r *Registry) ListBuffers() []Info {
	r.mu.RLock()
	ids := make([]int32, 0, len(r.buffers))
	for id := range r.buffers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Info, 0, len(ids))
	for _, id := range ids {
		b := r.buffers[id]
		out = append(out, Info{
			ID:       b.ID,
			RegionID: b.RegionID,
			Offset:   b.Offset,
			Size:     b.Size,
			Flags:    b.Flags,
			RefCount: b.RefCount(),
		})
	}
	r.mu.RUnlock()
	return out
}
