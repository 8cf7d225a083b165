package client

import "sync"

// InodeIDMap maps the server's file id (the value READDIR/GETATTR
// report, stable across a single FSID) to the client's Inode for it,
// so two lookups of the same remote file share one Inode and one
// delegation/lock state (spec §3 "InodeIdMap (server id -> FileInfo)").
type InodeIDMap struct {
	mu   sync.Mutex
	byID map[uint64]*Inode
}

// NewInodeIDMap returns an empty map.
func NewInodeIDMap() *InodeIDMap {
	return &InodeIDMap{byID: make(map[uint64]*Inode)}
}

// Get returns the Inode already registered for fileID, if any.
func (m *InodeIDMap) Get(fileID uint64) (*Inode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ino, ok := m.byID[fileID]
	return ino, ok
}

// GetOrCreate returns the existing Inode for fileID, or registers and
// returns a newly built one.
func (m *InodeIDMap) GetOrCreate(fileID uint64, handle []byte, fsid FSID) *Inode {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ino, ok := m.byID[fileID]; ok {
		return ino
	}
	ino := NewInode(fileID, handle, fsid)
	m.byID[fileID] = ino
	return ino
}

// Remove drops fileID from the map, matching what happens when a
// directory-cache revalidation trashes a vnode with no remaining
// parent names.
func (m *InodeIDMap) Remove(fileID uint64) {
	m.mu.Lock()
	delete(m.byID, fileID)
	m.mu.Unlock()
}

// VnodeHandle adapts one Inode to the lifetime of a kernel vnode: the
// kernel publishes a vnode for as long as something references it,
// and this wrapper's Release is the point at which that reference
// count reaching zero is reported back to the Inode/InodeIDMap so an
// already-trashed Inode can actually be freed (spec §3 "VnodeToInode
// (kernel-vnode lifetime adapter)").
type VnodeHandle struct {
	Inode *Inode

	mu       sync.Mutex
	refCount int
	trashed  bool
}

// NewVnodeHandle wraps inode with an initial reference count of 1.
func NewVnodeHandle(inode *Inode) *VnodeHandle {
	return &VnodeHandle{Inode: inode, refCount: 1}
}

// Acquire adds a reference.
func (v *VnodeHandle) Acquire() {
	v.mu.Lock()
	v.refCount++
	v.mu.Unlock()
}

// Trash marks the vnode for removal once its reference count drops to
// zero; further Acquire calls after Trash are a caller bug and are not
// guarded against here, matching the original's single-threaded vnode
// lock discipline.
func (v *VnodeHandle) Trash() {
	v.mu.Lock()
	v.trashed = true
	v.mu.Unlock()
}

// Release drops a reference and reports whether the vnode is now both
// trashed and unreferenced, in which case the caller should remove it
// from its InodeIDMap.
func (v *VnodeHandle) Release(ids *InodeIDMap) (removed bool) {
	v.mu.Lock()
	v.refCount--
	removed = v.trashed && v.refCount <= 0
	v.mu.Unlock()
	if removed {
		ids.Remove(v.Inode.FileID)
	}
	return removed
}
