package client

import "sync"

// LockOwner is one thread's byte-range lock identity on one open file
// (spec §3 "LockOwner (per-thread per-file)"). ClientID/StateID travel
// with it because a server reboot forces a LockOwner to present a
// fresh client id on its next reclaimed LOCK.
type LockOwner struct {
	ID uint32

	mu       sync.Mutex
	ClientID uint64
	StateID  StateID
	useCount int
}

// LockInfo is one outstanding byte-range lock, linked to the
// LockOwner that holds it (spec §3 "LockInfo (range, type, owner)").
type LockInfo struct {
	Range LockRange
	Type  LockType
	Owner *LockOwner
}

// lockOwnerTable hands out one LockOwner per numeric owner id per
// OpenState, matching OpenState::GetLockOwner's linked-list lookup.
type lockOwnerTable struct {
	mu     sync.Mutex
	owners map[uint32]*LockOwner
}

func newLockOwnerTable() *lockOwnerTable {
	return &lockOwnerTable{owners: make(map[uint32]*LockOwner)}
}

// Get returns the LockOwner for id, creating it on first use.
func (t *lockOwnerTable) Get(id uint32) *LockOwner {
	t.mu.Lock()
	defer t.mu.Unlock()
	if o, ok := t.owners[id]; ok {
		return o
	}
	o := &LockOwner{ID: id}
	t.owners[id] = o
	return o
}

// Release drops owner once its use count reaches zero, matching
// OpenState::DeleteLock's owner cleanup.
func (t *lockOwnerTable) Release(owner *LockOwner) {
	t.mu.Lock()
	defer t.mu.Unlock()
	owner.useCount--
	if owner.useCount <= 0 {
		delete(t.owners, owner.ID)
	}
}

func (t *lockOwnerTable) acquire(owner *LockOwner) {
	t.mu.Lock()
	owner.useCount++
	t.mu.Unlock()
}
