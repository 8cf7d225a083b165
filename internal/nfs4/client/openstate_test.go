package client

import "testing"

func TestOpenStateAddAndDeleteLockReleasesOwner(t *testing.T) {
	ops := newFakeOps()
	fs := New(ops, []byte("root"), nil)
	os1 := NewOpenState(fs, []byte("file"), LockWrite, StateID{Seq: 1})

	owner := os1.GetLockOwner(3)
	lock := &LockInfo{Range: LockRange{Offset: 0, Length: 10}, Type: LockWrite, Owner: owner}
	os1.AddLock(lock)

	if got := os1.GetLockOwner(3); got != owner {
		t.Fatalf("GetLockOwner should return the same owner for a repeated id")
	}

	os1.DeleteLock(lock)

	os1.locksMu.Lock()
	n := len(os1.locks)
	os1.locksMu.Unlock()
	if n != 0 {
		t.Fatalf("expected no locks remaining after DeleteLock, got %d", n)
	}

	// a fresh id after the owner was released should yield a new owner
	if got := os1.GetLockOwner(3); got == owner {
		t.Fatalf("owner should have been released from the table after its last lock was deleted")
	}
}
