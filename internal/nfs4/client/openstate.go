package client

import (
	"context"
	"sync"

	nfserrors "github.com/alxayo/mediabroker/internal/nfs4/errors"
	"github.com/alxayo/mediabroker/internal/nfs4/workqueue"
)

// OpenState is the client-side record of one OPEN share reservation:
// the state id the server handed back, the open-owner sequence it was
// obtained under, and every byte-range lock taken against it (spec §3
// "OpenState (client id, state id, sequence, mode)").
type OpenState struct {
	fs     *FileSystem
	handle []byte
	mode   LockType // OPEN share access, reused as a read/write distinction

	mu      sync.Mutex
	opened  bool
	stateID StateID

	delegation *Delegation

	locksMu sync.Mutex
	locks   []*LockInfo
	owners  *lockOwnerTable
}

// NewOpenState records a freshly granted OPEN's state id against fs
// and registers it so a future Reclaim walks it.
func NewOpenState(fs *FileSystem, handle []byte, mode LockType, stateID StateID) *OpenState {
	os := &OpenState{
		fs:      fs,
		handle:  handle,
		mode:    mode,
		opened:  true,
		stateID: stateID,
		owners:  newLockOwnerTable(),
	}
	fs.registerOpenState(os)
	return os
}

// GetLockOwner returns the LockOwner for a numeric lock-owner id,
// creating it on first use (OpenState::GetLockOwner).
func (os *OpenState) GetLockOwner(owner uint32) *LockOwner {
	return os.owners.Get(owner)
}

// AddLock attaches lock to this open file's lock set; caller already
// holds whatever ordering the lock-owner table requires.
func (os *OpenState) AddLock(lock *LockInfo) {
	os.owners.acquire(lock.Owner)
	os.locksMu.Lock()
	os.locks = append(os.locks, lock)
	os.locksMu.Unlock()
}

// DeleteLock removes lock and releases its owner once unused, matching
// OpenState::DeleteLock.
func (os *OpenState) DeleteLock(lock *LockInfo) {
	os.locksMu.Lock()
	for i, l := range os.locks {
		if l == lock {
			os.locks = append(os.locks[:i], os.locks[i+1:]...)
			break
		}
	}
	os.locksMu.Unlock()
	os.owners.Release(lock.Owner)
}

// StateID returns the currently held state id.
func (os *OpenState) StateID() StateID {
	os.mu.Lock()
	defer os.mu.Unlock()
	return os.stateID
}

// Reclaim re-establishes this open file and its locks against
// newClientID after a server reboot (OpenState::Reclaim). It is a
// no-op if the open was already closed. It does not track which client
// id it last reclaimed under, so calling it again with the same
// newClientID reissues the OPEN and every lock.
func (os *OpenState) Reclaim(ctx context.Context, newClientID uint64) error {
	os.mu.Lock()
	defer os.mu.Unlock()

	if !os.opened {
		return nil
	}

	if err := os.reclaimOpen(ctx, newClientID); err != nil {
		return err
	}
	return os.reclaimLocks(ctx, newClientID)
}

func (os *OpenState) reclaimOpen(ctx context.Context, newClientID uint64) error {
	delegWanted := DelegateNone
	if os.delegation != nil {
		delegWanted = os.delegation.Type()
	}

	sequence := os.fs.OpenOwnerSequenceLock()
	defer func() { os.fs.OpenOwnerSequenceUnlock(sequence) }()

	owner := OpenOwner{ClientID: newClientID, Owner: os.fs.owner}
	for {
		stateID, confirm, deleg, status, err := os.fs.ops.Open(ctx, os.handle, ClaimPrevious, sequence, owner, delegWanted)
		sequence += incrementSequence(status)
		if err != nil {
			return err
		}
		if snoozeAndRetry(ctx, status) {
			continue
		}
		if status != nfserrors.OK {
			return nfserrors.ToPortable("nfs4.OpenState.Reclaim", status)
		}

		os.stateID = stateID
		if os.delegation != nil {
			os.delegation.setGrant(deleg)
		}
		if deleg.Recall {
			os.enqueueDelegationRecall(false)
		}
		if confirm {
			status, err := os.fs.ops.ConfirmOpen(ctx, os.handle, stateID, sequence)
			if err != nil {
				return err
			}
			return nfserrors.ToPortable("nfs4.OpenState.Reclaim", status)
		}
		return nil
	}
}

func (os *OpenState) reclaimLocks(ctx context.Context, newClientID uint64) error {
	os.locksMu.Lock()
	locks := append([]*LockInfo(nil), os.locks...)
	os.locksMu.Unlock()

	for _, linfo := range locks {
		linfo.Owner.mu.Lock()
		if linfo.Owner.ClientID != newClientID {
			linfo.Owner.StateID = StateID{}
			linfo.Owner.ClientID = newClientID
		}
		owner := OpenOwner{ClientID: newClientID, Owner: os.fs.owner}
		for {
			status, err := os.fs.ops.Lock(ctx, os.handle, owner, os.stateID, linfo.Type, linfo.Range, true)
			if err != nil {
				linfo.Owner.mu.Unlock()
				return err
			}
			if snoozeAndRetry(ctx, status) {
				continue
			}
			if status != nfserrors.OK {
				linfo.Owner.mu.Unlock()
				return nfserrors.ToPortable("nfs4.OpenState.ReclaimLocks", status)
			}
			break
		}
		linfo.Owner.mu.Unlock()
	}
	return nil
}

// enqueueDelegationRecall queues a delegation-return job, matching
// spec §4.6 "on a server recall callback a delegation-return task is
// queued to a work queue".
func (os *OpenState) enqueueDelegationRecall(truncate bool) {
	deleg := os.delegation
	if deleg == nil || os.fs.Queue == nil {
		return
	}
	os.fs.Queue.EnqueueJob(workqueue.Job{
		Kind: workqueue.DelegationRecall,
		Run: func(ctx context.Context) {
			deleg.Return(ctx, truncate)
		},
	})
}

// Close releases this open file's state id on the server
// (OpenState::Close).
func (os *OpenState) Close(ctx context.Context) error {
	os.mu.Lock()
	defer os.mu.Unlock()
	if !os.opened {
		return nil
	}
	os.opened = false
	os.fs.unregisterOpenState(os)

	sequence := os.fs.OpenOwnerSequenceLock()
	defer func() { os.fs.OpenOwnerSequenceUnlock(sequence) }()

	for {
		status, err := os.fs.ops.Close(ctx, os.handle, sequence, os.stateID)
		sequence += incrementSequence(status)
		if err != nil {
			return err
		}
		if snoozeAndRetry(ctx, status) {
			continue
		}
		if status != nfserrors.OK {
			return nfserrors.ToPortable("nfs4.OpenState.Close", status)
		}
		return nil
	}
}
