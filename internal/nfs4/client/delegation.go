package client

import (
	"context"
	"sync"

	"github.com/alxayo/mediabroker/internal/logger"
	nfserrors "github.com/alxayo/mediabroker/internal/nfs4/errors"
)

// Delegation is the server's grant of exclusive (read or write)
// authority over a file to this client, attached to the Inode it
// covers (spec §3 "Delegation (state id, type READ|WRITE)").
type Delegation struct {
	Inode    *Inode
	ClientID uint64

	fs *FileSystem

	mu      sync.Mutex
	typ     DelegationType
	recall  bool
	stateID StateID
}

// NewDelegation attaches a delegation of grant's type to inode, holding
// the state id the server granted it under so Return can hand it back
// with DELEGRETURN.
func NewDelegation(fs *FileSystem, inode *Inode, clientID uint64, grant DelegationGrant, stateID StateID) *Delegation {
	d := &Delegation{Inode: inode, ClientID: clientID, fs: fs, typ: grant.Type, recall: grant.Recall, stateID: stateID}
	inode.setDelegation(d)
	return d
}

// Type reports the delegation kind currently held.
func (d *Delegation) Type() DelegationType {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.typ
}

func (d *Delegation) setGrant(grant DelegationGrant) {
	d.mu.Lock()
	d.typ = grant.Type
	d.recall = grant.Recall
	d.mu.Unlock()
}

// Return flushes dirty pages first when truncate is false and the
// delegation is a write delegation (spec §4.6 "if the recall arrives
// mid-write the work queue flushes dirty pages first"), sends
// DELEGRETURN so the server actually releases the grant, then detaches
// the delegation from its Inode regardless of how DELEGRETURN came
// back (Delegation::ReturnDelegation retries transient errors, but the
// client's own bookkeeping is cleared either way once it has stopped
// relying on the delegation).
func (d *Delegation) Return(ctx context.Context, truncate bool) {
	d.mu.Lock()
	typ := d.typ
	stateID := d.stateID
	d.mu.Unlock()

	if typ == DelegateWrite && !truncate {
		if err := d.Inode.flushDirty(ctx); err != nil {
			logger.Warn("nfs4: delegation flush before return failed", "err", err)
		}
	}

	if d.fs != nil {
		if status, err := d.fs.ops.DelegReturn(ctx, d.Inode.Handle, stateID); err != nil {
			logger.Warn("nfs4: DELEGRETURN failed", "err", err)
		} else if status != nfserrors.OK {
			logger.Warn("nfs4: DELEGRETURN returned a non-OK status", "status", status)
		}
	}

	d.Inode.clearDelegation()
}
