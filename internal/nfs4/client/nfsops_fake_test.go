package client

import (
	"context"
	"sync"

	nfserrors "github.com/alxayo/mediabroker/internal/nfs4/errors"
	"github.com/alxayo/mediabroker/internal/nfs4/xdr"
)

// fakeOps is a scriptable nfsOps used by this package's tests to drive
// FileSystem/OpenState reclaim and revalidation logic without a live
// NFSv4 server.
type fakeOps struct {
	mu sync.Mutex

	nextClientID uint64
	openCalls    int
	lockCalls    int

	// openStatus, when set, is returned by the next Open call and then
	// cleared; otherwise Open always succeeds.
	openStatus nfserrors.Status
	lockStatus nfserrors.Status

	dirEntries    []DirEntry
	dirChangeInfo uint64
	readDirCalls  int

	delegReturnCalls int
}

func newFakeOps() *fakeOps {
	return &fakeOps{nextClientID: 1}
}

func (f *fakeOps) SetClientID(ctx context.Context, verifier xdr.Verifier, id []byte) (uint64, xdr.Verifier, nfserrors.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextClientID++
	return f.nextClientID, verifier, nfserrors.OK, nil
}

func (f *fakeOps) SetClientIDConfirm(ctx context.Context, clientID uint64, verifier xdr.Verifier) (nfserrors.Status, error) {
	return nfserrors.OK, nil
}

func (f *fakeOps) Open(ctx context.Context, handle []byte, claim ClaimType, seq uint32, owner OpenOwner, delegWanted DelegationType) (StateID, bool, DelegationGrant, nfserrors.Status, error) {
	f.mu.Lock()
	f.openCalls++
	status := f.openStatus
	f.openStatus = nfserrors.OK
	f.mu.Unlock()

	if status != nfserrors.OK {
		return StateID{}, false, DelegationGrant{}, status, nil
	}
	return StateID{Seq: seq + 1, Other: [12]byte{1, 2, 3}}, false, DelegationGrant{Type: delegWanted}, nfserrors.OK, nil
}

func (f *fakeOps) ConfirmOpen(ctx context.Context, handle []byte, stateID StateID, seq uint32) (nfserrors.Status, error) {
	return nfserrors.OK, nil
}

func (f *fakeOps) Close(ctx context.Context, handle []byte, seq uint32, stateID StateID) (nfserrors.Status, error) {
	return nfserrors.OK, nil
}

func (f *fakeOps) Lock(ctx context.Context, handle []byte, owner OpenOwner, stateID StateID, lockType LockType, rng LockRange, reclaim bool) (nfserrors.Status, error) {
	f.mu.Lock()
	f.lockCalls++
	status := f.lockStatus
	f.lockStatus = nfserrors.OK
	f.mu.Unlock()
	return status, nil
}

func (f *fakeOps) ReleaseLockOwner(ctx context.Context, owner OpenOwner) (nfserrors.Status, error) {
	return nfserrors.OK, nil
}

func (f *fakeOps) DelegReturn(ctx context.Context, handle []byte, stateID StateID) (nfserrors.Status, error) {
	f.mu.Lock()
	f.delegReturnCalls++
	f.mu.Unlock()
	return nfserrors.OK, nil
}

func (f *fakeOps) ReadDir(ctx context.Context, handle []byte, changeInfoHint uint64) ([]DirEntry, uint64, nfserrors.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readDirCalls++
	return f.dirEntries, f.dirChangeInfo, nfserrors.OK, nil
}

func (f *fakeOps) LookupFSID(ctx context.Context, parentHandle []byte, name string) ([]byte, [2]uint64, nfserrors.Status, error) {
	return append([]byte(nil), parentHandle...), [2]uint64{1, 0}, nfserrors.OK, nil
}
