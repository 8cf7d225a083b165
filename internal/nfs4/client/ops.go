package client

import (
	"context"

	nfserrors "github.com/alxayo/mediabroker/internal/nfs4/errors"
	"github.com/alxayo/mediabroker/internal/nfs4/xdr"
)

// StateID is the opaque 12-byte "other" plus sequence NFSv4 attaches
// to every open, lock, and delegation (spec glossary "state id").
type StateID struct {
	Seq   uint32
	Other [12]byte
}

// ClaimType selects how an OPEN asserts its right to a file, per
// RFC 3530 §14.2.16.
type ClaimType uint32

const (
	ClaimNull ClaimType = iota
	ClaimPrevious
	ClaimDelegateCur
	ClaimDelegatePrev
)

// DelegationType is the kind of delegation a server can grant on OPEN.
type DelegationType int

const (
	DelegateNone DelegationType = iota
	DelegateRead
	DelegateWrite
)

// DelegationGrant carries what the server handed back for a requested
// delegation, including whether it immediately wants it recalled
// (spec §4.6 "if the recall arrives mid-write the work queue flushes
// dirty pages first" — the immediate-recall case maps that exact path
// at grant time).
type DelegationGrant struct {
	Type   DelegationType
	Recall bool
}

// LockType distinguishes a byte-range read lock from a write lock.
type LockType int

const (
	LockRead LockType = iota
	LockWrite
)

// LockRange is a byte-range, matching NFSv4's offset/length pair.
// Length 0 with Exclusive semantics is never used; an all-bytes lock
// uses Length = ^uint64(0) (NFS4_UINT64_MAX), same as the original.
type LockRange struct {
	Offset uint64
	Length uint64
}

// OpenOwner identifies the single open-owner this FileSystem uses for
// every OPEN/CLOSE it sends — spec §5 calls this "a singleton per
// FileSystem".
type OpenOwner struct {
	ClientID uint64
	Owner    []byte
}

// nfsOps is the narrow set of compound operations the open/lock/
// reclaim state machine needs. compoundOps implements it by building
// real NFSv4 compounds over rpc.Server (see compound.go); tests
// implement it with a fake to exercise reclaim/revalidation logic
// without a live server.
type nfsOps interface {
	SetClientID(ctx context.Context, verifier xdr.Verifier, id []byte) (clientID uint64, confirmVerifier xdr.Verifier, status nfserrors.Status, err error)
	SetClientIDConfirm(ctx context.Context, clientID uint64, verifier xdr.Verifier) (status nfserrors.Status, err error)

	Open(ctx context.Context, handle []byte, claim ClaimType, seq uint32, owner OpenOwner, delegWanted DelegationType) (stateID StateID, confirm bool, deleg DelegationGrant, status nfserrors.Status, err error)
	ConfirmOpen(ctx context.Context, handle []byte, stateID StateID, seq uint32) (status nfserrors.Status, err error)
	Close(ctx context.Context, handle []byte, seq uint32, stateID StateID) (status nfserrors.Status, err error)

	Lock(ctx context.Context, handle []byte, owner OpenOwner, stateID StateID, lockType LockType, rng LockRange, reclaim bool) (status nfserrors.Status, err error)
	ReleaseLockOwner(ctx context.Context, owner OpenOwner) (status nfserrors.Status, err error)

	DelegReturn(ctx context.Context, handle []byte, stateID StateID) (status nfserrors.Status, err error)

	ReadDir(ctx context.Context, handle []byte, changeInfoHint uint64) (entries []DirEntry, changeInfo uint64, status nfserrors.Status, err error)
	LookupFSID(ctx context.Context, parentHandle []byte, name string) (handle []byte, fsid [2]uint64, status nfserrors.Status, err error)
}

// DirEntry is one READDIR result: a name and the inode it resolves to.
type DirEntry struct {
	Name  string
	Inode uint64
}
