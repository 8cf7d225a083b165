package client

import (
	"context"
	"encoding/binary"
	"math/rand/v2"
	"sync"

	"github.com/alxayo/mediabroker/internal/logger"
	nfserrors "github.com/alxayo/mediabroker/internal/nfs4/errors"
	"github.com/alxayo/mediabroker/internal/nfs4/rpc"
	"github.com/alxayo/mediabroker/internal/nfs4/workqueue"
	"github.com/alxayo/mediabroker/internal/nfs4/xdr"
)

// randomOwner returns 8 pseudo-random bytes, suitable as an
// open-owner or client-verifier — these only need to be unlikely to
// collide with a previous incarnation, not cryptographically secure.
func randomOwner() []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], rand.Uint64())
	return b[:]
}

func randomVerifier() xdr.Verifier {
	var v xdr.Verifier
	binary.BigEndian.PutUint64(v[:], rand.Uint64())
	return v
}

// FileSystem is one mounted NFSv4 export: the per-mount client id,
// lease verifier, server handle, and the set of open files/locks that
// must survive a server reboot (spec §3 "FileSystem (per-mount, holds
// open-owner id, lease, server handle)").
type FileSystem struct {
	ops   nfsOps
	Queue *workqueue.Queue

	mu       sync.Mutex
	clientID uint64
	verifier xdr.Verifier
	owner    []byte
	rootFH   []byte

	// openOwnerSeq is the singleton open-owner sequence counter (spec
	// §5 "the open-owner sequence is a singleton per FileSystem and is
	// acquired as a lock before building an OPEN/CLOSE request").
	openOwnerSeqMu sync.Mutex
	openOwnerSeq   uint32

	openStatesMu sync.Mutex
	openStates   map[*OpenState]struct{}

	Inodes      *InodeIDMap
	Revalidator *Revalidator
}

// New constructs a FileSystem bound to ops (the live compound sender)
// with rootFH as its mounted root file handle.
func New(ops nfsOps, rootFH []byte, queue *workqueue.Queue) *FileSystem {
	owner := randomOwner()
	fs := &FileSystem{
		ops:        ops,
		Queue:      queue,
		owner:      owner,
		rootFH:     rootFH,
		openStates: make(map[*OpenState]struct{}),
		Inodes:     NewInodeIDMap(),
	}
	fs.Revalidator = NewRevalidator(fs)
	return fs
}

// ReadDirectory returns dir's entries, serving them from its
// DirectoryCache when not yet expired and re-fetching (and tracking
// with the Revalidator) otherwise (spec §4.6 "directory cache").
func (fs *FileSystem) ReadDirectory(ctx context.Context, dir *Inode) ([]DirEntry, error) {
	cache := dir.DirectoryCache()
	if !cache.Expired(timeNow()) {
		return cache.snapshotEntriesAsList(), nil
	}

	entries, changeInfo, status, err := fs.ops.ReadDir(ctx, dir.Handle, 0)
	if err != nil {
		return nil, err
	}
	if status != nfserrors.OK {
		return nil, nfserrors.ToPortable("nfs4.FileSystem.ReadDirectory", status)
	}

	cache.SetChangeInfo(changeInfo, entries)
	fs.Revalidator.Track(dir, cache)
	return entries, nil
}

// NewOverRPC constructs a FileSystem that sends real NFSv4 compounds
// over server, mounted at rootFH. This is the production path;
// FileSystem built via New with a fake nfsOps is what tests exercise.
func NewOverRPC(server *rpc.Server, rootFH []byte, queue *workqueue.Queue) *FileSystem {
	return New(newCompoundOps(server), rootFH, queue)
}

// ClientID returns the currently bound server client id.
func (fs *FileSystem) ClientID() uint64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.clientID
}

// OpenOwnerSequenceLock acquires the singleton open-owner sequence and
// returns its current value, mirroring the original's
// FileSystem::OpenOwnerSequenceLock.
func (fs *FileSystem) OpenOwnerSequenceLock() uint32 {
	fs.openOwnerSeqMu.Lock()
	return fs.openOwnerSeq
}

// OpenOwnerSequenceUnlock stores the sequence value the caller's retry
// loop arrived at and releases the lock.
func (fs *FileSystem) OpenOwnerSequenceUnlock(sequence uint32) {
	fs.openOwnerSeq = sequence
	fs.openOwnerSeqMu.Unlock()
}

// OpenOwner returns the open-owner identity this FileSystem presents
// on every OPEN/CLOSE/LOCK it sends.
func (fs *FileSystem) OpenOwner() OpenOwner {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return OpenOwner{ClientID: fs.clientID, Owner: fs.owner}
}

// RootHandle returns the mounted export's root file handle.
func (fs *FileSystem) RootHandle() []byte { return fs.rootFH }

func (fs *FileSystem) registerOpenState(os *OpenState) {
	fs.openStatesMu.Lock()
	fs.openStates[os] = struct{}{}
	fs.openStatesMu.Unlock()
}

func (fs *FileSystem) unregisterOpenState(os *OpenState) {
	fs.openStatesMu.Lock()
	delete(fs.openStates, os)
	fs.openStatesMu.Unlock()
}

// Reclaim reissues SETCLIENTID + SETCLIENTID_CONFIRM with a fresh
// verifier and then walks every OpenState reissuing its OPEN (with
// CLAIM_PREVIOUS) and every LockInfo reissuing its LOCK (reclaim=true)
// — spec §4.6 "State reclamation", driven by the server returning
// NFS4ERR_STALE_CLIENTID / NFS4ERR_STALE_STATEID.
func (fs *FileSystem) Reclaim(ctx context.Context) error {
	newVerifier := randomVerifier()

	clientID, confirmVerifier, status, err := fs.ops.SetClientID(ctx, newVerifier, fs.owner)
	if err != nil {
		return err
	}
	if status != nfserrors.OK {
		return nfserrors.ToPortable("nfs4.Reclaim.SetClientID", status)
	}

	status, err = fs.ops.SetClientIDConfirm(ctx, clientID, confirmVerifier)
	if err != nil {
		return err
	}
	if status != nfserrors.OK {
		return nfserrors.ToPortable("nfs4.Reclaim.SetClientIDConfirm", status)
	}

	fs.mu.Lock()
	fs.clientID = clientID
	fs.verifier = newVerifier
	fs.mu.Unlock()

	fs.openStatesMu.Lock()
	states := make([]*OpenState, 0, len(fs.openStates))
	for os := range fs.openStates {
		states = append(states, os)
	}
	fs.openStatesMu.Unlock()

	for _, os := range states {
		if err := os.Reclaim(ctx, clientID); err != nil {
			logger.Warn("nfs4: open state reclaim failed", "err", err)
			return err
		}
	}
	return nil
}

// incrementSequence reports how much an open-owner/lock-owner sequence
// advances after a reply carrying status: per RFC 3530 §8.1.5, the
// handful of statuses that mean the request was never really acted on
// by the server (bad/stale identifiers, a malformed request) leave the
// sequence untouched; every other reply consumes one sequence number,
// whether it succeeded or not.
func incrementSequence(status nfserrors.Status) uint32 {
	switch status {
	case nfserrors.ERR_STALE_CLIENTID, nfserrors.ERR_STALE_STATEID,
		nfserrors.ERR_BAD_SEQID, nfserrors.ERR_STALE,
		nfserrors.ERR_RESOURCE, nfserrors.ERR_NOFILEHANDLE:
		return 0
	default:
		return 1
	}
}

// snoozeAndRetry reports whether status is transient per spec §4.6
// ("Transient errors (DELAY, GRACE) cause a bounded snooze-and-retry
// inside the operation"). For a transient status it first waits
// snoozeInterval (returning false if ctx ends first), so callers that
// get true resend the same request straight away.
func snoozeAndRetry(ctx context.Context, status nfserrors.Status) bool {
	if nfserrors.Classify(status) != nfserrors.OpRetry {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case <-timeAfter(snoozeInterval):
		return true
	}
}
