package client

import (
	"context"
	"sync"
)

// FSID is the filesystem identifier pair NFSv4 attaches to every file
// handle, used by the round-trip invariant in spec §8 ("a completed
// LOOKUP + GETFH + PUTFH + GETATTR on the resulting handle yields the
// same FSID as the parent").
type FSID struct {
	Major uint64
	Minor uint64
}

// FlushFunc writes back any buffered dirty pages for an Inode; it is
// supplied by whatever owns the page cache (outside this package's
// scope) and called by Delegation.Return before giving back a write
// delegation.
type FlushFunc func(ctx context.Context) error

// Inode is the client-side handle for one remote file: its NFS file
// handle, filesystem id, and the delegation (if any) currently held on
// it (spec §3 "Inode (file handle, FSID, optional delegation)").
type Inode struct {
	FileID uint64
	Handle []byte
	FSID   FSID

	Flush FlushFunc

	mu         sync.Mutex
	delegation *Delegation
	dirCache   *DirectoryCache
	names      map[*Inode]string // parent inode -> name, for vnode trashing
}

// NewInode constructs an Inode. fileID is the server-assigned id this
// FileSystem's InodeIDMap keys it by.
func NewInode(fileID uint64, handle []byte, fsid FSID) *Inode {
	return &Inode{
		FileID: fileID,
		Handle: handle,
		FSID:   fsid,
		names:  make(map[*Inode]string),
	}
}

func (i *Inode) setDelegation(d *Delegation) {
	i.mu.Lock()
	i.delegation = d
	i.mu.Unlock()
}

func (i *Inode) clearDelegation() {
	i.mu.Lock()
	i.delegation = nil
	i.mu.Unlock()
}

// Delegation returns the delegation currently held, or nil.
func (i *Inode) Delegation() *Delegation {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.delegation
}

func (i *Inode) flushDirty(ctx context.Context) error {
	if i.Flush == nil {
		return nil
	}
	return i.Flush(ctx)
}

// DirectoryCache lazily creates (if needed) and returns this
// directory inode's name cache.
func (i *Inode) DirectoryCache() *DirectoryCache {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.dirCache == nil {
		i.dirCache = newDirectoryCache(i)
	}
	return i.dirCache
}

// AddParentName records that this inode is reachable as name under
// parent — used to decide, on a directory-cache entry removal,
// whether the inode has any remaining name anywhere and so whether its
// vnode should be trashed (spec §4.6 "if a node has no remaining names
// on any parent the vnode is trashed").
func (i *Inode) AddParentName(parent *Inode, name string) {
	i.mu.Lock()
	i.names[parent] = name
	i.mu.Unlock()
}

// RemoveParentName drops the (parent, name) association and reports
// whether the inode has no remaining parent names at all.
func (i *Inode) RemoveParentName(parent *Inode) (trashed bool) {
	i.mu.Lock()
	delete(i.names, parent)
	trashed = len(i.names) == 0
	i.mu.Unlock()
	return trashed
}
