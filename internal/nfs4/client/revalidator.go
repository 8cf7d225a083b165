package client

import (
	"context"
	"sync"
	"time"

	"github.com/alxayo/mediabroker/internal/logger"
	nfserrors "github.com/alxayo/mediabroker/internal/nfs4/errors"
)

// RemovalNotice reports that name, previously listed under dir, is no
// longer present server-side, as observed by the revalidator (spec
// §8 scenario 6 "emits an entry-removed notification").
type RemovalNotice struct {
	Dir    *Inode
	Name   string
	FileID uint64
}

// Revalidator keeps every directory's DirectoryCache honest by
// re-checking change info once its entries expire, in expiration
// order, one at a time (spec §4.6 "directory cache ... FIFO-by-
// expiration revalidator"; original CacheRevalidator). Because every
// cache is given the same TTL on (re)load, appending to the tail on
// load or reload keeps the queue sorted by expiration without needing
// a separate ordering step.
type Revalidator struct {
	fs *FileSystem

	mu    sync.Mutex
	queue []*pendingEntry
	wake  chan struct{}

	// OnRemoval, if set, is called for every name the revalidator finds
	// no longer present. It must not block.
	OnRemoval func(RemovalNotice)
}

type pendingEntry struct {
	dir   *Inode
	cache *DirectoryCache
}

// NewRevalidator builds a Revalidator bound to fs.
func NewRevalidator(fs *FileSystem) *Revalidator {
	return &Revalidator{fs: fs, wake: make(chan struct{}, 1)}
}

// Track enqueues dir's cache for future revalidation, called once a
// directory's entries are first loaded or reloaded.
func (r *Revalidator) Track(dir *Inode, cache *DirectoryCache) {
	r.mu.Lock()
	r.queue = append(r.queue, &pendingEntry{dir: dir, cache: cache})
	r.mu.Unlock()
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run processes the queue head as it expires until ctx is canceled.
func (r *Revalidator) Run(ctx context.Context) {
	for {
		r.mu.Lock()
		if len(r.queue) == 0 {
			r.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-r.wake:
				continue
			}
		}
		head := r.queue[0]
		r.mu.Unlock()

		wait := time.Until(head.cache.ExpiresAt())
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-r.wake:
				timer.Stop()
				continue
			case <-timer.C:
			}
		}

		r.mu.Lock()
		if len(r.queue) > 0 && r.queue[0] == head {
			r.queue = r.queue[1:]
		}
		r.mu.Unlock()

		r.revalidate(ctx, head.dir, head.cache)
		r.Track(head.dir, head.cache)
	}
}

func (r *Revalidator) revalidate(ctx context.Context, dir *Inode, cache *DirectoryCache) {
	before := cache.snapshotEntries()

	entries, changeInfo, status, err := r.fs.ops.ReadDir(ctx, dir.Handle, cacheHint(cache))
	if err != nil {
		logger.Warn("nfs4: directory revalidation failed", "err", err)
		cache.Touch()
		return
	}
	if status != nfserrors.OK {
		logger.Warn("nfs4: directory revalidation server error", "status", status)
		cache.Touch()
		return
	}

	if cache.ValidateChangeInfo(changeInfo) {
		cache.Touch()
		return
	}

	cache.SetChangeInfo(changeInfo, entries)

	still := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		still[e.Name] = struct{}{}
	}

	for name, fileID := range before {
		if _, ok := still[name]; ok {
			continue
		}
		r.notifyRemoved(dir, name, fileID)
	}
}

func (r *Revalidator) notifyRemoved(dir *Inode, name string, fileID uint64) {
	if r.OnRemoval != nil {
		r.OnRemoval(RemovalNotice{Dir: dir, Name: name, FileID: fileID})
	}

	ino, ok := r.fs.Inodes.Get(fileID)
	if !ok {
		return
	}
	if trashed := ino.RemoveParentName(dir); trashed {
		r.fs.Inodes.Remove(fileID)
	}
}

// cacheHint reports the change info a cache was last built from, used
// as the server round-trip hint some READDIR implementations use to
// short-circuit an unchanged directory.
func cacheHint(c *DirectoryCache) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changeInfo
}
