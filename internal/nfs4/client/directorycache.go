package client

import (
	"sync"
	"time"
)

// directoryCacheExpiration is how long a DirectoryCache trusts its
// entries before the revalidator re-fetches change info for it (spec
// §4.6 "directory cache ... FIFO-by-expiration revalidator"), matching
// the original's kExpirationTime of 15 seconds.
const directoryCacheExpiration = 15 * time.Second

// DirectoryCache holds one directory's cached name -> file id mapping
// plus the NFSv4 change info it was built from, so a revalidator can
// tell whether the directory changed server-side without re-reading
// every entry (spec §3 "DirectoryCache (name->inode map, change info,
// expiration)").
type DirectoryCache struct {
	dir *Inode

	mu         sync.Mutex
	entries    map[string]uint64 // name -> file id
	changeInfo uint64
	expiresAt  time.Time
	trashed    bool
}

func newDirectoryCache(dir *Inode) *DirectoryCache {
	return &DirectoryCache{
		dir:       dir,
		entries:   make(map[string]uint64),
		expiresAt: timeNow().Add(directoryCacheExpiration),
	}
}

// SetChangeInfo replaces the cached entries and change info with a
// fresh READDIR snapshot and resets the expiration clock
// (DirectoryCache::SetChangeInfo / Trash+reload pattern).
func (c *DirectoryCache) SetChangeInfo(changeInfo uint64, entries []DirEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changeInfo = changeInfo
	c.entries = make(map[string]uint64, len(entries))
	for _, e := range entries {
		c.entries[e.Name] = e.Inode
	}
	c.expiresAt = timeNow().Add(directoryCacheExpiration)
	c.trashed = false
}

// ValidateChangeInfo reports whether serverChangeInfo still matches
// what this cache was last built from (DirectoryCache::ValidateChangeInfo).
func (c *DirectoryCache) ValidateChangeInfo(serverChangeInfo uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changeInfo == serverChangeInfo
}

// Expired reports whether this cache was trashed or its entries are old
// enough that the revalidator should re-fetch change info for it.
func (c *DirectoryCache) Expired(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trashed || !now.Before(c.expiresAt)
}

// ExpiresAt returns the time this cache next needs revalidating, used
// by the revalidator to order its FIFO queue.
func (c *DirectoryCache) ExpiresAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiresAt
}

// Lookup returns the cached file id for name, if present.
func (c *DirectoryCache) Lookup(name string) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.entries[name]
	return id, ok
}

// Touch resets the expiration clock without altering cached entries,
// used when revalidation finds change info unchanged.
func (c *DirectoryCache) Touch() {
	c.mu.Lock()
	c.expiresAt = timeNow().Add(directoryCacheExpiration)
	c.mu.Unlock()
}

// snapshotEntriesAsList returns the cached entries as a DirEntry
// slice, for callers that want the same shape ReadDir returns.
func (c *DirectoryCache) snapshotEntriesAsList() []DirEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]DirEntry, 0, len(c.entries))
	for name, id := range c.entries {
		out = append(out, DirEntry{Name: name, Inode: id})
	}
	return out
}

// snapshotEntries copies the current name -> file id map so a caller
// can diff it against a fresh READDIR before SetChangeInfo overwrites it.
func (c *DirectoryCache) snapshotEntries() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make(map[string]uint64, len(c.entries))
	for k, v := range c.entries {
		cp[k] = v
	}
	return cp
}

// Trash marks this cache invalid; the next access must re-fetch
// change info and reload before trusting it again.
func (c *DirectoryCache) Trash() {
	c.mu.Lock()
	c.trashed = true
	c.entries = make(map[string]uint64)
	c.mu.Unlock()
}
