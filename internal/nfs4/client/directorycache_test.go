package client

import (
	"testing"
	"time"
)

func TestDirectoryCacheExpiresAfterTTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	restore := timeNow
	timeNow = func() time.Time { return now }
	defer func() { timeNow = restore }()

	dir := NewInode(1, []byte("h"), FSID{})
	cache := dir.DirectoryCache()
	cache.SetChangeInfo(1, []DirEntry{{Name: "a", Inode: 2}})

	if cache.Expired(now) {
		t.Fatalf("freshly loaded cache should not be expired")
	}

	later := now.Add(directoryCacheExpiration + time.Second)
	if !cache.Expired(later) {
		t.Fatalf("cache should be expired after its TTL")
	}

	cache.Touch()
	if cache.Expired(now) {
		t.Fatalf("Touch should reset the expiration clock")
	}
}

func TestDirectoryCacheValidateChangeInfo(t *testing.T) {
	dir := NewInode(1, []byte("h"), FSID{})
	cache := dir.DirectoryCache()
	cache.SetChangeInfo(42, nil)

	if !cache.ValidateChangeInfo(42) {
		t.Fatalf("matching change info should validate")
	}
	if cache.ValidateChangeInfo(43) {
		t.Fatalf("mismatched change info should not validate")
	}
}
