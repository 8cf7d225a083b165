package client

import "context"

// IdentityMapper resolves the owner/owner_group strings NFSv4 attaches
// to GETATTR/SETATTR replies and requests to and from local uid/gid,
// specified only as an external request/reply contract (spec §1, §4.6
// "identity mapping"; original IdMap.h). This package ships no
// implementation: a deployment supplies one backed by its own
// directory service.
type IdentityMapper interface {
	// NameToUID resolves an NFSv4 owner string (e.g. "bob@example.com")
	// to a local uid.
	NameToUID(ctx context.Context, name string) (uid uint32, err error)
	// NameToGID resolves an NFSv4 owner_group string to a local gid.
	NameToGID(ctx context.Context, name string) (gid uint32, err error)
	// UIDToName renders a local uid as the owner string to send the
	// server.
	UIDToName(ctx context.Context, uid uint32) (name string, err error)
	// GIDToName renders a local gid as the owner_group string to send
	// the server.
	GIDToName(ctx context.Context, gid uint32) (name string, err error)
}
