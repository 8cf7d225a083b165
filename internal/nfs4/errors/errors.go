// Package errors maps NFSv4 status codes onto the runtime's portable
// error taxonomy (internal/errors) and classifies which ones the RPC
// layer should snooze-and-retry versus escalate to a full reclaim.
package errors

import (
	"fmt"

	mberrors "github.com/alxayo/mediabroker/internal/errors"
)

// Status is an NFS4_* status code as carried in a compound reply.
type Status uint32

// Status codes actually referenced by this package, per RFC 3530 and
// the error table named in spec §4.6.
const (
	OK                Status = 0
	ERR_PERM          Status = 1
	ERR_NOENT         Status = 2
	ERR_IO            Status = 5
	ERR_NXIO          Status = 6
	ERR_ACCESS        Status = 13
	ERR_EXIST         Status = 17
	ERR_NOTDIR        Status = 20
	ERR_ISDIR         Status = 21
	ERR_FBIG          Status = 27
	ERR_NOSPC         Status = 28
	ERR_ROFS          Status = 30
	ERR_NAMETOOLONG   Status = 63
	ERR_NOTEMPTY      Status = 66
	ERR_STALE         Status = 70
	ERR_BADHANDLE     Status = 10001
	ERR_NOT_SYNC      Status = 10002
	ERR_BAD_COOKIE    Status = 10003
	ERR_NOTSUPP       Status = 10004
	ERR_TOOSMALL      Status = 10005
	ERR_SERVERFAULT   Status = 10006
	ERR_BADTYPE       Status = 10007
	ERR_DELAY         Status = 10008
	ERR_SAME          Status = 10009
	ERR_DENIED        Status = 10010
	ERR_EXPIRED       Status = 10011
	ERR_LOCKED        Status = 10012
	ERR_GRACE         Status = 10013
	ERR_FHEXPIRED     Status = 10014
	ERR_SHARE_DENIED  Status = 10015
	ERR_WRONGSEC      Status = 10016
	ERR_CLID_INUSE    Status = 10017
	ERR_RESOURCE      Status = 10018
	ERR_MOVED         Status = 10019
	ERR_NOFILEHANDLE  Status = 10020
	ERR_MINOR_VERS_MISMATCH Status = 10021
	ERR_STALE_CLIENTID Status = 10022
	ERR_STALE_STATEID  Status = 10023
	ERR_OLD_STATEID    Status = 10024
	ERR_BAD_STATEID    Status = 10025
	ERR_BAD_SEQID      Status = 10026
)

// Op describes the one protocol-level consequence an NFS4 status can
// have beyond "return an error": none, a bounded snooze-and-retry, or
// a full client-id/state reclaim.
type Op int

const (
	OpNone Op = iota
	OpRetry
	OpReclaim
)

// Classify reports what the caller should do about status before
// translating it to a portable error: transient DELAY/GRACE replies
// are retried in place, STALE_CLIENTID/STALE_STATEID/EXPIRED trigger a
// full reclaim (spec §4.6 "lease expiration triggers full reclaim").
func Classify(status Status) Op {
	switch status {
	case ERR_DELAY, ERR_GRACE:
		return OpRetry
	case ERR_STALE_CLIENTID, ERR_STALE_STATEID, ERR_EXPIRED:
		return OpReclaim
	default:
		return OpNone
	}
}

// ToPortable maps status onto the runtime's error.Kind taxonomy. The
// table is deliberately small: it covers the statuses spec §4.6 names
// explicitly plus the handful every compound reply can plausibly carry.
func ToPortable(op string, status Status) error {
	if status == OK {
		return nil
	}
	cause := fmt.Errorf("nfs4: %s", status)
	switch status {
	case ERR_STALE, ERR_NOENT, ERR_BADHANDLE, ERR_FHEXPIRED, ERR_MOVED:
		return mberrors.NewNotFound(op, cause)
	case ERR_PERM, ERR_ACCESS, ERR_ROFS:
		return mberrors.NewPermission(op, cause)
	case ERR_FBIG:
		return mberrors.New(mberrors.Resource, op, fmt.Errorf("nfs4: file too large"))
	case ERR_NOSPC, ERR_RESOURCE, ERR_SERVERFAULT:
		return mberrors.NewResource(op, cause)
	case ERR_DELAY, ERR_DENIED, ERR_LOCKED, ERR_GRACE:
		return mberrors.New(mberrors.Resource, op, fmt.Errorf("nfs4: would block"))
	case ERR_EXIST:
		return mberrors.NewState(op, cause)
	case ERR_BAD_STATEID, ERR_OLD_STATEID, ERR_STALE_STATEID, ERR_BAD_SEQID,
		ERR_STALE_CLIENTID, ERR_EXPIRED, ERR_CLID_INUSE:
		return mberrors.NewState(op, cause)
	case ERR_NOTSUPP, ERR_BADTYPE, ERR_WRONGSEC, ERR_MINOR_VERS_MISMATCH:
		return mberrors.NewArgument(op, cause)
	default:
		return mberrors.NewRemote(op, cause)
	}
}

func (s Status) String() string {
	if s == OK {
		return "NFS4_OK"
	}
	return fmt.Sprintf("NFS4ERR(%d)", uint32(s))
}
