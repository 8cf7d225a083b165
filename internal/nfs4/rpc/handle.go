package rpc

import (
	"errors"

	mberrors "github.com/alxayo/mediabroker/internal/errors"
)

// FileHandleLimit is RFC 3530's NFS4_FHSIZE: the largest opaque file
// handle a v4 server may hand back.
const FileHandleLimit = 128

// ErrHandleTooLarge is returned by DecodeFileHandle when the server
// sent a handle longer than FileHandleLimit. A file handle is the
// opaque identity every subsequent READ/WRITE/LOCK addresses; silently
// truncating it would make two distinct handles collide, so an
// oversize handle is treated the same as any other malformed wire
// field rather than quietly accepted.
var ErrHandleTooLarge = errors.New("rpc: file handle exceeds NFS4_FHSIZE")

// DecodeFileHandle validates a file handle read off the wire, and
// returns ErrHandleTooLarge instead of accepting (or truncating) one
// that exceeds FileHandleLimit.
func DecodeFileHandle(raw []byte) ([]byte, error) {
	if len(raw) > FileHandleLimit {
		return nil, mberrors.NewArgument("rpc.DecodeFileHandle", ErrHandleTooLarge)
	}
	return raw, nil
}
