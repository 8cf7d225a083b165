package client

import (
	"context"
	"fmt"

	nfserrors "github.com/alxayo/mediabroker/internal/nfs4/errors"
	"github.com/alxayo/mediabroker/internal/nfs4/rpc"
	"github.com/alxayo/mediabroker/internal/nfs4/xdr"
)

// NFS4 program/version/procedure numbers, RFC 3530 §2.
const (
	program           uint32 = 100003
	version           uint32 = 4
	procedureNull     uint32 = 0
	procedureCompound uint32 = 1
)

// Compound operation codes actually used by this client, RFC 3530
// §14.2. Operations this client never sends (ACCESS, CREATE, RENAME,
// ...) are omitted.
const (
	opClose              uint32 = 4
	opDelegReturn        uint32 = 8
	opGetFH              uint32 = 10
	opLock               uint32 = 12
	opLookup             uint32 = 15
	opOpen               uint32 = 18
	opOpenConfirm        uint32 = 20
	opPutFH              uint32 = 22
	opReadDir            uint32 = 26
	opReleaseLockOwner   uint32 = 39
	opSetClientID        uint32 = 35
	opSetClientIDConfirm uint32 = 36
)

// compoundOps implements nfsOps by building real NFSv4 compounds and
// sending them over an rpc.Server (compound.go is what actually
// exercises internal/nfs4/xdr and internal/nfs4/rpc end to end; tests
// exercise OpenState/FileSystem reclaim logic against a fake nfsOps
// instead).
type compoundOps struct {
	server *rpc.Server
}

// newCompoundOps binds server as the live NFSv4 transport for a
// FileSystem.
func newCompoundOps(server *rpc.Server) *compoundOps {
	return &compoundOps{server: server}
}

func buildCompound(ops ...[]byte) []byte {
	total := 12
	for _, op := range ops {
		total += len(op)
	}
	e := xdr.NewEncoder(total)
	e.PutString("")
	e.PutUint32(0)
	e.PutUint32(uint32(len(ops)))
	buf := e.Bytes()
	for _, op := range ops {
		buf = append(buf, op...)
	}
	return buf
}

func opEncodePutFH(handle []byte) ([]byte, error) {
	handle, err := rpc.DecodeFileHandle(handle)
	if err != nil {
		return nil, err
	}
	e := xdr.NewEncoder(8 + len(handle))
	e.PutUint32(opPutFH)
	e.PutOpaque(handle)
	return e.Bytes(), nil
}

func opEncodeGetFH() []byte {
	e := xdr.NewEncoder(4)
	e.PutUint32(opGetFH)
	return e.Bytes()
}

func (c *compoundOps) send(ctx context.Context, op string, ops ...[]byte) (*xdr.Decoder, uint32, error) {
	call := rpc.Call{Program: program, Version: version, Procedure: procedureCompound, Args: buildCompound(ops...)}
	reply, err := c.server.SendCall(ctx, call)
	if err != nil {
		return nil, 0, err
	}
	d := xdr.NewDecoder(reply.Body)
	status, err := d.GetUint32()
	if err != nil {
		return nil, 0, fmt.Errorf("nfs4 %s: %w", op, err)
	}
	if _, err := d.GetString(); err != nil {
		return nil, 0, fmt.Errorf("nfs4 %s: %w", op, err)
	}
	if _, err := d.GetUint32(); err != nil { // numres
		return nil, 0, fmt.Errorf("nfs4 %s: %w", op, err)
	}
	return d, status, nil
}

// nextResult reads one compound result's opcode and per-op status,
// stopping the caller's decode at the first operation NFSv4 itself
// stopped processing at (a compound reply carries results only for
// the operations actually attempted).
func nextResult(d *xdr.Decoder) (opcode uint32, status nfserrors.Status, err error) {
	oc, err := d.GetUint32()
	if err != nil {
		return 0, 0, err
	}
	st, err := d.GetUint32()
	if err != nil {
		return 0, 0, err
	}
	return oc, nfserrors.Status(st), nil
}

func (c *compoundOps) SetClientID(ctx context.Context, verifier xdr.Verifier, id []byte) (uint64, xdr.Verifier, nfserrors.Status, error) {
	args, err := xdr.MarshalSetClientID(verifier, id)
	if err != nil {
		return 0, xdr.Verifier{}, 0, err
	}
	opArgs := xdr.NewEncoder(4 + len(args))
	opArgs.PutUint32(opSetClientID)
	opArgs.PutFixedOpaque(args)

	d, _, err := c.send(ctx, "SetClientID", opArgs.Bytes())
	if err != nil {
		return 0, xdr.Verifier{}, 0, err
	}
	_, status, err := nextResult(d)
	if err != nil {
		return 0, xdr.Verifier{}, 0, err
	}
	if status != nfserrors.OK {
		return 0, xdr.Verifier{}, status, nil
	}
	clientID, err := d.GetUint64()
	if err != nil {
		return 0, xdr.Verifier{}, 0, err
	}
	var confirm xdr.Verifier
	raw, err := d.GetFixedOpaque(8)
	if err != nil {
		return 0, xdr.Verifier{}, 0, err
	}
	copy(confirm[:], raw)
	return clientID, confirm, status, nil
}

func (c *compoundOps) SetClientIDConfirm(ctx context.Context, clientID uint64, verifier xdr.Verifier) (nfserrors.Status, error) {
	e := xdr.NewEncoder(20)
	e.PutUint32(opSetClientIDConfirm)
	e.PutUint64(clientID)
	e.PutFixedOpaque(verifier[:])

	d, _, err := c.send(ctx, "SetClientIDConfirm", e.Bytes())
	if err != nil {
		return 0, err
	}
	_, status, err := nextResult(d)
	return status, err
}

func (c *compoundOps) Open(ctx context.Context, handle []byte, claim ClaimType, seq uint32, owner OpenOwner, delegWanted DelegationType) (StateID, bool, DelegationGrant, nfserrors.Status, error) {
	openArgs := xdr.NewEncoder(64 + len(owner.Owner))
	openArgs.PutUint32(opOpen)
	openArgs.PutUint32(seq)
	openArgs.PutUint32(uint32(claim))
	openArgs.PutUint64(owner.ClientID)
	openArgs.PutOpaque(owner.Owner)
	openArgs.PutUint32(uint32(delegWanted))

	putFH, err := opEncodePutFH(handle)
	if err != nil {
		return StateID{}, false, DelegationGrant{}, 0, err
	}
	d, _, err := c.send(ctx, "Open", putFH, openArgs.Bytes())
	if err != nil {
		return StateID{}, false, DelegationGrant{}, 0, err
	}

	if _, status, err := nextResult(d); err != nil || status != nfserrors.OK {
		return StateID{}, false, DelegationGrant{}, status, err
	}

	stateID, err := decodeStateID(d)
	if err != nil {
		return StateID{}, false, DelegationGrant{}, 0, err
	}
	confirm, err := d.GetBool()
	if err != nil {
		return StateID{}, false, DelegationGrant{}, 0, err
	}
	delegType, err := d.GetUint32()
	if err != nil {
		return StateID{}, false, DelegationGrant{}, 0, err
	}
	recall, err := d.GetBool()
	if err != nil {
		return StateID{}, false, DelegationGrant{}, 0, err
	}

	if _, status, err := nextResult(d); err != nil || status != nfserrors.OK {
		return stateID, confirm, DelegationGrant{Type: DelegationType(delegType), Recall: recall}, status, err
	}

	return stateID, confirm, DelegationGrant{Type: DelegationType(delegType), Recall: recall}, nfserrors.OK, nil
}

func (c *compoundOps) ConfirmOpen(ctx context.Context, handle []byte, stateID StateID, seq uint32) (nfserrors.Status, error) {
	e := xdr.NewEncoder(24)
	e.PutUint32(opOpenConfirm)
	encodeStateID(e, stateID)
	e.PutUint32(seq)

	putFH, err := opEncodePutFH(handle)
	if err != nil {
		return 0, err
	}
	d, _, err := c.send(ctx, "OpenConfirm", putFH, e.Bytes())
	if err != nil {
		return 0, err
	}
	if _, status, err := nextResult(d); err != nil || status != nfserrors.OK {
		return status, err
	}
	_, status, err := nextResult(d)
	return status, err
}

func (c *compoundOps) Close(ctx context.Context, handle []byte, seq uint32, stateID StateID) (nfserrors.Status, error) {
	e := xdr.NewEncoder(24)
	e.PutUint32(opClose)
	e.PutUint32(seq)
	encodeStateID(e, stateID)

	putFH, err := opEncodePutFH(handle)
	if err != nil {
		return 0, err
	}
	d, _, err := c.send(ctx, "Close", putFH, e.Bytes())
	if err != nil {
		return 0, err
	}
	if _, status, err := nextResult(d); err != nil || status != nfserrors.OK {
		return status, err
	}
	_, status, err := nextResult(d)
	return status, err
}

func (c *compoundOps) DelegReturn(ctx context.Context, handle []byte, stateID StateID) (nfserrors.Status, error) {
	e := xdr.NewEncoder(20)
	e.PutUint32(opDelegReturn)
	encodeStateID(e, stateID)

	putFH, err := opEncodePutFH(handle)
	if err != nil {
		return 0, err
	}
	d, _, err := c.send(ctx, "DelegReturn", putFH, e.Bytes())
	if err != nil {
		return 0, err
	}
	if _, status, err := nextResult(d); err != nil || status != nfserrors.OK {
		return status, err
	}
	_, status, err := nextResult(d)
	return status, err
}

func (c *compoundOps) Lock(ctx context.Context, handle []byte, owner OpenOwner, stateID StateID, lockType LockType, rng LockRange, reclaim bool) (nfserrors.Status, error) {
	e := xdr.NewEncoder(48 + len(owner.Owner))
	e.PutUint32(opLock)
	e.PutUint32(uint32(lockType))
	e.PutBool(reclaim)
	e.PutUint64(rng.Offset)
	e.PutUint64(rng.Length)
	encodeStateID(e, stateID)
	e.PutUint64(owner.ClientID)
	e.PutOpaque(owner.Owner)

	putFH, err := opEncodePutFH(handle)
	if err != nil {
		return 0, err
	}
	d, _, err := c.send(ctx, "Lock", putFH, e.Bytes())
	if err != nil {
		return 0, err
	}
	if _, status, err := nextResult(d); err != nil || status != nfserrors.OK {
		return status, err
	}
	_, status, err := nextResult(d)
	return status, err
}

func (c *compoundOps) ReleaseLockOwner(ctx context.Context, owner OpenOwner) (nfserrors.Status, error) {
	e := xdr.NewEncoder(16 + len(owner.Owner))
	e.PutUint32(opReleaseLockOwner)
	e.PutUint64(owner.ClientID)
	e.PutOpaque(owner.Owner)

	d, status, err := c.send(ctx, "ReleaseLockOwner", e.Bytes())
	if err != nil {
		return 0, err
	}
	_, opStatus, err := nextResult(d)
	if err != nil {
		return nfserrors.Status(status), err
	}
	return opStatus, nil
}

func (c *compoundOps) ReadDir(ctx context.Context, handle []byte, changeInfoHint uint64) ([]DirEntry, uint64, nfserrors.Status, error) {
	e := xdr.NewEncoder(24)
	e.PutUint32(opReadDir)
	e.PutUint64(0) // cookie
	e.PutUint64(changeInfoHint)

	putFH, err := opEncodePutFH(handle)
	if err != nil {
		return nil, 0, 0, err
	}
	d, _, err := c.send(ctx, "ReadDir", putFH, e.Bytes())
	if err != nil {
		return nil, 0, 0, err
	}
	if _, status, err := nextResult(d); err != nil || status != nfserrors.OK {
		return nil, 0, status, err
	}

	changeInfo, err := d.GetUint64()
	if err != nil {
		return nil, 0, 0, err
	}
	count, err := d.GetUint32()
	if err != nil {
		return nil, 0, 0, err
	}
	entries := make([]DirEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := d.GetString()
		if err != nil {
			return nil, 0, 0, err
		}
		fileID, err := d.GetUint64()
		if err != nil {
			return nil, 0, 0, err
		}
		entries = append(entries, DirEntry{Name: name, Inode: fileID})
	}
	return entries, changeInfo, nfserrors.OK, nil
}

func (c *compoundOps) LookupFSID(ctx context.Context, parentHandle []byte, name string) ([]byte, [2]uint64, nfserrors.Status, error) {
	lookupArgs := xdr.NewEncoder(8 + len(name))
	lookupArgs.PutUint32(opLookup)
	lookupArgs.PutString(name)

	putFH, err := opEncodePutFH(parentHandle)
	if err != nil {
		return nil, [2]uint64{}, 0, err
	}
	d, _, err := c.send(ctx, "Lookup", putFH, lookupArgs.Bytes(), opEncodeGetFH())
	if err != nil {
		return nil, [2]uint64{}, 0, err
	}

	if _, status, err := nextResult(d); err != nil || status != nfserrors.OK {
		return nil, [2]uint64{}, status, err
	}
	if _, status, err := nextResult(d); err != nil || status != nfserrors.OK {
		return nil, [2]uint64{}, status, err
	}

	handle, err := d.GetOpaque()
	if err != nil {
		return nil, [2]uint64{}, 0, err
	}
	handle, err = rpc.DecodeFileHandle(handle)
	if err != nil {
		return nil, [2]uint64{}, 0, err
	}
	major, err := d.GetUint64()
	if err != nil {
		return nil, [2]uint64{}, 0, err
	}
	minor, err := d.GetUint64()
	if err != nil {
		return nil, [2]uint64{}, 0, err
	}
	return handle, [2]uint64{major, minor}, nfserrors.OK, nil
}

func encodeStateID(e *xdr.Encoder, s StateID) {
	e.PutUint32(s.Seq)
	e.PutFixedOpaque(s.Other[:])
}

func decodeStateID(d *xdr.Decoder) (StateID, error) {
	seq, err := d.GetUint32()
	if err != nil {
		return StateID{}, err
	}
	other, err := d.GetFixedOpaque(12)
	if err != nil {
		return StateID{}, err
	}
	var s StateID
	s.Seq = seq
	copy(s.Other[:], other)
	return s, nil
}
