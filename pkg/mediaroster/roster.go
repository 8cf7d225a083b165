// Package mediaroster implements the client façade of spec §4.4: a
// per-process singleton sitting on top of the broker's registries,
// caching acquired node references and exposing synchronous APIs for
// every broker protocol in §4.2 without every caller having to juggle
// six registries directly.
package mediaroster

import (
	"fmt"
	"sync"

	"github.com/alxayo/mediabroker/internal/broker/addon"
	"github.com/alxayo/mediabroker/internal/broker/buffer"
	"github.com/alxayo/mediabroker/internal/broker/defaults"
	"github.com/alxayo/mediabroker/internal/broker/format"
	"github.com/alxayo/mediabroker/internal/broker/notify"
	"github.com/alxayo/mediabroker/internal/broker/registry"
	mberrors "github.com/alxayo/mediabroker/internal/errors"
	"github.com/alxayo/mediabroker/internal/port"
	"github.com/alxayo/mediabroker/pkg/medianode"
)

// formatKey is format.Description minus its broker-assigned EncodingID,
// so a caller's not-yet-registered description hashes the same as the
// interned one it matches.
type formatKey struct {
	Family   format.Family
	FamilyID int64
	GUID     [16]byte
	Name     string
}

func keyOf(d format.Description) formatKey {
	return formatKey{Family: d.Family, FamilyID: d.FamilyID, GUID: d.GUID, Name: d.Name}
}

type cachedNode struct {
	node  *registry.Node
	count int32
}

// Roster is the per-process client façade (spec §4.4).
type Roster struct {
	process string

	nodes       *registry.Registry
	addons      *addon.Registry
	buffers     *buffer.Registry
	formats     *format.Manager
	defaultsMgr *defaults.Manager
	notifier    *notify.Manager

	ports        PortDirectory
	manufacturer Manufacturer
	host         Host

	replies   *medianode.MapReplyPorts
	replyPool *port.Pool

	mu          sync.Mutex
	cache       map[int32]*cachedNode
	outputs     map[int32][]registry.Endpoint
	inputs      map[int32][]registry.Endpoint
	formatCache map[formatKey]format.Description
}

// New creates a roster for process, wired to the broker's registries
// and a port directory resolving control-port names to live ports.
func New(
	process string,
	nodes *registry.Registry,
	addons *addon.Registry,
	buffers *buffer.Registry,
	formats *format.Manager,
	defaultsMgr *defaults.Manager,
	notifier *notify.Manager,
	ports PortDirectory,
) *Roster {
	return &Roster{
		process:     process,
		nodes:       nodes,
		addons:      addons,
		buffers:     buffers,
		formats:     formats,
		defaultsMgr: defaultsMgr,
		notifier:    notifier,
		ports:       ports,
		replies:     medianode.NewMapReplyPorts(),
		replyPool:   port.NewPool(4),
		cache:       make(map[int32]*cachedNode),
		outputs:     make(map[int32][]registry.Endpoint),
		inputs:      make(map[int32][]registry.Endpoint),
		formatCache: make(map[formatKey]format.Description),
	}
}

// SetManufacturer binds the local add-on host this process uses to
// manufacture non-global flavor instances. Nil leaves this process
// unable to instantiate anything locally (it can still Connect to
// nodes other processes registered).
func (r *Roster) SetManufacturer(m Manufacturer) { r.manufacturer = m }

// SetHost binds the add-on host used for global flavor instantiation.
// Nil makes global instantiation fall back to this roster's own
// Manufacturer, which is the correct behavior for a single-process
// deployment where "the add-on host" and "this roster" are the same
// thing.
func (r *Roster) SetHost(h Host) { r.host = h }

// SetDefaults binds the default-endpoint manager after construction,
// for the common case where that manager's own Instantiator is this
// same Roster (defaults.New needs the roster; the roster's New needs
// nowhere to put a manager that doesn't exist yet).
func (r *Roster) SetDefaults(d *defaults.Manager) { r.defaultsMgr = d }

// Acquire resolves nodeID to its registry record, incrementing both the
// global and this process's reference count on first acquisition and a
// purely local count on every subsequent one — the "local cache of
// acquired node references" spec §4.4 requires.
func (r *Roster) Acquire(nodeID int32) (*registry.Node, error) {
	r.mu.Lock()
	if c, ok := r.cache[nodeID]; ok {
		c.count++
		r.mu.Unlock()
		return c.node, nil
	}
	r.mu.Unlock()

	n, err := r.nodes.GetCloneForID(nodeID, r.process)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[nodeID] = &cachedNode{node: n, count: 1}
	r.mu.Unlock()
	return n, nil
}

// Release drops one local acquisition of nodeID. Only the broker-level
// reference registry.GetCloneForID minted on this process's first
// Acquire is ever released back to the registry; every acquisition
// after the first is satisfied entirely from the local cache, so it is
// this local count reaching zero — not every call to Release — that
// triggers the underlying registry.Release.
func (r *Roster) Release(nodeID int32) error {
	r.mu.Lock()
	c, ok := r.cache[nodeID]
	if !ok {
		r.mu.Unlock()
		return mberrors.NewState("mediaroster.Release", fmt.Errorf("process %s holds no cached reference to node %d", r.process, nodeID))
	}
	c.count--
	drained := c.count <= 0
	if drained {
		delete(r.cache, nodeID)
	}
	r.mu.Unlock()
	if !drained {
		return nil
	}
	return r.nodes.Release(nodeID, r.process)
}

// Close releases every node reference this roster has acquired,
// mirroring the teacher's Server.Stop cascading-cleanup shape.
func (r *Roster) Close() error {
	r.mu.Lock()
	cache := r.cache
	r.cache = make(map[int32]*cachedNode)
	r.mu.Unlock()

	var firstErr error
	for id := range cache {
		if err := r.nodes.Release(id, r.process); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RegisterFormat interns desc through a local read-through cache before
// falling back to a broker round trip, so repeatedly registering an
// already-known description never touches the format manager's lock
// after the first time this process has seen it.
func (r *Roster) RegisterFormat(desc format.Description) format.Description {
	key := keyOf(desc)

	r.mu.Lock()
	if cached, ok := r.formatCache[key]; ok {
		r.mu.Unlock()
		return cached
	}
	r.mu.Unlock()

	full := r.formats.Register(desc)

	r.mu.Lock()
	r.formatCache[key] = full
	r.mu.Unlock()
	return full
}

// LookupFormat is RegisterFormat's read-only counterpart.
func (r *Roster) LookupFormat(desc format.Description) (format.Description, bool) {
	key := keyOf(desc)

	r.mu.Lock()
	if cached, ok := r.formatCache[key]; ok {
		r.mu.Unlock()
		return cached, true
	}
	r.mu.Unlock()

	full, ok := r.formats.Lookup(desc)
	if !ok {
		return format.Description{}, false
	}

	r.mu.Lock()
	r.formatCache[key] = full
	r.mu.Unlock()
	return full, true
}

// Unregister forwards to the node registry as this process.
func (r *Roster) Unregister(nodeID int32) (addonID, flavorID int32, err error) {
	return r.nodes.Unregister(nodeID, r.process)
}

// FindNodeForPort forwards to the node registry.
func (r *Roster) FindNodeForPort(portName string) (int32, error) {
	return r.nodes.FindNodeForPort(portName)
}

// LiveNodeInfo forwards to the node registry.
func (r *Roster) LiveNodeInfo(nodeID int32) (registry.LiveInfo, error) {
	return r.nodes.LiveNodeInfo(nodeID)
}

// GetLiveNodes forwards to the node registry.
func (r *Roster) GetLiveNodes(filter registry.Filter, limit int) []registry.LiveInfo {
	return r.nodes.GetLiveNodes(filter, limit)
}

// GetInstancesFor forwards to the node registry.
func (r *Roster) GetInstancesFor(addonID, flavorID int32) []int32 {
	return r.nodes.GetInstancesFor(addonID, flavorID)
}

// RegisterBuffer forwards to the buffer registry as this process.
func (r *Roster) RegisterBuffer(regionID, offset, size int32, flags uint32) (*buffer.Buffer, error) {
	return r.buffers.RegisterBuffer(regionID, offset, size, flags, r.process)
}

// LookupBuffer forwards to the buffer registry as this process.
func (r *Roster) LookupBuffer(bufferID int32) (*buffer.Buffer, *buffer.Region, error) {
	return r.buffers.Lookup(bufferID, r.process)
}

// ReleaseBuffer forwards to the buffer registry as this process.
func (r *Roster) ReleaseBuffer(bufferID int32) error {
	return r.buffers.Release(bufferID, r.process)
}

// DefaultEndpoint forwards to the default-endpoint manager.
func (r *Roster) DefaultEndpoint(slot defaults.Slot) (int32, error) {
	return r.defaultsMgr.Get(slot)
}

// SetDefaultEndpoint forwards to the default-endpoint manager.
func (r *Roster) SetDefaultEndpoint(slot defaults.Slot, nodeID int32) {
	r.defaultsMgr.Set(slot, nodeID)
}

// Subscribe forwards to the notification manager.
func (r *Roster) Subscribe(messenger notify.Messenger, node int32, mask notify.EventKind) uint64 {
	return r.notifier.Subscribe(messenger, node, mask)
}

// Unsubscribe forwards to the notification manager.
func (r *Roster) Unsubscribe(id uint64) bool {
	return r.notifier.Unsubscribe(id)
}
