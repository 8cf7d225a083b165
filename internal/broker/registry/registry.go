// Package registry implements the broker's node registry (spec §4.2.1):
// the authoritative table of every node a process has registered, its
// published endpoints, and the global/per-process reference counts that
// gate when a node record can be torn down.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	mberrors "github.com/alxayo/mediabroker/internal/errors"
	"github.com/alxayo/mediabroker/internal/logger"
)

// Kind is a bitmask of node capabilities (producer, consumer, ...).
type Kind uint32

const (
	KindProducer Kind = 1 << iota
	KindConsumer
	KindFileInterface
	KindControllable
	KindTimeSource
	KindBufferConsumer
)

// Has reports whether mask includes all of want.
func (mask Kind) Has(want Kind) bool { return mask&want == want }

// Endpoint is one published input or output of a node. Format is left
// opaque here (an `any`) so the registry doesn't need to import the
// format manager — callers pass whatever comparable value the format
// manager handed them.
type Endpoint struct {
	Port   string
	Name   string
	Format any
}

// Notifier receives registry lifecycle events. The notification manager
// (internal/broker/notify) implements this; the registry only depends on
// the interface to avoid an import cycle.
type Notifier interface {
	Publish(kind string, nodeID int32)
}

type noopNotifier struct{}

func (noopNotifier) Publish(string, int32) {}

// Node is the registry's record for one registered node.
type Node struct {
	ID           int32
	AddonID      int32
	FlavorID     int32
	Name         string
	Kinds        Kind
	ControlPort  string
	Owner        string // owning process id
	HintX, HintY int32

	mu            sync.Mutex
	globalRef     int32
	perProcessRef map[string]int32
	inputs        []Endpoint
	outputs       []Endpoint
}

// checkInvariant verifies the sum of per-process refs equals the global
// ref, logging an InvariantViolated error (never panicking) when it does
// not. Called under n.mu after every mutation in tests; a production
// build pays the cost too since the sum is cheap relative to the lock
// already held.
func (n *Node) checkInvariant() {
	var sum int32
	for _, v := range n.perProcessRef {
		sum += v
	}
	if sum != n.globalRef {
		err := mberrors.NewInvariantViolated("registry.checkInvariant", fmt.Errorf("node %d refcount invariant violated: global=%d sum(per-process)=%d", n.ID, n.globalRef, sum))
		logger.Logger().Error("registry: refcount invariant violated", "error", err)
	}
}

// GlobalRef returns the node's current global reference count.
func (n *Node) GlobalRef() int32 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.globalRef
}

// Inputs returns a snapshot copy of the node's published inputs.
func (n *Node) Inputs() []Endpoint {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Endpoint, len(n.inputs))
	copy(out, n.inputs)
	return out
}

// Outputs returns a snapshot copy of the node's published outputs.
func (n *Node) Outputs() []Endpoint {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Endpoint, len(n.outputs))
	copy(out, n.outputs)
	return out
}

// LiveInfo is the reduced record returned by Live-node-info and
// Get-live-nodes.
type LiveInfo struct {
	ID    int32
	Name  string
	HintX int32
	HintY int32
	Kinds Kind
}

// Filter narrows Get-live-nodes. A zero value matches every node.
type Filter struct {
	InputFormat   any
	OutputFormat  any
	NamePattern   string // single trailing wildcard ("foo*") or exact
	RequiredKinds Kind
}

func (f Filter) matchesName(name string) bool {
	if f.NamePattern == "" {
		return true
	}
	if strings.HasSuffix(f.NamePattern, "*") {
		return strings.HasPrefix(name, strings.TrimSuffix(f.NamePattern, "*"))
	}
	return name == f.NamePattern
}

func formatCompatible(want, have any) bool {
	if want == nil {
		return true
	}
	return want == have
}

// Registry is the broker's thread-safe node table. The zero value is not
// usable; construct with New.
type Registry struct {
	mu       sync.RWMutex
	nodes    map[int32]*Node
	nextID   int32
	notifier Notifier
}

// New creates an empty registry. notifier may be nil, in which case
// lifecycle events are dropped (useful for tests that don't care about
// notifications).
func New(notifier Notifier) *Registry {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Registry{nodes: make(map[int32]*Node), notifier: notifier}
}

// Register creates a new node record, owned by owner, with global and
// per-process refcount both 1. The broker assigns the next monotone id.
func (r *Registry) Register(addonID, flavorID int32, name string, kinds Kind, controlPort, owner string) (*Node, error) {
	if owner == "" {
		return nil, mberrors.NewArgument("registry.Register", fmt.Errorf("owner must not be empty"))
	}
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	n := &Node{
		ID:            id,
		AddonID:       addonID,
		FlavorID:      flavorID,
		Name:          name,
		Kinds:         kinds,
		ControlPort:   controlPort,
		Owner:         owner,
		globalRef:     1,
		perProcessRef: map[string]int32{owner: 1},
	}
	n.checkInvariant()
	r.nodes[id] = n
	r.mu.Unlock()

	if kinds.Has(KindProducer) {
		// Open Question (a): warn, don't reject, when a producer-kind
		// node registers with no endpoints yet — it may publish them
		// moments later.
		logger.Logger().Warn("producer node registered with no endpoints yet", "node_id", id, "name", name)
	}
	r.notifier.Publish("node-created", id)
	return n, nil
}

// Unregister removes the node record. Fails if caller is not the owning
// process; if refcounts are non-zero it warns but still proceeds.
func (r *Registry) Unregister(nodeID int32, process string) (addonID, flavorID int32, err error) {
	r.mu.Lock()
	n, ok := r.nodes[nodeID]
	if !ok {
		r.mu.Unlock()
		return 0, 0, mberrors.NewNotFound("registry.Unregister", fmt.Errorf("node %d not found", nodeID))
	}
	if n.Owner != process {
		r.mu.Unlock()
		return 0, 0, mberrors.NewPermission("registry.Unregister", fmt.Errorf("process %s does not own node %d", process, nodeID))
	}
	n.mu.Lock()
	if n.globalRef != 0 {
		logger.Logger().Warn("unregistering node with non-zero refcount", "node_id", nodeID, "global_ref", n.globalRef)
	}
	n.mu.Unlock()
	delete(r.nodes, nodeID)
	r.mu.Unlock()

	r.notifier.Publish("node-deleted", nodeID)
	return n.AddonID, n.FlavorID, nil
}

// GetCloneForID atomically increments both the process's and the
// global refcount and returns the node descriptor.
func (r *Registry) GetCloneForID(nodeID int32, process string) (*Node, error) {
	r.mu.RLock()
	n, ok := r.nodes[nodeID]
	r.mu.RUnlock()
	if !ok {
		return nil, mberrors.NewNotFound("registry.GetCloneForID", fmt.Errorf("node %d not found", nodeID))
	}
	n.mu.Lock()
	n.globalRef++
	n.perProcessRef[process]++
	n.checkInvariant()
	n.mu.Unlock()
	return n, nil
}

// Release atomically decrements both refcounts; when the per-process
// count reaches zero the entry for that process is erased.
func (r *Registry) Release(nodeID int32, process string) error {
	r.mu.RLock()
	n, ok := r.nodes[nodeID]
	r.mu.RUnlock()
	if !ok {
		return mberrors.NewNotFound("registry.Release", fmt.Errorf("node %d not found", nodeID))
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.perProcessRef[process] <= 0 {
		return mberrors.NewState("registry.Release", fmt.Errorf("process %s holds no reference to node %d", process, nodeID))
	}
	n.globalRef--
	n.perProcessRef[process]--
	if n.perProcessRef[process] == 0 {
		delete(n.perProcessRef, process)
	}
	n.checkInvariant()
	return nil
}

// PublishInputs replaces the published input endpoint list for a node.
func (r *Registry) PublishInputs(nodeID int32, inputs []Endpoint) error {
	return r.publish(nodeID, inputs, true)
}

// PublishOutputs replaces the published output endpoint list for a node.
func (r *Registry) PublishOutputs(nodeID int32, outputs []Endpoint) error {
	return r.publish(nodeID, outputs, false)
}

func (r *Registry) publish(nodeID int32, eps []Endpoint, inputs bool) error {
	r.mu.RLock()
	n, ok := r.nodes[nodeID]
	r.mu.RUnlock()
	if !ok {
		return mberrors.NewNotFound("registry.publish", fmt.Errorf("node %d not found", nodeID))
	}
	cp := make([]Endpoint, len(eps))
	copy(cp, eps)
	n.mu.Lock()
	if inputs {
		n.inputs = cp
	} else {
		n.outputs = cp
	}
	n.mu.Unlock()
	return nil
}

// FindNodeForPort scans the registry for the node whose control port,
// or any published input/output port, matches port.
func (r *Registry) FindNodeForPort(port string) (int32, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, n := range r.nodes {
		n.mu.Lock()
		match := n.ControlPort == port
		if !match {
			for _, ep := range n.inputs {
				if ep.Port == port {
					match = true
					break
				}
			}
		}
		if !match {
			for _, ep := range n.outputs {
				if ep.Port == port {
					match = true
					break
				}
			}
		}
		n.mu.Unlock()
		if match {
			return id, nil
		}
	}
	return 0, mberrors.NewNotFound("registry.FindNodeForPort", fmt.Errorf("no node publishes port %q", port))
}

// LiveNodeInfo returns the reduced live record for a node.
func (r *Registry) LiveNodeInfo(nodeID int32) (LiveInfo, error) {
	r.mu.RLock()
	n, ok := r.nodes[nodeID]
	r.mu.RUnlock()
	if !ok {
		return LiveInfo{}, mberrors.NewNotFound("registry.LiveNodeInfo", fmt.Errorf("node %d not found", nodeID))
	}
	return LiveInfo{ID: n.ID, Name: n.Name, HintX: n.HintX, HintY: n.HintY, Kinds: n.Kinds}, nil
}

// GetInstancesFor returns every node id instantiated from the given
// add-on/flavor pair.
func (r *Registry) GetInstancesFor(addonID, flavorID int32) []int32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []int32
	for id, n := range r.nodes {
		if n.AddonID == addonID && n.FlavorID == flavorID {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// GetLiveNodes returns live records matching filter, capped at limit
// (limit<=0 means unlimited).
func (r *Registry) GetLiveNodes(filter Filter, limit int) []LiveInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int32, 0, len(r.nodes))
	for id := range r.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []LiveInfo
	for _, id := range ids {
		n := r.nodes[id]
		n.mu.Lock()
		ok := filter.matchesName(n.Name) && n.Kinds.Has(filter.RequiredKinds)
		if ok && filter.InputFormat != nil {
			ok = false
			for _, ep := range n.inputs {
				if formatCompatible(filter.InputFormat, ep.Format) {
					ok = true
					break
				}
			}
		}
		if ok && filter.OutputFormat != nil {
			ok = false
			for _, ep := range n.outputs {
				if formatCompatible(filter.OutputFormat, ep.Format) {
					ok = true
					break
				}
			}
		}
		info := LiveInfo{ID: n.ID, Name: n.Name, HintX: n.HintX, HintY: n.HintY, Kinds: n.Kinds}
		n.mu.Unlock()
		if !ok {
			continue
		}
		out = append(out, info)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// DropProcess implements the app manager's cascading "team-departed"
// cleanup (spec §4.2.7): every per-process ref held by process is
// erased, along with the global ref it backed. Nodes owned by process
// are removed outright regardless of remaining global refcount, mirroring
// the broker's process-death handling for abandoned records. Returns the
// node ids that were owned by process, so callers (appmgr) can cascade
// into the buffer registry and notification manager next.
//
// Surviving nodes connected to an owned node are also scrubbed: a
// connection's name is published identically on both its producer's
// output and its consumer's input (mediaroster.Connect's doing), so it
// doubles as the correlation key between the two sides without either
// side needing to know the other's node id. Every surviving endpoint
// whose Name matches one of the dying node's published endpoint names
// is dropped from its peer's list, the peer's endpoints are republished,
// and a synthetic connection-broken event fires for it — client B's
// view of a connection to now-dead client A's node.
func (r *Registry) DropProcess(process string) []int32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var owned []int32
	deadNames := make(map[string]bool)
	for id, n := range r.nodes {
		n.mu.Lock()
		if held, ok := n.perProcessRef[process]; ok {
			n.globalRef -= held
			delete(n.perProcessRef, process)
		}
		isOwner := n.Owner == process
		if isOwner {
			for _, ep := range n.inputs {
				deadNames[ep.Name] = true
			}
			for _, ep := range n.outputs {
				deadNames[ep.Name] = true
			}
		}
		n.mu.Unlock()
		if isOwner {
			owned = append(owned, id)
			delete(r.nodes, id)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i] < owned[j] })

	if len(deadNames) > 0 {
		r.scrubSurvivingEndpoints(deadNames)
	}
	return owned
}

// scrubSurvivingEndpoints drops every endpoint named in deadNames from
// every remaining node's published inputs/outputs, and fires a
// connection-broken event for each node it touched. Called with r.mu
// already held for writing.
func (r *Registry) scrubSurvivingEndpoints(deadNames map[string]bool) {
	for id, n := range r.nodes {
		n.mu.Lock()
		before := len(n.inputs) + len(n.outputs)
		n.inputs = filterEndpoints(n.inputs, deadNames)
		n.outputs = filterEndpoints(n.outputs, deadNames)
		touched := before != len(n.inputs)+len(n.outputs)
		n.mu.Unlock()
		if touched {
			logger.Logger().Warn("registry: republished endpoints after peer process died", "node_id", id)
			r.notifier.Publish("connection-broken", id)
		}
	}
}

func filterEndpoints(eps []Endpoint, drop map[string]bool) []Endpoint {
	out := eps[:0]
	for _, ep := range eps {
		if !drop[ep.Name] {
			out = append(out, ep)
		}
	}
	return out
}

// Count returns the number of live node records, for metrics.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}
