// Package notify implements the broker's notification manager
// (spec §4.2.6): subscribers register for a node (or every node) and a
// set of event kinds; a dedicated worker goroutine dequeues published
// events and dispatches them to each matching subscriber's messenger,
// with a 100ms per-subscriber timeout.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/alxayo/mediabroker/internal/logger"
)

// EventKind is a bitmask of notification event kinds (spec §4.2.6).
type EventKind uint32

const (
	NodeCreated EventKind = 1 << iota
	NodeDeleted
	ConnectionMade
	ConnectionBroken
	BufferCreated
	BufferDeleted
	TransportState
	ParameterChanged
	FormatChanged
	WebChanged
	DefaultChanged
	NewParameterValue
	NodeStopped
	FlavorsChanged
	ErrorReported // only ever published automatically when a node reports an error
)

// AllKinds subscribes to every event kind explicitly, as an alternative
// to relying on the zero-value Mask wildcard.
const AllKinds = NodeCreated | NodeDeleted | ConnectionMade | ConnectionBroken |
	BufferCreated | BufferDeleted | TransportState | ParameterChanged |
	FormatChanged | WebChanged | DefaultChanged | NewParameterValue |
	NodeStopped | FlavorsChanged | ErrorReported

// eventKindByName maps the registry/broker's plain-string event names
// to their bitmask, so components that don't want to import this
// package's constants (e.g. internal/broker/registry) can still publish
// by name through the Notifier interface.
var eventKindByName = map[string]EventKind{
	"node-created":        NodeCreated,
	"node-deleted":        NodeDeleted,
	"connection-made":     ConnectionMade,
	"connection-broken":   ConnectionBroken,
	"buffer-created":      BufferCreated,
	"buffer-deleted":      BufferDeleted,
	"transport-state":     TransportState,
	"parameter-changed":   ParameterChanged,
	"format-changed":      FormatChanged,
	"web-changed":         WebChanged,
	"default-changed":     DefaultChanged,
	"new-parameter-value": NewParameterValue,
	"node-stopped":        NodeStopped,
	"flavors-changed":     FlavorsChanged,
	"error":               ErrorReported,
}

// WildcardNode matches a subscription or event filter against every
// node, per spec §4.2.6 ("node-or-wildcard").
const WildcardNode int32 = 0

// Event is one published notification.
type Event struct {
	Kind      EventKind
	NodeID    int32
	Data      map[string]any
	Timestamp time.Time
}

// Messenger delivers one event to a subscriber. Implementations should
// respect ctx's deadline; the dispatcher always calls with a 100ms
// timeout per spec §4.2.6.
type Messenger interface {
	Deliver(ctx context.Context, ev Event) error
}

// Subscription is one registered (messenger, node-or-wildcard,
// event-mask) tuple.
type Subscription struct {
	ID        uint64
	Messenger Messenger
	Node      int32 // WildcardNode matches any node
	Mask      EventKind
}

// Matches reports whether sub should receive an event for (node, kind).
// Resolves Open Question (c): when both the subscription's node is the
// wildcard and its mask is the zero value, the subscription matches
// every event for every node, rather than matching nothing.
func (sub Subscription) Matches(node int32, kind EventKind) bool {
	nodeMatch := sub.Node == WildcardNode || sub.Node == node
	if !nodeMatch {
		return false
	}
	if sub.Mask == 0 {
		return true
	}
	return sub.Mask&kind != 0
}

const queueDepth = 256
const dispatchTimeout = 100 * time.Millisecond

// Manager is the broker's notification dispatcher.
type Manager struct {
	mu     sync.RWMutex
	subs   map[uint64]Subscription
	nextID uint64

	queue chan Event
	done  chan struct{}
	wg    sync.WaitGroup
}

// New creates a notification manager and starts its dedicated dispatch
// worker. Call Close to stop it.
func New() *Manager {
	m := &Manager{
		subs:  make(map[uint64]Subscription),
		queue: make(chan Event, queueDepth),
		done:  make(chan struct{}),
	}
	m.wg.Add(1)
	go m.run()
	return m
}

// Subscribe registers a subscription and returns its id, used later to
// deregister by exact tuple.
func (m *Manager) Subscribe(messenger Messenger, node int32, mask EventKind) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.subs[id] = Subscription{ID: id, Messenger: messenger, Node: node, Mask: mask}
	return id
}

// Unsubscribe removes the subscription with the given id.
func (m *Manager) Unsubscribe(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[id]; !ok {
		return false
	}
	delete(m.subs, id)
	return true
}

// UnsubscribeMatching removes every subscription matching node and mask
// as wildcards ("deregister... with wildcards matching any subset"):
// node==WildcardNode matches subscriptions for any node, mask==0
// matches subscriptions with any mask. Returns the count removed.
func (m *Manager) UnsubscribeMatching(messenger Messenger, node int32, mask EventKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int
	for id, sub := range m.subs {
		if sub.Messenger != messenger {
			continue
		}
		if node != WildcardNode && sub.Node != node {
			continue
		}
		if mask != 0 && sub.Mask&mask == 0 {
			continue
		}
		delete(m.subs, id)
		removed++
	}
	return removed
}

// Publish queues an event for dispatch. Kind must be one of the plain
// event-name strings from spec §4.2.6; unknown kinds are dropped with a
// warning, matching the dispatcher's general "ignore what it doesn't
// recognize" posture.
func (m *Manager) Publish(kind string, nodeID int32) {
	ek, ok := eventKindByName[kind]
	if !ok {
		logger.Logger().Warn("notify: unknown event kind published", "kind", kind)
		return
	}
	m.PublishEvent(Event{Kind: ek, NodeID: nodeID, Timestamp: time.Now()})
}

// PublishEvent queues a fully-formed event, for callers (e.g. a node
// reporting a parameter change with payload data) that need more than
// the plain (kind, nodeID) shape Publish offers.
func (m *Manager) PublishEvent(ev Event) {
	select {
	case m.queue <- ev:
	default:
		logger.Logger().Warn("notify: event queue full, dropping event", "kind", ev.Kind, "node_id", ev.NodeID)
	}
}

func (m *Manager) run() {
	defer m.wg.Done()
	for {
		select {
		case ev := <-m.queue:
			m.dispatch(ev)
		case <-m.done:
			return
		}
	}
}

func (m *Manager) dispatch(ev Event) {
	m.mu.RLock()
	targets := make([]Subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		if sub.Matches(ev.NodeID, ev.Kind) {
			targets = append(targets, sub)
		}
	}
	m.mu.RUnlock()

	for _, sub := range targets {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		if err := sub.Messenger.Deliver(ctx, ev); err != nil {
			logger.Logger().Warn("notify: subscriber delivery failed", "subscription_id", sub.ID, "error", err)
		}
		cancel()
	}
}

// Close stops the dispatch worker and waits for it to drain.
func (m *Manager) Close() {
	close(m.done)
	m.wg.Wait()
}
