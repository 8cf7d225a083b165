// Package appmgr implements the broker's app manager (spec §4.2.7): it
// registers each connecting process with a messenger for
// reverse-notifications, watches team liveness, and on death cascades
// a "team-departed" cleanup across the other registries. It also
// restarts the add-on host satellite process, capped at five restarts
// per minute.
package appmgr

import (
	"sync"
	"time"

	"github.com/alxayo/mediabroker/internal/logger"
)

// DefaultPollInterval is how often the watcher checks team liveness.
// Configurable via Manager.pollInterval — spec calls this "default
// poll 2s, configurable".
const DefaultPollInterval = 2 * time.Second

// deadAfter is how long a process may go without a heartbeat before
// the watcher considers its team dead.
const deadAfter = 3 * DefaultPollInterval

// NodeRegistry is the subset of internal/broker/registry.Registry the
// app manager needs, kept narrow to avoid an import cycle risk and to
// make the cascade independently testable.
type NodeRegistry interface {
	DropProcess(process string) []int32
}

// BufferRegistry is the subset of internal/broker/buffer.Registry the
// app manager needs.
type BufferRegistry interface {
	DropProcess(process string)
}

// Notifier publishes lifecycle events; internal/broker/notify.Manager
// satisfies this directly.
type Notifier interface {
	Publish(kind string, nodeID int32)
}

type process struct {
	id       string
	lastSeen time.Time
}

// Manager is the broker's app/process liveness tracker.
type Manager struct {
	mu           sync.Mutex
	processes    map[string]*process
	pollInterval time.Duration

	nodes    NodeRegistry
	buffers  BufferRegistry
	notifier Notifier

	addonHostRestarts *restartLimiter
	restartAddonHost  func() error

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates an app manager. restartAddonHost may be nil if this
// broker instance doesn't supervise a satellite add-on host process.
func New(nodes NodeRegistry, buffers BufferRegistry, notifier Notifier, restartAddonHost func() error) *Manager {
	m := &Manager{
		processes:         make(map[string]*process),
		pollInterval:      DefaultPollInterval,
		nodes:             nodes,
		buffers:           buffers,
		notifier:          notifier,
		addonHostRestarts: newRestartLimiter(5, time.Minute),
		restartAddonHost:  restartAddonHost,
		stop:              make(chan struct{}),
	}
	m.wg.Add(1)
	go m.watch()
	return m
}

// RegisterProcess records a newly connected process.
func (m *Manager) RegisterProcess(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processes[id] = &process{id: id, lastSeen: time.Now()}
}

// Heartbeat marks id as still alive.
func (m *Manager) Heartbeat(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.processes[id]; ok {
		p.lastSeen = time.Now()
	}
}

// IsLive reports whether id is currently tracked as alive.
func (m *Manager) IsLive(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.processes[id]
	return ok
}

func (m *Manager) watch() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stop:
			return
		}
	}
}

func (m *Manager) sweep() {
	now := time.Now()
	m.mu.Lock()
	var dead []string
	for id, p := range m.processes {
		if now.Sub(p.lastSeen) > deadAfter {
			dead = append(dead, id)
			delete(m.processes, id)
		}
	}
	m.mu.Unlock()

	for _, id := range dead {
		m.teamDeparted(id)
	}
}

// teamDeparted runs the cascading cleanup for a dead process, without
// holding any registry lock across the call into the next registry —
// each registry's DropProcess takes and releases its own lock.
func (m *Manager) teamDeparted(process string) {
	logger.Logger().Warn("appmgr: team departed, cascading cleanup", "process", process)

	var owned []int32
	if m.nodes != nil {
		owned = m.nodes.DropProcess(process)
	}
	if m.buffers != nil {
		m.buffers.DropProcess(process)
	}
	if m.notifier != nil {
		for _, nodeID := range owned {
			m.notifier.Publish("node-deleted", nodeID)
		}
	}
}

// NotifyAddonHostDied attempts to restart the add-on host, capped at
// five restarts per minute via a token-bucket counter.
func (m *Manager) NotifyAddonHostDied() error {
	if m.restartAddonHost == nil {
		return nil
	}
	if !m.addonHostRestarts.Allow() {
		logger.Logger().Error("appmgr: add-on host restart rate exceeded, not restarting")
		return nil
	}
	logger.Logger().Warn("appmgr: add-on host died, restarting")
	return m.restartAddonHost()
}

// Close stops the liveness watcher.
func (m *Manager) Close() {
	close(m.stop)
	m.wg.Wait()
}

// restartLimiter is a simple token-bucket-by-timestamps counter: Allow
// reports whether another event may proceed within the last window.
type restartLimiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	times  []time.Time
}

func newRestartLimiter(max int, window time.Duration) *restartLimiter {
	return &restartLimiter{max: max, window: window}
}

func (l *restartLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	cutoff := now.Add(-l.window)
	kept := l.times[:0]
	for _, t := range l.times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.times = kept
	if len(l.times) >= l.max {
		return false
	}
	l.times = append(l.times, now)
	return true
}
