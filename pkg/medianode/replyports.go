package medianode

import (
	"sync"

	"github.com/alxayo/mediabroker/internal/port"
)

// MapReplyPorts is a trivial in-process ReplyPorts backed by a map,
// used by the media roster (and by tests) to register reply ports by
// name before issuing a request that names one.
type MapReplyPorts struct {
	mu    sync.RWMutex
	ports map[string]*port.Port
}

// NewMapReplyPorts creates an empty reply-port table.
func NewMapReplyPorts() *MapReplyPorts {
	return &MapReplyPorts{ports: make(map[string]*port.Port)}
}

// Register makes p resolvable by name.
func (m *MapReplyPorts) Register(name string, p *port.Port) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ports[name] = p
}

// Unregister removes name from the table.
func (m *MapReplyPorts) Unregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ports, name)
}

// Get implements ReplyPorts.
func (m *MapReplyPorts) Get(name string) (*port.Port, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.ports[name]
	return p, ok
}
