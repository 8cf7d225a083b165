package mediaroster

import (
	"sync"

	"github.com/alxayo/mediabroker/internal/port"
)

// PortDirectory resolves a node's published control-port name to the
// live *port.Port it names. Out of process this would be backed by a
// transport layer; nodes and the broker share an address space in this
// module, so it reduces to a lookup table.
type PortDirectory interface {
	Lookup(name string) (*port.Port, bool)
	Register(name string, p *port.Port)
}

// MapPortDirectory is the in-process PortDirectory every roster uses by
// default.
type MapPortDirectory struct {
	mu    sync.RWMutex
	ports map[string]*port.Port
}

// NewMapPortDirectory creates an empty directory.
func NewMapPortDirectory() *MapPortDirectory {
	return &MapPortDirectory{ports: make(map[string]*port.Port)}
}

// Lookup implements PortDirectory.
func (d *MapPortDirectory) Lookup(name string) (*port.Port, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.ports[name]
	return p, ok
}

// Register implements PortDirectory.
func (d *MapPortDirectory) Register(name string, p *port.Port) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ports[name] = p
}
