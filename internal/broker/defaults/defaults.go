// Package defaults implements the broker's default-endpoint manager
// (spec §4.2.5): seven fixed slots resolved once via "rescan defaults"
// so clients asking for "the default audio output" don't have to scan
// the node registry themselves.
package defaults

import (
	"fmt"
	"sync"

	"github.com/alxayo/mediabroker/internal/broker/addon"
	mberrors "github.com/alxayo/mediabroker/internal/errors"
	"github.com/alxayo/mediabroker/internal/logger"
)

// Slot names the seven default-endpoint roles.
type Slot int

const (
	SlotAudioInput Slot = iota
	SlotAudioOutput
	SlotVideoInput
	SlotVideoOutput
	SlotSystemMixer
	SlotSystemTimeSource
	SlotAudioMixer

	slotCount
)

func (s Slot) String() string {
	switch s {
	case SlotAudioInput:
		return "audio-input"
	case SlotAudioOutput:
		return "audio-output"
	case SlotVideoInput:
		return "video-input"
	case SlotVideoOutput:
		return "video-output"
	case SlotSystemMixer:
		return "system-mixer"
	case SlotSystemTimeSource:
		return "system-time-source"
	case SlotAudioMixer:
		return "audio-mixer"
	default:
		return "unknown-slot"
	}
}

// requiredKinds maps each slot to the registry.Kind bitmask value its
// flavor must declare. Kept untyped (uint32) to avoid importing the
// registry package just for its Kind constants.
var requiredKinds = map[Slot]uint32{
	SlotAudioInput:       1 << 6, // physical-input | audio, broker-local encoding
	SlotAudioOutput:      1 << 7, // physical-output | audio
	SlotVideoInput:       1 << 8,
	SlotVideoOutput:      1 << 9,
	SlotSystemMixer:      1 << 10,
	SlotSystemTimeSource: 1 << 4, // matches registry.KindTimeSource
	SlotAudioMixer:       1 << 11,
}

// Instantiator manufactures a global node instance for a flavor
// (forwarding to the add-on host). The default-endpoint manager depends
// only on this narrow interface to avoid importing the node runtime.
type Instantiator interface {
	InstantiateGlobal(addonID int32, flavor addon.Flavor) (nodeID int32, err error)
}

// Manager holds the seven default-endpoint slots.
type Manager struct {
	addons       *addon.Registry
	instantiator Instantiator

	mu    sync.RWMutex
	bound [slotCount]int32 // 0 = unbound
}

// New creates an empty default-endpoint manager.
func New(addons *addon.Registry, instantiator Instantiator) *Manager {
	return &Manager{addons: addons, instantiator: instantiator}
}

// Get returns the node id bound to slot, or an error if nothing has
// been bound there yet.
func (m *Manager) Get(slot Slot) (int32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id := m.bound[slot]
	if id == 0 {
		return 0, mberrors.NewNotFound("defaults.Get", fmt.Errorf("slot %s not bound", slot))
	}
	return id, nil
}

// Set directly binds slot to nodeID, bypassing rescan (used by clients
// that want to override a default explicitly).
func (m *Manager) Set(slot Slot, nodeID int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bound[slot] = nodeID
}

// Rescan searches the add-on registry for exactly one flavor matching
// each slot's required kind, instantiates a global instance for any
// slot not yet bound, and stores the resulting node id. Slots for which
// no matching flavor exists are left unbound and logged.
func (m *Manager) Rescan() {
	for slot := Slot(0); slot < slotCount; slot++ {
		m.mu.RLock()
		alreadyBound := m.bound[slot] != 0
		m.mu.RUnlock()
		if alreadyBound {
			continue
		}

		addonID, flavor, ok := m.addons.FindFlavor(requiredKinds[slot])
		if !ok {
			logger.Logger().Warn("rescan defaults: no flavor matches slot", "slot", slot.String())
			continue
		}

		nodeID, err := m.instantiator.InstantiateGlobal(addonID, flavor)
		if err != nil {
			logger.Logger().Warn("rescan defaults: failed to instantiate global instance", "slot", slot.String(), "error", err)
			continue
		}

		m.mu.Lock()
		m.bound[slot] = nodeID
		m.mu.Unlock()
	}
}

// Clear unbinds every slot, for shutdown or a forced full rescan.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bound = [slotCount]int32{}
}
