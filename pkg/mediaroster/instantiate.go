package mediaroster

import (
	"context"
	"fmt"

	"github.com/alxayo/mediabroker/internal/broker/addon"
	"github.com/alxayo/mediabroker/internal/broker/registry"
	mberrors "github.com/alxayo/mediabroker/internal/errors"
	"github.com/alxayo/mediabroker/internal/port"
	"github.com/alxayo/mediabroker/pkg/medianode"
)

// Manufacturer builds a live node for a declared flavor: the add-on's
// local implementation of GeneralNode (plus whichever capability
// interfaces it additionally satisfies) and the control port it will
// listen on. The add-on host process implements this; the roster only
// depends on the narrow interface.
type Manufacturer interface {
	Manufacture(addonID int32, flavor addon.Flavor) (impl medianode.GeneralNode, control *port.Port, err error)
}

// Host instantiates a flavor's single global shared instance, modeling
// spec.md's separate add-on host process. Satisfied by another
// Roster's InstantiateGlobal, or left nil in a single-process
// deployment where this roster's own Manufacturer plays both roles.
type Host interface {
	InstantiateGlobal(addonID int32, flavor addon.Flavor) (nodeID int32, err error)
}

// InstantiateDormant implements spec §4.4's "instantiate dormant node":
// global flavors forward to the add-on host (or are reused if a global
// instance already exists); local flavors are manufactured by this
// process and registered with the broker.
func (r *Roster) InstantiateDormant(ctx context.Context, addonID, flavorID int32) (int32, error) {
	flavor, err := r.addons.Flavor(addonID, flavorID)
	if err != nil {
		return 0, err
	}

	if flavor.Flags&addon.FlagGlobal != 0 {
		if ids := r.nodes.GetInstancesFor(addonID, flavorID); len(ids) > 0 {
			if _, err := r.Acquire(ids[0]); err != nil {
				return 0, err
			}
			return ids[0], nil
		}
		return r.InstantiateGlobal(addonID, flavor)
	}
	return r.instantiateLocal(addonID, flavor)
}

// InstantiateGlobal satisfies defaults.Instantiator, letting a Roster
// serve as the default-endpoint manager's instantiator directly.
func (r *Roster) InstantiateGlobal(addonID int32, flavor addon.Flavor) (int32, error) {
	if r.host != nil {
		id, err := r.host.InstantiateGlobal(addonID, flavor)
		if err != nil {
			return 0, err
		}
		if _, err := r.Acquire(id); err != nil {
			return 0, err
		}
		return id, nil
	}
	return r.instantiateLocal(addonID, flavor)
}

func (r *Roster) instantiateLocal(addonID int32, flavor addon.Flavor) (int32, error) {
	if r.manufacturer == nil {
		return 0, mberrors.NewState("mediaroster.instantiateLocal", fmt.Errorf("process %s has no local add-on manufacturer bound", r.process))
	}
	if err := r.addons.AcquireInstance(addonID, flavor.ID); err != nil {
		return 0, err
	}

	impl, control, err := r.manufacturer.Manufacture(addonID, flavor)
	if err != nil {
		_ = r.addons.ReleaseInstance(addonID, flavor.ID)
		return 0, err
	}
	if r.ports != nil {
		r.ports.Register(control.Name(), control)
	}

	n, err := r.nodes.Register(addonID, flavor.ID, flavor.Name, registry.Kind(flavor.Kinds), control.Name(), r.process)
	if err != nil {
		_ = r.addons.ReleaseInstance(addonID, flavor.ID)
		return 0, err
	}

	node := medianode.New(n.ID, control, impl)
	node.Replies = r.replies
	go node.Run(context.Background())

	r.mu.Lock()
	r.cache[n.ID] = &cachedNode{node: n, count: 1}
	r.mu.Unlock()
	return n.ID, nil
}
