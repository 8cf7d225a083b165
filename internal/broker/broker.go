// Package broker composes the six registries and the app manager into
// the single broker process described by spec §4.2: one node registry,
// one add-on registry, one buffer registry, one format manager, one
// default-endpoint manager, one notification manager, all sharing a
// single in-process port directory, plus one mediaroster.Roster per
// connected client process.
package broker

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alxayo/mediabroker/internal/adminhttp"
	"github.com/alxayo/mediabroker/internal/broker/addon"
	"github.com/alxayo/mediabroker/internal/broker/appmgr"
	"github.com/alxayo/mediabroker/internal/broker/buffer"
	"github.com/alxayo/mediabroker/internal/broker/defaults"
	"github.com/alxayo/mediabroker/internal/broker/format"
	"github.com/alxayo/mediabroker/internal/broker/notify"
	"github.com/alxayo/mediabroker/internal/broker/registry"
	"github.com/alxayo/mediabroker/internal/metrics"
	"github.com/alxayo/mediabroker/internal/settings"
	"github.com/alxayo/mediabroker/pkg/mediaroster"
)

// hostProcess names the roster the broker uses internally to forward
// global-flavor instantiation and to track the add-on host satellite's
// own liveness with the app manager.
const hostProcess = "broker-host"

// Broker owns every registry and one roster per connected process.
type Broker struct {
	Nodes    *registry.Registry
	Addons   *addon.Registry
	Buffers  *buffer.Registry
	Formats  *format.Manager
	Defaults *defaults.Manager
	Notify   *notify.Manager
	Apps     *appmgr.Manager
	Ports    *mediaroster.MapPortDirectory

	host *mediaroster.Roster

	mu      sync.Mutex
	rosters map[string]*mediaroster.Roster

	// Settings is nil until SetSettings is called; persistence (spec §6)
	// is optional and most tests run without it.
	Settings *settings.Store

	metricsRecorder *metrics.Recorder
}

// New assembles a fresh broker with empty registries. restartAddonHost
// is passed straight to the app manager (spec §4.2.7); it may be nil if
// this deployment doesn't supervise a satellite add-on host process.
func New(restartAddonHost func() error) *Broker {
	notifier := notify.New()
	nodes := registry.New(notifier)
	addons := addon.New()
	buffers := buffer.New()
	formats := format.New()
	ports := mediaroster.NewMapPortDirectory()

	b := &Broker{
		Nodes:   nodes,
		Addons:  addons,
		Buffers: buffers,
		Formats: formats,
		Notify:  notifier,
		Ports:   ports,
		rosters: make(map[string]*mediaroster.Roster),
	}

	// defaults.New needs an Instantiator, and the natural Instantiator
	// is a Roster — but a Roster's own New needs a *defaults.Manager
	// that doesn't exist yet. Build the host roster first with no
	// defaults bound, then construct defaults around it, then bind it
	// back with SetDefaults.
	host := mediaroster.New(hostProcess, nodes, addons, buffers, formats, nil, notifier, ports)
	defaultsMgr := defaults.New(addons, host)
	host.SetDefaults(defaultsMgr)
	b.Defaults = defaultsMgr
	b.host = host
	b.rosters[hostProcess] = host

	b.Apps = appmgr.New(nodes, buffers, notifier, restartAddonHost)
	b.Apps.RegisterProcess(hostProcess)

	return b
}

// SetAddonManufacturer binds the local add-on manufacturer the broker
// uses to instantiate global-flavor nodes itself, for the common
// single-process deployment where there is no separate add-on host
// satellite to forward to.
func (b *Broker) SetAddonManufacturer(m mediaroster.Manufacturer) {
	b.host.SetManufacturer(m)
}

// SetSettings binds the persistence store used for device associations,
// default-endpoint choices, and encoding id assignments (spec §6). It is
// optional; a broker without a bound store simply never persists.
func (b *Broker) SetSettings(s *settings.Store) {
	b.Settings = s
}

// EnableMetrics registers the broker's resource-accounting gauges
// against reg and starts a sampler goroutine that polls the registries
// every interval until ctx is cancelled.
func (b *Broker) EnableMetrics(ctx context.Context, reg prometheus.Registerer, interval time.Duration) {
	b.metricsRecorder = metrics.New(reg)
	sampler := metrics.NewSampler(b.metricsRecorder, metrics.Sources{
		Nodes:   b.Nodes,
		Buffers: b.Buffers,
		Addons:  b.Addons,
	}, interval)
	go sampler.Run(ctx)
}

// AdminRouter builds the read-only admin HTTP surface (spec §6) over
// this broker's registries.
func (b *Broker) AdminRouter() http.Handler {
	return adminhttp.NewRouter(&adminhttp.Server{
		Nodes:            b.Nodes,
		Formats:          b.Formats,
		Buffers:          b.Buffers,
		Defaults:         b.Defaults,
		DefaultSlotNames: adminhttp.DefaultSlots(),
	})
}

// NewRoster creates (or returns the existing) roster for process,
// wired to this broker's shared registries and port directory, and
// registers the process with the app manager's liveness tracker.
func (b *Broker) NewRoster(process string) *mediaroster.Roster {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.rosters[process]; ok {
		return r
	}
	r := mediaroster.New(process, b.Nodes, b.Addons, b.Buffers, b.Formats, b.Defaults, b.Notify, b.Ports)
	b.rosters[process] = r
	b.Apps.RegisterProcess(process)
	return r
}

// Roster returns the roster previously created for process, if any.
func (b *Broker) Roster(process string) (*mediaroster.Roster, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.rosters[process]
	return r, ok
}

// Heartbeat marks process as still alive, per the app manager's
// liveness protocol.
func (b *Broker) Heartbeat(process string) {
	b.Apps.Heartbeat(process)
}

// Close stops the app manager's liveness watcher and the notification
// manager's dispatch worker. It does not attempt to close individual
// rosters: their acquired references are already accounted for by the
// registries' own process-death cleanup (spec §4.5), which this
// broker's own shutdown doesn't need to duplicate.
func (b *Broker) Close() error {
	b.Apps.Close()
	b.Notify.Close()
	return nil
}
