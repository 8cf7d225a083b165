// Package metrics exposes the broker's Prometheus gauges (spec §4.5):
// live node count, live buffer count, and add-on instance count, read
// (not mutated) from the registries. Every recorder method is nil-safe
// so a broker built without a registered Prometheus registry pays zero
// overhead, matching marmos91-dittofs/pkg/metrics's
// "InitRegistry not called -> every constructor returns nil" contract.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the broker's resource-accounting gauges. A nil
// *Recorder is valid and every method on it is a no-op, so callers
// never need to guard a call with "if metrics enabled".
type Recorder struct {
	liveNodes      prometheus.Gauge
	liveBuffers    prometheus.Gauge
	addonInstances prometheus.Gauge
}

// New registers the broker's gauges against reg and returns a Recorder.
// reg may be nil, in which case New returns nil and every recorder call
// becomes a no-op.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		return nil
	}
	return &Recorder{
		liveNodes: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "mediabroker_live_nodes",
			Help: "Number of node records currently held by the broker's node registry.",
		}),
		liveBuffers: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "mediabroker_live_buffers",
			Help: "Number of buffer records currently held by the broker's buffer registry.",
		}),
		addonInstances: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "mediabroker_addon_instances",
			Help: "Total live flavor instances across every loaded add-on.",
		}),
	}
}

// SetLiveNodes records the node registry's current live count.
func (r *Recorder) SetLiveNodes(n int) {
	if r == nil {
		return
	}
	r.liveNodes.Set(float64(n))
}

// SetLiveBuffers records the buffer registry's current live count.
func (r *Recorder) SetLiveBuffers(n int) {
	if r == nil {
		return
	}
	r.liveBuffers.Set(float64(n))
}

// SetAddonInstances records the total live flavor instance count across
// every loaded add-on.
func (r *Recorder) SetAddonInstances(n int32) {
	if r == nil {
		return
	}
	r.addonInstances.Set(float64(n))
}

// Sources is the narrow read-only view of the three registries the
// sampler polls. internal/broker/registry.Registry,
// internal/broker/buffer.Registry, and internal/broker/addon.Registry
// each satisfy the corresponding method directly.
type Sources struct {
	Nodes   interface{ Count() int }
	Buffers interface{ Count() int }
	Addons  interface{ TotalLiveInstances() int32 }
}

// Sampler periodically reads Sources and updates a Recorder — an
// observability aid, never a second source of truth, matching
// spec §4.5's explicit phrasing.
type Sampler struct {
	recorder *Recorder
	sources  Sources
	interval time.Duration
}

// NewSampler creates a sampler. recorder may be nil (every Run tick is
// then a harmless no-op read-and-discard).
func NewSampler(recorder *Recorder, sources Sources, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Sampler{recorder: recorder, sources: sources, interval: interval}
}

// Run samples Sources every interval until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sample()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sampler) sample() {
	if s.sources.Nodes != nil {
		s.recorder.SetLiveNodes(s.sources.Nodes.Count())
	}
	if s.sources.Buffers != nil {
		s.recorder.SetLiveBuffers(s.sources.Buffers.Count())
	}
	if s.sources.Addons != nil {
		s.recorder.SetAddonInstances(s.sources.Addons.TotalLiveInstances())
	}
}
