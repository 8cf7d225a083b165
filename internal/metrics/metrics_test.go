package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

type countSource struct{ n int }

func (c countSource) Count() int { return c.n }

type addonSource struct{ n int32 }

func (a addonSource) TotalLiveInstances() int32 { return a.n }

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestNewReturnsNilWithoutARegistry(t *testing.T) {
	r := New(nil)
	if r != nil {
		t.Fatalf("expected New(nil) to return a nil recorder")
	}
	// Every method must tolerate a nil receiver.
	r.SetLiveNodes(5)
	r.SetLiveBuffers(5)
	r.SetAddonInstances(5)
}

func TestRecorderGaugesReflectLastSetValue(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)
	if r == nil {
		t.Fatalf("expected a non-nil recorder")
	}

	r.SetLiveNodes(3)
	r.SetLiveBuffers(7)
	r.SetAddonInstances(2)

	if got := gaugeValue(t, r.liveNodes); got != 3 {
		t.Fatalf("expected live nodes 3, got %v", got)
	}
	if got := gaugeValue(t, r.liveBuffers); got != 7 {
		t.Fatalf("expected live buffers 7, got %v", got)
	}
	if got := gaugeValue(t, r.addonInstances); got != 2 {
		t.Fatalf("expected addon instances 2, got %v", got)
	}
}

func TestSamplerUpdatesRecorderFromSources(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)
	sources := Sources{Nodes: countSource{n: 4}, Buffers: countSource{n: 1}, Addons: addonSource{n: 9}}
	s := NewSampler(r, sources, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if got := gaugeValue(t, r.liveNodes); got != 4 {
		t.Fatalf("expected live nodes 4, got %v", got)
	}
	if got := gaugeValue(t, r.addonInstances); got != 9 {
		t.Fatalf("expected addon instances 9, got %v", got)
	}
}
