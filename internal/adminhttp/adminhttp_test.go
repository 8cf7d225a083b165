package adminhttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alxayo/mediabroker/internal/broker/addon"
	"github.com/alxayo/mediabroker/internal/broker/buffer"
	"github.com/alxayo/mediabroker/internal/broker/defaults"
	"github.com/alxayo/mediabroker/internal/broker/format"
	"github.com/alxayo/mediabroker/internal/broker/registry"
)

func newTestServer(t *testing.T) (*Server, *registry.Registry, *buffer.Registry, *format.Manager) {
	t.Helper()
	nodes := registry.New(nil)
	buffers := buffer.New()
	formats := format.New()
	addons := addon.New()
	defaultsMgr := defaults.New(addons, nil)

	s := &Server{
		Nodes:            nodes,
		Formats:          formats,
		Buffers:          buffers,
		Defaults:         defaultsMgr,
		DefaultSlotNames: DefaultSlots(),
	}
	return s, nodes, buffers, formats
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthReturnsOK(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	rec := get(t, NewRouter(s), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestNodesReturnsRegisteredNode(t *testing.T) {
	s, nodes, _, _ := newTestServer(t)
	n, err := nodes.Register(1, 1, "mixer", registry.KindConsumer, "ctl-1", "procA")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	rec := get(t, NewRouter(s), "/nodes")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []registry.LiveInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].ID != n.ID {
		t.Fatalf("expected one node with id %d, got %+v", n.ID, got)
	}
}

func TestNodesEmptyRegistryReturnsEmptyArray(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	rec := get(t, NewRouter(s), "/nodes")
	if rec.Body.String() != "[]\n" {
		t.Fatalf("expected an empty JSON array, got %q", rec.Body.String())
	}
}

func TestFormatsReturnsRegisteredDescription(t *testing.T) {
	s, _, _, formats := newTestServer(t)
	desc := formats.Register(format.Description{Family: format.FamilyRawAudio, FamilyID: 42})

	rec := get(t, NewRouter(s), "/formats")
	var got []format.Description
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].EncodingID != desc.EncodingID {
		t.Fatalf("expected one format with encoding id %d, got %+v", desc.EncodingID, got)
	}
}

func TestBuffersReturnsRegisteredBuffer(t *testing.T) {
	s, _, buffers, _ := newTestServer(t)
	regionID := buffers.RegisterRegion(make([]byte, 1024))
	b, err := buffers.RegisterBuffer(regionID, 0, 512, 0, "procA")
	if err != nil {
		t.Fatalf("register buffer: %v", err)
	}

	rec := get(t, NewRouter(s), "/buffers")
	var got []buffer.Info
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].ID != b.ID || got[0].RefCount != 1 {
		t.Fatalf("expected one buffer with id %d and refcount 1, got %+v", b.ID, got)
	}
}

func TestDefaultsReportsUnboundSlotsBeforeRescan(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	rec := get(t, NewRouter(s), "/defaults")

	var got []defaultEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 7 {
		t.Fatalf("expected 7 default slots, got %d", len(got))
	}
	for _, e := range got {
		if e.Bound {
			t.Fatalf("expected every slot unbound before Rescan, got %+v", e)
		}
	}
}
