// Package adminhttp exposes the broker's registries as read-only JSON
// over HTTP (spec §6): GET /nodes, /formats, /buffers, /defaults, plus
// a liveness probe at /health. It never mutates broker state — every
// handler is a snapshot read, matching spec §4.5's "observability aid,
// never a second source of truth" stance for the registries it shows.
package adminhttp

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alxayo/mediabroker/internal/broker/buffer"
	"github.com/alxayo/mediabroker/internal/broker/defaults"
	"github.com/alxayo/mediabroker/internal/broker/format"
	"github.com/alxayo/mediabroker/internal/broker/registry"
	"github.com/alxayo/mediabroker/internal/logger"
)

// NodeLister is the read-only view of internal/broker/registry.Registry
// this package depends on.
type NodeLister interface {
	GetLiveNodes(filter registry.Filter, limit int) []registry.LiveInfo
}

// FormatLister is the read-only view of internal/broker/format.Manager
// this package depends on.
type FormatLister interface {
	QueryChanges(since time.Time) (list []format.Description, changed bool)
}

// BufferLister is the read-only view of internal/broker/buffer.Registry
// this package depends on.
type BufferLister interface {
	ListBuffers() []buffer.Info
}

// DefaultLister is the read-only view of internal/broker/defaults.Manager
// this package depends on.
type DefaultLister interface {
	Get(slot defaults.Slot) (int32, error)
}

// Server wires the four broker registries into a chi router. All fields
// are read-only views; Server never mutates broker state.
type Server struct {
	Nodes    NodeLister
	Formats  FormatLister
	Buffers  BufferLister
	Defaults DefaultLister

	// DefaultSlotNames lists the defaults slots to report, in display
	// order, alongside their wire names.
	DefaultSlotNames []DefaultSlot
}

// DefaultSlot names one default-endpoint slot for the /defaults
// snapshot.
type DefaultSlot struct {
	Slot defaults.Slot
	Name string
}

// DefaultSlots is the fixed, spec-defined order of the seven
// default-endpoint slots, ready to assign to Server.DefaultSlotNames.
func DefaultSlots() []DefaultSlot {
	slots := []defaults.Slot{
		defaults.SlotAudioInput,
		defaults.SlotAudioOutput,
		defaults.SlotVideoInput,
		defaults.SlotVideoOutput,
		defaults.SlotSystemMixer,
		defaults.SlotSystemTimeSource,
		defaults.SlotAudioMixer,
	}
	out := make([]DefaultSlot, len(slots))
	for i, s := range slots {
		out[i] = DefaultSlot{Slot: s, Name: s.String()}
	}
	return out
}

// NewRouter builds the admin HTTP surface described by spec §6.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/nodes", s.handleNodes)
	r.Get("/formats", s.handleFormats)
	r.Get("/buffers", s.handleBuffers)
	r.Get("/defaults", s.handleDefaults)

	return r
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	filter := registry.Filter{NamePattern: r.URL.Query().Get("name")}
	nodes := s.Nodes.GetLiveNodes(filter, 0)
	if nodes == nil {
		nodes = []registry.LiveInfo{}
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	list, _ := s.Formats.QueryChanges(time.Time{})
	if list == nil {
		list = []format.Description{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleBuffers(w http.ResponseWriter, r *http.Request) {
	bufs := s.Buffers.ListBuffers()
	if bufs == nil {
		bufs = []buffer.Info{}
	}
	writeJSON(w, http.StatusOK, bufs)
}

type defaultEntry struct {
	Slot   string `json:"slot"`
	NodeID int32  `json:"node_id,omitempty"`
	Bound  bool   `json:"bound"`
}

func (s *Server) handleDefaults(w http.ResponseWriter, r *http.Request) {
	out := make([]defaultEntry, 0, len(s.DefaultSlotNames))
	for _, ds := range s.DefaultSlotNames {
		nodeID, err := s.Defaults.Get(ds.Slot)
		if err != nil {
			out = append(out, defaultEntry{Slot: ds.Name, Bound: false})
			continue
		}
		out = append(out, defaultEntry{Slot: ds.Name, NodeID: nodeID, Bound: true})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("adminhttp: failed to encode response", "err", err)
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Debug("admin request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
		)
	})
}
