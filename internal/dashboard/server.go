package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/efxlab/simulator/internal/handler"
	"github.com/efxlab/simulator/internal/metrics"
)

// Server is an observer over a running simulation: it buffers every
// output record, keeps the most recent snapshot, and serves both over
// HTTP and over the WebSocket hub. It implements processor.Sink, so a
// Processor can write directly to it, but it never feeds anything back
// into the run — snapshotting a Server has no bearing on determinism.
type Server struct {
	hub   *Hub
	cache *RedisCache

	mu             sync.RWMutex
	records        []viewRecord
	latestSnapshot viewRecord
	haveSnapshot   bool
}

type viewRecord struct {
	ID         string         `json:"id"`
	Timestamp  string         `json:"timestamp"`
	RecordType string         `json:"record_type"`
	Data       map[string]any `json:"data"`
}

// NewServer creates a dashboard server. cache may be nil, in which case
// /snapshot is served straight from the in-memory buffer.
func NewServer(hub *Hub, cache *RedisCache) *Server {
	return &Server{hub: hub, cache: cache}
}

// Write records rec, broadcasts it over the WebSocket hub, and updates
// the cached latest snapshot. Satisfies processor.Sink.
func (s *Server) Write(rec handler.Record) error {
	vr := viewRecord{
		ID:         uuid.NewString(),
		Timestamp:  rec.Timestamp.Format("2006-01-02T15:04:05.000000-07:00"),
		RecordType: rec.RecordType,
		Data:       rec.Data,
	}

	s.mu.Lock()
	s.records = append(s.records, vr)
	if rec.RecordType == handler.TypeSnapshot {
		s.latestSnapshot = vr
		s.haveSnapshot = true
	}
	s.mu.Unlock()

	metrics.RecordsEmittedTotal.WithLabelValues(rec.RecordType).Inc()
	if s.hub != nil {
		s.hub.BroadcastRecord(rec)
	}
	if s.cache != nil && rec.RecordType == handler.TypeSnapshot {
		_ = s.cache.SetLatestSnapshot(context.Background(), rec)
	}
	return nil
}

// Router builds the dashboard's HTTP handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"efxsim-dashboard"}`))
	})

	r.Handle("/metrics", metrics.Handler())

	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}

	r.Get("/snapshot", s.handleSnapshot)
	r.Get("/records", s.handleRecords)

	return r
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.cache != nil {
		if rec, ok := s.cache.LatestSnapshot(r.Context()); ok {
			writeJSON(w, http.StatusOK, rec)
			return
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.haveSnapshot {
		writeError(w, "no snapshot recorded yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.latestSnapshot)
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	recordType := r.URL.Query().Get("type")

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]viewRecord, 0, len(s.records))
	for _, rec := range s.records {
		if recordType != "" && rec.RecordType != recordType {
			continue
		}
		out = append(out, rec)
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
