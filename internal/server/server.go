// Package server is the HTTP surface of the catalog: stateless handlers
// translating between the wire API and the store, ingest, zone, dedup, and
// tree services.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/archivum/archivum/internal/dedup"
	"github.com/archivum/archivum/internal/ingest"
	"github.com/archivum/archivum/internal/store"
	"github.com/archivum/archivum/internal/tree"
	"github.com/archivum/archivum/internal/zone"
)

const (
	readTimeout  = 30 * time.Second
	writeTimeout = 5 * time.Minute // tree builds on large sources are synchronous
	idleTimeout  = 120 * time.Second

	defaultPageSize = 50
	maxPageSize     = 1000
)

// Server wires the catalog services into an http.Server.
type Server struct {
	store  *store.Store
	ingest *ingest.Service
	dedup  *dedup.Engine
	zones  *zone.Resolver
	trees  *tree.Builder
	log    *slog.Logger
}

// New returns a Server over the given services.
func New(s *store.Store, ing *ingest.Service, d *dedup.Engine, zr *zone.Resolver, tb *tree.Builder, log *slog.Logger) *Server {
	return &Server{store: s, ingest: ing, dedup: d, zones: zr, trees: tb, log: log}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/sources", s.handleCreateSource)
	mux.HandleFunc("GET /api/sources", s.handleListSources)
	mux.HandleFunc("GET /api/sources/{id}", s.handleGetSource)
	mux.HandleFunc("DELETE /api/sources/{id}", s.handleDeleteSource)
	mux.HandleFunc("GET /api/sources/{id}/tree", s.handleSourceTree)
	mux.HandleFunc("GET /api/sources/{id}/zones", s.handleListZones)
	mux.HandleFunc("PATCH /api/sources/{id}/folders/{path...}", s.handleSetFolderZone)
	mux.HandleFunc("POST /api/sources/{id}/complete", s.handleCompleteScan)

	mux.HandleFunc("POST /api/files/batch", s.handleFileBatch)
	mux.HandleFunc("GET /api/files", s.handleListFiles)
	mux.HandleFunc("GET /api/files/{id}", s.handleGetFile)
	mux.HandleFunc("PATCH /api/files/{id}", s.handlePatchFile)

	mux.HandleFunc("GET /api/duplicates", s.handleListDuplicates)
	mux.HandleFunc("POST /api/duplicates/{groupId}/resolve", s.handleResolveDuplicate)

	mux.HandleFunc("POST /api/code-projects/bulk", s.handleProjectBulk)
	mux.HandleFunc("POST /api/code-projects", s.handleCreateManualProject)
	mux.HandleFunc("GET /api/code-projects", s.handleListProjects)
	mux.HandleFunc("GET /api/code-projects/duplicates", s.handleListProjectDuplicates)
	mux.HandleFunc("POST /api/code-projects/duplicates/{groupId}/resolve", s.handleResolveProjectDuplicate)

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s.logRequests(mux)
}

// ListenAndServe runs the server until ctx is cancelled, then drains.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info("catalog server listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		requestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		s.log.Info("request",
			"method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", time.Since(start))
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.ListSources(r.Context()); err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
}

// writeJSON encodes v with the given status.
func (s *Server) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.ErrorContext(ctx, "encode response", "error", err)
	}
}

// writeError maps service errors onto HTTP statuses.
func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, store.ErrBadState):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.log.ErrorContext(ctx, "request failed", "error", err)
	}
	s.writeJSON(ctx, w, status, map[string]string{"error": err.Error()})
}

func decodeBody[T any](r *http.Request) (T, error) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return v, err
	}
	return v, nil
}

// pageParams reads page/size query parameters with sane bounds.
func pageParams(r *http.Request) (page, size int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	size, _ = strconv.Atoi(r.URL.Query().Get("size"))
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}
