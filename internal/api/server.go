/*
Package api exposes the discovery engine over a thin HTTP surface.

Authentication is handled upstream (reverse proxy + identity provider);
the caller's scope arrives pre-validated in the X-Scopes and X-Admin
headers and is trusted as-is, matching the engine's trust boundary.
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mcpgw/registry/internal/engine"
	"github.com/mcpgw/registry/internal/scope"
	"github.com/mcpgw/registry/internal/search"
	"github.com/mcpgw/registry/internal/store"
)

// Server serves the discovery HTTP API.
type Server struct {
	engine *engine.Engine
	log    *zap.Logger
	http   *http.Server
}

// NewServer creates an API server listening on addr.
func NewServer(addr string, eng *engine.Engine, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{engine: eng, log: log}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/discover", s.handleDiscover)
		r.Post("/reindex", s.handleReindex)
	})
	return r
}

// ListenAndServe blocks until the context is cancelled or the listener
// fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.ListenAndServe()
	}()
	s.log.Info("http api listening", zap.String("addr", s.http.Addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type discoverRequest struct {
	Query      string   `json:"query"`
	MaxResults int      `json:"maxResults,omitempty"`
	Kinds      []string `json:"kinds,omitempty"`
}

type discoverResponse struct {
	RequestID string          `json:"requestId"`
	Servers   []search.ScoredResult `json:"servers"`
	Tools     []search.ScoredResult `json:"tools"`
	Agents    []search.ScoredResult `json:"agents"`
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	caller := callerFromHeaders(r)
	kinds := parseKinds(req.Kinds)
	requestID := uuid.NewString()

	resp, err := s.engine.Discover(r.Context(), req.Query, caller, req.MaxResults, kinds)
	if err != nil {
		s.log.Error("discover failed",
			zap.String("requestId", requestID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "discovery failed")
		return
	}

	s.log.Debug("discover",
		zap.String("requestId", requestID),
		zap.Int("servers", len(resp.Servers)),
		zap.Int("tools", len(resp.Tools)),
		zap.Int("agents", len(resp.Agents)))

	writeJSON(w, http.StatusOK, discoverResponse{
		RequestID: requestID,
		Servers:   resp.Servers,
		Tools:     resp.Tools,
		Agents:    resp.Agents,
	})
}

type reindexRequest struct {
	// Target is an entity id, or "all".
	Target string `json:"target"`
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	var req reindexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Target == "" {
		writeError(w, http.StatusBadRequest, "target is required")
		return
	}

	// Reindex is administrative.
	caller := callerFromHeaders(r)
	if !caller.IsAdmin {
		writeError(w, http.StatusForbidden, "admin scope required")
		return
	}

	if err := s.engine.Reindex(r.Context(), req.Target); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown entity")
			return
		}
		s.log.Error("reindex failed", zap.String("target", req.Target), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "reindex failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// callerFromHeaders reads the pre-validated scope headers set by the
// upstream auth layer.
func callerFromHeaders(r *http.Request) scope.CallerScope {
	var groups []string
	if raw := r.Header.Get("X-Scopes"); raw != "" {
		for _, g := range strings.Split(raw, ",") {
			if g = strings.TrimSpace(g); g != "" {
				groups = append(groups, g)
			}
		}
	}
	return scope.CallerScope{
		AuthorizedGroups: groups,
		IsAdmin:          r.Header.Get("X-Admin") == "true",
	}
}

func parseKinds(raw []string) []store.Kind {
	var kinds []store.Kind
	for _, k := range raw {
		switch store.Kind(k) {
		case store.KindServer, store.KindTool, store.KindAgent:
			kinds = append(kinds, store.Kind(k))
		}
	}
	return kinds
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
