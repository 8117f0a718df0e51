// Package server wires the reverse-proxy's HTTP surface: the catch-all
// handler that hands every inbound request to internal/orchestrator, and
// the three control endpoints described in §6 (deferred client script,
// deferred poll, health check).
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/valpere/pantolingo/internal/deferred"
	"github.com/valpere/pantolingo/internal/orchestrator"
	"github.com/valpere/pantolingo/internal/site"
)

// SegmentCache is the subset of internal/store the poll endpoint needs
// to resolve already-translated hashes.
type SegmentCache = deferred.SegmentCache

// maxTranslateBodyBytes bounds the poll endpoint's request body — a
// client polling for its own page's pending segments, never an
// arbitrary upload.
const maxTranslateBodyBytes = 1 << 20

// gracefulShutdownTimeout bounds how long ListenAndServe waits for
// in-flight requests to finish once ctx is cancelled.
const gracefulShutdownTimeout = 10 * time.Second

// Server holds the collaborators the control endpoints and the
// catch-all proxy handler need.
type Server struct {
	orch     *orchestrator.Orchestrator
	sites    *site.Resolver
	segments SegmentCache
	log      *zap.Logger
}

// New builds a Server. log may be nil.
func New(orch *orchestrator.Orchestrator, sites *site.Resolver, segments SegmentCache, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{orch: orch, sites: sites, segments: segments, log: log}
}

// Router builds the *mux.Router handling all three control endpoints
// plus the catch-all proxy route.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/__pantolingo/deferred.js", s.handleDeferredScript).Methods(http.MethodGet)
	r.HandleFunc("/__pantolingo/translate", s.handleTranslatePoll).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.PathPrefix("/").HandlerFunc(s.handleProxy)
	return r
}

func (s *Server) handleDeferredScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write([]byte(deferred.ClientScript))
}

type translateRequest struct {
	Segments []deferred.PollItem `json:"segments"`
}

func (s *Server) handleTranslatePoll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cfg, found, err := s.sites.Resolve(ctx, r.Host)
	if err != nil || !found {
		http.Error(w, "unknown site", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxTranslateBodyBytes))
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}
	var req translateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	ready := deferred.Resolve(ctx, s.segments, cfg.SiteID, cfg.TargetLang, req.Segments)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ready); err != nil {
		s.log.Warn("failed to encode poll response", zap.Error(err))
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleProxy is the catch-all reverse-proxy route: translate the
// inbound *http.Request into an orchestrator.Request, run the pipeline,
// and write the result back.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-Id")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-Id", requestID)

	body, _ := io.ReadAll(r.Body)

	req := orchestrator.Request{
		Host:     r.Host,
		Method:   r.Method,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
		Header:   r.Header.Clone(),
		Body:     body,
	}

	resp, err := s.orch.Handle(r.Context(), req)
	if err != nil {
		s.log.Error("orchestrator handle failed", zap.Error(err),
			zap.String("request_id", requestID), zap.String("host", r.Host), zap.String("path", r.URL.Path))
		http.Error(w, "upstream error", http.StatusBadGateway)
		return
	}

	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	if resp.StatusCode == 0 {
		resp.StatusCode = http.StatusOK
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

// ListenAndServe starts the HTTP listener on addr, shutting down
// gracefully when ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{Addr: addr, Handler: s.Router()}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
