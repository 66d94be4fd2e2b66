// Package serverapp exposes the host event surface over HTTP so the
// pipeline can run without an embedded game-server host.
package serverapp

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"demos-to-discord/core/internal/workflow"
	"demos-to-discord/host"
)

const (
	defaultReportRate  = rate.Limit(5)
	defaultReportBurst = 20
	maxBodyBytes       = 64 << 10
	shutdownTimeout    = 10 * time.Second
)

type Config struct {
	// PSK, when set, must be sent in X-PSK on every /v1 request.
	PSK         string
	ReportRate  rate.Limit
	ReportBurst int
	CertFile    string
	KeyFile     string
}

// Server is a host.EventSource backed by HTTP endpoints.
type Server struct {
	cfg      Config
	logger   *zap.Logger
	registry *host.Registry
	hub      *host.Hub
	limiter  *rate.Limiter

	// baseCtx is handed to report handlers instead of the request context,
	// which ends as soon as the 202 is written.
	baseCtx context.Context
}

type reportRequest struct {
	Kind      string       `json:"kind"`
	SessionID string       `json:"session_id"`
	Target    *host.Player `json:"target"`
	Reporter  *host.Player `json:"reporter"`
}

type mapRequest struct {
	Map  string `json:"map"`
	Mode string `json:"mode"`
}

func New(logger *zap.Logger, cfg Config) *Server {
	if cfg.ReportRate <= 0 {
		cfg.ReportRate = defaultReportRate
	}
	if cfg.ReportBurst <= 0 {
		cfg.ReportBurst = defaultReportBurst
	}
	return &Server{
		cfg:      cfg,
		logger:   logger.Named("serverapp"),
		registry: host.NewRegistry(),
		hub:      host.NewHub(),
		limiter:  rate.NewLimiter(cfg.ReportRate, cfg.ReportBurst),
		baseCtx:  context.Background(),
	}
}

func (s *Server) OnReport(fn host.ReportHandler) { s.hub.OnReport(fn) }

func (s *Server) OnLoad(fn host.LoadHandler) { s.hub.OnLoad(fn) }

func (s *Server) Registry() *host.Registry { return s.registry }

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.pskMiddleware)
		r.Get("/sessions", s.handleListSessions)
		r.Post("/sessions", s.handleUpsertSession)
		r.Put("/sessions/{id}/map", s.handleSetMap)
		r.Post("/reports", s.handleReport)
	})
	return r
}

// Run serves on addr until ctx is done. The load hook fires once the
// listener is bound.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.baseCtx = ctx

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if s.cfg.CertFile != "" && s.cfg.KeyFile != "" {
			s.logger.Info("Listening", zap.String("addr", "https://"+ln.Addr().String()))
			err = srv.ServeTLS(ln, s.cfg.CertFile, s.cfg.KeyFile)
		} else {
			s.logger.Info("Listening", zap.String("addr", "http://"+ln.Addr().String()))
			err = srv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		s.hub.EmitLoad(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) pskMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.PSK != "" {
			psk := r.Header.Get("X-PSK")
			if subtle.ConstantTimeCompare([]byte(psk), []byte(s.cfg.PSK)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid psk")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("Handler panicked", zap.Any("panic", rec), zap.String("path", r.URL.Path))
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleUpsertSession(w http.ResponseWriter, r *http.Request) {
	var req host.SessionInfo
	if !decode(w, r, &req) {
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	s.registry.Upsert(req)
	s.logger.Debug("Session registered", zap.String("session_id", req.ID), zap.String("game", req.Game), zap.String("map", req.Map))
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleSetMap(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	sess, ok := s.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	var req mapRequest
	if !decode(w, r, &req) {
		return
	}
	sess.SetMap(req.Map, req.Mode)
	s.logger.Debug("Session map changed", zap.String("session_id", id), zap.String("map", req.Map))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		workflow.RejectReport("rate_limited")
		writeError(w, http.StatusTooManyRequests, "report rate exceeded")
		return
	}
	var req reportRequest
	if !decode(w, r, &req) {
		return
	}
	sess, ok := s.registry.Get(strings.TrimSpace(req.SessionID))
	if !ok {
		workflow.RejectReport("unknown_session")
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	kind := host.PenaltyKind(strings.ToLower(strings.TrimSpace(req.Kind)))
	if kind == "" {
		kind = host.PenaltyReport
	}
	s.hub.EmitReport(s.baseCtx, host.ReportEvent{
		Kind:     kind,
		Target:   req.Target,
		Reporter: req.Reporter,
		Session:  sess,
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
