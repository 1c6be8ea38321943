// Package server exposes one loaded dataset over HTTP.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/KaramelBytes/insightloom/internal/dataset"
	"github.com/KaramelBytes/insightloom/internal/extractor"
	"github.com/KaramelBytes/insightloom/internal/mining"
	"github.com/KaramelBytes/insightloom/internal/report"
	"github.com/KaramelBytes/insightloom/internal/utils"
)

// Config holds server settings.
type Config struct {
	Addr string
	// Defaults apply when a request leaves a parameter out.
	Defaults mining.Options
	// MaxK caps the k parameter. Zero means no cap.
	MaxK     int
	Logger   *slog.Logger
	Warnings []string
}

// Server serves insight searches over a dataset.
type Server struct {
	router *chi.Mux
	ds     *dataset.Dataset
	cfg    Config
	log    *slog.Logger
}

// New creates a server for ds.
func New(ds *dataset.Dataset, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{router: chi.NewRouter(), ds: ds, cfg: cfg, log: cfg.Logger}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/dataset", s.handleDataset)
		r.Get("/insights", s.handleInsights)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// Start listens on cfg.Addr until ctx ends, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.cfg.Addr, "dataset", s.ds.Name())
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", middleware.GetReqID(r.Context()),
			"elapsed", time.Since(start).String())
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	top := 5
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid top: %q", v))
			return
		}
		top = n
	}
	writeJSON(w, http.StatusOK, s.ds.Describe(top))
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	opt, format, err := s.parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	opt.Logger = s.log
	m, err := mining.New(s.ds, opt)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := m.Mine(r.Context())
	if err != nil {
		if r.Context().Err() != nil {
			s.log.Warn("search abandoned by client", "request_id", middleware.GetReqID(r.Context()))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	meta := report.Meta{
		Dataset:     s.ds.Name(),
		Rows:        s.ds.Len(),
		Measure:     s.ds.Measure(),
		Aggregation: s.ds.Aggregation().String(),
		Depth:       opt.Depth,
		K:           opt.K,
		Cutoff:      opt.Cutoff,
		Extractors:  m.Extractors(),
		Warnings:    s.cfg.Warnings,
	}
	var buf bytes.Buffer
	if err := report.Render(&buf, res, format, meta); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", contentType(format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) parseQuery(r *http.Request) (mining.Options, report.Format, error) {
	q := r.URL.Query()
	opt := s.cfg.Defaults
	if v := q.Get("depth"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opt, "", fmt.Errorf("invalid depth: %q", v)
		}
		opt.Depth = n
	}
	if v := q.Get("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opt, "", fmt.Errorf("invalid k: %q", v)
		}
		opt.K = n
	}
	if s.cfg.MaxK > 0 && opt.K > s.cfg.MaxK {
		return opt, "", fmt.Errorf("k %d exceeds the limit of %d", opt.K, s.cfg.MaxK)
	}
	if v := q.Get("cutoff"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opt, "", fmt.Errorf("invalid cutoff: %q", v)
		}
		opt.Cutoff = f
	}
	if v := q.Get("ops"); v != "" {
		ops, err := extractor.ParseDerivedOps(v)
		if err != nil {
			return opt, "", err
		}
		opt.Ops = ops
	}
	if err := opt.Validate(); err != nil {
		return opt, "", err
	}
	format := report.JSON
	if v := q.Get("format"); v != "" {
		f, err := report.ParseFormat(v)
		if err != nil {
			return opt, "", err
		}
		format = f
	}
	return opt, format, nil
}

func contentType(f report.Format) string {
	switch f {
	case report.JSON:
		return "application/json"
	case report.YAML:
		return "application/yaml"
	case report.CSV:
		return "text/csv; charset=utf-8"
	case report.HTML:
		return "text/html; charset=utf-8"
	case report.Markdown:
		return "text/markdown; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := utils.PrettyJSON(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(b, '\n'))
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
