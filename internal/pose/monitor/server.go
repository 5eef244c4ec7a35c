// Package monitor serves the HTTP surface: the live annotated feed,
// accuracy and history queries, stream control, the dashboard and the
// database debug pages.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/banshee-data/pose.report/internal/db"
	"github.com/banshee-data/pose.report/internal/monitoring"
	"github.com/banshee-data/pose.report/internal/pose/pipeline"
	"github.com/banshee-data/pose.report/internal/pose/rules"
)

var logf = monitoring.Prefixed("monitor")

// maxHistory caps the limit query parameter.
const maxHistory = 1000

// Config wires the server to the running pipeline.
type Config struct {
	Address string
	Manager *pipeline.Manager
	Catalog *rules.Catalog
	// DB, when set, mounts the tsweb debugger and tailsql under /debug/.
	DB *db.DB
	// ShutdownTimeout bounds graceful shutdown. Default 5s.
	ShutdownTimeout time.Duration
}

// Server is the HTTP front end.
type Server struct {
	cfg     Config
	mgr     *pipeline.Manager
	catalog *rules.Catalog
	server  *http.Server
	handler http.Handler
}

// NewServer builds the routes. It fails only when the debug routes cannot
// be attached.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Manager == nil {
		return nil, errors.New("monitor: manager is required")
	}
	if cfg.Catalog == nil {
		cfg.Catalog = rules.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	s := &Server{cfg: cfg, mgr: cfg.Manager, catalog: cfg.Catalog}
	mux, err := s.setupRoutes()
	if err != nil {
		return nil, err
	}
	s.handler = LoggingMiddleware(mux)
	s.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the root handler, including request logging.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) setupRoutes() (*http.ServeMux, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("GET /api/exercises", s.handleExercises)
	mux.HandleFunc("GET /api/sessions", s.handleSessions)
	mux.HandleFunc("GET /api/accuracy_stats", s.handleAccuracyStats)
	mux.HandleFunc("/api/reset_accuracy", s.handleResetAccuracy)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/history/plot.png", s.handleHistoryPlot)
	mux.HandleFunc("GET /api/streams", s.handleStreams)
	mux.HandleFunc("POST /api/streams/{id}/stop", s.handleStopStream)
	mux.HandleFunc("GET /video_feed/{exercise}", s.handleVideoFeed)
	mux.HandleFunc("GET /dashboard", s.handleDashboard)

	if s.cfg.DB != nil {
		if err := s.cfg.DB.AttachAdminRoutes(mux); err != nil {
			return nil, fmt.Errorf("attach admin routes: %w", err)
		}
	}
	return mux, nil
}

// Start serves until ctx is cancelled and then shuts down gracefully.
// Open video feeds end when the manager closes their streams, so callers
// should close the manager before or alongside cancelling ctx.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logf("starting HTTP server on %s", s.cfg.Address)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logf("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		logf("HTTP server shutdown error: %v", err)
		if err := s.server.Close(); err != nil {
			logf("HTTP server force close error: %v", err)
		}
	}
	logf("HTTP server routine stopped")
	return nil
}
