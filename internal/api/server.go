package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Adam01140114/WaterData/internal/notify"
	"github.com/Adam01140114/WaterData/internal/repository"
)

// Options configures a Server.
type Options struct {
	Sites      []string
	CORSOrigin string
	Storage    StorageMode
	Version    string
}

// Server is the REST API server.
type Server struct {
	httpServer *http.Server
	handlers   *Handlers
}

// NewServer creates a new API server with all routes registered.
func NewServer(repo *repository.Repository, hub *notify.Hub, logger *slog.Logger, opts Options) *Server {
	h := &Handlers{
		Repo:      repo,
		Notices:   hub,
		Storage:   opts.Storage,
		Sites:     opts.Sites,
		Logger:    logger,
		StartTime: time.Now(),
		Version:   opts.Version,
	}

	srv := &http.Server{
		Handler:      Routes(h, opts.CORSOrigin),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{httpServer: srv, handlers: h}
}

// Routes registers every endpoint on a new mux and wraps it in the
// middleware chain.
func Routes(h *Handlers, corsOrigin string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/readings", h.ListReadings)
	mux.HandleFunc("POST /api/v1/readings", h.SubmitReading)
	mux.HandleFunc("DELETE /api/v1/readings", h.ClearReadings)
	mux.HandleFunc("DELETE /api/v1/readings/{id}", h.DeleteReading)
	mux.HandleFunc("POST /api/v1/readings/{id}/edit", h.EditReading)
	mux.HandleFunc("GET /api/v1/chart", h.GetChart)
	mux.HandleFunc("GET /api/v1/sites", h.ListSites)
	mux.HandleFunc("GET /api/v1/export.csv", h.ExportCSV)
	mux.HandleFunc("GET /api/v1/export.xlsx", h.ExportXLSX)
	mux.HandleFunc("GET /api/v1/health", h.Health)
	if h.Notices != nil {
		mux.Handle("GET /api/v1/events", h.Notices)
	}
	mux.Handle("GET /metrics", promhttp.Handler())

	// Apply middleware (outermost runs first).
	var handler http.Handler = mux
	handler = ContentType(handler)
	handler = SecurityHeaders(handler)
	handler = CORS(corsOrigin)(handler)
	handler = Logger(handler)
	handler = RequestID(handler)
	handler = Recovery(handler)
	return handler
}

// ListenAndServe starts the HTTP server. Blocks until context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.httpServer.Addr = addr
	slog.Info("api server starting", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("api server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
