// Package server exposes sessions over HTTP: upload and initialise, ask,
// read and clear history, plus a small page that drives the same API.
package server

import (
	"context"
	"embed"
	"errors"
	"net/http"
	"time"

	"github.com/Chative-rag-chat/server/internal/session"
	logx "github.com/Chative-rag-chat/server/pkg/logger"
)

//go:embed static/index.html
var staticFS embed.FS

type Config struct {
	Addr           string
	MaxUploadBytes int64
	RequestTimeout time.Duration
	// VerboseErrors returns full error chains to clients.
	VerboseErrors bool
}

type Server struct {
	cfg      Config
	sessions *session.Manager
	http     *http.Server
}

func New(sessions *session.Manager, cfg Config) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 512 << 20
	}
	s := &Server{cfg: cfg, sessions: sessions}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/init", s.handleInit)
	mux.HandleFunc("POST /api/sessions/{id}/messages", s.handleAsk)
	mux.HandleFunc("GET /api/sessions/{id}/messages", s.handleHistory)
	mux.HandleFunc("DELETE /api/sessions/{id}/messages", s.handleClearHistory)

	return recoverMiddleware(loggingMiddleware(mux))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logx.Info().Str("addr", s.cfg.Addr).Msg("HTTP server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logx.Info().Msg("HTTP server shutting down")
	return s.http.Shutdown(shutdownCtx)
}
