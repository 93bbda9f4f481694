// Package server exposes the classifier over a small JSON REST API.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/RyanBlaney/sonido-emotion/classifier"
	"github.com/RyanBlaney/sonido-emotion/logging"
)

// Predictor is the part of classifier.Classifier the handlers need.
type Predictor interface {
	PredictReader(ctx context.Context, r io.Reader, name string) (*classifier.Prediction, error)
	AnalyzeReader(ctx context.Context, r io.Reader, name string) (*classifier.Analysis, error)
}

// Config holds the HTTP listener settings.
type Config struct {
	Bind            string
	MaxUploadBytes  int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig listens on localhost with a 32 MiB upload cap.
func DefaultConfig() Config {
	return Config{
		Bind:            "127.0.0.1:8080",
		MaxUploadBytes:  32 << 20,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    120 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server serves predictions over HTTP.
type Server struct {
	cfg       Config
	predictor Predictor
	logger    logging.Logger
	handler   http.Handler
}

// New builds the server and its routes.
func New(cfg Config, predictor Predictor) (*Server, error) {
	if predictor == nil {
		return nil, errors.New("server: predictor is required")
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("server: max upload bytes must be positive, got %d", cfg.MaxUploadBytes)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}

	s := &Server{
		cfg:       cfg,
		predictor: predictor,
		logger: logging.WithFields(logging.Fields{
			"component": "api_server",
		}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/predict", s.handlePredict)
	mux.HandleFunc("POST /api/v1/features", s.handleFeatures)
	mux.HandleFunc("GET /api/v1/labels", s.handleLabels)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.handler = s.withRequestID(mux)
	return s, nil
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	return s.Serve(ctx, listener)
}

// Serve handles requests on listener until ctx is cancelled, then drains
// in-flight requests for up to the shutdown timeout.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	s.logger.Info("API server listening", logging.Fields{
		"address": listener.Addr().String(),
	})

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api serve: %w", err)
	case <-ctx.Done():
	}

	// ctx is already done, so the drain gets its own deadline.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api serve: %w", err)
	}
	return nil
}
