// Package httpapi serves the analyzer over HTTP: a JSON API and a small
// HTML upload form.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/anatolykoptev/go-safeswipe"
)

const (
	DefaultPort           = 8080
	DefaultMaxUploadBytes = 32 << 20 // five phone photos plus form overhead
)

// Analyzer is the part of *safeswipe.Analyzer the handlers use.
type Analyzer interface {
	Analyze(ctx context.Context, sub safeswipe.Submission) safeswipe.Report
	ModelID() string
	MaxImages() int
	Notice() string
}

// Config holds the listener settings.
type Config struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	MaxUploadBytes int64  `json:"max_upload_bytes,omitempty"`

	// ClassifyTimeout is the analyzer's per-classification bound; the
	// write deadline is derived from it. Default: safeswipe.DefaultTimeout.
	ClassifyTimeout time.Duration `json:"-"`
}

func (c Config) addr() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return fmt.Sprintf("%v:%v", c.Host, port)
}

func (c Config) maxUploadBytes() int64 {
	if c.MaxUploadBytes <= 0 {
		return DefaultMaxUploadBytes
	}
	return c.MaxUploadBytes
}

// WriteTimeout leaves room for one full classification round: every image
// is classified concurrently under its own timeout.
func (c Config) WriteTimeout() time.Duration {
	classify := c.ClassifyTimeout
	if classify <= 0 {
		classify = safeswipe.DefaultTimeout
	}
	return classify + 30*time.Second
}

type Server struct {
	server *http.Server
	config Config
}

// NewServer wires the router into an http.Server.
func NewServer(a Analyzer, config Config) *Server {
	addr := config.addr()
	slog.Info("safeswipe: creating server", "address", addr, "model_id", a.ModelID())

	return &Server{
		server: &http.Server{
			Handler:           NewRouter(a, config),
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      config.WriteTimeout(),
		},
		config: config,
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.server.Addr }

func (s *Server) ListenAndServe() error {
	slog.Info("safeswipe: starting server", "address", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop shuts the server down, waiting briefly for in-flight analyses.
func (s *Server) Stop() error {
	slog.Info("safeswipe: shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		slog.Error("safeswipe: server shutdown", "error", err)
		return err
	}
	slog.Info("safeswipe: server shut down")
	return nil
}

// NewRouter registers every route.
func NewRouter(a Analyzer, config Config) *mux.Router {
	h := &handlers{analyzer: a, maxUploadBytes: config.maxUploadBytes()}

	router := mux.NewRouter()
	router.HandleFunc("/api/health", h.health).Methods(http.MethodGet)
	router.HandleFunc("/api/analyze", h.apiAnalyze).Methods(http.MethodPost)
	router.HandleFunc("/", h.index).Methods(http.MethodGet)
	router.HandleFunc("/analyze", h.htmlAnalyze).Methods(http.MethodPost)
	return router
}
