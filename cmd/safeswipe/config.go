package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/anatolykoptev/go-safeswipe"
	"github.com/anatolykoptev/go-safeswipe/facedetect"
	"github.com/anatolykoptev/go-safeswipe/httpapi"
)

// Backend kinds.
const (
	backendHuggingFace = "huggingface"
	backendInference   = "inference"
	backendNone        = "none"
)

// Settings is the process configuration. Environment variables are read
// first; a --config JSON file overrides them field by field.
type Settings struct {
	Server httpapi.Config `json:"server"`

	Backend      string   `json:"backend"`
	ModelID      string   `json:"model_id"`
	APIToken     string   `json:"api_token,omitempty"`
	InferenceURL string   `json:"inference_url,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	CascadePath  string   `json:"cascade_path,omitempty"`
	Timeout      string   `json:"timeout,omitempty"` // time.ParseDuration syntax
	LogLevel     string   `json:"log_level"`

	Scoring *safeswipe.Scoring `json:"scoring,omitempty"`
}

func defaultSettings() Settings {
	return Settings{
		Server:   httpapi.Config{Host: "0.0.0.0", Port: httpapi.DefaultPort},
		Backend:  backendHuggingFace,
		ModelID:  safeswipe.DefaultModelID,
		LogLevel: "info",
	}
}

// loadSettings applies defaults, then the environment, then the file at
// path when path is non-empty.
func loadSettings(path string, getenv func(string) string) (Settings, error) {
	s := defaultSettings()
	if err := s.applyEnv(getenv); err != nil {
		return Settings{}, err
	}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read config file: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return s, nil
}

func (s *Settings) applyEnv(getenv func(string) string) error {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	setString(&s.Backend, "SAFESWIPE_BACKEND")
	setString(&s.ModelID, "SAFESWIPE_MODEL_ID")
	setString(&s.APIToken, "SAFESWIPE_API_TOKEN")
	setString(&s.InferenceURL, "SAFESWIPE_INFERENCE_URL")
	setString(&s.CascadePath, "SAFESWIPE_CASCADE")
	setString(&s.Timeout, "SAFESWIPE_TIMEOUT")
	setString(&s.LogLevel, "SAFESWIPE_LOG_LEVEL")

	if v := getenv("SAFESWIPE_KEYWORDS"); strings.TrimSpace(v) != "" {
		s.Keywords = splitList(v)
	}

	if addr := strings.TrimSpace(getenv("SAFESWIPE_ADDR")); addr != "" {
		host, portStr, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("SAFESWIPE_ADDR: %w", err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 0 || port > 65535 {
			return fmt.Errorf("SAFESWIPE_ADDR: invalid port %q", portStr)
		}
		s.Server.Host, s.Server.Port = host, port
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// serverConfig returns the listener settings with the write deadline
// following the analyzer's classification timeout.
func (s Settings) serverConfig(cfg safeswipe.Config) httpapi.Config {
	server := s.Server
	server.ClassifyTimeout = cfg.Timeout
	return server
}

// analyzerConfig builds the analyzer configuration. It fails on settings
// that can never work, so a misconfigured process exits at startup.
func (s Settings) analyzerConfig() (safeswipe.Config, error) {
	cfg := safeswipe.Config{
		ModelID:  s.ModelID,
		Keywords: s.Keywords,
		OnClassification: func(ev safeswipe.ClassificationEvent) {
			slog.Debug("safeswipe: classification",
				"request_id", ev.RequestID,
				"image", ev.Image,
				"backend", ev.Backend,
				"available", ev.Available,
				"probability", ev.Probability,
				"reason", string(ev.Reason),
				"elapsed", ev.Elapsed,
			)
		},
	}
	if s.Scoring != nil {
		cfg.Scoring = *s.Scoring
	}

	if s.Timeout != "" {
		d, err := time.ParseDuration(s.Timeout)
		if err != nil {
			return safeswipe.Config{}, fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = d
	}

	switch strings.ToLower(s.Backend) {
	case "", backendHuggingFace:
		cfg.Backend = safeswipe.NewHuggingFaceBackend(s.ModelID, s.APIToken)
	case backendInference:
		cfg.Backend = safeswipe.NewInferenceServiceBackend(s.InferenceURL)
	case backendNone:
	default:
		return safeswipe.Config{}, fmt.Errorf("unknown backend %q (want %s, %s or %s)",
			s.Backend, backendHuggingFace, backendInference, backendNone)
	}

	if s.CascadePath != "" {
		det, err := facedetect.Load(s.CascadePath)
		if err != nil {
			return safeswipe.Config{}, fmt.Errorf("face detector: %w", err)
		}
		cfg.FaceDetector = det
	}

	if err := cfg.Validate(); err != nil {
		return safeswipe.Config{}, errors.Join(errors.New("invalid analyzer settings"), err)
	}
	return cfg, nil
}
