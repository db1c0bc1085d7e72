// Command safeswipe serves the dating-profile AI-generation check over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/anatolykoptev/go-safeswipe"
	"github.com/anatolykoptev/go-safeswipe/httpapi"
)

func main() {
	configPath := flag.String("config", "", "Path for an optional config.json overriding the environment")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		slog.Error("safeswipe: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	settings, err := loadSettings(configPath, os.Getenv)
	if err != nil {
		return err
	}
	InitLogger(settings.LogLevel)

	cfg, err := settings.analyzerConfig()
	if err != nil {
		return err
	}

	analyzer := safeswipe.New(cfg)
	if notice := analyzer.Notice(); notice != "" {
		slog.Warn("safeswipe: running in degraded mode", "notice", notice)
	}

	server := httpapi.NewServer(analyzer, settings.serverConfig(cfg))

	errc := make(chan error, 1)
	go func() { errc <- server.ListenAndServe() }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen and serve: %w", err)
	case <-ctx.Done():
		return server.Stop()
	}
}
