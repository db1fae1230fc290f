// Command server runs the fundraising data API over the remote
// spreadsheet store.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fundwise/fundsheet/api"
	"github.com/fundwise/fundsheet/cache"
	"github.com/fundwise/fundsheet/config"
	"github.com/fundwise/fundsheet/internal/sheetsinfra"
	"github.com/fundwise/fundsheet/pkg/di"
	"github.com/fundwise/fundsheet/pkg/logging"
)

func main() {
	settings, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if err := settings.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logging.New(settings.LogLevel, settings.LogFormat)
	defer func() { _ = log.Sync() }()

	if err := run(settings, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(settings config.Settings, log *zap.Logger) error {
	tokens, err := tokenSource(settings)
	if err != nil {
		return err
	}

	client, err := sheetsinfra.NewClient(sheetsinfra.Config{
		BaseURL:        settings.BaseURL,
		TokenSource:    tokens,
		Retry:          settings.Retry,
		MaxConnections: settings.MaxConnections,
		Logger:         log,
	})
	if err != nil {
		return err
	}

	cacheCfg := cache.DefaultConfig()
	cacheCfg.TTL = settings.CacheTTL

	container, err := di.NewContainer(client, settings.SpreadsheetID, cacheCfg, log)
	if err != nil {
		return err
	}

	router := api.NewRouter(api.NewHandler(container, log), settings.AllowedOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", settings.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.Int("port", settings.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func tokenSource(settings config.Settings) (sheetsinfra.TokenSource, error) {
	if settings.StaticToken != "" {
		return sheetsinfra.StaticTokenSource(settings.StaticToken), nil
	}
	key, err := sheetsinfra.LoadServiceAccountKey(settings.Credentials)
	if err != nil {
		return nil, err
	}
	return sheetsinfra.NewServiceAccountTokenSource(key, "")
}
