package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yachaflex/pairing/internal/config"
	"github.com/yachaflex/pairing/internal/handler"
	"github.com/yachaflex/pairing/internal/observability"
	"github.com/yachaflex/pairing/internal/service/link"
	"github.com/yachaflex/pairing/internal/service/relay"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	relayService := relay.NewService(
		relay.NewTokens(cfg.Pairing.TokenSecret, cfg.Pairing.TokenIssuer),
		relay.Options{
			PublicURL: cfg.Pairing.PublicURL,
			Parser:    link.NewParser(cfg.Pairing.LinkScheme, cfg.Pairing.LinkHost),
			Style:     cfg.Pairing.LinkStyle,
			TTL:       cfg.Pairing.SessionTTL,
			Recorder:  metrics,
		},
	)
	log.Printf("pairing sessions expire after %s, public url %s", cfg.Pairing.SessionTTL, cfg.Pairing.PublicURL)

	go relayService.RunSweeper(ctx, cfg.Pairing.SweepInterval)

	router := handler.NewRouter(relayService, prometheus.DefaultGatherer)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("pairing relay listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
