package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/slackmirror/slackmirror/internal/config"
	"github.com/slackmirror/slackmirror/internal/dedupe"
	"github.com/slackmirror/slackmirror/internal/forward"
	"github.com/slackmirror/slackmirror/internal/history"
	"github.com/slackmirror/slackmirror/internal/mirror"
	"github.com/slackmirror/slackmirror/internal/server"
	"github.com/slackmirror/slackmirror/internal/tenant"
	"github.com/slackmirror/slackmirror/internal/webhook"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay server",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	printHeader("🔁 SlackMirror Serve")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	logger := slog.Default()

	registry, err := tenant.NewRegistry(cfg.Tenants)
	if err != nil {
		fmt.Printf("Tenant registry error: %v\n", err)
		os.Exit(1)
	}
	for _, org := range registry.Organizations() {
		fmt.Printf("Tenant ready: %s (%s)\n", org.Name, org.TeamID)
	}

	var store *history.Store
	if cfg.History.DBPath != "" {
		store, err = history.OpenStore(cfg.History.DBPath)
		if err != nil {
			fmt.Printf("History store error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
	}
	var publisher *history.Publisher
	if cfg.History.KafkaBrokers != "" {
		publisher = history.NewPublisher(cfg.History.KafkaBrokers, cfg.History.KafkaTopic)
		defer publisher.Close()
	}

	deduper := dedupe.New(cfg.Dedupe.TTL())
	verifier := webhook.NewVerifier(registry, cfg.Verify.Freshness())
	svc := mirror.NewService(registry, cfg.History.Lookback(), logger)
	recorder := history.NewRecorder(svc, store, publisher, cfg.History.LogHistory, logger)

	sinks := webhook.Fanout{recorder}
	if len(cfg.Forward) > 0 {
		sinks = append(sinks, forward.New(registry, cfg.Forward, logger))
	}
	dispatcher := webhook.NewDispatcher(registry, verifier, deduper, sinks, logger)

	srv := server.New(registry, svc, dispatcher, deduper, cfg.Server.AllowOrigin, logger)
	httpSrv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("Listening on %s\n", cfg.Server.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		fmt.Printf("Received %s, shutting down...\n", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	// Let in-flight event recording drain before the store closes.
	dispatcher.Wait()
	fmt.Println("Goodbye.")
}
