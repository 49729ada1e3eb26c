package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tryon-ai/tryon/internal/api"
	"github.com/tryon-ai/tryon/internal/core/task"
	"github.com/tryon-ai/tryon/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local API for the try-on UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		return run(config)
	},
}

func run(config *types.Config) error {
	log.Printf("Starting tryon companion v%s", version)

	a, err := openApp(config)
	if err != nil {
		return err
	}
	defer a.close()
	log.Printf("Store initialized: %s", a.store.Path())
	log.Printf("Environment secret: %s", a.deriver.Secret().Hint())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Drop cached images whose tasks are gone
	if err := a.client.Start(ctx); err != nil {
		return fmt.Errorf("failed to reconcile image cache: %w", err)
	}

	if config.Poller.Enabled {
		poller := task.NewPoller(a.client, a.pollInterval(), a.log)
		go poller.Run(ctx)
		log.Printf("Status poller enabled (every %s)", a.pollInterval())
	}

	kinds := make([]types.TaskKind, 0, 2)
	for _, ep := range task.DefaultEndpoints() {
		kinds = append(kinds, ep.Kind)
	}
	router := api.NewRouter(a.client, kinds, a.vault, a.prefs, a.log)
	defer router.Close()

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router.Handler(),
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Print startup info
	log.Printf("tryon companion ready!")
	log.Printf("  API: http://%s/api/v1", addr)
	log.Printf("  WebSocket: ws://%s/ws", addr)
	log.Printf("  Remote service: %s", config.Remote.BaseURL)

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}
