package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fentz26/designboard/internal/audit"
	"github.com/fentz26/designboard/internal/controlplane"
	"github.com/fentz26/designboard/internal/feed"
	"github.com/fentz26/designboard/internal/store"
	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the designboard daemon",
	Long:  `Starts the board API server and change feed that the TUI and task commands talk to.`,
	RunE:  runDaemon,
}

var (
	listenAddr string
	dbPath     string
)

func init() {
	daemonCmd.Flags().StringVar(&listenAddr, "listen", "", "Address to listen on (default from config)")
	daemonCmd.Flags().StringVar(&dbPath, "db", "", "Database path (default from config)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}
	if dbPath != "" {
		cfg.DB = dbPath
	}

	log.Println("Initializing designboard daemon...")

	hub := feed.NewHub(feed.WithBufferSize(cfg.FeedBuffer))

	s, err := store.New(cfg.DB, store.WithPublisher(hub), store.WithStrictWrites(cfg.StrictWrites))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer s.Close()
	log.Printf("Database: %s", cfg.DB)

	pdr := audit.NewPDRWriter(s)
	service := controlplane.NewService(s, pdr, cfg)
	server := controlplane.NewServer(service, hub, cfg.Listen)
	log.Printf("Loaded %d actors (strict writes: %v)", len(cfg.Actors), cfg.StrictWrites)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		err := server.Start()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serverErr:
		if err != nil {
			log.Printf("Server error: %v", err)
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Daemon stopped")
	return nil
}
