package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/fentz26/designboard/internal/config"
	"github.com/fentz26/designboard/internal/tui"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive board",
	RunE:  runTUI,
}

var (
	noBell      bool
	tuiLogFile  string
	noAutoStart bool
)

func init() {
	tuiCmd.Flags().BoolVar(&noBell, "no-bell", false, "Disable the terminal bell on new cards and moves")
	tuiCmd.Flags().StringVar(&tuiLogFile, "log", "", "Write logs to this file while the board is open")
	tuiCmd.Flags().BoolVar(&noAutoStart, "no-autostart", false, "Fail instead of starting a local daemon")
}

func runTUI(cmd *cobra.Command, args []string) error {
	// 1. Check if Daemon is running
	if !isDaemonRunning() {
		if noAutoStart {
			return fmt.Errorf("daemon not reachable at %s", apiAddr)
		}
		fmt.Println("⚡ designboard daemon not running. Starting background service...")
		if err := startDaemon(); err != nil {
			return fmt.Errorf("failed to start daemon: %w", err)
		}
	}

	// 2. Resolve the actor so the board is projected for them
	client := tui.NewClient(apiAddr, actorID)
	ctx, cancel := context.WithTimeout(context.Background(), DefaultClientTimeout)
	me, err := client.Me(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("resolve actor %q: %w", actorID, err)
	}

	// 3. Launch TUI
	app, err := tui.New(client, client.Feed(), me, tui.Options{
		PollInterval:  cfg.PollInterval,
		DragThreshold: cfg.DragThreshold,
		Locale:        cfg.Locale,
		Bell:          !noBell,
		LogFile:       tuiLogFile,
	})
	if err != nil {
		return err
	}
	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func isDaemonRunning() bool {
	health, err := CheckHealth(&http.Client{Timeout: 500 * time.Millisecond})
	return err == nil && health.OK
}

func startDaemon() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	// Start "designboard daemon" in background with the same config
	cmd := exec.Command(exe, "daemon", "--config", configPath)
	configureDaemonProc(cmd)

	logPath := filepath.Join(config.Dir(), "daemon.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
		return err
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	defer logFile.Close()
	cmd.Stdin = nil
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		return err
	}

	// Wait for it to become ready
	fmt.Print("   Waiting for daemon...")
	for i := 0; i < 20; i++ { // Wait up to 5 seconds
		if isDaemonRunning() {
			fmt.Println(" Done.")
			return nil
		}
		time.Sleep(250 * time.Millisecond)
		fmt.Print(".")
	}
	fmt.Println(" Timeout!")
	return fmt.Errorf("daemon started but API not reachable at %s (see %s)", apiAddr, logPath)
}
