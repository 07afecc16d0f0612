package main

import (
	"fmt"
	"os"

	"github.com/fentz26/designboard/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "designboard",
	Short: "designboard - design workflow board for custom apparel",
	Long: `designboard tracks custom apparel design jobs on a shared kanban board.
Run the daemon once, then drive the board from the TUI or the task commands.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	apiAddr    string
	actorID    string
	configPath string

	cfg *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Config file")
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "", "API server address (default from config)")
	rootCmd.PersistentFlags().StringVar(&actorID, "actor", "", "Acting operator id (default from config)")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves the config file and lets --api and --actor override it.
func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if apiAddr == "" {
		apiAddr = c.API
	}
	if actorID == "" {
		actorID = c.Actor
	}
	cfg = c
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
