package main

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/fentz26/designboard/internal/config"
	"github.com/fentz26/designboard/internal/controlplane"
	"github.com/fentz26/designboard/internal/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage designboard settings and actors",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configActorsCmd = &cobra.Command{
	Use:   "actors",
	Short: "List configured actors",
	RunE:  runConfigActors,
}

var configAddActorCmd = &cobra.Command{
	Use:   "add-actor <id>",
	Short: "Add or replace an actor",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigAddActor,
}

var configRemoveActorCmd = &cobra.Command{
	Use:   "remove-actor <id>",
	Short: "Remove an actor",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigRemoveActor,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the designboard version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("designboard", controlplane.Version)
	},
}

var (
	forceInit    bool
	actorName    string
	actorRoles   []string
	actorColumns []string
)

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd, configActorsCmd, configAddActorCmd, configRemoveActorCmd)

	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing config file")

	configAddActorCmd.Flags().StringVar(&actorName, "name", "", "Display name")
	configAddActorCmd.Flags().StringSliceVar(&actorRoles, "role", nil, "Role (repeatable: super_admin, admin, designer, salesperson, viewer)")
	configAddActorCmd.Flags().StringSliceVar(&actorColumns, "column", nil, "Column the actor may see, in addition to role rules (repeatable)")
	configAddActorCmd.MarkFlagRequired("role")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil && !forceInit {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}
	if err := config.Save(configPath, config.DefaultConfig()); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", configPath)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Printf("# %s\n%s", configPath, data)
	return nil
}

func runConfigActors(cmd *cobra.Command, args []string) error {
	if len(cfg.Actors) == 0 {
		fmt.Println("No actors configured")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tROLES\tCOLUMNS")
	for _, a := range cfg.Actors {
		roles := make([]string, len(a.Roles))
		for i, r := range a.Roles {
			roles[i] = string(r)
		}
		cols := make([]string, len(a.AllowedColumns))
		for i, c := range a.AllowedColumns {
			cols[i] = string(c)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.ID, a.Name, strings.Join(roles, ","), strings.Join(cols, ","))
	}
	w.Flush()
	return nil
}

func runConfigAddActor(cmd *cobra.Command, args []string) error {
	actor := models.Actor{ID: args[0], Name: actorName}
	for _, r := range actorRoles {
		actor.Roles = append(actor.Roles, models.Role(r))
	}
	for _, c := range actorColumns {
		b, ok := models.ParseBucket(c)
		if !ok {
			return fmt.Errorf("unknown column %q (want one of %s)", c, bucketNames())
		}
		actor.AllowedColumns = append(actor.AllowedColumns, b)
	}

	i := slices.IndexFunc(cfg.Actors, func(a models.Actor) bool { return a.ID == actor.ID })
	if i >= 0 {
		cfg.Actors[i] = actor
	} else {
		cfg.Actors = append(cfg.Actors, actor)
	}

	// Save validates roles and ids.
	if err := config.Save(configPath, cfg); err != nil {
		return err
	}
	fmt.Printf("Saved actor %s. Restart the daemon to apply.\n", actor.ID)
	return nil
}

func runConfigRemoveActor(cmd *cobra.Command, args []string) error {
	i := slices.IndexFunc(cfg.Actors, func(a models.Actor) bool { return a.ID == args[0] })
	if i < 0 {
		return fmt.Errorf("actor %q not found", args[0])
	}
	cfg.Actors = slices.Delete(cfg.Actors, i, i+1)

	if err := config.Save(configPath, cfg); err != nil {
		return err
	}
	fmt.Printf("Removed actor %s. Restart the daemon to apply.\n", args[0])
	return nil
}
