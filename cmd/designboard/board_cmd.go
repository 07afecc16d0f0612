package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fentz26/designboard/internal/board"
	"github.com/fentz26/designboard/internal/models"
	"github.com/spf13/cobra"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Print the board as the current actor sees it",
	RunE:  runBoard,
}

var (
	boardSort    string
	boardFilters board.Filters
	boardMine    bool
	boardUrgent  bool
)

func init() {
	boardCmd.Flags().StringVar(&boardSort, "sort", "", "Sort option ("+sortNames()+")")
	boardCmd.Flags().StringVar(&boardFilters.Search, "search", "", "Match customer name or order number")
	boardCmd.Flags().StringVar(&boardFilters.CreatedBy, "creator", "", "Only tasks created by this actor")
	boardCmd.Flags().BoolVar(&boardMine, "mine", false, "Only tasks assigned to you")
	boardCmd.Flags().BoolVar(&boardUrgent, "urgent", false, "Only urgent tasks")
}

func runBoard(cmd *cobra.Command, args []string) error {
	sortBy, err := board.ParseSortOption(boardSort)
	if err != nil {
		return err
	}
	if boardMine {
		boardFilters.AssignedTo = actorID
	}
	if boardUrgent {
		boardFilters.Priority = models.PriorityUrgent
	}

	resp, err := apiGet("/me")
	if err != nil {
		return err
	}
	var me models.Actor
	if err := json.Unmarshal(resp, &me); err != nil {
		return err
	}

	resp, err = apiGet("/snapshot")
	if err != nil {
		return err
	}
	var snap models.Snapshot
	if err := json.Unmarshal(resp, &snap); err != nil {
		return err
	}

	projector, err := board.NewProjector(cfg.Locale)
	if err != nil {
		return err
	}
	b := projector.Project(snap.Tasks, me, boardFilters, sortBy)
	if len(b.Columns) == 0 {
		fmt.Println("No columns visible for this actor")
		return nil
	}

	now := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, col := range b.Columns {
		fmt.Fprintf(w, "== %s (%d) ==\n", strings.ToUpper(string(col.Bucket)), len(col.Tasks))
		for _, t := range col.Tasks {
			marker := " "
			if t.Priority == models.PriorityUrgent {
				marker = "!"
			}
			fmt.Fprintf(w, "%s %s\t%s\t%s\t%s\t%s\n", marker, truncateID(t.ID),
				truncate(t.CustomerName, 30), t.OrderNumber, t.AssignedTo, now.Sub(t.StatusChangedAt).Truncate(time.Minute))
		}
		fmt.Fprintln(w)
	}
	w.Flush()
	fmt.Printf("%d tasks, sorted by %s\n", b.Len(), sortBy)
	return nil
}

func sortNames() string {
	var names []string
	for _, o := range board.SortOptions() {
		names = append(names, o.String())
	}
	return strings.Join(names, ", ")
}
