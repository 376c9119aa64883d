package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"projectflow/internal/derive"
	"projectflow/internal/model"

	"github.com/spf13/cobra"
)

var (
	boardOwner    string
	boardFilter   model.Filter
	boardSort     string
	boardJSON     bool
	boardUpcoming bool
)

var boardCmd = &cobra.Command{
	Use:   "board [project-id]",
	Short: "Print a project's kanban board and milestones",
	Long: `Derive the project detail view straight from the database and print
its milestones with progress, the kanban board, and overdue or upcoming tasks.

Examples:
  pfctl board 6f1c...
  pfctl board 6f1c... --priority high --search login
  pfctl board 6f1c... --json`,
	Args: cobra.ExactArgs(1),
	RunE: runBoard,
}

func init() {
	boardCmd.Flags().StringVar(&boardOwner, "as", "pfctl", "user the read is attributed to in logs")
	boardCmd.Flags().StringVar(&boardFilter.Status, "status", "", "only tasks with this status")
	boardCmd.Flags().StringVar(&boardFilter.Priority, "priority", "", "only tasks with this priority")
	boardCmd.Flags().StringVarP(&boardFilter.Search, "search", "s", "", "case-insensitive title/description search")
	boardCmd.Flags().StringVar(&boardSort, "sort", "", "newest, oldest, deadline or name")
	boardCmd.Flags().BoolVarP(&boardJSON, "json", "j", false, "output the full view as JSON")
	boardCmd.Flags().BoolVar(&boardUpcoming, "deadlines", true, "list overdue and upcoming tasks")
}

func runBoard(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := cmd.Context()
	pool, err := openPostgres(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctrl := controllerFor(cfg, pool, boardOwner, log)
	view, err := ctrl.ProjectView(ctx, args[0], model.TaskQuery{
		Filter: boardFilter,
		Sort:   model.SortKey(boardSort).OrDefault(),
	})
	if err != nil {
		return err
	}

	if boardJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	renderView(cmd.OutOrStdout(), view, boardUpcoming)
	return nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

// renderView prints the view as aligned plain-text tables.
func renderView(out io.Writer, view derive.ProjectView, deadlines bool) {
	p := view.Project
	fmt.Fprintf(out, "%s [%s]  deadline %s\n", p.Name, p.Status, formatDate(p.Deadline))
	fmt.Fprintln(out, strings.Repeat("=", 60))

	stats := view.MilestoneStats
	fmt.Fprintf(out, "\nMilestones (%d total, %d completed, %d in progress, %d pending):\n",
		stats.Total, stats.Completed, stats.InProgress, stats.Pending)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, m := range view.Milestones {
		fmt.Fprintf(tw, "  %s\t%s\t%d%%\t%d tasks\t%s\n", m.Name, m.Status, m.Progress, m.TaskCount, formatDate(m.Deadline))
	}
	tw.Flush()

	fmt.Fprintf(out, "\nBoard (%d tasks):\n", view.Board.Total())
	for _, col := range view.Board.Columns {
		fmt.Fprintf(out, "  %s (%d)\n", col.Title, len(col.Tasks))
		for _, t := range col.Tasks {
			fmt.Fprintf(out, "    - %s [%s]\n", t.Title, t.Priority)
		}
	}
	if len(view.Board.Unknown) > 0 {
		fmt.Fprintf(out, "  Unknown status (%d)\n", len(view.Board.Unknown))
		for _, t := range view.Board.Unknown {
			fmt.Fprintf(out, "    - %s [%s]\n", t.Title, t.Status)
		}
	}

	if !deadlines {
		return
	}
	printDue(out, "Overdue", view.Overdue)
	printDue(out, "Upcoming", view.Upcoming)
}

func printDue(out io.Writer, title string, tasks []model.Task) {
	if len(tasks) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s:\n", title)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, t := range tasks {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", formatDate(t.Deadline), t.Title, t.Status)
	}
	tw.Flush()
}
