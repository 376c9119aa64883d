package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"projectflow/internal/model"
	"projectflow/internal/repository"

	"github.com/spf13/cobra"
)

var activityLimit int

var activityCmd = &cobra.Command{
	Use:   "activity [project-id]",
	Short: "Show the recorded activity log of a project",
	Long: `Show the workflow events the worker recorded for a project, newest first.

Examples:
  pfctl activity 6f1c...
  pfctl activity 6f1c... -n 200`,
	Args: cobra.ExactArgs(1),
	RunE: runActivity,
}

func init() {
	activityCmd.Flags().IntVarP(&activityLimit, "limit", "n", 50, "maximum entries")
}

func runActivity(cmd *cobra.Command, args []string) error {
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

	entries, err := repository.NewActivityRepository(pool, log).ListActivity(ctx, args[0], activityLimit)
	if err != nil {
		return err
	}
	renderActivity(cmd.OutOrStdout(), entries)
	return nil
}

func renderActivity(out io.Writer, entries []model.Activity) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No activity recorded")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tKIND\tACTION\tMESSAGE")
	for _, a := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.OccurredAt.UTC().Format(time.DateTime), a.Kind, a.Action, a.Message)
	}
	tw.Flush()
}
