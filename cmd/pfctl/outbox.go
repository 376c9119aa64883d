package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"projectflow/pkg/outbox"

	"github.com/spf13/cobra"
)

var (
	outboxLimit     int
	outboxReplayAll bool
)

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Inspect and replay workflow events the broker refused",
}

var outboxListCmd = &cobra.Command{
	Use:   "list",
	Short: "List events that exhausted their retries",
	Args:  cobra.NoArgs,
	RunE:  runOutboxList,
}

var outboxReplayCmd = &cobra.Command{
	Use:   "replay [outbox-id]",
	Short: "Reset failed events to pending so the server publishes them again",
	Long: `Reset a failed outbox event (or, with --all, every failed event) to pending.
The running server's dispatcher publishes it on its next pass.

Examples:
  pfctl outbox replay 42
  pfctl outbox replay --all -n 500`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOutboxReplay,
}

func init() {
	outboxCmd.PersistentFlags().IntVarP(&outboxLimit, "limit", "n", 100, "maximum events")
	outboxReplayCmd.Flags().BoolVar(&outboxReplayAll, "all", false, "replay every failed event")
	outboxCmd.AddCommand(outboxListCmd)
	outboxCmd.AddCommand(outboxReplayCmd)
}

func runOutboxList(cmd *cobra.Command, args []string) error {
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

	events, err := outbox.NewRepository(pool).Failed(ctx, outboxLimit)
	if err != nil {
		return err
	}
	renderOutbox(cmd.OutOrStdout(), events)
	return nil
}

func runOutboxReplay(cmd *cobra.Command, args []string) error {
	if outboxReplayAll == (len(args) == 1) {
		return errors.New("give either an outbox id or --all")
	}

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
	repo := outbox.NewRepository(pool)

	if outboxReplayAll {
		n, err := repo.ReplayFailed(ctx, outboxLimit)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reset %d events to pending\n", n)
		return nil
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid outbox id %q", args[0])
	}
	if err := repo.Replay(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Event %d reset to pending\n", id)
	return nil
}

func renderOutbox(out io.Writer, events []*outbox.Event) {
	if len(events) == 0 {
		fmt.Fprintln(out, "No failed events")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tROUTING KEY\tRETRIES\tCREATED\tLAST ERROR")
	for _, e := range events {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", e.ID, e.RoutingKey, e.RetryCount, e.CreatedAt.UTC().Format(time.DateTime), e.LastError)
	}
	tw.Flush()
}
