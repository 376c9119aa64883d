package main

import (
	"fmt"
	"io"

	"projectflow/internal/model"
	"projectflow/internal/notify"

	"github.com/spf13/cobra"
)

var statusOwner string

var statusCmd = &cobra.Command{
	Use:   "status [project|milestone|task] [id] [status]",
	Short: "Change the status of a project, milestone or task",
	Long: `Change an entity's status through the workflow controller, exactly as the
API does: the move is checked against the transition table, completed_at is
kept in step for tasks, and the outcome notification is printed.

Examples:
  pfctl status task 0b7e... completed
  pfctl status project 6f1c... on-hold --as alice`,
	Args: cobra.ExactArgs(3),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusOwner, "as", "pfctl", "user the change is attributed to")
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	ctrl := controllerFor(cfg, pool, statusOwner, log)
	defer ctrl.Queue().ClearAll()

	_, err = ctrl.ChangeStatus(ctx, model.Kind(args[0]), args[1], args[2])
	printNotifications(cmd.OutOrStdout(), ctrl.Queue())
	return err
}

// printNotifications writes the queue's active notifications, oldest first.
func printNotifications(out io.Writer, q *notify.Queue) {
	for _, n := range q.Active() {
		fmt.Fprintf(out, "%s: %s\n", n.Severity, n.Message)
	}
}
