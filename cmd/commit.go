package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/railops/rakeplan/app"
	"github.com/railops/rakeplan/config"
	"github.com/railops/rakeplan/core/model"
)

var commitCmd = &cobra.Command{
	Use:   "commit <plan-id>",
	Short: "Commit a plan for execution",
	Long: `Commit marks a plan as committed on the engine. Committing a plan that
is already committed succeeds and leaves the original commit timestamp
untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: runCommit,
}

func init() {
	rootCmd.AddCommand(commitCmd)
}

func runCommit(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	plan, err := svc.Engine.Commit(ctx, args[0])
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	fmt.Printf("plan %s committed at %s\n", plan.ID, committedAt(plan))
	return nil
}

// committedAt renders the commit timestamp. The engine is trusted but
// not guaranteed to send one back with the stored plan.
func committedAt(p model.Plan) string {
	if p.CommittedAt == nil {
		return "unknown time"
	}
	return p.CommittedAt.Format(time.RFC3339)
}
