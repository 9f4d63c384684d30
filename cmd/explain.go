package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/railops/rakeplan/app"
	"github.com/railops/rakeplan/config"
)

var explainCmd = &cobra.Command{
	Use:   "explain <plan-id>",
	Short: "Print the engine's narrative explanation of a plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runExplain,
}

func init() {
	rootCmd.AddCommand(explainCmd)
}

func runExplain(cmd *cobra.Command, args []string) error {
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

	exp, err := svc.Engine.Explain(ctx, args[0])
	if err != nil {
		return fmt.Errorf("explain: %w", err)
	}
	fmt.Println(exp.Explanation)
	return nil
}
