package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/railops/rakeplan/app"
	"github.com/railops/rakeplan/config"
)

var snapshotJSON bool

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Show pending orders, available rakes and stockyards",
	RunE:  runSnapshot,
}

func init() {
	snapshotCmd.Flags().BoolVar(&snapshotJSON, "json", false, "emit JSON")
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
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

	snap, err := svc.Snapshots.Current(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if snapshotJSON {
		b, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	}
	fmt.Printf("pending orders   %6d\n", snap.PendingOrders)
	fmt.Printf("available rakes  %6d\n", snap.AvailableRakes)
	fmt.Printf("stockyards       %6d\n", snap.StockyardCount)
	return nil
}
