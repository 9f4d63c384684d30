package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/railops/rakeplan/app"
	"github.com/railops/rakeplan/config"
	"github.com/railops/rakeplan/core/aggregate"
	"github.com/railops/rakeplan/core/model"
)

var (
	planScenario string
	planMode     string
	planNotes    string
	planParams   []string
	planMaxWait  time.Duration
	planCommit   bool
	planExplain  bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Submit a planning scenario and wait for the plan",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planScenario, "scenario", "s", "", "scenario name (required)")
	planCmd.Flags().StringVarP(&planMode, "mode", "m", "greedy", "planner mode (greedy, constraint, hybrid)")
	planCmd.Flags().StringVarP(&planNotes, "notes", "n", "", "free-text notes attached to the job")
	planCmd.Flags().StringArrayVarP(&planParams, "param", "p", nil, "extra planner parameter key=value (repeatable)")
	planCmd.Flags().DurationVar(&planMaxWait, "max-wait", 0, "cancel the job after this duration (0 waits forever)")
	planCmd.Flags().BoolVar(&planCommit, "commit", false, "commit the plan after a successful run")
	planCmd.Flags().BoolVar(&planExplain, "explain", false, "print the engine's explanation after a successful run")
	_ = planCmd.MarkFlagRequired("scenario")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
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
	svc.Start(ctx)

	planConfig := map[string]any{"mode": planMode}
	for _, kv := range planParams {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("malformed --param %q, want key=value", kv)
		}
		var num float64
		if _, err := fmt.Sscanf(v, "%g", &num); err == nil && fmt.Sprintf("%g", num) == v {
			planConfig[k] = num
		} else {
			planConfig[k] = v
		}
	}

	res, err := svc.RunScenario(ctx, planScenario, planConfig, planNotes, planMaxWait,
		func(job model.PlanningJob, newLogs string) {
			fmt.Fprintf(os.Stderr, "job %s: %s %d%%\n", job.ID, job.Status, job.Progress)
			if newLogs != "" {
				fmt.Fprintln(os.Stderr, newLogs)
			}
		})
	if err != nil {
		return err
	}
	if res.Job.Status != model.StatusCompleted {
		fmt.Printf("job %s finished %s without a plan\n", res.Job.ID, res.Job.Status)
		return nil
	}

	printPlan(res.Plan, svc.Bands)
	for _, w := range res.Warnings {
		fmt.Printf("warning: %s\n", w)
	}

	if planExplain {
		exp, err := svc.Engine.Explain(ctx, res.Plan.ID)
		if err != nil {
			return fmt.Errorf("explain: %w", err)
		}
		fmt.Println()
		fmt.Println(exp.Explanation)
	}
	if planCommit {
		plan, err := svc.Engine.Commit(ctx, res.Plan.ID)
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		fmt.Printf("plan %s committed at %s\n", plan.ID, committedAt(plan))
	}
	return nil
}

func printPlan(p model.Plan, bands aggregate.Bands) {
	roll := aggregate.RollupCosts(p.Rakes, p.DemurrageCost, p.IdleCost)
	fulfill := aggregate.FulfillmentRatio(p.OrdersFulfilled, p.TotalOrders)

	fmt.Printf("plan %s (%s) for job %s\n", p.ID, p.Algorithm, p.JobID)
	fmt.Printf("  total cost      %12.2f\n", p.TotalCost)
	fmt.Printf("  freight cost    %12.2f\n", roll.Freight)
	fmt.Printf("  demurrage cost  %12.2f\n", roll.Demurrage)
	fmt.Printf("  idle cost       %12.2f\n", roll.Idle)
	fmt.Printf("  utilization     %11.1f%% (%s)\n", p.UtilizationPct, bands.Classify(p.UtilizationPct))
	fmt.Printf("  fulfillment     %11.1f%% (%d/%d orders)\n", fulfill, p.OrdersFulfilled, p.TotalOrders)
	fmt.Printf("  rakes           %12d\n", len(p.Rakes))
	for _, r := range p.Rakes {
		origin := r.OriginStockyardCode
		if origin == "" {
			origin = "-"
		}
		fmt.Printf("    %-10s %s -> %s  %7.0ft  %5.1f%%  %10.2f\n",
			r.RakeNumber, origin, strings.Join(r.Destinations, ","),
			r.TotalWeight, r.UtilizationPct, r.FreightCost)
	}
}
