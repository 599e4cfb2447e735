package cmd

import (
	"context"
	"fmt"

	"github.com/dbsmedya/gofresh/internal/orchestrator"
	"github.com/dbsmedya/gofresh/internal/report"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the drop waves and execution plan without executing",
	Long: `Plan introspects the database, computes the FK-safe drop waves and the
heuristic execution plan, and prints them. Nothing is modified.

Example:
  gofresh plan --config gofresh.yaml`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	orch := orchestrator.New(s.cfg, s.log, s.db, s.store, orchestrator.Collaborators{})
	summary, err := orch.Run(ctx, orchestrator.Options{DryRun: true})
	if err != nil {
		return fmt.Errorf("planning failed: %w", err)
	}

	renderer := report.NewRenderer(cmd.OutOrStdout(), report.ThemeByName(s.cfg.Theme))
	renderer.PrintPlan(summary.Database, summary.Plan)
	return nil
}
