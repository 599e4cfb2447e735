package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dbsmedya/gofresh/internal/lock"
	"github.com/dbsmedya/gofresh/internal/notify"
	"github.com/dbsmedya/gofresh/internal/orchestrator"
	"github.com/dbsmedya/gofresh/internal/report"
	"github.com/spf13/cobra"
)

var (
	freshForce      bool
	freshBackup     bool
	freshBackupPath string
	freshCompress   bool
	freshEncrypt    bool
	freshSeed       bool
	freshDryRun     bool
	freshMigrateCmd string
	freshSeedCmd    string
)

var freshCmd = &cobra.Command{
	Use:   "fresh",
	Short: "Drop all tables and rebuild the schema from migrations",
	Long: `Fresh resets the database to a clean state:

  1. Introspect tables and foreign keys
  2. Compute FK-safe drop waves and an execution plan
  3. Optionally back up the database first
  4. Drop every table (parallel within a wave, constraints disabled)
  5. Re-apply migrations and optionally seed

This is destructive. Without --force an interactive confirmation is
required.

Example:
  gofresh fresh --config gofresh.yaml --backup --compress --seed`,
	RunE: runFresh,
}

func init() {
	freshCmd.Flags().BoolVar(&freshForce, "force", false,
		"Skip the interactive confirmation prompt")
	freshCmd.Flags().BoolVar(&freshBackup, "backup", false,
		"Take a backup before dropping anything")
	freshCmd.Flags().StringVar(&freshBackupPath, "backup-path", "",
		"Backup destination file or directory (default from config)")
	freshCmd.Flags().BoolVar(&freshCompress, "compress", false,
		"Compress the backup with lz4")
	freshCmd.Flags().BoolVar(&freshEncrypt, "encrypt", false,
		"Encrypt the backup (passphrase from config)")
	freshCmd.Flags().BoolVar(&freshSeed, "seed", false,
		"Run the seeder after migrations")
	freshCmd.Flags().BoolVar(&freshDryRun, "dry-run", false,
		"Print the execution plan without touching the database")
	freshCmd.Flags().StringVar(&freshMigrateCmd, "migrate-cmd", "",
		"Shell command that re-applies migrations after the drop")
	freshCmd.Flags().StringVar(&freshSeedCmd, "seed-cmd", "",
		"Shell command that seeds the database (with --seed)")

	rootCmd.AddCommand(freshCmd)
}

// shellRunner adapts an external shell command to the orchestrator's
// collaborator contracts.
type shellRunner struct {
	command string
}

func (r *shellRunner) run(ctx context.Context) error {
	c := exec.CommandContext(ctx, "sh", "-c", r.command)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}

type migrateRunner struct{ shellRunner }

func (r *migrateRunner) ApplyAll(ctx context.Context) error { return r.run(ctx) }

type seedRunner struct{ shellRunner }

func (r *seedRunner) Run(ctx context.Context) error { return r.run(ctx) }

func runFresh(cmd *cobra.Command, args []string) error {
	// Setup context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	col := orchestrator.Collaborators{
		Notifier: notify.New(s.cfg.Notify),
	}
	if freshMigrateCmd != "" {
		col.Migrator = &migrateRunner{shellRunner{command: freshMigrateCmd}}
	}
	if freshSeedCmd != "" {
		col.Seeder = &seedRunner{shellRunner{command: freshSeedCmd}}
	}

	orch := orchestrator.New(s.cfg, s.log, s.db, s.store, col)
	renderer := report.NewRenderer(cmd.OutOrStdout(), report.ThemeByName(s.cfg.Theme))

	opts := orchestrator.Options{
		Backup:     freshBackup,
		BackupPath: freshBackupPath,
		Compress:   freshCompress,
		Encrypt:    freshEncrypt,
		Seed:       freshSeed,
		DryRun:     true, // first pass: plan only, for the preview
	}

	// Plan first so the confirmation shows what is about to happen.
	preview, err := orch.Run(ctx, opts)
	if err != nil {
		if errors.Is(err, lock.ErrLockTimeout) {
			return err
		}
		return fmt.Errorf("planning failed: %w", err)
	}
	renderer.PrintPlan(preview.Database, preview.Plan)

	if freshDryRun {
		return nil
	}

	if !freshForce {
		ok, err := confirm(cmd, preview.Database)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		s.log.Warn("Received shutdown signal - finishing in-flight drops...")
		cancel()
	}()

	opts.DryRun = false
	summary, runErr := orch.Run(ctx, opts)
	renderer.PrintSummary(summary.Database, summary.Plan, summary.Result, runErr)

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			s.log.Warn("Reset cancelled by user")
			return nil
		}
		return fmt.Errorf("reset failed: %w", runErr)
	}
	return nil
}

// confirm asks the operator to type the word yes before a destructive run.
func confirm(cmd *cobra.Command, database string) (bool, error) {
	fmt.Fprintf(cmd.OutOrStdout(),
		"\nThis will DROP ALL TABLES in %q. Type 'yes' to continue: ", database)

	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	return strings.TrimSpace(line) == "yes", nil
}
