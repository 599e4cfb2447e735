// Package orchestrator wires the reset pipeline: introspection, graph
// construction, planning, optional backup, the scoped unsafe-mode drop
// phase, migration replay, seeding, and post-run bookkeeping.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/dbsmedya/gofresh/internal/adapter"
	"github.com/dbsmedya/gofresh/internal/backup"
	"github.com/dbsmedya/gofresh/internal/cache"
	"github.com/dbsmedya/gofresh/internal/config"
	"github.com/dbsmedya/gofresh/internal/graph"
	"github.com/dbsmedya/gofresh/internal/lock"
	"github.com/dbsmedya/gofresh/internal/logger"
	"github.com/dbsmedya/gofresh/internal/notify"
	"github.com/dbsmedya/gofresh/internal/planner"
	"github.com/dbsmedya/gofresh/internal/scheduler"
)

// Migrator replays the migration set onto the emptied schema.
type Migrator interface {
	ApplyAll(ctx context.Context) error
}

// Seeder populates initial data after migrations.
type Seeder interface {
	Run(ctx context.Context) error
}

// Notifier delivers run outcomes to an external sink. Failures are
// logged, never propagated.
type Notifier interface {
	IsEnabled() bool
	Send(ctx context.Context, ev notify.Event) error
}

// MigrationApplyError wraps a migration replay failure. The schema stays
// empty; seeding is skipped.
type MigrationApplyError struct {
	Err error
}

func (e *MigrationApplyError) Error() string {
	return fmt.Sprintf("migration replay failed: %v", e.Err)
}
func (e *MigrationApplyError) Unwrap() error { return e.Err }

// SeedError wraps a seeding failure. The migrated schema is kept; seed
// failures never roll anything back.
type SeedError struct {
	Err error
}

func (e *SeedError) Error() string { return fmt.Sprintf("seeding failed: %v", e.Err) }
func (e *SeedError) Unwrap() error { return e.Err }

// Options selects the per-run behavior, normally set from CLI flags.
type Options struct {
	Backup     bool
	BackupPath string
	Compress   bool
	Encrypt    bool
	Seed       bool
	DryRun     bool
}

// Summary is the structured outcome of a run.
type Summary struct {
	Database          string
	Vendor            string
	TablesDropped     int
	Waves             int
	Risk              planner.RiskLevel
	PredictedDuration time.Duration
	ActualDuration    time.Duration

	Plan     *planner.ExecutionPlan
	Result   *scheduler.Result
	Artifact *backup.Artifact
}

// Collaborators are the optional external components. Nil members are
// skipped.
type Collaborators struct {
	Migrator Migrator
	Seeder   Seeder
	Notifier Notifier
}

// Orchestrator drives a single reset run. All state is explicit; two
// orchestrators never share anything but the database itself, which the
// advisory lock serializes.
type Orchestrator struct {
	cfg   *config.Config
	log   *logger.Logger
	db    adapter.Adapter
	store *cache.Store
	col   Collaborators

	plan  *planner.Planner
	sched *scheduler.Scheduler
}

// New builds an orchestrator. store may be nil when the pattern cache is
// disabled.
func New(cfg *config.Config, log *logger.Logger, db adapter.Adapter, store *cache.Store, col Collaborators) *Orchestrator {
	return &Orchestrator{
		cfg:   cfg,
		log:   log.WithVendor(string(db.Vendor())),
		db:    db,
		store: store,
		col:   col,
		plan:  planner.New(cfg.Heuristics, store),
		sched: scheduler.New(cfg.Scheduler, log),
	}
}

// Run executes the reset. The returned summary is populated as far as
// the run got, even on error.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Summary, error) {
	summary := &Summary{
		Database: o.databaseName(),
		Vendor:   string(o.db.Vendor()),
	}

	guard, err := lock.Acquire(ctx, o.db, "gofresh:"+summary.Database,
		time.Duration(o.cfg.Scheduler.LockTimeoutSeconds)*time.Second)
	if err != nil {
		return summary, err
	}
	defer func() {
		if err := guard.Release(context.WithoutCancel(ctx)); err != nil {
			o.log.Warnw("failed to release advisory lock", "error", err)
		}
	}()

	plan, features, err := o.buildPlan(ctx)
	if err != nil {
		return summary, err
	}
	summary.Plan = plan
	summary.Risk = plan.Risk
	summary.PredictedDuration = plan.PredictedDuration
	summary.Waves = len(plan.Waves.Waves)

	if opts.DryRun {
		o.log.Infow("dry run: no changes made",
			"tables", plan.Waves.TableCount(),
			"waves", len(plan.Waves.Waves))
		return summary, nil
	}

	if opts.Backup {
		artifact, err := o.snapshot(ctx, opts, features)
		if err != nil {
			return summary, err
		}
		summary.Artifact = artifact
	}

	start := time.Now()
	result, teardownErr := o.teardown(ctx, plan)
	summary.Result = result
	summary.TablesDropped = len(result.Dropped)

	runErr := teardownErr
	if runErr == nil && o.col.Migrator != nil {
		o.log.Infow("applying migrations")
		if err := o.col.Migrator.ApplyAll(ctx); err != nil {
			runErr = &MigrationApplyError{Err: err}
		}
	}
	if runErr == nil && opts.Seed && o.col.Seeder != nil {
		o.log.Infow("running seeder")
		if err := o.col.Seeder.Run(ctx); err != nil {
			// Reported, never rolled back: the migrated schema stands.
			runErr = &SeedError{Err: err}
		}
	}
	summary.ActualDuration = time.Since(start)

	if runErr == nil {
		if err := o.db.PostOptimize(ctx); err != nil {
			o.log.Warnw("post-reset optimization failed", "error", err)
		}
	}

	o.recordStat(features, plan, summary, runErr == nil)
	o.notifyOutcome(ctx, summary, runErr)

	return summary, runErr
}

// buildPlan introspects the schema and produces the execution plan.
func (o *Orchestrator) buildPlan(ctx context.Context) (*planner.ExecutionPlan, planner.Features, error) {
	tables, err := o.db.ListTables(ctx)
	if err != nil {
		return nil, planner.Features{}, err
	}
	fks, err := o.db.ListForeignKeys(ctx)
	if err != nil {
		return nil, planner.Features{}, err
	}

	g, err := graph.Build(tables, fks)
	if err != nil {
		return nil, planner.Features{}, err
	}
	waves := g.DropWaves()

	features := planner.Features{
		TableCount: len(tables),
		Vendor:     string(o.db.Vendor()),
		Production: o.cfg.Production,
	}
	if err := o.plan.HostFeatures(ctx, &features); err != nil {
		return nil, planner.Features{}, err
	}
	if est, err := o.db.EstimateDataSize(ctx); err != nil {
		// Size is only a planning signal; plan without it.
		o.log.Warnw("data size estimate unavailable", "error", err)
	} else {
		features.DataBytes = est.Bytes
		features.RowEstimate = est.Rows
	}

	plan, err := o.plan.Plan(features, waves)
	if err != nil {
		return nil, planner.Features{}, err
	}

	o.log.Infow("execution plan ready",
		"tables", len(tables),
		"waves", len(waves.Waves),
		"parallel", plan.ParallelDegree,
		"complexity", plan.Complexity,
		"risk", plan.Risk,
		"predicted", plan.PredictedDuration)

	return plan, features, nil
}

// snapshot takes the pre-reset backup, skipping it when the database is
// smaller than the configured negligible threshold.
func (o *Orchestrator) snapshot(ctx context.Context, opts Options, features planner.Features) (*backup.Artifact, error) {
	if features.DataBytes > 0 && features.DataBytes < o.cfg.Backup.NegligibleSizeBytes {
		o.log.Infow("skipping backup: database below negligible size",
			"bytes", features.DataBytes,
			"threshold", o.cfg.Backup.NegligibleSizeBytes)
		return nil, nil
	}

	dest := opts.BackupPath
	if dest == "" {
		dest = o.cfg.Backup.DefaultDir
	}
	passphrase := o.cfg.Backup.Passphrase

	artifact, err := backup.Snapshot(ctx, o.db, dest, backup.Options{
		Compress:   opts.Compress,
		Encrypt:    opts.Encrypt,
		Passphrase: passphrase,
	})
	if err != nil {
		return nil, err
	}

	o.log.Infow("backup written",
		"path", artifact.Path,
		"compressed", artifact.Compressed,
		"encrypted", artifact.Encrypted)
	return artifact, nil
}

// teardown runs the drop waves inside an unsafe-mode scope. Constraint
// checking is restored before return on every path.
func (o *Orchestrator) teardown(ctx context.Context, plan *planner.ExecutionPlan) (result *scheduler.Result, err error) {
	restore, err := o.db.BeginUnsafeMode(ctx)
	if err != nil {
		return &scheduler.Result{}, err
	}
	defer func() {
		// Restore must run even when the run context is already canceled.
		if restoreErr := restore(context.WithoutCancel(ctx)); restoreErr != nil {
			o.log.Errorw("failed to restore constraint checking", "error", restoreErr)
			if err == nil {
				err = restoreErr
			}
		}
	}()

	return o.sched.Execute(ctx, o.db, plan.Waves, plan.ParallelDegree)
}

// recordStat appends the run outcome to the pattern cache. Append
// failures are logged; history is advisory.
func (o *Orchestrator) recordStat(features planner.Features, plan *planner.ExecutionPlan, summary *Summary, success bool) {
	if o.store == nil || !plan.UseCache {
		return
	}

	stat := cache.HistoricalStat{
		Fingerprint: cache.Fingerprint{
			TableCount:  features.TableCount,
			RowEstimate: features.RowEstimate,
			CPUCount:    features.CPUCount,
			MemBytes:    features.MemAvailable,
			Vendor:      features.Vendor,
		},
		Duration:    summary.ActualDuration,
		Parallelism: plan.ParallelDegree,
		Success:     success,
		RecordedAt:  time.Now().UTC(),
	}
	if err := o.store.Append(stat); err != nil {
		o.log.Warnw("failed to record run statistics", "error", err)
	}
}

// notifyOutcome sends the run summary to the notifier, if configured.
func (o *Orchestrator) notifyOutcome(ctx context.Context, summary *Summary, runErr error) {
	if o.col.Notifier == nil || !o.col.Notifier.IsEnabled() {
		return
	}

	ev := notify.Event{
		Database:  summary.Database,
		Vendor:    summary.Vendor,
		Tables:    summary.TablesDropped,
		Waves:     summary.Waves,
		Duration:  summary.ActualDuration,
		Predicted: summary.PredictedDuration,
		Risk:      string(summary.Risk),
		Success:   runErr == nil,
		Err:       runErr,
	}
	if err := o.col.Notifier.Send(context.WithoutCancel(ctx), ev); err != nil {
		o.log.Warnw("notification failed", "error", err)
	}
}

func (o *Orchestrator) databaseName() string {
	if o.db.Vendor() == adapter.KindSQLite {
		return o.cfg.Database.Path
	}
	return o.cfg.Database.Database
}
