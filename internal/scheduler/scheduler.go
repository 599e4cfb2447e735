// Package scheduler executes a drop plan wave by wave, fanning each wave
// out to a bounded worker pool and enforcing the wave barrier: no table
// of wave N+1 is attempted until every drop of wave N has returned.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dbsmedya/gofresh/internal/adapter"
	"github.com/dbsmedya/gofresh/internal/config"
	"github.com/dbsmedya/gofresh/internal/graph"
	"github.com/dbsmedya/gofresh/internal/logger"
)

// WaveResult records the outcome of one wave.
type WaveResult struct {
	Index    int
	Dropped  []string
	Failed   []*adapter.DropError
	Duration time.Duration
}

// Result aggregates the outcome of a full plan execution. It is returned
// alongside any error so callers can report partial progress.
type Result struct {
	Waves    []WaveResult
	Dropped  []string
	Duration time.Duration
}

// TeardownError reports a wave with one or more failed drops. Execution
// aborts at the end of the failing wave; Remaining lists every table that
// was never dropped, including the failures themselves.
type TeardownError struct {
	Failed    []*adapter.DropError
	Dropped   []string
	Remaining []string
}

func (e *TeardownError) Error() string {
	tables := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		tables[i] = f.Table
	}
	return fmt.Sprintf("teardown aborted: %d table(s) failed to drop (%s), %d dropped, %d remaining",
		len(e.Failed), strings.Join(tables, ", "), len(e.Dropped), len(e.Remaining))
}

func (e *TeardownError) Unwrap() error {
	if len(e.Failed) > 0 {
		return e.Failed[0]
	}
	return nil
}

// Scheduler runs drop plans against a vendor adapter.
type Scheduler struct {
	cfg config.SchedulerConfig
	log *logger.Logger
}

func New(cfg config.SchedulerConfig, log *logger.Logger) *Scheduler {
	return &Scheduler{cfg: cfg, log: log}
}

// Execute drops every table in the plan, wave by wave, with at most
// degree concurrent drops inside a wave. Each drop runs under its own
// timeout. A failed drop does not stop the rest of its wave, but a wave
// that ends with failures aborts the remaining waves with a
// TeardownError. Context cancellation stops dispatching new drops;
// in-flight drops run to completion before Execute returns.
func (s *Scheduler) Execute(ctx context.Context, a adapter.Adapter, plan *graph.DropPlan, degree int) (*Result, error) {
	if degree < 1 {
		degree = 1
	}

	result := &Result{}
	start := time.Now()

	for i, wave := range plan.Waves {
		wr := s.runWave(ctx, a, i, wave, degree)
		result.Waves = append(result.Waves, wr)
		result.Dropped = append(result.Dropped, wr.Dropped...)

		if len(wr.Failed) > 0 {
			result.Duration = time.Since(start)
			return result, &TeardownError{
				Failed:    wr.Failed,
				Dropped:   result.Dropped,
				Remaining: remainingTables(plan, i, wr),
			}
		}

		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// runWave fans the wave's tables out to a worker pool and waits for every
// drop to return. This wait is the wave barrier.
func (s *Scheduler) runWave(ctx context.Context, a adapter.Adapter, index int, wave graph.Wave, degree int) WaveResult {
	log := s.log.WithWave(index)
	start := time.Now()

	workers := degree
	if len(wave.Tables) < workers {
		workers = len(wave.Tables)
	}

	log.Debugw("starting wave", "tables", len(wave.Tables), "workers", workers)

	forced := make(map[string]bool, len(wave.Forced))
	for _, t := range wave.Forced {
		forced[t] = true
	}

	// Outcomes are indexed by the table's position in the wave so the
	// result keeps the plan's deterministic order.
	outcomes := make([]*adapter.DropError, len(wave.Tables))

	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				table := wave.Tables[idx]
				outcomes[idx] = s.dropOne(ctx, a, log, table, forced[table])
			}
		}()
	}

	// Dispatch stops on cancellation; workers drain what was dispatched.
dispatch:
	for idx := range wave.Tables {
		select {
		case jobs <- idx:
		case <-ctx.Done():
			// Undispatched tables are marked failed with the cause.
			for rest := idx; rest < len(wave.Tables); rest++ {
				outcomes[rest] = &adapter.DropError{Table: wave.Tables[rest], Err: ctx.Err()}
			}
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	wr := WaveResult{Index: index, Duration: time.Since(start)}
	for idx, table := range wave.Tables {
		if outcomes[idx] == nil {
			wr.Dropped = append(wr.Dropped, table)
		} else {
			wr.Failed = append(wr.Failed, outcomes[idx])
		}
	}

	log.Debugw("wave complete",
		"dropped", len(wr.Dropped),
		"failed", len(wr.Failed),
		"duration", wr.Duration)

	return wr
}

// dropOne runs a single drop under the per-operation timeout.
func (s *Scheduler) dropOne(ctx context.Context, a adapter.Adapter, log *logger.Logger, table string, force bool) *adapter.DropError {
	timeout := time.Duration(s.cfg.PerOperationTimeoutSeconds) * time.Second
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := a.DropTable(opCtx, table, force)
	if err == nil {
		log.WithTable(table).Debugw("table dropped", "forced", force)
		return nil
	}

	log.WithTable(table).Warnw("drop failed", "error", err)

	var dropErr *adapter.DropError
	if errors.As(err, &dropErr) {
		return dropErr
	}
	return &adapter.DropError{Table: table, Err: err}
}

// remainingTables lists every table not dropped: the failing wave's
// failures plus all tables in the waves that never ran.
func remainingTables(plan *graph.DropPlan, failedWave int, wr WaveResult) []string {
	var remaining []string
	for _, f := range wr.Failed {
		remaining = append(remaining, f.Table)
	}
	for _, wave := range plan.Waves[failedWave+1:] {
		remaining = append(remaining, wave.Tables...)
	}
	return remaining
}
