// Package planner scores database complexity and host resources to
// produce the execution plan driving adaptive concurrency and batching.
//
// Every output is a pure function of the explicit inputs (features,
// thresholds, cache contents): no randomness, no opaque model. The plan
// governs destructive operations, so each decision must be explainable.
package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/dbsmedya/gofresh/internal/cache"
	"github.com/dbsmedya/gofresh/internal/config"
	"github.com/dbsmedya/gofresh/internal/graph"
)

// Complexity is the coarse database-size band.
type Complexity string

const (
	ComplexitySimple     Complexity = "Simple"
	ComplexityComplex    Complexity = "Complex"
	ComplexityEnterprise Complexity = "Enterprise"
)

// RiskLevel estimates how damaging the destructive operation could be.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Features is the bounded feature vector the planner scores.
type Features struct {
	TableCount   int
	RowEstimate  int64
	DataBytes    int64
	CPUCount     int
	MemAvailable int64
	Vendor       string
	Production   bool
}

// ExecutionPlan is the planner's output. Produced once per run and
// immutable thereafter.
type ExecutionPlan struct {
	Waves             *graph.DropPlan
	ParallelDegree    int
	BatchSize         int
	UseCache          bool
	PredictedDuration time.Duration
	Complexity        Complexity
	Risk              RiskLevel
	HistorySamples    int
}

// Planner builds execution plans from features, configured thresholds,
// and (optionally) the pattern cache.
type Planner struct {
	cfg   config.HeuristicsConfig
	store *cache.Store

	// Probes are injectable so tests can pin host specs.
	probeCPU func(ctx context.Context) (int, error)
	probeMem func(ctx context.Context) (int64, error)
}

// New creates a planner. store may be nil when the pattern cache is
// disabled.
func New(cfg config.HeuristicsConfig, store *cache.Store) *Planner {
	return &Planner{
		cfg:   cfg,
		store: store,
		probeCPU: func(ctx context.Context) (int, error) {
			return cpu.CountsWithContext(ctx, true)
		},
		probeMem: func(ctx context.Context) (int64, error) {
			vm, err := mem.VirtualMemoryWithContext(ctx)
			if err != nil {
				return 0, err
			}
			return int64(vm.Available), nil
		},
	}
}

// HostFeatures fills the CPU count and available memory of the current
// host into f.
func (p *Planner) HostFeatures(ctx context.Context, f *Features) error {
	cpus, err := p.probeCPU(ctx)
	if err != nil {
		return fmt.Errorf("failed to probe cpu count: %w", err)
	}
	memAvail, err := p.probeMem(ctx)
	if err != nil {
		return fmt.Errorf("failed to probe available memory: %w", err)
	}
	f.CPUCount = cpus
	f.MemAvailable = memAvail
	return nil
}

// Plan scores the features and emits the execution plan for the given
// drop waves. Given identical inputs (including cache contents) the
// output is identical.
func (p *Planner) Plan(f Features, waves *graph.DropPlan) (*ExecutionPlan, error) {
	complexity := p.scoreComplexity(f.TableCount)
	risk := p.scoreRisk(complexity, f)

	useCache := f.MemAvailable >= p.cfg.MemoryFloorBytes

	degree := p.parallelDegree(f)
	batch := clamp(divCeil(f.TableCount, degree), p.cfg.BatchMin, p.cfg.BatchMax)

	predicted, samples, err := p.predictDuration(f, useCache)
	if err != nil {
		return nil, err
	}

	return &ExecutionPlan{
		Waves:             waves,
		ParallelDegree:    degree,
		BatchSize:         batch,
		UseCache:          useCache,
		PredictedDuration: predicted,
		Complexity:        complexity,
		Risk:              risk,
		HistorySamples:    samples,
	}, nil
}

func (p *Planner) scoreComplexity(tableCount int) Complexity {
	switch {
	case tableCount < p.cfg.SimpleBandMax:
		return ComplexitySimple
	case tableCount <= p.cfg.ComplexBandMax:
		return ComplexityComplex
	default:
		return ComplexityEnterprise
	}
}

// scoreRisk combines the complexity band, the vendor, and the caller's
// production signal into a three-level estimate.
func (p *Planner) scoreRisk(complexity Complexity, f Features) RiskLevel {
	score := 0

	switch complexity {
	case ComplexityComplex:
		score++
	case ComplexityEnterprise:
		score += 2
	}

	if f.Production {
		score += 2
	}

	// A file-based database is trivially recoverable from a copy.
	if f.Vendor == "sqlite" && score > 0 {
		score--
	}

	switch {
	case score >= 3:
		return RiskHigh
	case score >= 1:
		return RiskMedium
	default:
		return RiskLow
	}
}

// parallelDegree applies the configured floors: parallelism requires
// enough CPUs, enough free memory, and enough tables to be worth it.
func (p *Planner) parallelDegree(f Features) int {
	if f.CPUCount < p.cfg.CPUFloorForParallel {
		return 1
	}
	if f.MemAvailable < p.cfg.MemoryFloorBytes {
		return 1
	}
	if f.TableCount < p.cfg.ParallelThreshold {
		return 1
	}

	degree := f.CPUCount
	if f.TableCount < degree {
		degree = f.TableCount
	}
	if p.cfg.MaxParallel < degree {
		degree = p.cfg.MaxParallel
	}
	if degree < 1 {
		degree = 1
	}
	return degree
}

// predictDuration starts from the per-table base time and, when the
// cache holds a close-enough historical run, adjusts by the learned
// factor between that run's observed duration and its own base time.
func (p *Planner) predictDuration(f Features, useCache bool) (time.Duration, int, error) {
	base := p.baseTime(float64(f.TableCount))

	if !useCache || p.store == nil {
		return base, 0, nil
	}

	fp := cache.Fingerprint{
		TableCount:  f.TableCount,
		RowEstimate: f.RowEstimate,
		CPUCount:    f.CPUCount,
		MemBytes:    f.MemAvailable,
		Vendor:      f.Vendor,
	}

	est, err := p.store.Nearest(fp, p.cfg.NNMaxDistance)
	if err != nil {
		return 0, 0, fmt.Errorf("pattern cache lookup failed: %w", err)
	}
	if est == nil || est.TableCount <= 0 {
		return base, 0, nil
	}

	factor := float64(est.Duration) / float64(p.baseTime(est.TableCount))
	factor = clampFloat(factor, 0.1, 10)

	return time.Duration(float64(base) * factor), est.Samples, nil
}

func (p *Planner) baseTime(tableCount float64) time.Duration {
	if tableCount < 1 {
		tableCount = 1
	}
	return time.Duration(p.cfg.PerTableBaseSeconds * tableCount * float64(time.Second))
}

func divCeil(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
