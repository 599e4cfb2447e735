// Package cache persists per-fingerprint historical run statistics that
// refine future heuristic scores.
package cache

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Fingerprint is a coarse feature vector identifying a run's environment.
// Lookups match approximately: nearby fingerprints count as the same
// workload class.
type Fingerprint struct {
	TableCount  int    `json:"table_count"`
	RowEstimate int64  `json:"row_estimate"`
	CPUCount    int    `json:"cpu_count"`
	MemBytes    int64  `json:"mem_bytes"`
	Vendor      string `json:"vendor"`
}

// HistoricalStat is one observed run outcome. Records are append-only.
type HistoricalStat struct {
	Fingerprint Fingerprint   `json:"fingerprint"`
	Duration    time.Duration `json:"duration_ns"`
	Parallelism int           `json:"parallelism"`
	Success     bool          `json:"success"`
	RecordedAt  time.Time     `json:"recorded_at"`
}

// Estimate is the aggregate of historical neighbors used for prediction.
// TableCount is the weighted average table count of the neighbors, so
// callers can scale the observed duration to the current run's size.
type Estimate struct {
	Duration    time.Duration
	TableCount  float64
	Parallelism int
	SuccessRate float64
	Samples     int
}

// Store is a single append-only JSONL record store. Readers may run
// concurrently; writers are serialized by the store's mutex.
type Store struct {
	path string
	mu   sync.Mutex
}

// Open returns a store backed by the given file path. The file is
// created lazily on first append.
func Open(path string) *Store {
	return &Store{path: path}
}

// Append writes one stat record. Writes are serialized so concurrent
// appenders cannot interleave partial lines.
func (s *Store) Append(stat HistoricalStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(stat)
	if err != nil {
		return fmt.Errorf("failed to encode stat: %w", err)
	}
	line = append(line, '\n')

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("failed to append stat: %w", err)
	}
	return nil
}

// Load reads all stats from the store. Malformed lines (e.g. a torn
// write from a crashed process) are skipped, not fatal.
func (s *Store) Load() ([]HistoricalStat, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()

	var stats []HistoricalStat
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var stat HistoricalStat
		if err := json.Unmarshal(line, &stat); err != nil {
			continue
		}
		stats = append(stats, stat)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	return stats, nil
}

// Nearest returns the weighted-recent aggregate of stats whose
// fingerprint lies within maxDistance of fp. Returns nil when no
// neighbor qualifies; history beyond the distance gate is ignored
// entirely rather than diluting the estimate.
func (s *Store) Nearest(fp Fingerprint, maxDistance float64) (*Estimate, error) {
	stats, err := s.Load()
	if err != nil {
		return nil, err
	}

	type neighbor struct {
		stat HistoricalStat
		dist float64
	}

	var neighbors []neighbor
	for _, stat := range stats {
		if stat.Fingerprint.Vendor != fp.Vendor {
			continue
		}
		d := Distance(fp, stat.Fingerprint)
		if d <= maxDistance {
			neighbors = append(neighbors, neighbor{stat: stat, dist: d})
		}
	}
	if len(neighbors) == 0 {
		return nil, nil
	}

	// Most recent first; stable so equal timestamps keep file order.
	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].stat.RecordedAt.After(neighbors[j].stat.RecordedAt)
	})

	est := &Estimate{Samples: len(neighbors)}

	var weightSum, durationSum, tableSum, parallelSum, successSum float64
	for i, n := range neighbors {
		w := 1.0 / float64(i+1) // recency-weighted average
		weightSum += w
		durationSum += w * float64(n.stat.Duration)
		tableSum += w * float64(n.stat.Fingerprint.TableCount)
		parallelSum += w * float64(n.stat.Parallelism)
		if n.stat.Success {
			successSum += w
		}
	}

	est.Duration = time.Duration(durationSum / weightSum)
	est.TableCount = tableSum / weightSum
	est.Parallelism = int(math.Round(parallelSum / weightSum))
	est.SuccessRate = successSum / weightSum

	return est, nil
}

// Distance is the normalized Euclidean distance between two fingerprints
// over {table_count, mem, cpu}. Each dimension is normalized by the
// larger of the two values so heterogeneous units compare sensibly.
func Distance(a, b Fingerprint) float64 {
	dims := [3]float64{
		relativeDiff(float64(a.TableCount), float64(b.TableCount)),
		relativeDiff(float64(a.MemBytes), float64(b.MemBytes)),
		relativeDiff(float64(a.CPUCount), float64(b.CPUCount)),
	}

	sum := 0.0
	for _, d := range dims {
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(dims)))
}

func relativeDiff(a, b float64) float64 {
	max := math.Max(math.Max(a, b), 1)
	return math.Abs(a-b) / max
}
