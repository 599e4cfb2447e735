package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/gofresh/internal/adapter"
	"github.com/dbsmedya/gofresh/internal/config"
	"github.com/dbsmedya/gofresh/internal/graph"
	"github.com/dbsmedya/gofresh/internal/logger"
)

type dropCall struct {
	table  string
	forced bool
	start  time.Time
	end    time.Time
}

// fakeAdapter records every drop with timestamps so tests can assert
// ordering and concurrency properties.
type fakeAdapter struct {
	mu            sync.Mutex
	calls         []dropCall
	concurrent    int
	maxConcurrent int

	delay      time.Duration
	failTables map[string]error
	hangTables map[string]bool // block until the operation context expires
	onDrop     func(table string)
}

func (f *fakeAdapter) DropTable(ctx context.Context, name string, force bool) error {
	f.mu.Lock()
	f.concurrent++
	if f.concurrent > f.maxConcurrent {
		f.maxConcurrent = f.concurrent
	}
	call := dropCall{table: name, forced: force, start: time.Now()}
	f.mu.Unlock()

	if f.onDrop != nil {
		f.onDrop(name)
	}

	var err error
	switch {
	case f.hangTables[name]:
		<-ctx.Done()
		err = ctx.Err()
	case ctx.Err() != nil:
		err = ctx.Err()
	default:
		if f.delay > 0 {
			time.Sleep(f.delay)
		}
		err = f.failTables[name]
	}

	f.mu.Lock()
	f.concurrent--
	call.end = time.Now()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	return err
}

func (f *fakeAdapter) dropped() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.calls))
	for i, c := range f.calls {
		names[i] = c.table
	}
	return names
}

func (f *fakeAdapter) Vendor() adapter.Kind                           { return adapter.KindPostgres }
func (f *fakeAdapter) ListTables(context.Context) ([]string, error)   { return nil, nil }
func (f *fakeAdapter) ListForeignKeys(context.Context) ([]graph.ForeignKey, error) {
	return nil, nil
}
func (f *fakeAdapter) BeginUnsafeMode(context.Context) (adapter.RestoreFunc, error) {
	return func(context.Context) error { return nil }, nil
}
func (f *fakeAdapter) EstimateDataSize(context.Context) (adapter.SizeEstimate, error) {
	return adapter.SizeEstimate{}, nil
}
func (f *fakeAdapter) Dump(context.Context, io.Writer) error { return nil }
func (f *fakeAdapter) PostOptimize(context.Context) error    { return nil }
func (f *fakeAdapter) Hint(string) adapter.Hint              { return adapter.Hint{} }
func (f *fakeAdapter) DB() *sql.DB                           { return nil }
func (f *fakeAdapter) Close() error                          { return nil }

func testScheduler() *Scheduler {
	return New(config.SchedulerConfig{PerOperationTimeoutSeconds: 1}, logger.NewDefault())
}

func threeWavePlan() *graph.DropPlan {
	return &graph.DropPlan{Waves: []graph.Wave{
		{Tables: []string{"comments", "likes"}},
		{Tables: []string{"posts"}},
		{Tables: []string{"users"}},
	}}
}

func TestExecute_DropsEveryTable(t *testing.T) {
	fake := &fakeAdapter{}
	s := testScheduler()

	result, err := s.Execute(context.Background(), fake, threeWavePlan(), 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"comments", "likes", "posts", "users"}, result.Dropped)
	assert.Len(t, result.Waves, 3)
	assert.ElementsMatch(t, []string{"comments", "likes", "posts", "users"}, fake.dropped())
}

func TestExecute_WaveBarrier(t *testing.T) {
	// Uneven per-drop delays stress the barrier: no drop of a later wave
	// may start before every drop of the earlier wave has finished.
	fake := &fakeAdapter{delay: 20 * time.Millisecond}
	s := testScheduler()

	plan := &graph.DropPlan{Waves: []graph.Wave{
		{Tables: []string{"a", "b", "c", "d"}},
		{Tables: []string{"e", "f"}},
		{Tables: []string{"g"}},
	}}

	_, err := s.Execute(context.Background(), fake, plan, 4)
	require.NoError(t, err)

	waveOf := map[string]int{"a": 0, "b": 0, "c": 0, "d": 0, "e": 1, "f": 1, "g": 2}
	waveEnd := make(map[int]time.Time)
	for _, c := range fake.calls {
		w := waveOf[c.table]
		if c.end.After(waveEnd[w]) {
			waveEnd[w] = c.end
		}
	}
	for _, c := range fake.calls {
		w := waveOf[c.table]
		if w > 0 {
			assert.False(t, c.start.Before(waveEnd[w-1]),
				"table %s (wave %d) started before wave %d finished", c.table, w, w-1)
		}
	}
}

func TestExecute_RespectsParallelDegree(t *testing.T) {
	fake := &fakeAdapter{delay: 10 * time.Millisecond}
	s := testScheduler()

	plan := &graph.DropPlan{Waves: []graph.Wave{
		{Tables: []string{"t1", "t2", "t3", "t4", "t5", "t6", "t7", "t8"}},
	}}

	_, err := s.Execute(context.Background(), fake, plan, 3)
	require.NoError(t, err)

	assert.LessOrEqual(t, fake.maxConcurrent, 3)
}

func TestExecute_SerialDegreeRunsOneAtATime(t *testing.T) {
	fake := &fakeAdapter{delay: 5 * time.Millisecond}
	s := testScheduler()

	plan := &graph.DropPlan{Waves: []graph.Wave{
		{Tables: []string{"t1", "t2", "t3"}},
	}}

	_, err := s.Execute(context.Background(), fake, plan, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, fake.maxConcurrent)
}

func TestExecute_ForcedTablesDropWithForce(t *testing.T) {
	fake := &fakeAdapter{}
	s := testScheduler()

	plan := &graph.DropPlan{Waves: []graph.Wave{
		{Tables: []string{"cyclic"}, Forced: []string{"cyclic"}},
		{Tables: []string{"plain"}},
	}}

	_, err := s.Execute(context.Background(), fake, plan, 1)
	require.NoError(t, err)

	forced := map[string]bool{}
	for _, c := range fake.calls {
		forced[c.table] = c.forced
	}
	assert.True(t, forced["cyclic"])
	assert.False(t, forced["plain"])
}

func TestExecute_FailureAbortsLaterWaves(t *testing.T) {
	fake := &fakeAdapter{failTables: map[string]error{
		"likes": errors.New("permission denied"),
	}}
	s := testScheduler()

	result, err := s.Execute(context.Background(), fake, threeWavePlan(), 2)
	require.Error(t, err)

	var teardown *TeardownError
	require.True(t, errors.As(err, &teardown))

	require.Len(t, teardown.Failed, 1)
	assert.Equal(t, "likes", teardown.Failed[0].Table)
	assert.Equal(t, []string{"comments"}, teardown.Dropped)
	assert.ElementsMatch(t, []string{"likes", "posts", "users"}, teardown.Remaining)

	// The failing wave finished, but later waves never started.
	assert.ElementsMatch(t, []string{"comments", "likes"}, fake.dropped())
	assert.Len(t, result.Waves, 1)
}

func TestExecute_TimeoutFailsOnlyTheSlowTable(t *testing.T) {
	fake := &fakeAdapter{hangTables: map[string]bool{"likes": true}}
	s := testScheduler()

	result, err := s.Execute(context.Background(), fake, threeWavePlan(), 2)
	require.Error(t, err)

	var teardown *TeardownError
	require.True(t, errors.As(err, &teardown))

	require.Len(t, teardown.Failed, 1)
	assert.Equal(t, "likes", teardown.Failed[0].Table)
	assert.True(t, errors.Is(teardown.Failed[0], context.DeadlineExceeded))

	// The timed-out table's wave mate still dropped; later waves did not run.
	assert.Equal(t, []string{"comments"}, result.Dropped)
	assert.ElementsMatch(t, []string{"comments", "likes"}, fake.dropped())
}

func TestExecute_CancellationStopsDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	fake := &fakeAdapter{}
	fake.onDrop = func(table string) {
		if table == "likes" {
			cancel()
		}
	}
	s := testScheduler()

	result, err := s.Execute(ctx, fake, threeWavePlan(), 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled) || errorsAsTeardown(err))

	// Later waves never ran once the context was canceled.
	for _, c := range fake.calls {
		assert.NotEqual(t, "users", c.table)
	}
	assert.Less(t, len(result.Dropped), 4)
}

func errorsAsTeardown(err error) bool {
	var teardown *TeardownError
	return errors.As(err, &teardown)
}

func TestExecute_EmptyPlan(t *testing.T) {
	fake := &fakeAdapter{}
	s := testScheduler()

	result, err := s.Execute(context.Background(), fake, &graph.DropPlan{}, 4)
	require.NoError(t, err)
	assert.Empty(t, result.Dropped)
	assert.Empty(t, result.Waves)
}

func TestTeardownError_Message(t *testing.T) {
	err := &TeardownError{
		Failed:    []*adapter.DropError{{Table: "users", Err: errors.New("locked")}},
		Dropped:   []string{"posts"},
		Remaining: []string{"users", "accounts"},
	}
	assert.Contains(t, err.Error(), "users")
	assert.Contains(t, err.Error(), "1 dropped")
	assert.Contains(t, err.Error(), "2 remaining")
}
