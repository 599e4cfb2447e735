package graph

import (
	"reflect"
	"sort"
	"testing"
)

func mustBuild(t *testing.T, tables []string, fks []ForeignKey) *DependencyGraph {
	t.Helper()
	g, err := Build(tables, fks)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return g
}

func TestDropWaves_Chain(t *testing.T) {
	// A references B, B references C: dependents must be dropped first.
	g := mustBuild(t,
		[]string{"a", "b", "c"},
		[]ForeignKey{
			{From: "a", To: "b", Column: "b_id"},
			{From: "b", To: "c", Column: "c_id"},
		},
	)

	plan := g.DropWaves()

	expected := [][]string{{"a"}, {"b"}, {"c"}}
	if len(plan.Waves) != len(expected) {
		t.Fatalf("expected %d waves, got %d", len(expected), len(plan.Waves))
	}
	for i, want := range expected {
		if !reflect.DeepEqual(plan.Waves[i].Tables, want) {
			t.Errorf("wave %d: expected %v, got %v", i, want, plan.Waves[i].Tables)
		}
		if len(plan.Waves[i].Forced) != 0 {
			t.Errorf("wave %d: acyclic graph should force nothing, got %v", i, plan.Waves[i].Forced)
		}
	}
}

func TestDropWaves_IndependentTablesShareWave(t *testing.T) {
	g := mustBuild(t,
		[]string{"orders", "sessions", "users"},
		[]ForeignKey{
			{From: "orders", To: "users", Column: "user_id"},
			{From: "sessions", To: "users", Column: "user_id"},
		},
	)

	plan := g.DropWaves()

	if len(plan.Waves) != 2 {
		t.Fatalf("expected 2 waves, got %d", len(plan.Waves))
	}

	first := append([]string(nil), plan.Waves[0].Tables...)
	sort.Strings(first)
	if !reflect.DeepEqual(first, []string{"orders", "sessions"}) {
		t.Errorf("expected first wave {orders, sessions}, got %v", plan.Waves[0].Tables)
	}
	if !reflect.DeepEqual(plan.Waves[1].Tables, []string{"users"}) {
		t.Errorf("expected second wave {users}, got %v", plan.Waves[1].Tables)
	}
}

// waveIndex maps each table to the index of the wave containing it.
func waveIndex(t *testing.T, plan *DropPlan) map[string]int {
	t.Helper()
	idx := make(map[string]int)
	for i, w := range plan.Waves {
		for _, table := range w.Tables {
			if prev, dup := idx[table]; dup {
				t.Fatalf("table %s appears in waves %d and %d", table, prev, i)
			}
			idx[table] = i
		}
	}
	return idx
}

func TestDropWaves_OrderingProperty(t *testing.T) {
	// For any acyclic graph: if A references B, B must not be in an
	// earlier wave than A.
	tables := []string{"t1", "t2", "t3", "t4", "t5", "t6"}
	fks := []ForeignKey{
		{From: "t1", To: "t2", Column: "x"},
		{From: "t1", To: "t3", Column: "x"},
		{From: "t2", To: "t4", Column: "x"},
		{From: "t3", To: "t4", Column: "x"},
		{From: "t5", To: "t4", Column: "x"},
		{From: "t6", To: "t1", Column: "x"},
	}
	g := mustBuild(t, tables, fks)

	plan := g.DropWaves()
	idx := waveIndex(t, plan)

	if plan.TableCount() != len(tables) {
		t.Fatalf("plan covers %d of %d tables", plan.TableCount(), len(tables))
	}
	for _, fk := range fks {
		if idx[fk.To] < idx[fk.From] {
			t.Errorf("table %s (wave %d) referenced by %s (wave %d) dropped too early",
				fk.To, idx[fk.To], fk.From, idx[fk.From])
		}
	}
}

func TestDropWaves_CycleTerminatesAndCoversAll(t *testing.T) {
	// a -> b -> c -> a plus d hanging off the cycle.
	g := mustBuild(t,
		[]string{"a", "b", "c", "d"},
		[]ForeignKey{
			{From: "a", To: "b", Column: "x"},
			{From: "b", To: "c", Column: "x"},
			{From: "c", To: "a", Column: "x"},
			{From: "d", To: "a", Column: "x"},
		},
	)

	plan := g.DropWaves()

	if plan.TableCount() != 4 {
		t.Fatalf("expected all 4 tables in plan, got %d", plan.TableCount())
	}

	var forced []string
	for _, w := range plan.Waves {
		forced = append(forced, w.Forced...)
	}
	if len(forced) == 0 {
		t.Fatal("expected at least one forced drop for the cycle")
	}
}

func TestDropWaves_CycleVictimHasFewestOutgoingEdges(t *testing.T) {
	// Cycle between x and y; x additionally references z (pending), so y
	// has the fewest outgoing edges and must be the victim.
	g := mustBuild(t,
		[]string{"x", "y", "z"},
		[]ForeignKey{
			{From: "x", To: "y", Column: "c"},
			{From: "y", To: "x", Column: "c"},
			{From: "x", To: "z", Column: "c"},
		},
	)

	plan := g.DropWaves()

	if len(plan.Waves) == 0 || len(plan.Waves[0].Forced) != 1 {
		t.Fatalf("expected first wave to be the forced cycle victim, got %+v", plan.Waves)
	}
	if plan.Waves[0].Forced[0] != "y" {
		t.Errorf("expected victim y (fewest outgoing edges), got %s", plan.Waves[0].Forced[0])
	}
}

func TestDropWaves_Deterministic(t *testing.T) {
	tables := []string{"users", "orders", "sessions", "profiles", "audit"}
	fks := []ForeignKey{
		{From: "orders", To: "users", Column: "user_id"},
		{From: "sessions", To: "users", Column: "user_id"},
		{From: "profiles", To: "users", Column: "user_id"},
	}

	first := mustBuild(t, tables, fks).DropWaves()
	second := mustBuild(t, tables, fks).DropWaves()

	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical inputs produced different plans:\n%+v\n%+v", first, second)
	}
}

func TestDropWaves_EmptyGraph(t *testing.T) {
	g := NewDependencyGraph()
	plan := g.DropWaves()
	if len(plan.Waves) != 0 {
		t.Errorf("expected empty plan, got %d waves", len(plan.Waves))
	}
}
