package graph

import "sort"

// Wave is a set of tables that may be dropped concurrently because no
// table in the set references another table still standing. Forced lists
// the tables in this wave that must be dropped with CASCADE or with
// constraint checking disabled because they participate in an FK cycle.
type Wave struct {
	Tables []string
	Forced []string
}

// DropPlan is an ordered sequence of waves. Waves execute strictly in
// order; tables within a wave are mutually independent.
type DropPlan struct {
	Waves []Wave
}

// TableCount returns the total number of tables across all waves.
func (p *DropPlan) TableCount() int {
	count := 0
	for _, w := range p.Waves {
		count += len(w.Tables)
	}
	return count
}

// AllTables returns every table in the plan in drop order.
func (p *DropPlan) AllTables() []string {
	tables := make([]string, 0, p.TableCount())
	for _, w := range p.Waves {
		tables = append(tables, w.Tables...)
	}
	return tables
}

// DropWaves peels the graph into drop waves using a reverse topological
// sort (Kahn's algorithm). Each iteration extracts the set of tables with
// no unresolved dependents: tables that no still-pending table references.
// Those are safe to drop first, freeing their reference targets for later
// waves.
//
// Cycles are legitimate with circular FKs. When the residual graph has no
// zero-dependent table, the table with the fewest outgoing references is
// selected as the cycle victim, marked for a forced (CASCADE or
// constraint-disabled) drop, and stripped of its edges before peeling
// continues. Termination is guaranteed: every iteration removes at least
// one table.
func (g *DependencyGraph) DropWaves() *DropPlan {
	// Pending dependent counts, i.e. how many still-standing tables hold
	// an FK into each table.
	dependents := make(map[string]int, g.nodes.Len())
	for el := g.nodes.Front(); el != nil; el = el.Next() {
		dependents[el.Key] = len(el.Value.ReferencedBy)
	}

	pending := make(map[string]bool, g.nodes.Len())
	order := g.Tables()
	for _, t := range order {
		pending[t] = true
	}

	plan := &DropPlan{}

	for len(pending) > 0 {
		var wave []string
		for _, t := range order {
			if pending[t] && dependents[t] == 0 {
				wave = append(wave, t)
			}
		}

		if len(wave) == 0 {
			// Residual cycle: break it by forcing the cheapest table out.
			victim := g.pickCycleVictim(pending)
			g.removeEdges(victim, pending, dependents)
			delete(pending, victim)
			plan.Waves = append(plan.Waves, Wave{
				Tables: []string{victim},
				Forced: []string{victim},
			})
			continue
		}

		for _, t := range wave {
			g.removeEdges(t, pending, dependents)
			delete(pending, t)
		}
		plan.Waves = append(plan.Waves, Wave{Tables: wave})
	}

	return plan
}

// pickCycleVictim selects the pending table with the fewest outgoing
// references that still point at pending tables, breaking ties by name so
// the choice is stable across runs. Tables with no pending outgoing
// references cannot be cycle members and are skipped: they free up on
// their own once the cycle clears.
func (g *DependencyGraph) pickCycleVictim(pending map[string]bool) string {
	candidates := make([]string, 0, len(pending))
	for t := range pending {
		if g.pendingOutDegree(t, pending) > 0 {
			candidates = append(candidates, t)
		}
	}
	sort.Strings(candidates)

	best := candidates[0]
	bestOut := g.pendingOutDegree(best, pending)
	for _, t := range candidates[1:] {
		out := g.pendingOutDegree(t, pending)
		if out < bestOut {
			best, bestOut = t, out
		}
	}
	return best
}

func (g *DependencyGraph) pendingOutDegree(table string, pending map[string]bool) int {
	node := g.Node(table)
	count := 0
	for _, ref := range node.References {
		if pending[ref] {
			count++
		}
	}
	return count
}

// removeEdges resolves the dropped table's outgoing references so its
// reference targets see one fewer pending dependent.
func (g *DependencyGraph) removeEdges(table string, pending map[string]bool, dependents map[string]int) {
	node := g.Node(table)
	counted := make(map[string]bool, len(node.References))
	for _, ref := range node.References {
		if pending[ref] && !counted[ref] {
			dependents[ref]--
			counted[ref] = true
		}
	}
}
