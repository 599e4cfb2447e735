package graph

import "fmt"

// OrphanReferenceError is returned when a foreign key points at a table
// that is not in the introspected table set. This indicates corrupt
// catalog metadata and aborts plan construction.
type OrphanReferenceError struct {
	From   string
	To     string
	Column string
}

func (e *OrphanReferenceError) Error() string {
	return fmt.Sprintf("foreign key %s.%s references unknown table %q", e.From, e.Column, e.To)
}

// Build constructs a DependencyGraph from an introspected table set and
// foreign-key list. Every FK endpoint must exist in the table set.
// Self-referential FKs are ignored: a table's internal constraint never
// blocks dropping the table as a whole.
func Build(tables []string, fks []ForeignKey) (*DependencyGraph, error) {
	g := NewDependencyGraph()

	for _, table := range tables {
		g.AddTable(table)
	}

	// Composite FKs surface one row per column; collapse to one edge.
	seen := make(map[[2]string]bool)

	for _, fk := range fks {
		if !g.HasTable(fk.From) {
			return nil, &OrphanReferenceError{From: fk.From, To: fk.To, Column: fk.Column}
		}
		if !g.HasTable(fk.To) {
			return nil, &OrphanReferenceError{From: fk.From, To: fk.To, Column: fk.Column}
		}
		if fk.From == fk.To {
			continue
		}

		key := [2]string{fk.From, fk.To}
		if seen[key] {
			continue
		}
		seen[key] = true

		g.addReference(fk.From, fk.To)
	}

	return g, nil
}
