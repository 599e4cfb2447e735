// Package graph provides the foreign-key dependency graph and drop-wave
// planning for GoFresh.
package graph

import (
	"github.com/elliotchance/orderedmap/v2"
)

// TableNode represents a table in the dependency graph.
type TableNode struct {
	Name         string
	References   []string // tables this table references via outgoing FKs
	ReferencedBy []string // tables holding FKs pointing at this table
}

// ForeignKey represents a single foreign-key relationship discovered by
// introspection. From holds the FK, To is the referenced table.
type ForeignKey struct {
	From   string
	To     string
	Column string
}

// DependencyGraph is a directed graph of tables keyed by table name.
// Edges point from a table to the tables it references. Node iteration
// order is the insertion order, which keeps wave planning deterministic.
type DependencyGraph struct {
	nodes *orderedmap.OrderedMap[string, *TableNode]
}

// NewDependencyGraph creates an empty dependency graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes: orderedmap.NewOrderedMap[string, *TableNode](),
	}
}

// AddTable adds a table node to the graph. Adding the same table twice
// is a no-op.
func (g *DependencyGraph) AddTable(name string) {
	if _, exists := g.nodes.Get(name); exists {
		return
	}
	g.nodes.Set(name, &TableNode{Name: name})
}

// addReference records that from references to. Both tables must already
// exist in the node set; callers are expected to validate via HasTable.
func (g *DependencyGraph) addReference(from, to string) {
	fromNode, _ := g.nodes.Get(from)
	toNode, _ := g.nodes.Get(to)
	fromNode.References = append(fromNode.References, to)
	toNode.ReferencedBy = append(toNode.ReferencedBy, from)
}

// HasTable returns true if the graph contains a node with the given name.
func (g *DependencyGraph) HasTable(name string) bool {
	_, exists := g.nodes.Get(name)
	return exists
}

// Node returns the node for a given table name, or nil if not found.
func (g *DependencyGraph) Node(name string) *TableNode {
	node, _ := g.nodes.Get(name)
	return node
}

// TableCount returns the number of tables in the graph.
func (g *DependencyGraph) TableCount() int {
	return g.nodes.Len()
}

// ReferenceCount returns the number of FK edges in the graph.
func (g *DependencyGraph) ReferenceCount() int {
	count := 0
	for el := g.nodes.Front(); el != nil; el = el.Next() {
		count += len(el.Value.References)
	}
	return count
}

// Tables returns all table names in insertion order.
func (g *DependencyGraph) Tables() []string {
	tables := make([]string, 0, g.nodes.Len())
	for el := g.nodes.Front(); el != nil; el = el.Next() {
		tables = append(tables, el.Key)
	}
	return tables
}

// OutDegree returns the number of tables this table references.
func (g *DependencyGraph) OutDegree(name string) int {
	node, exists := g.nodes.Get(name)
	if !exists {
		return 0
	}
	return len(node.References)
}

// InDegree returns the number of tables referencing this table.
func (g *DependencyGraph) InDegree(name string) int {
	node, exists := g.nodes.Get(name)
	if !exists {
		return 0
	}
	return len(node.ReferencedBy)
}
