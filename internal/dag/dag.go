// Package dag provides the directed acyclic graph used to order provisioning
// work. It supports cycle detection, topological ordering, execution levels
// and stage barriers between groups of nodes.
package dag

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// ErrCycle is returned when an operation requires an acyclic graph.
var ErrCycle = errors.New("cycle detected")

// CycleError reports the nodes forming a cycle.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCycle, strings.Join(e.Path, " -> "))
}

// Unwrap lets errors.Is match ErrCycle.
func (e *CycleError) Unwrap() error { return ErrCycle }

// Node is a vertex of the graph.
type Node struct {
	// ID is the unique identifier (logical resource or view name)
	ID string
	// Data holds the descriptor attached to the node
	Data any
}

// Graph is a directed graph where an edge parent -> child means the child
// depends on the parent.
type Graph struct {
	nodes    map[string]*Node
	children map[string][]string
	parents  map[string][]string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
	}
}

// AddNode adds a node, replacing the data of an existing node with the same id.
func (g *Graph) AddNode(id string, data any) {
	if n, ok := g.nodes[id]; ok {
		n.Data = data
		return
	}
	g.nodes[id] = &Node{ID: id, Data: data}
	g.children[id] = []string{}
	g.parents[id] = []string{}
}

// AddEdge records that child depends on parent.
func (g *Graph) AddEdge(parentID, childID string) error {
	if _, ok := g.nodes[parentID]; !ok {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if _, ok := g.nodes[childID]; !ok {
		return fmt.Errorf("child node %q does not exist", childID)
	}
	if parentID == childID {
		return fmt.Errorf("self-loop detected: %s", parentID)
	}

	if !slices.Contains(g.children[parentID], childID) {
		g.children[parentID] = append(g.children[parentID], childID)
	}
	if !slices.Contains(g.parents[childID], parentID) {
		g.parents[childID] = append(g.parents[childID], parentID)
	}
	return nil
}

// AddBarrier makes every root of after depend on every leaf of before, so no
// node of after can start until all of before has settled.
func (g *Graph) AddBarrier(before, after []string) error {
	leaves := g.Subgraph(before).Leaves()
	roots := g.Subgraph(after).Roots()
	for _, leaf := range leaves {
		for _, root := range roots {
			if err := g.AddEdge(leaf, root); err != nil {
				return fmt.Errorf("barrier %s -> %s: %w", leaf, root, err)
			}
		}
	}
	return nil
}

// Node returns a node by id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Parents returns the direct dependencies of a node, sorted.
func (g *Graph) Parents(id string) []string {
	return sorted(g.parents[id])
}

// Children returns the direct dependents of a node, sorted.
func (g *Graph) Children(id string) []string {
	return sorted(g.children[id])
}

// Nodes returns all nodes ordered by id.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, c := range g.children {
		count += len(c)
	}
	return count
}

// FindCycle returns the nodes of a cycle, or nil if the graph is acyclic.
func (g *Graph) FindCycle() []string {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	via := make(map[string]string)
	var cycle []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		onStack[id] = true
		for _, child := range sorted(g.children[id]) {
			if !visited[child] {
				via[child] = id
				if dfs(child) {
					return true
				}
			} else if onStack[child] {
				cycle = []string{child}
				for cur := id; cur != child; cur = via[cur] {
					cycle = append([]string{cur}, cycle...)
				}
				cycle = append([]string{child}, cycle...)
				return true
			}
		}
		onStack[id] = false
		return false
	}

	for _, n := range g.Nodes() {
		if !visited[n.ID] && dfs(n.ID) {
			return cycle
		}
	}
	return nil
}

// Validate returns a *CycleError if the graph contains a cycle.
func (g *Graph) Validate() error {
	if path := g.FindCycle(); path != nil {
		return &CycleError{Path: path}
	}
	return nil
}

// TopologicalSort returns nodes with dependencies before dependents. Ties
// are broken by id so the order is stable.
func (g *Graph) TopologicalSort() ([]*Node, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	visited := make(map[string]bool)
	result := make([]*Node, 0, len(g.nodes))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, p := range sorted(g.parents[id]) {
			visit(p)
		}
		result = append(result, g.nodes[id])
	}

	for _, n := range g.Nodes() {
		visit(n.ID)
	}
	return result, nil
}

// ExecutionLevels groups node ids by depth. Nodes at level N depend only on
// nodes at levels below N; level 0 holds the roots.
func (g *Graph) ExecutionLevels() ([][]string, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	level := make(map[string]int)
	var depth func(id string) int
	depth = func(id string) int {
		if l, ok := level[id]; ok {
			return l
		}
		l := 0
		for _, p := range g.parents[id] {
			if d := depth(p) + 1; d > l {
				l = d
			}
		}
		level[id] = l
		return l
	}

	maxLevel := -1
	for id := range g.nodes {
		if l := depth(id); l > maxLevel {
			maxLevel = l
		}
	}

	levels := make([][]string, maxLevel+1)
	for id, l := range level {
		levels[l] = append(levels[l], id)
	}
	for i := range levels {
		sort.Strings(levels[i])
	}
	return levels, nil
}

// Upstream returns every transitive dependency of id, sorted.
func (g *Graph) Upstream(id string) []string {
	return g.reach(id, g.parents)
}

// Downstream returns every transitive dependent of id, sorted.
func (g *Graph) Downstream(id string) []string {
	return g.reach(id, g.children)
}

func (g *Graph) reach(id string, next map[string][]string) []string {
	seen := make(map[string]bool)
	var walk func(string)
	walk = func(cur string) {
		for _, n := range next[cur] {
			if !seen[n] {
				seen[n] = true
				walk(n)
			}
		}
	}
	walk(id)

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Roots returns nodes without dependencies.
func (g *Graph) Roots() []string {
	var roots []string
	for id, p := range g.parents {
		if len(p) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}

// Leaves returns nodes without dependents.
func (g *Graph) Leaves() []string {
	var leaves []string
	for id, c := range g.children {
		if len(c) == 0 {
			leaves = append(leaves, id)
		}
	}
	sort.Strings(leaves)
	return leaves
}

// Subgraph returns the induced graph over ids. Unknown ids are ignored.
func (g *Graph) Subgraph(ids []string) *Graph {
	sub := NewGraph()
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		if n, ok := g.nodes[id]; ok {
			keep[id] = true
			sub.AddNode(id, n.Data)
		}
	}
	for id := range keep {
		for _, child := range g.children[id] {
			if keep[child] {
				_ = sub.AddEdge(id, child)
			}
		}
	}
	return sub
}

func sorted(ids []string) []string {
	out := slices.Clone(ids)
	sort.Strings(out)
	return out
}
