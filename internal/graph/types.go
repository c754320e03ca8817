// Package graph orders batches by their declared dependencies.
package graph

import "sort"

// Node represents a batch in the run graph.
type Node struct {
	Name      string // Batch name
	Entity    string // Entity the batch drives
	Operation string // create, update or delete
}

// Edge represents a dependency between batches.
type Edge struct {
	From string // Batch that must run first
	To   string // Batch that depends on it
}

// Graph is the dependency structure of a batch suite.
type Graph struct {
	Nodes    map[string]*Node    // batch name -> node
	Children map[string][]string // batch name -> dependents (outgoing edges)
	Parents  map[string][]string // batch name -> dependencies (incoming edges)
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes:    make(map[string]*Node),
		Children: make(map[string][]string),
		Parents:  make(map[string][]string),
	}
}

// AddNode adds a batch node to the graph.
// If node is nil, a new node with default values is created.
func (g *Graph) AddNode(name string, node *Node) {
	if node == nil {
		node = &Node{Name: name}
	}
	node.Name = name
	g.Nodes[name] = node
}

// AddEdge records that dependent must run after dependency. Adjacency lists
// are kept sorted so traversal order does not depend on insertion order.
func (g *Graph) AddEdge(dependency, dependent string) {
	g.Children[dependency] = insertSorted(g.Children[dependency], dependent)
	g.Parents[dependent] = insertSorted(g.Parents[dependent], dependency)
}

func insertSorted(list []string, name string) []string {
	i := sort.SearchStrings(list, name)
	if i < len(list) && list[i] == name {
		return list
	}
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = name
	return list
}

// GetChildren returns the batches that depend directly on name.
func (g *Graph) GetChildren(name string) []string {
	return g.Children[name]
}

// GetParents returns the direct dependencies of name.
func (g *Graph) GetParents(name string) []string {
	return g.Parents[name]
}

// GetNode returns the node for a batch, or nil if not found.
func (g *Graph) GetNode(name string) *Node {
	return g.Nodes[name]
}

// HasNode returns true if the graph contains the batch.
func (g *Graph) HasNode(name string) bool {
	_, exists := g.Nodes[name]
	return exists
}

// NodeCount returns the number of batches in the graph.
func (g *Graph) NodeCount() int {
	return len(g.Nodes)
}

// EdgeCount returns the number of dependency edges.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, children := range g.Children {
		count += len(children)
	}
	return count
}

// AllNodes returns all batch names, sorted.
func (g *Graph) AllNodes() []string {
	nodes := make([]string, 0, len(g.Nodes))
	for name := range g.Nodes {
		nodes = append(nodes, name)
	}
	sort.Strings(nodes)
	return nodes
}

// Ancestors returns every batch name reachable through dependencies of name,
// sorted. The batch itself is not included.
func (g *Graph) Ancestors(name string) []string {
	seen := make(map[string]bool)
	var walk func(string)
	walk = func(n string) {
		for _, p := range g.Parents[n] {
			if !seen[p] {
				seen[p] = true
				walk(p)
			}
		}
	}
	walk(name)

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// InDegree returns the number of dependencies of a batch.
func (g *Graph) InDegree(name string) int {
	return len(g.Parents[name])
}
