package graph

import (
	"fmt"
	"strings"

	"github.com/dbsmedya/goerpcheck/internal/config"
)

// Builder constructs the run graph from batch configuration.
type Builder struct {
	batches map[string]config.BatchConfig
}

// NewBuilder creates a new graph builder for the given batches.
func NewBuilder(batches map[string]config.BatchConfig) *Builder {
	return &Builder{batches: batches}
}

// Build adds one node per batch and one edge per depends_on entry, then
// rejects cycles.
func (b *Builder) Build() (*Graph, error) {
	if len(b.batches) == 0 {
		return nil, fmt.Errorf("no batches configured")
	}

	g := NewGraph()
	for name, bc := range b.batches {
		g.AddNode(strings.ToLower(name), &Node{Entity: bc.Entity, Operation: bc.Operation})
	}

	for name, bc := range b.batches {
		name = strings.ToLower(name)
		for _, dep := range bc.DependsOn {
			dep = strings.ToLower(dep)
			if dep == name {
				return nil, fmt.Errorf("batch %q depends on itself", name)
			}
			if !g.HasNode(dep) {
				return nil, fmt.Errorf("batch %q depends on unknown batch %q", name, dep)
			}
			g.AddEdge(dep, name)
		}
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("graph validation failed: %w", err)
	}
	return g, nil
}

// BuildFromBatches is a convenience function that builds a graph directly
// from batch configuration.
func BuildFromBatches(batches map[string]config.BatchConfig) (*Graph, error) {
	return NewBuilder(batches).Build()
}
