package graph

import (
	"container/list"
	"errors"
	"fmt"
	"strings"
)

// ProcessingQueue holds batches whose dependencies are all satisfied.
type ProcessingQueue struct {
	queue *list.List
}

// NewProcessingQueue creates a new empty processing queue.
func NewProcessingQueue() *ProcessingQueue {
	return &ProcessingQueue{
		queue: list.New(),
	}
}

// InitializeQueue enqueues every node with in-degree 0, in name order.
func (g *Graph) InitializeQueue(inDegree map[string]int) *ProcessingQueue {
	pq := NewProcessingQueue()
	for _, name := range g.AllNodes() {
		if inDegree[name] == 0 {
			pq.Enqueue(name)
		}
	}
	return pq
}

// Enqueue adds a node to the back of the queue.
func (pq *ProcessingQueue) Enqueue(node string) {
	pq.queue.PushBack(node)
}

// Dequeue removes and returns the node at the front of the queue.
// Returns empty string and false if queue is empty.
func (pq *ProcessingQueue) Dequeue() (string, bool) {
	if pq.queue.Len() == 0 {
		return "", false
	}
	elem := pq.queue.Front()
	pq.queue.Remove(elem)
	return elem.Value.(string), true
}

// Len returns the number of nodes in the queue.
func (pq *ProcessingQueue) Len() int {
	return pq.queue.Len()
}

// IsEmpty returns true if the queue has no nodes.
func (pq *ProcessingQueue) IsEmpty() bool {
	return pq.queue.Len() == 0
}

// CalculateInDegrees computes the number of dependencies of each batch.
func (g *Graph) CalculateInDegrees() map[string]int {
	inDegree := make(map[string]int, len(g.Nodes))
	for name := range g.Nodes {
		inDegree[name] = 0
	}
	for _, children := range g.Children {
		for _, child := range children {
			inDegree[child]++
		}
	}
	return inDegree
}

// ErrCycleDetected is matched by every CycleError.
var ErrCycleDetected = errors.New("cycle detected in batch dependencies")

// CycleInfo describes the batches Kahn's algorithm could not order.
type CycleInfo struct {
	TotalNodes        int
	ProcessedNodes    int
	UnprocessedNodes  []string // part of or blocked by a cycle
	CycleParticipants []string // subset of UnprocessedNodes that form a cycle
	CyclePath         []string // e.g. [a, b, c, a]
}

// CycleError reports batches whose dependencies form a cycle.
type CycleError struct {
	Info *CycleInfo
}

func (e *CycleError) Error() string {
	msg := fmt.Sprintf("cycle detected in batch dependencies: %d of %d batches could not be ordered",
		len(e.Info.UnprocessedNodes), e.Info.TotalNodes)

	if len(e.Info.CyclePath) > 0 {
		msg += fmt.Sprintf("\nCycle path: %s", strings.Join(e.Info.CyclePath, " -> "))
	}
	if len(e.Info.CycleParticipants) > 0 {
		msg += fmt.Sprintf("\nBatches in cycle: %s", strings.Join(e.Info.CycleParticipants, ", "))
	}

	if len(e.Info.UnprocessedNodes) > len(e.Info.CycleParticipants) {
		participants := make(map[string]bool, len(e.Info.CycleParticipants))
		for _, p := range e.Info.CycleParticipants {
			participants[p] = true
		}
		var blocked []string
		for _, u := range e.Info.UnprocessedNodes {
			if !participants[u] {
				blocked = append(blocked, u)
			}
		}
		if len(blocked) > 0 {
			msg += fmt.Sprintf("\nBatches blocked by cycle: %s", strings.Join(blocked, ", "))
		}
	}

	return msg
}

// Is makes errors.Is(err, ErrCycleDetected) match.
func (e *CycleError) Is(target error) bool {
	return target == ErrCycleDetected
}

// kahn runs Kahn's algorithm and returns the order of every batch it could
// process.
func (g *Graph) kahn() []string {
	inDegree := g.CalculateInDegrees()
	queue := g.InitializeQueue(inDegree)

	order := make([]string, 0, len(g.Nodes))
	for !queue.IsEmpty() {
		node, _ := queue.Dequeue()
		order = append(order, node)

		for _, child := range g.GetChildren(node) {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue.Enqueue(child)
			}
		}
	}
	return order
}

// DetectIncompleteProcessing returns nil when every batch can be ordered and
// a description of the remainder otherwise.
func (g *Graph) DetectIncompleteProcessing() *CycleInfo {
	order := g.kahn()
	if len(order) == len(g.Nodes) {
		return nil
	}

	processed := make(map[string]bool, len(order))
	for _, n := range order {
		processed[n] = true
	}

	var unprocessed []string
	unprocessedSet := make(map[string]bool)
	for _, name := range g.AllNodes() {
		if !processed[name] {
			unprocessed = append(unprocessed, name)
			unprocessedSet[name] = true
		}
	}

	var participants []string
	for _, node := range unprocessed {
		if g.canReachSelf(node, unprocessedSet) {
			participants = append(participants, node)
		}
	}

	var path []string
	if len(participants) > 0 {
		path = g.FindCyclePath(participants[0], unprocessedSet)
	}

	return &CycleInfo{
		TotalNodes:        len(g.Nodes),
		ProcessedNodes:    len(order),
		UnprocessedNodes:  unprocessed,
		CycleParticipants: participants,
		CyclePath:         path,
	}
}

// HasCycle returns true if the batch dependencies contain a cycle.
func (g *Graph) HasCycle() bool {
	return g.DetectIncompleteProcessing() != nil
}

// FindCyclePath returns a cycle through start, with start at both ends, or
// nil when none exists within allowedNodes.
func (g *Graph) FindCyclePath(start string, allowedNodes map[string]bool) []string {
	visited := make(map[string]bool)
	path := []string{start}
	if g.dfsFindPath(start, start, visited, allowedNodes, &path) {
		return path
	}
	return nil
}

func (g *Graph) dfsFindPath(current, target string, visited, allowedNodes map[string]bool, path *[]string) bool {
	for _, child := range g.GetChildren(current) {
		if !allowedNodes[child] {
			continue
		}
		if child == target {
			*path = append(*path, target)
			return true
		}
		if visited[child] {
			continue
		}

		visited[child] = true
		*path = append(*path, child)
		if g.dfsFindPath(child, target, visited, allowedNodes, path) {
			return true
		}
		*path = (*path)[:len(*path)-1]
	}
	return false
}

func (g *Graph) canReachSelf(start string, allowedNodes map[string]bool) bool {
	visited := make(map[string]bool)
	return g.dfsCanReach(start, start, visited, allowedNodes, true)
}

// dfsCanReach reports whether target is reachable from current. isStart
// suppresses the trivial match on the first call.
func (g *Graph) dfsCanReach(current, target string, visited, allowedNodes map[string]bool, isStart bool) bool {
	if current == target && !isStart {
		return true
	}
	if visited[current] || !allowedNodes[current] {
		return false
	}
	visited[current] = true

	for _, child := range g.GetChildren(current) {
		if g.dfsCanReach(child, target, visited, allowedNodes, false) {
			return true
		}
	}
	return false
}

// RunOrder returns every batch in an order that runs dependencies first.
// Independent batches are ordered by name.
func (g *Graph) RunOrder() ([]string, error) {
	order := g.kahn()
	if len(order) != len(g.Nodes) {
		return nil, &CycleError{Info: g.DetectIncompleteProcessing()}
	}
	return order, nil
}

// OrderFor returns the run order restricted to name and its transitive
// dependencies.
func (g *Graph) OrderFor(name string) ([]string, error) {
	if !g.HasNode(name) {
		return nil, fmt.Errorf("batch %q not found", name)
	}
	order, err := g.RunOrder()
	if err != nil {
		return nil, err
	}

	keep := map[string]bool{name: true}
	for _, a := range g.Ancestors(name) {
		keep[a] = true
	}

	out := make([]string, 0, len(keep))
	for _, n := range order {
		if keep[n] {
			out = append(out, n)
		}
	}
	return out, nil
}

// Validate fails with a CycleError when the batches cannot be ordered.
func (g *Graph) Validate() error {
	if info := g.DetectIncompleteProcessing(); info != nil {
		return &CycleError{Info: info}
	}
	return nil
}
