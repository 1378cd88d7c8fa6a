// Package graph builds a project's dependency graph from its stored
// predecessor lists and detects cycles before any schedule is computed.
package graph

import (
	"github.com/joshharrison/loomplan/internal/models"
)

// Build constructs a DepGraph from a project's tasks. Self-references and
// predecessors pointing outside the task set are dropped rather than
// rejected — the stored lists are noisy real-world data.
func Build(tasks []models.Task) *DepGraph {
	g := &DepGraph{
		Tasks: make(map[string]*models.Task, len(tasks)),
		Preds: make(map[string][]string),
		Succs: make(map[string][]string),
	}

	for i := range tasks {
		t := &tasks[i]
		if _, dup := g.Tasks[t.ID]; dup {
			continue
		}
		g.Tasks[t.ID] = t
		g.Order = append(g.Order, t.ID)
	}

	edgeSet := make(map[[2]string]bool)
	for _, id := range g.Order {
		for _, pred := range g.Tasks[id].Predecessors {
			if pred == id {
				continue
			}
			if _, ok := g.Tasks[pred]; !ok {
				continue
			}
			key := [2]string{pred, id}
			if edgeSet[key] {
				continue
			}
			edgeSet[key] = true
			g.Preds[id] = append(g.Preds[id], pred)
			g.Succs[pred] = append(g.Succs[pred], id)
		}
	}

	for _, id := range g.Order {
		if len(g.Preds[id]) == 0 {
			g.Roots = append(g.Roots, id)
		}
		if len(g.Succs[id]) == 0 {
			g.Sinks = append(g.Sinks, id)
		}
	}

	return g
}

// TaskCount returns the number of tasks in the graph.
func (g *DepGraph) TaskCount() int { return len(g.Tasks) }

// Cycles returns every dependency cycle in the graph, each as a sequence of
// task ids returning to its start. An empty result means the graph is acyclic.
//
// Depth-first traversal with an explicit frame stack: when a successor
// already on the current path is revisited, the cycle is the path slice from
// that node's first occurrence through the current node. Every unvisited
// task is used as a start node, so disconnected components are covered.
func (g *DepGraph) Cycles() [][]string {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current path
		black = 2 // fully explored
	)

	color := make(map[string]int, len(g.Tasks))
	pathIndex := make(map[string]int)

	type frame struct {
		id   string
		next int
	}

	var cycles [][]string

	for _, start := range g.Order {
		if color[start] != white {
			continue
		}

		stack := []frame{{id: start}}
		color[start] = gray
		pathIndex[start] = 0
		path := []string{start}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			succs := g.Succs[top.id]

			if top.next < len(succs) {
				next := succs[top.next]
				top.next++

				switch color[next] {
				case gray:
					// Cycle: slice the current path from next's first
					// occurrence through the current node, closed back
					// on itself.
					from := pathIndex[next]
					cycle := make([]string, 0, len(path)-from+1)
					cycle = append(cycle, path[from:]...)
					cycle = append(cycle, next)
					cycles = append(cycles, cycle)
				case white:
					color[next] = gray
					pathIndex[next] = len(path)
					path = append(path, next)
					stack = append(stack, frame{id: next})
				}
				continue
			}

			color[top.id] = black
			delete(pathIndex, top.id)
			path = path[:len(path)-1]
			stack = stack[:len(stack)-1]
		}
	}

	return cycles
}
