// Package cpm implements critical path method scheduling over an acyclic
// task graph: forward and backward passes for early/late start and finish,
// total float, and longest-path critical-path extraction.
package cpm

import (
	"fmt"
	"sort"

	"github.com/joshharrison/loomplan/internal/graph"
)

// floatEpsilon absorbs floating-point accumulation when classifying a task
// as critical. Applied once per node to total float, nowhere else.
const floatEpsilon = 1e-9

// Analyze performs critical path analysis on an acyclic task graph.
// durations maps task id to duration in days; tasks missing from the map
// get one day. The graph must already be cycle-checked — a cycle here is
// an internal error, not a user-facing one.
func Analyze(g *graph.DepGraph, durations map[string]float64) (*Result, error) {
	order, err := topoSort(g)
	if err != nil {
		return nil, err
	}

	dur := func(id string) float64 {
		if d, ok := durations[id]; ok && d > 0 {
			return d
		}
		return 1
	}

	result := &Result{
		Tasks:     make(map[string]*TaskSchedule, len(order)),
		TopoOrder: order,
	}
	for _, id := range order {
		result.Tasks[id] = &TaskSchedule{TaskID: id}
	}

	// Forward pass: ES = max(EF of predecessors), 0 for roots.
	for _, id := range order {
		ts := result.Tasks[id]
		es := 0.0
		for _, pred := range g.Preds[id] {
			if ef := result.Tasks[pred].EarlyFinish; ef > es {
				es = ef
			}
		}
		ts.EarlyStart = es
		ts.EarlyFinish = es + dur(id)
	}

	// Project finish is the latest early finish over all tasks.
	finish := 0.0
	for _, ts := range result.Tasks {
		if ts.EarlyFinish > finish {
			finish = ts.EarlyFinish
		}
	}
	result.ProjectFinish = finish

	// Backward pass in reverse topological order. Sinks finish at the
	// project finish; everything else is bounded by its successors.
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		ts := result.Tasks[id]

		if len(g.Succs[id]) == 0 {
			ts.LateFinish = finish
		} else {
			minLS := finish
			for _, succ := range g.Succs[id] {
				if ls := result.Tasks[succ].LateStart; ls < minLS {
					minLS = ls
				}
			}
			ts.LateFinish = minLS
		}
		ts.LateStart = ts.LateFinish - dur(id)
		ts.TotalFloat = ts.LateStart - ts.EarlyStart
		ts.IsCritical = ts.TotalFloat <= floatEpsilon
	}

	result.CriticalPath = criticalPath(g, order, dur)

	return result, nil
}

// topoSort performs Kahn's algorithm over the predecessor map. Ready tasks
// are processed in input order so results are deterministic.
func topoSort(g *graph.DepGraph) ([]string, error) {
	inDegree := make(map[string]int, len(g.Tasks))
	for _, id := range g.Order {
		inDegree[id] = len(g.Preds[id])
	}

	position := make(map[string]int, len(g.Order))
	for i, id := range g.Order {
		position[id] = i
	}

	var queue []string
	for _, id := range g.Order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	var order []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		var newReady []string
		for _, succ := range g.Succs[node] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				newReady = append(newReady, succ)
			}
		}
		sort.Slice(newReady, func(a, b int) bool {
			return position[newReady[a]] < position[newReady[b]]
		})
		queue = append(queue, newReady...)
	}

	if len(order) != len(g.Tasks) {
		return nil, fmt.Errorf("topological sort failed: graph has a cycle (%d of %d tasks sorted)", len(order), len(g.Tasks))
	}

	return order, nil
}

// criticalPath walks the longest-duration chain. longest(t) is the total
// duration of the heaviest path ending at t; the path ends at the task
// maximizing it and is reconstructed backwards, preferring the first
// predecessor (in stored order) with the largest longest value.
func criticalPath(g *graph.DepGraph, order []string, dur func(string) float64) []string {
	longest := make(map[string]float64, len(order))
	for _, id := range order {
		best := 0.0
		for _, pred := range g.Preds[id] {
			if longest[pred] > best {
				best = longest[pred]
			}
		}
		longest[id] = best + dur(id)
	}

	end := ""
	for _, id := range order {
		if end == "" || longest[id] > longest[end] {
			end = id
		}
	}
	if end == "" {
		return nil
	}

	var path []string
	cur := end
	for {
		path = append(path, cur)
		preds := g.Preds[cur]
		if len(preds) == 0 {
			break
		}
		next := preds[0]
		for _, pred := range preds[1:] {
			if longest[pred] > longest[next] {
				next = pred
			}
		}
		cur = next
	}

	// Reverse to get start -> end order.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
