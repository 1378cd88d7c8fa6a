package graph

import "github.com/joshharrison/loomplan/internal/models"

// DepGraph is the dependency graph over one project's tasks. Edges point
// from a predecessor to the tasks it unblocks.
type DepGraph struct {
	Tasks map[string]*models.Task
	Preds map[string][]string // task -> its predecessors, in stored order
	Succs map[string][]string // task -> tasks that list it as a predecessor
	Order []string            // task ids in input order
	Roots []string            // tasks with no predecessors
	Sinks []string            // tasks no other task depends on
}
