package graph

import (
	"testing"

	"github.com/joshharrison/loomplan/internal/models"
)

func task(id string, preds ...string) models.Task {
	return models.Task{ID: id, ProjectID: "p1", Title: id, Predecessors: preds}
}

func TestBuild_SimpleDAG(t *testing.T) {
	// a -> b -> d
	// a -> c -> d
	g := Build([]models.Task{
		task("a"),
		task("b", "a"),
		task("c", "a"),
		task("d", "b", "c"),
	})

	if g.TaskCount() != 4 {
		t.Errorf("expected 4 tasks, got %d", g.TaskCount())
	}
	if len(g.Roots) != 1 || g.Roots[0] != "a" {
		t.Errorf("expected roots=[a], got %v", g.Roots)
	}
	if len(g.Sinks) != 1 || g.Sinks[0] != "d" {
		t.Errorf("expected sinks=[d], got %v", g.Sinks)
	}
	if succs := g.Succs["a"]; len(succs) != 2 {
		t.Errorf("expected a to unblock 2 tasks, got %v", succs)
	}
	if preds := g.Preds["d"]; len(preds) != 2 || preds[0] != "b" || preds[1] != "c" {
		t.Errorf("expected d preds [b c] in stored order, got %v", preds)
	}
}

func TestBuild_DropsSelfReferenceAndUnknowns(t *testing.T) {
	g := Build([]models.Task{
		task("a", "a", "ghost"),
		task("b", "a"),
	})

	if len(g.Preds["a"]) != 0 {
		t.Errorf("expected self/unknown predecessors dropped, got %v", g.Preds["a"])
	}
	if len(g.Preds["b"]) != 1 || g.Preds["b"][0] != "a" {
		t.Errorf("expected b preds [a], got %v", g.Preds["b"])
	}
}

func TestBuild_DeduplicatesEdges(t *testing.T) {
	g := Build([]models.Task{
		task("a"),
		task("b", "a", "a"),
	})
	if len(g.Preds["b"]) != 1 {
		t.Errorf("expected duplicate edge collapsed, got %v", g.Preds["b"])
	}
}

func TestCycles_Acyclic(t *testing.T) {
	g := Build([]models.Task{
		task("a"),
		task("b", "a"),
		task("c", "b"),
	})
	if cycles := g.Cycles(); len(cycles) != 0 {
		t.Errorf("expected no cycles, got %v", cycles)
	}
}

func TestCycles_Triangle(t *testing.T) {
	// a depends on c, b on a, c on b: a -> b -> c -> a
	g := Build([]models.Task{
		task("a", "c"),
		task("b", "a"),
		task("c", "b"),
	})

	cycles := g.Cycles()
	if len(cycles) != 1 {
		t.Fatalf("expected 1 cycle, got %d: %v", len(cycles), cycles)
	}

	members := make(map[string]bool)
	for _, id := range cycles[0] {
		members[id] = true
	}
	for _, id := range []string{"a", "b", "c"} {
		if !members[id] {
			t.Errorf("expected cycle to include %s, got %v", id, cycles[0])
		}
	}
	if cycles[0][0] != cycles[0][len(cycles[0])-1] {
		t.Errorf("expected cycle to return to its start, got %v", cycles[0])
	}
}

func TestCycles_DisconnectedComponents(t *testing.T) {
	// One clean chain and one two-node cycle in a separate component.
	g := Build([]models.Task{
		task("a"),
		task("b", "a"),
		task("x", "y"),
		task("y", "x"),
	})

	cycles := g.Cycles()
	if len(cycles) != 1 {
		t.Fatalf("expected 1 cycle, got %d: %v", len(cycles), cycles)
	}
	members := make(map[string]bool)
	for _, id := range cycles[0] {
		members[id] = true
	}
	if !members["x"] || !members["y"] {
		t.Errorf("expected cycle over x,y, got %v", cycles[0])
	}
	if members["a"] || members["b"] {
		t.Errorf("acyclic component leaked into cycle: %v", cycles[0])
	}
}

func TestCycles_SeparateCycles(t *testing.T) {
	g := Build([]models.Task{
		task("a", "b"),
		task("b", "a"),
		task("c", "d"),
		task("d", "c"),
	})
	if cycles := g.Cycles(); len(cycles) != 2 {
		t.Errorf("expected 2 cycles, got %d: %v", len(cycles), cycles)
	}
}
