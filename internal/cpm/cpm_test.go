package cpm

import (
	"math"
	"testing"

	"github.com/joshharrison/loomplan/internal/graph"
	"github.com/joshharrison/loomplan/internal/models"
)

func buildGraph(t *testing.T, tasks []models.Task) *graph.DepGraph {
	t.Helper()
	g := graph.Build(tasks)
	if cycles := g.Cycles(); len(cycles) != 0 {
		t.Fatalf("unexpected cycles in fixture: %v", cycles)
	}
	return g
}

func durationsOf(tasks []models.Task) map[string]float64 {
	d := make(map[string]float64, len(tasks))
	for i := range tasks {
		d[tasks[i].ID] = tasks[i].Duration()
	}
	return d
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func assertSchedule(t *testing.T, ts *TaskSchedule, es, ef, ls, lf, totalFloat float64, critical bool) {
	t.Helper()
	if !approx(ts.EarlyStart, es) {
		t.Errorf("task %s: expected ES=%v, got %v", ts.TaskID, es, ts.EarlyStart)
	}
	if !approx(ts.EarlyFinish, ef) {
		t.Errorf("task %s: expected EF=%v, got %v", ts.TaskID, ef, ts.EarlyFinish)
	}
	if !approx(ts.LateStart, ls) {
		t.Errorf("task %s: expected LS=%v, got %v", ts.TaskID, ls, ts.LateStart)
	}
	if !approx(ts.LateFinish, lf) {
		t.Errorf("task %s: expected LF=%v, got %v", ts.TaskID, lf, ts.LateFinish)
	}
	if !approx(ts.TotalFloat, totalFloat) {
		t.Errorf("task %s: expected float=%v, got %v", ts.TaskID, totalFloat, ts.TotalFloat)
	}
	if ts.IsCritical != critical {
		t.Errorf("task %s: expected critical=%v, got %v", ts.TaskID, critical, ts.IsCritical)
	}
}

func TestAnalyze_ThreeTaskFixture(t *testing.T) {
	// A(2), B(3, after A), C(1, independent).
	tasks := []models.Task{
		{ID: "A", DurationDays: 2},
		{ID: "B", DurationDays: 3, Predecessors: []string{"A"}},
		{ID: "C", DurationDays: 1},
	}
	g := buildGraph(t, tasks)

	result, err := Analyze(g, durationsOf(tasks))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !approx(result.ProjectFinish, 5) {
		t.Errorf("expected project finish 5, got %v", result.ProjectFinish)
	}
	assertSchedule(t, result.Tasks["A"], 0, 2, 0, 2, 0, true)
	assertSchedule(t, result.Tasks["B"], 2, 5, 2, 5, 0, true)
	assertSchedule(t, result.Tasks["C"], 0, 1, 4, 5, 4, false)

	if len(result.CriticalPath) != 2 || result.CriticalPath[0] != "A" || result.CriticalPath[1] != "B" {
		t.Errorf("expected critical path [A B], got %v", result.CriticalPath)
	}
}

func TestAnalyze_DiamondWithDurations(t *testing.T) {
	// a(5) -> b(1) -> d(1)
	// a(5) -> c(10) -> d(1)
	tasks := []models.Task{
		{ID: "a", DurationDays: 5},
		{ID: "b", DurationDays: 1, Predecessors: []string{"a"}},
		{ID: "c", DurationDays: 10, Predecessors: []string{"a"}},
		{ID: "d", DurationDays: 1, Predecessors: []string{"b", "c"}},
	}
	g := buildGraph(t, tasks)

	result, err := Analyze(g, durationsOf(tasks))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !approx(result.ProjectFinish, 16) {
		t.Errorf("expected project finish 16, got %v", result.ProjectFinish)
	}
	if result.Tasks["b"].IsCritical {
		t.Error("expected task b to NOT be critical")
	}
	if !approx(result.Tasks["b"].TotalFloat, 9) {
		t.Errorf("expected b float=9, got %v", result.Tasks["b"].TotalFloat)
	}

	want := []string{"a", "c", "d"}
	if len(result.CriticalPath) != len(want) {
		t.Fatalf("expected critical path %v, got %v", want, result.CriticalPath)
	}
	for i, id := range want {
		if result.CriticalPath[i] != id {
			t.Errorf("critical path[%d]: expected %s, got %s", i, id, result.CriticalPath[i])
		}
	}
}

func TestAnalyze_FractionalDurations(t *testing.T) {
	tasks := []models.Task{
		{ID: "a", DurationDays: 1.5},
		{ID: "b", DurationDays: 2.25, Predecessors: []string{"a"}},
	}
	g := buildGraph(t, tasks)

	result, err := Analyze(g, durationsOf(tasks))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertSchedule(t, result.Tasks["b"], 1.5, 3.75, 1.5, 3.75, 0, true)
}

func TestAnalyze_Invariants(t *testing.T) {
	tasks := []models.Task{
		{ID: "t1", DurationDays: 3},
		{ID: "t2", DurationDays: 2, Predecessors: []string{"t1"}},
		{ID: "t3", DurationDays: 4, Predecessors: []string{"t1"}},
		{ID: "t4", DurationDays: 1, Predecessors: []string{"t2", "t3"}},
		{ID: "t5", DurationDays: 2},
	}
	g := buildGraph(t, tasks)
	durations := durationsOf(tasks)

	result, err := Analyze(g, durations)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for id, ts := range result.Tasks {
		// EF = ES + duration, LS = LF - duration, float = LS - ES >= 0.
		if !approx(ts.EarlyFinish, ts.EarlyStart+durations[id]) {
			t.Errorf("task %s: EF != ES + duration", id)
		}
		if !approx(ts.LateStart, ts.LateFinish-durations[id]) {
			t.Errorf("task %s: LS != LF - duration", id)
		}
		if ts.TotalFloat < -1e-9 {
			t.Errorf("task %s: negative float %v", id, ts.TotalFloat)
		}
	}

	// Every sink finishes late exactly at the project finish.
	for _, id := range g.Sinks {
		if !approx(result.Tasks[id].LateFinish, result.ProjectFinish) {
			t.Errorf("sink %s: LF=%v, want project finish %v", id, result.Tasks[id].LateFinish, result.ProjectFinish)
		}
	}

	// Every task on the critical path has zero float.
	for _, id := range result.CriticalPath {
		if !approx(result.Tasks[id].TotalFloat, 0) {
			t.Errorf("critical task %s has float %v", id, result.Tasks[id].TotalFloat)
		}
	}
}

func TestAnalyze_SingleTask(t *testing.T) {
	tasks := []models.Task{{ID: "solo", DurationDays: 2}}
	g := buildGraph(t, tasks)

	result, err := Analyze(g, durationsOf(tasks))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.CriticalPath) != 1 || result.CriticalPath[0] != "solo" {
		t.Errorf("expected critical path [solo], got %v", result.CriticalPath)
	}
	if !approx(result.ProjectFinish, 2) {
		t.Errorf("expected project finish 2, got %v", result.ProjectFinish)
	}
}

func TestAnalyze_DefaultDurationIsOneDay(t *testing.T) {
	g := buildGraph(t, []models.Task{{ID: "a"}, {ID: "b", Predecessors: []string{"a"}}})

	result, err := Analyze(g, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approx(result.ProjectFinish, 2) {
		t.Errorf("expected project finish 2 with default durations, got %v", result.ProjectFinish)
	}
}

func TestAnalyze_CriticalPathTieBreaksOnFirstPredecessor(t *testing.T) {
	// Both b and c give d the same longest path; the walk must pick b,
	// the first predecessor in stored order.
	tasks := []models.Task{
		{ID: "a", DurationDays: 1},
		{ID: "b", DurationDays: 2, Predecessors: []string{"a"}},
		{ID: "c", DurationDays: 2, Predecessors: []string{"a"}},
		{ID: "d", DurationDays: 1, Predecessors: []string{"b", "c"}},
	}
	g := buildGraph(t, tasks)

	result, err := Analyze(g, durationsOf(tasks))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a", "b", "d"}
	for i, id := range want {
		if result.CriticalPath[i] != id {
			t.Fatalf("expected critical path %v, got %v", want, result.CriticalPath)
		}
	}
}
