package cpm

// Result holds the complete critical path analysis for one project.
type Result struct {
	Tasks         map[string]*TaskSchedule
	CriticalPath  []string // ordered task ids from a project start to the latest finisher
	ProjectFinish float64  // max early finish over all tasks, in days
	TopoOrder     []string
}

// TaskSchedule holds the computed schedule metrics for a single task.
// All offsets are fractional days from the project start.
type TaskSchedule struct {
	TaskID      string
	EarlyStart  float64
	EarlyFinish float64
	LateStart   float64
	LateFinish  float64
	TotalFloat  float64
	IsCritical  bool
}
