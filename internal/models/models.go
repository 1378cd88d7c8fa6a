// Package models defines the persisted entities of the scheduling core:
// tasks, WBS nodes, audit entries, and the per-project staleness flag.
package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DependencyStatus tracks the confirmation state of a predecessor edge.
type DependencyStatus string

const (
	StatusSuggested DependencyStatus = "suggested"
	StatusAccepted  DependencyStatus = "accepted"
	StatusRejected  DependencyStatus = "rejected"
)

// Task is a schedulable unit of work. The task store is owned externally;
// the scheduling core reads tasks and only ever writes the predecessor list.
type Task struct {
	ID                string     `gorm:"primaryKey" json:"id"`
	ProjectID         string     `gorm:"index;not null" json:"project_id"`
	Title             string     `json:"title"`
	DurationDays      float64    `json:"duration_days,omitempty"`
	StartDate         *time.Time `json:"start_date,omitempty"`
	EndDate           *time.Time `json:"end_date,omitempty"`
	Predecessors      []string   `gorm:"serializer:json" json:"predecessor_tasks"`
	Discipline        string     `gorm:"index" json:"discipline,omitempty"`
	AssignedTo        string     `json:"assigned_to,omitempty"`
	RequiredResources []string   `gorm:"serializer:json" json:"required_resources,omitempty"`
	CreatedBy         string     `json:"created_by,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (Task) TableName() string { return "tasks" }

// Duration returns the task's duration in days. Falls back to the start/end
// date span when no explicit duration is set, and never returns less than
// one day in that case. A task with no duration information at all is one day.
func (t *Task) Duration() float64 {
	if t.DurationDays > 0 {
		return t.DurationDays
	}
	if t.StartDate != nil && t.EndDate != nil && t.EndDate.After(*t.StartDate) {
		days := t.EndDate.Sub(*t.StartDate).Hours() / 24
		return math.Max(1, days)
	}
	return 1
}

// Resources returns the union of the assigned resource and required resources.
func (t *Task) Resources() []string {
	var out []string
	if t.AssignedTo != "" {
		out = append(out, t.AssignedTo)
	}
	for _, r := range t.RequiredResources {
		if r != "" && r != t.AssignedTo {
			out = append(out, r)
		}
	}
	return out
}

// DependencyMeta records the confirmation state of a single predecessor edge
// on a WBS node.
type DependencyMeta struct {
	PredecessorID string           `json:"predecessor_id"`
	Status        DependencyStatus `json:"status"`
	Confidence    float64          `json:"confidence,omitempty"`
	Reasons       []string         `json:"reasons,omitempty"`
}

// WBSNode is one scheduled entry of a project's work breakdown structure.
// Nodes are recreated wholesale on every regeneration; only task_id carries
// identity across regenerations.
type WBSNode struct {
	ID                 uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID          string           `gorm:"uniqueIndex:idx_wbs_project_task;not null" json:"project_id"`
	TaskID             string           `gorm:"uniqueIndex:idx_wbs_project_task;not null" json:"task_id"`
	Title              string           `json:"title"`
	DurationDays       float64          `json:"duration_days"`
	Predecessors       []string         `gorm:"serializer:json" json:"predecessors"`
	EarlyStart         float64          `json:"early_start"`
	EarlyFinish        float64          `json:"early_finish"`
	LateStart          float64          `json:"late_start"`
	LateFinish         float64          `json:"late_finish"`
	TotalFloat         float64          `json:"total_float"`
	IsCritical         bool             `json:"is_critical"`
	DependencyMetadata []DependencyMeta `gorm:"serializer:json" json:"dependency_metadata,omitempty"`
	CreatedBy          string           `json:"created_by,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
}

func (WBSNode) TableName() string { return "wbs_nodes" }

// MetaFor returns the metadata entry for the given predecessor, or nil.
func (n *WBSNode) MetaFor(predecessorID string) *DependencyMeta {
	for i := range n.DependencyMetadata {
		if n.DependencyMetadata[i].PredecessorID == predecessorID {
			return &n.DependencyMetadata[i]
		}
	}
	return nil
}

// WBSAuditEntry is an immutable snapshot of one regeneration. Exactly one
// entry is written per successful regeneration; entries are never updated
// or deleted.
type WBSAuditEntry struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID string         `gorm:"index;not null" json:"project_id"`
	Timestamp time.Time      `gorm:"not null" json:"timestamp"`
	Actor     string         `json:"actor"`
	NodeCount int            `json:"node_count"`
	Nodes     datatypes.JSON `json:"nodes"`
}

func (WBSAuditEntry) TableName() string { return "wbs_audit_entries" }

// NewAuditEntry builds an audit entry snapshotting the given node set.
func NewAuditEntry(projectID, actor string, nodes []WBSNode) (WBSAuditEntry, error) {
	raw, err := json.Marshal(nodes)
	if err != nil {
		return WBSAuditEntry{}, fmt.Errorf("marshal audit snapshot: %w", err)
	}
	return WBSAuditEntry{
		ID:        uuid.New(),
		ProjectID: projectID,
		Timestamp: time.Now().UTC(),
		Actor:     actor,
		NodeCount: len(nodes),
		Nodes:     datatypes.JSON(raw),
	}, nil
}

// Snapshot decodes the node set recorded in the audit entry.
func (e *WBSAuditEntry) Snapshot() ([]WBSNode, error) {
	var nodes []WBSNode
	if err := json.Unmarshal(e.Nodes, &nodes); err != nil {
		return nil, fmt.Errorf("parse audit snapshot: %w", err)
	}
	return nodes, nil
}

// ScheduleFlag marks a project whose stored schedule may be stale relative
// to the task store. Set when a task mutation lands, cleared by the next
// successful regeneration.
type ScheduleFlag struct {
	ProjectID string    `gorm:"primaryKey" json:"project_id"`
	Stale     bool      `json:"stale"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ScheduleFlag) TableName() string { return "schedule_flags" }
