// Package store persists tasks, WBS nodes, audit entries, and schedule
// staleness flags behind gorm. All multi-document writes go through WithTx,
// which guarantees commit-or-rollback on every exit path.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/joshharrison/loomplan/internal/errs"
	"github.com/joshharrison/loomplan/internal/models"
)

// Store wraps a gorm handle. Inside WithTx the handle is the transaction,
// so every accessor works identically in and out of a transaction scope.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	if err := db.AutoMigrate(
		&models.Task{},
		&models.WBSNode{},
		&models.WBSAuditEntry{},
		&models.ScheduleFlag{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// WithTx runs fn inside a transaction. fn receives a Store bound to the
// transaction; returning an error (or panicking) rolls everything back,
// returning nil commits. At most one commit per call.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// --- Tasks ---

// TasksByProject returns a project's tasks in creation order, which the
// suggestion engine and CPM tie-breaks treat as the stable input order.
func (s *Store) TasksByProject(ctx context.Context, projectID string) ([]models.Task, error) {
	var tasks []models.Task
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at, id").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("load tasks for project %s: %w", projectID, err)
	}
	return tasks, nil
}

// TaskByID returns a single task, or a NotFoundError.
func (s *Store) TaskByID(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).First(&task, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("task", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", id, err)
	}
	return &task, nil
}

// CreateTask inserts a task. A duplicate id surfaces as a ConflictError.
func (s *Store) CreateTask(ctx context.Context, task *models.Task) error {
	err := s.db.WithContext(ctx).Create(task).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errs.Conflict("task", task.ID)
	}
	if err != nil {
		return fmt.Errorf("create task %s: %w", task.ID, err)
	}
	return nil
}

// UpsertTask inserts or fully replaces a task by id.
func (s *Store) UpsertTask(ctx context.Context, task *models.Task) error {
	if err := s.db.WithContext(ctx).Save(task).Error; err != nil {
		return fmt.Errorf("save task %s: %w", task.ID, err)
	}
	return nil
}

// UpdatePredecessors replaces a task's predecessor list. This is the only
// task-store field the scheduling core ever writes.
func (s *Store) UpdatePredecessors(ctx context.Context, taskID string, preds []string) error {
	res := s.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("id = ?", taskID).
		Update("predecessors", preds)
	if res.Error != nil {
		return fmt.Errorf("update predecessors for %s: %w", taskID, res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("task", taskID)
	}
	return nil
}

// DeleteTask removes a task.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.Task{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete task %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("task", id)
	}
	return nil
}

// --- WBS nodes ---

// NodesByProject returns the current WBS for a project in early-start order.
func (s *Store) NodesByProject(ctx context.Context, projectID string) ([]models.WBSNode, error) {
	var nodes []models.WBSNode
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("early_start, task_id").
		Find(&nodes).Error
	if err != nil {
		return nil, fmt.Errorf("load WBS nodes for project %s: %w", projectID, err)
	}
	return nodes, nil
}

// ReplaceWBS deletes the project's existing nodes, inserts the new set, and
// appends the audit entry. Callers must run it inside WithTx — a partial
// replace must never be observable.
func (s *Store) ReplaceWBS(ctx context.Context, projectID string, nodes []models.WBSNode, audit models.WBSAuditEntry) error {
	db := s.db.WithContext(ctx)

	if err := db.Delete(&models.WBSNode{}, "project_id = ?", projectID).Error; err != nil {
		return fmt.Errorf("delete WBS nodes for project %s: %w", projectID, err)
	}
	if len(nodes) > 0 {
		if err := db.Create(&nodes).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errs.Conflict("wbs node set", projectID)
			}
			return fmt.Errorf("insert WBS nodes for project %s: %w", projectID, err)
		}
	}
	if err := db.Create(&audit).Error; err != nil {
		return fmt.Errorf("insert audit entry for project %s: %w", projectID, err)
	}
	return nil
}

// UpdateNodeMetadata replaces a node's dependency metadata in place.
func (s *Store) UpdateNodeMetadata(ctx context.Context, nodeID uuid.UUID, meta []models.DependencyMeta) error {
	res := s.db.WithContext(ctx).
		Model(&models.WBSNode{}).
		Where("id = ?", nodeID).
		Update("dependency_metadata", meta)
	if res.Error != nil {
		return fmt.Errorf("update metadata for node %s: %w", nodeID, res.Error)
	}
	return nil
}

// --- Audit trail ---

// AuditsByProject returns a project's audit entries, newest first.
func (s *Store) AuditsByProject(ctx context.Context, projectID string) ([]models.WBSAuditEntry, error) {
	var entries []models.WBSAuditEntry
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("timestamp desc").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("load audit entries for project %s: %w", projectID, err)
	}
	return entries, nil
}

// --- Staleness flag ---

// MarkStale flags a project's schedule as possibly out of date.
func (s *Store) MarkStale(ctx context.Context, projectID string) error {
	flag := models.ScheduleFlag{ProjectID: projectID, Stale: true, UpdatedAt: time.Now().UTC()}
	if err := s.db.WithContext(ctx).Save(&flag).Error; err != nil {
		return fmt.Errorf("mark project %s stale: %w", projectID, err)
	}
	return nil
}

// ClearStale clears a project's staleness flag.
func (s *Store) ClearStale(ctx context.Context, projectID string) error {
	flag := models.ScheduleFlag{ProjectID: projectID, Stale: false, UpdatedAt: time.Now().UTC()}
	if err := s.db.WithContext(ctx).Save(&flag).Error; err != nil {
		return fmt.Errorf("clear stale flag for project %s: %w", projectID, err)
	}
	return nil
}

// IsStale reports whether a project's schedule is flagged stale. An absent
// flag reads as fresh.
func (s *Store) IsStale(ctx context.Context, projectID string) (bool, error) {
	var flag models.ScheduleFlag
	err := s.db.WithContext(ctx).First(&flag, "project_id = ?", projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load stale flag for project %s: %w", projectID, err)
	}
	return flag.Stale, nil
}
