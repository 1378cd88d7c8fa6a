// Package regen produces a consistent, fully-replaced WBS for a project
// whenever its tasks change: cycle gate, CPM analysis, dependency-metadata
// carry-forward, then a transactional node replace with an audit snapshot.
package regen

import (
	"context"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/joshharrison/loomplan/internal/auth"
	"github.com/joshharrison/loomplan/internal/cpm"
	"github.com/joshharrison/loomplan/internal/errs"
	"github.com/joshharrison/loomplan/internal/graph"
	"github.com/joshharrison/loomplan/internal/models"
	"github.com/joshharrison/loomplan/internal/store"
)

// Service regenerates project schedules. Regenerations for the same project
// are serialized through a per-project lock; different projects run freely
// in parallel.
type Service struct {
	store  *store.Store
	logger *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a regeneration service.
func New(st *store.Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		store:  st,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// LockProject acquires the project's regeneration lock and returns the
// unlock function. Exposed so the confirmation workflow can hold the lock
// across its mutate-then-regenerate transaction.
func (s *Service) LockProject(projectID string) func() {
	s.mu.Lock()
	lock, ok := s.locks[projectID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[projectID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Regenerate recomputes and replaces the project's WBS. Only actors with
// the scheduler capability may call it directly; mutation-triggered
// regeneration goes through AfterMutation with the system actor instead.
func (s *Service) Regenerate(ctx context.Context, projectID string, actor auth.Actor) ([]models.WBSNode, error) {
	if !actor.HasCapability(auth.CapScheduler) {
		return nil, errs.Denied(actor.ID, "regenerate schedules")
	}

	unlock := s.LockProject(projectID)
	defer unlock()

	var nodes []models.WBSNode
	err := s.store.WithTx(ctx, func(tx *store.Store) error {
		var txErr error
		nodes, txErr = s.RegenerateTx(ctx, tx, projectID, actor)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("schedule regenerated", "project", projectID, "actor", actor.ID, "nodes", len(nodes))
	return nodes, nil
}

// AfterMutation regenerates a project's schedule as a side effect of a task
// mutation. The mutation itself has already committed with the stale flag
// set; a regeneration failure here is logged and leaves the flag standing
// rather than failing the caller.
func (s *Service) AfterMutation(ctx context.Context, projectID string) {
	if _, err := s.Regenerate(ctx, projectID, auth.System); err != nil {
		s.logger.Error("post-mutation regeneration failed, schedule left stale",
			"project", projectID, "err", err)
	}
}

// RegenerateTx runs the regeneration steps against an open transaction.
// Callers are responsible for holding the project lock.
func (s *Service) RegenerateTx(ctx context.Context, tx *store.Store, projectID string, actor auth.Actor) ([]models.WBSNode, error) {
	tasks, err := tx.TasksByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, errs.NotFound("project", projectID)
	}

	g := graph.Build(tasks)
	if cycles := g.Cycles(); len(cycles) > 0 {
		s.logger.Warn("regeneration rejected, dependency cycles found",
			"project", projectID, "cycles", len(cycles))
		return nil, &errs.CycleError{ProjectID: projectID, Cycles: cycles}
	}

	durations := make(map[string]float64, len(tasks))
	for i := range tasks {
		durations[tasks[i].ID] = tasks[i].Duration()
	}

	result, err := cpm.Analyze(g, durations)
	if err != nil {
		return nil, err
	}

	// Prior metadata by (task, predecessor), so confirmation decisions
	// survive the wholesale node replace.
	prior, err := tx.NodesByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	priorMeta := make(map[string]map[string]models.DependencyMeta, len(prior))
	for i := range prior {
		byPred := make(map[string]models.DependencyMeta, len(prior[i].DependencyMetadata))
		for _, m := range prior[i].DependencyMetadata {
			byPred[m.PredecessorID] = m
		}
		priorMeta[prior[i].TaskID] = byPred
	}

	nodes := make([]models.WBSNode, 0, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		ts := result.Tasks[t.ID]
		nodes = append(nodes, models.WBSNode{
			ID:                 uuid.New(),
			ProjectID:          projectID,
			TaskID:             t.ID,
			Title:              t.Title,
			DurationDays:       t.Duration(),
			Predecessors:       g.Preds[t.ID],
			EarlyStart:         ts.EarlyStart,
			EarlyFinish:        ts.EarlyFinish,
			LateStart:          ts.LateStart,
			LateFinish:         ts.LateFinish,
			TotalFloat:         ts.TotalFloat,
			IsCritical:         ts.IsCritical,
			DependencyMetadata: carryForward(g.Preds[t.ID], priorMeta[t.ID]),
			CreatedBy:          actor.ID,
		})
	}

	audit, err := models.NewAuditEntry(projectID, actor.ID, nodes)
	if err != nil {
		return nil, err
	}
	if err := tx.ReplaceWBS(ctx, projectID, nodes, audit); err != nil {
		return nil, err
	}
	if err := tx.ClearStale(ctx, projectID); err != nil {
		return nil, err
	}

	return nodes, nil
}

// carryForward builds a node's dependency metadata. Edges that existed
// before keep their status; newly appearing edges default to accepted,
// since they came from a stored predecessor list rather than a suggestion.
// Rejected entries for edges no longer present are retained so a rejected
// suggestion is not re-offered on the next regeneration.
func carryForward(preds []string, prior map[string]models.DependencyMeta) []models.DependencyMeta {
	var meta []models.DependencyMeta
	current := make(map[string]bool, len(preds))

	for _, pred := range preds {
		current[pred] = true
		if m, ok := prior[pred]; ok {
			meta = append(meta, m)
			continue
		}
		meta = append(meta, models.DependencyMeta{
			PredecessorID: pred,
			Status:        models.StatusAccepted,
			Confidence:    1,
		})
	}

	// Retained rejections come after the live edges, sorted by predecessor
	// id so repeated regenerations produce identical metadata.
	var rejected []string
	for pred, m := range prior {
		if !current[pred] && m.Status == models.StatusRejected {
			rejected = append(rejected, pred)
		}
	}
	sort.Strings(rejected)
	for _, pred := range rejected {
		meta = append(meta, prior[pred])
	}
	return meta
}
