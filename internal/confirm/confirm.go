// Package confirm applies human decisions on suggested dependencies:
// accepted edges are added to the stored predecessor list, rejected ones
// removed, and the affected projects are regenerated inside the same
// transaction so no half-applied state is ever visible.
package confirm

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/joshharrison/loomplan/internal/auth"
	"github.com/joshharrison/loomplan/internal/errs"
	"github.com/joshharrison/loomplan/internal/models"
	"github.com/joshharrison/loomplan/internal/regen"
	"github.com/joshharrison/loomplan/internal/store"
)

// Decision is one accept/reject verdict on a candidate edge from_task ->
// to_task.
type Decision struct {
	FromTask string `json:"from_task"`
	ToTask   string `json:"to_task"`
	Accept   bool   `json:"accept"`
}

// Workflow batches decisions and triggers regeneration.
type Workflow struct {
	store  *store.Store
	regen  *regen.Service
	logger *log.Logger
}

// New creates a confirmation workflow.
func New(st *store.Store, rg *regen.Service, logger *log.Logger) *Workflow {
	if logger == nil {
		logger = log.Default()
	}
	return &Workflow{store: st, regen: rg, logger: logger}
}

// Apply processes a batch of decisions. Decisions are grouped by the target
// task's project; each project's mutations and its regeneration commit (or
// roll back) together under that project's regeneration lock. The actor
// must be discipline-scoped to every task it touches.
func (w *Workflow) Apply(ctx context.Context, decisions []Decision, actor auth.Actor) error {
	if len(decisions) == 0 {
		return nil
	}

	// Resolve targets up front: validation errors block the whole batch
	// before any write.
	byProject := make(map[string][]Decision)
	var projectOrder []string
	for _, d := range decisions {
		if d.FromTask == d.ToTask {
			return errs.Invalid("task %s cannot depend on itself", d.ToTask)
		}
		target, err := w.store.TaskByID(ctx, d.ToTask)
		if err != nil {
			return err
		}
		if !actor.InDiscipline(target.Discipline) {
			return errs.Denied(actor.ID, "confirm dependencies in discipline "+target.Discipline)
		}
		if _, err := w.store.TaskByID(ctx, d.FromTask); err != nil {
			return err
		}
		if _, seen := byProject[target.ProjectID]; !seen {
			projectOrder = append(projectOrder, target.ProjectID)
		}
		byProject[target.ProjectID] = append(byProject[target.ProjectID], d)
	}

	for _, projectID := range projectOrder {
		if err := w.applyProject(ctx, projectID, byProject[projectID], actor); err != nil {
			return err
		}
	}
	return nil
}

// applyProject mutates one project's edges and regenerates its schedule in
// a single transaction.
func (w *Workflow) applyProject(ctx context.Context, projectID string, decisions []Decision, actor auth.Actor) error {
	unlock := w.regen.LockProject(projectID)
	defer unlock()

	err := w.store.WithTx(ctx, func(tx *store.Store) error {
		for _, d := range decisions {
			if err := applyDecision(ctx, tx, d); err != nil {
				return err
			}
		}
		_, err := w.regen.RegenerateTx(ctx, tx, projectID, actor)
		return err
	})
	if err != nil {
		return err
	}

	w.logger.Info("dependency decisions applied", "project", projectID,
		"decisions", len(decisions), "actor", actor.ID)
	return nil
}

// applyDecision mutates the target task's predecessor list and stamps the
// matching metadata entry on its current WBS node. The node stamp is
// best-effort ahead of the regeneration that follows in the same
// transaction — carry-forward picks the status up from there.
func applyDecision(ctx context.Context, tx *store.Store, d Decision) error {
	target, err := tx.TaskByID(ctx, d.ToTask)
	if err != nil {
		return err
	}

	preds := target.Predecessors
	has := false
	for _, p := range preds {
		if p == d.FromTask {
			has = true
			break
		}
	}

	status := models.StatusRejected
	if d.Accept {
		status = models.StatusAccepted
		if !has {
			preds = append(preds, d.FromTask)
		}
	} else if has {
		kept := preds[:0]
		for _, p := range preds {
			if p != d.FromTask {
				kept = append(kept, p)
			}
		}
		preds = kept
	}

	if err := tx.UpdatePredecessors(ctx, d.ToTask, preds); err != nil {
		return err
	}
	return stampNodeMeta(ctx, tx, target.ProjectID, d.ToTask, d.FromTask, status)
}

// stampNodeMeta sets the status of the (task, predecessor) metadata entry
// on the task's current WBS node, creating the entry if the node exists but
// has never seen this edge. A project with no WBS yet is fine — the
// regeneration in the same transaction will create the metadata.
func stampNodeMeta(ctx context.Context, tx *store.Store, projectID, taskID, predecessorID string, status models.DependencyStatus) error {
	nodes, err := tx.NodesByProject(ctx, projectID)
	if err != nil {
		return err
	}
	for i := range nodes {
		if nodes[i].TaskID != taskID {
			continue
		}
		if m := nodes[i].MetaFor(predecessorID); m != nil {
			m.Status = status
		} else {
			nodes[i].DependencyMetadata = append(nodes[i].DependencyMetadata, models.DependencyMeta{
				PredecessorID: predecessorID,
				Status:        status,
			})
		}
		return tx.UpdateNodeMetadata(ctx, nodes[i].ID, nodes[i].DependencyMetadata)
	}
	return nil
}
