// Package ingest loads tasks from exported JSON documents. Third-party
// exports are messy, so parsing goes through gjson and tolerates missing
// fields, either a bare array or a {"tasks": [...]} wrapper, and date-only
// or RFC 3339 timestamps.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"

	"github.com/joshharrison/loomplan/internal/models"
	"github.com/joshharrison/loomplan/internal/regen"
	"github.com/joshharrison/loomplan/internal/store"
)

// ParseTasks extracts task records from an exported JSON document.
// defaultProject is used for records that carry no project_id of their own.
func ParseTasks(data []byte, defaultProject string) ([]models.Task, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("not valid JSON")
	}

	root := gjson.ParseBytes(data)
	list := root
	if root.IsObject() {
		list = root.Get("tasks")
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("no task array found (expected a JSON array or a \"tasks\" key)")
	}

	var tasks []models.Task
	for _, item := range list.Array() {
		id := item.Get("id").String()
		if id == "" {
			continue
		}
		t := models.Task{
			ID:           id,
			ProjectID:    firstString(item, "project_id", "project"),
			Title:        firstString(item, "title", "name"),
			DurationDays: item.Get("duration_days").Float(),
			Discipline:   item.Get("discipline").String(),
			AssignedTo:   firstString(item, "assigned_to", "assignee"),
			CreatedBy:    item.Get("created_by").String(),
			StartDate:    parseDate(firstString(item, "start_date", "start")),
			EndDate:      parseDate(firstString(item, "end_date", "end")),
		}
		if t.ProjectID == "" {
			t.ProjectID = defaultProject
		}
		for _, p := range item.Get("predecessor_tasks").Array() {
			if pid := p.String(); pid != "" && pid != id {
				t.Predecessors = append(t.Predecessors, pid)
			}
		}
		for _, r := range item.Get("required_resources").Array() {
			if res := r.String(); res != "" {
				t.RequiredResources = append(t.RequiredResources, res)
			}
		}
		tasks = append(tasks, t)
	}

	if len(tasks) == 0 {
		return nil, fmt.Errorf("no tasks with ids found in document")
	}
	return tasks, nil
}

func firstString(item gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := item.Get(k); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// Apply persists the tasks and triggers regeneration for every affected
// project. Each project's task writes commit together with its stale flag;
// the regeneration that follows is the usual side-effect path — its failure
// is logged, never returned, and the flag stays set.
func Apply(ctx context.Context, st *store.Store, rg *regen.Service, tasks []models.Task, logger *log.Logger) ([]string, error) {
	if logger == nil {
		logger = log.Default()
	}

	byProject := make(map[string][]models.Task)
	var order []string
	for _, t := range tasks {
		if t.ProjectID == "" {
			return nil, fmt.Errorf("task %s has no project id", t.ID)
		}
		if _, seen := byProject[t.ProjectID]; !seen {
			order = append(order, t.ProjectID)
		}
		byProject[t.ProjectID] = append(byProject[t.ProjectID], t)
	}

	for _, projectID := range order {
		batch := byProject[projectID]
		err := st.WithTx(ctx, func(tx *store.Store) error {
			for i := range batch {
				if err := tx.UpsertTask(ctx, &batch[i]); err != nil {
					return err
				}
			}
			return tx.MarkStale(ctx, projectID)
		})
		if err != nil {
			return nil, fmt.Errorf("import tasks for project %s: %w", projectID, err)
		}
		logger.Info("tasks imported", "project", projectID, "tasks", len(batch))
		rg.AfterMutation(ctx, projectID)
	}

	return order, nil
}
