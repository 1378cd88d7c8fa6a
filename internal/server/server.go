// Package server exposes the scheduling core over HTTP. Actor identity is
// taken from trusted upstream headers (X-Actor, X-Disciplines,
// X-Capabilities); authentication itself is an external collaborator.
package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/joshharrison/loomplan/internal/auth"
	"github.com/joshharrison/loomplan/internal/confirm"
	"github.com/joshharrison/loomplan/internal/errs"
	"github.com/joshharrison/loomplan/internal/export"
	"github.com/joshharrison/loomplan/internal/models"
	"github.com/joshharrison/loomplan/internal/regen"
	"github.com/joshharrison/loomplan/internal/store"
	"github.com/joshharrison/loomplan/internal/suggest"
)

// Server wires the HTTP routes to the scheduling services.
type Server struct {
	store    *store.Store
	regen    *regen.Service
	workflow *confirm.Workflow
	logger   *log.Logger
}

// New creates a Server.
func New(st *store.Store, rg *regen.Service, wf *confirm.Workflow, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{store: st, regen: rg, workflow: wf, logger: logger}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /projects/{id}/suggestions", s.handleSuggestions)
	mux.HandleFunc("POST /projects/{id}/generate", s.handleGenerate)
	mux.HandleFunc("GET /projects/{id}/wbs", s.handleWBS)
	mux.HandleFunc("GET /projects/{id}/export", s.handleExport)
	mux.HandleFunc("POST /confirmations", s.handleConfirmations)
	return mux
}

// actorFrom resolves the calling actor from the trusted proxy headers.
func actorFrom(r *http.Request) auth.Actor {
	return auth.Actor{
		ID:           r.Header.Get("X-Actor"),
		Disciplines:  splitHeader(r.Header.Get("X-Disciplines")),
		Capabilities: splitHeader(r.Header.Get("X-Capabilities")),
	}
}

func splitHeader(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	actor := actorFrom(r)

	tasks, err := s.store.TasksByProject(r.Context(), projectID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(tasks) == 0 {
		s.writeError(w, errs.NotFound("project", projectID))
		return
	}
	if !actor.CanReadProject(disciplinesOf(tasks)) {
		s.writeError(w, errs.Denied(actor.ID, "read project "+projectID))
		return
	}

	facts := make([]suggest.TaskFacts, len(tasks))
	for i := range tasks {
		facts[i] = suggest.Facts(tasks[i])
	}
	suggestions := suggest.Suggest(facts)
	if suggestions == nil {
		suggestions = []suggest.Suggestion{}
	}
	s.writeJSON(w, http.StatusOK, suggestions)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	actor := actorFrom(r)

	nodes, err := s.regen.Regenerate(r.Context(), projectID, actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) handleWBS(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	actor := actorFrom(r)

	tasks, err := s.store.TasksByProject(r.Context(), projectID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(tasks) == 0 {
		s.writeError(w, errs.NotFound("project", projectID))
		return
	}
	if !actor.CanReadProject(disciplinesOf(tasks)) {
		s.writeError(w, errs.Denied(actor.ID, "read project "+projectID))
		return
	}

	nodes, err := s.store.NodesByProject(r.Context(), projectID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	stale, err := s.store.IsStale(r.Context(), projectID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"project_id": projectID,
		"stale":      stale,
		"nodes":      nodes,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	actor := actorFrom(r)

	tasks, err := s.store.TasksByProject(r.Context(), projectID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(tasks) == 0 {
		s.writeError(w, errs.NotFound("project", projectID))
		return
	}
	if !actor.CanReadProject(disciplinesOf(tasks)) {
		s.writeError(w, errs.Denied(actor.ID, "read project "+projectID))
		return
	}

	nodes, err := s.store.NodesByProject(r.Context(), projectID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	opts := export.Options{
		AnchorDate:  r.URL.Query().Get("anchor_date"),
		WorkingDays: splitHeader(r.URL.Query().Get("working_days")),
	}
	doc, err := export.Build(projectID, nodes, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleConfirmations(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	var body struct {
		Decisions []confirm.Decision `json:"decisions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, errs.Invalid("malformed confirmation payload"))
		return
	}

	if err := s.workflow.Apply(r.Context(), body.Decisions, actor); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// disciplinesOf collects the distinct discipline tags across a project's
// tasks, for the read-scope check.
func disciplinesOf(tasks []models.Task) []string {
	seen := make(map[string]bool, len(tasks))
	var out []string
	for i := range tasks {
		d := tasks[i].Discipline
		if d != "" && !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}
