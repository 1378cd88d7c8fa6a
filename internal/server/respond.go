package server

import (
	"encoding/json"
	"net/http"

	"github.com/joshharrison/loomplan/internal/errs"
)

// errorBody is the JSON error payload. Cycle errors additionally carry the
// offending task ids so callers can show which edges to break.
type errorBody struct {
	Error string   `json:"error"`
	Cycle []string `json:"cycle,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errs.HTTPStatus(err)
	body := errorBody{Error: err.Error()}
	if cycleErr := errs.AsCycle(err); cycleErr != nil {
		body.Cycle = cycleErr.Members()
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
		// Storage-layer details stay out of responses.
		body.Error = "internal error"
	}
	s.writeJSON(w, status, body)
}
