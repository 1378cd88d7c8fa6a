// Package reporter renders computed schedules for terminal and JSON output.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/joshharrison/loomplan/internal/models"
	"github.com/joshharrison/loomplan/internal/ui"
)

// Reporter provides schedule display for one project's WBS.
type Reporter struct {
	ProjectID string
	Nodes     []models.WBSNode
	Stale     bool
}

// New creates a new Reporter over a node set.
func New(projectID string, nodes []models.WBSNode, stale bool) *Reporter {
	return &Reporter{ProjectID: projectID, Nodes: nodes, Stale: stale}
}

// ProjectFinish returns the latest early finish over all nodes.
func (r *Reporter) ProjectFinish() float64 {
	finish := 0.0
	for i := range r.Nodes {
		if r.Nodes[i].EarlyFinish > finish {
			finish = r.Nodes[i].EarlyFinish
		}
	}
	return finish
}

// CriticalPath returns the critical tasks in early-start order.
func (r *Reporter) CriticalPath() []string {
	var path []string
	for i := range r.Nodes {
		if r.Nodes[i].IsCritical {
			path = append(path, r.Nodes[i].TaskID)
		}
	}
	return path
}

// PrintSchedule writes a terminal-friendly schedule table.
func (r *Reporter) PrintSchedule(w io.Writer) {
	fmt.Fprintf(w, "%s %s %s\n", ui.BoldCyan("⏱ Schedule:"), ui.BoldMagenta(r.ProjectID), ui.StaleBadge(r.Stale))
	fmt.Fprintf(w, "%s %.1f days — critical path: %s\n\n",
		ui.Bold("Finish:"), r.ProjectFinish(),
		ui.BoldYellow(strings.Join(r.CriticalPath(), " → ")))

	fmt.Fprintf(w, "  %s  %-24s %8s %8s %8s %8s %8s %7s\n",
		" ", ui.BoldWhite("task"), "dur", "ES", "EF", "LS", "LF", "float")

	for i := range r.Nodes {
		n := &r.Nodes[i]
		title := n.Title
		if len(title) > 24 {
			title = title[:21] + "..."
		}
		row := fmt.Sprintf("  %s  %-24s %8.1f %8.1f %8.1f %8.1f %8.1f %7.1f",
			ui.CritIcon(n.IsCritical), title,
			n.DurationDays, n.EarlyStart, n.EarlyFinish, n.LateStart, n.LateFinish, n.TotalFloat)
		fmt.Fprintln(w, row)

		for _, m := range n.DependencyMetadata {
			if m.Status == models.StatusAccepted && m.Confidence >= 1 {
				continue
			}
			fmt.Fprintf(w, "        %s %s %s %s\n",
				ui.Dim("└─"), ui.Magenta(m.PredecessorID), ui.StatusBadge(string(m.Status)),
				ui.Dim(strings.Join(m.Reasons, ", ")))
		}
	}
	fmt.Fprintln(w)
}

// JSON returns the machine-readable schedule document.
func (r *Reporter) JSON() ([]byte, error) {
	doc := struct {
		ProjectID    string           `json:"project_id"`
		Stale        bool             `json:"stale"`
		Finish       float64          `json:"project_finish"`
		CriticalPath []string         `json:"critical_path"`
		Nodes        []models.WBSNode `json:"nodes"`
	}{
		ProjectID:    r.ProjectID,
		Stale:        r.Stale,
		Finish:       r.ProjectFinish(),
		CriticalPath: r.CriticalPath(),
		Nodes:        r.Nodes,
	}
	return json.MarshalIndent(doc, "", "  ")
}
