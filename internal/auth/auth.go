// Package auth models the calling actor and the scoping rules the
// scheduling core enforces: the scheduler capability gates direct
// regeneration, and discipline membership gates reads and confirmations.
// Authentication itself is an external collaborator — actors arrive
// pre-resolved.
package auth

// CapScheduler allows direct invocation of WBS regeneration.
const CapScheduler = "scheduler"

// System is the internal actor used when regeneration runs as a side
// effect of a task mutation. It bypasses the scheduler gate because the
// mutation was already scoped to the task's own project.
var System = Actor{ID: "system", Capabilities: []string{CapScheduler}}

// Actor is a resolved caller identity.
type Actor struct {
	ID           string   `json:"id"`
	Disciplines  []string `json:"disciplines,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// HasCapability reports whether the actor carries the named capability.
func (a Actor) HasCapability(cap string) bool {
	for _, c := range a.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// InDiscipline reports whether the actor may touch the given discipline.
// An actor with no discipline list is unrestricted; an empty discipline
// tag on the data is visible to everyone.
func (a Actor) InDiscipline(discipline string) bool {
	if len(a.Disciplines) == 0 || discipline == "" {
		return true
	}
	for _, d := range a.Disciplines {
		if d == discipline {
			return true
		}
	}
	return false
}

// CanReadProject reports whether the actor may read a project whose tasks
// span the given disciplines. Schedulers read everything; otherwise at
// least one discipline must be in scope.
func (a Actor) CanReadProject(disciplines []string) bool {
	if a.HasCapability(CapScheduler) || len(a.Disciplines) == 0 {
		return true
	}
	if len(disciplines) == 0 {
		return true
	}
	for _, d := range disciplines {
		if a.InDiscipline(d) {
			return true
		}
	}
	return false
}
