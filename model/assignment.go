package model

import "fmt"

// Assignment pairs one detected occurrence with the mapping that will
// replace it. A slice of assignments is what interactive validation
// shows before anything is written.
type Assignment struct {
	Detection DetectedEntity `json:"detection"`
	Entity    *Entity        `json:"entity"`
	Pseudonym string         `json:"pseudonym"`
	Reused    bool           `json:"reused"`
}

// Label renders a one line description for validation prompts and logs,
// e.g. "PERSON  Marie Dubois -> Leia Organa (new)".
func (a Assignment) Label() string {
	state := "new"
	if a.Reused {
		state = "known"
	}
	return fmt.Sprintf("%-12s %s -> %s (%s)", a.Detection.Type, a.Detection.Text, a.Pseudonym, state)
}

// CountNew returns how many assignments introduce a mapping that did not
// exist before this run. Multiple occurrences of the same entity count once.
func CountNew(assignments []Assignment) int {
	seen := map[string]bool{}
	count := 0
	for _, a := range assignments {
		if a.Reused || a.Entity == nil {
			continue
		}
		key := string(a.Entity.Type) + "|" + a.Entity.FullName
		if !seen[key] {
			seen[key] = true
			count++
		}
	}
	return count
}
