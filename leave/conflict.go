/*
conflict.go - UK agent overlap detection

PURPOSE:
  Detects scheduling conflicts among the protected "UK agent" subset of
  staff. Simultaneous absence of two UK agents is operationally
  unacceptable, so any proposed range is checked against their approved
  requests.

ADVISORY, NOT A HARD CONSTRAINT:
  The detector reports conflicts; higher layers decide whether to block
  submission or merely warn.

OVERLAP PREDICATE (three equivalent conditions):
  - the existing request's start falls inside the proposed range, OR
  - the existing request's end falls inside the proposed range, OR
  - the existing request fully spans the proposed range.

SEE ALSO:
  - store.go: GetOverlappingApprovedRequests
*/
package leave

import (
	"context"
	"time"
)

// ConflictResult reports overlapping UK-agent absences for a date range.
// ConflictingAgents holds display names (email fallback), de-duplicated by
// user, and is empty - never nil - when there is no conflict.
type ConflictResult struct {
	HasConflict       bool
	ConflictingAgents []string
}

// ConflictDetector checks proposed ranges against UK-agent absences.
type ConflictDetector struct {
	Store Store

	// AgentEmails is the configured UK-agent allowlist. An empty list
	// means no protected staff and therefore no conflicts.
	AgentEmails []string
}

// NewConflictDetector creates a detector for the given allowlist.
func NewConflictDetector(store Store, agentEmails []string) *ConflictDetector {
	return &ConflictDetector{Store: store, AgentEmails: agentEmails}
}

// CheckUKAgentConflict returns the UK agents whose approved leave overlaps
// [start, end]. excludeUserID, when non-empty, removes that user from the
// overlap query (an agent checking conflicts against their own edit).
func (d *ConflictDetector) CheckUKAgentConflict(ctx context.Context, start, end time.Time, excludeUserID string) (ConflictResult, error) {
	result := ConflictResult{ConflictingAgents: []string{}}

	if len(d.AgentEmails) == 0 {
		return result, nil
	}

	overlapping, err := d.Store.GetOverlappingApprovedRequests(ctx, start, end, d.AgentEmails, excludeUserID)
	if err != nil {
		return result, &DependencyError{Dependency: "store", Op: "overlap query", Err: err}
	}

	// De-duplicate by user, not by request; an agent with two overlapping
	// requests is still one conflicting agent.
	seen := make(map[string]bool)
	for i := range overlapping {
		req := &overlapping[i]
		if seen[req.UserID] {
			continue
		}
		seen[req.UserID] = true

		user, err := d.Store.GetUser(ctx, req.UserID)
		if err != nil || user == nil {
			// Row existed a moment ago; fall back to the id rather than
			// dropping the conflict.
			result.ConflictingAgents = append(result.ConflictingAgents, req.UserID)
			result.HasConflict = true
			continue
		}
		result.ConflictingAgents = append(result.ConflictingAgents, user.DisplayName())
		result.HasConflict = true
	}

	return result, nil
}
