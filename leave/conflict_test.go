package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agencyhq/leave-engine/leave"
	"github.com/agencyhq/leave-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var ukAgents = []string{"amy@agency.co.uk", "ben@agency.co.uk"}

func newTestDetector(t *testing.T) (*leave.ConflictDetector, *memory.Store) {
	t.Helper()
	store := memory.New()
	store.PutUser(leave.User{ID: "amy", Name: "Amy Archer", Email: "amy@agency.co.uk"})
	store.PutUser(leave.User{ID: "ben", Name: "", Email: "ben@agency.co.uk"}) // no name on record
	store.PutUser(leave.User{ID: "carl", Name: "Carl Crew", Email: "carl@agency.co.uk"}) // not a UK agent
	return leave.NewConflictDetector(store, ukAgents), store
}

// =============================================================================
// NO CONFLICT
// =============================================================================

func TestCheckUKAgentConflict_NoOverlap_EmptySlice(t *testing.T) {
	// GIVEN: No approved UK-agent requests in the range
	// WHEN: Checking conflicts
	// THEN: hasConflict false with an EMPTY, not absent, agent list

	d, store := newTestDetector(t)
	store.PutRequest(approvedRequest("req-1", "amy", leave.TypeAnnual,
		date(2025, time.March, 3), date(2025, time.March, 7)))

	result, err := d.CheckUKAgentConflict(context.Background(),
		date(2025, time.June, 2), date(2025, time.June, 6), "")
	require.NoError(t, err)

	assert.False(t, result.HasConflict)
	assert.NotNil(t, result.ConflictingAgents)
	assert.Empty(t, result.ConflictingAgents)
}

func TestCheckUKAgentConflict_NonAgentOverlapIgnored(t *testing.T) {
	// Carl is not on the allowlist; his overlapping leave is no conflict.
	d, store := newTestDetector(t)
	store.PutRequest(approvedRequest("req-1", "carl", leave.TypeAnnual,
		date(2025, time.June, 2), date(2025, time.June, 6)))

	result, err := d.CheckUKAgentConflict(context.Background(),
		date(2025, time.June, 2), date(2025, time.June, 6), "")
	require.NoError(t, err)
	assert.False(t, result.HasConflict)
}

func TestCheckUKAgentConflict_PendingRequestsIgnored(t *testing.T) {
	d, store := newTestDetector(t)
	pending := approvedRequest("req-1", "amy", leave.TypeAnnual,
		date(2025, time.June, 2), date(2025, time.June, 6))
	pending.Status = leave.StatusPending
	store.PutRequest(pending)

	result, err := d.CheckUKAgentConflict(context.Background(),
		date(2025, time.June, 2), date(2025, time.June, 6), "")
	require.NoError(t, err)
	assert.False(t, result.HasConflict)
}

// =============================================================================
// OVERLAP CONDITIONS
// =============================================================================

func TestCheckUKAgentConflict_ThreeOverlapShapes(t *testing.T) {
	// Start-in-range, end-in-range, and spans-range all conflict.
	cases := []struct {
		name       string
		start, end time.Time
	}{
		{"existing start falls in range", date(2025, time.June, 4), date(2025, time.June, 10)},
		{"existing end falls in range", date(2025, time.May, 28), date(2025, time.June, 3)},
		{"existing spans range", date(2025, time.June, 1), date(2025, time.June, 9)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, store := newTestDetector(t)
			store.PutRequest(approvedRequest("req-1", "amy", leave.TypeAnnual, tc.start, tc.end))

			// Proposed range: Jun 2 - Jun 6
			result, err := d.CheckUKAgentConflict(context.Background(),
				date(2025, time.June, 2), date(2025, time.June, 6), "")
			require.NoError(t, err)

			assert.True(t, result.HasConflict)
			assert.Equal(t, []string{"Amy Archer"}, result.ConflictingAgents)
		})
	}
}

// =============================================================================
// NAMES, FALLBACKS, DE-DUPLICATION
// =============================================================================

func TestCheckUKAgentConflict_EmailFallbackWhenNoName(t *testing.T) {
	d, store := newTestDetector(t)
	store.PutRequest(approvedRequest("req-1", "ben", leave.TypeAnnual,
		date(2025, time.June, 2), date(2025, time.June, 6)))

	result, err := d.CheckUKAgentConflict(context.Background(),
		date(2025, time.June, 2), date(2025, time.June, 6), "")
	require.NoError(t, err)

	assert.Equal(t, []string{"ben@agency.co.uk"}, result.ConflictingAgents)
}

func TestCheckUKAgentConflict_DeduplicatedByUser(t *testing.T) {
	// Two overlapping requests from the same agent are one conflict entry.
	d, store := newTestDetector(t)
	store.PutRequest(approvedRequest("req-1", "amy", leave.TypeAnnual,
		date(2025, time.June, 2), date(2025, time.June, 3)))
	store.PutRequest(approvedRequest("req-2", "amy", leave.TypeSick,
		date(2025, time.June, 5), date(2025, time.June, 6)))

	result, err := d.CheckUKAgentConflict(context.Background(),
		date(2025, time.June, 2), date(2025, time.June, 6), "")
	require.NoError(t, err)

	assert.Len(t, result.ConflictingAgents, 1)
}

func TestCheckUKAgentConflict_ExcludeUserRemoved(t *testing.T) {
	// An agent editing their own request doesn't conflict with themselves.
	d, store := newTestDetector(t)
	store.PutRequest(approvedRequest("req-1", "amy", leave.TypeAnnual,
		date(2025, time.June, 2), date(2025, time.June, 6)))

	result, err := d.CheckUKAgentConflict(context.Background(),
		date(2025, time.June, 2), date(2025, time.June, 6), "amy")
	require.NoError(t, err)

	assert.False(t, result.HasConflict)
	assert.Empty(t, result.ConflictingAgents)
}

func TestCheckUKAgentConflict_EmptyAllowlist(t *testing.T) {
	store := memory.New()
	d := leave.NewConflictDetector(store, nil)

	result, err := d.CheckUKAgentConflict(context.Background(),
		date(2025, time.June, 2), date(2025, time.June, 6), "")
	require.NoError(t, err)
	assert.False(t, result.HasConflict)
	assert.Empty(t, result.ConflictingAgents)
}
