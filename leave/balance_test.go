package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agencyhq/leave-engine/cache"
	"github.com/agencyhq/leave-engine/leave"
	"github.com/agencyhq/leave-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func approvedRequest(id, userID string, leaveType leave.LeaveType, start, end time.Time) leave.LeaveRequest {
	return leave.LeaveRequest{
		ID:        id,
		UserID:    userID,
		StartDate: start,
		EndDate:   end,
		Type:      leaveType,
		Status:    leave.StatusApproved,
		CreatedAt: start.AddDate(0, 0, -14),
	}
}

func toilEarnedRequest(id, userID string, day time.Time, hours int64) leave.LeaveRequest {
	h := decimal.NewFromInt(hours)
	req := approvedRequest(id, userID, leave.TypeTOIL, day, day)
	req.Hours = &h
	return req
}

func newTestAggregator(t *testing.T) (*leave.Aggregator, *memory.Store) {
	t.Helper()
	store := memory.New()
	return leave.NewAggregator(store), store
}

// assertBalanceIdentity checks used + remaining == total for every type.
func assertBalanceIdentity(t *testing.T, b *leave.LeaveBalances) {
	t.Helper()
	for name, bal := range map[string]leave.Balance{
		"annual": b.Annual, "toil": b.TOIL, "sick": b.Sick,
	} {
		assert.True(t, bal.Used.Add(bal.Remaining).Equal(bal.Total),
			"%s: used %s + remaining %s != total %s",
			name, bal.Used, bal.Remaining, bal.Total)
	}
}

// =============================================================================
// DEFAULTS AND BASIC AGGREGATION
// =============================================================================

func TestGetUserLeaveBalances_DefaultsWhenNoStoredAllowance(t *testing.T) {
	// GIVEN: A user with no stored allowances and no approved requests
	// WHEN: Aggregating balances
	// THEN: Annual defaults to 32 days, sick to 3, TOIL to 0 hours

	agg, store := newTestAggregator(t)
	store.PutUser(leave.User{ID: "emp-1", Name: "Amy", Email: "amy@agency.co.uk"})

	b, err := agg.GetUserLeaveBalances(context.Background(), "emp-1", 2025)
	require.NoError(t, err)

	assert.True(t, b.Annual.Total.Equal(decimal.NewFromInt(32)))
	assert.True(t, b.Sick.Total.Equal(decimal.NewFromInt(3)))
	assert.True(t, b.TOIL.Total.IsZero())
	assertBalanceIdentity(t, b)
}

func TestGetUserLeaveBalances_StoredAllowanceWins(t *testing.T) {
	agg, store := newTestAggregator(t)
	annual := 25
	sick := 5
	store.PutUser(leave.User{ID: "emp-1", AnnualAllowance: &annual, SickAllowance: &sick})

	b, err := agg.GetUserLeaveBalances(context.Background(), "emp-1", 2025)
	require.NoError(t, err)

	assert.True(t, b.Annual.Total.Equal(decimal.NewFromInt(25)))
	assert.True(t, b.Sick.Total.Equal(decimal.NewFromInt(5)))
}

func TestGetUserLeaveBalances_UnknownUser(t *testing.T) {
	agg, _ := newTestAggregator(t)

	_, err := agg.GetUserLeaveBalances(context.Background(), "ghost", 2025)
	assert.Error(t, err)
	assert.True(t, leave.IsNotFound(err))
}

func TestGetUserLeaveBalances_AnnualConsumesWorkingDays(t *testing.T) {
	// GIVEN: An approved annual request Mon Jun 2 - Sun Jun 8 (5 weekdays)
	// WHEN: Aggregating
	// THEN: 5 days used, weekend days free

	agg, store := newTestAggregator(t)
	store.PutUser(leave.User{ID: "emp-1"})
	store.PutRequest(approvedRequest("req-1", "emp-1", leave.TypeAnnual,
		date(2025, time.June, 2), date(2025, time.June, 8)))

	b, err := agg.GetUserLeaveBalances(context.Background(), "emp-1", 2025)
	require.NoError(t, err)

	assert.True(t, b.Annual.Used.Equal(decimal.NewFromInt(5)))
	assert.True(t, b.Annual.Remaining.Equal(decimal.NewFromInt(27)))
	assertBalanceIdentity(t, b)
}

func TestGetUserLeaveBalances_UnrecognizedTypeCountsAsAnnual(t *testing.T) {
	// Older records predate the type column.
	agg, store := newTestAggregator(t)
	store.PutUser(leave.User{ID: "emp-1"})
	store.PutRequest(approvedRequest("req-1", "emp-1", "",
		date(2025, time.June, 2), date(2025, time.June, 3)))
	store.PutRequest(approvedRequest("req-2", "emp-1", "sabbatical",
		date(2025, time.July, 7), date(2025, time.July, 8)))

	b, err := agg.GetUserLeaveBalances(context.Background(), "emp-1", 2025)
	require.NoError(t, err)

	assert.True(t, b.Annual.Used.Equal(decimal.NewFromInt(4)))
	assert.True(t, b.Sick.Used.IsZero())
	assert.True(t, b.TOIL.Used.IsZero())
}

func TestGetUserLeaveBalances_OnlyTargetYearCounted(t *testing.T) {
	// Requests starting outside [Jan 1, Dec 31] of the year are excluded.
	agg, store := newTestAggregator(t)
	store.PutUser(leave.User{ID: "emp-1"})
	store.PutRequest(approvedRequest("req-2024", "emp-1", leave.TypeAnnual,
		date(2024, time.December, 30), date(2024, time.December, 31)))
	store.PutRequest(approvedRequest("req-2025", "emp-1", leave.TypeAnnual,
		date(2025, time.January, 6), date(2025, time.January, 7)))

	b, err := agg.GetUserLeaveBalances(context.Background(), "emp-1", 2025)
	require.NoError(t, err)

	assert.True(t, b.Annual.Used.Equal(decimal.NewFromInt(2)))
}

func TestGetUserLeaveBalances_PendingRequestsDoNotCount(t *testing.T) {
	agg, store := newTestAggregator(t)
	store.PutUser(leave.User{ID: "emp-1"})
	pending := approvedRequest("req-1", "emp-1", leave.TypeAnnual,
		date(2025, time.June, 2), date(2025, time.June, 6))
	pending.Status = leave.StatusPending
	store.PutRequest(pending)

	b, err := agg.GetUserLeaveBalances(context.Background(), "emp-1", 2025)
	require.NoError(t, err)
	assert.True(t, b.Annual.Used.IsZero())
}

// =============================================================================
// SICK LEAVE - NEGATIVE REMAINING BY DESIGN
// =============================================================================

func TestGetUserLeaveBalances_SickMayGoNegative(t *testing.T) {
	// GIVEN: Default 3 sick days and 5 approved sick working days
	// WHEN: Aggregating
	// THEN: Remaining is -2 and the identity still holds

	agg, store := newTestAggregator(t)
	store.PutUser(leave.User{ID: "emp-1"})
	store.PutRequest(approvedRequest("req-1", "emp-1", leave.TypeSick,
		date(2025, time.June, 2), date(2025, time.June, 6)))

	b, err := agg.GetUserLeaveBalances(context.Background(), "emp-1", 2025)
	require.NoError(t, err)

	assert.True(t, b.Sick.Used.Equal(decimal.NewFromInt(5)))
	assert.True(t, b.Sick.Remaining.Equal(decimal.NewFromInt(-2)),
		"sick remaining should be negative, got %s", b.Sick.Remaining)
	assertBalanceIdentity(t, b)
}

// =============================================================================
// TOIL SIGN CONVENTION
// =============================================================================

func TestGetUserLeaveBalances_TOILEarnedRaisesTotal(t *testing.T) {
	// Hours > 0 means EARNED: contributes to toil.total, not toil.used.
	agg, store := newTestAggregator(t)
	store.PutUser(leave.User{ID: "emp-1"})
	store.PutRequest(toilEarnedRequest("req-1", "emp-1", date(2025, time.June, 2), 4))
	store.PutRequest(toilEarnedRequest("req-2", "emp-1", date(2025, time.June, 9), 2))

	b, err := agg.GetUserLeaveBalances(context.Background(), "emp-1", 2025)
	require.NoError(t, err)

	assert.True(t, b.TOIL.Total.Equal(decimal.NewFromInt(6)))
	assert.True(t, b.TOIL.Used.IsZero())
	assert.True(t, b.TOIL.Remaining.Equal(decimal.NewFromInt(6)))
}

func TestGetUserLeaveBalances_TOILConsumptionUsesWorkingDaysTimesEight(t *testing.T) {
	// Zero/absent/negative Hours means CONSUMED: working days x 8.
	agg, store := newTestAggregator(t)
	store.PutUser(leave.User{ID: "emp-1"})
	store.PutRequest(toilEarnedRequest("req-earn", "emp-1", date(2025, time.May, 5), 20))
	// Consumption: Mon-Tue, no Hours value
	store.PutRequest(approvedRequest("req-use", "emp-1", leave.TypeTOIL,
		date(2025, time.June, 2), date(2025, time.June, 3)))

	b, err := agg.GetUserLeaveBalances(context.Background(), "emp-1", 2025)
	require.NoError(t, err)

	assert.True(t, b.TOIL.Total.Equal(decimal.NewFromInt(20)))
	assert.True(t, b.TOIL.Used.Equal(decimal.NewFromInt(16)), "2 working days x 8")
	assert.True(t, b.TOIL.Remaining.Equal(decimal.NewFromInt(4)))
	assertBalanceIdentity(t, b)
}

func TestGetUserLeaveBalances_TOILNegativeHoursAreConsumption(t *testing.T) {
	agg, store := newTestAggregator(t)
	store.PutUser(leave.User{ID: "emp-1"})
	neg := decimal.NewFromInt(-4)
	req := approvedRequest("req-1", "emp-1", leave.TypeTOIL,
		date(2025, time.June, 2), date(2025, time.June, 2))
	req.Hours = &neg
	store.PutRequest(req)

	b, err := agg.GetUserLeaveBalances(context.Background(), "emp-1", 2025)
	require.NoError(t, err)

	// One working day consumed, not -4 earned.
	assert.True(t, b.TOIL.Total.IsZero())
	assert.True(t, b.TOIL.Used.Equal(decimal.NewFromInt(8)))
	assert.True(t, b.TOIL.Remaining.Equal(decimal.NewFromInt(-8)))
}

// =============================================================================
// LEGACY VIEW
// =============================================================================

func TestLegacyBalance_DerivesFromAnnual(t *testing.T) {
	// The legacy shape is a view over the canonical computation, so the
	// figures must match the annual balance exactly.
	agg, store := newTestAggregator(t)
	store.PutUser(leave.User{ID: "emp-1"})
	store.PutRequest(approvedRequest("req-1", "emp-1", leave.TypeAnnual,
		date(2025, time.June, 2), date(2025, time.June, 6)))

	b, err := agg.GetUserLeaveBalances(context.Background(), "emp-1", 2025)
	require.NoError(t, err)

	legacy := b.Legacy()
	assert.True(t, legacy.TotalAllowance.Equal(b.Annual.Total))
	assert.True(t, legacy.DaysUsed.Equal(b.Annual.Used))
	assert.True(t, legacy.Remaining.Equal(b.Annual.Remaining))
	assert.Len(t, legacy.ApprovedLeaves, 1)
}

// =============================================================================
// BATCH AGGREGATION
// =============================================================================

// countingStore counts profile reads so tests can assert cache behavior.
type countingStore struct {
	leave.Store
	profileReads int
}

func (c *countingStore) GetUserWithApprovedRequests(ctx context.Context, userID string, year int) (*leave.UserLeaveProfile, error) {
	c.profileReads++
	return c.Store.GetUserWithApprovedRequests(ctx, userID, year)
}

func TestGetBatchUserLeaveBalances_FullyCachedSkipsStore(t *testing.T) {
	// GIVEN: Both users' balances already cached
	// WHEN: Fetching the batch
	// THEN: The store is not queried at all

	mem := memory.New()
	mem.PutUser(leave.User{ID: "emp-1"})
	mem.PutUser(leave.User{ID: "emp-2"})
	counting := &countingStore{Store: mem}
	agg := leave.NewAggregator(counting)
	lc := cache.NewLeaveCache()

	// Warm the cache.
	first := agg.GetBatchUserLeaveBalances(context.Background(), lc, []string{"emp-1", "emp-2"}, 2025)
	require.Empty(t, first.Errors)
	require.Equal(t, 2, counting.profileReads)

	second := agg.GetBatchUserLeaveBalances(context.Background(), lc, []string{"emp-1", "emp-2"}, 2025)
	assert.Empty(t, second.Errors)
	assert.Len(t, second.Balances, 2)
	assert.Equal(t, 2, counting.profileReads, "fully cached batch must not touch the store")
}

func TestGetBatchUserLeaveBalances_UnknownUserIsolated(t *testing.T) {
	// One unknown id surfaces per-user, never failing the whole batch.
	mem := memory.New()
	mem.PutUser(leave.User{ID: "emp-1"})
	agg := leave.NewAggregator(mem)
	lc := cache.NewLeaveCache()

	result := agg.GetBatchUserLeaveBalances(context.Background(), lc, []string{"emp-1", "ghost"}, 2025)

	assert.Len(t, result.Balances, 1)
	assert.Contains(t, result.Balances, "emp-1")
	require.Contains(t, result.Errors, "ghost")
	assert.True(t, leave.IsNotFound(result.Errors["ghost"]))
}

func TestGetBatchUserLeaveBalances_NilCacheStillComputes(t *testing.T) {
	mem := memory.New()
	mem.PutUser(leave.User{ID: "emp-1"})
	agg := leave.NewAggregator(mem)

	result := agg.GetBatchUserLeaveBalances(context.Background(), nil, []string{"emp-1"}, 2025)
	assert.Len(t, result.Balances, 1)
}
