package cache

import (
	"fmt"
	"time"

	"github.com/agencyhq/leave-engine/leave"
)

// =============================================================================
// KEY BUILDERS - deterministic strings from operation name + arguments
// =============================================================================

// User-scoped keys carry a "user:{id}:" prefix so a single DeletePrefix
// clears everything cached for that user.

func userPrefix(userID string) string { return "user:" + userID + ":" }

// BalanceKey keys one user's per-type balances for a year.
func BalanceKey(userID string, year int) string {
	return fmt.Sprintf("%sbalance:%d", userPrefix(userID), year)
}

// HistoryKey keys one user's leave history.
func HistoryKey(userID string) string {
	return userPrefix(userID) + "history"
}

// Global aggregate keys. Every mutation clears ALL of these.

const globalPrefix = "global:"

// TeamCalendarKey keys the team-wide calendar aggregate for a year.
func TeamCalendarKey(year int) string {
	return fmt.Sprintf("%scalendar:%d", globalPrefix, year)
}

// AdminStatsKey keys the admin dashboard statistics.
func AdminStatsKey() string { return globalPrefix + "admin:stats" }

// PendingCountKey keys the pending-request count.
func PendingCountKey() string { return globalPrefix + "pending:count" }

// ConflictKey keys a UK-agent conflict lookup. Conflict results are global
// (they span users), so they live under the global prefix and are cleared
// on any mutation.
func ConflictKey(start, end time.Time, excludeUserID string) string {
	return fmt.Sprintf("%sconflict:%s:%s:%s",
		globalPrefix, start.Format("2006-01-02"), end.Format("2006-01-02"), excludeUserID)
}

// =============================================================================
// LEAVE CACHE - typed facade over the generic cache
// =============================================================================

// LeaveCache wraps Cache with the leave engine's key discipline and TTLs.
// It implements leave.BalanceCache and leave.Invalidator.
type LeaveCache struct {
	*Cache
	BalanceTTL time.Duration
	AdminTTL   time.Duration
}

// NewLeaveCache creates a leave-typed cache with the default TTLs.
func NewLeaveCache() *LeaveCache {
	return &LeaveCache{
		Cache:      New(),
		BalanceTTL: DefaultBalanceTTL,
		AdminTTL:   DefaultAdminTTL,
	}
}

// GetBalances returns a cached balance set for user/year.
func (lc *LeaveCache) GetBalances(userID string, year int) (*leave.LeaveBalances, bool) {
	v, ok := lc.Get(BalanceKey(userID, year))
	if !ok {
		return nil, false
	}
	balances, ok := v.(*leave.LeaveBalances)
	return balances, ok
}

// SetBalances stores a balance set at the balance TTL.
func (lc *LeaveCache) SetBalances(userID string, year int, balances *leave.LeaveBalances) {
	lc.Set(BalanceKey(userID, year), balances, lc.BalanceTTL)
}

// InvalidateUser clears every entry keyed by the user plus all global
// aggregates. Called synchronously after any mutation touching that user.
func (lc *LeaveCache) InvalidateUser(userID string) {
	lc.DeletePrefix(userPrefix(userID))
	lc.DeletePrefix(globalPrefix)
}

var (
	_ leave.BalanceCache = (*LeaveCache)(nil)
	_ leave.Invalidator  = (*LeaveCache)(nil)
)
