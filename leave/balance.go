/*
balance.go - Leave balance aggregation

PURPOSE:
  Turns a user's approved request history into per-type balances. This is
  the central calculation that answers "how much leave does this employee
  have left?"

BALANCE COMPONENTS (per leave type):
  Total:     the entitlement (stored allowance for annual/sick, accumulated
             earned hours for TOIL)
  Used:      approved consumption (working days; TOIL in hours)
  Remaining: Total - Used

INVARIANT:
  Used + Remaining == Total for every type, always. Sick leave may report a
  negative Remaining: statutory sick entitlement is never blocked, so enough
  approved sick days drive the balance below zero by design.

TOIL SIGN CONVENTION:
  An approved TOIL entry with Hours > 0 represents hours EARNED and raises
  toil.Total. An entry with zero/absent/negative Hours represents hours
  CONSUMED: working-day count x 8 is added to toil.Used. Preserve this
  exactly; it is easy to get backwards.

SEE ALSO:
  - calendar.go: working-day counting
  - cache/: read-through caching of these results
*/
package leave

import (
	"context"

	"github.com/shopspring/decimal"
)

var hoursPerWorkingDay = decimal.NewFromInt(8)

// =============================================================================
// BALANCE SHAPES
// =============================================================================

// Balance is the computed state of one leave type.
type Balance struct {
	Total     decimal.Decimal
	Used      decimal.Decimal
	Remaining decimal.Decimal
}

// LeaveBalances is the per-type balance set for one user in one year.
type LeaveBalances struct {
	UserID string
	Year   int
	Annual Balance
	TOIL   Balance // hours, not days
	Sick   Balance

	// Approved requests the balances were derived from, for display.
	Approved []LeaveRequest
}

// LegacyBalance is the narrower shape older call sites expect. It is a
// derived view over the canonical annual balance, never a parallel
// computation.
type LegacyBalance struct {
	TotalAllowance decimal.Decimal
	DaysUsed       decimal.Decimal
	Remaining      decimal.Decimal
	ApprovedLeaves []LeaveRequest
}

// Legacy derives the old call-site shape from the annual balance.
func (b *LeaveBalances) Legacy() LegacyBalance {
	return LegacyBalance{
		TotalAllowance: b.Annual.Total,
		DaysUsed:       b.Annual.Used,
		Remaining:      b.Annual.Remaining,
		ApprovedLeaves: b.Approved,
	}
}

// =============================================================================
// AGGREGATOR
// =============================================================================

// Aggregator computes per-type balances from the store.
type Aggregator struct {
	Store    Store
	Calendar Calendar
}

// NewAggregator creates an aggregator over the given store using the
// standard Mon-Fri calendar.
func NewAggregator(store Store) *Aggregator {
	return &Aggregator{Store: store, Calendar: WeekdayCalendar{}}
}

// GetUserLeaveBalances fetches the user's profile and approved requests for
// the year and folds them into per-type balances.
func (a *Aggregator) GetUserLeaveBalances(ctx context.Context, userID string, year int) (*LeaveBalances, error) {
	profile, err := a.Store.GetUserWithApprovedRequests(ctx, userID, year)
	if err != nil {
		return nil, err
	}
	return a.FromProfile(profile), nil
}

// FromProfile computes balances from an already-loaded profile.
// Split out so the bulk coordinator and tests can reuse the fold without a
// store round-trip.
func (a *Aggregator) FromProfile(profile *UserLeaveProfile) *LeaveBalances {
	annualTotal := decimal.NewFromInt(int64(profile.User.AnnualAllowanceDays()))
	sickTotal := decimal.NewFromInt(int64(profile.User.SickAllowanceDays()))

	var annualUsed, sickUsed, toilEarned, toilUsed decimal.Decimal

	for i := range profile.Approved {
		req := &profile.Approved[i]

		if req.Type.Normalize() == TypeTOIL {
			if req.EarnsTOIL() {
				toilEarned = toilEarned.Add(*req.Hours)
				continue
			}
			days := a.Calendar.WorkingDaysBetween(req.StartDate, req.EndDate)
			toilUsed = toilUsed.Add(decimal.NewFromInt(int64(days)).Mul(hoursPerWorkingDay))
			continue
		}

		days := decimal.NewFromInt(int64(a.Calendar.WorkingDaysBetween(req.StartDate, req.EndDate)))
		switch req.Type.Normalize() {
		case TypeSick:
			sickUsed = sickUsed.Add(days)
		default: // annual, incl. unrecognized types
			annualUsed = annualUsed.Add(days)
		}
	}

	return &LeaveBalances{
		UserID: profile.User.ID,
		Year:   profile.Year,
		Annual: Balance{
			Total:     annualTotal,
			Used:      annualUsed,
			Remaining: annualTotal.Sub(annualUsed),
		},
		TOIL: Balance{
			// No fixed allowance: the total IS the earned ledger.
			Total:     toilEarned,
			Used:      toilUsed,
			Remaining: toilEarned.Sub(toilUsed),
		},
		Sick: Balance{
			Total:     sickTotal,
			Used:      sickUsed,
			Remaining: sickTotal.Sub(sickUsed),
		},
		Approved: profile.Approved,
	}
}

// =============================================================================
// BATCH AGGREGATION (cache-first)
// =============================================================================

// BalanceCache is the subset of the cache layer the batch path needs.
// Defined here so the aggregator doesn't import the cache package.
type BalanceCache interface {
	GetBalances(userID string, year int) (*LeaveBalances, bool)
	SetBalances(userID string, year int, balances *LeaveBalances)
}

// BatchResult carries per-user outcomes: one user's failure never fails the
// whole batch.
type BatchResult struct {
	Balances map[string]*LeaveBalances
	Errors   map[string]error
}

// GetBatchUserLeaveBalances resolves balances for each id, serving from the
// cache when present and computing+populating on miss. When every id is
// already cached the store is not queried at all.
func (a *Aggregator) GetBatchUserLeaveBalances(ctx context.Context, cache BalanceCache, userIDs []string, year int) *BatchResult {
	result := &BatchResult{
		Balances: make(map[string]*LeaveBalances, len(userIDs)),
		Errors:   make(map[string]error),
	}

	for _, id := range userIDs {
		if cache != nil {
			if cached, ok := cache.GetBalances(id, year); ok {
				result.Balances[id] = cached
				continue
			}
		}

		balances, err := a.GetUserLeaveBalances(ctx, id, year)
		if err != nil {
			result.Errors[id] = err
			continue
		}
		if cache != nil {
			cache.SetBalances(id, year, balances)
		}
		result.Balances[id] = balances
	}

	return result
}
