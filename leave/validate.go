/*
validate.go - Proposed-request validation

PURPOSE:
  Decides whether a proposed leave request is legal against current
  balances and feature toggles, before it is persisted as PENDING.

POLICY:
  - TOIL requested while the TOIL feature is disabled: rejected, message
    names the feature. Same for sick leave.
  - Annual: rejected when requested working days exceed annual remaining;
    the error message carries the exact remaining figure.
  - Sick: ALWAYS valid regardless of balance. Statutory entitlement; the
    balance is allowed to go negative.
  - TOIL: allowed to go negative short-term, consistent with the
    aggregator's tolerance - TOIL is frequently claimed before the
    corresponding overtime is logged.

  UK-agent conflicts are NOT checked here; the request-creation flow calls
  the conflict detector separately (conflict.go) and treats the result as
  advisory.

SEE ALSO:
  - balance.go: the balances validated against
  - conflict.go: the separate advisory overlap check
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Validator accepts or rejects proposed leave requests.
type Validator struct {
	Aggregator *Aggregator
	Calendar   Calendar
	Features   Features
}

// NewValidator creates a validator over the given aggregator with the
// supplied feature toggles.
func NewValidator(agg *Aggregator, features Features) *Validator {
	return &Validator{Aggregator: agg, Calendar: agg.Calendar, Features: features}
}

// ValidateLeaveRequest returns nil when the proposed request is legal, or a
// *ValidationError describing why it is not. Store failures and unknown
// users surface as their own error kinds, not as validation failures.
func (v *Validator) ValidateLeaveRequest(ctx context.Context, userID string, leaveType LeaveType, start, end time.Time) error {
	if end.Before(start) {
		return &ValidationError{
			Code:    "bad_date_order",
			Message: "end date must not be before start date",
		}
	}

	leaveType = leaveType.Normalize()

	if leaveType == TypeTOIL && !v.Features.IsEnabled(FeatureTOIL) {
		return &ValidationError{
			Code:    "feature_disabled",
			Message: "TOIL is currently disabled",
		}
	}
	if leaveType == TypeSick && !v.Features.IsEnabled(FeatureSickLeave) {
		return &ValidationError{
			Code:    "feature_disabled",
			Message: "SICK_LEAVE is currently disabled",
		}
	}

	// Sick leave is never blocked on balance grounds.
	if leaveType == TypeSick {
		return nil
	}

	balances, err := v.Aggregator.GetUserLeaveBalances(ctx, userID, start.Year())
	if err != nil {
		return err
	}

	requestedDays := v.Calendar.WorkingDaysBetween(start, end)

	switch leaveType {
	case TypeAnnual:
		remaining := balances.Annual.Remaining
		if remaining.LessThan(decimal.NewFromInt(int64(requestedDays))) {
			return &ValidationError{
				Code: "insufficient_balance",
				Message: fmt.Sprintf("insufficient annual leave: requested %d days, %s remaining",
					requestedDays, remaining.String()),
			}
		}
	case TypeTOIL:
		// Negative TOIL is tolerated short-term; nothing to reject here.
		// The aggregator keeps the earned-vs-used ledger honest.
	}

	return nil
}
