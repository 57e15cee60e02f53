/*
Package leave implements the leave balance and conflict engine.

PURPOSE:
  This package contains the domain core for tracking employee leave
  entitlements (annual leave, sick leave, and Time Off In Lieu) for a
  small agency: balance aggregation, TOIL hour calculation, request
  validation, UK-agent conflict detection, and the bulk approval flow.

KEY CONCEPTS IN THIS FILE (types.go):
  - LeaveType / RequestStatus: the request taxonomy and lifecycle
  - LeaveRequest: one request for time away (inclusive date range)
  - User / UserLeaveProfile: the balance-bearing aggregate for one year
  - TOILRequest: an ephemeral travel scenario, priced by the calculator
  - TOILLedgerEntry: an audit record of a TOIL balance change

DESIGN PRINCIPLES:
  1. Precision: balances use decimal.Decimal, never float64
  2. Sign convention: TOIL Hours > 0 means earned, <= 0 or nil means consumed
  3. Derived balances: used/remaining are computed, never stored

SEE ALSO:
  - balance.go: per-type balance aggregation
  - toil.go: TOIL hour calculation
  - store.go: persistence interface consumed by this package
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEAVE TYPES AND REQUEST LIFECYCLE
// =============================================================================

type LeaveType string

const (
	TypeAnnual LeaveType = "annual"
	TypeTOIL   LeaveType = "toil"
	TypeSick   LeaveType = "sick"
)

// Normalize maps unknown or empty leave types to annual. Older records
// predate the type column and must keep counting against annual leave.
func (t LeaveType) Normalize() LeaveType {
	switch t {
	case TypeAnnual, TypeTOIL, TypeSick:
		return t
	default:
		return TypeAnnual
	}
}

type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusApproved  RequestStatus = "approved"
	StatusRejected  RequestStatus = "rejected"
	StatusCancelled RequestStatus = "cancelled"
)

// IsTerminal reports whether a status admits no further transitions.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

// =============================================================================
// LEAVE REQUEST
// =============================================================================

// LeaveRequest represents one request for time away.
// StartDate and EndDate are inclusive calendar dates; EndDate >= StartDate.
//
// Hours is meaningful only for TOIL requests:
//   - positive: hours EARNED by this entry (overtime/travel credit)
//   - zero, negative, or nil: hours CONSUMED (working days x 8)
type LeaveRequest struct {
	ID        string
	UserID    string
	StartDate time.Time
	EndDate   time.Time
	Type      LeaveType
	Status    RequestStatus
	Hours     *decimal.Decimal
	Comments  string
	CreatedAt time.Time

	// Stamped on approval
	ApprovedBy string
	ApprovedAt *time.Time
}

// EarnsTOIL reports whether this request is a positive TOIL accrual entry.
func (r *LeaveRequest) EarnsTOIL() bool {
	return r.Type == TypeTOIL && r.Hours != nil && r.Hours.IsPositive()
}

// =============================================================================
// USERS AND PROFILES
// =============================================================================

// Default allowances applied when a user record carries no explicit balance.
const (
	DefaultAnnualAllowanceDays = 32
	DefaultSickAllowanceDays   = 3
)

// User is one employee. Allowance pointers are nil when the record has no
// stored balance, in which case the defaults above apply.
type User struct {
	ID              string
	Name            string
	Email           string
	AnnualAllowance *int
	SickAllowance   *int
	TOILBalance     decimal.Decimal
}

// DisplayName returns the user's name, falling back to their email when no
// name is on record.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// AnnualAllowanceDays returns the stored annual allowance or the default.
func (u *User) AnnualAllowanceDays() int {
	if u.AnnualAllowance != nil {
		return *u.AnnualAllowance
	}
	return DefaultAnnualAllowanceDays
}

// SickAllowanceDays returns the stored sick allowance or the default.
func (u *User) SickAllowanceDays() int {
	if u.SickAllowance != nil {
		return *u.SickAllowance
	}
	return DefaultSickAllowanceDays
}

// UserLeaveProfile is the balance-bearing aggregate for one employee in one
// year: the user record plus their APPROVED requests whose StartDate falls
// within the target year.
type UserLeaveProfile struct {
	User     User
	Year     int
	Approved []LeaveRequest
}

// =============================================================================
// TOIL SCENARIOS
// =============================================================================

type TOILScenario string

const (
	ScenarioLocalShow          TOILScenario = "local_show"
	ScenarioWorkingDayPanel    TOILScenario = "working_day_panel"
	ScenarioOvernightDayOff    TOILScenario = "overnight_day_off"
	ScenarioOvernightWorkingDay TOILScenario = "overnight_working_day"
)

// Known reports whether the scenario is one of the four contract clauses.
func (s TOILScenario) Known() bool {
	switch s {
	case ScenarioLocalShow, ScenarioWorkingDayPanel,
		ScenarioOvernightDayOff, ScenarioOvernightWorkingDay:
		return true
	}
	return false
}

// TOILRequest describes a travel/coverage scenario submitted before it
// becomes a LeaveRequest. It is ephemeral and never persisted as its own
// entity; only the computed hours survive.
type TOILRequest struct {
	Scenario       TOILScenario
	TravelDate     *time.Time
	ReturnDate     *time.Time // required for overnight scenarios
	ReturnTime     string     // HH:MM, required only for overnight working day
	Reason         string
	CoveringUserID string // required only for working-day panel
}

// =============================================================================
// TOIL LEDGER
// =============================================================================

// TOILLedgerEntry records one posting against a user's TOIL balance.
// Entries are append-only; corrections are new entries.
type TOILLedgerEntry struct {
	ID              string
	UserID          string
	RequestID       string
	PreviousBalance decimal.Decimal
	Hours           decimal.Decimal
	NewBalance      decimal.Decimal
	CreatedBy       string
	CreatedAt       time.Time
}

// =============================================================================
// FEATURE FLAGS
// =============================================================================

type Feature string

const (
	FeatureTOIL      Feature = "TOIL"
	FeatureSickLeave Feature = "SICK_LEAVE"
)

// Features is the capability object gating optional leave types. It is
// passed into the validator explicitly so every flag combination can be
// exercised deterministically in tests.
type Features struct {
	TOIL      bool
	SickLeave bool
}

// AllFeatures returns a Features value with everything enabled.
func AllFeatures() Features {
	return Features{TOIL: true, SickLeave: true}
}

// IsEnabled reports whether the named feature is on. Unknown features are
// considered enabled so new leave types fail open rather than dark.
func (f Features) IsEnabled(feature Feature) bool {
	switch feature {
	case FeatureTOIL:
		return f.TOIL
	case FeatureSickLeave:
		return f.SickLeave
	default:
		return true
	}
}

// =============================================================================
// ADMIN IDENTITY
// =============================================================================

// Admin is the already-authenticated caller identity supplied by the outer
// application for administrative operations.
type Admin struct {
	ID   string
	Name string
}
