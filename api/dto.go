/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and the domain validator, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/agencyhq/leave-engine/leave"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// BalanceDTO is one leave type's computed state.
type BalanceDTO struct {
	Total     float64 `json:"total"`
	Used      float64 `json:"used"`
	Remaining float64 `json:"remaining"`
}

// BalanceSetDTO is the per-type balance set for one user in one year.
type BalanceSetDTO struct {
	UserID string     `json:"user_id"`
	Year   int        `json:"year"`
	Annual BalanceDTO `json:"annual"`
	TOIL   BalanceDTO `json:"toil"`
	Sick   BalanceDTO `json:"sick"`
}

// LegacyBalanceDTO is the narrower shape older call sites expect.
type LegacyBalanceDTO struct {
	TotalAllowance float64           `json:"totalAllowance"`
	DaysUsed       float64           `json:"daysUsed"`
	Remaining      float64           `json:"remaining"`
	ApprovedLeaves []LeaveRequestDTO `json:"approvedLeaves"`
}

// LeaveRequestDTO represents a leave request in API responses.
type LeaveRequestDTO struct {
	ID         string   `json:"id"`
	UserID     string   `json:"user_id"`
	StartDate  string   `json:"start_date"`
	EndDate    string   `json:"end_date"`
	Type       string   `json:"type"`
	Status     string   `json:"status"`
	Hours      *float64 `json:"hours,omitempty"`
	Comments   string   `json:"comments,omitempty"`
	ApprovedBy string   `json:"approved_by,omitempty"`
	ApprovedAt string   `json:"approved_at,omitempty"`
	CreatedAt  string   `json:"created_at,omitempty"`
}

// CreateLeaveRequest is the request to submit a new leave request.
type CreateLeaveRequest struct {
	UserID    string   `json:"user_id"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Type      string   `json:"type"`
	Hours     *float64 `json:"hours,omitempty"`
	Comments  string   `json:"comments,omitempty"`
}

// CreateLeaveResponse returns the created request plus the advisory
// UK-agent conflict result.
type CreateLeaveResponse struct {
	Request  LeaveRequestDTO   `json:"request"`
	Conflict ConflictResultDTO `json:"conflict"`
}

// ValidateLeaveRequestDTO is the request to pre-validate a proposal.
type ValidateLeaveRequestDTO struct {
	UserID    string `json:"user_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Type      string `json:"type"`
}

// ValidationResultDTO mirrors the validator's accept/reject contract.
type ValidationResultDTO struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// TOILCalculationRequest describes a travel scenario to price.
type TOILCalculationRequest struct {
	Scenario       string `json:"scenario"`
	TravelDate     string `json:"travel_date,omitempty"`
	ReturnDate     string `json:"return_date,omitempty"`
	ReturnTime     string `json:"return_time,omitempty"`
	Reason         string `json:"reason,omitempty"`
	CoveringUserID string `json:"covering_user_id,omitempty"`
}

// TOILCalculationResponse carries the computed hours; null means the
// scenario cannot be priced yet (missing fields).
type TOILCalculationResponse struct {
	Hours *int `json:"hours"`
}

// ConflictResultDTO reports UK-agent overlaps.
type ConflictResultDTO struct {
	HasConflict       bool     `json:"hasConflict"`
	ConflictingAgents []string `json:"conflictingAgents"`
}

// BulkApprovalResultDTO reports what approve-all did.
type BulkApprovalResultDTO struct {
	ApprovedCount int      `json:"approved_count"`
	EmailsSent    int      `json:"emails_sent"`
	EmailErrors   []string `json:"email_errors"`
	AffectedUsers []string `json:"affected_users"`
}

// AdminStatsDTO is the cached admin dashboard aggregate.
type AdminStatsDTO struct {
	PendingCount  int `json:"pending_count"`
	ApprovedCount int `json:"approved_count"`
}

// TeamCalendarDTO is the batch balance view for a set of users.
type TeamCalendarDTO struct {
	Year     int                      `json:"year"`
	Balances map[string]BalanceSetDTO `json:"balances"`
	Errors   map[string]string        `json:"errors,omitempty"`
}

// TOILLedgerEntryDTO represents one TOIL ledger posting.
type TOILLedgerEntryDTO struct {
	ID              string  `json:"id"`
	RequestID       string  `json:"request_id"`
	PreviousBalance float64 `json:"previous_balance"`
	Hours           float64 `json:"hours"`
	NewBalance      float64 `json:"new_balance"`
	CreatedBy       string  `json:"created_by"`
	CreatedAt       string  `json:"created_at"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toBalanceDTO(b leave.Balance) BalanceDTO {
	total, _ := b.Total.Float64()
	used, _ := b.Used.Float64()
	remaining, _ := b.Remaining.Float64()
	return BalanceDTO{Total: total, Used: used, Remaining: remaining}
}

func toBalanceSetDTO(b *leave.LeaveBalances) BalanceSetDTO {
	return BalanceSetDTO{
		UserID: b.UserID,
		Year:   b.Year,
		Annual: toBalanceDTO(b.Annual),
		TOIL:   toBalanceDTO(b.TOIL),
		Sick:   toBalanceDTO(b.Sick),
	}
}

func toLeaveRequestDTO(r leave.LeaveRequest) LeaveRequestDTO {
	dto := LeaveRequestDTO{
		ID:         r.ID,
		UserID:     r.UserID,
		StartDate:  r.StartDate.Format("2006-01-02"),
		EndDate:    r.EndDate.Format("2006-01-02"),
		Type:       string(r.Type.Normalize()),
		Status:     string(r.Status),
		Comments:   r.Comments,
		ApprovedBy: r.ApprovedBy,
	}
	if r.Hours != nil {
		h, _ := r.Hours.Float64()
		dto.Hours = &h
	}
	if r.ApprovedAt != nil {
		dto.ApprovedAt = r.ApprovedAt.Format(time.RFC3339)
	}
	if !r.CreatedAt.IsZero() {
		dto.CreatedAt = r.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toLeaveRequestDTOs(reqs []leave.LeaveRequest) []LeaveRequestDTO {
	dtos := make([]LeaveRequestDTO, len(reqs))
	for i, r := range reqs {
		dtos[i] = toLeaveRequestDTO(r)
	}
	return dtos
}

func toConflictResultDTO(r leave.ConflictResult) ConflictResultDTO {
	agents := r.ConflictingAgents
	if agents == nil {
		agents = []string{}
	}
	return ConflictResultDTO{HasConflict: r.HasConflict, ConflictingAgents: agents}
}

func toLedgerEntryDTO(e leave.TOILLedgerEntry) TOILLedgerEntryDTO {
	prev, _ := e.PreviousBalance.Float64()
	hours, _ := e.Hours.Float64()
	newBal, _ := e.NewBalance.Float64()
	return TOILLedgerEntryDTO{
		ID:              e.ID,
		RequestID:       e.RequestID,
		PreviousBalance: prev,
		Hours:           hours,
		NewBalance:      newBal,
		CreatedBy:       e.CreatedBy,
		CreatedAt:       e.CreatedAt.Format(time.RFC3339),
	}
}
