/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the leave balance and conflict engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Balances:
    GET  /api/users/{id}/balances         Per-type balances (cached)
    GET  /api/users/{id}/balances/legacy  Legacy balance shape
    GET  /api/users/{id}/toil-ledger      TOIL ledger history

  Requests:
    POST /api/requests                    Submit a leave request
    POST /api/requests/validate           Pre-validate a proposal
    POST /api/requests/{id}/cancel        Owner cancels a pending request
    POST /api/requests/{id}/approve       Admin approves one request
    POST /api/requests/{id}/reject        Admin rejects one request

  TOIL:
    POST /api/toil/calculate              Price a travel scenario

  Conflicts:
    GET  /api/conflicts/uk-agents         UK-agent overlap check

  Admin:
    POST /api/admin/approve-all           Bulk approve everything pending
    GET  /api/admin/stats                 Dashboard counts (cached ~5 min)
    GET  /api/team/calendar               Batch balances for a user set

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: validation errors, invalid input
  - 404: user/request not found
  - 409: concurrency conflict (bulk approval, retryable)
  - 500: dependency/internal errors

CACHING:
  Reads go through the LeaveCache; every mutation invalidates the owning
  user's entries plus all global aggregates before the response is written.

SEE ALSO:
  - dto.go: request/response data structures
  - server.go: router setup and middleware
*/
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agencyhq/leave-engine/cache"
	"github.com/agencyhq/leave-engine/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       leave.Store
	Aggregator  *leave.Aggregator
	Validator   *leave.Validator
	Detector    *leave.ConflictDetector
	Coordinator *leave.BulkApprovalCoordinator
	Cache       *cache.LeaveCache
}

// Config wires the handler's collaborators.
type Config struct {
	Store       leave.Store
	Features    leave.Features
	AgentEmails []string
	Notifier    leave.Notifier
}

// NewHandler creates a handler with a fresh cache.
func NewHandler(cfg Config) *Handler {
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = leave.LogNotifier{}
	}

	c := cache.NewLeaveCache()
	agg := leave.NewAggregator(cfg.Store)

	return &Handler{
		Store:       cfg.Store,
		Aggregator:  agg,
		Validator:   leave.NewValidator(agg, cfg.Features),
		Detector:    leave.NewConflictDetector(cfg.Store, cfg.AgentEmails),
		Coordinator: leave.NewBulkApprovalCoordinator(cfg.Store, notifier, c),
		Cache:       c,
	}
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// GetBalances returns per-type balances for a user/year, read-through cached.
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	year := yearParam(r)

	balances, err := h.balancesCached(r, userID, year)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceSetDTO(balances))
}

// GetLegacyBalance returns the old totalAllowance/daysUsed/remaining shape.
// It derives from the same computation as GetBalances, never a parallel one.
func (h *Handler) GetLegacyBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	year := yearParam(r)

	balances, err := h.balancesCached(r, userID, year)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	legacy := balances.Legacy()
	total, _ := legacy.TotalAllowance.Float64()
	used, _ := legacy.DaysUsed.Float64()
	remaining, _ := legacy.Remaining.Float64()
	writeJSON(w, http.StatusOK, LegacyBalanceDTO{
		TotalAllowance: total,
		DaysUsed:       used,
		Remaining:      remaining,
		ApprovedLeaves: toLeaveRequestDTOs(legacy.ApprovedLeaves),
	})
}

func (h *Handler) balancesCached(r *http.Request, userID string, year int) (*leave.LeaveBalances, error) {
	if cached, ok := h.Cache.GetBalances(userID, year); ok {
		return cached, nil
	}
	balances, err := h.Aggregator.GetUserLeaveBalances(r.Context(), userID, year)
	if err != nil {
		return nil, err
	}
	h.Cache.SetBalances(userID, year, balances)
	return balances, nil
}

// GetTOILLedger returns a user's TOIL ledger, newest first.
func (h *Handler) GetTOILLedger(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	entries, err := h.Store.GetTOILLedger(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]TOILLedgerEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toLedgerEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// TOIL CALCULATION
// =============================================================================

// CalculateTOIL prices a travel scenario. A null hours value means the
// scenario cannot be calculated yet (missing fields), not an error.
func (h *Handler) CalculateTOIL(w http.ResponseWriter, r *http.Request) {
	var req TOILCalculationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	toilReq := leave.TOILRequest{
		Scenario:       leave.TOILScenario(req.Scenario),
		ReturnTime:     req.ReturnTime,
		Reason:         req.Reason,
		CoveringUserID: req.CoveringUserID,
	}
	if t, err := time.Parse("2006-01-02", req.TravelDate); err == nil {
		toilReq.TravelDate = &t
	}
	if t, err := time.Parse("2006-01-02", req.ReturnDate); err == nil {
		toilReq.ReturnDate = &t
	}

	writeJSON(w, http.StatusOK, TOILCalculationResponse{
		Hours: leave.CalculateTOILHours(toilReq),
	})
}

// =============================================================================
// REQUEST VALIDATION AND SUBMISSION
// =============================================================================

// ValidateRequest pre-validates a proposal without persisting anything.
func (h *Handler) ValidateRequest(w http.ResponseWriter, r *http.Request) {
	var req ValidateLeaveRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.Validator.ValidateLeaveRequest(r.Context(), req.UserID, leave.LeaveType(req.Type), start, end)
	if err != nil {
		if leave.IsClientError(err) {
			writeJSON(w, http.StatusOK, ValidationResultDTO{Valid: false, Error: err.Error()})
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ValidationResultDTO{Valid: true})
}

// CreateRequest validates and persists a new PENDING request, returning the
// advisory UK-agent conflict result alongside it.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var req CreateLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	leaveType := leave.LeaveType(req.Type).Normalize()
	if err := h.Validator.ValidateLeaveRequest(r.Context(), req.UserID, leaveType, start, end); err != nil {
		writeDomainError(w, err)
		return
	}

	// Advisory only: the request is created regardless; the caller decides
	// what to do with the conflict result.
	conflict, err := h.Detector.CheckUKAgentConflict(r.Context(), start, end, req.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	record := leave.LeaveRequest{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		StartDate: start,
		EndDate:   end,
		Type:      leaveType,
		Status:    leave.StatusPending,
		Comments:  req.Comments,
		CreatedAt: time.Now().UTC(),
	}
	if req.Hours != nil {
		d := decimal.NewFromFloat(*req.Hours)
		record.Hours = &d
	}

	if err := h.Store.CreateRequest(r.Context(), record); err != nil {
		writeDomainError(w, err)
		return
	}
	h.Cache.InvalidateUser(req.UserID)

	writeJSON(w, http.StatusCreated, CreateLeaveResponse{
		Request:  toLeaveRequestDTO(record),
		Conflict: toConflictResultDTO(conflict),
	})
}

// =============================================================================
// SINGLE-REQUEST LIFECYCLE
// =============================================================================

// CancelRequest lets the owner cancel their own pending request.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "id")
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req, err := h.Store.GetRequest(r.Context(), requestID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if req.UserID != body.UserID {
		writeError(w, http.StatusForbidden, "Only the owner can cancel a request")
		return
	}
	if req.Status != leave.StatusPending {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Only pending requests can be cancelled, got %s", req.Status))
		return
	}

	if err := h.Store.UpdateStatus(r.Context(), requestID, leave.StatusCancelled, body.UserID, time.Now().UTC()); err != nil {
		writeDomainError(w, err)
		return
	}
	h.Cache.InvalidateUser(req.UserID)
	w.WriteHeader(http.StatusNoContent)
}

// ApproveRequest approves one pending request. TOIL requests additionally
// post a ledger entry and move the stored TOIL balance.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.transitionRequest(w, r, leave.StatusApproved)
}

// RejectRequest rejects one pending request.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.transitionRequest(w, r, leave.StatusRejected)
}

func (h *Handler) transitionRequest(w http.ResponseWriter, r *http.Request, target leave.RequestStatus) {
	requestID := chi.URLParam(r, "id")
	var body struct {
		AdminID   string `json:"admin_id"`
		AdminName string `json:"admin_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req, err := h.Store.GetRequest(r.Context(), requestID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if req.Status != leave.StatusPending {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Only pending requests can transition, got %s", req.Status))
		return
	}

	now := time.Now().UTC()
	if err := h.Store.UpdateStatus(r.Context(), requestID, target, body.AdminID, now); err != nil {
		writeDomainError(w, err)
		return
	}

	if target == leave.StatusApproved && req.Type.Normalize() == leave.TypeTOIL {
		if err := h.postTOILLedger(r, req, body.AdminID, now); err != nil {
			// The approval is already committed. Posting failures never roll
			// it back; they are logged for manual reconciliation, same as the
			// bulk path, and the cache invalidation below still runs.
			log.Printf("[Requests] TOIL ledger posting for request %s skipped: %v", req.ID, err)
		}
	}

	h.Cache.InvalidateUser(req.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) postTOILLedger(r *http.Request, req *leave.LeaveRequest, adminID string, now time.Time) error {
	user, err := h.Store.GetUser(r.Context(), req.UserID)
	if err != nil {
		return err
	}
	delta := leave.TOILDelta(h.Coordinator.Calendar, req)
	return h.Store.InsertTOILLedgerEntry(r.Context(), leave.TOILLedgerEntry{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		RequestID:       req.ID,
		PreviousBalance: user.TOILBalance,
		Hours:           delta,
		NewBalance:      user.TOILBalance.Add(delta),
		CreatedBy:       adminID,
		CreatedAt:       now,
	})
}

// =============================================================================
// CONFLICTS
// =============================================================================

// CheckConflicts runs the advisory UK-agent overlap check.
func (h *Handler) CheckConflicts(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	exclude := r.URL.Query().Get("exclude")

	key := cache.ConflictKey(start, end, exclude)
	if v, ok := h.Cache.Get(key); ok {
		if result, ok := v.(leave.ConflictResult); ok {
			writeJSON(w, http.StatusOK, toConflictResultDTO(result))
			return
		}
	}

	result, err := h.Detector.CheckUKAgentConflict(r.Context(), start, end, exclude)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.Cache.Set(key, result, h.Cache.BalanceTTL)

	writeJSON(w, http.StatusOK, toConflictResultDTO(result))
}

// =============================================================================
// ADMIN
// =============================================================================

// BulkApprove approves everything pending on behalf of the acting admin.
func (h *Handler) BulkApprove(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AdminID   string `json:"admin_id"`
		AdminName string `json:"admin_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.Coordinator.BulkApproveAllPending(r.Context(),
		leave.Admin{ID: body.AdminID, Name: body.AdminName})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BulkApprovalResultDTO{
		ApprovedCount: result.ApprovedCount,
		EmailsSent:    result.EmailsSent,
		EmailErrors:   result.EmailErrors,
		AffectedUsers: result.AffectedUsers,
	})
}

// AdminStats returns dashboard counts, cached at the admin TTL.
func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	if v, ok := h.Cache.Get(cache.AdminStatsKey()); ok {
		if stats, ok := v.(AdminStatsDTO); ok {
			writeJSON(w, http.StatusOK, stats)
			return
		}
	}

	pending, err := h.Store.CountByStatus(r.Context(), leave.StatusPending)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	approved, err := h.Store.CountByStatus(r.Context(), leave.StatusApproved)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	stats := AdminStatsDTO{PendingCount: pending, ApprovedCount: approved}
	h.Cache.Set(cache.AdminStatsKey(), stats, h.Cache.AdminTTL)
	writeJSON(w, http.StatusOK, stats)
}

// TeamCalendar returns batch balances for a comma-separated user set.
// Fully cached ids never touch the store.
func (h *Handler) TeamCalendar(w http.ResponseWriter, r *http.Request) {
	year := yearParam(r)
	usersParam := r.URL.Query().Get("users")
	if usersParam == "" {
		writeError(w, http.StatusBadRequest, "users query parameter is required")
		return
	}
	userIDs := strings.Split(usersParam, ",")

	batch := h.Aggregator.GetBatchUserLeaveBalances(r.Context(), h.Cache, userIDs, year)

	dto := TeamCalendarDTO{
		Year:     year,
		Balances: make(map[string]BalanceSetDTO, len(batch.Balances)),
	}
	for id, b := range batch.Balances {
		dto.Balances[id] = toBalanceSetDTO(b)
	}
	if len(batch.Errors) > 0 {
		dto.Errors = make(map[string]string, len(batch.Errors))
		for id, err := range batch.Errors {
			dto.Errors[id] = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// HELPERS
// =============================================================================

func yearParam(r *http.Request) int {
	if y, err := strconv.Atoi(r.URL.Query().Get("year")); err == nil && y > 0 {
		return y
	}
	return time.Now().Year()
}

func parseDateRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q (use YYYY-MM-DD)", startStr)
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q (use YYYY-MM-DD)", endStr)
	}
	return start, end, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeDomainError maps engine error kinds onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case leave.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case leave.IsClientError(err):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "validation"})
	case leave.IsRetryable(err):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "conflict"})
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}
