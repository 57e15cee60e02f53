/*
bulk.go - Bulk approval coordinator

PURPOSE:
  Orchestrates the one-shot "approve everything pending" admin operation:
  optimistic-concurrency guard, per-request TOIL ledger posting, cache
  invalidation, and isolated-failure notification fan-out.

PIPELINE (strictly ordered):
  1. Snapshot every PENDING request with its owning user.
  2. Empty snapshot: return success with ApprovedCount=0, do nothing else.
  3. Re-count PENDING; mismatch with the snapshot aborts with
     ConcurrencyError before any mutation.
  4. Guarded transition PENDING -> APPROVED for the snapshotted ids,
     stamping ApprovedBy/ApprovedAt. The store applies this atomically
     (UPDATE ... WHERE status='pending'), closing the window the count
     check alone leaves open.
  5. For each approved TOIL request, post a ledger entry (previous balance,
     hours delta, new balance). Each posting is independent: a failure is
     logged and skipped, never rolled back.
  6. Invalidate cache entries for every affected user plus all global
     aggregates. Happens after the writes and before any notification, so
     a user refreshing after an email never sees stale balances.
  7. One batched notification per affected user. A failure is recorded in
     EmailErrors and does not block the remaining users.

  The operation is best effort with full visibility at the notification
  layer, and all-or-nothing at the status-transition layer.

SEE ALSO:
  - store.go: ApprovePending atomicity contract
  - cache/: the invalidation implementation
*/
package leave

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invalidator clears cached computations after a mutation. Any mutation for
// user U clears all of U's entries and every global aggregate.
type Invalidator interface {
	InvalidateUser(userID string)
}

// BulkApprovalResult reports everything the operation did.
type BulkApprovalResult struct {
	ApprovedCount int
	EmailsSent    int
	EmailErrors   []string
	AffectedUsers []string
}

// BulkApprovalCoordinator runs the approve-all-pending pipeline.
type BulkApprovalCoordinator struct {
	Store       Store
	Notifier    Notifier
	Invalidator Invalidator // optional
	Calendar    Calendar

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// NewBulkApprovalCoordinator wires a coordinator with the standard calendar.
func NewBulkApprovalCoordinator(store Store, notifier Notifier, inv Invalidator) *BulkApprovalCoordinator {
	return &BulkApprovalCoordinator{
		Store:       store,
		Notifier:    notifier,
		Invalidator: inv,
		Calendar:    WeekdayCalendar{},
		Now:         time.Now,
	}
}

// BulkApproveAllPending approves every pending request on behalf of
// actingAdmin. Returns ConcurrencyError (no mutation applied) when the
// pending set changed during processing.
func (c *BulkApprovalCoordinator) BulkApproveAllPending(ctx context.Context, actingAdmin Admin) (*BulkApprovalResult, error) {
	result := &BulkApprovalResult{
		EmailErrors:   []string{},
		AffectedUsers: []string{},
	}

	// 1. Snapshot.
	snapshot, err := c.Store.ListPendingRequests(ctx)
	if err != nil {
		return nil, &DependencyError{Dependency: "store", Op: "pending snapshot", Err: err}
	}

	// 2. Nothing pending: done.
	if len(snapshot) == 0 {
		return result, nil
	}

	// 3. Optimistic-concurrency guard: re-count before committing.
	count, err := c.Store.CountByStatus(ctx, StatusPending)
	if err != nil {
		return nil, &DependencyError{Dependency: "store", Op: "pending re-count", Err: err}
	}
	if count != len(snapshot) {
		return nil, &ConcurrencyError{Expected: len(snapshot), Actual: count}
	}

	// 4. Guarded status transition.
	ids := make([]string, len(snapshot))
	for i := range snapshot {
		ids[i] = snapshot[i].Request.ID
	}
	approvedAt := c.Now()
	approved, err := c.Store.ApprovePending(ctx, ids, actingAdmin.ID, approvedAt)
	if err != nil {
		return nil, err
	}
	result.ApprovedCount = approved

	// 5. TOIL ledger postings, per user in snapshot order so postings chain
	// off the right previous balance.
	c.postTOILLedger(ctx, snapshot, actingAdmin)

	// Group approved requests by owner for invalidation + notification.
	byUser := make(map[string][]LeaveRequest)
	users := make(map[string]User)
	for i := range snapshot {
		uid := snapshot[i].User.ID
		byUser[uid] = append(byUser[uid], snapshot[i].Request)
		users[uid] = snapshot[i].User
	}

	affected := make([]string, 0, len(byUser))
	for uid := range byUser {
		affected = append(affected, uid)
	}
	sort.Strings(affected)
	result.AffectedUsers = affected

	// 6. Cache invalidation before anyone is told to look.
	if c.Invalidator != nil {
		for _, uid := range affected {
			c.Invalidator.InvalidateUser(uid)
		}
	}

	// 7. Notification fan-out, one per user, failures isolated.
	for _, uid := range affected {
		user := users[uid]
		err := c.Notifier.SendBulkApprovalNotification(ctx, user.Email, user.DisplayName(), byUser[uid], actingAdmin.Name)
		if err != nil {
			log.Printf("[BulkApproval] notification to %s failed: %v", user.Email, err)
			result.EmailErrors = append(result.EmailErrors, user.Email+": "+err.Error())
			continue
		}
		result.EmailsSent++
	}

	return result, nil
}

// postTOILLedger posts one ledger entry per approved TOIL request. Postings
// are attempted independently; a single failure is logged and skipped.
func (c *BulkApprovalCoordinator) postTOILLedger(ctx context.Context, snapshot []PendingRequest, actingAdmin Admin) {
	// Running balance per user so consecutive postings chain correctly.
	running := make(map[string]decimal.Decimal)

	for i := range snapshot {
		req := &snapshot[i].Request
		if req.Type.Normalize() != TypeTOIL {
			continue
		}
		user := &snapshot[i].User

		previous, ok := running[user.ID]
		if !ok {
			previous = user.TOILBalance
		}

		delta := TOILDelta(c.Calendar, req)
		entry := TOILLedgerEntry{
			ID:              uuid.NewString(),
			UserID:          user.ID,
			RequestID:       req.ID,
			PreviousBalance: previous,
			Hours:           delta,
			NewBalance:      previous.Add(delta),
			CreatedBy:       actingAdmin.ID,
			CreatedAt:       c.Now(),
		}

		if err := c.Store.InsertTOILLedgerEntry(ctx, entry); err != nil {
			log.Printf("[BulkApproval] TOIL ledger posting for request %s skipped: %v", req.ID, err)
			continue
		}
		running[user.ID] = entry.NewBalance
	}
}

// TOILDelta returns the signed balance change for an approved TOIL request:
// positive Hours are earned as-is, everything else consumes working days x 8.
func TOILDelta(cal Calendar, req *LeaveRequest) decimal.Decimal {
	if req.EarnsTOIL() {
		return *req.Hours
	}
	days := cal.WorkingDaysBetween(req.StartDate, req.EndDate)
	return decimal.NewFromInt(int64(days)).Mul(hoursPerWorkingDay).Neg()
}
