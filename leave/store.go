/*
store.go - Persistence interface for users, requests and the TOIL ledger

PURPOSE:
  Defines the interface between the leave domain logic and the database.
  Different implementations can use SQLite, PostgreSQL, or in-memory
  storage; the engine treats them identically.

KEY INTERFACES:
  Store:  profile reads, overlap queries, status counts, guarded status
          transitions, TOIL ledger postings

GUARDED TRANSITIONS:
  ApprovePending applies PENDING -> APPROVED only to rows still pending
  (UPDATE ... WHERE status='pending') and reports how many rows changed.
  The bulk coordinator compares that count against its snapshot so a
  concurrent individual approval can never be silently double-applied.

IMPLEMENTATIONS:
  - store/sqlite:  production SQLite (WAL)
  - store/memory:  in-memory for tests and dev

SEE ALSO:
  - balance.go: reads profiles through this interface
  - bulk.go: snapshot/count/update pipeline
*/
package leave

import (
	"context"
	"time"
)

// PendingRequest pairs a pending leave request with its owning user, as
// snapshotted by the bulk approval coordinator.
type PendingRequest struct {
	Request LeaveRequest
	User    User
}

// Store handles persistence for the leave engine.
type Store interface {
	// GetUserWithApprovedRequests returns the user's profile together with
	// their APPROVED requests whose StartDate falls within the given year.
	// Returns an error matching ErrUserNotFound when no such user exists.
	GetUserWithApprovedRequests(ctx context.Context, userID string, year int) (*UserLeaveProfile, error)

	// GetUser returns the bare user record.
	GetUser(ctx context.Context, userID string) (*User, error)

	// GetOverlappingApprovedRequests returns APPROVED requests belonging to
	// users whose email is in emails, overlapping [start, end] under the
	// three-way overlap predicate (existing start in range, existing end in
	// range, or existing request spans the range). excludeUserID, when
	// non-empty, removes that user's requests from consideration.
	GetOverlappingApprovedRequests(ctx context.Context, start, end time.Time, emails []string, excludeUserID string) ([]LeaveRequest, error)

	// GetRequest returns a single leave request.
	// Returns an error matching ErrRequestNotFound when absent.
	GetRequest(ctx context.Context, requestID string) (*LeaveRequest, error)

	// CreateRequest persists a new leave request.
	CreateRequest(ctx context.Context, req LeaveRequest) error

	// CountByStatus returns the number of requests in the given status.
	CountByStatus(ctx context.Context, status RequestStatus) (int, error)

	// ListPendingRequests snapshots every PENDING request with its owner.
	ListPendingRequests(ctx context.Context) ([]PendingRequest, error)

	// ApprovePending transitions the identified requests PENDING -> APPROVED,
	// stamping approvedBy/approvedAt, and returns how many rows transitioned.
	// The transition is atomic: if any identified request is no longer
	// pending, implementations roll the whole batch back and return an error
	// matching ErrConcurrentModification.
	ApprovePending(ctx context.Context, ids []string, approvedBy string, approvedAt time.Time) (int, error)

	// UpdateStatus sets a single request's status (reject, cancel, approve).
	UpdateStatus(ctx context.Context, requestID string, status RequestStatus, actorID string, at time.Time) error

	// InsertTOILLedgerEntry appends a TOIL ledger posting and updates the
	// user's stored TOIL balance to entry.NewBalance atomically.
	InsertTOILLedgerEntry(ctx context.Context, entry TOILLedgerEntry) error

	// GetTOILLedger returns a user's ledger entries, newest first.
	GetTOILLedger(ctx context.Context, userID string) ([]TOILLedgerEntry, error)
}

// Notifier delivers notifications to employees. It is fire-and-forget from
// the engine's perspective: failures are captured and logged, never thrown.
type Notifier interface {
	// SendBulkApprovalNotification sends one batched notification covering
	// all of a user's newly approved requests.
	SendBulkApprovalNotification(ctx context.Context, email, name string, requests []LeaveRequest, approverName string) error
}
