// Package memory provides an in-memory leave.Store for tests and dev.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/agencyhq/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Store struct {
	mu       sync.RWMutex
	users    map[string]leave.User
	requests map[string]leave.LeaveRequest
	ledger   map[string][]leave.TOILLedgerEntry // by user, newest first
}

func New() *Store {
	return &Store{
		users:    make(map[string]leave.User),
		requests: make(map[string]leave.LeaveRequest),
		ledger:   make(map[string][]leave.TOILLedgerEntry),
	}
}

// PutUser inserts or replaces a user record.
func (s *Store) PutUser(u leave.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// PutRequest inserts or replaces a leave request.
func (s *Store) PutRequest(r leave.LeaveRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.ID] = r
}

func (s *Store) GetUser(_ context.Context, userID string) (*leave.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, &leave.NotFoundError{Kind: "user", ID: userID}
	}
	return &u, nil
}

func (s *Store) GetUserWithApprovedRequests(_ context.Context, userID string, year int) (*leave.UserLeaveProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, &leave.NotFoundError{Kind: "user", ID: userID}
	}

	from, to := leave.YearRange(year)
	var approved []leave.LeaveRequest
	for _, r := range s.requests {
		if r.UserID != userID || r.Status != leave.StatusApproved {
			continue
		}
		if r.StartDate.Before(from) || r.StartDate.After(to) {
			continue
		}
		approved = append(approved, r)
	}
	sort.Slice(approved, func(i, j int) bool {
		return approved[i].StartDate.Before(approved[j].StartDate)
	})

	return &leave.UserLeaveProfile{User: u, Year: year, Approved: approved}, nil
}

func (s *Store) GetOverlappingApprovedRequests(_ context.Context, start, end time.Time, emails []string, excludeUserID string) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	allowed := make(map[string]bool, len(emails))
	for _, e := range emails {
		allowed[e] = true
	}

	var result []leave.LeaveRequest
	for _, r := range s.requests {
		if r.Status != leave.StatusApproved {
			continue
		}
		if excludeUserID != "" && r.UserID == excludeUserID {
			continue
		}
		owner, ok := s.users[r.UserID]
		if !ok || !allowed[owner.Email] {
			continue
		}
		if overlaps(r, start, end) {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// overlaps mirrors the three-way predicate the SQL store uses: existing
// start in range, existing end in range, or existing request spans range.
func overlaps(r leave.LeaveRequest, start, end time.Time) bool {
	startsInRange := !r.StartDate.Before(start) && !r.StartDate.After(end)
	endsInRange := !r.EndDate.Before(start) && !r.EndDate.After(end)
	spansRange := !r.StartDate.After(start) && !r.EndDate.Before(end)
	return startsInRange || endsInRange || spansRange
}

func (s *Store) GetRequest(_ context.Context, requestID string) (*leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[requestID]
	if !ok {
		return nil, &leave.NotFoundError{Kind: "request", ID: requestID}
	}
	return &r, nil
}

func (s *Store) CreateRequest(_ context.Context, req leave.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = req
	return nil
}

func (s *Store) CountByStatus(_ context.Context, status leave.RequestStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, r := range s.requests {
		if r.Status == status {
			count++
		}
	}
	return count, nil
}

func (s *Store) ListPendingRequests(_ context.Context) ([]leave.PendingRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []leave.PendingRequest
	for _, r := range s.requests {
		if r.Status != leave.StatusPending {
			continue
		}
		u, ok := s.users[r.UserID]
		if !ok {
			continue
		}
		result = append(result, leave.PendingRequest{Request: r, User: u})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Request.ID < result[j].Request.ID
	})
	return result, nil
}

func (s *Store) ApprovePending(_ context.Context, ids []string, approvedBy string, approvedAt time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// All-or-nothing: verify every id is still pending before touching any.
	stillPending := 0
	for _, id := range ids {
		if r, ok := s.requests[id]; ok && r.Status == leave.StatusPending {
			stillPending++
		}
	}
	if stillPending != len(ids) {
		return 0, &leave.ConcurrencyError{Expected: len(ids), Actual: stillPending}
	}

	for _, id := range ids {
		r := s.requests[id]
		r.Status = leave.StatusApproved
		r.ApprovedBy = approvedBy
		at := approvedAt
		r.ApprovedAt = &at
		s.requests[id] = r
	}
	return len(ids), nil
}

func (s *Store) UpdateStatus(_ context.Context, requestID string, status leave.RequestStatus, actorID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[requestID]
	if !ok {
		return &leave.NotFoundError{Kind: "request", ID: requestID}
	}
	r.Status = status
	if status == leave.StatusApproved {
		r.ApprovedBy = actorID
		t := at
		r.ApprovedAt = &t
	}
	s.requests[requestID] = r
	return nil
}

func (s *Store) InsertTOILLedgerEntry(_ context.Context, entry leave.TOILLedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[entry.UserID]
	if !ok {
		return &leave.NotFoundError{Kind: "user", ID: entry.UserID}
	}
	s.ledger[entry.UserID] = append([]leave.TOILLedgerEntry{entry}, s.ledger[entry.UserID]...)
	u.TOILBalance = entry.NewBalance
	s.users[entry.UserID] = u
	return nil
}

func (s *Store) GetTOILLedger(_ context.Context, userID string) ([]leave.TOILLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]leave.TOILLedgerEntry, len(s.ledger[userID]))
	copy(entries, s.ledger[userID])
	return entries, nil
}

var _ leave.Store = (*Store)(nil)
