/*
Package sqlite provides a SQLite-backed implementation of leave.Store.

PURPOSE:
  Implements the persistence interface using SQLite. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  users:           employee records with stored allowances and TOIL balance
  leave_requests:  all requests across the lifecycle
  toil_ledger:     append-only audit of TOIL balance changes

GUARDED TRANSITIONS:
  ApprovePending runs a single conditional
    UPDATE leave_requests SET status='approved' ...
    WHERE id IN (...) AND status='pending'
  inside a transaction and rolls back when fewer rows than expected were
  still pending. This is the database-level guard behind the bulk approval
  coordinator's optimistic count check.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, single writer at a time.

USAGE:
  store, err := sqlite.New(":memory:")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - leave/store.go: interface definition and atomicity contract
  - store/memory: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/agencyhq/leave-engine/leave"
)

const (
	dateFormat = "2006-01-02"
	timeFormat = time.RFC3339
)

// Store implements leave.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL,
		annual_allowance INTEGER,
		sick_allowance INTEGER,
		toil_balance TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		leave_type TEXT NOT NULL DEFAULT 'annual',
		status TEXT NOT NULL DEFAULT 'pending',
		hours TEXT,
		comments TEXT NOT NULL DEFAULT '',
		approved_by TEXT,
		approved_at TEXT,
		created_at TEXT NOT NULL,
		CHECK (end_date >= start_date)
	);

	CREATE INDEX IF NOT EXISTS idx_requests_user_status
		ON leave_requests(user_id, status);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON leave_requests(status);
	-- Hot path: approved requests by start date (balance aggregation,
	-- overlap queries)
	CREATE INDEX IF NOT EXISTS idx_requests_status_start
		ON leave_requests(status, start_date);

	-- TOIL ledger (append-only)
	CREATE TABLE IF NOT EXISTS toil_ledger (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		request_id TEXT NOT NULL,
		previous_balance TEXT NOT NULL,
		hours TEXT NOT NULL,
		new_balance TEXT NOT NULL,
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_toil_ledger_user
		ON toil_ledger(user_id, created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// USERS
// =============================================================================

// SaveUser inserts or replaces a user record.
func (s *Store) SaveUser(ctx context.Context, u leave.User) error {
	var annual, sick any
	if u.AnnualAllowance != nil {
		annual = *u.AnnualAllowance
	}
	if u.SickAllowance != nil {
		sick = *u.SickAllowance
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, annual_allowance, sick_allowance, toil_balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, email=excluded.email,
			annual_allowance=excluded.annual_allowance,
			sick_allowance=excluded.sick_allowance,
			toil_balance=excluded.toil_balance`,
		u.ID, u.Name, u.Email, annual, sick, u.TOILBalance.String(),
		time.Now().UTC().Format(timeFormat))
	return err
}

func (s *Store) GetUser(ctx context.Context, userID string) (*leave.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, annual_allowance, sick_allowance, toil_balance
		FROM users WHERE id = ?`, userID)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, &leave.NotFoundError{Kind: "user", ID: userID}
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*leave.User, error) {
	var u leave.User
	var annual, sick sql.NullInt64
	var toil string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &annual, &sick, &toil); err != nil {
		return nil, err
	}
	if annual.Valid {
		v := int(annual.Int64)
		u.AnnualAllowance = &v
	}
	if sick.Valid {
		v := int(sick.Int64)
		u.SickAllowance = &v
	}
	d, err := decimal.NewFromString(toil)
	if err != nil {
		return nil, fmt.Errorf("bad toil_balance for user %s: %w", u.ID, err)
	}
	u.TOILBalance = d
	return &u, nil
}

// =============================================================================
// PROFILES AND REQUESTS
// =============================================================================

func (s *Store) GetUserWithApprovedRequests(ctx context.Context, userID string, year int) (*leave.UserLeaveProfile, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	from, to := leave.YearRange(year)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, start_date, end_date, leave_type, status, hours,
		       comments, approved_by, approved_at, created_at
		FROM leave_requests
		WHERE user_id = ? AND status = ? AND start_date BETWEEN ? AND ?
		ORDER BY start_date`,
		userID, string(leave.StatusApproved),
		from.Format(dateFormat), to.Format(dateFormat))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var approved []leave.LeaveRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		approved = append(approved, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &leave.UserLeaveProfile{User: *user, Year: year, Approved: approved}, nil
}

func scanRequest(row rowScanner) (*leave.LeaveRequest, error) {
	var r leave.LeaveRequest
	var start, end, created string
	var leaveType, status string
	var hours, approvedBy, approvedAt sql.NullString

	if err := row.Scan(&r.ID, &r.UserID, &start, &end, &leaveType, &status,
		&hours, &r.Comments, &approvedBy, &approvedAt, &created); err != nil {
		return nil, err
	}

	var err error
	if r.StartDate, err = time.Parse(dateFormat, start); err != nil {
		return nil, err
	}
	if r.EndDate, err = time.Parse(dateFormat, end); err != nil {
		return nil, err
	}
	if r.CreatedAt, err = time.Parse(timeFormat, created); err != nil {
		return nil, err
	}
	r.Type = leave.LeaveType(leaveType)
	r.Status = leave.RequestStatus(status)
	if hours.Valid {
		d, err := decimal.NewFromString(hours.String)
		if err != nil {
			return nil, fmt.Errorf("bad hours for request %s: %w", r.ID, err)
		}
		r.Hours = &d
	}
	if approvedBy.Valid {
		r.ApprovedBy = approvedBy.String
	}
	if approvedAt.Valid {
		t, err := time.Parse(timeFormat, approvedAt.String)
		if err != nil {
			return nil, err
		}
		r.ApprovedAt = &t
	}
	return &r, nil
}

func (s *Store) GetRequest(ctx context.Context, requestID string) (*leave.LeaveRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, start_date, end_date, leave_type, status, hours,
		       comments, approved_by, approved_at, created_at
		FROM leave_requests WHERE id = ?`, requestID)
	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, &leave.NotFoundError{Kind: "request", ID: requestID}
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (s *Store) CreateRequest(ctx context.Context, req leave.LeaveRequest) error {
	var hours any
	if req.Hours != nil {
		hours = req.Hours.String()
	}
	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leave_requests
			(id, user_id, start_date, end_date, leave_type, status, hours, comments, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.UserID,
		req.StartDate.Format(dateFormat), req.EndDate.Format(dateFormat),
		string(req.Type.Normalize()), string(req.Status), hours, req.Comments,
		createdAt.Format(timeFormat))
	return err
}

// =============================================================================
// OVERLAP QUERY (UK agent conflicts)
// =============================================================================

func (s *Store) GetOverlappingApprovedRequests(ctx context.Context, start, end time.Time, emails []string, excludeUserID string) ([]leave.LeaveRequest, error) {
	if len(emails) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(emails)), ",")
	args := []any{string(leave.StatusApproved)}
	for _, e := range emails {
		args = append(args, e)
	}

	startStr := start.Format(dateFormat)
	endStr := end.Format(dateFormat)
	// Three equivalent overlap conditions: existing start in range, existing
	// end in range, or existing request fully spans the range.
	args = append(args,
		startStr, endStr,
		startStr, endStr,
		startStr, endStr)

	query := fmt.Sprintf(`
		SELECT r.id, r.user_id, r.start_date, r.end_date, r.leave_type, r.status,
		       r.hours, r.comments, r.approved_by, r.approved_at, r.created_at
		FROM leave_requests r
		JOIN users u ON u.id = r.user_id
		WHERE r.status = ?
		  AND u.email IN (%s)
		  AND (
			(r.start_date BETWEEN ? AND ?)
			OR (r.end_date BETWEEN ? AND ?)
			OR (r.start_date <= ? AND r.end_date >= ?)
		  )`, placeholders)

	if excludeUserID != "" {
		query += " AND r.user_id != ?"
		args = append(args, excludeUserID)
	}
	query += " ORDER BY r.start_date, r.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []leave.LeaveRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *req)
	}
	return result, rows.Err()
}

// =============================================================================
// STATUS COUNTS AND TRANSITIONS
// =============================================================================

func (s *Store) CountByStatus(ctx context.Context, status leave.RequestStatus) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM leave_requests WHERE status = ?`, string(status)).Scan(&count)
	return count, err
}

func (s *Store) ListPendingRequests(ctx context.Context) ([]leave.PendingRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.user_id, r.start_date, r.end_date, r.leave_type, r.status,
		       r.hours, r.comments, r.approved_by, r.approved_at, r.created_at,
		       u.id, u.name, u.email, u.annual_allowance, u.sick_allowance, u.toil_balance
		FROM leave_requests r
		JOIN users u ON u.id = r.user_id
		WHERE r.status = ?
		ORDER BY r.created_at, r.id`, string(leave.StatusPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []leave.PendingRequest
	for rows.Next() {
		var r leave.LeaveRequest
		var u leave.User
		var start, end, created, leaveType, status string
		var hours, approvedBy, approvedAt sql.NullString
		var annual, sick sql.NullInt64
		var toil string

		err := rows.Scan(&r.ID, &r.UserID, &start, &end, &leaveType, &status,
			&hours, &r.Comments, &approvedBy, &approvedAt, &created,
			&u.ID, &u.Name, &u.Email, &annual, &sick, &toil)
		if err != nil {
			return nil, err
		}

		if r.StartDate, err = time.Parse(dateFormat, start); err != nil {
			return nil, err
		}
		if r.EndDate, err = time.Parse(dateFormat, end); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = time.Parse(timeFormat, created); err != nil {
			return nil, err
		}
		r.Type = leave.LeaveType(leaveType)
		r.Status = leave.RequestStatus(status)
		if hours.Valid {
			d, err := decimal.NewFromString(hours.String)
			if err != nil {
				return nil, err
			}
			r.Hours = &d
		}
		if annual.Valid {
			v := int(annual.Int64)
			u.AnnualAllowance = &v
		}
		if sick.Valid {
			v := int(sick.Int64)
			u.SickAllowance = &v
		}
		if u.TOILBalance, err = decimal.NewFromString(toil); err != nil {
			return nil, err
		}

		result = append(result, leave.PendingRequest{Request: r, User: u})
	}
	return result, rows.Err()
}

func (s *Store) ApprovePending(ctx context.Context, ids []string, approvedBy string, approvedAt time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := []any{string(leave.StatusApproved), approvedBy, approvedAt.UTC().Format(timeFormat)}
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, string(leave.StatusPending))

	res, err := tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE leave_requests
		SET status = ?, approved_by = ?, approved_at = ?
		WHERE id IN (%s) AND status = ?`, placeholders), args...)
	if err != nil {
		return 0, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	// All-or-nothing: a shortfall means someone already acted on one of the
	// snapshotted requests. Roll back via the deferred Rollback.
	if int(affected) != len(ids) {
		return 0, &leave.ConcurrencyError{Expected: len(ids), Actual: int(affected)}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *Store) UpdateStatus(ctx context.Context, requestID string, status leave.RequestStatus, actorID string, at time.Time) error {
	var res sql.Result
	var err error
	if status == leave.StatusApproved {
		res, err = s.db.ExecContext(ctx, `
			UPDATE leave_requests SET status = ?, approved_by = ?, approved_at = ?
			WHERE id = ?`,
			string(status), actorID, at.UTC().Format(timeFormat), requestID)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE leave_requests SET status = ? WHERE id = ?`,
			string(status), requestID)
	}
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &leave.NotFoundError{Kind: "request", ID: requestID}
	}
	return nil
}

// =============================================================================
// TOIL LEDGER
// =============================================================================

func (s *Store) InsertTOILLedgerEntry(ctx context.Context, entry leave.TOILLedgerEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Balance update first: zero affected rows maps an unknown user to the
	// store contract's not-found error before the ledger INSERT can surface
	// it as a raw foreign key violation.
	res, err := tx.ExecContext(ctx,
		`UPDATE users SET toil_balance = ? WHERE id = ?`,
		entry.NewBalance.String(), entry.UserID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &leave.NotFoundError{Kind: "user", ID: entry.UserID}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO toil_ledger
			(id, user_id, request_id, previous_balance, hours, new_balance, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.RequestID,
		entry.PreviousBalance.String(), entry.Hours.String(), entry.NewBalance.String(),
		entry.CreatedBy, entry.CreatedAt.UTC().Format(timeFormat))
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) GetTOILLedger(ctx context.Context, userID string) ([]leave.TOILLedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, request_id, previous_balance, hours, new_balance, created_by, created_at
		FROM toil_ledger WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []leave.TOILLedgerEntry
	for rows.Next() {
		var e leave.TOILLedgerEntry
		var prev, hours, newBal, created string
		if err := rows.Scan(&e.ID, &e.UserID, &e.RequestID, &prev, &hours, &newBal, &e.CreatedBy, &created); err != nil {
			return nil, err
		}
		if e.PreviousBalance, err = decimal.NewFromString(prev); err != nil {
			return nil, err
		}
		if e.Hours, err = decimal.NewFromString(hours); err != nil {
			return nil, err
		}
		if e.NewBalance, err = decimal.NewFromString(newBal); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = time.Parse(timeFormat, created); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ leave.Store = (*Store)(nil)
