package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gatepass/checkout-backend/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// uniqueViolation is the Postgres SQLSTATE for a unique index conflict
const uniqueViolation = "23505"

const checkoutColumns = `id, employee_no, employee_name, department, location, purpose,
		status, checkout_time, checkin_time, session_token, created_at`

// ActiveCheckoutError is returned when an employee already holds a PENDING or
// OUT record. Status is empty when the conflict was caught by the unique index.
type ActiveCheckoutError struct {
	EmployeeNo string
	Status     models.CheckoutStatus
}

func (e *ActiveCheckoutError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("employee %s already has an active checkout", e.EmployeeNo)
	}
	return fmt.Sprintf("employee %s already has a %s checkout", e.EmployeeNo, e.Status)
}

// CheckoutRepository is the record store for checkout records
type CheckoutRepository struct {
	db DB
}

// NewCheckoutRepository creates a new checkout repository
func NewCheckoutRepository(db DB) *CheckoutRepository {
	return &CheckoutRepository{db: db}
}

// CreatePending inserts a PENDING record. The active-record check and the
// insert run in one transaction under a per-employee advisory lock, and the
// partial unique index on active rows backs it up.
func (r *CheckoutRepository) CreatePending(ctx context.Context, record *models.CheckoutRecord) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, record.EmployeeNo); err != nil {
		return fmt.Errorf("failed to lock employee: %w", err)
	}

	var existing models.CheckoutStatus
	err = tx.GetContext(ctx, &existing, `
		SELECT status
		FROM checkouts
		WHERE employee_no = $1 AND status IN ('PENDING', 'OUT')
		LIMIT 1
	`, record.EmployeeNo)
	switch {
	case err == nil:
		return &ActiveCheckoutError{EmployeeNo: record.EmployeeNo, Status: existing}
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("failed to check active checkout: %w", err)
	}

	record.ID = uuid.New()
	record.Status = models.CheckoutStatusPending
	record.CheckoutTime = nil
	record.CheckinTime = nil

	_, err = tx.ExecContext(ctx, `
		INSERT INTO checkouts (
			id, employee_no, employee_name, department, location, purpose,
			status, checkout_time, session_token, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, $8, $9)
	`,
		record.ID, record.EmployeeNo, record.EmployeeName, record.Department,
		record.Location, record.Purpose, record.Status, record.SessionToken, record.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &ActiveCheckoutError{EmployeeNo: record.EmployeeNo}
		}
		return fmt.Errorf("failed to insert checkout: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return &ActiveCheckoutError{EmployeeNo: record.EmployeeNo}
		}
		return fmt.Errorf("failed to commit checkout: %w", err)
	}

	return nil
}

// FindActiveByToken resolves a session token to its PENDING or OUT record
func (r *CheckoutRepository) FindActiveByToken(ctx context.Context, token string) (*models.CheckoutRecord, error) {
	var record models.CheckoutRecord
	err := r.db.GetContext(ctx, &record, `
		SELECT `+checkoutColumns+`
		FROM checkouts
		WHERE session_token = $1 AND status IN ('PENDING', 'OUT')
		LIMIT 1
	`, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find checkout by token: %w", err)
	}
	return &record, nil
}

// FindOutByEmployee returns the employee's OUT record, if any
func (r *CheckoutRepository) FindOutByEmployee(ctx context.Context, employeeNo string) (*models.CheckoutRecord, error) {
	var record models.CheckoutRecord
	err := r.db.GetContext(ctx, &record, `
		SELECT `+checkoutColumns+`
		FROM checkouts
		WHERE employee_no = $1 AND status = 'OUT'
		LIMIT 1
	`, employeeNo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active checkout: %w", err)
	}
	return &record, nil
}

// ConfirmPending moves the PENDING record bound to token to OUT.
// Returns nil when no PENDING record matches.
func (r *CheckoutRepository) ConfirmPending(ctx context.Context, token string, now time.Time) (*models.CheckoutRecord, error) {
	var record models.CheckoutRecord
	err := r.db.GetContext(ctx, &record, `
		UPDATE checkouts
		SET status = 'OUT', checkout_time = $1
		WHERE session_token = $2 AND status = 'PENDING'
		RETURNING `+checkoutColumns,
		now, token,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to confirm checkout: %w", err)
	}
	return &record, nil
}

// CheckIn moves the employee's OUT record to IN. The status predicate makes
// this safe against a concurrent daily sweep: the loser updates zero rows.
// Returns nil when no OUT record matches.
func (r *CheckoutRepository) CheckIn(ctx context.Context, employeeNo string, now time.Time) (*models.CheckoutRecord, error) {
	var record models.CheckoutRecord
	err := r.db.GetContext(ctx, &record, `
		UPDATE checkouts
		SET status = 'IN', checkin_time = $1
		WHERE employee_no = $2 AND status = 'OUT'
		RETURNING `+checkoutColumns,
		now, employeeNo,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to check in: %w", err)
	}
	return &record, nil
}

// ListHistory lists OUT records, plus IN records when includeReturned is set,
// newest checkout first
func (r *CheckoutRepository) ListHistory(ctx context.Context, includeReturned bool) ([]models.CheckoutRecord, error) {
	filter := `status = 'OUT'`
	if includeReturned {
		filter = `status IN ('OUT', 'IN')`
	}

	records := []models.CheckoutRecord{}
	err := r.db.SelectContext(ctx, &records, `
		SELECT `+checkoutColumns+`
		FROM checkouts
		WHERE `+filter+`
		ORDER BY checkout_time DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkout history: %w", err)
	}
	return records, nil
}

// ListAll returns every record for export
func (r *CheckoutRepository) ListAll(ctx context.Context) ([]models.CheckoutRecord, error) {
	records := []models.CheckoutRecord{}
	err := r.db.SelectContext(ctx, &records, `
		SELECT `+checkoutColumns+`
		FROM checkouts
		ORDER BY checkout_time DESC NULLS LAST
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkouts: %w", err)
	}
	return records, nil
}

// DeleteStalePending removes PENDING records created before cutoff
func (r *CheckoutRepository) DeleteStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM checkouts
		WHERE status = 'PENDING' AND created_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale pending checkouts: %w", err)
	}
	return rowsAffected(result)
}

// ClearExpiredTokens clears session tokens of IN records checked in before cutoff
func (r *CheckoutRepository) ClearExpiredTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE checkouts
		SET session_token = NULL
		WHERE session_token IS NOT NULL
		  AND status = 'IN'
		  AND checkin_time IS NOT NULL
		  AND checkin_time < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clear session tokens: %w", err)
	}
	return rowsAffected(result)
}

// AutoCheckInOverdue force-checks-in OUT records whose checkout happened
// before startOfDay
func (r *CheckoutRepository) AutoCheckInOverdue(ctx context.Context, startOfDay, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE checkouts
		SET status = 'IN', checkin_time = $1, session_token = NULL
		WHERE status = 'OUT' AND checkout_time < $2
	`, now, startOfDay)
	if err != nil {
		return 0, fmt.Errorf("failed to auto check in overdue checkouts: %w", err)
	}
	return rowsAffected(result)
}

func rowsAffected(result sql.Result) (int64, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
