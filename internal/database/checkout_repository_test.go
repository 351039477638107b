package database

import (
	"context"
	"database/sql/driver"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gatepass/checkout-backend/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var checkoutColumnNames = []string{
	"id", "employee_no", "employee_name", "department", "location", "purpose",
	"status", "checkout_time", "checkin_time", "session_token", "created_at",
}

func newCheckoutRepo(t *testing.T) (*CheckoutRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewCheckoutRepository(Wrap(db)), mock
}

func checkoutRow(status models.CheckoutStatus, checkoutTime, checkinTime, token interface{}) *sqlmock.Rows {
	return sqlmock.NewRows(checkoutColumnNames).AddRow(
		uuid.New().String(), "E100", "Ana Perera", "HI", "Port", "Delivery",
		string(status), checkoutTime, checkinTime, token, time.Now(),
	)
}

func pendingRecord(token string) *models.CheckoutRecord {
	return &models.CheckoutRecord{
		EmployeeNo:   "E100",
		EmployeeName: "Ana Perera",
		Department:   "HI",
		Location:     "Port",
		Purpose:      "Delivery",
		SessionToken: &token,
		CreatedAt:    time.Now(),
	}
}

func TestCreatePending(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo, mock := newCheckoutRepo(t)
		record := pendingRecord("tok-1")

		mock.ExpectBegin()
		mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
			WithArgs("E100").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT status FROM checkouts WHERE employee_no`).
			WithArgs("E100").
			WillReturnRows(sqlmock.NewRows([]string{"status"}))
		mock.ExpectExec(`INSERT INTO checkouts`).
			WithArgs(sqlmock.AnyArg(), "E100", "Ana Perera", "HI", "Port", "Delivery",
				"PENDING", "tok-1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := repo.CreatePending(ctx, record)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, record.ID)
		assert.Equal(t, models.CheckoutStatusPending, record.Status)
		assert.Nil(t, record.CheckoutTime)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Existing pending record", func(t *testing.T) {
		repo, mock := newCheckoutRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
			WithArgs("E100").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT status FROM checkouts WHERE employee_no`).
			WithArgs("E100").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("PENDING"))
		mock.ExpectRollback()

		err := repo.CreatePending(ctx, pendingRecord("tok-2"))
		require.Error(t, err)

		var active *ActiveCheckoutError
		require.ErrorAs(t, err, &active)
		assert.Equal(t, models.CheckoutStatusPending, active.Status)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unique index violation", func(t *testing.T) {
		repo, mock := newCheckoutRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
			WithArgs("E100").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT status FROM checkouts WHERE employee_no`).
			WithArgs("E100").
			WillReturnRows(sqlmock.NewRows([]string{"status"}))
		mock.ExpectExec(`INSERT INTO checkouts`).
			WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
		mock.ExpectRollback()

		err := repo.CreatePending(ctx, pendingRecord("tok-3"))

		var active *ActiveCheckoutError
		require.ErrorAs(t, err, &active)
		assert.Empty(t, active.Status)
		assert.Contains(t, err.Error(), "already has an active checkout")

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Begin fails", func(t *testing.T) {
		repo, mock := newCheckoutRepo(t)

		mock.ExpectBegin().WillReturnError(fmt.Errorf("connection refused"))

		err := repo.CreatePending(ctx, pendingRecord("tok-4"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to begin transaction")

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFindActiveByToken(t *testing.T) {
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		repo, mock := newCheckoutRepo(t)

		mock.ExpectQuery(`SELECT (.+) FROM checkouts WHERE session_token = \$1 AND status IN`).
			WithArgs("tok").
			WillReturnRows(checkoutRow(models.CheckoutStatusPending, nil, nil, "tok"))

		record, err := repo.FindActiveByToken(ctx, "tok")
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, "E100", record.EmployeeNo)
		assert.Equal(t, models.CheckoutStatusPending, record.Status)
		require.NotNil(t, record.SessionToken)
		assert.Equal(t, "tok", *record.SessionToken)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not found", func(t *testing.T) {
		repo, mock := newCheckoutRepo(t)

		mock.ExpectQuery(`SELECT (.+) FROM checkouts WHERE session_token`).
			WithArgs("stale").
			WillReturnRows(sqlmock.NewRows(checkoutColumnNames))

		record, err := repo.FindActiveByToken(ctx, "stale")
		require.NoError(t, err)
		assert.Nil(t, record)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database error", func(t *testing.T) {
		repo, mock := newCheckoutRepo(t)

		mock.ExpectQuery(`SELECT (.+) FROM checkouts WHERE session_token`).
			WillReturnError(fmt.Errorf("database error"))

		record, err := repo.FindActiveByToken(ctx, "tok")
		assert.Error(t, err)
		assert.Nil(t, record)
		assert.Contains(t, err.Error(), "failed to find checkout by token")
	})
}

func TestConfirmPending(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	t.Run("Pending record confirmed", func(t *testing.T) {
		repo, mock := newCheckoutRepo(t)

		mock.ExpectQuery(`UPDATE checkouts SET status = 'OUT', checkout_time = \$1 WHERE session_token = \$2 AND status = 'PENDING' RETURNING`).
			WithArgs(now, "tok").
			WillReturnRows(checkoutRow(models.CheckoutStatusOut, now, nil, "tok"))

		record, err := repo.ConfirmPending(ctx, "tok", now)
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, models.CheckoutStatusOut, record.Status)
		require.NotNil(t, record.CheckoutTime)
		assert.True(t, now.Equal(*record.CheckoutTime))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("No pending record", func(t *testing.T) {
		repo, mock := newCheckoutRepo(t)

		mock.ExpectQuery(`UPDATE checkouts SET status = 'OUT'`).
			WithArgs(now, "tok").
			WillReturnRows(sqlmock.NewRows(checkoutColumnNames))

		record, err := repo.ConfirmPending(ctx, "tok", now)
		require.NoError(t, err)
		assert.Nil(t, record)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCheckIn(t *testing.T) {
	ctx := context.Background()
	out := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	now := out.Add(2*time.Hour + 15*time.Minute + 30*time.Second)

	t.Run("Out record checked in", func(t *testing.T) {
		repo, mock := newCheckoutRepo(t)

		mock.ExpectQuery(`UPDATE checkouts SET status = 'IN', checkin_time = \$1 WHERE employee_no = \$2 AND status = 'OUT' RETURNING`).
			WithArgs(now, "E100").
			WillReturnRows(checkoutRow(models.CheckoutStatusIn, out, now, "tok"))

		record, err := repo.CheckIn(ctx, "E100", now)
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, models.CheckoutStatusIn, record.Status)
		assert.Equal(t, "2h 15m", models.FormatDuration(record.Duration()))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Lost race with daily sweep", func(t *testing.T) {
		repo, mock := newCheckoutRepo(t)

		mock.ExpectQuery(`UPDATE checkouts SET status = 'IN'`).
			WithArgs(now, "E100").
			WillReturnRows(sqlmock.NewRows(checkoutColumnNames))

		record, err := repo.CheckIn(ctx, "E100", now)
		require.NoError(t, err)
		assert.Nil(t, record)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database error", func(t *testing.T) {
		repo, mock := newCheckoutRepo(t)

		mock.ExpectQuery(`UPDATE checkouts SET status = 'IN'`).
			WillReturnError(fmt.Errorf("database error"))

		record, err := repo.CheckIn(ctx, "E100", now)
		assert.Error(t, err)
		assert.Nil(t, record)
		assert.Contains(t, err.Error(), "failed to check in")
	})
}

func TestListHistory(t *testing.T) {
	ctx := context.Background()
	out := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	t.Run("Privileged includes returned records", func(t *testing.T) {
		repo, mock := newCheckoutRepo(t)

		rows := checkoutRow(models.CheckoutStatusOut, out, nil, "tok")
		rows.AddRow(uuid.New().String(), "E200", "Ravi Silva", "QA", "Bank", "Errand",
			"IN", out.Add(-time.Hour), out, nil, out.Add(-2*time.Hour))

		mock.ExpectQuery(`FROM checkouts WHERE status IN \('OUT', 'IN'\) ORDER BY checkout_time DESC`).
			WillReturnRows(rows)

		records, err := repo.ListHistory(ctx, true)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, models.CheckoutStatusIn, records[1].Status)
		assert.Nil(t, records[1].SessionToken)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unprivileged only sees OUT records", func(t *testing.T) {
		repo, mock := newCheckoutRepo(t)

		mock.ExpectQuery(`FROM checkouts WHERE status = 'OUT' ORDER BY checkout_time DESC`).
			WillReturnRows(sqlmock.NewRows(checkoutColumnNames))

		records, err := repo.ListHistory(ctx, false)
		require.NoError(t, err)
		assert.NotNil(t, records)
		assert.Empty(t, records)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSweepStatements(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC)

	t.Run("Delete stale pending", func(t *testing.T) {
		repo, mock := newCheckoutRepo(t)
		cutoff := now.Add(-20 * time.Minute)

		mock.ExpectExec(`DELETE FROM checkouts WHERE status = 'PENDING' AND created_at < \$1`).
			WithArgs(cutoff).
			WillReturnResult(sqlmock.NewResult(0, 3))

		n, err := repo.DeleteStalePending(ctx, cutoff)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Clear expired tokens", func(t *testing.T) {
		repo, mock := newCheckoutRepo(t)
		cutoff := now.Add(-15 * time.Minute)

		mock.ExpectExec(`UPDATE checkouts SET session_token = NULL WHERE session_token IS NOT NULL AND status = 'IN'`).
			WithArgs(cutoff).
			WillReturnResult(sqlmock.NewResult(0, 2))

		n, err := repo.ClearExpiredTokens(ctx, cutoff)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Auto check in overdue", func(t *testing.T) {
		repo, mock := newCheckoutRepo(t)
		startOfDay := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

		mock.ExpectExec(`UPDATE checkouts SET status = 'IN', checkin_time = \$1, session_token = NULL WHERE status = 'OUT' AND checkout_time < \$2`).
			WithArgs(now, startOfDay).
			WillReturnResult(sqlmock.NewResult(0, 1))

		n, err := repo.AutoCheckInOverdue(ctx, startOfDay, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rows affected error", func(t *testing.T) {
		repo, mock := newCheckoutRepo(t)

		mock.ExpectExec(`DELETE FROM checkouts`).
			WillReturnResult(sqlmock.NewErrorResult(fmt.Errorf("driver does not support RowsAffected")))

		_, err := repo.DeleteStalePending(ctx, now)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get rows affected")
	})
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", &pq.Error{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(driver.ErrBadConn))
}
