package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gatepass/checkout-backend/internal/database"
	"github.com/gatepass/checkout-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// CheckoutStore is the part of the record store the state machine mutates
type CheckoutStore interface {
	CreatePending(ctx context.Context, record *models.CheckoutRecord) error
	ConfirmPending(ctx context.Context, token string, now time.Time) (*models.CheckoutRecord, error)
	CheckIn(ctx context.Context, employeeNo string, now time.Time) (*models.CheckoutRecord, error)
	FindOutByEmployee(ctx context.Context, employeeNo string) (*models.CheckoutRecord, error)
	ListHistory(ctx context.Context, includeReturned bool) ([]models.CheckoutRecord, error)
}

// EmployeeDirectory looks up employees by number
type EmployeeDirectory interface {
	GetByEmployeeNo(ctx context.Context, employeeNo string) (*models.Employee, error)
}

// PendingCheckout is the result of a successful pre-registration
type PendingCheckout struct {
	Token   string
	Message string
	Record  *models.CheckoutRecord
}

// CheckinResult is the result of a successful check-in
type CheckinResult struct {
	Record   *models.CheckoutRecord
	Duration string
}

// CheckoutService is the checkout state machine. Every transition is a single
// preconditioned store operation; nothing about record state is cached.
type CheckoutService struct {
	records   CheckoutStore
	employees EmployeeDirectory
	sessions  *SessionService
	notifier  Notifier
	now       Clock
	logger    *logrus.Logger
}

// NewCheckoutService creates a new checkout state machine
func NewCheckoutService(
	records CheckoutStore,
	employees EmployeeDirectory,
	sessions *SessionService,
	notifier Notifier,
	logger *logrus.Logger,
) *CheckoutService {
	return &CheckoutService{
		records:   records,
		employees: employees,
		sessions:  sessions,
		notifier:  notifier,
		now:       time.Now,
		logger:    logger,
	}
}

// WithClock replaces the service clock
func (s *CheckoutService) WithClock(clock Clock) *CheckoutService {
	s.now = clock
	return s
}

// GetEmployee returns an employee from the directory
func (s *CheckoutService) GetEmployee(ctx context.Context, employeeNo string) (*models.Employee, error) {
	employeeNo = strings.TrimSpace(employeeNo)
	if employeeNo == "" {
		return nil, validationError(CodeMissingFields, "Employee number is required")
	}

	employee, err := s.employees.GetByEmployeeNo(ctx, employeeNo)
	if err != nil {
		return nil, infrastructureError(err)
	}
	if employee == nil {
		return nil, notFoundError(CodeEmployeeNotFound, "Employee not found")
	}
	return employee, nil
}

// Create pre-registers a checkout in PENDING and issues its session token
func (s *CheckoutService) Create(ctx context.Context, req models.CreateCheckoutRequest) (*PendingCheckout, error) {
	req.EmployeeNo = strings.TrimSpace(req.EmployeeNo)
	req.Department = strings.TrimSpace(req.Department)
	req.Location = strings.TrimSpace(req.Location)
	req.Purpose = strings.TrimSpace(req.Purpose)

	if req.EmployeeNo == "" || req.Department == "" || req.Location == "" || req.Purpose == "" {
		return nil, validationError(CodeMissingFields, "Employee number, department, location and purpose are required")
	}

	employee, err := s.GetEmployee(ctx, req.EmployeeNo)
	if err != nil {
		return nil, err
	}

	token, err := s.sessions.Issue()
	if err != nil {
		return nil, infrastructureError(err)
	}

	record := &models.CheckoutRecord{
		EmployeeNo:   employee.EmployeeNo,
		EmployeeName: employee.EmployeeName,
		Department:   req.Department,
		Location:     req.Location,
		Purpose:      req.Purpose,
		SessionToken: &token,
		CreatedAt:    s.now(),
	}

	if err := s.records.CreatePending(ctx, record); err != nil {
		var active *database.ActiveCheckoutError
		if errors.As(err, &active) {
			s.logger.WithFields(logrus.Fields{
				"employee_no": req.EmployeeNo,
				"status":      active.Status,
			}).Info("Checkout rejected, employee already has an active record")
			return nil, activeCheckoutConflict(active)
		}
		return nil, infrastructureError(err)
	}

	s.logger.WithFields(logrus.Fields{
		"employee_no": record.EmployeeNo,
		"record_id":   record.ID,
		"department":  record.Department,
	}).Info("Checkout pre-registered")

	return &PendingCheckout{
		Token:   token,
		Message: "Pre-registration successful. Please scan at guardhouse to complete checkout.",
		Record:  record,
	}, nil
}

// Confirm moves the PENDING record bound to token to OUT and queues the
// checkout notification. The token stays bound to the record.
func (s *CheckoutService) Confirm(ctx context.Context, token string) (*models.CheckoutRecord, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, validationError(CodeNoSession, "No session found. Please pre-register from your workstation first.")
	}

	record, err := s.records.ConfirmPending(ctx, token, s.now())
	if err != nil {
		return nil, infrastructureError(err)
	}
	if record == nil {
		return nil, notFoundError(CodeNoPendingCheckout, "No pending checkout found or already confirmed")
	}

	s.logger.WithFields(logrus.Fields{
		"employee_no": record.EmployeeNo,
		"record_id":   record.ID,
	}).Info("Checkout confirmed at guardhouse")

	s.notifier.Enqueue(NewCheckoutEvent(record))

	return record, nil
}

// CheckIn moves the employee's OUT record to IN and queues the check-in
// notification. Losing a race against the daily sweep is reported as no
// active checkout, so the notification fires at most once.
func (s *CheckoutService) CheckIn(ctx context.Context, employeeNo string) (*CheckinResult, error) {
	employeeNo = strings.TrimSpace(employeeNo)
	if employeeNo == "" {
		return nil, validationError(CodeMissingFields, "Employee number is required")
	}

	record, err := s.records.CheckIn(ctx, employeeNo, s.now())
	if err != nil {
		return nil, infrastructureError(err)
	}
	if record == nil {
		return nil, forbiddenError(CodeNoActiveCheckout, "No active checkout found or already checked-in")
	}

	duration := models.FormatDuration(record.Duration())

	s.logger.WithFields(logrus.Fields{
		"employee_no": record.EmployeeNo,
		"record_id":   record.ID,
		"duration":    duration,
	}).Info("Employee checked in")

	s.notifier.Enqueue(NewCheckinEvent(record, duration))

	return &CheckinResult{Record: record, Duration: duration}, nil
}

// SessionStatus reports whether token is bound to a PENDING or OUT record
func (s *CheckoutService) SessionStatus(ctx context.Context, token string) models.SessionStatus {
	return s.sessions.Status(ctx, token)
}

// CheckoutStatus reports the employee's OUT record, if any
func (s *CheckoutService) CheckoutStatus(ctx context.Context, employeeNo string) (*models.ActiveCheckoutStatus, error) {
	employeeNo = strings.TrimSpace(employeeNo)
	if employeeNo == "" {
		return &models.ActiveCheckoutStatus{Active: false}, nil
	}

	record, err := s.records.FindOutByEmployee(ctx, employeeNo)
	if err != nil {
		return nil, infrastructureError(err)
	}
	if record == nil {
		return &models.ActiveCheckoutStatus{Active: false}, nil
	}

	return &models.ActiveCheckoutStatus{
		Active:       true,
		EmployeeNo:   record.EmployeeNo,
		EmployeeName: record.EmployeeName,
		Department:   record.Department,
		Location:     record.Location,
		Purpose:      record.Purpose,
		CheckoutTime: models.FormatTimestamp(record.CheckoutTime),
	}, nil
}

// History lists checkouts newest first. Privileged callers also see returned
// records along with their check-in time and status.
func (s *CheckoutService) History(ctx context.Context, privileged bool) ([]models.HistoryEntry, error) {
	records, err := s.records.ListHistory(ctx, privileged)
	if err != nil {
		return nil, infrastructureError(err)
	}

	entries := make([]models.HistoryEntry, 0, len(records))
	for i := range records {
		entries = append(entries, models.NewHistoryEntry(&records[i], privileged))
	}
	return entries, nil
}

func activeCheckoutConflict(err *database.ActiveCheckoutError) *CheckoutError {
	if err.Status == models.CheckoutStatusPending {
		return conflictError(CodePendingCheckoutExists,
			"You already have a pending checkout. Please scan at guardhouse to confirm.", err)
	}
	return conflictError(CodeActiveCheckoutExists, "You already have an active checkout", err)
}
