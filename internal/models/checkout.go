package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CheckoutStatus represents the lifecycle state of a checkout record
type CheckoutStatus string

const (
	CheckoutStatusPending CheckoutStatus = "PENDING"
	CheckoutStatusOut     CheckoutStatus = "OUT"
	CheckoutStatusIn      CheckoutStatus = "IN"
)

// TimestampLayout is the wire format for checkout timestamps (YYYY-MM-DD HH:MM:SS)
const TimestampLayout = "2006-01-02 15:04:05"

// IsActive reports whether the status still blocks a new checkout for the employee
func (s CheckoutStatus) IsActive() bool {
	return s == CheckoutStatusPending || s == CheckoutStatusOut
}

// CheckoutRecord is one checkout attempt. Employee name and department are
// snapshotted at creation.
type CheckoutRecord struct {
	ID           uuid.UUID      `json:"id" db:"id"`
	EmployeeNo   string         `json:"employeeNo" db:"employee_no"`
	EmployeeName string         `json:"employeeName" db:"employee_name"`
	Department   string         `json:"department" db:"department"`
	Location     string         `json:"location" db:"location"`
	Purpose      string         `json:"purpose" db:"purpose"`
	Status       CheckoutStatus `json:"status" db:"status"`
	CheckoutTime *time.Time     `json:"checkoutTime,omitempty" db:"checkout_time"`
	CheckinTime  *time.Time     `json:"checkinTime,omitempty" db:"checkin_time"`
	SessionToken *string        `json:"-" db:"session_token"`
	CreatedAt    time.Time      `json:"createdAt" db:"created_at"`
}

// Duration returns the time spent off-premise, or zero if the record is not IN
func (r *CheckoutRecord) Duration() time.Duration {
	if r.CheckoutTime == nil || r.CheckinTime == nil {
		return 0
	}
	return r.CheckinTime.Sub(*r.CheckoutTime)
}

// FormatDuration renders whole hours and minutes, truncating seconds.
// Negative durations (clock skew) render as zero.
func FormatDuration(d time.Duration) string {
	seconds := int64(d / time.Second)
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
}

// FormatTimestamp renders an optional timestamp, nil when unset
func FormatTimestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(TimestampLayout)
	return &s
}

// CreateCheckoutRequest represents a pre-registration from a workstation
type CreateCheckoutRequest struct {
	EmployeeNo string `json:"employeeNo" binding:"required"`
	Department string `json:"department" binding:"required"`
	Location   string `json:"location" binding:"required"`
	Purpose    string `json:"purpose" binding:"required"`
}

// SessionStatus is the projection returned for a device session lookup
type SessionStatus struct {
	Active     bool           `json:"active"`
	EmployeeNo string         `json:"employeeNo,omitempty"`
	Status     CheckoutStatus `json:"status,omitempty"`
}

// ActiveCheckoutStatus is the projection returned for an employee's OUT record
type ActiveCheckoutStatus struct {
	Active       bool    `json:"active"`
	EmployeeNo   string  `json:"employeeNo,omitempty"`
	EmployeeName string  `json:"employeeName,omitempty"`
	Department   string  `json:"department,omitempty"`
	Location     string  `json:"location,omitempty"`
	Purpose      string  `json:"purpose,omitempty"`
	CheckoutTime *string `json:"checkoutTime,omitempty"`
}

// HistoryEntry is one row of the checkout history listing. CheckinTime and
// Status are only populated for privileged callers.
type HistoryEntry struct {
	EmployeeNo   string          `json:"employeeNo"`
	EmployeeName string          `json:"employeeName"`
	Department   string          `json:"department"`
	Location     string          `json:"location"`
	Purpose      string          `json:"purpose"`
	CheckoutTime *string         `json:"checkoutTime"`
	CheckinTime  *string         `json:"checkinTime,omitempty"`
	Status       *CheckoutStatus `json:"status,omitempty"`
}

// NewHistoryEntry projects a record for the history listing
func NewHistoryEntry(r *CheckoutRecord, privileged bool) HistoryEntry {
	entry := HistoryEntry{
		EmployeeNo:   r.EmployeeNo,
		EmployeeName: r.EmployeeName,
		Department:   r.Department,
		Location:     r.Location,
		Purpose:      r.Purpose,
		CheckoutTime: FormatTimestamp(r.CheckoutTime),
	}
	if privileged {
		status := r.Status
		entry.Status = &status
		entry.CheckinTime = FormatTimestamp(r.CheckinTime)
	}
	return entry
}
