package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gatepass/checkout-backend/internal/models"
)

// EmployeeRepository reads the employee directory
type EmployeeRepository struct {
	db DB
}

// NewEmployeeRepository creates a new employee repository
func NewEmployeeRepository(db DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// GetByEmployeeNo returns the employee, or nil if unknown
func (r *EmployeeRepository) GetByEmployeeNo(ctx context.Context, employeeNo string) (*models.Employee, error) {
	var employee models.Employee
	err := r.db.GetContext(ctx, &employee, `
		SELECT employee_no, employee_name, department
		FROM employees
		WHERE employee_no = $1
		LIMIT 1
	`, employeeNo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return &employee, nil
}
