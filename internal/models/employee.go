package models

// Employee is the read-only employee directory entry
type Employee struct {
	EmployeeNo   string `json:"employeeNo" db:"employee_no"`
	EmployeeName string `json:"employeeName" db:"employee_name"`
	Department   string `json:"department" db:"department"`
}
