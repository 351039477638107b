package models

// HRDepartment is the department whose staff may open a privileged session
const HRDepartment = "HR"

// HRUser represents a staff account allowed to view full checkout history
type HRUser struct {
	Username     string `json:"username" db:"username"`
	PasswordHash string `json:"-" db:"password_hash"`
	Department   string `json:"department" db:"department"`
}

// HRLoginRequest represents the HR login request
type HRLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}
