package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gatepass/checkout-backend/internal/models"
)

// HRUserRepository handles HR account lookups
type HRUserRepository struct {
	db DB
}

// NewHRUserRepository creates a new HR user repository
func NewHRUserRepository(db DB) *HRUserRepository {
	return &HRUserRepository{db: db}
}

// GetByUsername returns the account, or nil if it does not exist
func (r *HRUserRepository) GetByUsername(ctx context.Context, username string) (*models.HRUser, error) {
	var user models.HRUser
	err := r.db.GetContext(ctx, &user, `
		SELECT username, password_hash, department
		FROM auth_users
		WHERE username = $1
		LIMIT 1
	`, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get auth user: %w", err)
	}
	return &user, nil
}
