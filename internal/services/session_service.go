package services

import (
	"context"
	"strings"

	"github.com/gatepass/checkout-backend/internal/models"
	"github.com/gatepass/checkout-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// TokenStore resolves session tokens against the record store
type TokenStore interface {
	FindActiveByToken(ctx context.Context, token string) (*models.CheckoutRecord, error)
}

// SessionService is the session token broker. It issues the opaque token bound
// to a kiosk device at pre-registration and resolves it to the record it
// belongs to while that record is PENDING or OUT. Tokens are never rotated
// within a checkout cycle.
type SessionService struct {
	store    TokenStore
	logger   *logrus.Logger
	generate func() (string, error)
}

// NewSessionService creates a new session token broker
func NewSessionService(store TokenStore, logger *logrus.Logger) *SessionService {
	return &SessionService{
		store:    store,
		logger:   logger,
		generate: utils.GenerateSessionToken,
	}
}

// Issue generates a fresh token for a new checkout
func (s *SessionService) Issue() (string, error) {
	return s.generate()
}

// Resolve returns the PENDING or OUT record bound to token. A blank, cleared
// or finished token resolves to nil without error.
func (s *SessionService) Resolve(ctx context.Context, token string) (*models.CheckoutRecord, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	return s.store.FindActiveByToken(ctx, token)
}

// Status projects the device session. Store failures are logged and reported
// as no active session.
func (s *SessionService) Status(ctx context.Context, token string) models.SessionStatus {
	record, err := s.Resolve(ctx, token)
	if err != nil {
		s.logger.WithError(err).Error("Failed to resolve session token")
		return models.SessionStatus{Active: false}
	}
	if record == nil {
		return models.SessionStatus{Active: false}
	}
	return models.SessionStatus{
		Active:     true,
		EmployeeNo: record.EmployeeNo,
		Status:     record.Status,
	}
}
