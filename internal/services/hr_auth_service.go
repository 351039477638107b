package services

import (
	"context"
	"strings"

	"github.com/gatepass/checkout-backend/internal/models"
	"github.com/gatepass/checkout-backend/pkg/jwt"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// HRUserStore looks up staff accounts
type HRUserStore interface {
	GetByUsername(ctx context.Context, username string) (*models.HRUser, error)
}

// HRSession is an authenticated privileged session
type HRSession struct {
	Token    string
	Username string
}

// HRAuthService authenticates HR staff for the privileged history view
type HRAuthService struct {
	users      HRUserStore
	jwtService *jwt.Service
	logger     *logrus.Logger
}

// NewHRAuthService creates a new HR auth service
func NewHRAuthService(users HRUserStore, jwtService *jwt.Service, logger *logrus.Logger) *HRAuthService {
	return &HRAuthService{
		users:      users,
		jwtService: jwtService,
		logger:     logger,
	}
}

// Login verifies the credentials of an HR department account and signs a
// session token. Unknown users, wrong passwords and non-HR accounts all get
// the same answer.
func (s *HRAuthService) Login(ctx context.Context, username, password string) (*HRSession, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, validationError(CodeMissingFields, "Missing credentials")
	}

	denied := unauthorizedError(CodeInvalidCredentials, "Invalid credentials or insufficient permissions")

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, infrastructureError(err)
	}
	if user == nil {
		s.logger.WithField("username", username).Warn("HR login failed, unknown user")
		return nil, denied
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.WithField("username", username).Warn("HR login failed, wrong password")
		return nil, denied
	}

	if user.Department != models.HRDepartment {
		s.logger.WithFields(logrus.Fields{
			"username":   username,
			"department": user.Department,
		}).Warn("HR login refused, account is not in HR")
		return nil, denied
	}

	token, err := s.jwtService.GenerateHRToken(user.Username, user.Department)
	if err != nil {
		return nil, infrastructureError(err)
	}

	s.logger.WithField("username", username).Info("HR session opened")
	return &HRSession{Token: token, Username: user.Username}, nil
}

// HashPassword hashes a password for an auth_users row
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
