package handlers

import (
	"context"
	"net/http"

	"github.com/gatepass/checkout-backend/internal/middleware"
	"github.com/gatepass/checkout-backend/internal/models"
	"github.com/gatepass/checkout-backend/internal/services"
	"github.com/gatepass/checkout-backend/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// HRAuthenticator verifies HR credentials
type HRAuthenticator interface {
	Login(ctx context.Context, username, password string) (*services.HRSession, error)
}

// HRAuthHandler handles HR login and logout
type HRAuthHandler struct {
	auth    HRAuthenticator
	session *middleware.CookieSession
	logger  *logrus.Logger
}

// NewHRAuthHandler creates a new HR auth handler
func NewHRAuthHandler(auth HRAuthenticator, session *middleware.CookieSession, logger *logrus.Logger) *HRAuthHandler {
	return &HRAuthHandler{
		auth:    auth,
		session: session,
		logger:  logger,
	}
}

// Login handles POST /hr-login
func (h *HRAuthHandler) Login(c *gin.Context) {
	var req models.HRLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   string(services.KindValidation),
			Message: "Missing credentials",
			Code:    services.CodeMissingFields,
		})
		return
	}

	session, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.logger.WithFields(utils.ClientFields(c)).WithField("username", req.Username).Warn("HR login rejected")
		respondError(c, h.logger, err)
		return
	}

	h.session.Set(c, session.Token)
	c.JSON(http.StatusOK, gin.H{"success": true, "username": session.Username})
}

// Logout handles POST /hr-logout
func (h *HRAuthHandler) Logout(c *gin.Context) {
	h.session.Clear(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
