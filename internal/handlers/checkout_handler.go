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

// CheckoutService is the state machine surface used by the handler
type CheckoutService interface {
	GetEmployee(ctx context.Context, employeeNo string) (*models.Employee, error)
	Create(ctx context.Context, req models.CreateCheckoutRequest) (*services.PendingCheckout, error)
	Confirm(ctx context.Context, token string) (*models.CheckoutRecord, error)
	CheckIn(ctx context.Context, employeeNo string) (*services.CheckinResult, error)
	SessionStatus(ctx context.Context, token string) models.SessionStatus
	CheckoutStatus(ctx context.Context, employeeNo string) (*models.ActiveCheckoutStatus, error)
	History(ctx context.Context, privileged bool) ([]models.HistoryEntry, error)
}

// CheckoutHandler handles the kiosk and workstation checkout endpoints
type CheckoutHandler struct {
	checkouts CheckoutService
	device    *middleware.CookieSession
	logger    *logrus.Logger
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkouts CheckoutService, device *middleware.CookieSession, logger *logrus.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkouts: checkouts,
		device:    device,
		logger:    logger,
	}
}

// CreateCheckoutResponse is returned after a successful pre-registration
type CreateCheckoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token"`
}

// ConfirmCheckoutResponse is returned after guardhouse confirmation
type ConfirmCheckoutResponse struct {
	Success      bool    `json:"success"`
	EmployeeNo   string  `json:"employeeNo"`
	EmployeeName string  `json:"employeeName"`
	Department   string  `json:"department"`
	Location     string  `json:"location"`
	Purpose      string  `json:"purpose"`
	CheckoutTime *string `json:"checkoutTime"`
}

// CheckinResponse is returned after a successful check-in
type CheckinResponse struct {
	Success  bool   `json:"success"`
	Duration string `json:"duration"`
}

// GetEmployee handles GET /employee/:no
func (h *CheckoutHandler) GetEmployee(c *gin.Context) {
	employee, err := h.checkouts.GetEmployee(c.Request.Context(), c.Param("no"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, employee)
}

// CreateCheckout handles POST /checkout
func (h *CheckoutHandler) CreateCheckout(c *gin.Context) {
	var req models.CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   string(services.KindValidation),
			Message: "Missing fields",
			Code:    services.CodeMissingFields,
		})
		return
	}

	pending, err := h.checkouts.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(utils.ClientFields(c)).WithField("employee_no", pending.Record.EmployeeNo).
		Info("Device session issued")

	h.device.Set(c, pending.Token)
	c.JSON(http.StatusOK, CreateCheckoutResponse{
		Success: true,
		Message: pending.Message,
		Token:   pending.Token,
	})
}

// ConfirmCheckout handles POST /confirm-checkout
func (h *CheckoutHandler) ConfirmCheckout(c *gin.Context) {
	record, err := h.checkouts.Confirm(c.Request.Context(), h.device.Token(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(utils.ClientFields(c)).WithField("employee_no", record.EmployeeNo).
		Info("Guardhouse confirmation accepted")

	c.JSON(http.StatusOK, ConfirmCheckoutResponse{
		Success:      true,
		EmployeeNo:   record.EmployeeNo,
		EmployeeName: record.EmployeeName,
		Department:   record.Department,
		Location:     record.Location,
		Purpose:      record.Purpose,
		CheckoutTime: models.FormatTimestamp(record.CheckoutTime),
	})
}

// CheckIn handles PUT /checkin/:employeeNo
func (h *CheckoutHandler) CheckIn(c *gin.Context) {
	result, err := h.checkouts.CheckIn(c.Request.Context(), c.Param("employeeNo"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.device.Clear(c)
	c.JSON(http.StatusOK, CheckinResponse{Success: true, Duration: result.Duration})
}

// SessionStatus handles GET /session-status. It never fails.
func (h *CheckoutHandler) SessionStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.checkouts.SessionStatus(c.Request.Context(), h.device.Token(c)))
}

// CheckoutStatus handles GET /checkout-status/:no
func (h *CheckoutHandler) CheckoutStatus(c *gin.Context) {
	status, err := h.checkouts.CheckoutStatus(c.Request.Context(), c.Param("no"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// CheckoutHistory handles GET /checkout-history. HR sessions also see
// returned records.
func (h *CheckoutHandler) CheckoutHistory(c *gin.Context) {
	entries, err := h.checkouts.History(c.Request.Context(), middleware.IsHR(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
