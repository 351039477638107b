package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gatepass/checkout-backend/internal/middleware"
	"github.com/gatepass/checkout-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SweepRunner exposes the reconciliation scheduler to operators
type SweepRunner interface {
	Status() []services.SweepStatus
	RunNow(ctx context.Context, name services.SweepName) (*services.SweepResult, error)
}

// AdminHandler handles HR-only sweep administration
type AdminHandler struct {
	sweeps SweepRunner
	logger *logrus.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(sweeps SweepRunner, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{sweeps: sweeps, logger: logger}
}

// ListSweeps handles GET /admin/sweeps
func (h *AdminHandler) ListSweeps(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sweeps": h.sweeps.Status()})
}

// RunSweep handles POST /admin/sweeps/:name/run
func (h *AdminHandler) RunSweep(c *gin.Context) {
	name, ok := services.ParseSweepName(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   string(services.KindNotFound),
			Message: fmt.Sprintf("Unknown sweep %q", c.Param("name")),
			Code:    services.CodeUnknownSweep,
		})
		return
	}

	hrCtx, _ := middleware.GetHRContext(c)
	h.logger.WithFields(logrus.Fields{
		"job":          name,
		"requested_by": hrCtx.Username,
	}).Info("Manual sweep requested")

	result, err := h.sweeps.RunNow(c.Request.Context(), name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
