package handlers

import (
	"net/http"

	"github.com/gatepass/checkout-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

var kindStatus = map[services.ErrorKind]int{
	services.KindValidation:     http.StatusBadRequest,
	services.KindNotFound:       http.StatusNotFound,
	services.KindConflict:       http.StatusBadRequest,
	services.KindForbidden:      http.StatusForbidden,
	services.KindUnauthorized:   http.StatusUnauthorized,
	services.KindInfrastructure: http.StatusInternalServerError,
}

// respondError writes the structured response for err. Infrastructure
// details go to the log only.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	ce := services.AsCheckoutError(err)

	status, ok := kindStatus[ce.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	if ce.Kind == services.KindInfrastructure {
		logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).WithError(ce.Err).Error("Request failed with infrastructure error")
	}

	c.JSON(status, ErrorResponse{
		Error:   string(ce.Kind),
		Message: ce.Message,
		Code:    ce.Code,
	})
}
