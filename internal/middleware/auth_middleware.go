package middleware

import (
	"net/http"

	"github.com/gatepass/checkout-backend/internal/models"
	"github.com/gatepass/checkout-backend/pkg/jwt"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// HRContextKey is the key used to store the HR session in Gin context
const HRContextKey = "hr_user"

// HRContext represents an authenticated HR staff member
type HRContext struct {
	Username   string `json:"username"`
	Department string `json:"department"`
}

// OptionalHRSession attaches the HR session to the context when the request
// carries a valid HR cookie. Requests without one pass through unprivileged.
func OptionalHRSession(jwtService *jwt.Service, session *CookieSession, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := session.Token(c)
		if token == "" {
			c.Next()
			return
		}

		claims, err := jwtService.ValidateHRToken(token)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"path":    c.Request.URL.Path,
				"ip":      c.ClientIP(),
				"expired": jwtService.IsTokenExpired(token),
			}).WithError(err).Debug("Ignoring invalid HR session cookie")
			c.Next()
			return
		}

		if claims.Department != models.HRDepartment {
			c.Next()
			return
		}

		c.Set(HRContextKey, HRContext{
			Username:   claims.Username,
			Department: claims.Department,
		})
		c.Next()
	}
}

// RequireHR rejects requests without an HR session. Use after OptionalHRSession.
func RequireHR() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetHRContext(c); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "HR login required",
				"code":    "HR_SESSION_REQUIRED",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetHRContext retrieves the HR session from Gin context
func GetHRContext(c *gin.Context) (HRContext, bool) {
	value, exists := c.Get(HRContextKey)
	if !exists {
		return HRContext{}, false
	}

	hrCtx, ok := value.(HRContext)
	if !ok {
		return HRContext{}, false
	}

	return hrCtx, true
}

// IsHR reports whether the request carries a valid HR session
func IsHR(c *gin.Context) bool {
	_, ok := GetHRContext(c)
	return ok
}
