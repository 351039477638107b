package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gatepass/checkout-backend/pkg/jwt"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestJWTService() *jwt.Service {
	return jwt.NewService("test-hr-secret-key-123456789", time.Hour)
}

func setupTestRouter(jwtService *jwt.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	router := gin.New()
	router.Use(OptionalHRSession(jwtService, NewCookieSession("hr_session", time.Hour, false), logger))
	router.GET("/history", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"privileged": IsHR(c)})
	})
	router.GET("/admin", RequireHR(), func(c *gin.Context) {
		hrCtx, _ := GetHRContext(c)
		c.JSON(http.StatusOK, gin.H{"username": hrCtx.Username})
	})
	return router
}

func doRequest(router *gin.Engine, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestOptionalHRSession(t *testing.T) {
	jwtService := setupTestJWTService()
	router := setupTestRouter(jwtService)

	t.Run("No cookie", func(t *testing.T) {
		w := doRequest(router, "/history", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"privileged":false}`, w.Body.String())
	})

	t.Run("Valid HR cookie", func(t *testing.T) {
		token, err := jwtService.GenerateHRToken("hr.admin", "HR")
		require.NoError(t, err)

		w := doRequest(router, "/history", &http.Cookie{Name: "hr_session", Value: token})
		assert.JSONEq(t, `{"privileged":true}`, w.Body.String())
	})

	t.Run("Non-HR department", func(t *testing.T) {
		token, err := jwtService.GenerateHRToken("qa.lead", "QA")
		require.NoError(t, err)

		w := doRequest(router, "/history", &http.Cookie{Name: "hr_session", Value: token})
		assert.JSONEq(t, `{"privileged":false}`, w.Body.String())
	})

	t.Run("Tampered cookie", func(t *testing.T) {
		w := doRequest(router, "/history", &http.Cookie{Name: "hr_session", Value: "forged.token.value"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"privileged":false}`, w.Body.String())
	})

	t.Run("Expired cookie", func(t *testing.T) {
		expired := jwt.NewService("test-hr-secret-key-123456789", -time.Minute)
		token, err := expired.GenerateHRToken("hr.admin", "HR")
		require.NoError(t, err)

		w := doRequest(router, "/history", &http.Cookie{Name: "hr_session", Value: token})
		assert.JSONEq(t, `{"privileged":false}`, w.Body.String())
	})
}

func TestRequireHR(t *testing.T) {
	jwtService := setupTestJWTService()
	router := setupTestRouter(jwtService)

	t.Run("Rejected without session", func(t *testing.T) {
		w := doRequest(router, "/admin", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "HR_SESSION_REQUIRED")
	})

	t.Run("Allowed with session", func(t *testing.T) {
		token, err := jwtService.GenerateHRToken("hr.admin", "HR")
		require.NoError(t, err)

		w := doRequest(router, "/admin", &http.Cookie{Name: "hr_session", Value: token})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "hr.admin")
	})
}
