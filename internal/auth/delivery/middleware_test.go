package delivery

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"plantpal-backend/internal/auth/repository"
	"plantpal-backend/internal/auth/usecase"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(verifier usecase.TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	devices := NewDeviceHandler(usecase.NewDeviceUsecase(repository.NewMemoryDeviceTokenRepository()))
	protected := r.Group("/api", AuthMiddleware(verifier))
	protected.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("userID"))
	})
	protected.POST("/devices", devices.RegisterDevice)
	return r
}

func TestAuthMiddleware(t *testing.T) {
	verifier := usecase.NewJWTVerifier("secret")
	r := newTestRouter(verifier)
	token, err := verifier.IssueToken("u1", time.Minute)
	require.NoError(t, err)

	cases := []struct {
		name   string
		target string
		header string
		code   int
		body   string
	}{
		{name: "missing header", target: "/api/whoami", code: http.StatusUnauthorized},
		{name: "wrong scheme", target: "/api/whoami", header: "Token " + token, code: http.StatusUnauthorized},
		{name: "bad token", target: "/api/whoami", header: "Bearer nope", code: http.StatusUnauthorized},
		{name: "bearer", target: "/api/whoami", header: "Bearer " + token, code: http.StatusOK, body: "u1"},
		{name: "query token", target: "/api/whoami?access_token=" + token, code: http.StatusOK, body: "u1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.code, w.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, w.Body.String())
			}
		})
	}
}

func TestDeviceHandler_Register(t *testing.T) {
	verifier := usecase.NewJWTVerifier("secret")
	r := newTestRouter(verifier)
	token, _ := verifier.IssueToken("u1", time.Minute)

	req := httptest.NewRequest(http.MethodPost, "/api/devices", strings.NewReader(`{"token":"fcm-1","device_info":"pixel"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/devices", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
