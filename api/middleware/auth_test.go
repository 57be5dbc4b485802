package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func authRouter(token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/admin", AdminAuth(token), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestAdminAuthRejectsMissingToken(t *testing.T) {
	router := authRouter("secret")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuthAcceptsHeaderToken(t *testing.T) {
	router := authRouter("secret")

	req := httptest.NewRequest(http.MethodPost, "/admin", nil)
	req.Header.Set("X-Admin-Token", "secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestAdminAuthAcceptsBearerToken(t *testing.T) {
	router := authRouter("secret")

	req := httptest.NewRequest(http.MethodPost, "/admin", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestAdminAuthDisabledWhenUnconfigured(t *testing.T) {
	router := authRouter("")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
}
