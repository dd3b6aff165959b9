package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cfgpkg "github.com/mcpfactory/stripe-service/pkg/config"
)

func newAuthRouter(serviceKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &cfgpkg.Config{ServiceAPIKey: serviceKey}
	r := gin.New()
	r.Use(ServiceAuthMiddleware(cfg, zap.NewNop().Sugar()))
	r.GET("/guarded", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func doGuarded(r *gin.Engine, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestServiceAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		serviceKey string
		apiKey     string
		wantCode   int
		wantBody   string
	}{
		{"valid key", "secret-key", "secret-key", http.StatusOK, "ok"},
		{"missing key", "secret-key", "", http.StatusUnauthorized, "Missing API key"},
		{"wrong key", "secret-key", "nope", http.StatusForbidden, "Invalid API key"},
		{"unconfigured", "", "anything", http.StatusInternalServerError, "Server configuration error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doGuarded(newAuthRouter(tt.serviceKey), tt.apiKey)
			require.Equal(t, tt.wantCode, w.Code)
			require.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}
