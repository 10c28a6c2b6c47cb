package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runHealth(t *testing.T, checkers map[string]HealthChecker) (int, HealthStatus) {
	t.Helper()
	w := httptest.NewRecorder()
	HealthHandler(checkers)(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	var hs HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&hs))
	return w.Code, hs
}

func TestHealthHandler(t *testing.T) {
	ok := CheckFunc(func(context.Context) error { return nil })
	down := CheckFunc(func(context.Context) error { return errors.New("down") })

	t.Run("healthy", func(t *testing.T) {
		code, hs := runHealth(t, map[string]HealthChecker{"archive": ok})
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "healthy", hs.Status)
	})

	t.Run("advisory failure degrades only", func(t *testing.T) {
		code, hs := runHealth(t, map[string]HealthChecker{"archive": ok, "upstream": Advisory(down)})
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "degraded", hs.Status)
		assert.Equal(t, CheckStatus{Status: "degraded", Message: "down"}, hs.Checks["upstream"])
	})

	t.Run("hard failure", func(t *testing.T) {
		code, hs := runHealth(t, map[string]HealthChecker{"archive": down, "upstream": Advisory(down)})
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "unhealthy", hs.Status)
	})
}

func TestLivenessAndReadiness(t *testing.T) {
	w := httptest.NewRecorder()
	LivenessHandler(w, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, "ok", w.Body.String())

	w = httptest.NewRecorder()
	ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ready"`)
}
