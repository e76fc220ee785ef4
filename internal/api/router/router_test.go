package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SSP-Group-Of-Companies/TraxYard-sub001/internal/api/handler"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeHealth struct {
	err error
}

func (f *fakeHealth) HealthCheck(context.Context) error {
	return f.err
}

func newDeps(health handler.HealthChecker) *handler.Dependencies {
	return &handler.Dependencies{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Health: health,
	}
}

func TestHealthEndpoint(t *testing.T) {
	r := SetupRouter(newDeps(&fakeHealth{}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestHealthEndpointDatabaseDown(t *testing.T) {
	r := SetupRouter(newDeps(&fakeHealth{err: errors.New("connection refused")}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"unhealthy"`)
}

func TestCORSPreflight(t *testing.T) {
	r := SetupRouter(newDeps(&fakeHealth{}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/v1/exports", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
