package tests

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creatorlink/internal/adapter/api/handler"
	"creatorlink/internal/adapter/api/router"
	ws "creatorlink/internal/infrastructure/websocket"
)

func TestHealthCheck(t *testing.T) {
	// Setup
	e := echo.New()
	manager := ws.NewManager()
	defer manager.Shutdown()
	router.SetupHealthRouter(e, handler.NewHealthHandler(manager))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	// Assertions
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Server is running", body["status"])
	assert.Equal(t, float64(0), body["connected_clients"])
}
