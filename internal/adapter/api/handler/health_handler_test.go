package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ws "creatorlink/internal/infrastructure/websocket"
)

func TestCheckHealth(t *testing.T) {
	manager := ws.NewManager()
	manager.Register(ws.NewClient("u1", "User One", nil))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h := NewHealthHandler(manager)
	require.NoError(t, h.CheckHealth(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Server is running", body["status"])
	assert.Equal(t, float64(1), body["connected_clients"])
	assert.NotEmpty(t, body["time"])
}
