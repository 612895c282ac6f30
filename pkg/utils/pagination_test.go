package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func paramsFor(query string) PaginationParams {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	rec := httptest.NewRecorder()
	return GetPaginationParams(e.NewContext(req, rec))
}

func TestGetPaginationParams(t *testing.T) {
	cases := []struct {
		name     string
		query    string
		expected PaginationParams
	}{
		{"defaults", "", PaginationParams{Page: 1, PageSize: 20, Offset: 0}},
		{"explicit", "page=3&limit=10", PaginationParams{Page: 3, PageSize: 10, Offset: 20}},
		{"zero page", "page=0&limit=10", PaginationParams{Page: 1, PageSize: 10, Offset: 0}},
		{"negative page", "page=-2", PaginationParams{Page: 1, PageSize: 20, Offset: 0}},
		{"oversized limit", "limit=500", PaginationParams{Page: 1, PageSize: 20, Offset: 0}},
		{"garbage values", "page=abc&limit=xyz", PaginationParams{Page: 1, PageSize: 20, Offset: 0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, paramsFor(tc.query))
		})
	}
}
