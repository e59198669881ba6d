package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsByRoute(t *testing.T) {
	e := echo.New()
	e.Use(Middleware(func(error) int { return http.StatusConflict }))
	e.GET("/widgets/:id", func(c echo.Context) error {
		if c.Param("id") == "dup" {
			return errors.New("duplicate")
		}
		return c.NoContent(http.StatusNoContent)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/widgets/:id", "204"))
	for _, id := range []string{"1", "2", "3"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/widgets/"+id, nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}
	after := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/widgets/:id", "204"))

	assert.Equal(t, 3.0, after-before)

	conflicts := httpRequests.WithLabelValues(http.MethodGet, "/widgets/:id", "409")
	before = testutil.ToFloat64(conflicts)
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/widgets/dup", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(conflicts)-before)
}

func TestSessionGauge(t *testing.T) {
	g := SessionsOpen.WithLabelValues("memory", "gauge_test")
	SessionOpened("memory", "gauge_test")
	SessionOpened("memory", "gauge_test")
	assert.Equal(t, 2.0, testutil.ToFloat64(g))

	SessionReleased("memory", "gauge_test")
	SessionReleased("memory", "gauge_test")
	assert.Equal(t, 0.0, testutil.ToFloat64(g))
}

func TestHandlerExposesRegistry(t *testing.T) {
	StoreError("memory", "handler_test", "conflict")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `crudrouter_store_errors_total{kind="conflict",resource="handler_test",store="memory"} 1`))
}
