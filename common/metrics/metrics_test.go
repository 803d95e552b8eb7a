package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/event", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	for i := 0; i < 2; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/event?id=1", nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	require.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("/event", "GET", "418")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("unmatched", "GET", "404")))
}

func TestUpstreamAndCache(t *testing.T) {
	m := New()
	m.Upstream("metaphor", "search", nil)
	m.Upstream("metaphor", "search", errors.New("x"))
	m.Upstream("metaphor", "search", errors.New("y"))
	m.CacheLookup("/event", true)
	m.CacheLookup("/event", false)

	require.Equal(t, 1.0, testutil.ToFloat64(m.upstream.WithLabelValues("metaphor", "search", "ok")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.upstream.WithLabelValues("metaphor", "search", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.cache.WithLabelValues("/event", "hit")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.CacheLookup("/event", true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, string(body), `event_api_cache_lookups_total{result="hit",route="/event"} 1`)
}
