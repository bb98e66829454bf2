package metrics_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	academy "github.com/goliatone/go-academy"
	"github.com/goliatone/go-academy/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	var sink academy.ActivitySink = c
	require.NoError(t, sink.Record(context.Background(), academy.ActivityEvent{EventType: academy.ActivityEventLoginSuccess}))
	require.NoError(t, sink.Record(context.Background(), academy.ActivityEvent{EventType: academy.ActivityEventLoginSuccess}))
	require.NoError(t, sink.Record(context.Background(), academy.ActivityEvent{EventType: academy.ActivityEventNotificationFailed}))

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if mf.GetName() == "academy_activity_events_total" {
				values[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
			}
			if mf.GetName() == "academy_notification_failures_total" {
				values["failures"] = m.GetCounter().GetValue()
			}
		}
	}

	assert.Equal(t, 2.0, values[string(academy.ActivityEventLoginSuccess)])
	assert.Equal(t, 1.0, values[string(academy.ActivityEventNotificationFailed)])
	assert.Equal(t, 1.0, values["failures"])
}

func TestCollector_RecordRateLimited(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.RecordRateLimited("login", "10.0.0.1")
	c.RecordRateLimited("login", "10.0.0.2")

	assert.Equal(t, 1, testutil.CollectAndCount(reg, "academy_rate_limited_total"))
}

func TestFiberMiddleware_LabelsByRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	app := fiber.New()
	app.Use(c.FiberMiddleware())
	app.Get("/programs/:id", func(ctx *fiber.Ctx) error {
		return ctx.SendStatus(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/programs/abc", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	expected := `
# HELP academy_http_requests_total HTTP requests by method, route and status code.
# TYPE academy_http_requests_total counter
academy_http_requests_total{method="GET",route="/programs/:id",status_code="404"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "academy_http_requests_total"))
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)
	c.RecordRequest(http.MethodPost, "/api/v1/auth/login", http.StatusOK, 5*time.Millisecond)

	w := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "academy_http_request_duration_seconds")
	assert.Contains(t, string(body), `route="/api/v1/auth/login"`)
}
