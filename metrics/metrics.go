// Package metrics exposes prometheus counters for the academy API.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	academy "github.com/goliatone/go-academy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "academy"

// Collector records request and activity metrics.
type Collector struct {
	requests       *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	activity       *prometheus.CounterVec
	rateLimited    *prometheus.CounterVec
	notifyFailures prometheus.Counter
}

// NewCollector registers every metric with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status_code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		activity: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_events_total",
			Help:      "Activity events by type.",
		}, []string{"event"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter, by policy.",
		}, []string{"policy"}),
		notifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Credential notifications that could not be delivered.",
		}),
	}

	reg.MustRegister(
		c.requests,
		c.latency,
		c.activity,
		c.rateLimited,
		c.notifyFailures,
	)

	return c
}

// RecordRequest records one finished HTTP request.
func (c *Collector) RecordRequest(method, route string, status int, d time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordRateLimited matches the ratelimit OnLimited hook. The key is not a
// label to keep cardinality bounded.
func (c *Collector) RecordRateLimited(policy, _ string) {
	c.rateLimited.WithLabelValues(policy).Inc()
}

// Record implements academy.ActivitySink.
func (c *Collector) Record(_ context.Context, event academy.ActivityEvent) error {
	c.activity.WithLabelValues(string(event.EventType)).Inc()
	if event.EventType == academy.ActivityEventNotificationFailed {
		c.notifyFailures.Inc()
	}
	return nil
}

// FiberMiddleware times every request served by app. Routes are labelled by
// their pattern, not the raw path.
func (c *Collector) FiberMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		start := time.Now()
		err := ctx.Next()

		status := ctx.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else if status < http.StatusBadRequest {
				status = http.StatusInternalServerError
			}
		}

		route := "unmatched"
		if r := ctx.Route(); r != nil && r.Path != "" {
			route = r.Path
		}

		c.RecordRequest(ctx.Method(), route, status, time.Since(start))
		return err
	}
}

// Handler returns the prometheus scrape handler.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
