// Package metrics exposes Prometheus collectors for the HTTP surface and the
// domain event stream.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vitotrips_http_requests_total",
		Help: "HTTP requests by method, route and status code",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vitotrips_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	domainEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vitotrips_domain_events_total",
		Help: "Domain events handed to the event stream, by type and result",
	}, []string{"type", "result"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records one sample per request. Routes are labelled with the chi
// pattern so ids in the path do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type Publisher interface {
	PublishEvent(ctx context.Context, eventType, key string, payload interface{}) error
}

// CountingPublisher counts every event passed to Next.
type CountingPublisher struct {
	Next Publisher
}

func (p CountingPublisher) PublishEvent(ctx context.Context, eventType, key string, payload interface{}) error {
	err := p.Next.PublishEvent(ctx, eventType, key, payload)
	result := "ok"
	if err != nil {
		result = "error"
	}
	domainEvents.WithLabelValues(eventType, result).Inc()
	return err
}
