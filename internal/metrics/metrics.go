// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "elasticdoctor"

// Metric label values for outcomes.
const (
	ResultSuccess  = "success"
	ResultConflict = "conflict"
	ResultFailed   = "failed"
)

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	registrations   *prometheus.CounterVec
	quotaRejections *prometheus.CounterVec
	gatewayRequests *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP requests by route pattern and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Total number of registration attempts by method and result.",
		}, []string{"method", "result"}),
		quotaRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cluster_quota_rejections_total",
			Help:      "Total number of cluster creations rejected by the tier limit.",
		}, []string{"tier"}),
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Total number of requests made to the diagnostic gateway by status code.",
		}, []string{"endpoint", "code"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.httpRequests,
			m.httpDuration,
			m.registrations,
			m.quotaRejections,
			m.gatewayRequests,
		} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

func (m *Metrics) ObserveHTTPRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordRegistration(method, result string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(method, result).Inc()
}

func (m *Metrics) RecordQuotaRejection(tier string) {
	if m == nil {
		return
	}
	m.quotaRejections.WithLabelValues(tier).Inc()
}

// RecordGatewayRequest counts a gateway call. A zero status means the
// request never got a response.
func (m *Metrics) RecordGatewayRequest(endpoint string, status int) {
	if m == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.gatewayRequests.WithLabelValues(endpoint, code).Inc()
}
