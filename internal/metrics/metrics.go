// Package metrics exposes authentication counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chefenplace"

type Collector struct {
	registry    *prometheus.Registry
	logins      *prometheus.CounterVec
	rateLimited prometheus.Counter
	blocked     prometheus.Counter
	suspicious  *prometheus.CounterVec
	requests    *prometheus.CounterVec
}

// New builds a collector on its own registry so tests can create as many
// as they like.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Login attempts by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "rate_limited_total",
			Help:      "Attempts rejected because the source address was blocked.",
		}),
		blocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "addresses_blocked_total",
			Help:      "Source addresses that reached the failure limit.",
		}),
		suspicious: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "suspicious_activity_total",
			Help:      "Suspicious activity signals by pattern.",
		}, []string{"pattern"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "responses_total",
			Help:      "HTTP responses by method and status class.",
		}, []string{"method", "class"}),
	}

	c.registry.MustRegister(
		c.logins,
		c.rateLimited,
		c.blocked,
		c.suspicious,
		c.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) LoginResult(strategy, outcome string) {
	c.logins.WithLabelValues(strategy, outcome).Inc()
}

func (c *Collector) RateLimited() { c.rateLimited.Inc() }

func (c *Collector) Blocked() { c.blocked.Inc() }

func (c *Collector) Suspicious(pattern string) {
	c.suspicious.WithLabelValues(pattern).Inc()
}

// Response counts one HTTP response; status is bucketed to 2xx..5xx.
func (c *Collector) Response(method string, status int) {
	class := "5xx"
	switch {
	case status < 300:
		class = "2xx"
	case status < 400:
		class = "3xx"
	case status < 500:
		class = "4xx"
	}
	c.requests.WithLabelValues(method, class).Inc()
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
