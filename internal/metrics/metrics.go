// Package metrics exposes Prometheus collectors for pipeline runs.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	registry *prometheus.Registry

	searchRequestsTotal   *prometheus.CounterVec
	candidatesTotal       *prometheus.CounterVec
	postingsTotal         *prometheus.CounterVec
	fetchesTotal          *prometheus.CounterVec
	deliveriesTotal       *prometheus.CounterVec
	storedTotal           prometheus.Counter
	runsTotal             *prometheus.CounterVec
	runDurationSeconds    prometheus.Histogram
	lastSuccessTimestamp  prometheus.Gauge
	rateLimitDelaySeconds *prometheus.HistogramVec
	httpRequestsTotal     *prometheus.CounterVec
	httpRequestSeconds    *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors on a dedicated registry. Safe to call repeatedly.
func Init() {
	once.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		factory := promauto.With(registry)

		searchRequestsTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscout_search_requests_total",
				Help: "Search engine requests, labeled by engine and result.",
			},
			[]string{"engine", "result"},
		)
		candidatesTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscout_candidates_total",
				Help: "Discovered posting URLs, labeled by origin.",
			},
			[]string{"origin"},
		)
		postingsTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscout_postings_total",
				Help: "Postings by platform and pipeline outcome.",
			},
			[]string{"platform", "outcome"},
		)
		fetchesTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscout_fetches_total",
				Help: "Page fetches, labeled by site, renderer and result.",
			},
			[]string{"site", "renderer", "result"},
		)
		deliveriesTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscout_deliveries_total",
				Help: "Delta record deliveries, labeled by sink and result.",
			},
			[]string{"sink", "result"},
		)
		storedTotal = factory.NewCounter(prometheus.CounterOpts{
			Name: "jobscout_new_postings_total",
			Help: "Postings appended to the master store.",
		})
		runsTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscout_runs_total",
				Help: "Pipeline runs, labeled by result.",
			},
			[]string{"result"},
		)
		runDurationSeconds = factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "jobscout_run_duration_seconds",
			Help:    "Wall time of pipeline runs.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		})
		lastSuccessTimestamp = factory.NewGauge(prometheus.GaugeOpts{
			Name: "jobscout_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run.",
		})
		rateLimitDelaySeconds = factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobscout_rate_limit_delay_seconds",
				Help:    "Time spent waiting on per-host rate limits.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)
		httpRequestsTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscout_http_requests_total",
				Help: "Control plane requests, labeled by method, route and status code.",
			},
			[]string{"method", "route", "code"},
		)
		httpRequestSeconds = factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobscout_http_request_duration_seconds",
				Help:    "Control plane request latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)
	})
}

// Registry returns the registry holding every jobscout collector.
func Registry() *prometheus.Registry {
	Init()
	return registry
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry(), promhttp.HandlerOpts{})
}

// SanitizeSite extracts a lowercase hostname for use as a label, or "unknown".
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveSearch counts one search engine request.
func ObserveSearch(engine, result string) {
	Init()
	searchRequestsTotal.WithLabelValues(engine, result).Inc()
}

// ObserveCandidates counts discovered URLs for an origin.
func ObserveCandidates(origin string, n int) {
	Init()
	candidatesTotal.WithLabelValues(origin).Add(float64(n))
}

// ObservePosting counts a posting reaching a pipeline outcome.
func ObservePosting(platform, outcome string) {
	Init()
	postingsTotal.WithLabelValues(platform, outcome).Inc()
}

// ObserveFetch counts a page fetch.
func ObserveFetch(rawURL string, headless bool, result string) {
	Init()
	renderer := "http"
	if headless {
		renderer = "headless"
	}
	fetchesTotal.WithLabelValues(SanitizeSite(rawURL), renderer, result).Inc()
}

// ObserveDelivery counts a delta record delivery.
func ObserveDelivery(sink, result string) {
	Init()
	deliveriesTotal.WithLabelValues(sink, result).Inc()
}

// ObserveRun records run completion.
func ObserveRun(stored int, duration time.Duration, err error) {
	Init()
	result := "success"
	if err != nil {
		result = "failure"
	} else {
		lastSuccessTimestamp.SetToCurrentTime()
	}
	runsTotal.WithLabelValues(result).Inc()
	runDurationSeconds.Observe(duration.Seconds())
	storedTotal.Add(float64(stored))
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest records one control plane request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Push sends the registry to a Prometheus Pushgateway.
func Push(ctx context.Context, gatewayURL, job string) error {
	if strings.TrimSpace(gatewayURL) == "" {
		return nil
	}
	if err := push.New(gatewayURL, job).Gatherer(Registry()).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
