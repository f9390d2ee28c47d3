package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Build daemon metrics
var (
	BuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peterbot_template_builds_total",
			Help: "Total template builds by final status",
		},
		[]string{"template", "status"},
	)

	BuildDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "peterbot_template_build_duration_seconds",
			Help:    "Time to build a template image",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"template"},
	)

	BuildsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "peterbot_template_builds_active",
			Help: "Number of builds currently running",
		},
	)

	BuildLogLines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peterbot_template_build_log_lines_total",
			Help: "Build log lines streamed to clients",
		},
		[]string{"template"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "peterbot_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		BuildsTotal,
		BuildDuration,
		BuildsActive,
		BuildLogLines,
		HTTPRequestDuration,
	)
}

// ObserveBuild records a finished build.
func ObserveBuild(template, status string, duration time.Duration) {
	BuildsTotal.WithLabelValues(template, status).Inc()
	BuildDuration.WithLabelValues(template).Observe(duration.Seconds())
}

// Handler returns the Prometheus scrape endpoint as an echo handler.
func Handler() echo.HandlerFunc {
	h := promhttp.Handler()
	return func(c echo.Context) error {
		h.ServeHTTP(c.Response(), c.Request())
		return nil
	}
}

// Middleware records request latency per route.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			HTTPRequestDuration.WithLabelValues(
				c.Request().Method,
				c.Path(),
				strconv.Itoa(status),
			).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
