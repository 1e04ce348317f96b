package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	AttemptCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_attempts_total",
			Help: "Assessment attempts by lifecycle transition",
		},
		[]string{"status"},
	)

	CreditsAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credits_awarded_total",
			Help: "Credits appended to the ledger by transaction type",
		},
		[]string{"type"},
	)

	AttemptPercentage = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assessment_attempt_percentage",
			Help:    "Distribution of graded attempt percentages",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(AttemptCounter)
		prometheus.MustRegister(CreditsAwarded)
		prometheus.MustRegister(AttemptPercentage)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func RecordAttempt(status string) {
	AttemptCounter.WithLabelValues(status).Inc()
}

func RecordGraded(percentage float64) {
	AttemptPercentage.Observe(percentage)
}

func RecordCredits(txType string, amount int) {
	CreditsAwarded.WithLabelValues(txType).Add(float64(amount))
}
