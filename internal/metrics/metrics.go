package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GamesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lotto",
		Name:      "games_started_total",
		Help:      "Games created.",
	})
	GamesFinished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lotto",
		Name:      "games_finished_total",
		Help:      "Games settled.",
	})
	EventsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lotto",
		Name:      "events_recorded_total",
		Help:      "Line and card events accepted, by type.",
	}, []string{"type"})
	InvariantViolations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lotto",
		Name:      "invariant_violations_total",
		Help:      "Settlement contract breaches surfaced to callers.",
	})
	SpeechCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lotto",
		Name:      "speech_commands_total",
		Help:      "Parsed voice commands, by parser status.",
	}, []string{"status"})
	Transcriptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lotto",
		Name:      "transcriptions_total",
		Help:      "Transcription requests, by outcome.",
	}, []string{"outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lotto",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Middleware records request latency under the matched route pattern.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
