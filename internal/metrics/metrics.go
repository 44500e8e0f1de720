package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Machforo/illora-ai-chieftain/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors bundles the concierge's Prometheus collectors
type Collectors struct {
	turns        *prometheus.CounterVec
	refusals     *prometheus.CounterVec
	payments     *prometheus.CounterVec
	chatlogDrops prometheus.Counter
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	inFlight     prometheus.Gauge
	gatherer     prometheus.Gatherer
}

// New registers every collector on reg. gatherer backs the /metrics handler
// and is usually the same registry.
func New(reg prometheus.Registerer, gatherer prometheus.Gatherer, service string) *Collectors {
	labels := prometheus.Labels{"service": service}

	c := &Collectors{
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "concierge_dialogue_turns_total",
				Help:        "Conversational turns by channel and stage transition.",
				ConstLabels: labels,
			},
			[]string{"channel", "from", "to"},
		),
		refusals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "concierge_restricted_refusals_total",
				Help:        "Guest-only service requests refused to visitors.",
				ConstLabels: labels,
			},
			[]string{"channel"},
		),
		payments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "concierge_payment_sessions_total",
				Help:        "Payment session requests by kind and outcome.",
				ConstLabels: labels,
			},
			[]string{"kind", "outcome"},
		),
		chatlogDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "concierge_chatlog_dropped_total",
			Help:        "Chat log entries dropped because the buffer was full.",
			ConstLabels: labels,
		}),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "concierge_http_requests_total",
				Help:        "Total count of HTTP requests received.",
				ConstLabels: labels,
			},
			[]string{"method", "path", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "concierge_http_request_duration_seconds",
				Help:        "Histogram of request durations.",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: labels,
			},
			[]string{"method", "path", "status"},
		),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "concierge_http_inflight_requests",
			Help:        "Number of requests currently being handled.",
			ConstLabels: labels,
		}),
		gatherer: gatherer,
	}

	reg.MustRegister(c.turns, c.refusals, c.payments, c.chatlogDrops, c.requests, c.duration, c.inFlight)
	return c
}

// ObserveTurn counts one dialogue turn
func (c *Collectors) ObserveTurn(channel models.Channel, from, to models.Stage) {
	c.turns.WithLabelValues(string(channel), string(from), string(to)).Inc()
}

func (c *Collectors) ObserveRefusal(channel models.Channel) {
	c.refusals.WithLabelValues(string(channel)).Inc()
}

// ObservePayment counts a payment session outcome
func (c *Collectors) ObservePayment(kind, outcome string) {
	c.payments.WithLabelValues(kind, outcome).Inc()
}

func (c *Collectors) ObserveChatlogDrop() {
	c.chatlogDrops.Inc()
}

// Handler exposes /metrics for the configured gatherer
func (c *Collectors) Handler() http.Handler {
	if c.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// Instrument records request counts and durations. Paths are taken from
// the matched route so cardinality stays bounded.
func (c *Collectors) Instrument() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		c.inFlight.Inc()
		defer c.inFlight.Dec()

		start := time.Now()
		ctx.Next()
		elapsed := time.Since(start).Seconds()

		path := ctx.FullPath()
		if path == "" {
			path = "unmatched"
		}
		labels := []string{ctx.Request.Method, path, strconv.Itoa(ctx.Writer.Status())}

		c.requests.WithLabelValues(labels...).Inc()
		c.duration.WithLabelValues(labels...).Observe(elapsed)
	}
}
