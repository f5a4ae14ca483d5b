package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry with the service's metrics.
// A nil *Collector is valid and records nothing.
type Collector struct {
	reg *prometheus.Registry

	PollCycles      prometheus.Counter
	PollDiscarded   *prometheus.CounterVec // feed label
	FeedErrors      *prometheus.CounterVec // feed label
	FeedEntities    *prometheus.GaugeVec   // feed label
	FeedFetch       *prometheus.HistogramVec
	SnapshotUpdated *prometheus.GaugeVec // feed label, unix seconds

	StaticRows *prometheus.GaugeVec // table label

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter

	HTTPRequests *prometheus.CounterVec // route, code
	HTTPDuration *prometheus.HistogramVec
}

// NewCollector creates and registers all metrics.
func NewCollector(pollInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		PollCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transitnow_poll_cycles_total",
			Help: "Realtime poll cycles started.",
		}),
		PollDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transitnow_poll_results_discarded_total",
			Help: "Feed results dropped because a newer poll cycle superseded them.",
		}, []string{"feed"}),
		FeedErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transitnow_feed_errors_total",
			Help: "Failed realtime fetches or decodes.",
		}, []string{"feed"}),
		FeedEntities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "transitnow_feed_entities",
			Help: "Records in the current realtime snapshot.",
		}, []string{"feed"}),
		FeedFetch: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "transitnow_feed_fetch_duration_seconds",
			Help:    "Duration to fetch and decode a realtime feed.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"feed"}),
		SnapshotUpdated: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "transitnow_snapshot_updated_timestamp_seconds",
			Help: "Unix time the realtime snapshot was last replaced.",
		}, []string{"feed"}),
		StaticRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "transitnow_static_rows",
			Help: "Rows indexed from the schedule archive.",
		}, []string{"table"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transitnow_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transitnow_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transitnow_http_requests_total",
			Help: "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "transitnow_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}, []string{"route"}),
	}

	pollSeconds := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "transitnow_poll_interval_seconds",
		Help: "Configured realtime poll interval.",
	})
	pollSeconds.Set(pollInterval.Seconds())

	reg.MustRegister(
		c.PollCycles, c.PollDiscarded, c.FeedErrors, c.FeedEntities, c.FeedFetch,
		c.SnapshotUpdated, c.StaticRows,
		c.NATSPublished, c.NATSPublishErrs,
		c.HTTPRequests, c.HTTPDuration,
		pollSeconds,
	)
	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

func (c *Collector) PollStarted() {
	if c == nil {
		return
	}
	c.PollCycles.Inc()
}

func (c *Collector) ResultDiscarded(feed string) {
	if c == nil {
		return
	}
	c.PollDiscarded.WithLabelValues(feed).Inc()
}

func (c *Collector) FeedFailed(feed string) {
	if c == nil {
		return
	}
	c.FeedErrors.WithLabelValues(feed).Inc()
}

func (c *Collector) FeedFetched(feed string, d time.Duration) {
	if c == nil {
		return
	}
	c.FeedFetch.WithLabelValues(feed).Observe(d.Seconds())
}

func (c *Collector) SnapshotCommitted(feed string, entities int, at time.Time) {
	if c == nil {
		return
	}
	c.FeedEntities.WithLabelValues(feed).Set(float64(entities))
	c.SnapshotUpdated.WithLabelValues(feed).Set(float64(at.Unix()))
}

// StaticIndexed records the row count of one schedule table.
func (c *Collector) StaticIndexed(table string, rows int) {
	if c == nil {
		return
	}
	c.StaticRows.WithLabelValues(table).Set(float64(rows))
}

func (c *Collector) Published(n int) {
	if c == nil {
		return
	}
	c.NATSPublished.Add(float64(n))
}

func (c *Collector) PublishFailed() {
	if c == nil {
		return
	}
	c.NATSPublishErrs.Inc()
}

// ObserveRequest records one served HTTP request.
func (c *Collector) ObserveRequest(route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	c.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}
