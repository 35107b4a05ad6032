// Package metrics provides a lightweight, Prometheus-compatible metrics
// collector for embedbot deliveries. It renders the text exposition format
// itself instead of pulling in prometheus/client_golang.
package metrics

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"embedbot/internal/bus"
)

const (
	deliveriesName      = "embedbot_deliveries_total"
	failuresName        = "embedbot_delivery_failures_total"
	batchesName         = "embedbot_batches_total"
	attachmentBytesName = "embedbot_attachment_bytes_total"
	gatewaysName        = "embedbot_gateways_connected"
	matchedName         = "embedbot_responses_matched_total"
	latencyName         = "embedbot_delivery_latency_seconds"
)

var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Collector is the process-wide metrics collector.
var Collector = NewMetricsCollector()

// MetricsCollector aggregates counters, gauges, and histograms.
type MetricsCollector struct {
	counters   sync.Map // name{labels} -> *Counter
	gauges     sync.Map // name{labels} -> *Gauge
	histograms sync.Map // name{labels} -> *Histogram
	startTime  time.Time
}

// NewMetricsCollector creates a new collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{startTime: time.Now()}
}

// Uptime returns how long the collector has been running.
func (c *MetricsCollector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

type series struct {
	name   string
	help   string
	labels string
}

// Counter is a monotonically increasing counter.
type Counter struct {
	series
	value atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Add(n int64)  { c.value.Add(n) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	series
	value atomic.Int64
}

func (g *Gauge) Set(v int64)  { g.value.Store(v) }
func (g *Gauge) Inc()         { g.value.Add(1) }
func (g *Gauge) Dec()         { g.value.Add(-1) }
func (g *Gauge) Value() int64 { return g.value.Load() }

// Histogram tracks the distribution of values over cumulative buckets.
type Histogram struct {
	series
	mu      sync.Mutex
	count   int64
	sum     float64
	buckets []histBucket
}

type histBucket struct {
	le    float64
	count int64
}

// Observe records a value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i := range h.buckets {
		if v <= h.buckets[i].le {
			h.buckets[i].count++
		}
	}
}

// Count returns the number of observations.
func (h *Histogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

func seriesKey(name, labels string) string { return name + "{" + labels + "}" }

// Counter returns or creates the counter for name and labels.
func (c *MetricsCollector) Counter(name, help, labels string) *Counter {
	key := seriesKey(name, labels)
	if v, ok := c.counters.Load(key); ok {
		return v.(*Counter)
	}
	actual, _ := c.counters.LoadOrStore(key, &Counter{series: series{name, help, labels}})
	return actual.(*Counter)
}

// Gauge returns or creates the gauge for name and labels.
func (c *MetricsCollector) Gauge(name, help, labels string) *Gauge {
	key := seriesKey(name, labels)
	if v, ok := c.gauges.Load(key); ok {
		return v.(*Gauge)
	}
	actual, _ := c.gauges.LoadOrStore(key, &Gauge{series: series{name, help, labels}})
	return actual.(*Gauge)
}

// Histogram returns or creates the histogram for name and labels.
func (c *MetricsCollector) Histogram(name, help, labels string, buckets []float64) *Histogram {
	key := seriesKey(name, labels)
	if v, ok := c.histograms.Load(key); ok {
		return v.(*Histogram)
	}
	sorted := append([]float64(nil), buckets...)
	sort.Float64s(sorted)
	hb := make([]histBucket, len(sorted))
	for i, b := range sorted {
		hb[i] = histBucket{le: b}
	}
	actual, _ := c.histograms.LoadOrStore(key, &Histogram{series: series{name, help, labels}, buckets: hb})
	return actual.(*Histogram)
}

// Handler serves the metrics in Prometheus text format.
func (c *MetricsCollector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		c.Render(w)
	}
}

// Render writes all series in Prometheus text format, sorted by series key
// so output is stable between scrapes.
func (c *MetricsCollector) Render(w io.Writer) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# HELP embedbot_uptime_seconds Time since start in seconds\n")
	fmt.Fprintf(&sb, "# TYPE embedbot_uptime_seconds gauge\n")
	fmt.Fprintf(&sb, "embedbot_uptime_seconds %d\n", int64(c.Uptime().Seconds()))

	writeScalars(&sb, "counter", sortedSeries(&c.counters, func(v any) (series, int64) {
		ctr := v.(*Counter)
		return ctr.series, ctr.Value()
	}))
	writeScalars(&sb, "gauge", sortedSeries(&c.gauges, func(v any) (series, int64) {
		g := v.(*Gauge)
		return g.series, g.Value()
	}))

	var hists []*Histogram
	c.histograms.Range(func(_, v any) bool {
		hists = append(hists, v.(*Histogram))
		return true
	})
	sort.Slice(hists, func(i, j int) bool {
		return seriesKey(hists[i].name, hists[i].labels) < seriesKey(hists[j].name, hists[j].labels)
	})
	for _, h := range hists {
		writeHistogram(&sb, h)
	}

	io.WriteString(w, sb.String())
}

type scalar struct {
	series
	value int64
}

func sortedSeries(m *sync.Map, read func(any) (series, int64)) []scalar {
	var out []scalar
	m.Range(func(_, v any) bool {
		s, val := read(v)
		out = append(out, scalar{s, val})
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return seriesKey(out[i].name, out[i].labels) < seriesKey(out[j].name, out[j].labels)
	})
	return out
}

func writeScalars(sb *strings.Builder, kind string, values []scalar) {
	helpWritten := make(map[string]bool)
	for _, s := range values {
		if !helpWritten[s.name] {
			fmt.Fprintf(sb, "# HELP %s %s\n", s.name, s.help)
			fmt.Fprintf(sb, "# TYPE %s %s\n", s.name, kind)
			helpWritten[s.name] = true
		}
		if s.labels != "" {
			fmt.Fprintf(sb, "%s{%s} %d\n", s.name, s.labels, s.value)
		} else {
			fmt.Fprintf(sb, "%s %d\n", s.name, s.value)
		}
	}
}

func writeHistogram(sb *strings.Builder, h *Histogram) {
	h.mu.Lock()
	defer h.mu.Unlock()

	fmt.Fprintf(sb, "# HELP %s %s\n", h.name, h.help)
	fmt.Fprintf(sb, "# TYPE %s histogram\n", h.name)
	prefix := h.name + "_bucket{"
	if h.labels != "" {
		prefix += h.labels + ","
	}
	for _, b := range h.buckets {
		le := fmt.Sprintf("%g", b.le)
		if math.IsInf(b.le, 1) {
			le = "+Inf"
		}
		fmt.Fprintf(sb, "%sle=\"%s\"} %d\n", prefix, le, b.count)
	}
	fmt.Fprintf(sb, "%sle=\"+Inf\"} %d\n", prefix, h.count)
	suffix := ""
	if h.labels != "" {
		suffix = "{" + h.labels + "}"
	}
	fmt.Fprintf(sb, "%s_count%s %d\n", h.name, suffix, h.count)
	fmt.Fprintf(sb, "%s_sum%s %f\n", h.name, suffix, h.sum)
}

// Subscribe keeps the delivery metrics of c current from events. Delivery
// counters are labelled by platform and strategy.
func (c *MetricsCollector) Subscribe(events *bus.EventBus) {
	events.On(bus.EventDeliverySent, func(e bus.Event) {
		d := e.Delivery
		if d == nil {
			return
		}
		labels := deliveryLabels(d)
		c.Counter(deliveriesName, "Messages delivered successfully", labels).Inc()
		c.Counter(attachmentBytesName, "Attachment bytes delivered", labels).Add(d.Bytes)
		c.Histogram(latencyName, "Per-message delivery latency in seconds", "", latencyBuckets).Observe(d.Latency.Seconds())
	})
	events.On(bus.EventDeliveryFailed, func(e bus.Event) {
		if e.Delivery == nil {
			return
		}
		c.Counter(failuresName, "Messages whose delivery failed", deliveryLabels(e.Delivery)).Inc()
	})
	events.On(bus.EventBatchCompleted, func(e bus.Event) {
		if e.Batch == nil {
			return
		}
		c.Counter(batchesName, "Responses sent", fmt.Sprintf("platform=%q", e.Batch.Platform)).Inc()
	})
	events.On(bus.EventResponseMatched, func(e bus.Event) {
		c.Counter(matchedName, "Inbound messages answered from the catalog", fmt.Sprintf("source=%q", e.Source)).Inc()
	})
	events.On(bus.EventGatewayConnected, func(e bus.Event) {
		c.Gauge(gatewaysName, "Connected chat gateways", "").Inc()
	})
}

func deliveryLabels(d *bus.Delivery) string {
	return fmt.Sprintf("platform=%q,strategy=%q", d.Platform, d.Strategy)
}
