package metrics

import (
	"errors"
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"embedbot/internal/bus"
)

func TestCollector_SubscribeCountsDeliveries(t *testing.T) {
	c := NewMetricsCollector()
	events := bus.NewEventBus(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
	c.Subscribe(events)

	sent := &bus.Delivery{Platform: "discord", Strategy: "files", Bytes: 100, Latency: 200 * time.Millisecond}
	events.Emit(bus.Event{Type: bus.EventDeliverySent, Delivery: sent})
	events.Emit(bus.Event{Type: bus.EventDeliverySent, Delivery: sent})
	events.Emit(bus.Event{Type: bus.EventDeliveryFailed, Delivery: &bus.Delivery{Platform: "discord", Strategy: "files", Err: errors.New("x")}})
	events.Emit(bus.Event{Type: bus.EventBatchCompleted, Batch: &bus.Batch{Platform: "discord"}})
	events.Emit(bus.Event{Type: bus.EventResponseMatched, Source: "telegram"})

	labels := `platform="discord",strategy="files"`
	if v := c.Counter(deliveriesName, "", labels).Value(); v != 2 {
		t.Errorf("deliveries = %d, want 2", v)
	}
	if v := c.Counter(attachmentBytesName, "", labels).Value(); v != 200 {
		t.Errorf("bytes = %d, want 200", v)
	}
	if v := c.Counter(failuresName, "", labels).Value(); v != 1 {
		t.Errorf("failures = %d, want 1", v)
	}
	if v := c.Counter(batchesName, "", `platform="discord"`).Value(); v != 1 {
		t.Errorf("batches = %d, want 1", v)
	}
	if v := c.Counter(matchedName, "", `source="telegram"`).Value(); v != 1 {
		t.Errorf("matched = %d, want 1", v)
	}
	if n := c.Histogram(latencyName, "", "", latencyBuckets).Count(); n != 2 {
		t.Errorf("latency observations = %d, want 2", n)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewMetricsCollector()
	c.Counter("b_total", "B", `x="1"`).Add(3)
	c.Counter("a_total", "A", "").Inc()
	c.Gauge("g", "G", "").Set(7)
	c.Histogram("h_seconds", "H", "", []float64{1, 0.5}).Observe(0.7)

	rec := httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"embedbot_uptime_seconds",
		"# TYPE a_total counter\na_total 1\n",
		`b_total{x="1"} 3`,
		"# TYPE g gauge\ng 7\n",
		`h_seconds_bucket{le="0.5"} 0`,
		`h_seconds_bucket{le="1"} 1`,
		`h_seconds_bucket{le="+Inf"} 1`,
		"h_seconds_count 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("output missing %q:\n%s", want, body)
		}
	}
	if strings.Index(body, "a_total") > strings.Index(body, "b_total") {
		t.Error("counters should be sorted by name")
	}
}

func TestCollector_SameSeriesReturned(t *testing.T) {
	c := NewMetricsCollector()
	if c.Counter("x", "", "") != c.Counter("x", "", "") {
		t.Error("expected the same counter for the same series")
	}
	if c.Counter("x", "", "a") == c.Counter("x", "", "b") {
		t.Error("different labels should be different series")
	}
}
