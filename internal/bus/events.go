// Package bus provides the in-process event bus used to fan delivery
// outcomes out to metrics and the journal.
package bus

import (
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Well-known event types.
const (
	EventDeliverySent     = "delivery.sent"
	EventDeliveryFailed   = "delivery.failed"
	EventBatchCompleted   = "batch.completed"
	EventResponseMatched  = "response.matched"
	EventGatewayConnected = "gateway.connected"
)

// Delivery describes the outcome of sending one message of a batch.
type Delivery struct {
	BatchID  string
	Platform string
	Target   string // shard/context label of the reply target
	Seq      int    // position of the message within its batch
	Strategy string
	Embeds   int
	Files    int
	Bytes    int64
	Latency  time.Duration
	Err      error
}

// Batch summarizes a whole Send call.
type Batch struct {
	BatchID  string
	Platform string
	Target   string
	Strategy string
	Messages int
	Failed   int
}

// Event is a system event for internal pub/sub. Delivery and Batch are set
// for the matching event types only.
type Event struct {
	Type      string
	Source    string
	Delivery  *Delivery
	Batch     *Batch
	Attrs     map[string]string
	Timestamp time.Time
}

// Handler receives events. Handlers run on the emitting goroutine.
type Handler func(Event)

type subscription struct {
	topic string
	fn    Handler
}

// EventBus delivers events to handlers registered for their type or for
// the "*" wildcard.
type EventBus struct {
	mu     sync.RWMutex
	subs   []*subscription
	logger *slog.Logger
}

// NewEventBus returns an empty bus that logs handler panics to logger.
func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{logger: logger}
}

// On subscribes fn to eventType and returns a func that undoes it.
// Calling the returned func more than once is harmless.
func (eb *EventBus) On(eventType string, fn Handler) (cancel func()) {
	sub := &subscription{topic: eventType, fn: fn}
	eb.mu.Lock()
	eb.subs = append(eb.subs, sub)
	eb.mu.Unlock()

	return func() {
		eb.mu.Lock()
		eb.subs = slices.DeleteFunc(eb.subs, func(s *subscription) bool { return s == sub })
		eb.mu.Unlock()
	}
}

// Emit stamps event if needed and hands it to every matching handler in
// subscription order. Emitting on a nil bus does nothing.
func (eb *EventBus) Emit(event Event) {
	if eb == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mu.RLock()
	var targets []*subscription
	for _, sub := range eb.subs {
		if sub.topic == event.Type || sub.topic == "*" {
			targets = append(targets, sub)
		}
	}
	eb.mu.RUnlock()

	for _, sub := range targets {
		eb.call(sub, event)
	}
}

func (eb *EventBus) call(sub *subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			eb.logger.Error("bus handler panicked", "type", event.Type, "topic", sub.topic, "panic", r)
		}
	}()
	sub.fn(event)
}
