package sender

import (
	"context"
	"log/slog"
	"time"

	"embedbot/internal/bus"
	"embedbot/internal/domain"

	"github.com/google/uuid"
)

// Sender partitions responses and delivers the resulting messages.
type Sender struct {
	limits Limits
	events *bus.EventBus
	logger *slog.Logger
}

// Config configures a Sender.
type Config struct {
	Limits Limits
	Events *bus.EventBus // optional
	Logger *slog.Logger
}

// New creates a Sender. Zero limits fall back to the Discord defaults.
func New(cfg Config) *Sender {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		limits: cfg.Limits.withDefaults(),
		events: cfg.Events,
		logger: logger,
	}
}

// Limits returns the ceilings the sender partitions with.
func (s *Sender) Limits() Limits { return s.limits }

// Report summarizes one Send call.
type Report struct {
	BatchID  string
	Strategy Strategy
	Messages int
	Sent     int
	Failed   int
}

// Send delivers resp to target one message at a time, in order. A failed
// message is logged and skipped; it never stops the rest of the batch and
// Send never reports it as an error.
func (s *Sender) Send(ctx context.Context, target domain.ReplyTarget, resp *domain.Response) Report {
	strategy, messages := Partition(resp, s.limits)
	report := Report{
		BatchID:  uuid.NewString(),
		Strategy: strategy,
		Messages: len(messages),
	}

	for i, msg := range messages {
		start := time.Now()
		err := target.Deliver(ctx, msg)

		d := &bus.Delivery{
			BatchID:  report.BatchID,
			Platform: target.Platform(),
			Target:   target.Label(),
			Seq:      i,
			Strategy: string(strategy),
			Embeds:   len(msg.Embeds),
			Files:    len(msg.Files),
			Bytes:    msg.FileBytes(),
			Latency:  time.Since(start),
			Err:      err,
		}

		if err != nil {
			report.Failed++
			s.logger.Error(err.Error(),
				"shard", target.Label(),
				"platform", target.Platform(),
				"batch", report.BatchID,
				"index", i,
				"strategy", strategy,
			)
			s.events.Emit(bus.Event{Type: bus.EventDeliveryFailed, Source: "sender", Delivery: d})
			continue
		}

		report.Sent++
		s.events.Emit(bus.Event{Type: bus.EventDeliverySent, Source: "sender", Delivery: d})
	}

	s.events.Emit(bus.Event{
		Type:   bus.EventBatchCompleted,
		Source: "sender",
		Batch: &bus.Batch{
			BatchID:  report.BatchID,
			Platform: target.Platform(),
			Target:   target.Label(),
			Strategy: string(strategy),
			Messages: report.Messages,
			Failed:   report.Failed,
		},
	})

	s.logger.Debug("response sent",
		"batch", report.BatchID,
		"strategy", strategy,
		"messages", report.Messages,
		"failed", report.Failed,
	)
	return report
}
