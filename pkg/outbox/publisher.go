package outbox

import (
	"context"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/RobertoCastro391/eShop-AS-02/pkg/contracts"
	"github.com/RobertoCastro391/eShop-AS-02/pkg/kafka"
	"github.com/RobertoCastro391/eShop-AS-02/pkg/logging"
	"github.com/RobertoCastro391/eShop-AS-02/pkg/metrics"
)

type Queue interface {
	// ClaimPending returns due pending records oldest-first and must
	// withhold a record while an older pending record exists for the
	// same order, even one waiting out a retry backoff.
	ClaimPending(ctx context.Context, limit int) ([]Record, error)
	MarkPublished(ctx context.Context, id int64) error
	RecordAttempt(ctx context.Context, id int64, nextAttempt time.Time) error
	MarkFailed(ctx context.Context, id int64) error
}

type Sink interface {
	Publish(ctx context.Context, rec Record) error
}

// KafkaSink writes the envelope keyed by order id, so the hash balancer
// keeps one order's events on one partition.
type KafkaSink struct {
	Writer *kafkago.Writer
}

func (s *KafkaSink) Publish(ctx context.Context, rec Record) error {
	return kafka.PublishEvent(ctx, s.Writer, contracts.Event{
		EventID:    rec.EventID,
		EventType:  rec.EventType,
		OrderID:    rec.OrderID,
		OccurredAt: rec.CreatedAt,
		Payload:    rec.Payload,
	})
}

const (
	defaultBatchSize   = 50
	defaultInterval    = 500 * time.Millisecond
	defaultBaseDelay   = time.Second
	defaultMaxDelay    = time.Minute
	defaultMaxAttempts = 10
)

// Publisher drains pending outbox entries oldest-first and delivers
// them at-least-once. A delivery failure schedules a retry with
// exponential backoff; once the attempt ceiling is hit the entry is
// marked failed and left for an operator, never silently dropped.
type Publisher struct {
	Queue       Queue
	Sink        Sink
	BatchSize   int
	Interval    time.Duration
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int32
	Metrics     *metrics.OrderingMetrics
}

func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval())
	defer ticker.Stop()
	for {
		if err := p.DrainOnce(ctx); err != nil {
			logging.Log(logging.Fields{Service: "outbox-publisher", Status: "drain_error", Message: err.Error()})
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Publisher) DrainOnce(ctx context.Context) error {
	recs, err := p.Queue.ClaimPending(ctx, p.batchSize())
	if err != nil {
		return err
	}

	// Once an entry fails, later entries of the same order are skipped
	// for this round to keep per-order delivery in creation order.
	blocked := make(map[string]bool)
	for _, rec := range recs {
		if blocked[rec.OrderID] {
			continue
		}
		if err := p.Sink.Publish(ctx, rec); err != nil {
			blocked[rec.OrderID] = true
			attempts := rec.Attempts + 1
			if attempts >= p.maxAttempts() {
				if err := p.Queue.MarkFailed(ctx, rec.ID); err != nil {
					return err
				}
				p.Metrics.ObserveExhausted()
				logging.Log(logging.Fields{Service: "outbox-publisher", OrderID: rec.OrderID, EventID: rec.EventID,
					Step: rec.EventType, Status: "failed", Attempts: attempts, Message: err.Error()})
				continue
			}
			if err := p.Queue.RecordAttempt(ctx, rec.ID, time.Now().Add(p.backoff(attempts))); err != nil {
				return err
			}
			logging.Log(logging.Fields{Service: "outbox-publisher", OrderID: rec.OrderID, EventID: rec.EventID,
				Step: rec.EventType, Status: "retry_scheduled", Attempts: attempts, Message: err.Error()})
			continue
		}
		if err := p.Queue.MarkPublished(ctx, rec.ID); err != nil {
			return err
		}
		p.Metrics.ObservePublished()
		logging.Log(logging.Fields{Service: "outbox-publisher", OrderID: rec.OrderID, EventID: rec.EventID,
			Step: rec.EventType, Status: "published"})
	}
	return nil
}

func (p *Publisher) backoff(attempts int32) time.Duration {
	d := p.baseDelay()
	for i := int32(1); i < attempts; i++ {
		d *= 2
		if d >= p.maxDelay() {
			return p.maxDelay()
		}
	}
	if d > p.maxDelay() {
		return p.maxDelay()
	}
	return d
}

func (p *Publisher) batchSize() int {
	if p.BatchSize > 0 {
		return p.BatchSize
	}
	return defaultBatchSize
}

func (p *Publisher) interval() time.Duration {
	if p.Interval > 0 {
		return p.Interval
	}
	return defaultInterval
}

func (p *Publisher) baseDelay() time.Duration {
	if p.BaseDelay > 0 {
		return p.BaseDelay
	}
	return defaultBaseDelay
}

func (p *Publisher) maxDelay() time.Duration {
	if p.MaxDelay > 0 {
		return p.MaxDelay
	}
	return defaultMaxDelay
}

func (p *Publisher) maxAttempts() int32 {
	if p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return defaultMaxAttempts
}
