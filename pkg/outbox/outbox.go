package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/RobertoCastro391/eShop-AS-02/pkg/contracts"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

type Record struct {
	ID          int64
	EventID     string
	EventType   string
	OrderID     string
	Payload     json.RawMessage
	Status      Status
	Attempts    int32
	CreatedAt   time.Time
	PublishedAt *time.Time
}

// Querier is satisfied by *pgxpool.Pool and pgx.Tx; Enqueue must be
// handed the transaction of the mutation it announces.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func Enqueue(ctx context.Context, q Querier, evt contracts.Event) error {
	_, err := q.Exec(ctx, `INSERT INTO outbox(event_id, event_type, order_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		evt.EventID, evt.EventType, evt.OrderID, evt.Payload, evt.OccurredAt)
	return err
}

// PgQueue is the publisher-side view of the outbox table.
type PgQueue struct {
	DB Querier
}

// ClaimPending returns due entries, at most one per order: an entry is
// claimable only while no older pending entry exists for its order, so
// an order whose head is waiting out a backoff holds back its
// successors instead of letting them jump the line.
func (s *PgQueue) ClaimPending(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, event_id, event_type, order_id, payload, status, attempts, created_at, published_at
		FROM outbox o
		WHERE o.status = 'pending' AND (o.next_attempt_at IS NULL OR o.next_attempt_at <= now())
		AND NOT EXISTS (
			SELECT 1 FROM outbox prior
			WHERE prior.order_id = o.order_id AND prior.status = 'pending' AND prior.id < o.id
		)
		ORDER BY o.id
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.EventType, &rec.OrderID, &rec.Payload,
			&rec.Status, &rec.Attempts, &rec.CreatedAt, &rec.PublishedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PgQueue) MarkPublished(ctx context.Context, id int64) error {
	_, err := s.DB.Exec(ctx, `UPDATE outbox SET status='published', published_at=now() WHERE id=$1`, id)
	return err
}

func (s *PgQueue) RecordAttempt(ctx context.Context, id int64, nextAttempt time.Time) error {
	_, err := s.DB.Exec(ctx, `UPDATE outbox SET attempts=attempts+1, next_attempt_at=$2 WHERE id=$1`, id, nextAttempt)
	return err
}

func (s *PgQueue) MarkFailed(ctx context.Context, id int64) error {
	_, err := s.DB.Exec(ctx, `UPDATE outbox SET status='failed' WHERE id=$1`, id)
	return err
}
