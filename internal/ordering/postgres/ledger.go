package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/RobertoCastro391/eShop-AS-02/internal/ordering/app"
)

// Ledger backs the request ledger with a (request_id, command_type)
// primary key. The insert-if-absent is the serialization point for
// concurrent duplicates.
type Ledger struct {
	q querier
}

func (l *Ledger) TryBegin(ctx context.Context, requestID, commandType string) (app.BeginResult, error) {
	ct, err := l.q.Exec(ctx, `INSERT INTO request_ledger(request_id, command_type, status)
		VALUES ($1, $2, 'in_flight')
		ON CONFLICT (request_id, command_type) DO NOTHING`, requestID, commandType)
	if err != nil {
		return app.BeginResult{}, err
	}
	if ct.RowsAffected() == 1 {
		return app.BeginResult{State: app.BeginNew}, nil
	}

	var (
		status string
		result []byte
	)
	err = l.q.QueryRow(ctx, `SELECT status, result FROM request_ledger
		WHERE request_id=$1 AND command_type=$2`, requestID, commandType).Scan(&status, &result)
	if errors.Is(err, pgx.ErrNoRows) {
		// The conflicting insert rolled back between our statements.
		return app.BeginResult{State: app.BeginInFlight}, nil
	}
	if err != nil {
		return app.BeginResult{}, err
	}
	if status == "completed" {
		return app.BeginResult{State: app.BeginCompleted, Result: result}, nil
	}
	return app.BeginResult{State: app.BeginInFlight}, nil
}

func (l *Ledger) Complete(ctx context.Context, requestID, commandType string, result []byte) error {
	_, err := l.q.Exec(ctx, `UPDATE request_ledger SET status='completed', result=$3, completed_at=now()
		WHERE request_id=$1 AND command_type=$2`, requestID, commandType, result)
	return err
}
