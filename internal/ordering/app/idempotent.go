package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/RobertoCastro391/eShop-AS-02/internal/ordering/domain"
	"github.com/RobertoCastro391/eShop-AS-02/pkg/idempotency"
)

// Result is the command outcome the ledger stores and the caller gets
// back. A replayed duplicate returns the stored result verbatim; the
// resubmitted payload is not re-verified against the original command.
type Result struct {
	OrderID string `json:"order_id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	// Replayed is set when the result came from the ledger instead of
	// the handler. Never persisted.
	Replayed bool `json:"-"`
}

type CommandSpec struct {
	Type string

	// RecordFailures commits failed outcomes to the ledger so a retry
	// with the same key replays the failure deterministically. Left
	// false, a failure rolls back with everything else and a retry
	// re-enters the non-duplicate path.
	RecordFailures bool
}

type HandlerFunc func(ctx context.Context, tx Tx) (Result, error)

// Processor wraps any command handler with the idempotency contract:
// the ledger row, the handler's writes and the outbox entries share one
// transaction, so a crash anywhere leaves no orphaned side effect.
type Processor struct {
	store Store
}

func NewProcessor(store Store) *Processor {
	return &Processor{store: store}
}

func (p *Processor) Execute(ctx context.Context, spec CommandSpec, key string, run HandlerFunc) (Result, error) {
	if !idempotency.Valid(key) {
		return Result{}, fmt.Errorf("%w: idempotency key is required", domain.ErrValidation)
	}

	var out Result
	err := p.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		begin, err := tx.Ledger().TryBegin(ctx, key, spec.Type)
		if err != nil {
			return err
		}
		switch begin.State {
		case BeginCompleted:
			if err := json.Unmarshal(begin.Result, &out); err != nil {
				return fmt.Errorf("decode stored result: %w", err)
			}
			out.Replayed = true
			return nil
		case BeginInFlight:
			return ErrConcurrentDuplicate
		}

		res, err := run(ctx, tx)
		if err != nil {
			return err
		}
		data, err := json.Marshal(res)
		if err != nil {
			return err
		}
		if err := tx.Ledger().Complete(ctx, key, spec.Type, data); err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		if spec.RecordFailures && !errors.Is(err, ErrConcurrentDuplicate) {
			p.recordFailure(ctx, spec, key, err)
		}
		return Result{}, err
	}
	return out, nil
}

// recordFailure runs in its own transaction: the handler's writes are
// already rolled back, only the failed outcome is kept.
func (p *Processor) recordFailure(ctx context.Context, spec CommandSpec, key string, cause error) {
	data, err := json.Marshal(Result{Success: false, Error: cause.Error()})
	if err != nil {
		return
	}
	_ = p.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		begin, err := tx.Ledger().TryBegin(ctx, key, spec.Type)
		if err != nil || begin.State != BeginNew {
			return err
		}
		return tx.Ledger().Complete(ctx, key, spec.Type, data)
	})
}
