package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/RobertoCastro391/eShop-AS-02/internal/ordering/domain"
)

func placeCmd() PlaceOrderCommand {
	return PlaceOrderCommand{
		BuyerID:   "buyer-42",
		BuyerName: "John",
		Address:   domain.Address{Street: "1 Main St", City: "Porto", Country: "PT", ZipCode: "4000"},
		Card:      domain.PaymentCard{Type: "visa", Number: "****1881", Holder: "John"},
		Items:     []PlaceOrderItem{{ProductID: "p-1", ProductName: "Mug", UnitPrice: 100, Quantity: 2}},
	}
}

func TestExecuteRequiresKey(t *testing.T) {
	st := newMemStore()
	svc := NewService(st, DefaultReactors(), nil)
	if _, err := svc.PlaceOrder(context.Background(), "", placeCmd()); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if len(st.orders) != 0 || len(st.outbox) != 0 {
		t.Fatalf("rejected command left state behind")
	}
}

func TestDuplicateReturnsStoredResult(t *testing.T) {
	st := newMemStore()
	svc := NewService(st, DefaultReactors(), nil)
	ctx := context.Background()

	first, err := svc.PlaceOrder(ctx, "abc", placeCmd())
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := svc.PlaceOrder(ctx, "abc", placeCmd())
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !second.Replayed {
		t.Fatalf("second call was not a replay")
	}
	if second.OrderID != first.OrderID {
		t.Fatalf("replay order id = %s, want %s", second.OrderID, first.OrderID)
	}
	if len(st.orders) != 1 {
		t.Fatalf("orders = %d, want exactly 1", len(st.orders))
	}
	if len(st.outbox) != 1 {
		t.Fatalf("outbox = %d, want exactly 1 event", len(st.outbox))
	}
}

func TestConcurrentDuplicateFailsFast(t *testing.T) {
	st := newMemStore()
	st.setInFlight("abc", CommandPlaceOrder)
	svc := NewService(st, DefaultReactors(), nil)
	if _, err := svc.PlaceOrder(context.Background(), "abc", placeCmd()); !errors.Is(err, ErrConcurrentDuplicate) {
		t.Fatalf("err = %v, want ErrConcurrentDuplicate", err)
	}
}

func TestConcurrentSameKeyProducesOneOrder(t *testing.T) {
	st := newMemStore()
	svc := NewService(st, DefaultReactors(), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]Result, 4)
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.PlaceOrder(ctx, "same-key", placeCmd())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if results[i].OrderID != results[0].OrderID {
			t.Fatalf("call %d returned order %s, want %s", i, results[i].OrderID, results[0].OrderID)
		}
	}
	if len(st.orders) != 1 {
		t.Fatalf("orders = %d, want exactly 1", len(st.orders))
	}
	if len(st.outbox) != 1 {
		t.Fatalf("outbox = %d, want exactly 1 event", len(st.outbox))
	}
}

func TestHandlerFailureRecordsNothing(t *testing.T) {
	st := newMemStore()
	proc := NewProcessor(st)
	ctx := context.Background()
	boom := errors.New("transient")

	_, err := proc.Execute(ctx, CommandSpec{Type: "test_cmd"}, "k1", func(ctx context.Context, tx Tx) (Result, error) {
		return Result{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want the handler fault", err)
	}
	if len(st.ledger) != 0 {
		t.Fatalf("ledger rows = %d, want 0 after rollback", len(st.ledger))
	}

	// The retry re-enters the non-duplicate path.
	res, err := proc.Execute(ctx, CommandSpec{Type: "test_cmd"}, "k1", func(ctx context.Context, tx Tx) (Result, error) {
		return Result{OrderID: "o-1", Success: true}, nil
	})
	if err != nil || res.Replayed {
		t.Fatalf("retry: res = %+v, err = %v, want a fresh success", res, err)
	}
}

func TestRecordFailuresPolicy(t *testing.T) {
	st := newMemStore()
	proc := NewProcessor(st)
	ctx := context.Background()
	spec := CommandSpec{Type: "strict_cmd", RecordFailures: true}

	_, err := proc.Execute(ctx, spec, "k1", func(ctx context.Context, tx Tx) (Result, error) {
		return Result{}, errors.New("deterministic failure")
	})
	if err == nil {
		t.Fatalf("expected the handler fault to propagate")
	}

	res, err := proc.Execute(ctx, spec, "k1", func(ctx context.Context, tx Tx) (Result, error) {
		t.Fatalf("handler must not run on a recorded duplicate")
		return Result{}, nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !res.Replayed || res.Success {
		t.Fatalf("res = %+v, want replayed stored failure", res)
	}
	if res.Error != "deterministic failure" {
		t.Fatalf("stored error = %q", res.Error)
	}
}

func TestAtomicityAcrossOrderAndOutbox(t *testing.T) {
	st := newMemStore()
	proc := NewProcessor(st)
	reactors := DefaultReactors()
	ctx := context.Background()
	boom := errors.New("crash after mutation")

	_, err := proc.Execute(ctx, CommandSpec{Type: CommandPlaceOrder}, "k1", func(ctx context.Context, tx Tx) (Result, error) {
		order, err := domain.NewOrder("o-1", "buyer-42", "John", domain.Address{}, domain.PaymentCard{})
		if err != nil {
			return Result{}, err
		}
		if err := tx.Orders().Add(ctx, order); err != nil {
			return Result{}, err
		}
		for _, ev := range order.Events() {
			if err := reactors.Dispatch(ctx, tx, ev); err != nil {
				return Result{}, err
			}
		}
		return Result{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if len(st.orders) != 0 {
		t.Fatalf("order survived the rollback")
	}
	if len(st.outbox) != 0 {
		t.Fatalf("outbox entry survived the rollback")
	}
	if len(st.ledger) != 0 {
		t.Fatalf("ledger row survived the rollback")
	}
}
