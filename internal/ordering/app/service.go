package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/RobertoCastro391/eShop-AS-02/internal/ordering/domain"
	"github.com/RobertoCastro391/eShop-AS-02/pkg/logging"
	"github.com/RobertoCastro391/eShop-AS-02/pkg/metrics"
)

const (
	CommandPlaceOrder         = "place_order"
	CommandConfirmGracePeriod = "confirm_grace_period"
	CommandConfirmStock       = "confirm_stock"
	CommandRejectStock        = "reject_stock"
	CommandConfirmPayment     = "confirm_payment"
	CommandShipOrder          = "ship_order"
	CommandCancelOrder        = "cancel_order"
)

type PlaceOrderItem struct {
	ProductID   string
	ProductName string
	UnitPrice   int64
	Discount    int64
	Quantity    int32
}

type PlaceOrderCommand struct {
	BuyerID   string
	BuyerName string
	Address   domain.Address
	Card      domain.PaymentCard
	Items     []PlaceOrderItem
}

// Service is the command surface of the ordering core. Every command
// goes through the idempotent processor; lifecycle confirmations from
// other services re-enter the same pipeline as plain commands.
type Service struct {
	store    Store
	proc     *Processor
	reactors *ReactorSet
	metrics  *metrics.OrderingMetrics

	newID func() string
}

func NewService(store Store, reactors *ReactorSet, m *metrics.OrderingMetrics) *Service {
	return &Service{
		store:    store,
		proc:     NewProcessor(store),
		reactors: reactors,
		metrics:  m,
		newID:    uuid.NewString,
	}
}

func (s *Service) PlaceOrder(ctx context.Context, key string, cmd PlaceOrderCommand) (Result, error) {
	start := time.Now()
	if len(cmd.Items) == 0 {
		return Result{}, fmt.Errorf("%w: at least one item is required", domain.ErrValidation)
	}

	res, err := s.proc.Execute(ctx, CommandSpec{Type: CommandPlaceOrder}, key, func(ctx context.Context, tx Tx) (Result, error) {
		order, err := domain.NewOrder(domain.OrderID(s.newID()), domain.BuyerID(cmd.BuyerID), cmd.BuyerName, cmd.Address, cmd.Card)
		if err != nil {
			return Result{}, err
		}
		for _, it := range cmd.Items {
			if err := order.AddOrderItem(domain.ProductID(it.ProductID), it.ProductName, it.UnitPrice, it.Discount, it.Quantity); err != nil {
				return Result{}, err
			}
		}
		if err := tx.Orders().Add(ctx, order); err != nil {
			return Result{}, err
		}
		if err := s.drain(ctx, tx, order); err != nil {
			return Result{}, err
		}
		return Result{OrderID: string(order.ID), Success: true}, nil
	})
	if err != nil {
		s.metrics.ObserveFailed()
		logging.Log(logging.Fields{Service: "ordering", RequestID: key, Command: CommandPlaceOrder, Status: "failed", Message: err.Error()})
		return Result{}, err
	}
	if res.Replayed {
		s.metrics.ObserveDuplicate()
		logging.Log(logging.Fields{Service: "ordering", RequestID: key, OrderID: res.OrderID, Command: CommandPlaceOrder, Status: "idempotent_replay"})
		return res, nil
	}
	s.metrics.ObservePlaced(time.Since(start))
	logging.Log(logging.Fields{Service: "ordering", RequestID: key, OrderID: res.OrderID, Command: CommandPlaceOrder, Status: "placed", DurationMS: time.Since(start).Milliseconds()})
	return res, nil
}

func (s *Service) ConfirmGracePeriod(ctx context.Context, key, orderID string) (Result, error) {
	return s.transition(ctx, key, CommandConfirmGracePeriod, orderID, (*domain.Order).SetAwaitingValidation)
}

func (s *Service) ConfirmStock(ctx context.Context, key, orderID string) (Result, error) {
	return s.transition(ctx, key, CommandConfirmStock, orderID, (*domain.Order).SetStockConfirmed)
}

// RejectStock cancels the order naming the products that could not be
// reserved.
func (s *Service) RejectStock(ctx context.Context, key, orderID string, rejected []string) (Result, error) {
	reason := "some items were rejected by stock"
	if len(rejected) > 0 {
		reason = fmt.Sprintf("the following products are out of stock: %s", strings.Join(rejected, ", "))
	}
	return s.transition(ctx, key, CommandRejectStock, orderID, func(o *domain.Order) error {
		return o.Cancel(reason)
	})
}

func (s *Service) ConfirmPayment(ctx context.Context, key, orderID string) (Result, error) {
	return s.transition(ctx, key, CommandConfirmPayment, orderID, (*domain.Order).MarkAsPaid)
}

func (s *Service) ShipOrder(ctx context.Context, key, orderID string) (Result, error) {
	return s.transition(ctx, key, CommandShipOrder, orderID, (*domain.Order).Ship)
}

func (s *Service) CancelOrder(ctx context.Context, key, orderID, reason string) (Result, error) {
	return s.transition(ctx, key, CommandCancelOrder, orderID, func(o *domain.Order) error {
		return o.Cancel(reason)
	})
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var order *domain.Order
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.Orders().Get(ctx, domain.OrderID(orderID))
		if err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return order, nil
}

func (s *Service) transition(ctx context.Context, key, cmdType, orderID string, mutate func(*domain.Order) error) (Result, error) {
	if orderID == "" {
		return Result{}, fmt.Errorf("%w: order id is required", domain.ErrValidation)
	}
	res, err := s.proc.Execute(ctx, CommandSpec{Type: cmdType}, key, func(ctx context.Context, tx Tx) (Result, error) {
		order, err := tx.Orders().Get(ctx, domain.OrderID(orderID))
		if err != nil {
			return Result{}, err
		}
		if order == nil {
			return Result{}, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
		}
		if err := mutate(order); err != nil {
			return Result{}, err
		}
		if err := tx.Orders().Update(ctx, order); err != nil {
			return Result{}, err
		}
		if err := s.drain(ctx, tx, order); err != nil {
			return Result{}, err
		}
		return Result{OrderID: orderID, Success: true}, nil
	})
	if err != nil {
		logging.Log(logging.Fields{Service: "ordering", RequestID: key, OrderID: orderID, Command: cmdType, Status: "failed", Message: err.Error()})
		return Result{}, err
	}
	status := "applied"
	if res.Replayed {
		status = "idempotent_replay"
		s.metrics.ObserveDuplicate()
	}
	logging.Log(logging.Fields{Service: "ordering", RequestID: key, OrderID: orderID, Command: cmdType, Status: status})
	return res, nil
}

// drain runs the registered reactors over the events the aggregate
// recorded, inside the same transaction as the mutation they announce.
func (s *Service) drain(ctx context.Context, tx Tx, o *domain.Order) error {
	for _, ev := range o.Events() {
		if err := s.reactors.Dispatch(ctx, tx, ev); err != nil {
			return err
		}
	}
	o.ClearEvents()
	return nil
}
