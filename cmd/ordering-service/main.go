package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RobertoCastro391/eShop-AS-02/internal/ordering/app"
	"github.com/RobertoCastro391/eShop-AS-02/internal/ordering/domain"
	"github.com/RobertoCastro391/eShop-AS-02/internal/ordering/postgres"
	"github.com/RobertoCastro391/eShop-AS-02/pkg/idempotency"
	"github.com/RobertoCastro391/eShop-AS-02/pkg/metrics"
)

type config struct {
	Port             string `env:"PORT" envDefault:"8080"`
	DatabaseURL      string `env:"DATABASE_URL,required"`
	RequestTimeoutMS int    `env:"REQUEST_TIMEOUT_MS" envDefault:"5000"`
}

type orderItemDTO struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   int64  `json:"unit_price"`
	Discount    int64  `json:"discount"`
	Quantity    int32  `json:"quantity"`
}

type addressDTO struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	ZipCode string `json:"zip_code"`
}

type cardDTO struct {
	Type       string    `json:"type"`
	Number     string    `json:"number"`
	Holder     string    `json:"holder"`
	Expiration time.Time `json:"expiration"`
}

type placeOrderRequest struct {
	BuyerID   string         `json:"buyer_id"`
	BuyerName string         `json:"buyer_name"`
	Address   addressDTO     `json:"address"`
	Card      cardDTO        `json:"card"`
	Items     []orderItemDTO `json:"items"`
}

type rejectStockRequest struct {
	Products []string `json:"products"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type commandResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

type orderResponse struct {
	OrderID     string         `json:"order_id"`
	BuyerID     string         `json:"buyer_id"`
	BuyerName   string         `json:"buyer_name"`
	Status      string         `json:"status"`
	OrderDate   time.Time      `json:"order_date"`
	Address     addressDTO     `json:"address"`
	Items       []orderItemDTO `json:"items"`
	Total       int64          `json:"total"`
	Description string         `json:"description,omitempty"`
}

func main() {
	cfg, err := env.ParseAs[config]()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("db ping error: %v", err)
	}

	svc := app.NewService(postgres.NewStore(pool), app.DefaultReactors(), metrics.NewOrderingMetrics())
	srvMetrics := metrics.NewServerMetrics("ordering_service")
	timeout := time.Duration(cfg.RequestTimeoutMS) * time.Millisecond

	api := &api{svc: svc, metrics: srvMetrics, timeout: timeout}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "db_error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	mux.Handle("/metrics", metrics.Handler())

	mux.HandleFunc("POST /orders", api.placeOrder)
	mux.HandleFunc("GET /orders/{id}", api.getOrder)
	mux.HandleFunc("POST /orders/{id}/confirm-grace-period", api.command(app.CommandConfirmGracePeriod, svc.ConfirmGracePeriod))
	mux.HandleFunc("POST /orders/{id}/confirm-stock", api.command(app.CommandConfirmStock, svc.ConfirmStock))
	mux.HandleFunc("POST /orders/{id}/reject-stock", api.rejectStock)
	mux.HandleFunc("POST /orders/{id}/confirm-payment", api.command(app.CommandConfirmPayment, svc.ConfirmPayment))
	mux.HandleFunc("POST /orders/{id}/ship", api.command(app.CommandShipOrder, svc.ShipOrder))
	mux.HandleFunc("POST /orders/{id}/cancel", api.cancel)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log.Printf("ordering-service listening on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server error: %v", err)
	}
}

type api struct {
	svc     *app.Service
	metrics *metrics.ServerMetrics
	timeout time.Duration
}

func (a *api) placeOrder(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.reply(w, "place_order", start, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()

	cmd := app.PlaceOrderCommand{
		BuyerID:   req.BuyerID,
		BuyerName: req.BuyerName,
		Address: domain.Address{
			Street: req.Address.Street, City: req.Address.City, State: req.Address.State,
			Country: req.Address.Country, ZipCode: req.Address.ZipCode,
		},
		Card: domain.PaymentCard{
			Type: req.Card.Type, Number: req.Card.Number,
			Holder: req.Card.Holder, Expiration: req.Card.Expiration,
		},
	}
	for _, it := range req.Items {
		cmd.Items = append(cmd.Items, app.PlaceOrderItem{
			ProductID: it.ProductID, ProductName: it.ProductName,
			UnitPrice: it.UnitPrice, Discount: it.Discount, Quantity: it.Quantity,
		})
	}

	res, err := a.svc.PlaceOrder(ctx, idempotency.Key(r), cmd)
	if err != nil {
		code := statusFor(err)
		a.reply(w, "place_order", start, code, map[string]any{"error": err.Error()})
		return
	}
	a.reply(w, "place_order", start, codeFor(res), responseFor(res))
}

// command wraps one parameterless lifecycle transition; the service
// method is bound at route registration.
func (a *api) command(cmdType string, call func(ctx context.Context, key, id string) (app.Result, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
		defer cancel()

		res, err := call(ctx, idempotency.Key(r), r.PathValue("id"))
		if err != nil {
			a.reply(w, cmdType, start, statusFor(err), map[string]any{"error": err.Error()})
			return
		}
		a.reply(w, cmdType, start, codeFor(res), responseFor(res))
	}
}

func (a *api) rejectStock(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req rejectStockRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.reply(w, app.CommandRejectStock, start, http.StatusBadRequest, map[string]any{"error": "invalid json"})
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()

	res, err := a.svc.RejectStock(ctx, idempotency.Key(r), r.PathValue("id"), req.Products)
	if err != nil {
		a.reply(w, app.CommandRejectStock, start, statusFor(err), map[string]any{"error": err.Error()})
		return
	}
	a.reply(w, app.CommandRejectStock, start, codeFor(res), responseFor(res))
}

func (a *api) cancel(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req cancelRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.reply(w, app.CommandCancelOrder, start, http.StatusBadRequest, map[string]any{"error": "invalid json"})
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "cancelled by the buyer"
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()

	res, err := a.svc.CancelOrder(ctx, idempotency.Key(r), r.PathValue("id"), req.Reason)
	if err != nil {
		a.reply(w, app.CommandCancelOrder, start, statusFor(err), map[string]any{"error": err.Error()})
		return
	}
	a.reply(w, app.CommandCancelOrder, start, codeFor(res), responseFor(res))
}

func (a *api) getOrder(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()

	o, err := a.svc.GetOrder(ctx, r.PathValue("id"))
	if err != nil {
		a.reply(w, "get_order", start, statusFor(err), map[string]any{"error": err.Error()})
		return
	}

	resp := orderResponse{
		OrderID:   string(o.ID),
		BuyerID:   string(o.BuyerID),
		BuyerName: o.BuyerName,
		Status:    string(o.Status),
		OrderDate: o.OrderDate,
		Address: addressDTO{
			Street: o.Address.Street, City: o.Address.City, State: o.Address.State,
			Country: o.Address.Country, ZipCode: o.Address.ZipCode,
		},
		Total:       o.Total(),
		Description: o.Description,
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, orderItemDTO{
			ProductID: string(it.ProductID), ProductName: it.ProductName,
			UnitPrice: it.UnitPrice, Discount: it.Discount, Quantity: it.Quantity,
		})
	}
	a.reply(w, "get_order", start, http.StatusOK, resp)
}

func (a *api) reply(w http.ResponseWriter, route string, start time.Time, code int, v any) {
	writeJSON(w, code, v)
	a.metrics.Requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	a.metrics.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
}

// codeFor maps a command outcome onto a status code. A replayed failure
// carries the stored error back with 422 so retries stay deterministic.
func codeFor(res app.Result) int {
	if !res.Success {
		return http.StatusUnprocessableEntity
	}
	return http.StatusOK
}

func responseFor(res app.Result) commandResponse {
	status := "applied"
	switch {
	case res.Replayed && res.Success:
		status = "idempotent_replay"
	case !res.Success:
		status = "failed"
	}
	return commandResponse{OrderID: res.OrderID, Status: status, Error: res.Error}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, app.ErrConcurrentDuplicate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
