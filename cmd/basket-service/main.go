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

	"github.com/RobertoCastro391/eShop-AS-02/internal/basket"
	"github.com/RobertoCastro391/eShop-AS-02/pkg/contracts"
	"github.com/RobertoCastro391/eShop-AS-02/pkg/kafka"
	"github.com/RobertoCastro391/eShop-AS-02/pkg/logging"
	"github.com/RobertoCastro391/eShop-AS-02/pkg/metrics"
)

type config struct {
	Port         string `env:"PORT" envDefault:"8082"`
	DatabaseURL  string `env:"DATABASE_URL,required"`
	KafkaBrokers string `env:"KAFKA_BROKERS"`
	Topic        string `env:"KAFKA_TOPIC" envDefault:"ordering.events"`
	GroupID      string `env:"KAFKA_GROUP_ID" envDefault:"basket-service"`
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

	repo := basket.NewPgRepository(pool)
	srvMetrics := metrics.NewServerMetrics("basket_service")

	client := kafka.NewClient(cfg.KafkaBrokers)
	if client.Enabled() {
		go consumeOrderStarted(pool, repo, client, cfg)
	}

	api := &api{repo: repo, metrics: srvMetrics}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "db_error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("GET /basket/{buyer}", api.get)
	mux.HandleFunc("PUT /basket/{buyer}", api.replace)
	mux.HandleFunc("DELETE /basket/{buyer}", api.delete)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log.Printf("basket-service listening on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server error: %v", err)
	}
}

// consumeOrderStarted clears the buyer's basket once an order for it is
// placed. The inbox row makes redelivered events no-ops.
func consumeOrderStarted(pool *pgxpool.Pool, repo *basket.PgRepository, client *kafka.Client, cfg config) {
	reader := client.NewGroupReader(cfg.Topic, cfg.GroupID)
	defer reader.Close()
	for {
		msg, err := reader.ReadMessage(context.Background())
		if err != nil {
			log.Printf("kafka read error: %v", err)
			time.Sleep(2 * time.Second)
			continue
		}
		var evt contracts.Event
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			log.Printf("event decode error: %v", err)
			continue
		}
		if evt.EventType != contracts.EventOrderStarted || evt.EventID == "" {
			continue
		}

		ctx := context.Background()
		fresh, err := markSeen(ctx, pool, evt.EventID)
		if err != nil {
			log.Printf("inbox error: %v", err)
			continue
		}
		if !fresh {
			continue
		}

		var started contracts.OrderStarted
		if err := json.Unmarshal(evt.Payload, &started); err != nil {
			log.Printf("payload decode error: %v", err)
			continue
		}
		if err := repo.Delete(ctx, started.UserID); err != nil {
			log.Printf("basket delete error: %v", err)
			continue
		}
		logging.Log(logging.Fields{Service: "basket-service", OrderID: evt.OrderID, EventID: evt.EventID,
			Step: evt.EventType, Status: "basket_cleared"})
	}
}

func markSeen(ctx context.Context, pool *pgxpool.Pool, eventID string) (bool, error) {
	ct, err := pool.Exec(ctx, `INSERT INTO inbox(event_id, received_at)
		VALUES ($1, now()) ON CONFLICT (event_id) DO NOTHING`, eventID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

type api struct {
	repo    basket.Repository
	metrics *metrics.ServerMetrics
}

func (a *api) get(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	b, err := a.repo.Get(r.Context(), r.PathValue("buyer"))
	if err != nil {
		a.reply(w, "get_basket", start, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	if b == nil {
		b = &basket.CustomerBasket{BuyerID: r.PathValue("buyer"), Items: []basket.Item{}}
	}
	a.reply(w, "get_basket", start, http.StatusOK, b)
}

func (a *api) replace(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var b basket.CustomerBasket
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		a.reply(w, "replace_basket", start, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	b.BuyerID = r.PathValue("buyer")
	if err := a.repo.Replace(r.Context(), &b); err != nil {
		a.reply(w, "replace_basket", start, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	a.reply(w, "replace_basket", start, http.StatusOK, b)
}

func (a *api) delete(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := a.repo.Delete(r.Context(), r.PathValue("buyer")); err != nil {
		a.reply(w, "delete_basket", start, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	a.reply(w, "delete_basket", start, http.StatusNoContent, nil)
}

func (a *api) reply(w http.ResponseWriter, route string, start time.Time, code int, v any) {
	if v != nil {
		writeJSON(w, code, v)
	} else {
		w.WriteHeader(code)
	}
	a.metrics.Requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	a.metrics.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
