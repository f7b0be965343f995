package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RobertoCastro391/eShop-AS-02/pkg/kafka"
	"github.com/RobertoCastro391/eShop-AS-02/pkg/metrics"
	"github.com/RobertoCastro391/eShop-AS-02/pkg/outbox"
)

type config struct {
	Port         string `env:"PORT" envDefault:"8081"`
	DatabaseURL  string `env:"DATABASE_URL,required"`
	KafkaBrokers string `env:"KAFKA_BROKERS,required"`
	Topic        string `env:"KAFKA_TOPIC" envDefault:"ordering.events"`
	BatchSize    int    `env:"OUTBOX_BATCH_SIZE" envDefault:"50"`
	IntervalMS   int    `env:"OUTBOX_INTERVAL_MS" envDefault:"500"`
	BaseDelayMS  int    `env:"OUTBOX_BASE_DELAY_MS" envDefault:"1000"`
	MaxDelayMS   int    `env:"OUTBOX_MAX_DELAY_MS" envDefault:"60000"`
	MaxAttempts  int32  `env:"OUTBOX_MAX_ATTEMPTS" envDefault:"10"`
}

func main() {
	cfg, err := env.ParseAs[config]()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("db ping error: %v", err)
	}

	client := kafka.NewClient(cfg.KafkaBrokers)
	if !client.Enabled() {
		log.Fatal("KAFKA_BROKERS resolved to no brokers")
	}
	writer := client.NewEventWriter(cfg.Topic)
	defer writer.Close()

	pub := &outbox.Publisher{
		Queue:       &outbox.PgQueue{DB: pool},
		Sink:        &outbox.KafkaSink{Writer: writer},
		BatchSize:   cfg.BatchSize,
		Interval:    time.Duration(cfg.IntervalMS) * time.Millisecond,
		BaseDelay:   time.Duration(cfg.BaseDelayMS) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.MaxDelayMS) * time.Millisecond,
		MaxAttempts: cfg.MaxAttempts,
		Metrics:     metrics.NewOrderingMetrics(),
	}
	go func() {
		if err := pub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("publisher stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "db_error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("outbox-publisher listening on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
