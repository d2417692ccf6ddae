// wsmaster-eventlog — пишет события жизненного цикла workspace в PostgreSQL.
//
// Потребляет очередь workspaces.events, которую наполняет wsmaster-api.
// Журнал читается через GET /api/v1/workspaces/{id}/events.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/wsmaster/internal/config"
	"github.com/shaiso/wsmaster/internal/domain"
	"github.com/shaiso/wsmaster/internal/mq"
	"github.com/shaiso/wsmaster/internal/repo"
	"github.com/shaiso/wsmaster/internal/telemetry"
)

var eventsStored = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "wsmaster_eventlog_events_stored_total",
	Help: "Workspace events written to the event log",
}, []string{"type"})

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid config:", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	logger.Info("starting wsmaster-eventlog")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := repo.NewPool(ctx, cfg.DB.URL, cfg.DB.MaxConns)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	if err := repo.Migrate(ctx, pool); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	eventRepo := repo.NewEventRepo(pool)

	// Без брокера журналу неоткуда брать события
	mqConn, err := mq.NewConnection(mq.ConnectionConfig{
		URL:  cfg.RabbitMQ.URL,
		Name: "wsmaster-eventlog",
	}, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}

	consumer := mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
		Queue:    mq.QueueWorkspaceEvents,
		Prefetch: 10,
		Handler: mq.WorkspaceEventHandler(func(ctx context.Context, event domain.WorkspaceEvent) error {
			if err := eventRepo.Append(ctx, event); err != nil {
				return err
			}
			eventsStored.WithLabelValues(string(event.Type)).Inc()
			return nil
		}),
	})

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		status := mqConn.Status()
		w.Header().Set("Content-Type", "application/json")
		if !status.Connected {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(status)
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8084"
	if v := os.Getenv(config.EnvPrefix + "_EVENTLOG_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", "error", err)
	}

	logger.Info("wsmaster-eventlog stopped")
}
