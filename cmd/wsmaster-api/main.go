// wsmaster-api — HTTP API управления runtime'ами workspace.
//
// Процесс:
//   - Держит реестр runtime'ов в памяти (Orchestrator)
//   - Запускает машины как Docker контейнеры
//   - Публикует события жизненного цикла в RabbitMQ
//   - Удаляет устаревшие snapshot'ы по расписанию
//
// При SIGINT/SIGTERM останавливает HTTP сервер, затем все runtime'ы.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/wsmaster/internal/agent"
	"github.com/shaiso/wsmaster/internal/api"
	"github.com/shaiso/wsmaster/internal/config"
	"github.com/shaiso/wsmaster/internal/domain"
	"github.com/shaiso/wsmaster/internal/engine"
	"github.com/shaiso/wsmaster/internal/events"
	"github.com/shaiso/wsmaster/internal/janitor"
	"github.com/shaiso/wsmaster/internal/mq"
	"github.com/shaiso/wsmaster/internal/orchestrator"
	"github.com/shaiso/wsmaster/internal/repo"
	"github.com/shaiso/wsmaster/internal/telemetry"
)

// historySize — сколько событий хранить в памяти без журнала в БД.
const historySize = 1000

var startTime = time.Now()

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid config:", err)
		os.Exit(1)
	}

	// Инициализируем structured logging
	logger := telemetry.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	logger.Info("starting wsmaster-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	workspaces, err := config.LoadWorkspaces(cfg.API.WorkspacesFile)
	if err != nil {
		logger.Error("failed to load workspaces", "path", cfg.API.WorkspacesFile, "error", err)
		os.Exit(1)
	}

	// Подключаемся к базе данных
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

	snapshotRepo := repo.NewSnapshotRepo(pool)
	eventRepo := repo.NewEventRepo(pool)

	// Docker
	dockerClient, err := engine.NewDockerClient(cfg.Docker.Host)
	if err != nil {
		logger.Error("failed to create docker client", "error", err)
		os.Exit(1)
	}

	eng := engine.New(engine.Config{
		Client:      dockerClient,
		Network:     cfg.Docker.Network,
		StopTimeout: cfg.Docker.StopTimeout(),
		Snapshots:   latestSnapshot(snapshotRepo),
		Logger:      logger,
	})
	defer eng.Close()

	// События
	bus := events.NewBus(logger)
	history := events.NewHistory(historySize)
	bus.Subscribe("history", history.Record)

	var eventLog api.EventLog = history
	if cfg.RabbitMQ.Enabled {
		mqConn, err := mq.NewConnection(mq.ConnectionConfig{
			URL:  cfg.RabbitMQ.URL,
			Name: "wsmaster-api",
		}, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, events stay in memory", "error", err)
		} else {
			defer mqConn.Close()

			if err := mq.SetupTopology(ctx, mqConn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}

			publisher := mq.NewPublisher(mqConn, logger)
			bus.Subscribe("rabbitmq", publisher.PublishWorkspaceEvent)

			// Журнал пишет wsmaster-eventlog
			eventLog = eventRepo
		}
	}

	var launcher orchestrator.AgentLauncher
	if cfg.Agent.Enabled {
		launcher = agent.NewLauncher(agent.Config{
			Port:     cfg.Agent.Port,
			Path:     cfg.Agent.Path,
			Attempts: cfg.Agent.Attempts,
			Interval: cfg.Agent.Interval(),
			Timeout:  cfg.Agent.Timeout(),
			Logger:   logger,
		})
	}

	orch := orchestrator.New(orchestrator.Config{
		Engine:             eng,
		Publisher:          bus,
		AgentLauncher:      launcher,
		Metrics:            telemetry.NewMetrics(prometheus.DefaultRegisterer),
		CleanupConcurrency: cfg.Orchestrator.CleanupConcurrency,
		Logger:             logger,
	})

	// Очистка snapshot'ов
	janitorDone := make(chan struct{})
	if cfg.Janitor.Enabled {
		j := janitor.New(janitor.Config{
			Snapshots: snapshotRepo,
			Remover:   orch,
			Retention: cfg.Janitor.Retention(),
			Lock:      repo.NewAdvisoryLock(pool, janitor.LockKey),
			Logger:    logger,
		})
		go func() {
			defer close(janitorDone)
			if err := j.Run(ctx, cfg.Janitor.Schedule); err != nil {
				logger.Error("janitor failed", "error", err)
			}
		}()
	} else {
		close(janitorDone)
	}

	handler := api.NewHandler(api.Config{
		Runtimes:   orch,
		Snapshots:  snapshotRepo,
		Events:     eventLog,
		Workspaces: workspaces,
		Logger:     logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if orch.IsStopping() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, "stopping")
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	handler.RegisterRoutes(mux)

	addr := fmt.Sprintf(":%d", cfg.API.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr, "workspaces", len(workspaces))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout())
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	// Останавливаем все runtime'ы
	cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), cfg.Orchestrator.CleanupTimeout())
	defer cleanupCancel()
	orch.Cleanup(cleanupCtx)

	<-janitorDone
	logger.Info("stopped")
}

// latestSnapshot адаптирует SnapshotRepo к поиску snapshot'а для recover.
func latestSnapshot(snapshots *repo.SnapshotRepo) engine.SnapshotLookup {
	return engine.SnapshotLookupFunc(func(ctx context.Context, workspaceID, envName, machineName string) (*domain.Snapshot, error) {
		s, err := snapshots.Latest(ctx, workspaceID, envName, machineName)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		return s, err
	})
}

