package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/hokaccha/remindd/internal/config"
	"github.com/hokaccha/remindd/internal/model"
	"github.com/hokaccha/remindd/internal/monitor"
	"github.com/hokaccha/remindd/internal/notify"
	"github.com/hokaccha/remindd/internal/scheduler"
	"github.com/hokaccha/remindd/internal/service"
	"github.com/hokaccha/remindd/internal/storage"
)

func main() {
	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load("./config")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("Failed to resolve timezone", zap.Error(err))
	}

	// Open the task/execution store
	store, err := storage.NewSQLiteStore(logger, cfg.Storage.Path)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer store.Close()

	// Connect to NATS with retry
	opts := []nats.Option{
		nats.Name(cfg.App.Name),
		nats.MaxReconnects(cfg.NATS.MaxReconnects),
		nats.ReconnectWait(cfg.NATS.ReconnectWait),
		nats.Timeout(cfg.NATS.ConnectTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	var nc *nats.Conn
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		nc, err = nats.Connect(cfg.NATS.URLs[0], opts...)
		if err == nil {
			break
		}
		logger.Warn("Failed to connect to NATS, retrying...",
			zap.Int("attempt", i+1),
			zap.Error(err))
		time.Sleep(time.Second * time.Duration(i+1))
	}
	if err != nil {
		logger.Fatal("Failed to connect to NATS after retries", zap.Error(err))
	}
	defer nc.Close()

	logger.Info("Connected to NATS", zap.String("url", nc.ConnectedUrl()))

	js, err := nc.JetStream()
	if err != nil {
		logger.Fatal("Failed to create JetStream context", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Notification collaborators
	gate := notify.NewStaticGate(cfg.Notifications.Enabled)
	dispatcher := notify.NewJetStreamDispatcher(js, gate, logger)
	if err := dispatcher.Start(ctx); err != nil {
		logger.Fatal("Failed to start dispatcher", zap.Error(err))
	}

	relay := notify.NewRelay(js, logger)
	if cfg.Notifications.Email.Enabled {
		relay.RegisterChannel("email", notify.NewEmailChannel(logger, notify.EmailConfig{
			Host:     cfg.Notifications.Email.Host,
			Port:     cfg.Notifications.Email.Port,
			Username: cfg.Notifications.Email.Username,
			Password: cfg.Notifications.Email.Password,
			From:     cfg.Notifications.Email.From,
			To:       cfg.Notifications.Email.To,
		}))
	}
	if err := relay.Start(ctx); err != nil {
		logger.Fatal("Failed to start notification relay", zap.Error(err))
	}
	defer relay.Stop()

	// Lifecycle coordinator: cold-start pass, minute tick, hourly rollover
	coordinator := scheduler.NewCoordinator(store, dispatcher, scheduler.CoordinatorOptions{
		GracePeriod:   cfg.Reminder.GracePeriod,
		RetentionDays: cfg.Reminder.RetentionDays,
		Location:      loc,
	}, logger)
	if err := coordinator.Start(ctx); err != nil {
		logger.Fatal("Failed to start coordinator", zap.Error(err))
	}
	defer coordinator.Stop()

	// Task command surface
	tasks := service.NewTaskService(store, dispatcher, coordinator.Materializer(), loc, logger)
	commands := service.NewCommandListener(js, tasks, logger)
	if err := commands.Start(ctx); err != nil {
		logger.Fatal("Failed to start command listener", zap.Error(err))
	}
	defer commands.Stop()

	// Health monitor
	health := monitor.NewHealthMonitor(js, time.Minute, func(ctx context.Context) (int, error) {
		executions, err := store.LoadExecutions(ctx, nil)
		if err != nil {
			return 0, err
		}
		count := 0
		for _, exec := range executions {
			if exec.Status == model.ExecutionStatusPending {
				count++
			}
		}
		return count, nil
	}, logger)
	if err := health.Start(ctx); err != nil {
		logger.Fatal("Failed to start health monitor", zap.Error(err))
	}
	defer health.Stop()

	// SIGUSR1 maps to the foreground-resume trigger: re-derive state from the
	// wall clock after a suspension.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)

	for {
		sig := <-sigCh
		if sig == syscall.SIGUSR1 {
			logger.Info("Resume signal received")
			if err := coordinator.Resume(ctx); err != nil {
				logger.Error("Resume pass failed", zap.Error(err))
			}
			continue
		}
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		break
	}

	cancel()
	logger.Info("Shutting down gracefully")
}
