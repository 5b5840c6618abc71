package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// HealthSnapshot is one sample of process-host health, published alongside
// the notification stream so an operator can tell a silent daemon from a
// dead one.
type HealthSnapshot struct {
	Timestamp   time.Time `json:"timestamp"`
	CPUUsage    float64   `json:"cpu_usage"`
	MemoryUsage float64   `json:"memory_usage"`
	Pending     int       `json:"pending_executions"`
}

// PendingCounter reports how many executions are currently pending.
type PendingCounter func(ctx context.Context) (int, error)

// HealthMonitor samples host CPU/memory and the pending-execution backlog on
// an interval and publishes the snapshot.
type HealthMonitor struct {
	logger   *zap.Logger
	js       nats.JetStreamContext
	interval time.Duration
	pending  PendingCounter

	mu   sync.RWMutex
	last HealthSnapshot
	stop chan struct{}
}

// NewHealthMonitor creates a health monitor.
func NewHealthMonitor(js nats.JetStreamContext, interval time.Duration, pending PendingCounter, logger *zap.Logger) *HealthMonitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &HealthMonitor{
		logger:   logger.Named("health"),
		js:       js,
		interval: interval,
		pending:  pending,
		stop:     make(chan struct{}),
	}
}

// Start ensures the health stream exists and starts the sampling loop.
func (m *HealthMonitor) Start(ctx context.Context) error {
	_, err := m.js.StreamInfo("HEALTH")
	if err != nil {
		if err != nats.ErrStreamNotFound {
			return fmt.Errorf("failed to get stream info: %w", err)
		}
		_, err = m.js.AddStream(&nats.StreamConfig{
			Name:     "HEALTH",
			Subjects: []string{"health.*"},
			Storage:  nats.FileStorage,
			MaxAge:   24 * time.Hour,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	m.logger.Info("Starting health monitor", zap.Duration("interval", m.interval))
	go m.sampleLoop(ctx)
	return nil
}

// Stop stops the sampling loop.
func (m *HealthMonitor) Stop() {
	close(m.stop)
}

// Last returns the most recent snapshot.
func (m *HealthMonitor) Last() HealthSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

func (m *HealthMonitor) sampleLoop(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			m.sample(ctx)
		}
	}
}

func (m *HealthMonitor) sample(ctx context.Context) {
	cpuPercent, err := cpu.Percent(time.Second, false)
	if err != nil {
		m.logger.Error("Failed to get CPU usage", zap.Error(err))
		return
	}

	memInfo, err := mem.VirtualMemory()
	if err != nil {
		m.logger.Error("Failed to get memory usage", zap.Error(err))
		return
	}

	snapshot := HealthSnapshot{
		Timestamp:   time.Now(),
		CPUUsage:    cpuPercent[0],
		MemoryUsage: memInfo.UsedPercent,
	}

	if m.pending != nil {
		count, err := m.pending(ctx)
		if err != nil {
			m.logger.Warn("Failed to count pending executions", zap.Error(err))
		} else {
			snapshot.Pending = count
		}
	}

	m.mu.Lock()
	m.last = snapshot
	m.mu.Unlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		m.logger.Error("Failed to marshal health snapshot", zap.Error(err))
		return
	}

	if _, err := m.js.Publish("health.remindd", data); err != nil {
		m.logger.Error("Failed to publish health snapshot", zap.Error(err))
		return
	}

	m.logger.Debug("Health sampled",
		zap.Float64("cpu_usage", snapshot.CPUUsage),
		zap.Float64("memory_usage", snapshot.MemoryUsage),
		zap.Int("pending", snapshot.Pending))
}
