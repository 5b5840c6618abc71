package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/hokaccha/remindd/internal/model"
)

// Channel delivers one notification to the user through some medium.
type Channel interface {
	Send(notification *model.Notification) error
}

// Relay consumes notification events from the stream and fans them out to
// registered channels. It honors cancel events by suppressing further
// deliveries for the cancelled task or execution in this process lifetime;
// the authoritative stop is still the execution's terminal status.
type Relay struct {
	logger   *zap.Logger
	js       nats.JetStreamContext
	mu       sync.RWMutex
	channels map[string]Channel
	subs     []*nats.Subscription

	cancelled sync.Map // taskID or executionID -> struct{}
}

// NewRelay creates a relay with no channels registered.
func NewRelay(js nats.JetStreamContext, logger *zap.Logger) *Relay {
	return &Relay{
		logger:   logger.Named("relay"),
		js:       js,
		channels: make(map[string]Channel),
	}
}

// RegisterChannel adds a delivery channel under a name.
func (r *Relay) RegisterChannel(name string, channel Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[name] = channel
}

// Start subscribes to the notification subjects.
func (r *Relay) Start(ctx context.Context) error {
	for _, subject := range []string{subjectInitial, subjectReminder} {
		sub, err := r.js.Subscribe(subject, r.handleNotification)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		r.subs = append(r.subs, sub)
	}

	for _, subject := range []string{subjectCancel, subjectCancelByExec} {
		sub, err := r.js.Subscribe(subject, r.handleCancel)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		r.subs = append(r.subs, sub)
	}

	r.logger.Info("Notification relay started")
	return nil
}

// Stop unsubscribes from all subjects.
func (r *Relay) Stop() {
	for _, sub := range r.subs {
		sub.Unsubscribe()
	}
	r.subs = nil
}

func (r *Relay) handleNotification(msg *nats.Msg) {
	var notification model.Notification
	if err := json.Unmarshal(msg.Data, &notification); err != nil {
		r.logger.Error("Failed to unmarshal notification", zap.Error(err))
		return
	}

	if _, ok := r.cancelled.Load(notification.TaskID); ok {
		return
	}
	if notification.ExecutionID != "" {
		if _, ok := r.cancelled.Load(notification.ExecutionID); ok {
			return
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, channel := range r.channels {
		if err := channel.Send(&notification); err != nil {
			r.logger.Error("Failed to deliver notification",
				zap.String("channel", name),
				zap.String("task_name", notification.TaskName),
				zap.Error(err))
		}
	}
}

func (r *Relay) handleCancel(msg *nats.Msg) {
	var req cancelRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		r.logger.Error("Failed to unmarshal cancel request", zap.Error(err))
		return
	}
	if req.TaskID != "" {
		r.cancelled.Store(req.TaskID, struct{}{})
	}
	if req.ExecutionID != "" {
		r.cancelled.Store(req.ExecutionID, struct{}{})
	}
}
