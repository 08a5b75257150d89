package events

import (
	"context"
	"fmt"

	evbus "github.com/asaskevich/EventBus"
	"go.uber.org/zap"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler) error
}

// busDispatcher delivers events synchronously through an EventBus. Handler
// failures and panics are logged and never reach the publisher.
type busDispatcher struct {
	bus    evbus.Bus
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher instance.
func NewDispatcher(logger *zap.Logger) Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &busDispatcher{bus: evbus.New(), logger: logger}
}

// Publish synchronously invokes handlers for the given event.
func (d *busDispatcher) Publish(ctx context.Context, event Event) error {
	if ctx == nil {
		ctx = context.Background()
	}
	d.bus.Publish(string(event.Type), ctx, event)
	return nil
}

// Subscribe registers a handler for the given event type.
func (d *busDispatcher) Subscribe(eventType EventType, handler EventHandler) error {
	if handler == nil {
		return fmt.Errorf("nil handler for %s", eventType)
	}
	return d.bus.Subscribe(string(eventType), d.isolate(eventType, handler))
}

func (d *busDispatcher) isolate(eventType EventType, handler EventHandler) func(context.Context, Event) {
	return func(ctx context.Context, event Event) {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("event handler panicked",
					zap.String("event_type", string(eventType)),
					zap.String("event_id", event.ID),
					zap.Any("panic", r))
			}
		}()
		if err := handler(ctx, event); err != nil {
			d.logger.Warn("event handler failed",
				zap.String("event_type", string(eventType)),
				zap.String("event_id", event.ID),
				zap.Error(err))
		}
	}
}
