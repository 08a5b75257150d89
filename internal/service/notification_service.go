package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/feedback-service/internal/events"
	"github.com/spec-kit/feedback-service/internal/realtime"
)

// Broadcaster fans events out to realtime subscribers.
type Broadcaster interface {
	Broadcast(event string, data any) (int, error)
	CloseAll(reason error)
}

// NotificationService forwards domain events to the realtime notifier.
type NotificationService struct {
	dispatcher  events.Dispatcher
	broadcaster Broadcaster
	logger      *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, broadcaster Broadcaster, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher:  dispatcher,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() error {
	if n.dispatcher == nil || n.broadcaster == nil {
		return nil
	}
	if err := n.dispatcher.Subscribe(events.EventReviewCreated, n.handleReviewCreated); err != nil {
		return err
	}
	return n.dispatcher.Subscribe(events.EventAdminSessionsRevoked, n.handleSessionsRevoked)
}

func (n *NotificationService) handleReviewCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ReviewCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	delivered, err := n.broadcaster.Broadcast(realtime.EventNewReview, payload)
	if err != nil {
		return err
	}
	n.logger.Debug("newReview broadcast", zap.String("review_id", event.ReviewID), zap.Int("subscribers", delivered))
	return nil
}

// handleSessionsRevoked disconnects every subscriber so a revoked admin stops
// receiving notifications.
func (n *NotificationService) handleSessionsRevoked(ctx context.Context, event events.Event) error {
	n.broadcaster.CloseAll(realtime.ErrSessionsRevoked)
	n.logger.Info("realtime sessions closed", zap.Any("payload", event.Payload))
	return nil
}
