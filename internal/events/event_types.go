package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/feedback-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventReviewCreated        EventType = "review_created"
	EventReviewDeleted        EventType = "review_deleted"
	EventAdminSessionsRevoked EventType = "admin_sessions_revoked"
)

// Reasons carried by EventAdminSessionsRevoked.
const (
	RevokeReasonLogout   = "logout"
	RevokeReasonPinReset = "pin_reset"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	ReviewID  string    `json:"review_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewEvent stamps an event with a fresh id.
func NewEvent(eventType EventType, reviewID string, at time.Time, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ReviewID:  reviewID,
		Timestamp: at,
		Payload:   payload,
	}
}

// ReviewCreatedPayload is the public projection of a new review pushed to
// realtime subscribers.
type ReviewCreatedPayload struct {
	Name      string    `json:"name"`
	Rating    int       `json:"rating"`
	Feedback  string    `json:"feedback"`
	Image     *string   `json:"image"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewReviewCreatedPayload projects a persisted review.
func NewReviewCreatedPayload(review *domain.Review) ReviewCreatedPayload {
	return ReviewCreatedPayload{
		Name:      review.Name,
		Rating:    review.Rating,
		Feedback:  review.Feedback,
		Image:     review.Image,
		CreatedAt: review.CreatedAt,
	}
}

// SessionsRevokedPayload payload.
type SessionsRevokedPayload struct {
	Reason         string `json:"reason"`
	SessionVersion int64  `json:"session_version"`
}
