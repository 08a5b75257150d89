package dto

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/feedback-service/internal/domain"
)

// CreateReviewRequest payload for POST /api/reviews. Rating is kept raw
// because clients send it either as a number or as a numeric string.
type CreateReviewRequest struct {
	Name     string          `json:"name"`
	Rating   json.RawMessage `json:"rating"`
	Feedback string          `json:"feedback"`
	Image    *string         `json:"image"`
}

// ParseRating returns nil when the rating is absent, null or an empty
// string. ok is false when a value is present but not numeric.
func ParseRating(raw json.RawMessage) (value *float64, ok bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, true
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, false
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		return &f, true
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, false
	}
	return &f, true
}

// AcknowledgeRequest payload for PUT /api/reviews/:id/acknowledge.
type AcknowledgeRequest struct {
	Acknowledge json.RawMessage `json:"acknowledge"`
}

// ParseAcknowledge reports present=false when the flag is absent or null and
// valid=false when it is present but not a JSON boolean.
func ParseAcknowledge(raw json.RawMessage) (flag bool, present bool, valid bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false, false, true
	}
	switch string(raw) {
	case "true":
		return true, true, true
	case "false":
		return false, true, true
	default:
		return false, true, false
	}
}

// ReplyRequest payload for POST /api/reviews/:id/reply.
type ReplyRequest struct {
	Reply string `json:"reply"`
	Name  string `json:"name"`
}

// ReplyResponse is the public view of a reply.
type ReplyResponse struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Reply     string    `json:"reply"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReviewResponse is the public view of a review.
type ReviewResponse struct {
	ID           string          `json:"_id"`
	Name         string          `json:"name"`
	Rating       int             `json:"rating"`
	Feedback     string          `json:"feedback"`
	Image        *string         `json:"image"`
	Likes        int             `json:"likes"`
	Acknowledged bool            `json:"acknowledged"`
	Replies      []ReplyResponse `json:"replies"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// ReviewPageResponse is returned by GET /api/reviews.
type ReviewPageResponse struct {
	Reviews      []ReviewResponse `json:"reviews"`
	Page         int              `json:"page"`
	TotalPages   int              `json:"totalPages"`
	TotalReviews int              `json:"totalReviews"`
}

// LikeResponse is returned by the like and unlike endpoints.
type LikeResponse struct {
	Message string `json:"message"`
	Likes   int    `json:"likes"`
}

// CreateReviewResponse is returned on successful submission.
type CreateReviewResponse struct {
	Message string `json:"message"`
	ID      string `json:"_id"`
}

// NewReviewResponse maps a domain review.
func NewReviewResponse(review domain.Review) ReviewResponse {
	replies := make([]ReplyResponse, 0, len(review.Replies))
	for _, reply := range review.Replies {
		replies = append(replies, ReplyResponse{
			ID:        reply.ID,
			Name:      reply.Name,
			Reply:     reply.Reply,
			CreatedAt: reply.CreatedAt,
		})
	}
	return ReviewResponse{
		ID:           review.ID,
		Name:         review.Name,
		Rating:       review.Rating,
		Feedback:     review.Feedback,
		Image:        review.Image,
		Likes:        review.Likes,
		Acknowledged: review.Acknowledged,
		Replies:      replies,
		CreatedAt:    review.CreatedAt,
		UpdatedAt:    review.UpdatedAt,
	}
}

// NewReviewListResponse maps a slice of domain reviews.
func NewReviewListResponse(reviews []domain.Review) []ReviewResponse {
	out := make([]ReviewResponse, 0, len(reviews))
	for _, review := range reviews {
		out = append(out, NewReviewResponse(review))
	}
	return out
}

// NewReviewPageResponse maps a page of reviews.
func NewReviewPageResponse(page *domain.ReviewPage) ReviewPageResponse {
	return ReviewPageResponse{
		Reviews:      NewReviewListResponse(page.Reviews),
		Page:         page.Page,
		TotalPages:   page.TotalPages,
		TotalReviews: page.TotalReviews,
	}
}
