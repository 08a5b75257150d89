package domain

import "time"

// Field limits for reviews and replies.
const (
	MaxNameLength     = 100
	MaxFeedbackLength = 1000
	MaxReplyLength    = 500
	MinRating         = 1
	MaxRating         = 5
)

// Review is a visitor submission. Name, Rating and Feedback never change after creation.
type Review struct {
	ID           string
	Name         string
	Rating       int
	Feedback     string
	Image        *string
	Likes        int
	Acknowledged bool
	Replies      []Reply
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Reply is an admin response appended to a review.
type Reply struct {
	ID        string
	ReviewID  string
	Name      string
	Reply     string
	CreatedAt time.Time
}

// ReviewPage is one page of the public review listing.
type ReviewPage struct {
	Reviews      []Review
	Page         int
	TotalPages   int
	TotalReviews int
}
