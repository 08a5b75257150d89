package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/feedback-service/internal/cache"
	"github.com/spec-kit/feedback-service/internal/domain"
	"github.com/spec-kit/feedback-service/internal/events"
	"github.com/spec-kit/feedback-service/internal/repository"
	apperrors "github.com/spec-kit/feedback-service/pkg/util"
)

// Listing sizes.
const (
	DefaultPageSize = 8
	FeaturedLimit   = 5
)

// Client-facing review messages.
const (
	MsgReviewFieldsRequired = "Please submit a rating, feedback, and a name."
	MsgRatingOutOfRange     = "Rating must be a number between 1 and 5."
	MsgReplyRequired        = "Reply text is required."
	MsgAcknowledgeRequired  = "Acknowledgment value is required."
	reviewResource          = "Review"
)

// CreateReviewInput is a public review submission. Rating is nil when absent.
type CreateReviewInput struct {
	Name     string
	Rating   *float64
	Feedback string
	Image    *string
}

// ReviewService orchestrates review moderation against the review store.
type ReviewService struct {
	reviews    repository.ReviewRepository
	featured   *cache.FeaturedCache
	dispatcher events.Dispatcher
	adminName  string
	logger     *zap.Logger
	now        func() time.Time
}

// ReviewDependencies encapsulates collaborators of the review service.
type ReviewDependencies struct {
	ReviewRepo       repository.ReviewRepository
	Featured         *cache.FeaturedCache
	Dispatcher       events.Dispatcher
	AdminDisplayName string
	Logger           *zap.Logger
	Clock            func() time.Time
}

// NewReviewService builds the service.
func NewReviewService(deps ReviewDependencies) *ReviewService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	adminName := strings.TrimSpace(deps.AdminDisplayName)
	if adminName == "" {
		adminName = "Admin"
	}
	return &ReviewService{
		reviews:    deps.ReviewRepo,
		featured:   deps.Featured,
		dispatcher: deps.Dispatcher,
		adminName:  adminName,
		logger:     logger,
		now:        now,
	}
}

// ValidateID rejects identifiers that are not canonical UUIDs. It never
// touches storage.
func ValidateID(id string) error {
	if len(id) != 36 {
		return apperrors.NewInvalidIdentifier(id)
	}
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NewInvalidIdentifier(id)
	}
	return nil
}

// List returns one page of reviews, newest first. Pages below 1 read page 1;
// pages past the last one are empty.
func (s *ReviewService) List(ctx context.Context, page int) (*domain.ReviewPage, error) {
	if page < 1 {
		page = 1
	}

	total, err := s.reviews.Count(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	totalPages := int(math.Ceil(float64(total) / float64(DefaultPageSize)))

	reviews := []domain.Review{}
	if page <= totalPages {
		reviews, err = s.reviews.List(ctx, DefaultPageSize, (page-1)*DefaultPageSize)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
	}

	return &domain.ReviewPage{
		Reviews:      reviews,
		Page:         page,
		TotalPages:   totalPages,
		TotalReviews: total,
	}, nil
}

// Featured returns the most recent reviews. Selection is by recency only.
func (s *ReviewService) Featured(ctx context.Context) ([]domain.Review, error) {
	cached, ok, err := s.featured.Get(ctx)
	if err != nil {
		s.logger.Warn("featured cache read failed", zap.Error(err))
	}
	if ok {
		return cached, nil
	}

	// The generation is read before the store so a write that lands in
	// between invalidates this fill instead of being hidden by it.
	gen, genErr := s.featured.Generation(ctx)
	if genErr != nil {
		s.logger.Warn("featured cache generation read failed", zap.Error(genErr))
	}

	reviews, err := s.reviews.List(ctx, FeaturedLimit, 0)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if genErr != nil {
		return reviews, nil
	}
	stored, err := s.featured.Set(ctx, gen, reviews)
	if err != nil {
		s.logger.Warn("featured cache write failed", zap.Error(err))
	} else if !stored && s.featured != nil {
		s.logger.Debug("featured cache fill skipped after concurrent write")
	}
	return reviews, nil
}

// Create validates and stores a review, then announces it. A failing
// announcement never undoes the stored review.
func (s *ReviewService) Create(ctx context.Context, input CreateReviewInput) (*domain.Review, error) {
	name := strings.TrimSpace(input.Name)
	feedback := strings.TrimSpace(input.Feedback)
	// A zero rating counts as missing, like an empty name or feedback.
	if name == "" || feedback == "" || input.Rating == nil || *input.Rating == 0 {
		return nil, apperrors.NewValidationError(MsgReviewFieldsRequired, nil)
	}

	rating := *input.Rating
	if math.IsNaN(rating) || rating != math.Trunc(rating) || rating < domain.MinRating || rating > domain.MaxRating {
		return nil, apperrors.NewValidationError(MsgRatingOutOfRange, nil)
	}
	if err := maxLength("Name", name, domain.MaxNameLength); err != nil {
		return nil, err
	}
	if err := maxLength("Feedback", feedback, domain.MaxFeedbackLength); err != nil {
		return nil, err
	}

	review := &domain.Review{
		Name:      name,
		Rating:    int(rating),
		Feedback:  feedback,
		Image:     normalizeImage(input.Image),
		CreatedAt: s.now().UTC(),
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.invalidateFeatured(ctx)
	s.publish(ctx, events.NewEvent(events.EventReviewCreated, review.ID, review.CreatedAt, events.NewReviewCreatedPayload(review)))
	s.logger.Info("review created", zap.String("review_id", review.ID), zap.Int("rating", review.Rating))
	return review, nil
}

// Like increments the like counter and returns the new count.
func (s *ReviewService) Like(ctx context.Context, id string) (int, error) {
	return s.adjustLikes(ctx, id, s.reviews.Like)
}

// Unlike decrements the like counter, never below zero.
func (s *ReviewService) Unlike(ctx context.Context, id string) (int, error) {
	return s.adjustLikes(ctx, id, s.reviews.Unlike)
}

func (s *ReviewService) adjustLikes(ctx context.Context, id string, adjust func(context.Context, string) (int, error)) (int, error) {
	if err := ValidateID(id); err != nil {
		return 0, err
	}
	likes, err := adjust(ctx, id)
	if err != nil {
		return 0, mapReviewError(err)
	}
	s.invalidateFeatured(ctx)
	return likes, nil
}

// Acknowledge sets the acknowledged flag to exactly acknowledged.
func (s *ReviewService) Acknowledge(ctx context.Context, id string, acknowledged bool) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := s.reviews.SetAcknowledged(ctx, id, acknowledged); err != nil {
		return mapReviewError(err)
	}
	s.invalidateFeatured(ctx)
	s.logger.Info("review acknowledgment changed", zap.String("review_id", id), zap.Bool("acknowledged", acknowledged))
	return nil
}

// Reply appends an admin reply. An empty author falls back to the configured
// admin display name.
func (s *ReviewService) Reply(ctx context.Context, id, text, author string) (*domain.Reply, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError(MsgReplyRequired, nil)
	}
	if err := maxLength("Reply", text, domain.MaxReplyLength); err != nil {
		return nil, err
	}
	author = strings.TrimSpace(author)
	if author == "" {
		author = s.adminName
	}
	if err := maxLength("Name", author, domain.MaxNameLength); err != nil {
		return nil, err
	}

	reply := &domain.Reply{
		ReviewID:  id,
		Name:      author,
		Reply:     text,
		CreatedAt: s.now().UTC(),
	}
	if err := s.reviews.AddReply(ctx, reply); err != nil {
		return nil, mapReviewError(err)
	}
	s.invalidateFeatured(ctx)
	s.logger.Info("review reply added", zap.String("review_id", id))
	return reply, nil
}

// Delete removes a review together with its replies.
func (s *ReviewService) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := s.reviews.Delete(ctx, id); err != nil {
		return mapReviewError(err)
	}
	s.invalidateFeatured(ctx)
	s.publish(ctx, events.NewEvent(events.EventReviewDeleted, id, s.now().UTC(), nil))
	s.logger.Info("review deleted", zap.String("review_id", id))
	return nil
}

// Ping checks review store connectivity.
func (s *ReviewService) Ping(ctx context.Context) error {
	return s.reviews.Ping(ctx)
}

func (s *ReviewService) invalidateFeatured(ctx context.Context) {
	if err := s.featured.Invalidate(ctx); err != nil {
		s.logger.Warn("featured cache invalidation failed", zap.Error(err))
	}
}

func (s *ReviewService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func mapReviewError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(reviewResource, nil)
	}
	return apperrors.NewInternalError(err)
}

func maxLength(field, value string, limit int) error {
	if utf8.RuneCountInString(value) > limit {
		return apperrors.NewValidationError(
			fmt.Sprintf("%s must be at most %d characters.", field, limit),
			map[string]any{"field": strings.ToLower(field), "max": limit},
		)
	}
	return nil
}

func normalizeImage(image *string) *string {
	if image == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*image)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
