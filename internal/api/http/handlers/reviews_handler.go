package handlers

import (
	"math"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/feedback-service/internal/api/dto"
	"github.com/spec-kit/feedback-service/internal/service"
	apperrors "github.com/spec-kit/feedback-service/pkg/util"
)

const msgAcknowledgeNotBoolean = "Acknowledgment value must be true or false."

// ReviewsHandler exposes the review endpoints.
type ReviewsHandler struct {
	reviews *service.ReviewService
}

// NewReviewsHandler constructs handler.
func NewReviewsHandler(reviewService *service.ReviewService) *ReviewsHandler {
	return &ReviewsHandler{reviews: reviewService}
}

// CheckID rejects malformed :id parameters before any handler logic runs.
func CheckID(c *fiber.Ctx) error {
	if err := service.ValidateID(c.Params("id")); err != nil {
		return err
	}
	return c.Next()
}

// List handles GET /api/reviews?pageNumber=N.
func (h *ReviewsHandler) List(c *fiber.Ctx) error {
	page, err := h.reviews.List(c.UserContext(), c.QueryInt("pageNumber", 1))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewReviewPageResponse(page))
}

// Featured handles GET /api/reviews/featured.
func (h *ReviewsHandler) Featured(c *fiber.Ctx) error {
	reviews, err := h.reviews.Featured(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.NewReviewListResponse(reviews))
}

// Create handles POST /api/reviews.
func (h *ReviewsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError(msgInvalidPayload, nil)
	}

	rating, ok := dto.ParseRating(req.Rating)
	if !ok {
		nan := math.NaN()
		rating = &nan
	}

	review, err := h.reviews.Create(c.UserContext(), service.CreateReviewInput{
		Name:     req.Name,
		Rating:   rating,
		Feedback: req.Feedback,
		Image:    req.Image,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.CreateReviewResponse{
		Message: "Review submitted successfully.",
		ID:      review.ID,
	})
}

// Like handles PUT /api/reviews/:id/like.
func (h *ReviewsHandler) Like(c *fiber.Ctx) error {
	likes, err := h.reviews.Like(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.LikeResponse{Message: "Review liked successfully", Likes: likes})
}

// Unlike handles PUT /api/reviews/:id/unlike.
func (h *ReviewsHandler) Unlike(c *fiber.Ctx) error {
	likes, err := h.reviews.Unlike(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.LikeResponse{Message: "Review unliked successfully", Likes: likes})
}

// Acknowledge handles PUT /api/reviews/:id/acknowledge.
func (h *ReviewsHandler) Acknowledge(c *fiber.Ctx) error {
	var req dto.AcknowledgeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError(msgInvalidPayload, nil)
	}

	flag, present, valid := dto.ParseAcknowledge(req.Acknowledge)
	if !present {
		return apperrors.NewValidationError(service.MsgAcknowledgeRequired, nil)
	}
	if !valid {
		return apperrors.NewValidationError(msgAcknowledgeNotBoolean, nil)
	}

	if err := h.reviews.Acknowledge(c.UserContext(), c.Params("id"), flag); err != nil {
		return err
	}

	message := "Review unacknowledged successfully."
	if flag {
		message = "Review acknowledged successfully."
	}
	return c.JSON(dto.MessageResponse{Message: message})
}

// Reply handles POST /api/reviews/:id/reply.
func (h *ReviewsHandler) Reply(c *fiber.Ctx) error {
	var req dto.ReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError(msgInvalidPayload, nil)
	}

	if _, err := h.reviews.Reply(c.UserContext(), c.Params("id"), req.Reply, req.Name); err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.MessageResponse{Message: "Reply added successfully."})
}

// Delete handles DELETE /api/reviews/:id.
func (h *ReviewsHandler) Delete(c *fiber.Ctx) error {
	if err := h.reviews.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "Review deleted successfully"})
}
