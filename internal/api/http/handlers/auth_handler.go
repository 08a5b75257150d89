package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/feedback-service/internal/api/dto"
	"github.com/spec-kit/feedback-service/internal/auth"
	"github.com/spec-kit/feedback-service/internal/config"
	"github.com/spec-kit/feedback-service/internal/service"
	apperrors "github.com/spec-kit/feedback-service/pkg/util"
)

const msgInvalidPayload = "invalid payload"

// AuthHandler exposes the admin session endpoints.
type AuthHandler struct {
	auth   *service.AuthService
	cookie config.CookieConfig
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, cookie config.CookieConfig) *AuthHandler {
	return &AuthHandler{auth: authService, cookie: cookie}
}

// Login handles POST /api/admin/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError(msgInvalidPayload, nil)
	}

	res, err := h.auth.Login(c.UserContext(), string(req.PIN))
	if err != nil {
		return err
	}

	setSessionCookie(c, h.cookie, res.Token, res.ExpiresAt)
	return c.Status(http.StatusOK).JSON(dto.LoginResponse{
		Message:   "Login successful",
		Success:   true,
		ExpiresAt: res.ExpiresAt,
	})
}

// Logout handles POST /api/admin/auth/logout. It always succeeds.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	h.auth.Logout(c.UserContext(), c.Cookies(h.cookie.Name))
	clearSessionCookie(c, h.cookie)
	return c.JSON(dto.MessageResponse{Message: "Log out successfully"})
}

// VerifyToken handles GET /api/admin/auth/verify-token.
func (h *AuthHandler) VerifyToken(c *fiber.Ctx) error {
	claims, err := h.auth.Verify(c.UserContext(), c.Cookies(h.cookie.Name))
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) || errors.Is(err, auth.ErrTokenRevoked) {
			clearSessionCookie(c, h.cookie)
		}
		return err
	}
	return c.JSON(dto.VerifyResponse{
		Message: "Token is valid.",
		Claims:  dto.NewClaimsResponse(claims),
	})
}

// ResetPin handles PUT /api/admin/auth/reset-pin. A successful reset revokes
// every session, including the caller's, so the cookie is cleared as well.
func (h *AuthHandler) ResetPin(c *fiber.Ctx) error {
	var req dto.ResetPinRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError(msgInvalidPayload, nil)
	}

	if err := h.auth.ResetPin(c.UserContext(), string(req.OldPin), string(req.NewPin)); err != nil {
		return err
	}

	clearSessionCookie(c, h.cookie)
	return c.JSON(dto.MessageResponse{Message: "Admin PIN has been reset successfully"})
}
