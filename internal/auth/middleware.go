package auth

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/feedback-service/internal/repository"
	apperrors "github.com/spec-kit/feedback-service/pkg/util"
)

const claimsKey = "auth_claims"

// Guard messages. They differ for client UX only; every rejection is a 403.
const (
	MsgNoToken      = "Session expired. Please log in again."
	MsgInvalidToken = "Invalid or expired token"
	MsgRevoked      = "Session has been revoked. Please log in again."
	MsgNotAdmin     = "Not authorized: Admin access required"
)

// SessionVersionSource returns the credential's current session version.
type SessionVersionSource interface {
	SessionVersion(ctx context.Context) (int64, error)
}

// AuthMiddleware validates the session cookie and attaches claims to the request.
type AuthMiddleware struct {
	tokens     *TokenManager
	sessions   SessionVersionSource
	cookieName string
	logger     *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, sessions SessionVersionSource, cookieName string, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{tokens: tokens, sessions: sessions, cookieName: cookieName, logger: logger}
}

// Handle enforces authentication for protected routes. It is re-evaluated on
// every request; there is no server-side session table.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	raw := c.Cookies(m.cookieName)
	if raw == "" {
		return apperrors.NewForbidden(MsgNoToken)
	}

	claims, err := m.tokens.ParseToken(raw)
	if err != nil {
		m.logger.Debug("rejected session token", zap.Error(err))
		return apperrors.NewForbidden(MsgInvalidToken)
	}

	if m.sessions != nil {
		current, err := m.sessions.SessionVersion(c.UserContext())
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewConfigurationError("Admin data not found")
			}
			return apperrors.NewInternalError(err)
		}
		if claims.SessionVersion != current {
			return apperrors.NewForbidden(MsgRevoked)
		}
	}

	c.Locals(claimsKey, claims)
	return c.Next()
}

// Guard returns the full admin chain: session check followed by role check.
func (m *AuthMiddleware) Guard() []fiber.Handler {
	return []fiber.Handler{m.Handle, RequireAdmin()}
}

// ClaimsFromContext retrieves the decoded claims of the authenticated caller.
func ClaimsFromContext(c *fiber.Ctx) (*Claims, bool) {
	val := c.Locals(claimsKey)
	if val == nil {
		return nil, false
	}
	claims, ok := val.(*Claims)
	return claims, ok
}
