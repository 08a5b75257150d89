package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/feedback-service/internal/domain"
	apperrors "github.com/spec-kit/feedback-service/pkg/util"
)

// RequireRole ensures the authenticated caller carries the given role claim.
func RequireRole(role domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			return apperrors.NewForbidden(MsgNoToken)
		}
		if claims.Role != role {
			return apperrors.NewForbidden(MsgNotAdmin)
		}
		return c.Next()
	}
}

// RequireAdmin is RequireRole for the admin role.
func RequireAdmin() fiber.Handler {
	return RequireRole(domain.RoleAdmin)
}
