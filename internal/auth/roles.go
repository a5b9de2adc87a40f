package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/listing-service/internal/domain"
	"github.com/spec-kit/listing-service/internal/policy"
	apperrors "github.com/spec-kit/listing-service/pkg/util"
)

// RequireAuthenticated ensures a principal is present.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}

// RequireRole ensures the principal's role subsumes the minimum.
func RequireRole(minimum domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		decision := policy.RequireRole(principal.Role, minimum)
		if !decision.Allowed {
			return apperrors.NewPermissionDenied("insufficient role", map[string]any{
				"reason":   decision.Reason,
				"required": minimum,
			})
		}
		return c.Next()
	}
}
