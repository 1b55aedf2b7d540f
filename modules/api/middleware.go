package api

import (
	"context"
	"errors"
	"strings"

	"github.com/example/ops-realtime-demo/domain/user"
	"github.com/example/ops-realtime-demo/modules/identity"
	"github.com/gofiber/fiber/v2"
)

// IdentityKey is the Fiber locals key holding the authenticated user.Identity.
const IdentityKey = "identity"

// Authenticator resolves a bearer credential to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (user.Identity, error)
}

// credential reads the token from the query string or the Authorization header.
// Browsers cannot set headers on a websocket handshake, hence the query form.
func credential(c *fiber.Ctx) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	header := c.Get(fiber.HeaderAuthorization)
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// AuthMiddleware refuses the request unless it carries a credential for a known user.
func AuthMiddleware(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.Authenticate(c.UserContext(), credential(c))
		if err != nil {
			var authErr *identity.AuthError
			if errors.As(err, &authErr) {
				return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
					Error:   string(authErr.Kind),
					Message: authMessage(authErr.Kind),
				})
			}
			return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
				Error:   "directory_unavailable",
				Message: "User directory is unavailable",
			})
		}

		c.Locals(IdentityKey, id)
		return c.Next()
	}
}

func authMessage(kind identity.Kind) string {
	switch kind {
	case identity.MissingCredential:
		return "Authentication token is required"
	case identity.UnknownUser:
		return "User not found"
	default:
		return "Invalid or expired token"
	}
}

// identityFrom returns the identity stored by AuthMiddleware.
func identityFrom(c *fiber.Ctx) (user.Identity, bool) {
	id, ok := c.Locals(IdentityKey).(user.Identity)
	return id, ok
}
