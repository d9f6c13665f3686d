package auth

import (
	"context"
	"log"
	"strings"

	"github.com/labstack/echo/v4"
)

type contextKey struct{}

// Identifier resolves a bearer token into a user id.
type Identifier interface {
	Identify(token string) (string, error)
}

// Middleware resolves the Authorization header into an identity and stores it
// in the request context. Requests without a valid token pass through with no
// identity; handlers decide how to answer them.
func Middleware(id Identifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if token == "" {
				return next(c)
			}

			userID, err := id.Identify(token)
			if err != nil {
				log.Printf("Rejected bearer token: %v", err)
				return next(c)
			}

			req := c.Request()
			c.SetRequest(req.WithContext(WithUser(req.Context(), userID)))
			return next(c)
		}
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserFrom returns the authenticated user id, or false when the request has
// no identity.
func UserFrom(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(contextKey{}).(string)
	return userID, ok && userID != ""
}
