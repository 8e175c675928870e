// auth.go - Bearer token authentication middleware
package api

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/digiscribe/backend/internal/models"
)

// identityKey is the echo context key the middleware stores the caller under.
const identityKey = "identity"

// identityClaims is the JWT payload the frontend's auth provider issues.
type identityClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates the Authorization bearer token and attaches the
// caller's identity to the request context.
func AuthMiddleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				return NewUnauthorizedError("missing bearer token")
			}

			claims := &identityClaims{}
			parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			})
			if err != nil || !parsed.Valid {
				return NewUnauthorizedError("invalid token")
			}
			if claims.Subject == "" {
				return NewUnauthorizedError("token has no subject")
			}

			role := claims.Role
			if role != models.RoleAdmin {
				role = models.RoleUser
			}
			c.Set(identityKey, models.Identity{
				UID:   claims.Subject,
				Email: claims.Email,
				Role:  role,
			})
			return next(c)
		}
	}
}

// callerIdentity returns the identity the auth middleware attached.
func callerIdentity(c echo.Context) models.Identity {
	if ident, ok := c.Get(identityKey).(models.Identity); ok {
		return ident
	}
	return models.Identity{}
}
