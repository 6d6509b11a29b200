package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/uniedit/paygate/internal/model"
	"github.com/uniedit/paygate/internal/port/outbound"
	"github.com/uniedit/paygate/internal/utils/requestctx"
)

const (
	// AuthorizationHeader is the header key for authorization.
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer tokens.
	BearerPrefix = "Bearer "
	// UserIDKey is the context key for user ID.
	UserIDKey = "user_id"
	// EmailKey is the context key for email.
	EmailKey = "email"
)

// Auth returns a middleware that verifies bearer tokens.
// If the token is valid, it sets user_id and email in the context.
// If optional is true, the middleware will not abort on missing/invalid tokens.
func Auth(verifier outbound.IdentityVerifierPort, optional bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			c.Next()
			return
		}

		token := extractBearerToken(c)
		if token == "" {
			if !optional {
				c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{
					Code:    "UNAUTHORIZED",
					Message: "Authorization header required",
				})
				return
			}
			c.Next()
			return
		}

		identity, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			if !optional {
				c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{
					Code:    "INVALID_TOKEN",
					Message: "Invalid or expired token",
				})
				return
			}
			c.Next()
			return
		}

		c.Set(UserIDKey, identity.Subject)
		c.Set(EmailKey, identity.Email)
		c.Request = c.Request.WithContext(requestctx.WithUserID(c.Request.Context(), identity.Subject))

		c.Next()
	}
}

// RequireAuth returns a middleware that requires a valid token.
func RequireAuth(verifier outbound.IdentityVerifierPort) gin.HandlerFunc {
	return Auth(verifier, false)
}

// OptionalAuth returns a middleware that optionally verifies tokens.
func OptionalAuth(verifier outbound.IdentityVerifierPort) gin.HandlerFunc {
	return Auth(verifier, true)
}

// extractBearerToken extracts the bearer token from the Authorization header.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader(AuthorizationHeader)
	if !strings.HasPrefix(authHeader, BearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
}

// GetUserID returns the user ID from context.
// Returns an empty string if not authenticated.
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// GetEmail returns the email from context.
func GetEmail(c *gin.Context) string {
	return c.GetString(EmailKey)
}

// IsAuthenticated returns true if the user is authenticated.
func IsAuthenticated(c *gin.Context) bool {
	return GetUserID(c) != ""
}
