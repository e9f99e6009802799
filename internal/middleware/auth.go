package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/quillspace/core/internal/models"
	"github.com/quillspace/core/internal/pkg/jwt"
	"github.com/quillspace/core/internal/pkg/response"
)

const (
	ContextKeyUserID = "user_id"
	ContextKeyRole   = "user_role"
)

// Auth returns a middleware that enforces JWT bearer authentication.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := jwt.Parse(extractToken(c))
		if err != nil {
			response.Unauthorized(c, "missing or invalid credentials")
			return
		}
		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyRole, claims.Role)
		c.Next()
	}
}

// OptionalAuth sets the user identity if a valid token is present, but does
// not block the request.
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := jwt.Parse(extractToken(c)); err == nil && claims.UserID != "" {
			c.Set(ContextKeyUserID, claims.UserID)
			c.Set(ContextKeyRole, claims.Role)
		}
		c.Next()
	}
}

// RequireRoles returns a middleware that rejects requests whose authenticated
// role is not in the allow list. Must run after Auth.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := CurrentRole(c)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		response.Forbidden(c, "insufficient role")
	}
}

// CurrentUserID extracts the authenticated user ID from context.
func CurrentUserID(c *gin.Context) string {
	v, _ := c.Get(ContextKeyUserID)
	id, _ := v.(string)
	return id
}

// CurrentRole extracts the authenticated role from context.
func CurrentRole(c *gin.Context) models.Role {
	v, _ := c.Get(ContextKeyRole)
	role, _ := v.(string)
	return models.Role(role)
}

// IsAuthenticated reports whether the request carries a valid auth token.
func IsAuthenticated(c *gin.Context) bool {
	return CurrentUserID(c) != ""
}

// CanMutate is the ownership predicate shared by post and comment mutation:
// the resource owner may act on it, and so may any admin.
func CanMutate(ownerID, requesterID string, role models.Role) bool {
	return ownerID == requesterID || role == models.RoleAdmin
}

func extractToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if auth != "" {
		return normalizeToken(auth)
	}
	return normalizeToken(c.Query("token"))
}

// normalizeToken trims spaces and strips an optional Bearer prefix.
func normalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
