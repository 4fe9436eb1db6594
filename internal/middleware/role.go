package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/chapterhub/backend/internal/authz"
	"github.com/chapterhub/backend/pkg/response"
)

// RequireRole returns a middleware that allows only the given global roles.
func RequireRole(roles ...authz.Role) gin.HandlerFunc {
	allowed := make(map[authz.Role]struct{})
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		v, ok := c.Get(ContextPrincipal)
		if !ok {
			response.Unauthorized(c, "missing user context")
			return
		}
		subject, _ := v.(authz.Subject)
		if _, ok := allowed[subject.Role]; !ok {
			response.Forbidden(c, "insufficient permissions")
			return
		}
		c.Next()
	}
}
