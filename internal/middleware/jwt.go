package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chapterhub/backend/internal/auth"
	"github.com/chapterhub/backend/internal/authz"
	"github.com/chapterhub/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID (uuid.UUID) in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for the user's current authz.Role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
	// ContextPrincipal is the key for the caller's authz.Subject, loaded fresh per request.
	ContextPrincipal = "principal"
)

// SubjectLoader reads a user's current role and managed region. *auth.Repository implements it.
type SubjectLoader interface {
	Subject(ctx context.Context, id uuid.UUID) (authz.Subject, error)
}

// JWT returns a middleware that validates the bearer token and loads the caller from the store.
// The role inside the token is never trusted for authorization decisions.
func JWT(jwtService *auth.JWTService, users SubjectLoader, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}
		subject, err := users.Subject(c.Request.Context(), claims.UserID)
		if errors.Is(err, authz.ErrTargetNotFound) {
			response.Unauthorized(c, "user no longer exists")
			return
		}
		if err != nil {
			logger.Error("load principal failed", zap.Error(err), zap.String("user_id", claims.UserID.String()))
			response.Internal(c, "internal server error")
			return
		}
		c.Set(ContextUserID, subject.ID)
		c.Set(ContextUserRole, subject.Role)
		c.Set(ContextUserEmail, claims.Email)
		c.Set(ContextPrincipal, subject)
		c.Next()
	}
}

// Principal returns the authenticated caller. It panics outside JWT-protected routes.
func Principal(c *gin.Context) authz.Subject {
	return c.MustGet(ContextPrincipal).(authz.Subject)
}

// SubjectFromToken adapts the JWT service and loader for callers that receive the token out of
// band, such as the websocket endpoint.
func SubjectFromToken(jwtService *auth.JWTService, users SubjectLoader) func(ctx context.Context, token string) (authz.Subject, error) {
	return func(ctx context.Context, token string) (authz.Subject, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return authz.Subject{}, err
		}
		return users.Subject(ctx, claims.UserID)
	}
}
