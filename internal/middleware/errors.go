package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chapterhub/backend/internal/auth"
	"github.com/chapterhub/backend/internal/authz"
	"github.com/chapterhub/backend/pkg/response"
)

// AbortWithError writes the response for a domain error; the response helpers abort the chain.
// Errors outside the authz vocabulary are logged and answered 500.
func AbortWithError(c *gin.Context, logger *zap.Logger, err error) {
	var fe *authz.ForbiddenError
	var ge *authz.GuardError
	switch {
	case errors.Is(err, authz.ErrMissingTarget):
		response.BadRequest(c, err.Error())
	case errors.As(err, &fe):
		response.Forbidden(c, fe.Error())
	case errors.As(err, &ge):
		response.Forbidden(c, ge.Reason)
	case errors.Is(err, authz.ErrTargetNotFound):
		response.NotFound(c, clientMessage(err, authz.ErrTargetNotFound, " not found"))
	case errors.Is(err, authz.ErrDuplicateMembership):
		response.Conflict(c, clientMessage(err, authz.ErrDuplicateMembership, ""))
	case errors.Is(err, authz.ErrDuplicateName):
		response.Conflict(c, clientMessage(err, authz.ErrDuplicateName, " already exists"))
	case errors.Is(err, auth.ErrEmailTaken):
		response.Conflict(c, err.Error())
	default:
		if logger != nil {
			logger.Error("request failed", zap.Error(err), zap.String("path", c.FullPath()), zap.String("method", c.Request.Method))
		}
		response.Internal(c, "internal server error")
	}
}

// clientMessage strips the sentinel from a wrapped error. "target not found: chapter not found"
// becomes "chapter not found"; "chapter 42: target not found" becomes "chapter 42" + suffix.
func clientMessage(err, sentinel error, suffix string) string {
	msg, s := err.Error(), sentinel.Error()
	if rest, ok := strings.CutPrefix(msg, s+": "); ok {
		return rest
	}
	if rest, ok := strings.CutSuffix(msg, ": "+s); ok {
		return rest + suffix
	}
	return msg
}
