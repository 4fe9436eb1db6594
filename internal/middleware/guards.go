package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chapterhub/backend/internal/authz"
	"github.com/chapterhub/backend/pkg/response"
)

// ContextContent is the key for the authz.Content loaded by RequireContentModifier.
const ContextContent = "content"

// ContentLoader reads the authorization view of one content row.
type ContentLoader func(ctx context.Context, id uuid.UUID) (authz.Content, error)

// Guards wraps the permission evaluator as route middleware.
type Guards struct {
	eval   *authz.Evaluator
	logger *zap.Logger
}

// NewGuards creates guard middleware backed by eval.
func NewGuards(eval *authz.Evaluator, logger *zap.Logger) *Guards {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guards{eval: eval, logger: logger}
}

// ParamUUID parses a path parameter, answering 400 when it is not a UUID.
func ParamUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// RequireChapterManager allows the request only if the caller may manage members of the chapter
// named by the param path parameter.
func (g *Guards) RequireChapterManager(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		chapterID, ok := ParamUUID(c, param)
		if !ok {
			return
		}
		d, err := g.eval.CanManageChapterMembers(c.Request.Context(), Principal(c), chapterID)
		if err == nil {
			err = d.Err()
		}
		if err != nil {
			AbortWithError(c, g.logger, err)
			return
		}
		c.Next()
	}
}

// RequireContentModifier loads the content named by param and allows the request only if the
// caller may modify it. The loaded content is stored under ContextContent.
func (g *Guards) RequireContentModifier(param string, load ContentLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := ParamUUID(c, param)
		if !ok {
			return
		}
		content, err := load(c.Request.Context(), id)
		if err != nil {
			AbortWithError(c, g.logger, err)
			return
		}
		d, err := g.eval.CanModifyContent(c.Request.Context(), Principal(c), content)
		if err == nil {
			err = d.Err()
		}
		if err != nil {
			AbortWithError(c, g.logger, err)
			return
		}
		c.Set(ContextContent, content)
		c.Next()
	}
}
