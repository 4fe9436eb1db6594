// Package users serves the signed-in user's account and the member directory search.
package users

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chapterhub/backend/internal/auth"
	"github.com/chapterhub/backend/internal/chapters"
	"github.com/chapterhub/backend/internal/middleware"
	"github.com/chapterhub/backend/pkg/response"
)

const (
	minSearchLength = 2
	maxSearchResult = 10
)

// Handler handles user HTTP endpoints.
type Handler struct {
	users    *auth.Repository
	chapters *chapters.Repository
	logger   *zap.Logger
}

// NewHandler creates a user handler.
func NewHandler(users *auth.Repository, chapters *chapters.Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{users: users, chapters: chapters, logger: logger}
}

// Me handles GET /auth/me: the caller with the chapters they belong to.
func (h *Handler) Me(c *gin.Context) {
	ctx := c.Request.Context()
	id := middleware.Principal(c).ID
	u, err := h.users.GetByID(ctx, id)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	list, err := h.chapters.ListForUser(ctx, id)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"user": u.ToPublic(), "chapters": list})
}

// Search handles GET /users/search?q=. Queries shorter than two characters match nobody.
func (h *Handler) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if len([]rune(q)) < minSearchLength {
		response.OK(c, []any{})
		return
	}
	list, err := h.users.Search(c.Request.Context(), q, maxSearchResult)
	if err != nil {
		h.logger.Error("search users failed", zap.Error(err))
		response.Internal(c, "failed to search users")
		return
	}
	response.OK(c, list)
}
