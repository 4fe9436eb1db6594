package announcements

import (
	"context"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chapterhub/backend/internal/activity"
	"github.com/chapterhub/backend/internal/authz"
	"github.com/chapterhub/backend/internal/content"
	"github.com/chapterhub/backend/internal/middleware"
	"github.com/chapterhub/backend/internal/models"
	"github.com/chapterhub/backend/pkg/response"
)

// CreateRequest is the body for POST /announcements.
type CreateRequest struct {
	content.TargetRequest
	Title   string `json:"title" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// UpdateRequest is the body for PUT /announcements/:id.
type UpdateRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// VisibilitySource computes what a user may see. *authz.Resolver implements it.
type VisibilitySource interface {
	Visibility(ctx context.Context, user authz.Subject) (authz.Visibility, error)
}

// Handler handles announcement HTTP endpoints.
type Handler struct {
	repo     *Repository
	eval     *authz.Evaluator
	vis      VisibilitySource
	notifier content.Notifier
	activity *activity.Recorder
	logger   *zap.Logger
}

// NewHandler creates an announcement handler. notifier may be nil.
func NewHandler(repo *Repository, eval *authz.Evaluator, vis VisibilitySource, notifier content.Notifier, rec *activity.Recorder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, eval: eval, vis: vis, notifier: notifier, activity: rec, logger: logger}
}

// Create handles POST /announcements.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		response.BadRequest(c, "content must not be empty")
		return
	}
	author := middleware.Principal(c)
	ctx := c.Request.Context()
	item, err := content.Authorize(ctx, h.eval, author, req.TargetRequest)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	a := &models.Announcement{Content: item, Title: req.Title, Body: req.Content, CanModify: true}
	if err := h.repo.Create(ctx, a); err != nil {
		h.logger.Error("create announcement failed", zap.Error(err), zap.String("author_id", author.ID.String()))
		response.Internal(c, "failed to create announcement")
		return
	}
	content.Published(ctx, h.notifier, h.activity, "announcement", a.Content, a.Title)
	response.Created(c, a)
}

// List handles GET /announcements: visible announcements, newest first.
func (h *Handler) List(c *gin.Context) {
	user := middleware.Principal(c)
	ctx := c.Request.Context()
	vis, err := h.vis.Visibility(ctx, user)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.repo.ListVisible(ctx, vis, limit)
	if err != nil {
		h.logger.Error("list announcements failed", zap.Error(err))
		response.Internal(c, "failed to list announcements")
		return
	}
	if list == nil {
		list = []models.Announcement{}
	}
	for i := range list {
		list[i].CanModify = h.eval.ModificationFlag(ctx, user, list[i].Content)
	}
	response.OK(c, list)
}

// GetByID handles GET /announcements/:id.
func (h *Handler) GetByID(c *gin.Context) {
	user := middleware.Principal(c)
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	a, err := h.repo.GetByID(ctx, id)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	vis, err := h.vis.Visibility(ctx, user)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	if !h.eval.CanView(ctx, user, vis, a.Content) {
		response.NotFound(c, "announcement not found")
		return
	}
	a.CanModify = h.eval.ModificationFlag(ctx, user, a.Content)
	response.OK(c, a)
}

// Update handles PUT /announcements/:id. Runs behind RequireContentModifier.
func (h *Handler) Update(c *gin.Context) {
	item := c.MustGet(middleware.ContextContent).(authz.Content)
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Content != nil && strings.TrimSpace(*req.Content) == "" {
		response.BadRequest(c, "content must not be empty")
		return
	}
	ctx := c.Request.Context()
	if err := h.repo.Update(ctx, item.ID, req.Title, req.Content); err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	a, err := h.repo.GetByID(ctx, item.ID)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	a.CanModify = true
	response.OK(c, a)
}

// Delete handles DELETE /announcements/:id. Runs behind RequireContentModifier.
func (h *Handler) Delete(c *gin.Context) {
	item := c.MustGet(middleware.ContextContent).(authz.Content)
	if err := h.repo.Delete(c.Request.Context(), item.ID); err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	response.NoContent(c)
}

// Routes mounts the handler under g. g must already run middleware.JWT.
func (h *Handler) Routes(g *gin.RouterGroup, guards *middleware.Guards) {
	modify := guards.RequireContentModifier("id", h.repo.Content)
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.GetByID)
	g.PUT("/:id", modify, h.Update)
	g.DELETE("/:id", modify, h.Delete)
}
