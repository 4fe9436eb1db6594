package regions

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chapterhub/backend/internal/authz"
	"github.com/chapterhub/backend/internal/chapters"
	"github.com/chapterhub/backend/internal/middleware"
	"github.com/chapterhub/backend/pkg/response"
)

// CreateRequest is the body for POST /regions.
type CreateRequest struct {
	Name string `json:"name" binding:"required"`
}

// Handler handles region HTTP endpoints.
type Handler struct {
	repo     *Repository
	chapters *chapters.Repository
	logger   *zap.Logger
}

// NewHandler creates a region handler.
func NewHandler(repo *Repository, chapters *chapters.Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, chapters: chapters, logger: logger}
}

// List handles GET /regions.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list regions failed", zap.Error(err))
		response.Internal(c, "failed to list regions")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /regions/:regionId and includes the region's chapters.
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "regionId")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	rg, err := h.repo.GetByID(ctx, id)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	list, err := h.chapters.ListByRegion(ctx, id)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"region": rg, "chapters": list})
}

// Create handles POST /regions.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		response.BadRequest(c, "name must not be empty")
		return
	}
	rg, err := h.repo.Create(c.Request.Context(), name)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	h.logger.Info("region created", zap.String("region_id", rg.ID.String()),
		zap.String("user_id", middleware.Principal(c).ID.String()))
	response.Created(c, rg)
}

// Routes registers region routes on g. Creating a region is reserved to Co-founders.
func (h *Handler) Routes(g *gin.RouterGroup) {
	g.GET("", h.List)
	g.GET("/:regionId", h.GetByID)
	g.POST("", middleware.RequireRole(authz.RoleCofounder), h.Create)
}
