package comments

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chapterhub/backend/internal/authz"
	"github.com/chapterhub/backend/internal/middleware"
	"github.com/chapterhub/backend/internal/models"
	"github.com/chapterhub/backend/pkg/response"
)

// CreateRequest is the body for POST /comments.
type CreateRequest struct {
	Content        string     `json:"content"`
	EventID        *uuid.UUID `json:"event_id"`
	AnnouncementID *uuid.UUID `json:"announcement_id"`
}

// VisibilitySource computes what a user may see. *authz.Resolver implements it.
type VisibilitySource interface {
	Visibility(ctx context.Context, user authz.Subject) (authz.Visibility, error)
}

// Store persists comments. *Repository implements it.
type Store interface {
	Create(ctx context.Context, cm *models.Comment) error
	ListForEvent(ctx context.Context, eventID uuid.UUID) ([]models.Comment, error)
	ListForAnnouncement(ctx context.Context, announcementID uuid.UUID) ([]models.Comment, error)
}

// Handler handles comment HTTP endpoints.
type Handler struct {
	repo          Store
	eval          *authz.Evaluator
	events        middleware.ContentLoader
	announcements middleware.ContentLoader
	vis           VisibilitySource
	logger        *zap.Logger
}

// NewHandler creates a comment handler. events and announcements load the commented item.
func NewHandler(repo Store, eval *authz.Evaluator, events, announcements middleware.ContentLoader, vis VisibilitySource, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, eval: eval, events: events, announcements: announcements, vis: vis, logger: logger}
}

// target resolves the one commented item, answering 400 unless exactly one id is given and 404
// unless the caller can open it.
func (h *Handler) target(c *gin.Context, eventID, announcementID *uuid.UUID) (authz.Content, bool) {
	if (eventID == nil) == (announcementID == nil) {
		response.BadRequest(c, "exactly one of event_id or announcement_id is required")
		return authz.Content{}, false
	}
	ctx := c.Request.Context()
	var item authz.Content
	var err error
	if eventID != nil {
		item, err = h.events(ctx, *eventID)
	} else {
		item, err = h.announcements(ctx, *announcementID)
	}
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return authz.Content{}, false
	}
	user := middleware.Principal(c)
	vis, err := h.vis.Visibility(ctx, user)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return authz.Content{}, false
	}
	if !h.eval.CanView(ctx, user, vis, item) {
		response.NotFound(c, "target not found")
		return authz.Content{}, false
	}
	return item, true
}

func queryUUID(c *gin.Context, name string) (*uuid.UUID, bool) {
	s := c.Query(name)
	if s == "" {
		return nil, true
	}
	id, err := uuid.Parse(s)
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return nil, false
	}
	return &id, true
}

// List handles GET /comments?event_id= or ?announcement_id=.
func (h *Handler) List(c *gin.Context) {
	eventID, ok := queryUUID(c, "event_id")
	if !ok {
		return
	}
	announcementID, ok := queryUUID(c, "announcement_id")
	if !ok {
		return
	}
	item, ok := h.target(c, eventID, announcementID)
	if !ok {
		return
	}
	var list []models.Comment
	var err error
	if eventID != nil {
		list, err = h.repo.ListForEvent(c.Request.Context(), item.ID)
	} else {
		list, err = h.repo.ListForAnnouncement(c.Request.Context(), item.ID)
	}
	if err != nil {
		h.logger.Error("list comments failed", zap.Error(err), zap.String("target_id", item.ID.String()))
		response.Internal(c, "failed to list comments")
		return
	}
	response.OK(c, list)
}

// Create handles POST /comments.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		response.BadRequest(c, "content must not be empty")
		return
	}
	if _, ok := h.target(c, req.EventID, req.AnnouncementID); !ok {
		return
	}
	user := middleware.Principal(c)
	cm := &models.Comment{Content: req.Content, AuthorID: user.ID, EventID: req.EventID, AnnouncementID: req.AnnouncementID}
	if err := h.repo.Create(c.Request.Context(), cm); err != nil {
		h.logger.Error("create comment failed", zap.Error(err), zap.String("author_id", user.ID.String()))
		response.Internal(c, "failed to create comment")
		return
	}
	response.Created(c, cm)
}
