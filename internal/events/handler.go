package events

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chapterhub/backend/internal/activity"
	"github.com/chapterhub/backend/internal/authz"
	"github.com/chapterhub/backend/internal/content"
	"github.com/chapterhub/backend/internal/middleware"
	"github.com/chapterhub/backend/internal/models"
	"github.com/chapterhub/backend/pkg/response"
)

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// CreateRequest is the body for POST /events and POST /trainings.
type CreateRequest struct {
	content.TargetRequest
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Location    string `json:"location"`
	StartTime   string `json:"start_time" binding:"required"`
	EndTime     string `json:"end_time" binding:"required"`
}

// UpdateRequest is the body for PUT /events/:id. Scope and target cannot change.
type UpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
}

// AttendanceRequest is the body for PUT /events/:id/registrations/:userId.
type AttendanceRequest struct {
	Attended *bool `json:"attended" binding:"required"`
}

// VisibilitySource computes what a user may see. *authz.Resolver implements it.
type VisibilitySource interface {
	Visibility(ctx context.Context, user authz.Subject) (authz.Visibility, error)
}

// Handler handles event or training HTTP endpoints.
type Handler struct {
	repo     *Repository
	eval     *authz.Evaluator
	vis      VisibilitySource
	notifier content.Notifier
	activity *activity.Recorder
	logger   *zap.Logger
}

// NewHandler creates a handler. notifier may be nil.
func NewHandler(repo *Repository, eval *authz.Evaluator, vis VisibilitySource, notifier content.Notifier, rec *activity.Recorder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, eval: eval, vis: vis, notifier: notifier, activity: rec, logger: logger}
}

// Create handles POST /events.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	start, err := parseTime(req.StartTime)
	if err != nil {
		response.BadRequest(c, "invalid start_time")
		return
	}
	end, err := parseTime(req.EndTime)
	if err != nil {
		response.BadRequest(c, "invalid end_time")
		return
	}
	if end.Before(start) {
		response.BadRequest(c, "end_time must not be before start_time")
		return
	}

	author := middleware.Principal(c)
	ctx := c.Request.Context()
	item, err := content.Authorize(ctx, h.eval, author, req.TargetRequest)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}

	e := &models.Event{
		Content:     item,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartTime:   start,
		EndTime:     end,
		CanModify:   true,
	}
	if err := h.repo.Create(ctx, e); err != nil {
		h.logger.Error("create content failed", zap.Error(err), zap.String("kind", h.repo.Kind().Name), zap.String("author_id", author.ID.String()))
		response.Internal(c, "failed to create "+h.repo.Kind().Name)
		return
	}
	content.Published(ctx, h.notifier, h.activity, h.repo.Kind().Name, e.Content, e.Title)
	response.Created(c, e)
}

// List handles GET /events: upcoming items the caller can see.
func (h *Handler) List(c *gin.Context) {
	user := middleware.Principal(c)
	ctx := c.Request.Context()
	vis, err := h.vis.Visibility(ctx, user)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.repo.ListVisible(ctx, vis, user.ID, time.Now(), limit)
	if err != nil {
		h.logger.Error("list content failed", zap.Error(err), zap.String("kind", h.repo.Kind().Name))
		response.Internal(c, "failed to list "+h.repo.Kind().Name+"s")
		return
	}
	if list == nil {
		list = []models.Event{}
	}
	for i := range list {
		list[i].CanModify = h.eval.ModificationFlag(ctx, user, list[i].Content)
	}
	response.OK(c, list)
}

// visible loads :id and answers 404 unless the caller can open it.
func (h *Handler) visible(c *gin.Context) (*models.Event, authz.Subject, bool) {
	user := middleware.Principal(c)
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return nil, user, false
	}
	ctx := c.Request.Context()
	e, err := h.repo.GetByID(ctx, id, user.ID)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return nil, user, false
	}
	vis, err := h.vis.Visibility(ctx, user)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return nil, user, false
	}
	if !h.eval.CanView(ctx, user, vis, e.Content) {
		response.NotFound(c, h.repo.Kind().Name+" not found")
		return nil, user, false
	}
	return e, user, true
}

// GetByID handles GET /events/:id.
func (h *Handler) GetByID(c *gin.Context) {
	e, user, ok := h.visible(c)
	if !ok {
		return
	}
	e.CanModify = h.eval.ModificationFlag(c.Request.Context(), user, e.Content)
	response.OK(c, e)
}

// Update handles PUT /events/:id. Runs behind RequireContentModifier.
func (h *Handler) Update(c *gin.Context) {
	item := c.MustGet(middleware.ContextContent).(authz.Content)
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	f := UpdateFields{Title: req.Title, Description: req.Description, Location: req.Location}
	for _, p := range []struct {
		in   *string
		out  **time.Time
		name string
	}{{req.StartTime, &f.StartTime, "start_time"}, {req.EndTime, &f.EndTime, "end_time"}} {
		if p.in == nil {
			continue
		}
		t, err := parseTime(*p.in)
		if err != nil {
			response.BadRequest(c, "invalid "+p.name)
			return
		}
		*p.out = &t
	}

	ctx := c.Request.Context()
	user := middleware.Principal(c)
	current, err := h.repo.GetByID(ctx, item.ID, user.ID)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	start, end := current.StartTime, current.EndTime
	if f.StartTime != nil {
		start = *f.StartTime
	}
	if f.EndTime != nil {
		end = *f.EndTime
	}
	if end.Before(start) {
		response.BadRequest(c, "end_time must not be before start_time")
		return
	}
	if err := h.repo.Update(ctx, item.ID, f); err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	updated, err := h.repo.GetByID(ctx, item.ID, user.ID)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	updated.CanModify = true
	response.OK(c, updated)
}

// Delete handles DELETE /events/:id. Runs behind RequireContentModifier.
func (h *Handler) Delete(c *gin.Context) {
	item := c.MustGet(middleware.ContextContent).(authz.Content)
	if err := h.repo.Delete(c.Request.Context(), item.ID); err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	response.NoContent(c)
}

// RSVP handles POST /events/:id/rsvp.
func (h *Handler) RSVP(c *gin.Context) {
	e, user, ok := h.visible(c)
	if !ok {
		return
	}
	if err := h.repo.Register(c.Request.Context(), e.ID, user.ID); err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	response.Created(c, gin.H{h.repo.Kind().ForeignKey: e.ID, "user_id": user.ID})
}

// CancelRSVP handles DELETE /events/:id/rsvp.
func (h *Handler) CancelRSVP(c *gin.Context) {
	user := middleware.Principal(c)
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.repo.CancelRegistration(c.Request.Context(), id, user.ID); err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	response.NoContent(c)
}

// Attendees handles GET /events/:id/attendees: the registrant list of a visible item.
func (h *Handler) Attendees(c *gin.Context) {
	e, _, ok := h.visible(c)
	if !ok {
		return
	}
	h.writeRegistrations(c, e.ID)
}

// Registrations handles GET /events/:id/registrations. Runs behind RequireContentModifier.
func (h *Handler) Registrations(c *gin.Context) {
	item := c.MustGet(middleware.ContextContent).(authz.Content)
	h.writeRegistrations(c, item.ID)
}

func (h *Handler) writeRegistrations(c *gin.Context, id uuid.UUID) {
	list, err := h.repo.Registrations(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("list registrations failed", zap.Error(err), zap.String("content_id", id.String()))
		response.Internal(c, "failed to list registrations")
		return
	}
	if list == nil {
		list = []models.Registration{}
	}
	response.OK(c, list)
}

// MarkAttendance handles PUT /events/:id/registrations/:userId. Runs behind RequireContentModifier.
func (h *Handler) MarkAttendance(c *gin.Context) {
	item := c.MustGet(middleware.ContextContent).(authz.Content)
	userID, ok := middleware.ParamUUID(c, "userId")
	if !ok {
		return
	}
	var req AttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.repo.MarkAttendance(c.Request.Context(), item.ID, userID, *req.Attended); err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"user_id": userID, "attended": *req.Attended})
}

// Routes mounts the handler under g. g must already run middleware.JWT.
func (h *Handler) Routes(g *gin.RouterGroup, guards *middleware.Guards) {
	modify := guards.RequireContentModifier("id", h.repo.Content)
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.GetByID)
	g.PUT("/:id", modify, h.Update)
	g.DELETE("/:id", modify, h.Delete)
	g.POST("/:id/rsvp", h.RSVP)
	g.DELETE("/:id/rsvp", h.CancelRSVP)
	g.GET("/:id/attendees", h.Attendees)
	g.GET("/:id/registrations", modify, h.Registrations)
	g.PUT("/:id/registrations/:userId", modify, h.MarkAttendance)
}
