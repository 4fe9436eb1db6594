package chapters

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chapterhub/backend/internal/activity"
	"github.com/chapterhub/backend/internal/authz"
	"github.com/chapterhub/backend/internal/middleware"
	"github.com/chapterhub/backend/internal/models"
	"github.com/chapterhub/backend/pkg/queue"
	"github.com/chapterhub/backend/pkg/response"
)

// CreateRequest is the body for POST /chapters.
type CreateRequest struct {
	Name        string     `json:"name" binding:"required"`
	Description string     `json:"description"`
	RegionID    *uuid.UUID `json:"region_id"`
}

// ResolveRequest is the body for POST /chapters/:chapterId/join-requests/:requestId.
type ResolveRequest struct {
	Approve *bool `json:"approve" binding:"required"`
}

// ActivityReader reads chapter activity. *activity.Repository implements it.
type ActivityReader interface {
	ListForChapters(ctx context.Context, chapterIDs, regionIDs []uuid.UUID, limit int) ([]models.ActivityLog, error)
}

// Handler handles chapter HTTP endpoints.
type Handler struct {
	repo     *Repository
	eval     *authz.Evaluator
	log      ActivityReader
	activity *activity.Recorder
	logger   *zap.Logger
}

// NewHandler creates a chapter handler.
func NewHandler(repo *Repository, eval *authz.Evaluator, log ActivityReader, rec *activity.Recorder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, eval: eval, log: log, activity: rec, logger: logger}
}

func (h *Handler) writeList(c *gin.Context, list []models.Chapter, err error) {
	if err != nil {
		h.logger.Error("list chapters failed", zap.Error(err), zap.String("path", c.FullPath()))
		response.Internal(c, "failed to list chapters")
		return
	}
	response.OK(c, list)
}

// List handles GET /chapters.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	h.writeList(c, list, err)
}

// PublicList handles GET /public/chapters: id and name only, for the registration form.
func (h *Handler) PublicList(c *gin.Context) {
	list, err := h.repo.ListNames(c.Request.Context())
	if err != nil {
		h.logger.Error("list chapter names failed", zap.Error(err))
		response.Internal(c, "failed to list chapters")
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, ch := range list {
		out = append(out, gin.H{"id": ch.ID, "name": ch.Name})
	}
	response.OK(c, out)
}

// Mine handles GET /chapters/my-chapters.
func (h *Handler) Mine(c *gin.Context) {
	list, err := h.repo.ListForUser(c.Request.Context(), middleware.Principal(c).ID)
	h.writeList(c, list, err)
}

// Managed handles GET /chapters/my-managed.
func (h *Handler) Managed(c *gin.Context) {
	list, err := h.repo.ListManaged(c.Request.Context(), middleware.Principal(c))
	h.writeList(c, list, err)
}

// InRegion handles GET /chapters/in-region/:regionId.
func (h *Handler) InRegion(c *gin.Context) {
	regionID, ok := middleware.ParamUUID(c, "regionId")
	if !ok {
		return
	}
	list, err := h.repo.ListByRegion(c.Request.Context(), regionID)
	h.writeList(c, list, err)
}

// Stats handles GET /chapters/:chapterId/stats.
func (h *Handler) Stats(c *gin.Context) {
	chapterID, ok := middleware.ParamUUID(c, "chapterId")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.repo.GetByID(ctx, chapterID); err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	stats, err := h.repo.Stats(ctx, chapterID)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	response.OK(c, stats)
}

// Create handles POST /chapters.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		response.BadRequest(c, "name must not be empty")
		return
	}
	ctx := c.Request.Context()
	user := middleware.Principal(c)
	d, err := h.eval.CanCreateChapter(ctx, user, req.RegionID)
	if err == nil {
		err = d.Err()
	}
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	ch := &models.Chapter{Name: req.Name, Description: req.Description, RegionID: req.RegionID}
	if err := h.repo.Create(ctx, ch); err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	h.logger.Info("chapter created", zap.String("chapter_id", ch.ID.String()), zap.String("user_id", user.ID.String()))
	response.Created(c, ch)
}

// RequestJoin handles POST /chapters/:chapterId/request-join.
func (h *Handler) RequestJoin(c *gin.Context) {
	chapterID, ok := middleware.ParamUUID(c, "chapterId")
	if !ok {
		return
	}
	user := middleware.Principal(c)
	ctx := c.Request.Context()
	jr, err := h.repo.RequestJoin(ctx, user.ID, chapterID)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	h.activity.Record(ctx, queue.ActivityPayload{Kind: models.ActivityJoinRequest, ActorID: &user.ID, ChapterID: &chapterID})
	response.Created(c, jr)
}

// BecomeMember handles POST /chapters/:chapterId/become-member: a Co-founder, or the Regional
// Organiser of the chapter's region, takes a City Organiser seat in it.
func (h *Handler) BecomeMember(c *gin.Context) {
	chapterID, ok := middleware.ParamUUID(c, "chapterId")
	if !ok {
		return
	}
	user := middleware.Principal(c)
	ctx := c.Request.Context()
	ch, err := h.repo.GetByID(ctx, chapterID)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	if user.Role != authz.RoleCofounder && !user.ManagesRegion(ch.RegionID) {
		middleware.AbortWithError(c, h.logger, &authz.ForbiddenError{Reason: "only co-founders and the regional organiser of this region can join as organiser"})
		return
	}
	if err := h.repo.UpsertOrganiser(ctx, user.ID, chapterID); err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	h.activity.Record(ctx, queue.ActivityPayload{Kind: models.ActivityMembership, ActorID: &user.ID, SubjectID: &user.ID, ChapterID: &chapterID,
		Detail: map[string]any{"action": "become_member", "role": string(authz.MembershipCityOrganiser)}})
	response.OK(c, gin.H{"chapter_id": chapterID, "user_id": user.ID, "role": authz.MembershipCityOrganiser})
}

// Members handles GET /chapters/:chapterId/members. Managers and members of the chapter may
// list it; can_manage tells the client whether to offer member management.
func (h *Handler) Members(c *gin.Context) {
	chapterID, ok := middleware.ParamUUID(c, "chapterId")
	if !ok {
		return
	}
	user := middleware.Principal(c)
	ctx := c.Request.Context()
	d, err := h.eval.CanManageChapterMembers(ctx, user, chapterID)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	if !d.Allowed {
		if _, err := h.repo.MembershipRole(ctx, user.ID, chapterID); err != nil {
			if errors.Is(err, authz.ErrTargetNotFound) {
				err = d.Err()
			}
			middleware.AbortWithError(c, h.logger, err)
			return
		}
	}
	list, err := h.repo.Members(ctx, chapterID)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"members": list, "can_manage": d.Allowed})
}

// AddMember handles POST /chapters/:chapterId/members/:userId. Runs behind RequireChapterManager.
func (h *Handler) AddMember(c *gin.Context) {
	chapterID, ok := middleware.ParamUUID(c, "chapterId")
	if !ok {
		return
	}
	userID, ok := middleware.ParamUUID(c, "userId")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	created, err := h.repo.AddMember(ctx, userID, chapterID, authz.MembershipActivist)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
		actor := middleware.Principal(c).ID
		h.activity.Record(ctx, queue.ActivityPayload{Kind: models.ActivityMembership, ActorID: &actor, SubjectID: &userID, ChapterID: &chapterID,
			Detail: map[string]any{"action": "added"}})
	}
	c.JSON(status, response.Body{Success: true, Data: gin.H{"chapter_id": chapterID, "user_id": userID, "created": created}})
}

// RemoveMember handles DELETE /chapters/:chapterId/members/:userId. Runs behind RequireChapterManager.
func (h *Handler) RemoveMember(c *gin.Context) {
	chapterID, ok := middleware.ParamUUID(c, "chapterId")
	if !ok {
		return
	}
	userID, ok := middleware.ParamUUID(c, "userId")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	demoted, err := h.repo.RemoveMember(ctx, chapterID, userID)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	actor := middleware.Principal(c).ID
	h.activity.Record(ctx, queue.ActivityPayload{Kind: models.ActivityMembership, ActorID: &actor, SubjectID: &userID, ChapterID: &chapterID,
		Detail: map[string]any{"action": "removed", "demoted": demoted}})
	if demoted {
		h.logger.Info("organiser demoted after last membership removed", zap.String("user_id", userID.String()), zap.String("chapter_id", chapterID.String()))
	}
	response.OK(c, gin.H{"chapter_id": chapterID, "user_id": userID, "demoted": demoted})
}

// JoinRequests handles GET /chapters/:chapterId/join-requests. Runs behind RequireChapterManager.
func (h *Handler) JoinRequests(c *gin.Context) {
	chapterID, ok := middleware.ParamUUID(c, "chapterId")
	if !ok {
		return
	}
	list, err := h.repo.JoinRequests(c.Request.Context(), chapterID)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// ResolveJoinRequest handles POST /chapters/:chapterId/join-requests/:requestId. Runs behind
// RequireChapterManager.
func (h *Handler) ResolveJoinRequest(c *gin.Context) {
	chapterID, ok := middleware.ParamUUID(c, "chapterId")
	if !ok {
		return
	}
	requestID, ok := middleware.ParamUUID(c, "requestId")
	if !ok {
		return
	}
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	jr, err := h.repo.ResolveJoinRequest(ctx, chapterID, requestID, *req.Approve)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	actor := middleware.Principal(c).ID
	action := "denied"
	if *req.Approve {
		action = "approved"
	}
	h.activity.Record(ctx, queue.ActivityPayload{Kind: models.ActivityJoinRequest, ActorID: &actor, SubjectID: &jr.UserID, ChapterID: &chapterID,
		Detail: map[string]any{"action": action}})
	response.OK(c, gin.H{"request_id": requestID, "user_id": jr.UserID, "approved": *req.Approve})
}

// Activity handles GET /chapters/:chapterId/activity. Runs behind RequireChapterManager.
func (h *Handler) Activity(c *gin.Context) {
	chapterID, ok := middleware.ParamUUID(c, "chapterId")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.log.ListForChapters(c.Request.Context(), []uuid.UUID{chapterID}, nil, limit)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	if list == nil {
		list = []models.ActivityLog{}
	}
	response.OK(c, list)
}

// Routes mounts the handler under g. g must already run middleware.JWT.
func (h *Handler) Routes(g *gin.RouterGroup, guards *middleware.Guards) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/my-chapters", h.Mine)
	g.GET("/my-managed", h.Managed)
	g.GET("/in-region/:regionId", h.InRegion)
	g.GET("/:chapterId/stats", h.Stats)
	g.POST("/:chapterId/request-join", h.RequestJoin)
	g.POST("/:chapterId/become-member", h.BecomeMember)
	g.GET("/:chapterId/members", h.Members)

	manage := g.Group("/:chapterId", guards.RequireChapterManager("chapterId"))
	manage.POST("/members/:userId", h.AddMember)
	manage.DELETE("/members/:userId", h.RemoveMember)
	manage.GET("/join-requests", h.JoinRequests)
	manage.POST("/join-requests/:requestId", h.ResolveJoinRequest)
	manage.GET("/activity", h.Activity)
}
