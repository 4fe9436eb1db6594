package promotions

import (
	"context"

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

// PromoteRequest is the body for POST /promote/:userId.
type PromoteRequest struct {
	NewRole  string     `json:"new_role" binding:"required"`
	TargetID *uuid.UUID `json:"target_id"`
}

// Promoter applies promotions. *authz.Promoter implements it.
type Promoter interface {
	Promote(ctx context.Context, req authz.PromotionRequest) (*authz.Promotion, error)
}

// Handler handles the promotion endpoint.
type Handler struct {
	promoter Promoter
	activity *activity.Recorder
	logger   *zap.Logger
}

// NewHandler creates a promotion handler.
func NewHandler(promoter Promoter, rec *activity.Recorder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{promoter: promoter, activity: rec, logger: logger}
}

// Promote handles POST /promote/:userId.
func (h *Handler) Promote(c *gin.Context) {
	userID, ok := middleware.ParamUUID(c, "userId")
	if !ok {
		return
	}
	var req PromoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	role, err := authz.ParseRole(req.NewRole)
	if err != nil {
		response.BadRequest(c, "invalid new_role")
		return
	}

	manager := middleware.Principal(c)
	ctx := c.Request.Context()
	res, err := h.promoter.Promote(ctx, authz.PromotionRequest{
		ManagerID:    manager.ID,
		TargetUserID: userID,
		NewRole:      role,
		TargetID:     req.TargetID,
	})
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}

	h.logger.Info("user promoted",
		zap.String("manager_id", manager.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Stringer("from", res.PreviousRole),
		zap.Stringer("to", res.Role),
	)
	h.activity.Record(ctx, queue.ActivityPayload{
		Kind:      models.ActivityPromotion,
		ActorID:   &manager.ID,
		SubjectID: &res.UserID,
		ChapterID: res.ChapterID,
		RegionID:  res.ManagedRegionID,
		Detail:    map[string]any{"from": res.PreviousRole.String(), "to": res.Role.String()},
	})
	response.OK(c, res)
}
