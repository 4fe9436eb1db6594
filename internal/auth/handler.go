package auth

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chapterhub/backend/internal/activity"
	"github.com/chapterhub/backend/internal/authz"
	"github.com/chapterhub/backend/internal/models"
	"github.com/chapterhub/backend/pkg/queue"
	"github.com/chapterhub/backend/pkg/response"
	"github.com/chapterhub/backend/pkg/utils"
)

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email     string    `json:"email" binding:"required,email"`
	Password  string    `json:"password" binding:"required"`
	Name      string    `json:"name" binding:"required"`
	ChapterID uuid.UUID `json:"chapter_id" binding:"required"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// RegisterResponse is returned by POST /auth/register. No token is issued until a join
// request is approved.
type RegisterResponse struct {
	Message     string             `json:"message"`
	User        models.UserPublic  `json:"user"`
	JoinRequest models.JoinRequest `json:"join_request"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo     *Repository
	jwt      *JWTService
	activity *activity.Recorder
	logger   *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, jwt *JWTService, rec *activity.Recorder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, jwt: jwt, activity: rec, logger: logger}
}

// Register handles POST /auth/register: an Activist account plus a join request for the chosen chapter.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if len(req.Password) < utils.MinPasswordLength {
		response.BadRequest(c, "password must be at least 8 characters")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		response.BadRequest(c, "name must not be empty")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hash password failed", zap.Error(err))
		response.Internal(c, "failed to hash password")
		return
	}

	ctx := c.Request.Context()
	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, jr, err := h.repo.Register(ctx, email, hash, req.Name, req.ChapterID)
	switch {
	case errors.Is(err, ErrEmailTaken):
		response.Conflict(c, "email already registered")
		return
	case errors.Is(err, authz.ErrTargetNotFound):
		response.NotFound(c, "chapter not found")
		return
	case err != nil:
		h.logger.Error("register user failed", zap.Error(err), zap.String("chapter_id", req.ChapterID.String()))
		response.Internal(c, "failed to create user")
		return
	}

	h.activity.Record(ctx, queue.ActivityPayload{Kind: models.ActivityJoinRequest, ActorID: &user.ID, ChapterID: &jr.ChapterID,
		Detail: map[string]any{"action": "registered"}})
	response.Created(c, RegisterResponse{
		Message:     "User created and join request sent for approval.",
		User:        user.ToPublic(),
		JoinRequest: *jr,
	})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	user, err := h.repo.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if !errors.Is(err, authz.ErrTargetNotFound) {
			h.logger.Error("load user failed", zap.Error(err))
		}
		response.Unauthorized(c, "invalid email or password")
		return
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	if user.Role == authz.RoleActivist {
		n, err := h.repo.CountMemberships(ctx, user.ID)
		if err != nil {
			h.logger.Error("count memberships failed", zap.Error(err), zap.String("user_id", user.ID.String()))
			response.Internal(c, "internal server error")
			return
		}
		if n == 0 {
			response.Forbidden(c, "Your join request is still pending approval.")
			return
		}
	}

	token, err := h.jwt.Generate(user.ID, user.Email, user.Role)
	if err != nil {
		h.logger.Error("generate token failed", zap.Error(err))
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}
