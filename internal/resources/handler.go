// Package resources serves the shared file library backed by S3.
package resources

import (
	"context"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chapterhub/backend/internal/authz"
	"github.com/chapterhub/backend/internal/middleware"
	"github.com/chapterhub/backend/internal/models"
	"github.com/chapterhub/backend/pkg/response"
	"github.com/chapterhub/backend/pkg/storage"
)

// Store persists resource metadata.
type Store interface {
	EnsureCategory(ctx context.Context, name string) (*models.ResourceCategory, error)
	Create(ctx context.Context, res *models.Resource) error
	List(ctx context.Context) ([]models.Resource, error)
}

// ObjectStore holds the resource files.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) error
	PresignGet(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Handler handles resource library endpoints.
type Handler struct {
	repo   Store
	s3     ObjectStore
	logger *zap.Logger
}

// NewHandler creates a resource handler. s3 may be nil when storage is not configured.
func NewHandler(repo Store, s3 ObjectStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, s3: s3, logger: logger}
}

// List handles GET /resources: resources grouped by category, each with a presigned download URL.
func (h *Handler) List(c *gin.Context) {
	ctx := c.Request.Context()
	list, err := h.repo.List(ctx)
	if err != nil {
		h.logger.Error("list resources failed", zap.Error(err))
		response.Internal(c, "failed to list resources")
		return
	}

	groups := []models.ResourceGroup{}
	for _, res := range list {
		if h.s3 != nil {
			url, err := h.s3.PresignGet(ctx, res.S3Key)
			if err != nil {
				h.logger.Warn("presign resource failed", zap.Error(err), zap.String("resource_id", res.ID.String()))
			}
			res.DownloadURL = url
		}
		if n := len(groups); n == 0 || groups[n-1].Category != res.CategoryName {
			groups = append(groups, models.ResourceGroup{Category: res.CategoryName})
		}
		g := &groups[len(groups)-1]
		g.Resources = append(g.Resources, res)
	}
	response.OK(c, groups)
}

// Upload handles POST /resources (multipart: title, description, category, file).
func (h *Handler) Upload(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "S3 not configured")
		return
	}
	title := strings.TrimSpace(c.PostForm("title"))
	category := strings.TrimSpace(c.PostForm("category"))
	if title == "" || category == "" {
		response.BadRequest(c, "title and category are required")
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing file (form field: file)")
		return
	}
	if file.Size > storage.MaxResourceFileSize {
		response.BadRequest(c, "file size exceeds 25MB limit")
		return
	}
	contentType, ok := storage.ValidateResourceType(file.Header.Get("Content-Type"), file.Filename)
	if !ok {
		response.BadRequest(c, "invalid file type: only pdf, images, text and office documents allowed")
		return
	}

	ctx := c.Request.Context()
	user := middleware.Principal(c)
	cat, err := h.repo.EnsureCategory(ctx, category)
	if err != nil {
		h.logger.Error("ensure resource category failed", zap.Error(err), zap.String("category", category))
		response.Internal(c, "failed to save resource")
		return
	}

	res := &models.Resource{
		ID:           uuid.New(),
		Title:        title,
		Description:  strings.TrimSpace(c.PostForm("description")),
		CategoryID:   cat.ID,
		CategoryName: cat.Name,
		ContentType:  contentType,
		SizeBytes:    file.Size,
		UploadedBy:   user.ID,
	}
	res.S3Key = storage.ResourceKey(cat.Name, res.ID.String(), file.Filename)

	rc, err := file.Open()
	if err != nil {
		h.logger.Error("open uploaded file failed", zap.Error(err))
		response.Internal(c, "failed to read file")
		return
	}
	defer rc.Close()

	if err := h.s3.Upload(ctx, res.S3Key, contentType, rc, file.Size); err != nil {
		h.logger.Error("S3 upload failed", zap.Error(err), zap.String("key", res.S3Key))
		response.Internal(c, "failed to upload file to storage")
		return
	}
	if err := h.repo.Create(ctx, res); err != nil {
		h.logger.Error("create resource failed", zap.Error(err), zap.String("key", res.S3Key))
		if derr := h.s3.Delete(ctx, res.S3Key); derr != nil {
			h.logger.Warn("delete orphaned object failed", zap.Error(derr), zap.String("key", res.S3Key))
		}
		response.Internal(c, "failed to save resource")
		return
	}
	if url, err := h.s3.PresignGet(ctx, res.S3Key); err == nil {
		res.DownloadURL = url
	}
	h.logger.Info("resource uploaded", zap.String("resource_id", res.ID.String()), zap.String("user_id", user.ID.String()))
	response.Created(c, res)
}

// Routes registers resource routes on g. Uploading is reserved to Co-founders.
func (h *Handler) Routes(g *gin.RouterGroup) {
	g.GET("", h.List)
	g.POST("", middleware.RequireRole(authz.RoleCofounder), h.Upload)
}
