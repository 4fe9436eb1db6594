package resources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapterhub/backend/internal/authz"
	"github.com/chapterhub/backend/internal/middleware"
	"github.com/chapterhub/backend/internal/models"
)

type memStore struct {
	cats      map[string]uuid.UUID
	resources []models.Resource
	createErr error
}

func (m *memStore) EnsureCategory(_ context.Context, name string) (*models.ResourceCategory, error) {
	if m.cats == nil {
		m.cats = map[string]uuid.UUID{}
	}
	id, ok := m.cats[name]
	if !ok {
		id = uuid.New()
		m.cats[name] = id
	}
	return &models.ResourceCategory{ID: id, Name: name}, nil
}

func (m *memStore) Create(_ context.Context, res *models.Resource) error {
	if m.createErr != nil {
		return m.createErr
	}
	res.CreatedAt = time.Now()
	m.resources = append(m.resources, *res)
	return nil
}

func (m *memStore) List(context.Context) ([]models.Resource, error) {
	return m.resources, nil
}

type memObjects struct {
	objects map[string][]byte
	deleted []string
}

func (m *memObjects) Upload(_ context.Context, key, _ string, body io.Reader, _ int64) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = b
	return nil
}

func (m *memObjects) PresignGet(_ context.Context, key string) (string, error) {
	return "https://files.example.org/" + key + "?sig=1", nil
}

func (m *memObjects) Delete(_ context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	delete(m.objects, key)
	return nil
}

func router(h *Handler, user authz.Subject) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextPrincipal, user)
		c.Next()
	})
	h.Routes(r.Group("/resources"))
	return r
}

func multipartBody(t *testing.T, fields map[string]string, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		hdr.Set("Content-Type", contentType)
		part, err := w.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func upload(r *gin.Engine, body *bytes.Buffer, ct string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/resources", body)
	req.Header.Set("Content-Type", ct)
	r.ServeHTTP(w, req)
	return w
}

var cofounder = authz.Subject{ID: uuid.New(), Role: authz.RoleCofounder}

func TestUpload(t *testing.T) {
	store, objects := &memStore{}, &memObjects{}
	r := router(NewHandler(store, objects, nil), cofounder)

	body, ct := multipartBody(t, map[string]string{"title": "Outreach guide", "category": "Training Material"},
		"Guide.PDF", "application/pdf", []byte("%PDF-1.4"))
	w := upload(r, body, ct)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.Len(t, store.resources, 1)
	res := store.resources[0]
	assert.Equal(t, "resources/training-material/"+res.ID.String()+".pdf", res.S3Key)
	assert.Equal(t, "application/pdf", res.ContentType)
	assert.Equal(t, cofounder.ID, res.UploadedBy)
	assert.Equal(t, []byte("%PDF-1.4"), objects.objects[res.S3Key])
}

func TestUpload_Rejects(t *testing.T) {
	store, objects := &memStore{}, &memObjects{}

	t.Run("not a cofounder", func(t *testing.T) {
		r := router(NewHandler(store, objects, nil), authz.Subject{ID: uuid.New(), Role: authz.RoleRegionalOrganiser})
		body, ct := multipartBody(t, map[string]string{"title": "x", "category": "y"}, "a.pdf", "application/pdf", []byte("x"))
		assert.Equal(t, http.StatusForbidden, upload(r, body, ct).Code)
	})

	r := router(NewHandler(store, objects, nil), cofounder)
	t.Run("missing title", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"category": "y"}, "a.pdf", "application/pdf", []byte("x"))
		assert.Equal(t, http.StatusBadRequest, upload(r, body, ct).Code)
	})
	t.Run("missing file", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"title": "x", "category": "y"}, "", "", nil)
		assert.Equal(t, http.StatusBadRequest, upload(r, body, ct).Code)
	})
	t.Run("disallowed type", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"title": "x", "category": "y"}, "run.exe", "application/octet-stream", []byte("MZ"))
		assert.Equal(t, http.StatusBadRequest, upload(r, body, ct).Code)
	})
	assert.Empty(t, store.resources)
	assert.Empty(t, objects.objects)

	t.Run("storage not configured", func(t *testing.T) {
		r := router(NewHandler(store, nil, nil), cofounder)
		body, ct := multipartBody(t, map[string]string{"title": "x", "category": "y"}, "a.pdf", "application/pdf", []byte("x"))
		assert.Equal(t, http.StatusServiceUnavailable, upload(r, body, ct).Code)
	})
}

func TestUpload_RemovesObjectWhenInsertFails(t *testing.T) {
	store, objects := &memStore{createErr: errors.New("db down")}, &memObjects{}
	r := router(NewHandler(store, objects, nil), cofounder)

	body, ct := multipartBody(t, map[string]string{"title": "x", "category": "y"}, "a.png", "image/png", []byte("png"))
	assert.Equal(t, http.StatusInternalServerError, upload(r, body, ct).Code)
	assert.Len(t, objects.deleted, 1)
	assert.Empty(t, objects.objects)
}

func TestList_GroupsByCategory(t *testing.T) {
	store := &memStore{resources: []models.Resource{
		{ID: uuid.New(), Title: "A", CategoryName: "Guides", S3Key: "resources/guides/a.pdf"},
		{ID: uuid.New(), Title: "B", CategoryName: "Guides", S3Key: "resources/guides/b.pdf"},
		{ID: uuid.New(), Title: "C", CategoryName: "Posters", S3Key: "resources/posters/c.png"},
	}}
	r := router(NewHandler(store, &memObjects{}, nil), authz.Subject{ID: uuid.New(), Role: authz.RoleActivist})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/resources", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []models.ResourceGroup `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, "Guides", body.Data[0].Category)
	assert.Len(t, body.Data[0].Resources, 2)
	assert.Equal(t, "Posters", body.Data[1].Category)
	assert.Equal(t, "https://files.example.org/resources/posters/c.png?sig=1", body.Data[1].Resources[0].DownloadURL)
}
