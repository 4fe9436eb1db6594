package comments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapterhub/backend/internal/authz"
	"github.com/chapterhub/backend/internal/middleware"
	"github.com/chapterhub/backend/internal/models"
)

// chapterRegions is an authz.Directory knowing only which region each chapter sits in.
type chapterRegions map[uuid.UUID]*uuid.UUID

func (d chapterRegions) ChapterRegion(_ context.Context, id uuid.UUID) (*uuid.UUID, error) {
	r, ok := d[id]
	if !ok {
		return nil, authz.ErrTargetNotFound
	}
	return r, nil
}

func (chapterRegions) MembershipRole(context.Context, uuid.UUID, uuid.UUID) (authz.MembershipRole, error) {
	return "", authz.ErrTargetNotFound
}

func (chapterRegions) Memberships(context.Context, uuid.UUID) ([]authz.MembershipRef, error) {
	return nil, nil
}

func (chapterRegions) RegionIDs(context.Context) ([]uuid.UUID, error) { return nil, nil }

func (chapterRegions) RegionExists(context.Context, uuid.UUID) (bool, error) { return true, nil }

type memStore struct {
	comments []models.Comment
}

func (m *memStore) Create(_ context.Context, cm *models.Comment) error {
	cm.ID = uuid.New()
	m.comments = append(m.comments, *cm)
	return nil
}

func (m *memStore) ListForEvent(_ context.Context, id uuid.UUID) ([]models.Comment, error) {
	var out []models.Comment
	for _, cm := range m.comments {
		if cm.EventID != nil && *cm.EventID == id {
			out = append(out, cm)
		}
	}
	return out, nil
}

func (m *memStore) ListForAnnouncement(_ context.Context, id uuid.UUID) ([]models.Comment, error) {
	var out []models.Comment
	for _, cm := range m.comments {
		if cm.AnnouncementID != nil && *cm.AnnouncementID == id {
			out = append(out, cm)
		}
	}
	return out, nil
}

func asUser(h *Handler, user authz.Subject) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextPrincipal, user)
		c.Next()
	})
	r.POST("/comments", h.Create)
	r.GET("/comments", h.List)
	return r
}

type fixedVisibility authz.Visibility

func (v fixedVisibility) Visibility(context.Context, authz.Subject) (authz.Visibility, error) {
	return authz.Visibility(v), nil
}

func loader(items ...authz.Content) middleware.ContentLoader {
	return func(_ context.Context, id uuid.UUID) (authz.Content, error) {
		for _, it := range items {
			if it.ID == id {
				return it, nil
			}
		}
		return authz.Content{}, authz.ErrTargetNotFound
	}
}

func TestCreate_Validation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	madrid, paris := uuid.New(), uuid.New()
	visibleEvent := authz.Content{ID: uuid.New(), Scope: authz.ScopeCity, ChapterID: &madrid}
	hiddenEvent := authz.Content{ID: uuid.New(), Scope: authz.ScopeCity, ChapterID: &paris}
	announcement := authz.Content{ID: uuid.New(), Scope: authz.ScopeGlobal}

	vis := fixedVisibility{ChapterIDs: authz.NewIDSet(madrid)}
	eval := authz.NewEvaluator(chapterRegions{madrid: nil, paris: nil})
	h := NewHandler(&memStore{}, eval, loader(visibleEvent, hiddenEvent), loader(announcement), vis, nil)
	r := asUser(h, authz.Subject{ID: uuid.New(), Role: authz.RoleActivist})

	post := func(body string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/comments", strings.NewReader(body)))
		return w.Code
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty content", `{"content":"  ","event_id":"` + visibleEvent.ID.String() + `"}`, http.StatusBadRequest},
		{"no target", `{"content":"hi"}`, http.StatusBadRequest},
		{"two targets", `{"content":"hi","event_id":"` + visibleEvent.ID.String() + `","announcement_id":"` + announcement.ID.String() + `"}`, http.StatusBadRequest},
		{"unknown event", `{"content":"hi","event_id":"` + uuid.NewString() + `"}`, http.StatusNotFound},
		{"event outside reach", `{"content":"hi","event_id":"` + hiddenEvent.ID.String() + `"}`, http.StatusNotFound},
		{"malformed", `{"content":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, post(tt.body))
		})
	}

	t.Run("list rejects bad id", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/comments?event_id=nope", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCreate_AuthorAndModifierReachHiddenEvent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	spain := uuid.New()
	madrid := uuid.New()
	eval := authz.NewEvaluator(chapterRegions{madrid: &spain})

	cofounder := authz.Subject{ID: uuid.New(), Role: authz.RoleCofounder}
	roSpain := authz.Subject{ID: uuid.New(), Role: authz.RoleRegionalOrganiser, ManagedRegionID: &spain}
	cityOrg := authz.Subject{ID: uuid.New(), Role: authz.RoleCityOrganiser}
	activist := authz.Subject{ID: uuid.New(), Role: authz.RoleActivist}

	byCofounder := authz.Content{ID: uuid.New(), Scope: authz.ScopeCity, ChapterID: &madrid, AuthorID: cofounder.ID, AuthorRole: authz.RoleCofounder}
	byCityOrg := authz.Content{ID: uuid.New(), Scope: authz.ScopeCity, ChapterID: &madrid, AuthorID: cityOrg.ID, AuthorRole: authz.RoleCityOrganiser}

	// Nobody here is a member of madrid, so listings would hide both events.
	store := &memStore{}
	h := NewHandler(store, eval, loader(byCofounder, byCityOrg), loader(), fixedVisibility{}, nil)

	tests := []struct {
		name  string
		user  authz.Subject
		event authz.Content
		want  int
	}{
		{"author outside the chapter", cofounder, byCofounder, http.StatusCreated},
		{"regional organiser who may modify", roSpain, byCityOrg, http.StatusCreated},
		{"cofounder who may modify", cofounder, byCityOrg, http.StatusCreated},
		{"regional organiser on locked item", roSpain, byCofounder, http.StatusNotFound},
		{"activist outside the chapter", activist, byCityOrg, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			body := `{"content":"see you there","event_id":"` + tt.event.ID.String() + `"}`
			asUser(h, tt.user).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/comments", strings.NewReader(body)))
			assert.Equal(t, tt.want, w.Code)
		})
	}

	w := httptest.NewRecorder()
	asUser(h, cofounder).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/comments?event_id="+byCityOrg.ID.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "see you there")
	assert.Len(t, store.comments, 3)
}
