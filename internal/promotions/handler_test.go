package promotions

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapterhub/backend/internal/activity"
	"github.com/chapterhub/backend/internal/authz"
	"github.com/chapterhub/backend/internal/middleware"
	"github.com/chapterhub/backend/pkg/queue"
	"github.com/chapterhub/backend/pkg/response"
)

type fakePromoter struct {
	got authz.PromotionRequest
	err error
}

func (f *fakePromoter) Promote(_ context.Context, req authz.PromotionRequest) (*authz.Promotion, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &authz.Promotion{UserID: req.TargetUserID, PreviousRole: authz.RoleActivist, Role: req.NewRole, ChapterID: req.TargetID}, nil
}

type capture struct{ jobs []queue.ActivityPayload }

func (c *capture) EnqueueActivity(_ context.Context, p queue.ActivityPayload) error {
	c.jobs = append(c.jobs, p)
	return nil
}

func newRouter(p Promoter, q *capture, manager authz.Subject) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(p, activity.NewRecorder(q, nil), nil)
	r.POST("/promote/:userId", func(c *gin.Context) {
		c.Set(middleware.ContextPrincipal, manager)
		c.Next()
	}, h.Promote)
	return r
}

func post(r *gin.Engine, path string, body any) (*httptest.ResponseRecorder, response.Body) {
	raw, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	var out response.Body
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestPromote(t *testing.T) {
	manager := authz.Subject{ID: uuid.New(), Role: authz.RoleCofounder}
	target, chapter := uuid.New(), uuid.New()
	p := &fakePromoter{}
	q := &capture{}
	r := newRouter(p, q, manager)

	w, body := post(r, "/promote/"+target.String(), map[string]any{"new_role": "city_organiser", "target_id": chapter})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, body.Success)
	assert.Equal(t, manager.ID, p.got.ManagerID)
	assert.Equal(t, target, p.got.TargetUserID)
	assert.Equal(t, authz.RoleCityOrganiser, p.got.NewRole)
	assert.Equal(t, &chapter, p.got.TargetID)

	require.Len(t, q.jobs, 1)
	assert.Equal(t, "promotion", q.jobs[0].Kind)
	assert.Equal(t, "CITY_ORGANISER", q.jobs[0].Detail["to"])
}

func TestPromote_Errors(t *testing.T) {
	manager := authz.Subject{ID: uuid.New(), Role: authz.RoleRegionalOrganiser}
	target := uuid.New().String()

	t.Run("bad role", func(t *testing.T) {
		w, _ := post(newRouter(&fakePromoter{}, &capture{}, manager), "/promote/"+target, map[string]any{"new_role": "EMPEROR"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
	t.Run("bad user id", func(t *testing.T) {
		w, _ := post(newRouter(&fakePromoter{}, &capture{}, manager), "/promote/xyz", map[string]any{"new_role": "ACTIVIST"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
	t.Run("guard", func(t *testing.T) {
		q := &capture{}
		p := &fakePromoter{err: &authz.GuardError{Reason: "Regional Organisers can only promote Activists to City Organisers."}}
		w, body := post(newRouter(p, q, manager), "/promote/"+target, map[string]any{"new_role": "CITY_ORGANISER"})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "Regional Organisers can only promote Activists to City Organisers.", body.Error)
		assert.Empty(t, q.jobs, "failed promotions are not recorded")
	})
	t.Run("missing region", func(t *testing.T) {
		p := &fakePromoter{err: authz.ErrMissingTarget}
		w, _ := post(newRouter(p, &capture{}, manager), "/promote/"+target, map[string]any{"new_role": "REGIONAL_ORGANISER"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
	t.Run("unknown user", func(t *testing.T) {
		p := &fakePromoter{err: authz.ErrTargetNotFound}
		w, _ := post(newRouter(p, &capture{}, manager), "/promote/"+target, map[string]any{"new_role": "CITY_ORGANISER"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
