package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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

type attendance struct {
	attended []models.AttendedEvent
	upcoming []models.Event
	gotChap  []uuid.UUID
	gotReg   []uuid.UUID
}

func (a *attendance) Attended(context.Context, uuid.UUID) ([]models.AttendedEvent, error) {
	return a.attended, nil
}

func (a *attendance) UpcomingInChapters(_ context.Context, chapterIDs, regionIDs []uuid.UUID, _ time.Time, _ int) ([]models.Event, error) {
	a.gotChap, a.gotReg = chapterIDs, regionIDs
	return a.upcoming, nil
}

type chapterSource []models.Chapter

func (c chapterSource) ListManaged(context.Context, authz.Subject) ([]models.Chapter, error) {
	return c, nil
}

func (c chapterSource) ListForUser(context.Context, uuid.UUID) ([]models.Chapter, error) {
	return c, nil
}

type reach authz.IDSet

func (r reach) ImplicitRegionIDs(context.Context, authz.Subject) (authz.IDSet, error) {
	return authz.IDSet(r), nil
}

type store struct{ total, joined int }

func (s store) PendingJoinRequests(_ context.Context, chapterIDs []uuid.UUID, _ int) ([]models.JoinRequest, error) {
	out := []models.JoinRequest{}
	for _, id := range chapterIDs {
		out = append(out, models.JoinRequest{ID: uuid.New(), ChapterID: id, Status: models.JoinRequestStatusPending})
	}
	return out, nil
}

func (s store) MemberTotals(context.Context, []uuid.UUID, time.Time) (int, int, error) {
	return s.total, s.joined, nil
}

type users map[uuid.UUID]*models.User

func (u users) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if v, ok := u[id]; ok {
		return v, nil
	}
	return nil, authz.ErrTargetNotFound
}

func hoursFrom(start time.Time, h int) models.AttendedEvent {
	return models.AttendedEvent{ID: uuid.New(), StartTime: start, EndTime: start.Add(time.Duration(h) * time.Hour)}
}

func router(h *Handler, user authz.Subject) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextPrincipal, user)
		c.Next()
	})
	h.Routes(r.Group(""))
	return r
}

func get(r *gin.Engine, path string, out any) int {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil {
		_ = json.Unmarshal(w.Body.Bytes(), &struct {
			Data any `json:"data"`
		}{Data: out})
	}
	return w.Code
}

func TestStats(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	events := &attendance{attended: []models.AttendedEvent{hoursFrom(base, 2), hoursFrom(base.Add(24*time.Hour), 3)}}
	trainings := &attendance{attended: []models.AttendedEvent{hoursFrom(base.Add(48*time.Hour), 1)}}
	h := NewHandler(events, trainings, chapterSource{}, reach{}, store{}, users{}, nil)

	var got StatsResponse
	code := get(router(h, authz.Subject{ID: uuid.New(), Role: authz.RoleActivist}), "/dashboard/stats", &got)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, got.EventsAttended)
	assert.Equal(t, 1, got.TrainingsAttended)
	assert.InDelta(t, 6.0, got.TotalHours, 0.001)
	require.Len(t, got.Recent, 3)
	assert.Equal(t, trainings.attended[0].ID, got.Recent[0].ID, "newest first")
}

func TestOrganizerSummary(t *testing.T) {
	region := uuid.New()
	managed := chapterSource{{ID: uuid.New(), Name: "Madrid"}, {ID: uuid.New(), Name: "Sevilla"}}
	events := &attendance{}
	h := NewHandler(events, &attendance{}, managed, reach(authz.NewIDSet(region)), store{total: 15, joined: 5}, users{}, nil)
	ro := authz.Subject{ID: uuid.New(), Role: authz.RoleRegionalOrganiser, ManagedRegionID: &region}

	var got OrganizerSummary
	code := get(router(h, ro), "/dashboard/organizer-summary", &got)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, got.ManagedChapters)
	assert.Len(t, got.PendingRequests, 2)
	assert.Equal(t, 15, got.TotalMembers)
	assert.Equal(t, 5, got.NewMembers30d)
	assert.InDelta(t, 50.0, got.GrowthPercent, 0.001)
	assert.NotNil(t, got.UpcomingEvents)
	assert.ElementsMatch(t, []uuid.UUID{managed[0].ID, managed[1].ID}, events.gotChap)
	assert.Equal(t, []uuid.UUID{region}, events.gotReg)

	code = get(router(h, authz.Subject{ID: uuid.New(), Role: authz.RoleActivist}), "/dashboard/organizer-summary", nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestGrowth(t *testing.T) {
	assert.Equal(t, 0.0, growth(0, 0))
	assert.Equal(t, 100.0, growth(3, 3))
	assert.Equal(t, 25.0, growth(5, 1))
}

func TestProfile(t *testing.T) {
	u := &models.User{ID: uuid.New(), Name: "Ana", Email: "ana@example.org", Role: authz.RoleActivist}
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	events := &attendance{attended: []models.AttendedEvent{hoursFrom(base, 2)}}
	h := NewHandler(events, &attendance{}, chapterSource{{ID: uuid.New(), Name: "Madrid"}}, reach{}, store{}, users{u.ID: u}, nil)

	var got ProfileResponse
	code := get(router(h, u.Subject()), "/profile/me", &got)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Ana", got.User.Name)
	assert.Len(t, got.Chapters, 1)
	assert.Len(t, got.Events, 1)
	assert.Empty(t, got.Trainings)
	assert.InDelta(t, 2.0, got.TotalHours, 0.001)

	code = get(router(h, authz.Subject{ID: uuid.New(), Role: authz.RoleActivist}), "/profile/me", nil)
	assert.Equal(t, http.StatusNotFound, code)
}
