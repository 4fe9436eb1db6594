// Package dashboard serves personal attendance statistics and the organiser summary.
package dashboard

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chapterhub/backend/internal/authz"
	"github.com/chapterhub/backend/internal/middleware"
	"github.com/chapterhub/backend/internal/models"
	"github.com/chapterhub/backend/pkg/response"
)

const (
	growthWindow   = 30 * 24 * time.Hour
	summaryLimit   = 10
	historyPreview = 5
)

// Attendance is a source of attended and upcoming items, one per content kind.
type Attendance interface {
	Attended(ctx context.Context, userID uuid.UUID) ([]models.AttendedEvent, error)
	UpcomingInChapters(ctx context.Context, chapterIDs, regionIDs []uuid.UUID, from time.Time, limit int) ([]models.Event, error)
}

// ChapterSource lists the chapters a user manages or belongs to.
type ChapterSource interface {
	ListManaged(ctx context.Context, user authz.Subject) ([]models.Chapter, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Chapter, error)
}

// UserSource loads accounts.
type UserSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// RegionReach resolves the regions a user reaches through their role.
type RegionReach interface {
	ImplicitRegionIDs(ctx context.Context, user authz.Subject) (authz.IDSet, error)
}

// SummaryStore runs the organiser aggregates.
type SummaryStore interface {
	PendingJoinRequests(ctx context.Context, chapterIDs []uuid.UUID, limit int) ([]models.JoinRequest, error)
	MemberTotals(ctx context.Context, chapterIDs []uuid.UUID, since time.Time) (total, joined int, err error)
}

// StatsResponse is the JSON shape of GET /dashboard/stats.
type StatsResponse struct {
	EventsAttended    int                    `json:"events_attended"`
	TrainingsAttended int                    `json:"trainings_attended"`
	TotalHours        float64                `json:"total_hours"`
	Recent            []models.AttendedEvent `json:"recent"`
}

// OrganizerSummary is the JSON shape of GET /dashboard/organizer-summary.
type OrganizerSummary struct {
	ManagedChapters int                  `json:"managed_chapters"`
	TotalMembers    int                  `json:"total_members"`
	NewMembers30d   int                  `json:"new_members_30d"`
	GrowthPercent   float64              `json:"growth_percent"`
	PendingRequests []models.JoinRequest `json:"pending_requests"`
	UpcomingEvents  []models.Event       `json:"upcoming_events"`
}

// ProfileResponse is the JSON shape of GET /profile/me.
type ProfileResponse struct {
	User       models.UserPublic      `json:"user"`
	Chapters   []models.Chapter       `json:"chapters"`
	TotalHours float64                `json:"total_hours"`
	Events     []models.AttendedEvent `json:"events"`
	Trainings  []models.AttendedEvent `json:"trainings"`
}

// Handler handles dashboard HTTP endpoints.
type Handler struct {
	events    Attendance
	trainings Attendance
	chapters  ChapterSource
	reach     RegionReach
	store     SummaryStore
	users     UserSource
	logger    *zap.Logger
	now       func() time.Time
}

// NewHandler creates a dashboard handler.
func NewHandler(events, trainings Attendance, chapters ChapterSource, reach RegionReach, store SummaryStore, users UserSource, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		events:    events,
		trainings: trainings,
		chapters:  chapters,
		reach:     reach,
		store:     store,
		users:     users,
		logger:    logger,
		now:       time.Now,
	}
}

func totalHours(lists ...[]models.AttendedEvent) float64 {
	var h float64
	for _, l := range lists {
		for _, a := range l {
			h += a.Hours()
		}
	}
	return math.Round(h*10) / 10
}

func (h *Handler) attendance(ctx context.Context, userID uuid.UUID) (events, trainings []models.AttendedEvent, err error) {
	if events, err = h.events.Attended(ctx, userID); err != nil {
		return nil, nil, err
	}
	if trainings, err = h.trainings.Attended(ctx, userID); err != nil {
		return nil, nil, err
	}
	if events == nil {
		events = []models.AttendedEvent{}
	}
	if trainings == nil {
		trainings = []models.AttendedEvent{}
	}
	return events, trainings, nil
}

// Stats handles GET /dashboard/stats.
func (h *Handler) Stats(c *gin.Context) {
	user := middleware.Principal(c)
	events, trainings, err := h.attendance(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("load attendance failed", zap.Error(err), zap.String("user_id", user.ID.String()))
		response.Internal(c, "failed to load stats")
		return
	}

	recent := append(append([]models.AttendedEvent{}, events...), trainings...)
	sort.Slice(recent, func(i, j int) bool { return recent[i].StartTime.After(recent[j].StartTime) })
	if len(recent) > historyPreview {
		recent = recent[:historyPreview]
	}
	response.OK(c, StatsResponse{
		EventsAttended:    len(events),
		TrainingsAttended: len(trainings),
		TotalHours:        totalHours(events, trainings),
		Recent:            recent,
	})
}

// OrganizerSummary handles GET /dashboard/organizer-summary. Route middleware limits it to
// organisers and Co-founders.
func (h *Handler) OrganizerSummary(c *gin.Context) {
	ctx := c.Request.Context()
	user := middleware.Principal(c)

	managed, err := h.chapters.ListManaged(ctx, user)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	chapterIDs := make([]uuid.UUID, 0, len(managed))
	for _, ch := range managed {
		chapterIDs = append(chapterIDs, ch.ID)
	}
	regions, err := h.reach.ImplicitRegionIDs(ctx, user)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}

	now := h.now()
	out := OrganizerSummary{ManagedChapters: len(managed)}
	if out.PendingRequests, err = h.store.PendingJoinRequests(ctx, chapterIDs, summaryLimit); err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	if out.UpcomingEvents, err = h.events.UpcomingInChapters(ctx, chapterIDs, regions.Slice(), now, summaryLimit); err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	if out.UpcomingEvents == nil {
		out.UpcomingEvents = []models.Event{}
	}
	if out.TotalMembers, out.NewMembers30d, err = h.store.MemberTotals(ctx, chapterIDs, now.Add(-growthWindow)); err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	out.GrowthPercent = growth(out.TotalMembers, out.NewMembers30d)
	response.OK(c, out)
}

// growth is the share of the current membership that joined within the window, relative to
// the membership before it.
func growth(total, joined int) float64 {
	before := total - joined
	if before <= 0 {
		if joined > 0 {
			return 100
		}
		return 0
	}
	return math.Round(float64(joined)/float64(before)*1000) / 10
}

// Profile handles GET /profile/me.
func (h *Handler) Profile(c *gin.Context) {
	ctx := c.Request.Context()
	id := middleware.Principal(c).ID
	u, err := h.users.GetByID(ctx, id)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	chapters, err := h.chapters.ListForUser(ctx, id)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	events, trainings, err := h.attendance(ctx, id)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	response.OK(c, ProfileResponse{
		User:       u.ToPublic(),
		Chapters:   chapters,
		TotalHours: totalHours(events, trainings),
		Events:     events,
		Trainings:  trainings,
	})
}

// Routes registers dashboard routes on g.
func (h *Handler) Routes(g *gin.RouterGroup) {
	g.GET("/dashboard/stats", h.Stats)
	g.GET("/dashboard/organizer-summary",
		middleware.RequireRole(authz.RoleCofounder, authz.RoleRegionalOrganiser, authz.RoleCityOrganiser),
		h.OrganizerSummary)
	g.GET("/profile/me", h.Profile)
}
