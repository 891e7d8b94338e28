package services

import (
	"context"
	"maps"
	"strings"
	"time"

	"github.com/dmitrijs2005/cloudvault/internal/common"
	"github.com/dmitrijs2005/cloudvault/internal/logging"
	"github.com/dmitrijs2005/cloudvault/internal/server/config"
	"github.com/dmitrijs2005/cloudvault/internal/server/eventbus"
	"github.com/dmitrijs2005/cloudvault/internal/server/models"
	"github.com/dmitrijs2005/cloudvault/internal/server/repositories/events"
	"github.com/google/uuid"
)

const (
	// ReportEventWindow caps the events a report is computed from.
	ReportEventWindow = 1000
	// MaxQueryLimit caps QueryEvents.
	MaxQueryLimit = 1000
)

type EventFilter struct {
	EventType models.EventType
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
}

// AnalyticsService ingests events and computes reports from the raw log.
type AnalyticsService struct {
	store     events.Repository
	publisher eventbus.Publisher
	logger    logging.Logger
	bounds    bounds
	now       func() time.Time
}

var _ EventTracker = (*AnalyticsService)(nil)

// NewAnalyticsService reads from store and appends through publisher, which
// may deliver asynchronously.
func NewAnalyticsService(store events.Repository, publisher eventbus.Publisher, cfg *config.Config, logger logging.Logger) *AnalyticsService {
	return &AnalyticsService{
		store:     store,
		publisher: publisher,
		logger:    logger.With("module", "analytics"),
		bounds:    boundsFrom(cfg),
		now:       time.Now,
	}
}

// TrackEvent appends one event stamped with server time. eventData is not
// validated; a caller-supplied timestamp inside it is kept as is.
func (s *AnalyticsService) TrackEvent(ctx context.Context, userID string, eventType models.EventType, eventData map[string]any) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", common.Invalid("userId is required")
	}
	if strings.TrimSpace(string(eventType)) == "" {
		return "", common.Invalid("eventType is required")
	}

	data := make(map[string]any, len(eventData))
	maps.Copy(data, eventData)

	event := &models.AnalyticsEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		EventType: eventType,
		EventData: data,
		Timestamp: s.now().UTC(),
	}

	mctx, cancel := s.bounds.meta(ctx)
	defer cancel()
	if err := s.publisher.Publish(mctx, event); err != nil {
		return "", common.Dependency(err)
	}
	return event.ID, nil
}

// QueryEvents returns the user's events newest first.
func (s *AnalyticsService) QueryEvents(ctx context.Context, userID string, f EventFilter) ([]*models.AnalyticsEvent, error) {
	if f.Limit < 0 {
		return nil, common.Invalid("limit must not be negative")
	}
	if f.StartDate != nil && f.EndDate != nil && f.StartDate.After(*f.EndDate) {
		return nil, common.Invalid("startDate is after endDate")
	}
	limit := f.Limit
	if limit == 0 {
		limit = events.DefaultLimit
	}
	limit = min(limit, MaxQueryLimit)

	mctx, cancel := s.bounds.meta(ctx)
	defer cancel()

	out, err := s.store.Query(mctx, userID, events.Filter{
		EventType: f.EventType,
		Start:     f.StartDate,
		End:       f.EndDate,
		Limit:     limit,
	})
	if err != nil {
		return nil, common.Dependency(err)
	}
	if out == nil {
		out = []*models.AnalyticsEvent{}
	}
	return out, nil
}

// GenerateReport folds the newest ReportEventWindow events into a Report.
// Heavier accounts get an approximate report.
func (s *AnalyticsService) GenerateReport(ctx context.Context, userID string) (*Report, error) {
	evs, err := s.QueryEvents(ctx, userID, EventFilter{Limit: ReportEventWindow})
	if err != nil {
		return nil, err
	}
	return BuildReport(evs), nil
}
