package memory

import (
	"context"
	"slices"

	"github.com/dmitrijs2005/cloudvault/internal/server/models"
	"github.com/dmitrijs2005/cloudvault/internal/server/repositories/events"
)

type eventRepo struct {
	s    *store
	undo *undoLog
}

func (r *eventRepo) Insert(_ context.Context, event *models.AnalyticsEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	// Redelivered events are ignored, matching ON CONFLICT DO NOTHING.
	if _, seen := r.s.seqs[event.ID]; seen && event.ID != "" {
		return nil
	}
	r.s.events = append(r.s.events, cloneEvent(event))
	r.s.nextSeq(event.ID)
	id := event.ID
	r.undo.push(func(s *store) {
		s.events = slices.DeleteFunc(s.events, func(e *models.AnalyticsEvent) bool { return e.ID == id })
		delete(s.seqs, id)
	})
	return nil
}

func (r *eventRepo) Query(_ context.Context, userID string, filter events.Filter) ([]*models.AnalyticsEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = events.DefaultLimit
	}

	result := []*models.AnalyticsEvent{}
	for _, e := range r.s.events {
		if e.UserID != userID {
			continue
		}
		if filter.EventType != "" && e.EventType != filter.EventType {
			continue
		}
		if filter.Start != nil && e.Timestamp.Before(*filter.Start) {
			continue
		}
		if filter.End != nil && e.Timestamp.After(*filter.End) {
			continue
		}
		result = append(result, cloneEvent(e))
	}

	// r.s.events is in insertion order, so reversing before a stable sort on
	// timestamp yields newest first with later inserts winning ties.
	slices.Reverse(result)
	slices.SortStableFunc(result, func(a, b *models.AnalyticsEvent) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
