// Package events stores the append-only analytics event log.
package events

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cloudvault/internal/server/models"
)

// Filter narrows a Query. Zero values mean "no constraint"; Limit <= 0 is
// replaced by DefaultLimit.
type Filter struct {
	EventType models.EventType
	Start     *time.Time
	End       *time.Time
	Limit     int
}

const DefaultLimit = 100

type Repository interface {
	Insert(ctx context.Context, event *models.AnalyticsEvent) error
	// Query returns the user's events newest first.
	Query(ctx context.Context, userID string, filter Filter) ([]*models.AnalyticsEvent, error)
}
