// Package eventbus moves analytics events from the services to the event
// store, either in-process or through Kafka.
package eventbus

import (
	"context"

	"github.com/dmitrijs2005/cloudvault/internal/server/metrics"
	"github.com/dmitrijs2005/cloudvault/internal/server/models"
	"github.com/dmitrijs2005/cloudvault/internal/server/repositories/events"
)

type Publisher interface {
	Publish(ctx context.Context, event *models.AnalyticsEvent) error
	Close() error
}

// Direct writes events straight into the store. It is used when no brokers
// are configured.
type Direct struct {
	store events.Repository
}

var _ Publisher = (*Direct)(nil)

func NewDirect(store events.Repository) *Direct {
	return &Direct{store: store}
}

func (d *Direct) Publish(ctx context.Context, event *models.AnalyticsEvent) error {
	err := d.store.Insert(ctx, event)
	observe(err)
	return err
}

func (d *Direct) Close() error { return nil }

func observe(err error) {
	if err != nil {
		metrics.EventsPublishedTotal.WithLabelValues("error").Inc()
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues("ok").Inc()
}
