// Package notify tells share-link recipients about new links. Delivery
// (email, SMS) happens outside CloudVault; Dispatcher is the seam.
package notify

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cloudvault/internal/logging"
)

// ShareNotice is what a recipient needs to open a shared file.
type ShareNotice struct {
	Recipient string
	OwnerID   string
	FileName  string
	Token     string
	ExpiresAt *time.Time
}

type Dispatcher interface {
	NotifyShare(ctx context.Context, n ShareNotice) error
}

// LogDispatcher records notices in the service log.
type LogDispatcher struct {
	logger logging.Logger
}

func NewLogDispatcher(logger logging.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger.With("module", "notify")}
}

func (d *LogDispatcher) NotifyShare(ctx context.Context, n ShareNotice) error {
	d.logger.Info(ctx, "share link issued",
		"recipient", n.Recipient,
		"owner_id", n.OwnerID,
		"file_name", n.FileName,
		"expires_at", n.ExpiresAt,
	)
	return nil
}

// Nop drops every notice.
type Nop struct{}

func (Nop) NotifyShare(context.Context, ShareNotice) error { return nil }
