// Package sharelinks persists share links and performs the single-statement
// consumption that keeps download limits exact under concurrency.
package sharelinks

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cloudvault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, link *models.ShareLink) error
	GetByID(ctx context.Context, userID, id string) (*models.ShareLink, error)
	GetByToken(ctx context.Context, token string) (*models.ShareLink, error)
	// Consume increments download_count iff the link is active, now is
	// strictly before expires_at and the limit is not yet reached. Any
	// failed condition yields common.ErrNotFound.
	Consume(ctx context.Context, token string, now time.Time) (*models.ShareLink, error)
	// Deactivate is idempotent; it fails only when the link is not the user's.
	Deactivate(ctx context.Context, userID, id string) error
	ListByFile(ctx context.Context, userID, fileID string) ([]*models.ShareLink, error)
}
