// Package files persists file metadata. Blob bytes live in the blob store
// under File.StorageKey.
package files

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cloudvault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, file *models.File) error
	// GetByID is owner-scoped.
	GetByID(ctx context.Context, userID, id string) (*models.File, error)
	// Find looks a file up without an owner, for share-link delivery.
	Find(ctx context.Context, id string) (*models.File, error)
	// ListByFolder returns files newest first; a nil folderID lists every
	// file of the user.
	ListByFolder(ctx context.Context, userID string, folderID *string) ([]*models.File, error)
	// RecordDownload bumps download_count and sets last_accessed in one statement.
	RecordDownload(ctx context.Context, id string, at time.Time) error
	// Delete removes the record and returns what was removed, so exactly one
	// of two racing deletes sees the row.
	Delete(ctx context.Context, userID, id string) (*models.File, error)
}
