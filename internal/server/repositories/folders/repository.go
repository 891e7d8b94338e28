// Package folders persists the folder tree. Every query is scoped by owner so
// a foreign folder is indistinguishable from a missing one.
package folders

import (
	"context"

	"github.com/dmitrijs2005/cloudvault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, folder *models.Folder) error
	GetByID(ctx context.Context, userID, id string) (*models.Folder, error)
	// ListByParent returns one level of the tree, newest first. A nil
	// parentID lists root folders.
	ListByParent(ctx context.Context, userID string, parentID *string) ([]*models.Folder, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Folder, error)
	// Lock reports common.ErrNotFound for a missing folder and otherwise
	// keeps it from being deleted until the surrounding transaction ends.
	Lock(ctx context.Context, userID, id string) error
	// Delete removes the record and reports common.ErrNotFound when no row
	// matched, which is how a concurrent second delete loses.
	Delete(ctx context.Context, userID, id string) error
}
