// Package users persists CloudVault accounts and their storage counters.
package users

import (
	"context"

	"github.com/dmitrijs2005/cloudvault/internal/server/models"
)

type Repository interface {
	// Ensure inserts the user if absent and refreshes profile fields otherwise.
	// Storage counters are never touched by Ensure.
	Ensure(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// AddStorageUsed applies delta atomically and clamps the result at zero.
	AddStorageUsed(ctx context.Context, id string, delta int64) (int64, error)
	// ReserveStorage adds delta only if the result stays within storage_limit.
	// It returns common.ErrQuotaExceeded when the condition fails.
	ReserveStorage(ctx context.Context, id string, delta int64) (int64, error)
}
