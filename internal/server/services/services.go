// Package services holds CloudVault's business logic: the folder hierarchy,
// the upload/download orchestrator, share links, usage analytics and user
// provisioning. Services are stateless; correctness under concurrency comes
// from the store-level atomic operations of the repositories.
package services

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/dmitrijs2005/cloudvault/internal/common"
	"github.com/dmitrijs2005/cloudvault/internal/logging"
	"github.com/dmitrijs2005/cloudvault/internal/server/config"
	"github.com/dmitrijs2005/cloudvault/internal/server/models"
	"github.com/dmitrijs2005/cloudvault/internal/server/repositories/users"
	"github.com/google/uuid"
)

// EventTracker records analytics events. AnalyticsService implements it.
type EventTracker interface {
	TrackEvent(ctx context.Context, userID string, eventType models.EventType, data map[string]any) (string, error)
}

// Item identifies one entity touched by a bulk operation.
type Item struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// ItemFailure is an Item that could not be processed.
type ItemFailure struct {
	Item
	Error string `json:"error"`
	Err   error  `json:"-"`
}

// DeleteResult reports every sub-operation of a bulk delete.
type DeleteResult struct {
	Succeeded []Item        `json:"succeeded"`
	Failed    []ItemFailure `json:"failed"`
}

func (r *DeleteResult) ok(kind, id, name string) {
	r.Succeeded = append(r.Succeeded, Item{Kind: kind, ID: id, Name: name})
}

func (r *DeleteResult) fail(kind, id, name string, err error) {
	r.Failed = append(r.Failed, ItemFailure{Item: Item{Kind: kind, ID: id, Name: name}, Error: err.Error(), Err: err})
}

const (
	kindFile   = "file"
	kindFolder = "folder"
)

// bounds applies the configured per-call timeouts.
type bounds struct {
	metadata time.Duration
	blob     time.Duration
}

func boundsFrom(cfg *config.Config) bounds {
	return bounds{metadata: cfg.MetadataTimeout, blob: cfg.BlobTimeout}
}

func (b bounds) meta(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, b.metadata)
}

func (b bounds) blobs(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, b.blob)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// validID reports whether id could name a stored entity. Malformed ids are
// answered with ErrNotFound without a store round trip.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func notFoundUnlessValid(id string) error {
	if !validID(id) {
		return common.ErrNotFound
	}
	return nil
}

// ensureAccount returns the user row, creating it with the default quota
// when the sign-in hook has not done so yet.
func ensureAccount(ctx context.Context, repo users.Repository, userID string, limit int64) (*models.User, error) {
	u, err := repo.GetByID(ctx, userID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, common.Dependency(err)
	}
	u, err = repo.Ensure(ctx, &models.User{ID: userID, StorageLimit: limit})
	if err != nil {
		return nil, common.Dependency(err)
	}
	return u, nil
}

// emit records an analytics event; failures are logged and swallowed.
func emit(ctx context.Context, tracker EventTracker, logger logging.Logger, userID string, t models.EventType, data map[string]any) {
	if tracker == nil {
		return
	}
	if _, err := tracker.TrackEvent(context.WithoutCancel(ctx), userID, t, data); err != nil {
		logger.Warn(ctx, "analytics event dropped", "event_type", t, "user_id", userID, "error", err)
	}
}

// cancelOnClose ties a blob stream to the timeout context it was opened
// with, releasing the context when the caller closes the body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// Download is an open file stream plus its metadata. Callers must close Body.
type Download struct {
	File        *models.File
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

func folderKey(userID, folderID string) string {
	return common.UserFilesPrefix + "/" + userID + "/folders/" + folderID + "/"
}

func thumbnailKey(key string) string {
	return key + ".thumb.jpg"
}
