package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/cloudvault/internal/common"
	"github.com/dmitrijs2005/cloudvault/internal/server/models"
	"github.com/dmitrijs2005/cloudvault/internal/server/repositories/events"
	"github.com/dmitrijs2005/cloudvault/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsers_StorageCounters(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	u, err := m.Users().Ensure(ctx, &models.User{ID: "u-1", Email: "a@example.com", StorageLimit: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(0), u.StorageUsed)

	used, err := m.Users().AddStorageUsed(ctx, "u-1", 30)
	require.NoError(t, err)
	assert.Equal(t, int64(30), used)

	used, err = m.Users().AddStorageUsed(ctx, "u-1", -100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), used, "clamped at zero")

	_, err = m.Users().ReserveStorage(ctx, "u-1", 101)
	assert.ErrorIs(t, err, common.ErrQuotaExceeded)
	used, err = m.Users().ReserveStorage(ctx, "u-1", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), used)

	// Ensure refreshes the profile but never the counters.
	u, err = m.Users().Ensure(ctx, &models.User{ID: "u-1", Email: "b@example.com", StorageLimit: 5})
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", u.Email)
	assert.Equal(t, int64(100), u.StorageUsed)
	assert.Equal(t, int64(100), u.StorageLimit)

	_, err = m.Users().AddStorageUsed(ctx, "ghost", 1)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFolders_OwnershipAndOrder(t *testing.T) {
	m := NewManager()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, m.Folders().Create(ctx, &models.Folder{ID: "a", UserID: "u-1", CreatedAt: now}))
	require.NoError(t, m.Folders().Create(ctx, &models.Folder{ID: "b", UserID: "u-1", CreatedAt: now}))
	parent := "a"
	require.NoError(t, m.Folders().Create(ctx, &models.Folder{ID: "c", UserID: "u-1", ParentID: &parent, CreatedAt: now}))
	require.NoError(t, m.Folders().Create(ctx, &models.Folder{ID: "d", UserID: "u-2", CreatedAt: now}))
	require.Error(t, m.Folders().Create(ctx, &models.Folder{ID: "a", UserID: "u-1"}))

	roots, err := m.Folders().ListByParent(ctx, "u-1", nil)
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, "b", roots[0].ID, "later insert first on equal timestamps")

	children, err := m.Folders().ListByParent(ctx, "u-1", &parent)
	require.NoError(t, err)
	require.Len(t, children, 1)

	_, err = m.Folders().GetByID(ctx, "u-2", "a")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, m.Folders().Delete(ctx, "u-2", "a"), common.ErrNotFound)
	require.NoError(t, m.Folders().Delete(ctx, "u-1", "a"))
	assert.ErrorIs(t, m.Folders().Delete(ctx, "u-1", "a"), common.ErrNotFound)

	all, err := m.Folders().ListByUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFiles_ReturnedValuesAreCopies(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	require.NoError(t, m.Files().Create(ctx, &models.File{ID: "f", UserID: "u-1", StorageKey: "k", Tags: []string{"x"}}))
	require.Error(t, m.Files().Create(ctx, &models.File{ID: "g", UserID: "u-1", StorageKey: "k"}))

	f, err := m.Files().GetByID(ctx, "u-1", "f")
	require.NoError(t, err)
	f.Tags[0] = "mutated"
	f.DownloadCount = 99

	again, err := m.Files().Find(ctx, "f")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, again.Tags)
	assert.Equal(t, int64(0), again.DownloadCount)

	at := time.Now()
	require.NoError(t, m.Files().RecordDownload(ctx, "f", at))
	again, _ = m.Files().Find(ctx, "f")
	assert.Equal(t, int64(1), again.DownloadCount)
	require.NotNil(t, again.LastAccessed)
	assert.True(t, again.LastAccessed.Equal(at))
}

func TestFiles_CreateRequiresOwnedFolder(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	folderID := "d-1"
	require.NoError(t, m.Folders().Create(ctx, &models.Folder{ID: folderID, UserID: "u-1"}))
	require.NoError(t, m.Folders().Lock(ctx, "u-1", folderID))
	assert.ErrorIs(t, m.Folders().Lock(ctx, "u-2", folderID), common.ErrNotFound)

	err := m.Files().Create(ctx, &models.File{ID: "f", UserID: "u-2", StorageKey: "k1", FolderID: &folderID})
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, m.Files().Create(ctx, &models.File{ID: "g", UserID: "u-1", StorageKey: "k2", FolderID: &folderID}))

	require.NoError(t, m.Folders().Delete(ctx, "u-1", folderID))
	assert.ErrorIs(t, m.Folders().Lock(ctx, "u-1", folderID), common.ErrNotFound)
	err = m.Files().Create(ctx, &models.File{ID: "h", UserID: "u-1", StorageKey: "k3", FolderID: &folderID})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFiles_DeleteDropsShareLinks(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	require.NoError(t, m.Files().Create(ctx, &models.File{ID: "f", UserID: "u-1", StorageKey: "k"}))
	require.NoError(t, m.ShareLinks().Create(ctx, &models.ShareLink{ID: "s", FileID: "f", UserID: "u-1", Token: "t", IsActive: true}))

	_, err := m.Files().Delete(ctx, "u-2", "f")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = m.Files().Delete(ctx, "u-1", "f")
	require.NoError(t, err)

	_, err = m.ShareLinks().GetByToken(ctx, "t")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestShareLinks_ConsumeBoundaries(t *testing.T) {
	m := NewManager()
	ctx := context.Background()
	now := time.Now()
	exp := now.Add(time.Hour)
	limit := int64(2)

	require.NoError(t, m.ShareLinks().Create(ctx, &models.ShareLink{
		ID: "s", FileID: "f", UserID: "u-1", Token: "t", ExpiresAt: &exp, DownloadLimit: &limit, IsActive: true,
	}))

	_, err := m.ShareLinks().Consume(ctx, "t", exp)
	assert.ErrorIs(t, err, common.ErrNotFound, "expiry instant itself is expired")

	l, err := m.ShareLinks().Consume(ctx, "t", exp.Add(-time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), l.DownloadCount)

	require.NoError(t, m.ShareLinks().Deactivate(ctx, "u-1", "s"))
	require.NoError(t, m.ShareLinks().Deactivate(ctx, "u-1", "s"))
	assert.ErrorIs(t, m.ShareLinks().Deactivate(ctx, "u-2", "s"), common.ErrNotFound)

	_, err = m.ShareLinks().Consume(ctx, "t", now)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = m.ShareLinks().Consume(ctx, "nope", now)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestShareLinks_ConcurrentConsumeHonoursLimit(t *testing.T) {
	m := NewManager()
	ctx := context.Background()
	limit := int64(3)
	require.NoError(t, m.ShareLinks().Create(ctx, &models.ShareLink{ID: "s", Token: "t", DownloadLimit: &limit, IsActive: true}))

	var ok atomic.Int64
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.ShareLinks().Consume(ctx, "t", time.Now()); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(3), ok.Load())
}

func TestEvents_QueryFilters(t *testing.T) {
	m := NewManager()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, typ := range []models.EventType{models.EventFileUpload, models.EventFileDownload, models.EventFileUpload} {
		require.NoError(t, m.Events().Insert(ctx, &models.AnalyticsEvent{
			ID: string(rune('a' + i)), UserID: "u-1", EventType: typ, Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	// redelivery is ignored
	require.NoError(t, m.Events().Insert(ctx, &models.AnalyticsEvent{ID: "a", UserID: "u-1", EventType: models.EventFileUpload, Timestamp: base}))
	require.NoError(t, m.Events().Insert(ctx, &models.AnalyticsEvent{ID: "z", UserID: "u-2", EventType: models.EventFileUpload, Timestamp: base}))

	all, err := m.Events().Query(ctx, "u-1", events.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)

	uploads, err := m.Events().Query(ctx, "u-1", events.Filter{EventType: models.EventFileUpload, Limit: 1})
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	assert.Equal(t, "c", uploads[0].ID)

	start, end := base.Add(30*time.Second), base.Add(90*time.Second)
	window, err := m.Events().Query(ctx, "u-1", events.Filter{Start: &start, End: &end})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "b", window[0].ID)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	m := NewManager()
	ctx := context.Background()
	_, err := m.Users().Ensure(ctx, &models.User{ID: "u-1", StorageLimit: 100})
	require.NoError(t, err)
	require.NoError(t, m.Files().Create(ctx, &models.File{ID: "old", UserID: "u-1", StorageKey: "old"}))

	boom := errors.New("boom")
	err = m.WithTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
		if err := repos.Files().Create(ctx, &models.File{ID: "new", UserID: "u-1", StorageKey: "new"}); err != nil {
			return err
		}
		if _, err := repos.Users().ReserveStorage(ctx, "u-1", 40); err != nil {
			return err
		}
		if _, err := repos.Files().Delete(ctx, "u-1", "old"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = m.Files().Find(ctx, "new")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = m.Files().Find(ctx, "old")
	assert.NoError(t, err)
	u, _ := m.Users().GetByID(ctx, "u-1")
	assert.Equal(t, int64(0), u.StorageUsed)
}

func TestWithTx_CommitsAndRollsBackOnPanic(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	require.NoError(t, m.WithTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
		return repos.Folders().Create(ctx, &models.Folder{ID: "kept", UserID: "u-1"})
	}))

	assert.Panics(t, func() {
		_ = m.WithTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
			_ = repos.Folders().Create(ctx, &models.Folder{ID: "lost", UserID: "u-1"})
			panic("kaput")
		})
	})

	_, err := m.Folders().GetByID(ctx, "u-1", "kept")
	assert.NoError(t, err)
	_, err = m.Folders().GetByID(ctx, "u-1", "lost")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.NoError(t, m.Ping(ctx))
	assert.NoError(t, m.RunMigrations(ctx))
}
