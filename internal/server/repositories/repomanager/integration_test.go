//go:build integration

package repomanager

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dmitrijs2005/cloudvault/internal/common"
	"github.com/dmitrijs2005/cloudvault/internal/server/models"
	"github.com/dmitrijs2005/cloudvault/internal/server/repositories/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts PostgreSQL in a container and returns a migrated manager.
func setupPostgres(t *testing.T) RepositoryManager {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("TEST_INTEGRATION not set")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("cloudvault_test"),
		postgres.WithUsername("cloudvault"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m, err := NewPostgresRepositoryManager(db)
	require.NoError(t, err)
	require.NoError(t, m.RunMigrations(ctx))
	return m
}

func TestPostgres_EndToEnd(t *testing.T) {
	m := setupPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	u, err := m.Users().Ensure(ctx, &models.User{ID: "u-1", Email: "a@example.com", StorageLimit: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(0), u.StorageUsed)

	used, err := m.Users().ReserveStorage(ctx, "u-1", 60)
	require.NoError(t, err)
	assert.Equal(t, int64(60), used)
	_, err = m.Users().ReserveStorage(ctx, "u-1", 41)
	assert.ErrorIs(t, err, common.ErrQuotaExceeded)
	used, err = m.Users().AddStorageUsed(ctx, "u-1", -1000)
	require.NoError(t, err)
	assert.Equal(t, int64(0), used)

	folder := &models.Folder{
		ID: uuid.NewString(), Name: "Docs", UserID: "u-1", AllowedFileTypes: []string{models.AllFileTypes},
		Confidentiality: models.ConfidentialityInternal, Importance: models.ImportanceMedium, AllowSharing: true,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, m.Folders().Create(ctx, folder))
	roots, err := m.Folders().ListByParent(ctx, "u-1", nil)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, []string{"all"}, roots[0].AllowedFileTypes)

	file := &models.File{
		ID: uuid.NewString(), Name: "a.txt", Type: "text/plain", Size: 5, StorageKey: "user-files/u-1/a.txt_x",
		FolderID: &folder.ID, UserID: "u-1", Tags: []string{"t"}, Confidentiality: models.ConfidentialityInternal,
		Importance: models.ImportanceMedium, AllowSharing: true, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, m.Files().Create(ctx, file))

	limit := int64(1)
	link := &models.ShareLink{
		ID: uuid.NewString(), FileID: file.ID, UserID: "u-1", Token: "tok", DownloadLimit: &limit,
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, m.ShareLinks().Create(ctx, link))

	consumed, err := m.ShareLinks().Consume(ctx, "tok", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), consumed.DownloadCount)
	_, err = m.ShareLinks().Consume(ctx, "tok", time.Now())
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, m.Events().Insert(ctx, &models.AnalyticsEvent{
		ID: uuid.NewString(), UserID: "u-1", EventType: models.EventFileUpload,
		EventData: map[string]any{"fileSize": 5}, Timestamp: now,
	}))
	evs, err := m.Events().Query(ctx, "u-1", events.Filter{})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.EqualValues(t, 5, evs[0].EventData["fileSize"])

	err = m.WithTx(ctx, func(ctx context.Context, repos Repositories) error {
		if _, err := repos.Files().Delete(ctx, "u-1", file.ID); err != nil {
			return err
		}
		return common.ErrForbidden
	})
	require.ErrorIs(t, err, common.ErrForbidden)
	_, err = m.Files().GetByID(ctx, "u-1", file.ID)
	require.NoError(t, err, "rolled back delete must leave the file in place")
}
