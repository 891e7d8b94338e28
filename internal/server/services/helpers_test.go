package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/cloudvault/internal/logging"
	"github.com/dmitrijs2005/cloudvault/internal/server/blobstore"
	"github.com/dmitrijs2005/cloudvault/internal/server/config"
	"github.com/dmitrijs2005/cloudvault/internal/server/eventbus"
	"github.com/dmitrijs2005/cloudvault/internal/server/models"
	"github.com/dmitrijs2005/cloudvault/internal/server/notify"
	"github.com/dmitrijs2005/cloudvault/internal/server/repositories/files"
	"github.com/dmitrijs2005/cloudvault/internal/server/repositories/memory"
	"github.com/dmitrijs2005/cloudvault/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/require"
)

const (
	alice = "user-alice"
	bob   = "user-bob"
)

type fixture struct {
	cfg       *config.Config
	repos     repomanager.RepositoryManager
	mem       *memory.Manager
	blobs     *flakyBlobs
	notices   *recordingDispatcher
	analytics *AnalyticsService
	folders   *FolderService
	files     *FileService
	shares    *ShareService
	users     *UserService
}

type fixtureOption func(*fixture)

func withConfig(fn func(*config.Config)) fixtureOption {
	return func(f *fixture) { fn(f.cfg) }
}

// withRepos swaps the metadata store, e.g. for a fault-injecting wrapper.
func withRepos(wrap func(*memory.Manager) repomanager.RepositoryManager) fixtureOption {
	return func(f *fixture) { f.repos = wrap(f.mem) }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()

	mem := memory.NewManager()
	f := &fixture{
		cfg:     cfg,
		mem:     mem,
		repos:   mem,
		blobs:   newFlakyBlobs(),
		notices: &recordingDispatcher{},
	}
	for _, o := range opts {
		o(f)
	}

	log := logging.Nop{}
	f.analytics = NewAnalyticsService(f.repos.Events(), eventbus.NewDirect(f.repos.Events()), cfg, log)
	f.folders = NewFolderService(f.repos, f.blobs, f.analytics, cfg, log)
	f.files = NewFileService(f.repos, f.blobs, f.analytics, nil, cfg, log)
	f.shares = NewShareService(f.repos, f.blobs, f.notices, f.analytics, cfg, log)
	f.users = NewUserService(f.repos, cfg, log)
	return f
}

func (f *fixture) mustFolder(t *testing.T, userID, name string, parentID *string) *models.Folder {
	t.Helper()
	folder, err := f.folders.CreateFolder(t.Context(), userID, CreateFolderInput{Name: name, ParentID: parentID})
	require.NoError(t, err)
	return folder
}

func (f *fixture) mustUpload(t *testing.T, userID, name string, data []byte, folderID *string) *models.File {
	t.Helper()
	res, err := f.files.Upload(t.Context(), userID, UploadInput{Data: data, FileName: name, FolderID: folderID})
	require.NoError(t, err)
	return res.File
}

func (f *fixture) storageUsed(t *testing.T, userID string) int64 {
	t.Helper()
	u, err := f.repos.Users().GetByID(t.Context(), userID)
	require.NoError(t, err)
	return u.StorageUsed
}

func (f *fixture) blobExists(t *testing.T, key string) bool {
	t.Helper()
	obj, err := f.blobs.Get(t.Context(), key)
	if err != nil {
		return false
	}
	_ = obj.Body.Close()
	return true
}

func readAll(t *testing.T, d *Download) []byte {
	t.Helper()
	defer d.Body.Close()
	b, err := io.ReadAll(d.Body)
	require.NoError(t, err)
	return b
}

func ptr[T any](v T) *T { return &v }

// flakyBlobs is a MemoryStore whose operations can be made to fail per key.
type flakyBlobs struct {
	*blobstore.MemoryStore

	mu         sync.Mutex
	failPut    map[string]bool
	failDelete map[string]bool
	failAll    bool
}

var errBlobDown = errors.New("blob store unavailable")

func newFlakyBlobs() *flakyBlobs {
	return &flakyBlobs{
		MemoryStore: blobstore.NewMemoryStore(),
		failPut:     map[string]bool{},
		failDelete:  map[string]bool{},
	}
}

func (b *flakyBlobs) Put(ctx context.Context, key string, r io.Reader, size int64, ct string) error {
	b.mu.Lock()
	fail := b.failAll || b.failPut[key]
	b.mu.Unlock()
	if fail {
		return errBlobDown
	}
	return b.MemoryStore.Put(ctx, key, r, size, ct)
}

func (b *flakyBlobs) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	fail := b.failAll || b.failDelete[key]
	b.mu.Unlock()
	if fail {
		return errBlobDown
	}
	return b.MemoryStore.Delete(ctx, key)
}

func (b *flakyBlobs) setFailAll(v bool) {
	b.mu.Lock()
	b.failAll = v
	b.mu.Unlock()
}

func (b *flakyBlobs) failDeleteOf(key string) {
	b.mu.Lock()
	b.failDelete[key] = true
	b.mu.Unlock()
}

// presigningBlobs adds PresignGet to the memory store.
type presigningBlobs struct {
	*flakyBlobs
}

func (presigningBlobs) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	return "https://blobs.test/" + key + "?ttl=" + ttl.String(), nil
}

type recordingDispatcher struct {
	mu      sync.Mutex
	notices []notify.ShareNotice
	err     error
}

func (d *recordingDispatcher) NotifyShare(_ context.Context, n notify.ShareNotice) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notices = append(d.notices, n)
	return d.err
}

// failingFilesManager makes file record creation fail inside transactions.
type failingFilesManager struct {
	*memory.Manager
	err error
}

func (m *failingFilesManager) Files() files.Repository {
	return failingFiles{Repository: m.Manager.Files(), err: m.err}
}

func (m *failingFilesManager) WithTx(ctx context.Context, fn func(context.Context, repomanager.Repositories) error) error {
	return m.Manager.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		return fn(ctx, failingRepos{Repositories: r, err: m.err})
	})
}

type failingRepos struct {
	repomanager.Repositories
	err error
}

func (r failingRepos) Files() files.Repository {
	return failingFiles{Repository: r.Repositories.Files(), err: r.err}
}

type failingFiles struct {
	files.Repository
	err error
}

func (f failingFiles) Create(context.Context, *models.File) error { return f.err }

// folderDeletingManager deletes one folder right before the next
// transaction starts, as a concurrent DeleteFolder would.
type folderDeletingManager struct {
	*memory.Manager

	mu               sync.Mutex
	userID, folderID string
}

func (m *folderDeletingManager) deleteOnTx(userID, folderID string) {
	m.mu.Lock()
	m.userID, m.folderID = userID, folderID
	m.mu.Unlock()
}

func (m *folderDeletingManager) WithTx(ctx context.Context, fn func(context.Context, repomanager.Repositories) error) error {
	m.mu.Lock()
	userID, folderID := m.userID, m.folderID
	m.folderID = ""
	m.mu.Unlock()
	if folderID != "" {
		if err := m.Manager.Folders().Delete(ctx, userID, folderID); err != nil {
			return err
		}
	}
	return m.Manager.WithTx(ctx, fn)
}

// fileLookupFailingManager makes Files().Find fail inside transactions
// while err is set.
type fileLookupFailingManager struct {
	*memory.Manager

	mu  sync.Mutex
	err error
}

func (m *fileLookupFailingManager) setErr(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *fileLookupFailingManager) WithTx(ctx context.Context, fn func(context.Context, repomanager.Repositories) error) error {
	m.mu.Lock()
	err := m.err
	m.mu.Unlock()
	if err == nil {
		return m.Manager.WithTx(ctx, fn)
	}
	return m.Manager.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		return fn(ctx, findFailingRepos{Repositories: r, err: err})
	})
}

type findFailingRepos struct {
	repomanager.Repositories
	err error
}

func (r findFailingRepos) Files() files.Repository {
	return findFailingFiles{Repository: r.Repositories.Files(), err: r.err}
}

type findFailingFiles struct {
	files.Repository
	err error
}

func (f findFailingFiles) Find(context.Context, string) (*models.File, error) { return nil, f.err }

func jpegBytes() []byte {
	return append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0x01}, 16)...)
}
