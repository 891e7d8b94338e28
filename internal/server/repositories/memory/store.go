// Package memory implements every repository in process memory. It backs
// the server's -m development mode and the service tests. Each statement is
// atomic under one mutex; WithTx undoes the statements of a failed
// transaction but offers no isolation from concurrent callers.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/dmitrijs2005/cloudvault/internal/server/models"
	"github.com/dmitrijs2005/cloudvault/internal/server/repositories/events"
	"github.com/dmitrijs2005/cloudvault/internal/server/repositories/files"
	"github.com/dmitrijs2005/cloudvault/internal/server/repositories/folders"
	"github.com/dmitrijs2005/cloudvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cloudvault/internal/server/repositories/sharelinks"
	"github.com/dmitrijs2005/cloudvault/internal/server/repositories/users"
)

type store struct {
	mu      sync.Mutex
	users   map[string]*models.User
	folders map[string]*models.Folder
	files   map[string]*models.File
	links   map[string]*models.ShareLink
	tokens  map[string]string
	events  []*models.AnalyticsEvent

	// seq orders records created within the same clock tick.
	seq  uint64
	seqs map[string]uint64
}

func (s *store) nextSeq(id string) {
	s.seq++
	s.seqs[id] = s.seq
}

// undoLog collects inverse operations recorded inside a transaction.
type undoLog struct {
	mu  sync.Mutex
	ops []func(s *store)
}

func (u *undoLog) push(op func(s *store)) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.ops = append(u.ops, op)
	u.mu.Unlock()
}

func (u *undoLog) rollback(s *store) {
	u.mu.Lock()
	ops := u.ops
	u.ops = nil
	u.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range slices.Backward(ops) {
		op(s)
	}
}

// Manager is an in-memory repomanager.RepositoryManager.
type Manager struct {
	s    *store
	undo *undoLog
}

var _ repomanager.RepositoryManager = (*Manager)(nil)

func NewManager() *Manager {
	return &Manager{s: &store{
		users:   map[string]*models.User{},
		folders: map[string]*models.Folder{},
		files:   map[string]*models.File{},
		links:   map[string]*models.ShareLink{},
		tokens:  map[string]string{},
		seqs:    map[string]uint64{},
	}}
}

func (m *Manager) Users() users.Repository           { return &userRepo{s: m.s, undo: m.undo} }
func (m *Manager) Folders() folders.Repository       { return &folderRepo{s: m.s, undo: m.undo} }
func (m *Manager) Files() files.Repository           { return &fileRepo{s: m.s, undo: m.undo} }
func (m *Manager) ShareLinks() sharelinks.Repository { return &linkRepo{s: m.s, undo: m.undo} }
func (m *Manager) Events() events.Repository         { return &eventRepo{s: m.s, undo: m.undo} }

func (m *Manager) RunMigrations(context.Context) error { return nil }
func (m *Manager) Ping(context.Context) error          { return nil }

// WithTx runs fn and replays the recorded undo operations when fn fails or
// panics. Nested calls join the outer transaction.
func (m *Manager) WithTx(ctx context.Context, fn func(ctx context.Context, repos repomanager.Repositories) error) (err error) {
	if m.undo != nil {
		return fn(ctx, m)
	}

	log := &undoLog{}
	tx := &Manager{s: m.s, undo: log}

	defer func() {
		if p := recover(); p != nil {
			log.rollback(m.s)
			panic(p)
		}
		if err != nil {
			log.rollback(m.s)
		}
	}()

	return fn(ctx, tx)
}
