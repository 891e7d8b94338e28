package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cloudvault/internal/common"
	"github.com/dmitrijs2005/cloudvault/internal/server/models"
)

type fileRepo struct {
	s    *store
	undo *undoLog
}

func (r *fileRepo) Create(_ context.Context, file *models.File) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.files[file.ID]; ok {
		return fmt.Errorf("file %s already exists", file.ID)
	}
	for _, f := range r.s.files {
		if f.StorageKey == file.StorageKey {
			return fmt.Errorf("storage key %s already in use", file.StorageKey)
		}
	}
	if file.FolderID != nil {
		if folder, ok := r.s.folders[*file.FolderID]; !ok || folder.UserID != file.UserID {
			return common.ErrNotFound
		}
	}
	r.s.files[file.ID] = cloneFile(file)
	r.s.nextSeq(file.ID)
	id := file.ID
	r.undo.push(func(s *store) { delete(s.files, id) })
	return nil
}

func (r *fileRepo) GetByID(_ context.Context, userID, id string) (*models.File, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	f, ok := r.s.files[id]
	if !ok || f.UserID != userID {
		return nil, common.ErrNotFound
	}
	return cloneFile(f), nil
}

func (r *fileRepo) Find(_ context.Context, id string) (*models.File, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	f, ok := r.s.files[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return cloneFile(f), nil
}

func (r *fileRepo) ListByFolder(_ context.Context, userID string, folderID *string) ([]*models.File, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	result := []*models.File{}
	for _, f := range r.s.files {
		if f.UserID != userID {
			continue
		}
		if folderID != nil && (f.FolderID == nil || *f.FolderID != *folderID) {
			continue
		}
		result = append(result, cloneFile(f))
	}
	newestFirst(r.s, result, func(f *models.File) (string, time.Time) { return f.ID, f.CreatedAt })
	return result, nil
}

func (r *fileRepo) RecordDownload(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	f, ok := r.s.files[id]
	if !ok {
		return common.ErrNotFound
	}
	prevAccessed, prevUpdated := f.LastAccessed, f.UpdatedAt
	f.DownloadCount++
	f.LastAccessed = &at
	f.UpdatedAt = at
	r.undo.push(func(s *store) {
		if f, ok := s.files[id]; ok {
			f.DownloadCount--
			f.LastAccessed, f.UpdatedAt = prevAccessed, prevUpdated
		}
	})
	return nil
}

func (r *fileRepo) Delete(_ context.Context, userID, id string) (*models.File, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	f, ok := r.s.files[id]
	if !ok || f.UserID != userID {
		return nil, common.ErrNotFound
	}
	delete(r.s.files, id)

	// share links follow their file, as ON DELETE CASCADE does in Postgres
	var dropped []*models.ShareLink
	for lid, l := range r.s.links {
		if l.FileID == id {
			dropped = append(dropped, l)
			delete(r.s.links, lid)
			delete(r.s.tokens, l.Token)
		}
	}

	r.undo.push(func(s *store) {
		s.files[id] = f
		for _, l := range dropped {
			s.links[l.ID] = l
			s.tokens[l.Token] = l.ID
		}
	})
	return cloneFile(f), nil
}
