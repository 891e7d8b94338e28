package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cloudvault/internal/common"
	"github.com/dmitrijs2005/cloudvault/internal/server/models"
)

type folderRepo struct {
	s    *store
	undo *undoLog
}

func (r *folderRepo) Create(_ context.Context, folder *models.Folder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.folders[folder.ID]; ok {
		return fmt.Errorf("folder %s already exists", folder.ID)
	}
	r.s.folders[folder.ID] = cloneFolder(folder)
	r.s.nextSeq(folder.ID)
	id := folder.ID
	r.undo.push(func(s *store) { delete(s.folders, id) })
	return nil
}

func (r *folderRepo) GetByID(_ context.Context, userID, id string) (*models.Folder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	f, ok := r.s.folders[id]
	if !ok || f.UserID != userID {
		return nil, common.ErrNotFound
	}
	return cloneFolder(f), nil
}

// Lock only checks existence. File creation re-checks the folder under the
// store mutex, which closes the same race.
func (r *folderRepo) Lock(_ context.Context, userID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if f, ok := r.s.folders[id]; !ok || f.UserID != userID {
		return common.ErrNotFound
	}
	return nil
}

func (r *folderRepo) ListByParent(_ context.Context, userID string, parentID *string) ([]*models.Folder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	result := []*models.Folder{}
	for _, f := range r.s.folders {
		if f.UserID != userID {
			continue
		}
		switch {
		case parentID == nil && f.ParentID == nil,
			parentID != nil && f.ParentID != nil && *f.ParentID == *parentID:
			result = append(result, cloneFolder(f))
		}
	}
	newestFirst(r.s, result, func(f *models.Folder) (string, time.Time) { return f.ID, f.CreatedAt })
	return result, nil
}

func (r *folderRepo) ListByUser(_ context.Context, userID string) ([]*models.Folder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	result := []*models.Folder{}
	for _, f := range r.s.folders {
		if f.UserID == userID {
			result = append(result, cloneFolder(f))
		}
	}
	return result, nil
}

func (r *folderRepo) Delete(_ context.Context, userID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	f, ok := r.s.folders[id]
	if !ok || f.UserID != userID {
		return common.ErrNotFound
	}
	delete(r.s.folders, id)
	r.undo.push(func(s *store) { s.folders[id] = f })
	return nil
}
