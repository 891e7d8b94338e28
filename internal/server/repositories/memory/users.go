package memory

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cloudvault/internal/common"
	"github.com/dmitrijs2005/cloudvault/internal/server/models"
)

type userRepo struct {
	s    *store
	undo *undoLog
}

func (r *userRepo) Ensure(_ context.Context, user *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now()
	if cur, ok := r.s.users[user.ID]; ok {
		prev := cloneUser(cur)
		cur.Email, cur.FirstName, cur.LastName, cur.UpdatedAt = user.Email, user.FirstName, user.LastName, now
		r.undo.push(func(s *store) {
			if u, ok := s.users[prev.ID]; ok {
				u.Email, u.FirstName, u.LastName, u.UpdatedAt = prev.Email, prev.FirstName, prev.LastName, prev.UpdatedAt
			}
		})
		return cloneUser(cur), nil
	}

	u := cloneUser(user)
	u.StorageUsed = 0
	if u.StorageLimit == 0 {
		u.StorageLimit = common.DefaultStorageLimit
	}
	u.CreatedAt, u.UpdatedAt = now, now
	r.s.users[u.ID] = u
	r.undo.push(func(s *store) { delete(s.users, u.ID) })
	return cloneUser(u), nil
}

func (r *userRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *userRepo) AddStorageUsed(_ context.Context, id string, delta int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return 0, common.ErrNotFound
	}
	before := u.StorageUsed
	u.StorageUsed = max(u.StorageUsed+delta, 0)
	r.pushDelta(id, u.StorageUsed-before)
	return u.StorageUsed, nil
}

func (r *userRepo) ReserveStorage(_ context.Context, id string, delta int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok || u.StorageUsed+delta > u.StorageLimit {
		return 0, common.ErrQuotaExceeded
	}
	u.StorageUsed += delta
	r.pushDelta(id, delta)
	return u.StorageUsed, nil
}

func (r *userRepo) pushDelta(id string, applied int64) {
	r.undo.push(func(s *store) {
		if u, ok := s.users[id]; ok {
			u.StorageUsed = max(u.StorageUsed-applied, 0)
		}
	})
}
