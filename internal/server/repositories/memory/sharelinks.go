package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cloudvault/internal/common"
	"github.com/dmitrijs2005/cloudvault/internal/server/models"
)

type linkRepo struct {
	s    *store
	undo *undoLog
}

func (r *linkRepo) Create(_ context.Context, link *models.ShareLink) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.links[link.ID]; ok {
		return fmt.Errorf("share link %s already exists", link.ID)
	}
	if _, ok := r.s.tokens[link.Token]; ok {
		return fmt.Errorf("share token already in use")
	}
	r.s.links[link.ID] = cloneLink(link)
	r.s.tokens[link.Token] = link.ID
	r.s.nextSeq(link.ID)
	id, token := link.ID, link.Token
	r.undo.push(func(s *store) {
		delete(s.links, id)
		delete(s.tokens, token)
	})
	return nil
}

func (r *linkRepo) GetByID(_ context.Context, userID, id string) (*models.ShareLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	l, ok := r.s.links[id]
	if !ok || l.UserID != userID {
		return nil, common.ErrNotFound
	}
	return cloneLink(l), nil
}

func (r *linkRepo) GetByToken(_ context.Context, token string) (*models.ShareLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.tokens[token]
	if !ok {
		return nil, common.ErrNotFound
	}
	return cloneLink(r.s.links[id]), nil
}

func (r *linkRepo) Consume(_ context.Context, token string, now time.Time) (*models.ShareLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.tokens[token]
	if !ok {
		return nil, common.ErrNotFound
	}
	l := r.s.links[id]
	if !l.Usable(now) {
		return nil, common.ErrNotFound
	}
	prevUpdated := l.UpdatedAt
	l.DownloadCount++
	l.UpdatedAt = now
	r.undo.push(func(s *store) {
		if l, ok := s.links[id]; ok {
			l.DownloadCount--
			l.UpdatedAt = prevUpdated
		}
	})
	return cloneLink(l), nil
}

func (r *linkRepo) Deactivate(_ context.Context, userID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	l, ok := r.s.links[id]
	if !ok || l.UserID != userID {
		return common.ErrNotFound
	}
	wasActive := l.IsActive
	l.IsActive = false
	l.UpdatedAt = time.Now()
	r.undo.push(func(s *store) {
		if l, ok := s.links[id]; ok {
			l.IsActive = wasActive
		}
	})
	return nil
}

func (r *linkRepo) ListByFile(_ context.Context, userID, fileID string) ([]*models.ShareLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	result := []*models.ShareLink{}
	for _, l := range r.s.links {
		if l.FileID == fileID && l.UserID == userID {
			result = append(result, cloneLink(l))
		}
	}
	newestFirst(r.s, result, func(l *models.ShareLink) (string, time.Time) { return l.ID, l.CreatedAt })
	return result, nil
}
