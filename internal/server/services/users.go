package services

import (
	"context"

	"github.com/dmitrijs2005/cloudvault/internal/common"
	"github.com/dmitrijs2005/cloudvault/internal/logging"
	"github.com/dmitrijs2005/cloudvault/internal/server/config"
	"github.com/dmitrijs2005/cloudvault/internal/server/identity"
	"github.com/dmitrijs2005/cloudvault/internal/server/models"
	"github.com/dmitrijs2005/cloudvault/internal/server/repositories/repomanager"
)

// UserService provisions accounts for confirmed identities and serves the
// profile. Storage counters are owned by FileService.
type UserService struct {
	repos        repomanager.RepositoryManager
	logger       logging.Logger
	bounds       bounds
	defaultLimit int64
}

func NewUserService(repos repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *UserService {
	return &UserService{
		repos:        repos,
		logger:       logger.With("module", "users"),
		bounds:       boundsFrom(cfg),
		defaultLimit: cfg.DefaultStorageLimit,
	}
}

// Provision creates the user on first sight and refreshes the profile fields
// afterwards.
func (s *UserService) Provision(ctx context.Context, id *identity.Identity) (*models.User, error) {
	if id == nil || id.ID == "" {
		return nil, common.Invalid("identity without subject")
	}
	mctx, cancel := s.bounds.meta(ctx)
	defer cancel()

	u, err := s.repos.Users().Ensure(mctx, &models.User{
		ID:           id.ID,
		Email:        id.Email,
		FirstName:    id.FirstName,
		LastName:     id.LastName,
		StorageLimit: s.defaultLimit,
	})
	if err != nil {
		return nil, common.Dependency(err)
	}
	return u, nil
}

// Profile returns the account, provisioning it if the sign-in hook missed it.
func (s *UserService) Profile(ctx context.Context, userID string) (*models.User, error) {
	mctx, cancel := s.bounds.meta(ctx)
	defer cancel()
	return ensureAccount(mctx, s.repos.Users(), userID, s.defaultLimit)
}

// Subscribe provisions every identity announced on reg. Errors are only
// logged; sign-in does not fail on them.
func (s *UserService) Subscribe(reg *identity.Registry) (unsubscribe func()) {
	return reg.Subscribe(func(ctx context.Context, id *identity.Identity) {
		if _, err := s.Provision(ctx, id); err != nil {
			s.logger.Error(ctx, "user provisioning failed", "user_id", id.ID, "error", err)
		}
	})
}
