package services

import (
	"context"
	"encoding/hex"
	"errors"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/cloudvault/internal/common"
	"github.com/dmitrijs2005/cloudvault/internal/cryptox"
	"github.com/dmitrijs2005/cloudvault/internal/logging"
	"github.com/dmitrijs2005/cloudvault/internal/server/blobstore"
	"github.com/dmitrijs2005/cloudvault/internal/server/config"
	"github.com/dmitrijs2005/cloudvault/internal/server/metrics"
	"github.com/dmitrijs2005/cloudvault/internal/server/models"
	"github.com/dmitrijs2005/cloudvault/internal/server/notify"
	"github.com/dmitrijs2005/cloudvault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// tokenBytes is the entropy of a share token; the token is its hex form.
const tokenBytes = 32

type CreateShareInput struct {
	ExpiresAt     *time.Time
	DownloadLimit *int64
	Recipients    []string
	Password      string
}

// ShareService issues and redeems share links.
type ShareService struct {
	repos      repomanager.RepositoryManager
	blobs      blobstore.Store
	dispatcher notify.Dispatcher
	tracker    EventTracker
	logger     logging.Logger
	bounds     bounds
	now        func() time.Time
}

func NewShareService(repos repomanager.RepositoryManager, blobs blobstore.Store, dispatcher notify.Dispatcher, tracker EventTracker, cfg *config.Config, logger logging.Logger) *ShareService {
	if dispatcher == nil {
		dispatcher = notify.Nop{}
	}
	return &ShareService{
		repos:      repos,
		blobs:      blobs,
		dispatcher: dispatcher,
		tracker:    tracker,
		logger:     logger.With("module", "shares"),
		bounds:     boundsFrom(cfg),
		now:        time.Now,
	}
}

func (s *ShareService) CreateShareLink(ctx context.Context, userID, fileID string, in CreateShareInput) (*models.ShareLink, error) {
	if err := notFoundUnlessValid(fileID); err != nil {
		return nil, err
	}
	now := s.now().UTC()

	if in.DownloadLimit != nil && *in.DownloadLimit < 1 {
		return nil, common.Invalid("download limit must be at least 1")
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return nil, common.Invalid("expiry must be in the future")
	}
	recipients, err := normalizeRecipients(in.Recipients)
	if err != nil {
		return nil, err
	}

	mctx, cancel := s.bounds.meta(ctx)
	defer cancel()

	file, err := s.repos.Files().GetByID(mctx, userID, fileID)
	if err != nil {
		return nil, common.Dependency(err)
	}
	if !file.AllowSharing {
		return nil, common.ErrSharingDisabled
	}
	if file.FolderID != nil {
		folder, err := s.repos.Folders().GetByID(mctx, userID, *file.FolderID)
		switch {
		case err == nil && !folder.AllowSharing:
			return nil, common.ErrSharingDisabled
		case err != nil && !errors.Is(err, common.ErrNotFound):
			return nil, common.Dependency(err)
		}
	}

	token, err := common.MakeRandHexString(tokenBytes)
	if err != nil {
		return nil, common.Dependency(err)
	}

	link := &models.ShareLink{
		ID:            uuid.NewString(),
		FileID:        file.ID,
		UserID:        userID,
		Token:         token,
		ExpiresAt:     utcPtr(in.ExpiresAt),
		DownloadLimit: in.DownloadLimit,
		IsActive:      true,
		Recipients:    recipients,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.Password != "" {
		link.PasswordHash, link.PasswordSalt, err = cryptox.HashPassword(in.Password)
		if err != nil {
			return nil, common.Dependency(err)
		}
	}

	if err := s.repos.ShareLinks().Create(mctx, link); err != nil {
		return nil, common.Dependency(err)
	}

	for _, r := range recipients {
		err := s.dispatcher.NotifyShare(ctx, notify.ShareNotice{
			Recipient: r,
			OwnerID:   userID,
			FileName:  file.Name,
			Token:     link.Token,
			ExpiresAt: link.ExpiresAt,
		})
		if err != nil {
			s.logger.Warn(ctx, "share notification failed", "share_link_id", link.ID, "recipient", r, "error", err)
		}
	}

	emit(ctx, s.tracker, s.logger, userID, models.EventFileShare, map[string]any{
		"fileId":        file.ID,
		"fileName":      file.Name,
		"shareLinkId":   link.ID,
		"recipients":    len(recipients),
		"expiresAt":     link.ExpiresAt,
		"downloadLimit": link.DownloadLimit,
	})
	s.logger.Info(ctx, "share link created", "user_id", userID, "file_id", file.ID, "share_link_id", link.ID)
	return link, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func normalizeRecipients(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, r := range in {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		addr, err := mail.ParseAddress(r)
		if err != nil {
			return nil, common.Invalid("recipient %q is not an email address", r)
		}
		email := strings.ToLower(addr.Address)
		if !slices.Contains(out, email) {
			out = append(out, email)
		}
	}
	return out, nil
}

// ResolveShareLink consumes one download of the link and returns the file.
// Every failure, including a wrong password, is ErrLinkInvalid.
func (s *ShareService) ResolveShareLink(ctx context.Context, token, password string) (*models.File, error) {
	_, file, err := s.resolve(ctx, token, password)
	return file, err
}

// OpenShareLink resolves the link and streams the file. The delivery also
// counts towards the file's own download counter.
func (s *ShareService) OpenShareLink(ctx context.Context, token, password string) (*Download, error) {
	link, file, err := s.resolve(ctx, token, password)
	if err != nil {
		return nil, err
	}
	d, err := deliver(ctx, s.repos, s.blobs, s.bounds, file, s.now())
	if err != nil {
		return nil, err
	}
	metrics.DownloadsTotal.WithLabelValues("share").Inc()
	emit(ctx, s.tracker, s.logger, file.UserID, models.EventFileDownload, map[string]any{
		"fileId":      file.ID,
		"fileName":    file.Name,
		"fileSize":    file.Size,
		"via":         "share",
		"shareLinkId": link.ID,
	})
	return d, nil
}

func (s *ShareService) resolve(ctx context.Context, token, password string) (link *models.ShareLink, file *models.File, err error) {
	defer func() {
		if err != nil {
			metrics.ShareResolutionsTotal.WithLabelValues("invalid").Inc()
		} else {
			metrics.ShareResolutionsTotal.WithLabelValues("ok").Inc()
		}
	}()

	if !wellFormedToken(token) {
		return nil, nil, common.ErrLinkInvalid
	}

	mctx, cancel := s.bounds.meta(ctx)
	defer cancel()

	current, err := s.repos.ShareLinks().GetByToken(mctx, token)
	if err != nil {
		return nil, nil, linkError(err)
	}
	if len(current.PasswordHash) > 0 && !cryptox.VerifyPassword(password, current.PasswordHash, current.PasswordSalt) {
		return nil, nil, common.ErrLinkInvalid
	}

	// The file is checked before the download is spent, and a failure after
	// Consume rolls the increment back.
	err = s.repos.WithTx(mctx, func(ctx context.Context, repos repomanager.Repositories) error {
		f, err := repos.Files().Find(ctx, current.FileID)
		if err != nil {
			return err
		}
		if f.UserID != current.UserID {
			return common.ErrLinkInvalid
		}
		l, err := repos.ShareLinks().Consume(ctx, token, s.now().UTC())
		if err != nil {
			return err
		}
		link, file = l, f
		return nil
	})
	if err != nil {
		return nil, nil, linkError(err)
	}
	return link, file, nil
}

func wellFormedToken(token string) bool {
	if len(token) != 2*tokenBytes {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}

// linkError hides which check failed from anonymous callers while still
// reporting store outages as such.
func linkError(err error) error {
	if errors.Is(err, common.ErrNotFound) {
		return common.ErrLinkInvalid
	}
	return common.Dependency(err)
}

// RevokeShareLink deactivates a link. Revoking an inactive link succeeds.
func (s *ShareService) RevokeShareLink(ctx context.Context, userID, shareLinkID string) error {
	if err := notFoundUnlessValid(shareLinkID); err != nil {
		return err
	}
	mctx, cancel := s.bounds.meta(ctx)
	defer cancel()

	if err := s.repos.ShareLinks().Deactivate(mctx, userID, shareLinkID); err != nil {
		return common.Dependency(err)
	}
	s.logger.Info(ctx, "share link revoked", "user_id", userID, "share_link_id", shareLinkID)
	return nil
}

// ListShareLinks returns the links of an owned file, newest first.
func (s *ShareService) ListShareLinks(ctx context.Context, userID, fileID string) ([]*models.ShareLink, error) {
	if err := notFoundUnlessValid(fileID); err != nil {
		return nil, err
	}
	mctx, cancel := s.bounds.meta(ctx)
	defer cancel()

	if _, err := s.repos.Files().GetByID(mctx, userID, fileID); err != nil {
		return nil, common.Dependency(err)
	}
	links, err := s.repos.ShareLinks().ListByFile(mctx, userID, fileID)
	if err != nil {
		return nil, common.Dependency(err)
	}
	if links == nil {
		links = []*models.ShareLink{}
	}
	return links, nil
}
