package services

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/cloudvault/internal/common"
	"github.com/dmitrijs2005/cloudvault/internal/logging"
	"github.com/dmitrijs2005/cloudvault/internal/server/blobstore"
	"github.com/dmitrijs2005/cloudvault/internal/server/config"
	"github.com/dmitrijs2005/cloudvault/internal/server/media"
	"github.com/dmitrijs2005/cloudvault/internal/server/models"
	"github.com/dmitrijs2005/cloudvault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// MaxFolderDepth is the deepest a folder may sit, counting the root level
// as 1. CreateFolder enforces it, so GetFolderPath never walks further.
const MaxFolderDepth = 64

var folderClasses = []string{
	models.AllFileTypes,
	media.ClassImage, media.ClassVideo, media.ClassAudio,
	media.ClassDocument, media.ClassArchive, media.ClassText, media.ClassOther,
}

type CreateFolderInput struct {
	Name             string
	ParentID         *string
	AllowedFileTypes []string
	Confidentiality  models.Confidentiality
	Importance       models.Importance
	AllowSharing     *bool
}

// FolderService manages the per-user folder tree.
type FolderService struct {
	repos        repomanager.RepositoryManager
	blobs        blobstore.Store
	files        *fileRemover
	tracker      EventTracker
	logger       logging.Logger
	bounds       bounds
	defaultLimit int64
	now          func() time.Time
}

func NewFolderService(repos repomanager.RepositoryManager, blobs blobstore.Store, tracker EventTracker, cfg *config.Config, logger logging.Logger) *FolderService {
	logger = logger.With("module", "folders")
	b := boundsFrom(cfg)
	return &FolderService{
		repos:        repos,
		blobs:        blobs,
		files:        &fileRemover{repos: repos, blobs: blobs, tracker: tracker, logger: logger, bounds: b},
		tracker:      tracker,
		logger:       logger,
		bounds:       b,
		defaultLimit: cfg.DefaultStorageLimit,
		now:          time.Now,
	}
}

func (s *FolderService) CreateFolder(ctx context.Context, userID string, in CreateFolderInput) (*models.Folder, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, common.Invalid("folder name is required")
	}

	types, err := normalizeFileTypes(in.AllowedFileTypes)
	if err != nil {
		return nil, err
	}

	conf := in.Confidentiality
	if conf == "" {
		conf = models.ConfidentialityInternal
	}
	if !conf.Valid() {
		return nil, common.Invalid("unknown confidentiality %q", conf)
	}
	imp := in.Importance
	if imp == "" {
		imp = models.ImportanceMedium
	}
	if !imp.Valid() {
		return nil, common.Invalid("unknown importance %q", imp)
	}
	allowSharing := true
	if in.AllowSharing != nil {
		allowSharing = *in.AllowSharing
	}

	mctx, cancel := s.bounds.meta(ctx)
	defer cancel()

	if in.ParentID != nil {
		if err := notFoundUnlessValid(*in.ParentID); err != nil {
			return nil, err
		}
		parents, err := s.ancestry(mctx, userID, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if len(parents) >= MaxFolderDepth {
			return nil, common.Invalid("folders nest at most %d levels deep", MaxFolderDepth)
		}
	}

	if _, err := ensureAccount(mctx, s.repos.Users(), userID, s.defaultLimit); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	folder := &models.Folder{
		ID:               uuid.NewString(),
		Name:             name,
		ParentID:         in.ParentID,
		UserID:           userID,
		AllowedFileTypes: types,
		Confidentiality:  conf,
		Importance:       imp,
		AllowSharing:     allowSharing,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repos.Folders().Create(mctx, folder); err != nil {
		return nil, common.Dependency(err)
	}

	s.putPlaceholder(ctx, folder)

	emit(ctx, s.tracker, s.logger, userID, models.EventFolderCreate, map[string]any{
		"folderId":   folder.ID,
		"folderName": folder.Name,
		"parentId":   folder.ParentID,
	})
	s.logger.Info(ctx, "folder created", "user_id", userID, "folder_id", folder.ID)
	return folder, nil
}

// putPlaceholder writes the zero-byte marker that makes the folder visible
// in raw blob listings. Failure is logged only.
func (s *FolderService) putPlaceholder(ctx context.Context, f *models.Folder) {
	bctx, cancel := s.bounds.blobs(ctx)
	defer cancel()
	if err := s.blobs.Put(bctx, folderKey(f.UserID, f.ID), bytes.NewReader(nil), 0, "application/x-directory"); err != nil {
		s.logger.Warn(ctx, "folder placeholder not written", "folder_id", f.ID, "error", err)
	}
}

func normalizeFileTypes(in []string) ([]string, error) {
	if len(in) == 0 {
		return []string{models.AllFileTypes}, nil
	}
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if !slices.Contains(folderClasses, t) {
			return nil, common.Invalid("unknown file type class %q", t)
		}
		if t == models.AllFileTypes {
			return []string{models.AllFileTypes}, nil
		}
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return []string{models.AllFileTypes}, nil
	}
	return out, nil
}

// ListFolders returns one level of the tree, newest first. A nil parentID
// lists root folders.
func (s *FolderService) ListFolders(ctx context.Context, userID string, parentID *string) ([]*models.Folder, error) {
	if parentID != nil && !validID(*parentID) {
		return []*models.Folder{}, nil
	}
	mctx, cancel := s.bounds.meta(ctx)
	defer cancel()

	folders, err := s.repos.Folders().ListByParent(mctx, userID, parentID)
	if err != nil {
		return nil, common.Dependency(err)
	}
	if folders == nil {
		folders = []*models.Folder{}
	}
	return folders, nil
}

// ListAllFolders returns every folder of the user regardless of depth.
func (s *FolderService) ListAllFolders(ctx context.Context, userID string) ([]*models.Folder, error) {
	mctx, cancel := s.bounds.meta(ctx)
	defer cancel()

	folders, err := s.repos.Folders().ListByUser(mctx, userID)
	if err != nil {
		return nil, common.Dependency(err)
	}
	if folders == nil {
		folders = []*models.Folder{}
	}
	return folders, nil
}

func (s *FolderService) GetFolder(ctx context.Context, userID, folderID string) (*models.Folder, error) {
	if err := notFoundUnlessValid(folderID); err != nil {
		return nil, err
	}
	mctx, cancel := s.bounds.meta(ctx)
	defer cancel()

	f, err := s.repos.Folders().GetByID(mctx, userID, folderID)
	if err != nil {
		return nil, common.Dependency(err)
	}
	return f, nil
}

// GetFolderPath returns the chain of folders from the root down to folderID.
func (s *FolderService) GetFolderPath(ctx context.Context, userID, folderID string) ([]*models.Folder, error) {
	if err := notFoundUnlessValid(folderID); err != nil {
		return nil, err
	}
	mctx, cancel := s.bounds.meta(ctx)
	defer cancel()
	return s.ancestry(mctx, userID, folderID)
}

// ancestry walks ParentID links up from folderID and returns the chain
// root first.
func (s *FolderService) ancestry(ctx context.Context, userID, folderID string) ([]*models.Folder, error) {
	var path []*models.Folder
	seen := map[string]bool{}
	id := folderID
	for {
		if len(path) >= MaxFolderDepth || seen[id] {
			return nil, common.ErrCorruptHierarchy
		}
		seen[id] = true

		f, err := s.repos.Folders().GetByID(ctx, userID, id)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) && len(path) > 0 {
				// an ancestor is missing: the chain is broken
				return nil, common.ErrCorruptHierarchy
			}
			return nil, common.Dependency(err)
		}
		path = append(path, f)
		if f.ParentID == nil {
			break
		}
		id = *f.ParentID
	}

	slices.Reverse(path)
	return path, nil
}

// DeleteFolder removes the folder, every descendant folder and every file
// they contain. The folder record is claimed first so that a concurrent
// delete of the same folder fails with ErrNotFound. Per-item failures after
// that point are collected in the result instead of aborting.
func (s *FolderService) DeleteFolder(ctx context.Context, userID, folderID string) (*DeleteResult, error) {
	if err := notFoundUnlessValid(folderID); err != nil {
		return nil, err
	}

	mctx, cancel := s.bounds.meta(ctx)
	root, err := s.repos.Folders().GetByID(mctx, userID, folderID)
	if err != nil {
		cancel()
		return nil, common.Dependency(err)
	}
	all, err := s.repos.Folders().ListByUser(mctx, userID)
	if err != nil {
		cancel()
		return nil, common.Dependency(err)
	}
	err = s.repos.Folders().Delete(mctx, userID, root.ID)
	cancel()
	if err != nil {
		return nil, common.Dependency(err)
	}

	res := &DeleteResult{}
	res.ok(kindFolder, root.ID, root.Name)
	s.deletePlaceholder(ctx, root)
	s.deleteContents(ctx, userID, root, res)

	// deepest first
	for _, f := range descendants(root.ID, all) {
		mctx, cancel := s.bounds.meta(ctx)
		err := s.repos.Folders().Delete(mctx, userID, f.ID)
		cancel()
		switch {
		case errors.Is(err, common.ErrNotFound):
			// removed concurrently; its contents are the other caller's job
			continue
		case err != nil:
			res.fail(kindFolder, f.ID, f.Name, common.Dependency(err))
			continue
		}
		res.ok(kindFolder, f.ID, f.Name)
		s.deletePlaceholder(ctx, f)
		s.deleteContents(ctx, userID, f, res)
	}

	emit(ctx, s.tracker, s.logger, userID, models.EventFolderDelete, map[string]any{
		"folderId":   root.ID,
		"folderName": root.Name,
		"succeeded":  len(res.Succeeded),
		"failed":     len(res.Failed),
	})
	s.logger.Info(ctx, "folder deleted",
		"user_id", userID, "folder_id", root.ID,
		"succeeded", len(res.Succeeded), "failed", len(res.Failed))
	return res, nil
}

func (s *FolderService) deletePlaceholder(ctx context.Context, f *models.Folder) {
	bctx, cancel := s.bounds.blobs(ctx)
	defer cancel()
	if err := s.blobs.Delete(bctx, folderKey(f.UserID, f.ID)); err != nil {
		s.logger.Warn(ctx, "folder placeholder not deleted", "folder_id", f.ID, "error", err)
	}
}

func (s *FolderService) deleteContents(ctx context.Context, userID string, f *models.Folder, res *DeleteResult) {
	mctx, cancel := s.bounds.meta(ctx)
	files, err := s.repos.Files().ListByFolder(mctx, userID, &f.ID)
	cancel()
	if err != nil {
		res.fail(kindFolder, f.ID, f.Name, common.Dependency(err))
		return
	}
	for _, file := range files {
		if err := s.files.remove(ctx, userID, file); err != nil {
			s.logger.Warn(ctx, "file not deleted", "file_id", file.ID, "error", err)
			res.fail(kindFile, file.ID, file.Name, err)
			continue
		}
		res.ok(kindFile, file.ID, file.Name)
	}
}

// descendants returns every folder below rootID in post-order, however deep
// the subtree goes.
func descendants(rootID string, all []*models.Folder) []*models.Folder {
	children := map[string][]*models.Folder{}
	for _, f := range all {
		if f.ParentID != nil {
			children[*f.ParentID] = append(children[*f.ParentID], f)
		}
	}

	var out []*models.Folder
	seen := map[string]bool{rootID: true}
	var walk func(id string)
	walk = func(id string) {
		for _, c := range children[id] {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			walk(c.ID)
			out = append(out, c)
		}
	}
	walk(rootID)
	return out
}
