package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/cloudvault/internal/common"
	"github.com/dmitrijs2005/cloudvault/internal/cryptox"
	"github.com/dmitrijs2005/cloudvault/internal/logging"
	"github.com/dmitrijs2005/cloudvault/internal/server/blobstore"
	"github.com/dmitrijs2005/cloudvault/internal/server/config"
	"github.com/dmitrijs2005/cloudvault/internal/server/media"
	"github.com/dmitrijs2005/cloudvault/internal/server/metrics"
	"github.com/dmitrijs2005/cloudvault/internal/server/models"
	"github.com/dmitrijs2005/cloudvault/internal/server/progress"
	"github.com/dmitrijs2005/cloudvault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// ErrPresignUnsupported is returned by DownloadURL when the blob store cannot
// mint direct URLs.
var ErrPresignUnsupported = fmt.Errorf("%w: blob store does not presign", common.ErrDependencyUnavailable)

type UploadInput struct {
	Data            []byte
	FileName        string
	DeclaredType    string
	FolderID        *string
	Tags            []string
	Confidentiality models.Confidentiality
	Importance      models.Importance
	AllowSharing    *bool

	// UploadID names the progress stream; one is generated when empty.
	UploadID string
	Progress progress.Sink
}

type UploadResult struct {
	File          *models.File `json:"file"`
	StorageUsed   int64        `json:"storageUsed"`
	StorageLimit  int64        `json:"storageLimit"`
	QuotaExceeded bool         `json:"quotaExceeded"`
	QuotaNote     string       `json:"quotaNote,omitempty"`
}

// FileService moves bytes between callers and the blob store and keeps the
// file metadata and the owner's storage counter in step.
type FileService struct {
	repos        repomanager.RepositoryManager
	blobs        blobstore.Store
	remover      *fileRemover
	tracker      EventTracker
	progress     progress.Sink
	logger       logging.Logger
	bounds       bounds
	enforceQuota bool
	defaultLimit int64
	presignTTL   time.Duration
	now          func() time.Time
}

// NewFileService wires the orchestrator. sink receives progress for every
// upload in addition to any per-call UploadInput.Progress; it may be nil.
func NewFileService(repos repomanager.RepositoryManager, blobs blobstore.Store, tracker EventTracker, sink progress.Sink, cfg *config.Config, logger logging.Logger) *FileService {
	logger = logger.With("module", "files")
	b := boundsFrom(cfg)
	if sink == nil {
		sink = progress.Discard
	}
	return &FileService{
		repos:        repos,
		blobs:        blobs,
		remover:      &fileRemover{repos: repos, blobs: blobs, tracker: tracker, logger: logger, bounds: b},
		tracker:      tracker,
		progress:     sink,
		logger:       logger,
		bounds:       b,
		enforceQuota: cfg.EnforceQuota,
		defaultLimit: cfg.DefaultStorageLimit,
		presignTTL:   cfg.PresignTTL,
		now:          time.Now,
	}
}

func (s *FileService) Upload(ctx context.Context, userID string, in UploadInput) (res *UploadResult, err error) {
	defer func() {
		if err != nil {
			metrics.UploadsTotal.WithLabelValues(uploadResultLabel(err)).Inc()
		}
	}()

	name := strings.TrimSpace(in.FileName)
	if name == "" {
		return nil, common.Invalid("file name is required")
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

	size := int64(len(in.Data))
	mime := media.DetectMIME(in.Data, name, in.DeclaredType)

	user, err := s.precheck(ctx, userID, in.FolderID, mime)
	if err != nil {
		return nil, err
	}
	if s.enforceQuota && user.StorageUsed+size > user.StorageLimit {
		return nil, quotaError(user.StorageUsed+size, user.StorageLimit)
	}

	fileID := uuid.NewString()
	key := fmt.Sprintf("%s/%s/%s_%s", common.UserFilesPrefix, userID, media.SanitizeFileName(name), fileID)
	uploadID := in.UploadID
	if uploadID == "" {
		uploadID = fileID
	}

	sinks := fanout{s.progress}
	if in.Progress != nil {
		sinks = append(sinks, in.Progress)
	}
	body := progress.NewReader(bytes.NewReader(in.Data), sinks, progress.Update{
		UploadID: uploadID, UserID: userID, FileName: name, Total: size,
	})

	bctx, bcancel := s.bounds.blobs(ctx)
	err = s.blobs.Put(bctx, key, body, size, mime)
	bcancel()
	if err != nil {
		return nil, common.Dependency(err)
	}
	written := []string{key}

	now := s.now().UTC()
	file := &models.File{
		ID:              fileID,
		Name:            name,
		Type:            mime,
		Size:            size,
		StorageKey:      key,
		FolderID:        in.FolderID,
		UserID:          userID,
		Tags:            normalizeTags(in.Tags),
		Confidentiality: conf,
		Importance:      imp,
		AllowSharing:    allowSharing,
		CreatedAt:       now,
		UpdatedAt:       now,
		ContentHash:     cryptox.SHA256Hex(in.Data),
	}
	if media.IsImage(mime) {
		if thumb := s.enrichImage(ctx, file, in.Data); thumb != "" {
			written = append(written, thumb)
		}
	}

	// A cancelled caller gets no file record.
	if err := ctx.Err(); err != nil {
		s.discardBlobs(ctx, written)
		return nil, err
	}

	var used int64
	tctx, tcancel := s.bounds.meta(ctx)
	defer tcancel()
	err = s.repos.WithTx(tctx, func(ctx context.Context, repos repomanager.Repositories) error {
		// the folder may have been deleted since precheck
		if file.FolderID != nil {
			if err := repos.Folders().Lock(ctx, userID, *file.FolderID); err != nil {
				return err
			}
		}
		if err := repos.Files().Create(ctx, file); err != nil {
			return err
		}
		var err error
		if s.enforceQuota {
			used, err = repos.Users().ReserveStorage(ctx, userID, size)
		} else {
			used, err = repos.Users().AddStorageUsed(ctx, userID, size)
		}
		return err
	})
	if err != nil {
		s.discardBlobs(ctx, written)
		if errors.Is(err, common.ErrQuotaExceeded) {
			return nil, quotaError(user.StorageUsed+size, user.StorageLimit)
		}
		return nil, common.Dependency(err)
	}

	metrics.UploadsTotal.WithLabelValues("ok").Inc()
	metrics.UploadedBytesTotal.Add(float64(size))

	res = &UploadResult{
		File:         file,
		StorageUsed:  used,
		StorageLimit: user.StorageLimit,
	}
	if used > user.StorageLimit {
		res.QuotaExceeded = true
		res.QuotaNote = fmt.Sprintf("storage quota exceeded: %d of %d bytes used", used, user.StorageLimit)
	}

	emit(ctx, s.tracker, s.logger, userID, models.EventFileUpload, map[string]any{
		"fileId":       file.ID,
		"fileName":     file.Name,
		"fileSize":     file.Size,
		"fileType":     file.Type,
		"folderId":     file.FolderID,
		"storageLimit": user.StorageLimit,
	})
	emit(ctx, s.tracker, s.logger, userID, models.EventStorageUsage, map[string]any{
		"storageUsed":  used,
		"storageLimit": user.StorageLimit,
	})
	s.logger.Info(ctx, "file uploaded", "user_id", userID, "file_id", file.ID, "size", size, "type", mime)
	return res, nil
}

// precheck validates the target folder and loads the owner before any
// write happens.
func (s *FileService) precheck(ctx context.Context, userID string, folderID *string, mime string) (*models.User, error) {
	mctx, cancel := s.bounds.meta(ctx)
	defer cancel()

	if folderID != nil {
		if err := notFoundUnlessValid(*folderID); err != nil {
			return nil, err
		}
		folder, err := s.repos.Folders().GetByID(mctx, userID, *folderID)
		if err != nil {
			return nil, common.Dependency(err)
		}
		if class := media.Class(mime); !folder.Accepts(class) {
			return nil, common.Invalid("folder %q does not accept %s files", folder.Name, class)
		}
	}
	return ensureAccount(mctx, s.repos.Users(), userID, s.defaultLimit)
}

func quotaError(wanted, limit int64) error {
	return fmt.Errorf("%w: %d of %d bytes", common.ErrQuotaExceeded, wanted, limit)
}

func uploadResultLabel(err error) string {
	switch {
	case errors.Is(err, common.ErrQuotaExceeded):
		return "quota"
	case errors.Is(err, common.ErrInvalidArgument), errors.Is(err, common.ErrNotFound):
		return "rejected"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	return "error"
}

// enrichImage fills dimensions and stores a thumbnail. It returns the
// thumbnail key when one was written. Failures only omit fields.
func (s *FileService) enrichImage(ctx context.Context, file *models.File, data []byte) string {
	w, h, err := media.Dimensions(data)
	if err != nil {
		s.logger.Debug(ctx, "image dimensions unavailable", "file_id", file.ID, "error", err)
		return ""
	}
	file.Width, file.Height = w, h

	thumb, err := media.Thumbnail(data)
	if err != nil {
		s.logger.Debug(ctx, "thumbnail not generated", "file_id", file.ID, "error", err)
		return ""
	}
	key := thumbnailKey(file.StorageKey)
	bctx, cancel := s.bounds.blobs(ctx)
	defer cancel()
	if err := s.blobs.Put(bctx, key, bytes.NewReader(thumb), int64(len(thumb)), "image/jpeg"); err != nil {
		s.logger.Debug(ctx, "thumbnail not stored", "file_id", file.ID, "error", err)
		return ""
	}
	file.ThumbnailKey = key
	return key
}

// discardBlobs removes blobs of an upload that produced no record.
func (s *FileService) discardBlobs(ctx context.Context, keys []string) {
	bctx, cancel := s.bounds.blobs(context.WithoutCancel(ctx))
	defer cancel()
	for _, k := range keys {
		if err := s.blobs.Delete(bctx, k); err != nil {
			s.logger.Warn(ctx, "orphan blob left behind", "key", k, "error", err)
		}
	}
}

func normalizeTags(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// Download streams an owned file and counts the delivery.
func (s *FileService) Download(ctx context.Context, userID, fileID string) (*Download, error) {
	if err := notFoundUnlessValid(fileID); err != nil {
		return nil, err
	}
	mctx, cancel := s.bounds.meta(ctx)
	file, err := s.repos.Files().GetByID(mctx, userID, fileID)
	cancel()
	if err != nil {
		return nil, common.Dependency(err)
	}

	d, err := deliver(ctx, s.repos, s.blobs, s.bounds, file, s.now())
	if err != nil {
		return nil, err
	}
	metrics.DownloadsTotal.WithLabelValues("owner").Inc()
	emit(ctx, s.tracker, s.logger, userID, models.EventFileDownload, map[string]any{
		"fileId":   file.ID,
		"fileName": file.Name,
		"fileSize": file.Size,
		"via":      "owner",
	})
	return d, nil
}

// deliver opens the blob and records the download on the file. The blob
// timeout stays in force until the caller closes the body.
func deliver(ctx context.Context, repos repomanager.RepositoryManager, blobs blobstore.Store, b bounds, file *models.File, now time.Time) (*Download, error) {
	bctx, bcancel := b.blobs(ctx)
	obj, err := blobs.Get(bctx, file.StorageKey)
	if err != nil {
		bcancel()
		return nil, common.Dependency(err)
	}

	mctx, mcancel := b.meta(ctx)
	err = repos.Files().RecordDownload(mctx, file.ID, now.UTC())
	mcancel()
	if err != nil {
		_ = obj.Body.Close()
		bcancel()
		return nil, common.Dependency(err)
	}

	at := now.UTC()
	file.DownloadCount++
	file.LastAccessed = &at

	contentType := obj.ContentType
	if contentType == "" {
		contentType = file.Type
	}
	return &Download{
		File:        file,
		Body:        &cancelOnClose{ReadCloser: obj.Body, cancel: bcancel},
		Size:        obj.Size,
		ContentType: contentType,
	}, nil
}

// DownloadURL returns a time-limited direct URL for an owned file. It does
// not count as a download.
func (s *FileService) DownloadURL(ctx context.Context, userID, fileID string) (string, time.Time, error) {
	p, ok := s.blobs.(blobstore.Presigner)
	if !ok {
		return "", time.Time{}, ErrPresignUnsupported
	}
	file, err := s.GetFile(ctx, userID, fileID)
	if err != nil {
		return "", time.Time{}, err
	}

	ttl := s.presignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	bctx, cancel := s.bounds.blobs(ctx)
	defer cancel()
	url, err := p.PresignGet(bctx, file.StorageKey, ttl)
	if err != nil {
		return "", time.Time{}, common.Dependency(err)
	}
	return url, s.now().Add(ttl).UTC(), nil
}

func (s *FileService) GetFile(ctx context.Context, userID, fileID string) (*models.File, error) {
	if err := notFoundUnlessValid(fileID); err != nil {
		return nil, err
	}
	mctx, cancel := s.bounds.meta(ctx)
	defer cancel()

	f, err := s.repos.Files().GetByID(mctx, userID, fileID)
	if err != nil {
		return nil, common.Dependency(err)
	}
	return f, nil
}

// ListFiles returns files newest first. A nil folderID lists every file.
func (s *FileService) ListFiles(ctx context.Context, userID string, folderID *string) ([]*models.File, error) {
	if folderID != nil && !validID(*folderID) {
		return []*models.File{}, nil
	}
	mctx, cancel := s.bounds.meta(ctx)
	defer cancel()

	files, err := s.repos.Files().ListByFolder(mctx, userID, folderID)
	if err != nil {
		return nil, common.Dependency(err)
	}
	if files == nil {
		files = []*models.File{}
	}
	return files, nil
}

func (s *FileService) DeleteFile(ctx context.Context, userID, fileID string) error {
	file, err := s.GetFile(ctx, userID, fileID)
	if err != nil {
		return err
	}
	return s.remover.remove(ctx, userID, file)
}

// fileRemover deletes one file: blob first, then metadata together with the
// quota decrement. Both the file service and folder cascade use it.
type fileRemover struct {
	repos   repomanager.RepositoryManager
	blobs   blobstore.Store
	tracker EventTracker
	logger  logging.Logger
	bounds  bounds
}

func (r *fileRemover) remove(ctx context.Context, userID string, file *models.File) error {
	bctx, cancel := r.bounds.blobs(ctx)
	err := r.blobs.Delete(bctx, file.StorageKey)
	if err == nil && file.ThumbnailKey != "" {
		if terr := r.blobs.Delete(bctx, file.ThumbnailKey); terr != nil {
			r.logger.Warn(ctx, "thumbnail not deleted", "file_id", file.ID, "error", terr)
		}
	}
	cancel()
	if err != nil {
		return common.Dependency(err)
	}

	var used int64
	mctx, mcancel := r.bounds.meta(ctx)
	defer mcancel()
	err = r.repos.WithTx(mctx, func(ctx context.Context, repos repomanager.Repositories) error {
		deleted, err := repos.Files().Delete(ctx, userID, file.ID)
		if err != nil {
			return err
		}
		used, err = repos.Users().AddStorageUsed(ctx, userID, -deleted.Size)
		return err
	})
	if err != nil {
		return common.Dependency(err)
	}

	emit(ctx, r.tracker, r.logger, userID, models.EventFileDelete, map[string]any{
		"fileId":   file.ID,
		"fileName": file.Name,
		"fileSize": file.Size,
	})
	emit(ctx, r.tracker, r.logger, userID, models.EventStorageUsage, map[string]any{
		"storageUsed": used,
	})
	r.logger.Info(ctx, "file deleted", "user_id", userID, "file_id", file.ID)
	return nil
}

// fanout notifies several progress sinks.
type fanout []progress.Sink

func (f fanout) Notify(u progress.Update) {
	for _, s := range f {
		s.Notify(u)
	}
}
