package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/cloudvault/internal/common"
	"github.com/dmitrijs2005/cloudvault/internal/server/models"
	"github.com/dmitrijs2005/cloudvault/internal/server/services"
	"github.com/go-chi/chi/v5"
)

const (
	// maxUploadBytes bounds a single multipart upload request.
	maxUploadBytes = 512 << 20
	// multipartMemory is kept in memory before parts spill to disk.
	multipartMemory = 32 << 20
)

// upload accepts multipart/form-data with a "file" part and optional
// folderId, name, tags (comma separated), confidentiality, importance,
// allowSharing and uploadId fields. X-Upload-ID overrides uploadId.
func (h *handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		fail(w, common.Invalid("multipart form: %v", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	part, header, err := r.FormFile("file")
	if err != nil {
		fail(w, common.Invalid("file part: %v", err))
		return
	}
	data, err := io.ReadAll(part)
	_ = part.Close()
	if err != nil {
		fail(w, common.Invalid("read file part: %v", err))
		return
	}

	in := services.UploadInput{
		Data:            data,
		FileName:        header.Filename,
		DeclaredType:    header.Header.Get("Content-Type"),
		Confidentiality: models.Confidentiality(r.FormValue("confidentiality")),
		Importance:      models.Importance(r.FormValue("importance")),
		UploadID:        r.FormValue("uploadId"),
	}
	if name := r.FormValue("name"); name != "" {
		in.FileName = name
	}
	if id := r.FormValue("folderId"); id != "" {
		in.FolderID = &id
	}
	if tags := r.FormValue("tags"); tags != "" {
		in.Tags = strings.Split(tags, ",")
	}
	if v := r.FormValue("allowSharing"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			fail(w, common.Invalid("allowSharing: %v", err))
			return
		}
		in.AllowSharing = &b
	}
	if id := r.Header.Get("X-Upload-ID"); id != "" {
		in.UploadID = id
	}

	res, err := h.svc.Files.Upload(r.Context(), userID(r.Context()), in)
	if err != nil {
		fail(w, err)
		return
	}
	msg := "file uploaded"
	if res.QuotaExceeded {
		msg = res.QuotaNote
	}
	ok(w, http.StatusCreated, msg, res)
}

func (h *handler) listFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.svc.Files.ListFiles(r.Context(), userID(r.Context()), optionalQuery(r, "folderId"))
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, fmt.Sprintf("%d files", len(files)), files)
}

func (h *handler) getFile(w http.ResponseWriter, r *http.Request) {
	f, err := h.svc.Files.GetFile(r.Context(), userID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, "file", f)
}

func (h *handler) deleteFile(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Files.DeleteFile(r.Context(), userID(r.Context()), chi.URLParam(r, "id")); err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, "file deleted", nil)
}

func (h *handler) download(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Files.Download(r.Context(), userID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err)
		return
	}
	h.stream(w, r, d)
}

// stream copies a download to the client. Once headers are out, failures
// can only be logged.
func (h *handler) stream(w http.ResponseWriter, r *http.Request, d *services.Download) {
	defer d.Body.Close()

	w.Header().Set("Content-Type", d.ContentType)
	if d.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(d.Size, 10))
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.File.Name}))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, d.Body); err != nil && !errors.Is(err, r.Context().Err()) {
		h.logger.Warn(r.Context(), "download interrupted", "file_id", d.File.ID, "error", err)
	}
}

type downloadURLResponse struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expiresAt"`
}

func (h *handler) downloadURL(w http.ResponseWriter, r *http.Request) {
	url, exp, err := h.svc.Files.DownloadURL(r.Context(), userID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, "download url", downloadURLResponse{URL: url, ExpiresAt: exp.Format(timeLayout)})
}
