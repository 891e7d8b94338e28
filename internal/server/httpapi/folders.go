package httpapi

import (
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/cloudvault/internal/server/models"
	"github.com/dmitrijs2005/cloudvault/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type createFolderRequest struct {
	Name             string                 `json:"name"`
	ParentID         *string                `json:"parentId"`
	AllowedFileTypes []string               `json:"allowedFileTypes"`
	Confidentiality  models.Confidentiality `json:"confidentiality"`
	Importance       models.Importance      `json:"importance"`
	AllowSharing     *bool                  `json:"allowSharing"`
}

func (h *handler) createFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, err)
		return
	}
	f, err := h.svc.Folders.CreateFolder(r.Context(), userID(r.Context()), services.CreateFolderInput{
		Name:             req.Name,
		ParentID:         req.ParentID,
		AllowedFileTypes: req.AllowedFileTypes,
		Confidentiality:  req.Confidentiality,
		Importance:       req.Importance,
		AllowSharing:     req.AllowSharing,
	})
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusCreated, "folder created", f)
}

// listFolders lists the children of ?parentId=, or root folders without it.
func (h *handler) listFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.svc.Folders.ListFolders(r.Context(), userID(r.Context()), optionalQuery(r, "parentId"))
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, fmt.Sprintf("%d folders", len(folders)), folders)
}

func (h *handler) listAllFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.svc.Folders.ListAllFolders(r.Context(), userID(r.Context()))
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, fmt.Sprintf("%d folders", len(folders)), folders)
}

func (h *handler) getFolder(w http.ResponseWriter, r *http.Request) {
	f, err := h.svc.Folders.GetFolder(r.Context(), userID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, "folder", f)
}

func (h *handler) folderPath(w http.ResponseWriter, r *http.Request) {
	path, err := h.svc.Folders.GetFolderPath(r.Context(), userID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, "folder path", path)
}

// deleteFolder reports partial failures in the body with a 200; callers
// inspect data.failed.
func (h *handler) deleteFolder(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Folders.DeleteFolder(r.Context(), userID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err)
		return
	}
	msg := fmt.Sprintf("deleted %d items", len(res.Succeeded))
	if len(res.Failed) > 0 {
		msg = fmt.Sprintf("deleted %d items, %d failed", len(res.Succeeded), len(res.Failed))
	}
	ok(w, http.StatusOK, msg, res)
}
