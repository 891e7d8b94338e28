package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/cloudvault/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// sharePasswordHeader carries the optional share-link password so it stays
// out of URLs and access logs.
const sharePasswordHeader = "X-Share-Password"

type createShareRequest struct {
	ExpiresAt     *time.Time `json:"expiresAt"`
	DownloadLimit *int64     `json:"downloadLimit"`
	Recipients    []string   `json:"recipients"`
	Password      string     `json:"password"`
}

func (h *handler) createShare(w http.ResponseWriter, r *http.Request) {
	var req createShareRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, err)
		return
	}
	link, err := h.svc.Shares.CreateShareLink(r.Context(), userID(r.Context()), chi.URLParam(r, "id"), services.CreateShareInput{
		ExpiresAt:     req.ExpiresAt,
		DownloadLimit: req.DownloadLimit,
		Recipients:    req.Recipients,
		Password:      req.Password,
	})
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusCreated, "share link created", link)
}

func (h *handler) listShares(w http.ResponseWriter, r *http.Request) {
	links, err := h.svc.Shares.ListShareLinks(r.Context(), userID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, fmt.Sprintf("%d share links", len(links)), links)
}

func (h *handler) revokeShare(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Shares.RevokeShareLink(r.Context(), userID(r.Context()), chi.URLParam(r, "id")); err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, "share link revoked", nil)
}

func (h *handler) openShare(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Shares.OpenShareLink(r.Context(), chi.URLParam(r, "token"), r.Header.Get(sharePasswordHeader))
	if err != nil {
		fail(w, err)
		return
	}
	h.stream(w, r, d)
}
