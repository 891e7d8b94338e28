package models

import "time"

// ShareLink grants anonymous, bounded access to one file.
type ShareLink struct {
	ID            string     `json:"id"`
	FileID        string     `json:"fileId"`
	UserID        string     `json:"userId"`
	Token         string     `json:"token"`
	ExpiresAt     *time.Time `json:"expiresAt"`
	DownloadLimit *int64     `json:"downloadLimit"`
	DownloadCount int64      `json:"downloadCount"`
	IsActive      bool       `json:"isActive"`
	Recipients    []string   `json:"recipients"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`

	// Optional password protection (argon2id).
	PasswordHash []byte `json:"-"`
	PasswordSalt []byte `json:"-"`
}

// Usable reports whether the link would currently admit one more download.
// The authoritative check is the store's conditional update; this mirrors it
// for callers that only display link state.
func (l *ShareLink) Usable(now time.Time) bool {
	if !l.IsActive {
		return false
	}
	if l.ExpiresAt != nil && !now.Before(*l.ExpiresAt) {
		return false
	}
	if l.DownloadLimit != nil && l.DownloadCount >= *l.DownloadLimit {
		return false
	}
	return true
}
