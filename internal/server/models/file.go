package models

import "time"

// File describes server-side metadata for a blob stored under StorageKey.
type File struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Type            string          `json:"type"`
	Size            int64           `json:"size"`
	StorageKey      string          `json:"storageKey"`
	FolderID        *string         `json:"folderId"`
	UserID          string          `json:"userId"`
	Tags            []string        `json:"tags"`
	Confidentiality Confidentiality `json:"confidentiality"`
	Importance      Importance      `json:"importance"`
	AllowSharing    bool            `json:"allowSharing"`
	DownloadCount   int64           `json:"downloadCount"`
	LastAccessed    *time.Time      `json:"lastAccessed"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`

	// Enrichment, all optional.
	ContentHash  string `json:"contentHash,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	ThumbnailKey string `json:"thumbnailKey,omitempty"`
}
