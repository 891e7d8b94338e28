package models

import (
	"slices"
	"time"
)

// Folder is a node of a user's folder tree. ParentID is nil for root-level
// folders and never changes after creation, which keeps the tree acyclic.
type Folder struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	ParentID         *string         `json:"parentId"`
	UserID           string          `json:"userId"`
	AllowedFileTypes []string        `json:"allowedFileTypes"`
	Confidentiality  Confidentiality `json:"confidentiality"`
	Importance       Importance      `json:"importance"`
	AllowSharing     bool            `json:"allowSharing"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// Accepts reports whether a file of the given MIME class may be stored here.
func (f *Folder) Accepts(class string) bool {
	if len(f.AllowedFileTypes) == 0 || slices.Contains(f.AllowedFileTypes, AllFileTypes) {
		return true
	}
	return slices.Contains(f.AllowedFileTypes, class)
}
