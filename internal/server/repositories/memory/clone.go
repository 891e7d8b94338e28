package memory

import (
	"cmp"
	"maps"
	"slices"
	"time"

	"github.com/dmitrijs2005/cloudvault/internal/server/models"
)

func ptr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneUser(u *models.User) *models.User {
	c := *u
	return &c
}

func cloneFolder(f *models.Folder) *models.Folder {
	c := *f
	c.ParentID = ptr(f.ParentID)
	c.AllowedFileTypes = slices.Clone(f.AllowedFileTypes)
	return &c
}

func cloneFile(f *models.File) *models.File {
	c := *f
	c.FolderID = ptr(f.FolderID)
	c.LastAccessed = ptr(f.LastAccessed)
	c.Tags = slices.Clone(f.Tags)
	return &c
}

func cloneLink(l *models.ShareLink) *models.ShareLink {
	c := *l
	c.ExpiresAt = ptr(l.ExpiresAt)
	c.DownloadLimit = ptr(l.DownloadLimit)
	c.Recipients = slices.Clone(l.Recipients)
	c.PasswordHash = slices.Clone(l.PasswordHash)
	c.PasswordSalt = slices.Clone(l.PasswordSalt)
	return &c
}

func cloneEvent(e *models.AnalyticsEvent) *models.AnalyticsEvent {
	c := *e
	c.EventData = maps.Clone(e.EventData)
	if c.EventData == nil {
		c.EventData = map[string]any{}
	}
	return &c
}

// newestFirst orders by creation time descending; records created in the
// same tick fall back to reverse insertion order.
func newestFirst[T any](s *store, items []T, key func(T) (string, time.Time)) {
	slices.SortFunc(items, func(a, b T) int {
		ida, ta := key(a)
		idb, tb := key(b)
		if c := tb.Compare(ta); c != 0 {
			return c
		}
		return cmp.Compare(s.seqs[idb], s.seqs[ida])
	})
}
