package services

import (
	"encoding/json"
	"math"
	"slices"
	"strconv"

	"github.com/dmitrijs2005/cloudvault/internal/common"
	"github.com/dmitrijs2005/cloudvault/internal/server/models"
)

const (
	topFilesCount       = 5
	recentActivityCount = 10
)

type StorageUsage struct {
	Used       int64 `json:"used"`
	Limit      int64 `json:"limit"`
	Percentage int   `json:"percentage"`
}

type TopFile struct {
	FileName  string `json:"fileName"`
	Downloads int    `json:"downloads"`
}

type Report struct {
	TotalEvents    int                      `json:"totalEvents"`
	EventsByType   map[string]int           `json:"eventsByType"`
	StorageUsage   StorageUsage             `json:"storageUsage"`
	TopFiles       []TopFile                `json:"topFiles"`
	RecentActivity []*models.AnalyticsEvent `json:"recentActivity"`
}

// BuildReport is a pure fold over evs, which are expected newest first.
//
// Storage used is the sum of fileSize over file_upload events. The limit is
// the storageLimit of the last event folded that carries one, so with
// newest-first input the oldest such event wins. Top files rank file_download
// events by fileName; ties keep first-encounter order.
func BuildReport(evs []*models.AnalyticsEvent) *Report {
	r := &Report{
		TotalEvents:    len(evs),
		EventsByType:   map[string]int{},
		StorageUsage:   StorageUsage{Limit: common.DefaultStorageLimit},
		TopFiles:       []TopFile{},
		RecentActivity: []*models.AnalyticsEvent{},
	}

	downloads := map[string]int{}
	var order []string

	for _, e := range evs {
		if e == nil {
			continue
		}
		r.EventsByType[string(e.EventType)]++

		if e.EventType == models.EventFileUpload {
			if size, ok := number(e.EventData["fileSize"]); ok {
				r.StorageUsage.Used += size
			}
		}
		if limit, ok := number(e.EventData["storageLimit"]); ok {
			r.StorageUsage.Limit = limit
		}
		if e.EventType == models.EventFileDownload {
			if name, ok := e.EventData["fileName"].(string); ok && name != "" {
				if _, seen := downloads[name]; !seen {
					order = append(order, name)
				}
				downloads[name]++
			}
		}
		if len(r.RecentActivity) < recentActivityCount {
			r.RecentActivity = append(r.RecentActivity, e)
		}
	}

	if r.StorageUsage.Limit != 0 {
		r.StorageUsage.Percentage = int(math.Round(float64(r.StorageUsage.Used) / float64(r.StorageUsage.Limit) * 100))
	}

	for _, name := range order {
		r.TopFiles = append(r.TopFiles, TopFile{FileName: name, Downloads: downloads[name]})
	}
	slices.SortStableFunc(r.TopFiles, func(a, b TopFile) int { return b.Downloads - a.Downloads })
	if len(r.TopFiles) > topFilesCount {
		r.TopFiles = r.TopFiles[:topFilesCount]
	}
	return r
}

// number accepts the numeric shapes event data takes after a JSON round
// trip or when built in process.
func number(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return i, true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}
