// Package models defines server-side data models persisted in the metadata store.
package models

// Confidentiality classifies how sensitive a folder or file is.
type Confidentiality string

const (
	ConfidentialityPublic       Confidentiality = "public"
	ConfidentialityInternal     Confidentiality = "internal"
	ConfidentialityConfidential Confidentiality = "confidential"
	ConfidentialityRestricted   Confidentiality = "restricted"
)

func (c Confidentiality) Valid() bool {
	switch c {
	case ConfidentialityPublic, ConfidentialityInternal, ConfidentialityConfidential, ConfidentialityRestricted:
		return true
	}
	return false
}

type Importance string

const (
	ImportanceLow      Importance = "low"
	ImportanceMedium   Importance = "medium"
	ImportanceHigh     Importance = "high"
	ImportanceCritical Importance = "critical"
)

func (i Importance) Valid() bool {
	switch i {
	case ImportanceLow, ImportanceMedium, ImportanceHigh, ImportanceCritical:
		return true
	}
	return false
}

// EventType names an analytics event. The set is open: the aggregator only
// requires a non-empty value.
type EventType string

const (
	EventFileUpload   EventType = "file_upload"
	EventFileDownload EventType = "file_download"
	EventFileShare    EventType = "file_share"
	EventFolderCreate EventType = "folder_create"
	EventStorageUsage EventType = "storage_usage"
	EventFileDelete   EventType = "file_delete"
	EventFolderDelete EventType = "folder_delete"
)

// AllFileTypes is the AllowedFileTypes wildcard.
const AllFileTypes = "all"
