// Package media derives content metadata for uploads: MIME type, MIME class,
// safe storage names, image dimensions and thumbnails.
package media

import (
	"bytes"
	"path/filepath"
	"strings"
)

const OctetStream = "application/octet-stream"

// MIME classes accepted in Folder.AllowedFileTypes.
const (
	ClassImage    = "image"
	ClassVideo    = "video"
	ClassAudio    = "audio"
	ClassDocument = "document"
	ClassArchive  = "archive"
	ClassText     = "text"
	ClassOther    = "other"
)

type signature struct {
	magic []byte
	mime  string
}

var signatures = []signature{
	{[]byte{0xFF, 0xD8}, "image/jpeg"},
	{[]byte{0x89, 0x50, 0x4E, 0x47}, "image/png"},
	{[]byte{0x47, 0x49, 0x46}, "image/gif"},
	{[]byte{0x52, 0x49, 0x46, 0x46}, "image/webp"},
}

var byExtension = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".svg":  "image/svg+xml",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".odt":  "application/vnd.oasis.opendocument.text",
	".rtf":  "application/rtf",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".html": "text/html",
	".htm":  "text/html",
	".xml":  "application/xml",
	".json": "application/json",
	".zip":  "application/zip",
	".gz":   "application/gzip",
	".tar":  "application/x-tar",
	".7z":   "application/x-7z-compressed",
	".rar":  "application/vnd.rar",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
}

// DetectMIME picks the MIME type of an upload. Magic numbers win over the
// file extension, the extension wins over the client's declared type, and
// application/octet-stream is the last resort. A declared type is used only
// when it is specific.
func DetectMIME(data []byte, fileName, declared string) string {
	if m := sniff(data); m != "" {
		return m
	}
	if m, ok := byExtension[strings.ToLower(filepath.Ext(fileName))]; ok {
		return m
	}
	declared = strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared != "" && declared != OctetStream && strings.Contains(declared, "/") && !strings.HasSuffix(declared, "/*") {
		return declared
	}
	return OctetStream
}

func sniff(data []byte) string {
	for _, s := range signatures {
		if !bytes.HasPrefix(data, s.magic) {
			continue
		}
		// RIFF is a container; only the WEBP form is an image.
		if s.mime == "image/webp" && len(data) >= 12 {
			switch string(data[8:12]) {
			case "WAVE":
				return "audio/wav"
			case "AVI ":
				return "video/x-msvideo"
			}
		}
		return s.mime
	}
	return ""
}

// Class maps a MIME type onto the coarse classes folders filter on.
func Class(mime string) string {
	mime = strings.ToLower(mime)
	switch {
	case strings.HasPrefix(mime, "image/"):
		return ClassImage
	case strings.HasPrefix(mime, "video/"):
		return ClassVideo
	case strings.HasPrefix(mime, "audio/"):
		return ClassAudio
	case strings.HasPrefix(mime, "text/"):
		return ClassText
	}

	switch mime {
	case "application/pdf", "application/msword", "application/rtf",
		"application/vnd.ms-excel", "application/vnd.ms-powerpoint",
		"application/vnd.oasis.opendocument.text":
		return ClassDocument
	case "application/zip", "application/gzip", "application/x-tar",
		"application/x-7z-compressed", "application/vnd.rar":
		return ClassArchive
	case "application/json", "application/xml":
		return ClassText
	}
	if strings.HasPrefix(mime, "application/vnd.openxmlformats-officedocument.") {
		return ClassDocument
	}
	return ClassOther
}

// IsImage reports whether thumbnails can be attempted for mime.
func IsImage(mime string) bool {
	return Class(mime) == ClassImage
}

// SanitizeFileName replaces every character outside [A-Za-z0-9.-] with '_'.
// A multi-byte character, or an invalid UTF-8 byte, becomes a single '_'.
func SanitizeFileName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
