package attachments

import "time"

// MaxFileSize is the byte ceiling for a single uploaded file. Enforced
// before any bytes reach the object store.
const MaxFileSize = 10_485_760

// Attachment is a stored file belonging to a project request. The
// storage key is private; clients reach the bytes only through a
// short-lived signed URL.
type Attachment struct {
	ID         int64     `json:"id"`
	RequestID  int64     `json:"request_id"`
	UploaderID int64     `json:"uploader_id"`
	FileName   string    `json:"file_name"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	StorageKey string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// UploadResult reports the outcome for one file of a multi-file
// upload. Files succeed or fail independently.
type UploadResult struct {
	FileName   string      `json:"file_name"`
	Attachment *Attachment `json:"attachment,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// UploadSummary aggregates a batch upload.
type UploadSummary struct {
	Uploaded int            `json:"uploaded"`
	Total    int            `json:"total"`
	Results  []UploadResult `json:"results"`
}

// allowedMimeTypes is the upload allow-list. Keys are the declared
// content types, values the canonical extension used in storage keys.
var allowedMimeTypes = map[string]string{
	"image/jpeg":         ".jpg",
	"image/png":          ".png",
	"image/gif":          ".gif",
	"image/webp":         ".webp",
	"application/pdf":    ".pdf",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"application/vnd.ms-excel": ".xls",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": ".xlsx",
	"text/plain": ".txt",
	"text/csv":   ".csv",
}

// AllowedMimeType reports whether uploads may declare mimeType and, if
// so, the extension storage keys use for it.
func AllowedMimeType(mimeType string) (string, bool) {
	ext, ok := allowedMimeTypes[mimeType]
	return ext, ok
}
