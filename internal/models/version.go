package models

import "time"

// Version is an immutable snapshot of a file's content.
type Version struct {
	FileID        string    `json:"file_id"`
	VersionNumber int       `json:"version_number"`
	ContentHandle string    `json:"-"`
	Size          int64     `json:"size"`
	UploadedBy    string    `json:"uploaded_by"`
	CreatedAt     time.Time `json:"created_at"`
}
