package models

import "time"

// FileObject is the metadata row for a shared file; the bytes live in
// object storage under Path.
type FileObject struct {
	ID            string    `json:"id" db:"id"`
	OrgID         string    `json:"org_id" db:"org_id"`
	Name          string    `json:"name" db:"name"`
	Path          string    `json:"path" db:"path"`
	ContentType   string    `json:"content_type,omitempty" db:"content_type"`
	Size          int64     `json:"size" db:"size"`
	UploadedBy    string    `json:"uploaded_by" db:"uploaded_by"`
	ClientVisible bool      `json:"client_visible" db:"client_visible"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
