// Package version maintains the ordered, immutable version history of a
// document. Rows are append-only: a version is never updated or deleted, and
// ordering by version number is the canonical history.
package version

import (
	"time"

	id "examflow/pkg/domain"
)

// Version is an immutable snapshot of a document's content. ContentLocator and
// KeyHandle are opaque: the blob store hands out the locator and the key
// handle identifies whatever encrypted the bytes. Neither is ever inspected
// here.
type Version struct {
	DocumentID     id.DocumentID `json:"document_id"`
	VersionNumber  int           `json:"version_number"`
	ContentLocator string        `json:"content_locator"`
	KeyHandle      string        `json:"key_handle"`
	UploadedBy     id.UserID     `json:"uploaded_by"`
	Description    string        `json:"description"`
	CreatedAt      time.Time     `json:"created_at"`
}
