package model

import "time"

// DocumentStatus is the lifecycle state of a sellable document.
type DocumentStatus string

const (
	StatusDraft     DocumentStatus = "draft"
	StatusCompleted DocumentStatus = "completed"
	StatusExported  DocumentStatus = "exported"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusCompleted, StatusExported:
		return true
	}
	return false
}

// Document is the relational, authoritative record of a user-filled document.
// The relational row owns existence, ownership and status; CurrentState may
// additionally be mirrored into the external document store (ExternalRef is
// non-empty once a mirror has been scheduled).
type Document struct {
	ID                string         `json:"id"`
	OwnerID           string         `json:"owner_id"`
	TemplateID        string         `json:"template_id"`
	CurrentState      FieldMap       `json:"current_state"`
	SchemaFingerprint string         `json:"schema_fingerprint"`
	Status            DocumentStatus `json:"status"`
	ExternalRef       string         `json:"external_ref,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Mirrored reports whether the document payload is expected to exist in the
// external store. A miss there still only means "not yet synchronized".
func (d *Document) Mirrored() bool {
	return d.ExternalRef != ""
}
