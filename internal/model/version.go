package model

import (
	"fmt"
	"time"
)

// ChangeType records why a snapshot was taken.
type ChangeType string

const (
	ChangeManual     ChangeType = "manual"
	ChangeAuto       ChangeType = "auto"
	ChangePreRestore ChangeType = "pre-restore"
)

// PreRestoreLabel is the label attached to the automatic backup snapshot
// created immediately before a restore overwrites the live state.
const PreRestoreLabel = "pre-restore backup"

// DocumentVersion is an immutable snapshot of a document's full state.
// Version numbers are monotonic per document, starting at 1, with no gaps.
// Rows are append-only: a version is never updated, only deleted by cleanup.
type DocumentVersion struct {
	ID                string     `json:"id"`
	DocumentID        string     `json:"document_id"`
	VersionNumber     int        `json:"version_number"`
	State             FieldMap   `json:"state"`
	SchemaFingerprint string     `json:"schema_fingerprint"`
	Label             string     `json:"label"`
	ChangeType        ChangeType `json:"change_type"`
	CreatedBy         string     `json:"created_by"`
	CreatedAt         time.Time  `json:"created_at"`
}

const (
	previewMaxFields   = 3
	previewMaxValueLen = 50
)

// VersionSummary is the listing view of a snapshot.
type VersionSummary struct {
	ID            string            `json:"id"`
	VersionNumber int               `json:"version_number"`
	Label         string            `json:"label"`
	ChangeType    ChangeType        `json:"change_type"`
	CreatedBy     string            `json:"created_by"`
	CreatedAt     time.Time         `json:"created_at"`
	IsCurrent     bool              `json:"is_current"`
	Preview       map[string]string `json:"preview"`
}

// Summarize builds the listing view of the snapshot. The preview carries at
// most three non-empty fields in sorted order, values truncated to 50 chars.
func (v *DocumentVersion) Summarize(currentVersion int) VersionSummary {
	preview := make(map[string]string, previewMaxFields)
	for _, name := range v.State.SortedFields() {
		if len(preview) == previewMaxFields {
			break
		}
		value := v.State[name]
		if value == nil {
			continue
		}
		rendered := fmt.Sprintf("%v", value)
		if rendered == "" {
			continue
		}
		// truncate by runes so a multibyte character is never split
		if r := []rune(rendered); len(r) > previewMaxValueLen {
			rendered = string(r[:previewMaxValueLen])
		}
		preview[name] = rendered
	}

	return VersionSummary{
		ID:            v.ID,
		VersionNumber: v.VersionNumber,
		Label:         v.Label,
		ChangeType:    v.ChangeType,
		CreatedBy:     v.CreatedBy,
		CreatedAt:     v.CreatedAt,
		IsCurrent:     v.VersionNumber == currentVersion,
		Preview:       preview,
	}
}
