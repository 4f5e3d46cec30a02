package repository

import (
	"context"

	"formvault/internal/model"
)

// VersionRepository defines persistence for the append-only snapshot log.
// Version numbers are assigned by Insert; rows are never updated.
type VersionRepository interface {
	// Insert persists the snapshot with the next version number for its
	// document and returns the stored row. Callers must hold the document row
	// lock so concurrent inserts cannot race the number assignment; the
	// (document_id, version_number) unique constraint backstops any gap.
	Insert(ctx context.Context, q Querier, v *model.DocumentVersion) (*model.DocumentVersion, error)

	// FindByNumber returns one snapshot. Missing rows surface sql.ErrNoRows.
	FindByNumber(ctx context.Context, q Querier, documentID string, versionNumber int) (*model.DocumentVersion, error)

	// ListByDocument returns all snapshots of a document ordered by
	// version_number ascending.
	ListByDocument(ctx context.Context, q Querier, documentID string) ([]model.DocumentVersion, error)

	// MaxVersion returns the highest version number, or 0 when none exist.
	MaxVersion(ctx context.Context, q Querier, documentID string) (int, error)

	// Prune deletes every snapshot except the keepCount highest-numbered ones
	// and returns the IDs of the deleted rows.
	Prune(ctx context.Context, q Querier, documentID string, keepCount int) ([]string, error)
}
