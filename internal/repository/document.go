package repository

import (
	"context"
	"time"

	"formvault/internal/model"
)

// DocumentRepository defines persistence for the authoritative document rows.
type DocumentRepository interface {
	// Create inserts a new document row and returns the stored record.
	Create(ctx context.Context, q Querier, doc *model.Document) (*model.Document, error)

	// FindByID returns a document by its ID. Missing rows surface sql.ErrNoRows.
	FindByID(ctx context.Context, q Querier, id string) (*model.Document, error)

	// LockForUpdate loads the document row with FOR UPDATE, serializing every
	// mutation and snapshot against the same document. Must run inside a
	// transaction.
	LockForUpdate(ctx context.Context, q Querier, id string) (*model.Document, error)

	// UpdateState overwrites the live payload, fingerprint and status.
	UpdateState(ctx context.Context, q Querier, id string, state model.FieldMap, fingerprint string, status model.DocumentStatus, updatedAt time.Time) error

	// SetExternalRef records that a mirror has been scheduled for the document.
	SetExternalRef(ctx context.Context, q Querier, id, externalRef string) error

	// ListByOwner returns the owner's documents with limit/offset pagination.
	ListByOwner(ctx context.Context, q Querier, ownerID string, pq PageQuery) (*PageResult[model.Document], error)
}
