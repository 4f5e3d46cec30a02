package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"formvault/internal/model"
	"formvault/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses parameterized queries only and contains no business logic.
type DocumentPostgres struct{}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres() *DocumentPostgres {
	return &DocumentPostgres{}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const documentColumns = "id, owner_id, template_id, current_state, schema_fingerprint, status, external_ref, created_at, updated_at"

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, q repository.Querier, doc *model.Document) (*model.Document, error) {
	state, err := json.Marshal(doc.CurrentState)
	if err != nil {
		return nil, fmt.Errorf("marshal current state: %w", err)
	}

	const query = `
		INSERT INTO documents (id, owner_id, template_id, current_state, schema_fingerprint, status, external_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + documentColumns
	row := q.QueryRowContext(ctx, query,
		doc.ID,
		doc.OwnerID,
		doc.TemplateID,
		state,
		doc.SchemaFingerprint,
		doc.Status,
		doc.ExternalRef,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	return scanDocument(row)
}

// FindByID fetches a single document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, q repository.Querier, id string) (*model.Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	return scanDocument(q.QueryRowContext(ctx, query, id))
}

// LockForUpdate fetches the document row with FOR UPDATE.
func (r *DocumentPostgres) LockForUpdate(ctx context.Context, q repository.Querier, id string) (*model.Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 FOR UPDATE`
	return scanDocument(q.QueryRowContext(ctx, query, id))
}

// UpdateState overwrites the live payload, fingerprint and status.
func (r *DocumentPostgres) UpdateState(ctx context.Context, q repository.Querier, id string, state model.FieldMap, fingerprint string, status model.DocumentStatus, updatedAt time.Time) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal current state: %w", err)
	}

	const query = `
		UPDATE documents
		SET current_state = $2, schema_fingerprint = $3, status = $4, updated_at = $5
		WHERE id = $1
	`
	res, err := q.ExecContext(ctx, query, id, payload, fingerprint, status, updatedAt)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetExternalRef records the mirror reference for the document.
func (r *DocumentPostgres) SetExternalRef(ctx context.Context, q repository.Querier, id, externalRef string) error {
	const query = `UPDATE documents SET external_ref = $2 WHERE id = $1`
	_, err := q.ExecContext(ctx, query, id, externalRef)
	return err
}

// ListByOwner returns documents of one owner using LIMIT/OFFSET pagination and a total count.
func (r *DocumentPostgres) ListByOwner(ctx context.Context, q repository.Querier, ownerID string, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	const qCount = `SELECT COUNT(*) FROM documents WHERE owner_id = $1`
	var total int
	if err := q.QueryRowContext(ctx, qCount, ownerID).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := q.QueryContext(ctx, qList, ownerID, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		doc, err := scanDocumentRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Document]{Items: items, Total: total}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row *sql.Row) (*model.Document, error) {
	return scanDocumentRow(row)
}

func scanDocumentRow(row rowScanner) (*model.Document, error) {
	var (
		d     model.Document
		state []byte
	)
	if err := row.Scan(
		&d.ID,
		&d.OwnerID,
		&d.TemplateID,
		&state,
		&d.SchemaFingerprint,
		&d.Status,
		&d.ExternalRef,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(state, &d.CurrentState); err != nil {
		return nil, fmt.Errorf("unmarshal current state: %w", err)
	}
	return &d, nil
}
