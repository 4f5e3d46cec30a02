package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"formvault/internal/model"
	"formvault/internal/repository"
)

// VersionPostgres is a PostgreSQL implementation of repository.VersionRepository.
type VersionPostgres struct{}

// NewVersionPostgres creates a new VersionPostgres repository.
func NewVersionPostgres() *VersionPostgres {
	return &VersionPostgres{}
}

var _ repository.VersionRepository = (*VersionPostgres)(nil)

const versionColumns = "id, document_id, version_number, payload, label, change_type, created_by, created_at"

// versionPayload is the JSONB shape of the payload column: the full state
// plus the schema fingerprint it was captured under.
type versionPayload struct {
	State             model.FieldMap `json:"state"`
	SchemaFingerprint string         `json:"schema_fingerprint"`
}

// Insert persists the snapshot with the next gapless version number. The
// number is computed in the INSERT itself; callers hold the document row lock
// so two transactions cannot observe the same MAX.
func (r *VersionPostgres) Insert(ctx context.Context, q repository.Querier, v *model.DocumentVersion) (*model.DocumentVersion, error) {
	payload, err := json.Marshal(versionPayload{State: v.State, SchemaFingerprint: v.SchemaFingerprint})
	if err != nil {
		return nil, fmt.Errorf("marshal version payload: %w", err)
	}

	const query = `
		INSERT INTO document_versions (id, document_id, version_number, payload, label, change_type, created_by, created_at)
		SELECT $1, $2, COALESCE(MAX(version_number), 0) + 1, $3, $4, $5, $6, $7
		FROM document_versions WHERE document_id = $2
		RETURNING ` + versionColumns
	row := q.QueryRowContext(ctx, query,
		v.ID,
		v.DocumentID,
		payload,
		v.Label,
		v.ChangeType,
		v.CreatedBy,
		v.CreatedAt,
	)
	return scanVersionRow(row)
}

// FindByNumber fetches one snapshot of a document.
func (r *VersionPostgres) FindByNumber(ctx context.Context, q repository.Querier, documentID string, versionNumber int) (*model.DocumentVersion, error) {
	const query = `SELECT ` + versionColumns + ` FROM document_versions WHERE document_id = $1 AND version_number = $2`
	return scanVersionRow(q.QueryRowContext(ctx, query, documentID, versionNumber))
}

// ListByDocument returns all snapshots ordered by version_number ascending.
func (r *VersionPostgres) ListByDocument(ctx context.Context, q repository.Querier, documentID string) ([]model.DocumentVersion, error) {
	const query = `
		SELECT ` + versionColumns + `
		FROM document_versions
		WHERE document_id = $1
		ORDER BY version_number ASC
	`
	rows, err := q.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := make([]model.DocumentVersion, 0)
	for rows.Next() {
		v, err := scanVersionRow(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	return versions, rows.Err()
}

// MaxVersion returns the highest version number of the document, or 0.
func (r *VersionPostgres) MaxVersion(ctx context.Context, q repository.Querier, documentID string) (int, error) {
	const query = `SELECT COALESCE(MAX(version_number), 0) FROM document_versions WHERE document_id = $1`
	var max int
	if err := q.QueryRowContext(ctx, query, documentID).Scan(&max); err != nil {
		return 0, err
	}
	return max, nil
}

// Prune deletes every snapshot except the keepCount highest-numbered ones.
func (r *VersionPostgres) Prune(ctx context.Context, q repository.Querier, documentID string, keepCount int) ([]string, error) {
	const query = `
		DELETE FROM document_versions
		WHERE document_id = $1
		  AND version_number NOT IN (
			SELECT version_number FROM document_versions
			WHERE document_id = $1
			ORDER BY version_number DESC
			LIMIT $2
		  )
		RETURNING id
	`
	rows, err := q.QueryContext(ctx, query, documentID, keepCount)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deleted := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		deleted = append(deleted, id)
	}
	return deleted, rows.Err()
}

func scanVersionRow(row rowScanner) (*model.DocumentVersion, error) {
	var (
		v          model.DocumentVersion
		rawPayload []byte
	)
	if err := row.Scan(
		&v.ID,
		&v.DocumentID,
		&v.VersionNumber,
		&rawPayload,
		&v.Label,
		&v.ChangeType,
		&v.CreatedBy,
		&v.CreatedAt,
	); err != nil {
		return nil, err
	}

	var payload versionPayload
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal version payload: %w", err)
	}
	v.State = payload.State
	v.SchemaFingerprint = payload.SchemaFingerprint
	return &v, nil
}
