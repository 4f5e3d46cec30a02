package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"formvault/internal/database"
	"formvault/internal/model"
	"formvault/internal/outbox"
	"formvault/internal/repository"
)

// VersionService manages the snapshot history of documents: explicit
// snapshots, restores, diffs and retention.
type VersionService interface {
	// CreateVersion snapshots the document's current state under the next
	// version number.
	CreateVersion(ctx context.Context, documentID, label, createdBy string) (*model.DocumentVersion, error)

	// RestoreVersion overwrites the live state with a past snapshot. A backup
	// snapshot of the pre-restore state is created first, so a restore is
	// always reversible through another restore. When the target version does
	// not exist, nothing is written.
	RestoreVersion(ctx context.Context, documentID string, versionNumber int, restoredBy string) (*model.Document, error)

	// CompareVersions returns the field-level diff between two snapshots,
	// sorted by field name.
	CompareVersions(ctx context.Context, documentID string, from, to int) ([]model.DiffEntry, error)

	// CleanupOldVersions keeps the keepCount highest-numbered snapshots and
	// permanently deletes the rest from both stores. Irreversible.
	CleanupOldVersions(ctx context.Context, documentID string, keepCount int) (int, error)

	// ListVersions returns the document's snapshots in version order with
	// previews and the current marker.
	ListVersions(ctx context.Context, documentID string) ([]model.VersionSummary, error)
}

type versionService struct {
	db        *sql.DB
	documents repository.DocumentRepository
	versions  repository.VersionRepository
	recorder  outbox.EventRecorder
	cache     StateCache
	log       *zap.Logger
}

// NewVersionService constructs a VersionService. cache may be nil.
func NewVersionService(
	db *sql.DB,
	documents repository.DocumentRepository,
	versions repository.VersionRepository,
	recorder outbox.EventRecorder,
	cache StateCache,
	log *zap.Logger,
) VersionService {
	return &versionService{
		db:        db,
		documents: documents,
		versions:  versions,
		recorder:  recorder,
		cache:     cache,
		log:       log,
	}
}

func (s *versionService) CreateVersion(ctx context.Context, documentID, label, createdBy string) (*model.DocumentVersion, error) {
	if documentID == "" {
		return nil, ErrIDRequired
	}

	var created *model.DocumentVersion
	err := database.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
		doc, err := s.documents.LockForUpdate(ctx, tx, documentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		v := &model.DocumentVersion{
			ID:                uuid.New().String(),
			DocumentID:        doc.ID,
			State:             doc.CurrentState,
			SchemaFingerprint: doc.SchemaFingerprint,
			Label:             label,
			ChangeType:        model.ChangeManual,
			CreatedBy:         createdBy,
			CreatedAt:         time.Now().UTC(),
		}
		if created, err = s.versions.Insert(ctx, tx, v); err != nil {
			return err
		}
		return recordVersionCreated(ctx, tx, s.recorder, created)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *versionService) RestoreVersion(ctx context.Context, documentID string, versionNumber int, restoredBy string) (*model.Document, error) {
	if documentID == "" {
		return nil, ErrIDRequired
	}

	var restored *model.Document
	err := database.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
		doc, err := s.documents.LockForUpdate(ctx, tx, documentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		target, err := s.versions.FindByNumber(ctx, tx, documentID, versionNumber)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrVersionNotFound
			}
			return err
		}

		// backup of the state about to be overwritten, before anything changes
		if err := snapshot(ctx, tx, s.versions, s.recorder, doc, model.PreRestoreLabel, model.ChangePreRestore, restoredBy); err != nil {
			return err
		}

		if target.SchemaFingerprint != doc.SchemaFingerprint {
			// template schema history is not rewound; the restored payload
			// simply carries its older fingerprint
			s.log.Warn("restoring across schema fingerprints",
				zap.String("document_id", documentID),
				zap.Int("version_number", versionNumber),
				zap.String("current_fingerprint", doc.SchemaFingerprint),
				zap.String("restored_fingerprint", target.SchemaFingerprint),
			)
		}

		doc.CurrentState = target.State
		doc.SchemaFingerprint = target.SchemaFingerprint
		doc.UpdatedAt = time.Now().UTC()

		if err := recordDocumentUpserted(ctx, tx, s.recorder, doc); err != nil {
			return err
		}
		// the relational overwrite is the final step: everything before it
		// rolls back together when it fails
		if err := s.documents.UpdateState(ctx, tx, doc.ID, doc.CurrentState, doc.SchemaFingerprint, doc.Status, doc.UpdatedAt); err != nil {
			return err
		}
		restored = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, documentID); err != nil {
			s.log.Warn("cache invalidation failed", zap.String("document_id", documentID), zap.Error(err))
		}
	}
	return restored, nil
}

func (s *versionService) CompareVersions(ctx context.Context, documentID string, from, to int) ([]model.DiffEntry, error) {
	if documentID == "" {
		return nil, ErrIDRequired
	}

	fromVersion, err := s.findVersion(ctx, documentID, from)
	if err != nil {
		return nil, err
	}
	toVersion, err := s.findVersion(ctx, documentID, to)
	if err != nil {
		return nil, err
	}
	return model.Diff(fromVersion.State, toVersion.State), nil
}

func (s *versionService) CleanupOldVersions(ctx context.Context, documentID string, keepCount int) (int, error) {
	if documentID == "" {
		return 0, ErrIDRequired
	}
	if keepCount < 1 {
		return 0, ErrInvalidKeepCount
	}

	deleted := 0
	err := database.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := s.documents.LockForUpdate(ctx, tx, documentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		deletedIDs, err := s.versions.Prune(ctx, tx, documentID, keepCount)
		if err != nil {
			return err
		}
		deleted = len(deletedIDs)
		if deleted == 0 {
			return nil
		}

		payload := model.VersionsPrunedPayload{DocumentID: documentID, VersionIDs: deletedIDs}
		_, err = s.recorder.RecordEvent(ctx, tx, model.EventVersionsPruned, model.AggregateDocument, documentID, payload)
		return err
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (s *versionService) ListVersions(ctx context.Context, documentID string) ([]model.VersionSummary, error) {
	if documentID == "" {
		return nil, ErrIDRequired
	}
	if _, err := s.documents.FindByID(ctx, s.db, documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	versions, err := s.versions.ListByDocument(ctx, s.db, documentID)
	if err != nil {
		return nil, err
	}

	current := 0
	for _, v := range versions {
		if v.VersionNumber > current {
			current = v.VersionNumber
		}
	}

	summaries := make([]model.VersionSummary, 0, len(versions))
	for i := range versions {
		summaries = append(summaries, versions[i].Summarize(current))
	}
	return summaries, nil
}

func (s *versionService) findVersion(ctx context.Context, documentID string, number int) (*model.DocumentVersion, error) {
	v, err := s.versions.FindByNumber(ctx, s.db, documentID, number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVersionNotFound
		}
		return nil, err
	}
	return v, nil
}
