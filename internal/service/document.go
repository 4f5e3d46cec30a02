package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"formvault/internal/database"
	"formvault/internal/docstore"
	"formvault/internal/model"
	"formvault/internal/outbox"
	"formvault/internal/repository"
)

// StateCache is the read cache for live document state. Implementations are
// best-effort; every error here degrades to a relational read.
type StateCache interface {
	GetState(ctx context.Context, documentID string) (model.FieldMap, error)
	SetState(ctx context.Context, documentID string, state model.FieldMap) error
	Invalidate(ctx context.Context, documentID string) error
}

// SaveDocumentInput carries a document create or update request.
type SaveDocumentInput struct {
	ID         string
	OwnerID    string
	TemplateID string
	State      model.FieldMap
	Status     model.DocumentStatus
	SavedBy    string
}

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items []model.Document `json:"data"`
	Total int              `json:"total"`
}

// DocumentService defines the use cases for handling documents.
type DocumentService interface {
	// Save creates or updates a document. Every save snapshots the new state,
	// so each relational write has a matching version row, and schedules the
	// mirror through the outbox in the same transaction.
	Save(ctx context.Context, in SaveDocumentInput) (*model.Document, error)

	// Get returns a document. The relational row decides existence, ownership
	// and status; for a mirrored document the rendered payload is read from
	// the cache or the external store, falling back to the relational payload
	// when the mirror has not caught up yet.
	Get(ctx context.Context, id string) (*model.Document, error)

	// List returns the owner's documents using limit/offset and a total count.
	List(ctx context.Context, ownerID string, limit, offset int) (*DocumentListResult, error)
}

type documentService struct {
	db        *sql.DB
	documents repository.DocumentRepository
	versions  repository.VersionRepository
	recorder  outbox.EventRecorder
	store     docstore.Store
	cache     StateCache
	log       *zap.Logger
}

// NewDocumentService constructs a DocumentService. cache may be nil.
func NewDocumentService(
	db *sql.DB,
	documents repository.DocumentRepository,
	versions repository.VersionRepository,
	recorder outbox.EventRecorder,
	store docstore.Store,
	cache StateCache,
	log *zap.Logger,
) DocumentService {
	return &documentService{
		db:        db,
		documents: documents,
		versions:  versions,
		recorder:  recorder,
		store:     store,
		cache:     cache,
		log:       log,
	}
}

func (s *documentService) Save(ctx context.Context, in SaveDocumentInput) (*model.Document, error) {
	if in.State == nil {
		return nil, ErrStateRequired
	}
	if in.Status == "" {
		in.Status = model.StatusDraft
	}
	if !in.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if in.ID == "" {
		return s.create(ctx, in)
	}
	return s.update(ctx, in)
}

func (s *documentService) create(ctx context.Context, in SaveDocumentInput) (*model.Document, error) {
	if in.OwnerID == "" {
		return nil, ErrOwnerRequired
	}
	if in.TemplateID == "" {
		return nil, ErrTemplateRequired
	}

	now := time.Now().UTC()
	doc := &model.Document{
		ID:                uuid.New().String(),
		OwnerID:           in.OwnerID,
		TemplateID:        in.TemplateID,
		CurrentState:      in.State,
		SchemaFingerprint: in.State.Fingerprint(),
		Status:            in.Status,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	// the mirror document shares the relational ID
	doc.ExternalRef = doc.ID

	var stored *model.Document
	err := database.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		if stored, err = s.documents.Create(ctx, tx, doc); err != nil {
			return err
		}
		if err := snapshot(ctx, tx, s.versions, s.recorder, stored, "", model.ChangeAuto, in.SavedBy); err != nil {
			return err
		}
		return recordDocumentUpserted(ctx, tx, s.recorder, stored)
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *documentService) update(ctx context.Context, in SaveDocumentInput) (*model.Document, error) {
	var updated *model.Document
	err := database.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
		doc, err := s.documents.LockForUpdate(ctx, tx, in.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		doc.CurrentState = in.State
		doc.SchemaFingerprint = in.State.Fingerprint()
		doc.Status = in.Status
		doc.UpdatedAt = time.Now().UTC()

		if err := s.documents.UpdateState(ctx, tx, doc.ID, doc.CurrentState, doc.SchemaFingerprint, doc.Status, doc.UpdatedAt); err != nil {
			return err
		}
		if doc.ExternalRef == "" {
			doc.ExternalRef = doc.ID
			if err := s.documents.SetExternalRef(ctx, tx, doc.ID, doc.ExternalRef); err != nil {
				return err
			}
		}
		if err := snapshot(ctx, tx, s.versions, s.recorder, doc, "", model.ChangeAuto, in.SavedBy); err != nil {
			return err
		}
		if err := recordDocumentUpserted(ctx, tx, s.recorder, doc); err != nil {
			return err
		}
		updated = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCache(ctx, updated.ID)
	return updated, nil
}

func (s *documentService) Get(ctx context.Context, id string) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}

	doc, err := s.documents.FindByID(ctx, s.db, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !doc.Mirrored() {
		return doc, nil
	}

	if state, ok := s.readMirroredState(ctx, doc.ID); ok {
		doc.CurrentState = state
	}
	return doc, nil
}

// readMirroredState resolves the rendered payload of a mirrored document:
// cache, then external store, then false to signal the relational fallback.
func (s *documentService) readMirroredState(ctx context.Context, id string) (model.FieldMap, bool) {
	if s.cache != nil {
		if state, err := s.cache.GetState(ctx, id); err == nil {
			return state, true
		}
	}

	external, err := s.store.Get(ctx, outbox.CollectionDocuments, id)
	if err != nil {
		// an absent mirror just has not been synchronized yet
		if !errors.Is(err, docstore.ErrNotFound) {
			s.log.Warn("external store read failed, serving relational payload",
				zap.String("document_id", id), zap.Error(err))
		}
		return nil, false
	}

	// the mongo driver decodes nested documents into the ancestor map type,
	// so the state arrives as docstore.Document, not a plain map
	var state model.FieldMap
	switch v := external["state"].(type) {
	case map[string]any:
		state = model.FieldMap(v)
	case docstore.Document:
		state = model.FieldMap(v)
	default:
		return nil, false
	}

	if s.cache != nil {
		if err := s.cache.SetState(ctx, id, state); err != nil {
			s.log.Warn("cache fill failed", zap.String("document_id", id), zap.Error(err))
		}
	}
	return state, true
}

func (s *documentService) List(ctx context.Context, ownerID string, limit, offset int) (*DocumentListResult, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.documents.ListByOwner(ctx, s.db, ownerID, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *documentService) invalidateCache(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.log.Warn("cache invalidation failed", zap.String("document_id", id), zap.Error(err))
	}
}

// snapshot inserts a version of the document's current state and records its
// mirror event, all inside the caller's transaction.
func snapshot(
	ctx context.Context,
	tx *sql.Tx,
	versions repository.VersionRepository,
	recorder outbox.EventRecorder,
	doc *model.Document,
	label string,
	changeType model.ChangeType,
	createdBy string,
) error {
	v := &model.DocumentVersion{
		ID:                uuid.New().String(),
		DocumentID:        doc.ID,
		State:             doc.CurrentState,
		SchemaFingerprint: doc.SchemaFingerprint,
		Label:             label,
		ChangeType:        changeType,
		CreatedBy:         createdBy,
		CreatedAt:         time.Now().UTC(),
	}
	stored, err := versions.Insert(ctx, tx, v)
	if err != nil {
		return err
	}
	return recordVersionCreated(ctx, tx, recorder, stored)
}

func recordDocumentUpserted(ctx context.Context, tx *sql.Tx, recorder outbox.EventRecorder, doc *model.Document) error {
	payload := model.DocumentMirrorPayload{
		DocumentID:        doc.ID,
		OwnerID:           doc.OwnerID,
		TemplateID:        doc.TemplateID,
		State:             doc.CurrentState,
		SchemaFingerprint: doc.SchemaFingerprint,
		Status:            doc.Status,
		UpdatedAt:         doc.UpdatedAt,
	}
	_, err := recorder.RecordEvent(ctx, tx, model.EventDocumentUpserted, model.AggregateDocument, doc.ID, payload)
	return err
}

func recordVersionCreated(ctx context.Context, tx *sql.Tx, recorder outbox.EventRecorder, v *model.DocumentVersion) error {
	payload := model.VersionMirrorPayload{
		VersionID:         v.ID,
		DocumentID:        v.DocumentID,
		VersionNumber:     v.VersionNumber,
		State:             v.State,
		SchemaFingerprint: v.SchemaFingerprint,
		Label:             v.Label,
		ChangeType:        v.ChangeType,
		CreatedBy:         v.CreatedBy,
		CreatedAt:         v.CreatedAt,
	}
	_, err := recorder.RecordEvent(ctx, tx, model.EventVersionCreated, model.AggregateDocument, v.DocumentID, payload)
	return err
}
