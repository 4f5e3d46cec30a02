package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"formvault/internal/model"
	outboxMocks "formvault/internal/outbox/mocks"
	repoMocks "formvault/internal/repository/mocks"
)

func TestVersionService_CreateVersion(t *testing.T) {
	ctx := context.Background()

	t.Run("snapshots the current state", func(t *testing.T) {
		db, dbMock := newTxDB(t)
		docs := new(repoMocks.MockDocumentRepository)
		versions := new(repoMocks.MockVersionRepository)
		recorder := new(outboxMocks.MockEventRecorder)

		dbMock.ExpectBegin()
		dbMock.ExpectCommit()

		doc := &model.Document{ID: "doc-1", CurrentState: model.FieldMap{"name": "Alice"}, SchemaFingerprint: "fp-1"}
		docs.On("LockForUpdate", ctx, mock.Anything, "doc-1").Return(doc, nil)
		versions.On("Insert", ctx, mock.Anything, mock.MatchedBy(func(v *model.DocumentVersion) bool {
			return v.DocumentID == "doc-1" &&
				v.ChangeType == model.ChangeManual &&
				v.Label == "before sending" &&
				v.SchemaFingerprint == "fp-1"
		})).Return(&model.DocumentVersion{ID: "v-1", DocumentID: "doc-1", VersionNumber: 4}, nil)
		recorder.On("RecordEvent", ctx, mock.Anything, model.EventVersionCreated, model.AggregateDocument, "doc-1", mock.Anything).Return("evt-1", nil)

		svc := NewVersionService(db, docs, versions, recorder, nil, zap.NewNop())

		v, err := svc.CreateVersion(ctx, "doc-1", "before sending", "owner-1")

		assert.NoError(t, err)
		assert.Equal(t, 4, v.VersionNumber)
		versions.AssertExpectations(t)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("missing document", func(t *testing.T) {
		db, dbMock := newTxDB(t)
		docs := new(repoMocks.MockDocumentRepository)

		dbMock.ExpectBegin()
		dbMock.ExpectRollback()
		docs.On("LockForUpdate", ctx, mock.Anything, "missing").Return(nil, sql.ErrNoRows)

		svc := NewVersionService(db, docs, new(repoMocks.MockVersionRepository), new(outboxMocks.MockEventRecorder), nil, zap.NewNop())

		_, err := svc.CreateVersion(ctx, "missing", "", "owner-1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("id required", func(t *testing.T) {
		db, _ := newTxDB(t)
		svc := NewVersionService(db, new(repoMocks.MockDocumentRepository), new(repoMocks.MockVersionRepository), new(outboxMocks.MockEventRecorder), nil, zap.NewNop())

		_, err := svc.CreateVersion(ctx, "", "", "")
		assert.ErrorIs(t, err, ErrIDRequired)
	})
}

func TestVersionService_RestoreVersion(t *testing.T) {
	ctx := context.Background()

	t.Run("backs up the live state before overwriting it", func(t *testing.T) {
		db, dbMock := newTxDB(t)
		docs := new(repoMocks.MockDocumentRepository)
		versions := new(repoMocks.MockVersionRepository)
		recorder := new(outboxMocks.MockEventRecorder)
		c := newFakeCache()
		assert.NoError(t, c.SetState(ctx, "doc-1", model.FieldMap{"name": "live"}))

		dbMock.ExpectBegin()
		dbMock.ExpectCommit()

		liveState := model.FieldMap{"name": "live", "extra": true}
		doc := &model.Document{ID: "doc-1", CurrentState: liveState, SchemaFingerprint: "fp-2", Status: model.StatusDraft}
		target := &model.DocumentVersion{ID: "v-3", DocumentID: "doc-1", VersionNumber: 3, State: model.FieldMap{"name": "older"}, SchemaFingerprint: "fp-1"}

		docs.On("LockForUpdate", ctx, mock.Anything, "doc-1").Return(doc, nil)
		versions.On("FindByNumber", ctx, mock.Anything, "doc-1", 3).Return(target, nil)
		versions.On("Insert", ctx, mock.Anything, mock.MatchedBy(func(v *model.DocumentVersion) bool {
			return v.ChangeType == model.ChangePreRestore &&
				v.Label == model.PreRestoreLabel &&
				assert.ObjectsAreEqual(liveState, v.State)
		})).Return(&model.DocumentVersion{ID: "v-7", DocumentID: "doc-1", VersionNumber: 7, State: liveState}, nil)
		recorder.On("RecordEvent", ctx, mock.Anything, model.EventVersionCreated, model.AggregateDocument, "doc-1", mock.Anything).Return("evt-1", nil)
		recorder.On("RecordEvent", ctx, mock.Anything, model.EventDocumentUpserted, model.AggregateDocument, "doc-1", mock.Anything).Return("evt-2", nil)
		docs.On("UpdateState", ctx, mock.Anything, "doc-1", model.FieldMap{"name": "older"}, "fp-1", model.StatusDraft, mock.AnythingOfType("time.Time")).Return(nil)

		svc := NewVersionService(db, docs, versions, recorder, c, zap.NewNop())

		restored, err := svc.RestoreVersion(ctx, "doc-1", 3, "owner-1")

		assert.NoError(t, err)
		assert.Equal(t, model.FieldMap{"name": "older"}, restored.CurrentState)
		assert.Equal(t, "fp-1", restored.SchemaFingerprint)

		_, cacheErr := c.GetState(ctx, "doc-1")
		assert.Error(t, cacheErr, "restore must drop the cached payload")

		docs.AssertExpectations(t)
		versions.AssertExpectations(t)
		recorder.AssertExpectations(t)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("missing version leaves everything untouched", func(t *testing.T) {
		db, dbMock := newTxDB(t)
		docs := new(repoMocks.MockDocumentRepository)
		versions := new(repoMocks.MockVersionRepository)

		dbMock.ExpectBegin()
		dbMock.ExpectRollback()

		docs.On("LockForUpdate", ctx, mock.Anything, "doc-1").Return(&model.Document{ID: "doc-1"}, nil)
		versions.On("FindByNumber", ctx, mock.Anything, "doc-1", 99).Return(nil, sql.ErrNoRows)

		svc := NewVersionService(db, docs, versions, new(outboxMocks.MockEventRecorder), nil, zap.NewNop())

		_, err := svc.RestoreVersion(ctx, "doc-1", 99, "owner-1")

		assert.ErrorIs(t, err, ErrVersionNotFound)
		versions.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything)
		docs.AssertNotCalled(t, "UpdateState", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("missing document", func(t *testing.T) {
		db, dbMock := newTxDB(t)
		docs := new(repoMocks.MockDocumentRepository)

		dbMock.ExpectBegin()
		dbMock.ExpectRollback()
		docs.On("LockForUpdate", ctx, mock.Anything, "missing").Return(nil, sql.ErrNoRows)

		svc := NewVersionService(db, docs, new(repoMocks.MockVersionRepository), new(outboxMocks.MockEventRecorder), nil, zap.NewNop())

		_, err := svc.RestoreVersion(ctx, "missing", 1, "owner-1")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestVersionService_CompareVersions(t *testing.T) {
	ctx := context.Background()
	db, _ := newTxDB(t)
	versions := new(repoMocks.MockVersionRepository)

	versions.On("FindByNumber", ctx, mock.Anything, "doc-1", 1).
		Return(&model.DocumentVersion{VersionNumber: 1, State: model.FieldMap{"a": float64(1), "b": float64(2)}}, nil)
	versions.On("FindByNumber", ctx, mock.Anything, "doc-1", 2).
		Return(&model.DocumentVersion{VersionNumber: 2, State: model.FieldMap{"a": float64(1), "b": float64(3), "c": float64(4)}}, nil)
	versions.On("FindByNumber", ctx, mock.Anything, "doc-1", 9).Return(nil, sql.ErrNoRows)

	svc := NewVersionService(db, new(repoMocks.MockDocumentRepository), versions, new(outboxMocks.MockEventRecorder), nil, zap.NewNop())

	t.Run("union diff in field order", func(t *testing.T) {
		diff, err := svc.CompareVersions(ctx, "doc-1", 1, 2)

		assert.NoError(t, err)
		assert.Equal(t, []model.DiffEntry{
			{Field: "b", OldValue: float64(2), NewValue: float64(3), Kind: model.DiffModified},
			{Field: "c", NewValue: float64(4), Kind: model.DiffAdded},
		}, diff)
	})

	t.Run("missing side", func(t *testing.T) {
		_, err := svc.CompareVersions(ctx, "doc-1", 1, 9)
		assert.ErrorIs(t, err, ErrVersionNotFound)
	})
}

func TestVersionService_CleanupOldVersions(t *testing.T) {
	ctx := context.Background()

	t.Run("prunes and mirrors the deletion", func(t *testing.T) {
		db, dbMock := newTxDB(t)
		docs := new(repoMocks.MockDocumentRepository)
		versions := new(repoMocks.MockVersionRepository)
		recorder := new(outboxMocks.MockEventRecorder)

		dbMock.ExpectBegin()
		dbMock.ExpectCommit()

		docs.On("LockForUpdate", ctx, mock.Anything, "doc-1").Return(&model.Document{ID: "doc-1"}, nil)
		versions.On("Prune", ctx, mock.Anything, "doc-1", 5).Return([]string{"v-1", "v-2"}, nil)
		recorder.On("RecordEvent", ctx, mock.Anything, model.EventVersionsPruned, model.AggregateDocument, "doc-1",
			model.VersionsPrunedPayload{DocumentID: "doc-1", VersionIDs: []string{"v-1", "v-2"}}).Return("evt-1", nil)

		svc := NewVersionService(db, docs, versions, recorder, nil, zap.NewNop())

		deleted, err := svc.CleanupOldVersions(ctx, "doc-1", 5)

		assert.NoError(t, err)
		assert.Equal(t, 2, deleted)
		recorder.AssertExpectations(t)
	})

	t.Run("nothing to prune records no event", func(t *testing.T) {
		db, dbMock := newTxDB(t)
		docs := new(repoMocks.MockDocumentRepository)
		versions := new(repoMocks.MockVersionRepository)
		recorder := new(outboxMocks.MockEventRecorder)

		dbMock.ExpectBegin()
		dbMock.ExpectCommit()

		docs.On("LockForUpdate", ctx, mock.Anything, "doc-1").Return(&model.Document{ID: "doc-1"}, nil)
		versions.On("Prune", ctx, mock.Anything, "doc-1", 10).Return([]string{}, nil)

		svc := NewVersionService(db, docs, versions, recorder, nil, zap.NewNop())

		deleted, err := svc.CleanupOldVersions(ctx, "doc-1", 10)

		assert.NoError(t, err)
		assert.Zero(t, deleted)
		recorder.AssertNotCalled(t, "RecordEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("keep count must be positive", func(t *testing.T) {
		db, _ := newTxDB(t)
		svc := NewVersionService(db, new(repoMocks.MockDocumentRepository), new(repoMocks.MockVersionRepository), new(outboxMocks.MockEventRecorder), nil, zap.NewNop())

		_, err := svc.CleanupOldVersions(ctx, "doc-1", 0)
		assert.ErrorIs(t, err, ErrInvalidKeepCount)
	})
}

func TestVersionService_ListVersions(t *testing.T) {
	ctx := context.Background()
	db, _ := newTxDB(t)

	docs := new(repoMocks.MockDocumentRepository)
	versions := new(repoMocks.MockVersionRepository)

	now := time.Now().UTC()
	docs.On("FindByID", ctx, mock.Anything, "doc-1").Return(&model.Document{ID: "doc-1"}, nil)
	docs.On("FindByID", ctx, mock.Anything, "missing").Return(nil, sql.ErrNoRows)
	versions.On("ListByDocument", ctx, mock.Anything, "doc-1").Return([]model.DocumentVersion{
		{ID: "v-1", VersionNumber: 1, State: model.FieldMap{"name": "Alice"}, CreatedAt: now},
		{ID: "v-2", VersionNumber: 2, State: model.FieldMap{"name": "Bob"}, CreatedAt: now},
	}, nil)

	svc := NewVersionService(db, docs, versions, new(outboxMocks.MockEventRecorder), nil, zap.NewNop())

	t.Run("marks the highest version current", func(t *testing.T) {
		summaries, err := svc.ListVersions(ctx, "doc-1")

		assert.NoError(t, err)
		assert.Len(t, summaries, 2)
		assert.False(t, summaries[0].IsCurrent)
		assert.True(t, summaries[1].IsCurrent)
		assert.Equal(t, map[string]string{"name": "Bob"}, summaries[1].Preview)
	})

	t.Run("missing document", func(t *testing.T) {
		_, err := svc.ListVersions(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
