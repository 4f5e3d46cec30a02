package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"formvault/internal/model"
)

var outboxCols = []string{"id", "event_type", "aggregate_type", "aggregate_id", "payload", "status", "attempts", "last_error", "next_attempt_at", "created_at", "processed_at"}

func TestOutboxPostgres_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewOutboxPostgres()
	ctx := context.Background()
	now := time.Now().UTC()

	e := &model.OutboxEvent{
		ID:            "evt-1",
		EventType:     model.EventDocumentUpserted,
		AggregateType: model.AggregateDocument,
		AggregateID:   "doc-1",
		Payload:       []byte(`{"document_id":"doc-1"}`),
		Status:        model.OutboxPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}

	t.Run("inserts inside the caller's transaction", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO outbox_events").
			WithArgs("evt-1", model.EventDocumentUpserted, model.AggregateDocument, "doc-1", []byte(`{"document_id":"doc-1"}`), model.OutboxPending, 0, now, now).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		tx, err := db.BeginTx(ctx, nil)
		assert.NoError(t, err)
		assert.NoError(t, repo.Record(ctx, tx, e))
		assert.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback discards the event with the mutation", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO outbox_events").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectRollback()

		tx, err := db.BeginTx(ctx, nil)
		assert.NoError(t, err)
		assert.NoError(t, repo.Record(ctx, tx, e))
		assert.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxPostgres_ClaimBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewOutboxPostgres()
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("returns claimed events ordered by created_at", func(t *testing.T) {
		rows := sqlmock.NewRows(outboxCols).
			AddRow("evt-2", "document.upserted", "Document", "doc-1", []byte(`{}`), "processing", 1, "", now, now.Add(time.Second), nil).
			AddRow("evt-1", "document.upserted", "Document", "doc-1", []byte(`{}`), "processing", 1, "", now, now, nil)

		mock.ExpectQuery("UPDATE outbox_events").
			WithArgs(10, now).
			WillReturnRows(rows)

		events, err := repo.ClaimBatch(ctx, db, 10, now)

		assert.NoError(t, err)
		assert.Len(t, events, 2)
		assert.Equal(t, "evt-1", events[0].ID)
		assert.Equal(t, "evt-2", events[1].ID)
		assert.Equal(t, model.OutboxProcessing, events[0].Status)
		assert.Equal(t, 1, events[0].Attempts)
	})

	t.Run("empty claim", func(t *testing.T) {
		mock.ExpectQuery("UPDATE outbox_events").
			WithArgs(10, now).
			WillReturnRows(sqlmock.NewRows(outboxCols))

		events, err := repo.ClaimBatch(ctx, db, 10, now)

		assert.NoError(t, err)
		assert.Empty(t, events)
	})
}

func TestOutboxPostgres_MarkProcessed(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewOutboxPostgres()
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("marks a claimed event", func(t *testing.T) {
		mock.ExpectExec("UPDATE outbox_events").
			WithArgs("evt-1", now).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.MarkProcessed(ctx, db, "evt-1", now))
	})

	t.Run("lost claim affects zero rows", func(t *testing.T) {
		mock.ExpectExec("UPDATE outbox_events").
			WithArgs("evt-1", now).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.MarkProcessed(ctx, db, "evt-1", now), sql.ErrNoRows)
	})
}

func TestOutboxPostgres_Reschedule(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewOutboxPostgres()
	ctx := context.Background()
	next := time.Now().UTC().Add(time.Second)

	mock.ExpectExec("UPDATE outbox_events").
		WithArgs("evt-1", next, "timeout talking to mirror").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Reschedule(ctx, db, "evt-1", next, "timeout talking to mirror"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxPostgres_ListFailed(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewOutboxPostgres()
	ctx := context.Background()
	now := time.Now().UTC()

	rows := sqlmock.NewRows(outboxCols).
		AddRow("evt-9", "document.upserted", "Document", "doc-9", []byte(`{}`), "failed", 5, "schema rejected", now, now, nil)

	mock.ExpectQuery("SELECT (.+) FROM outbox_events WHERE status = 'failed'").
		WithArgs(50).
		WillReturnRows(rows)

	events, err := repo.ListFailed(ctx, db, 50)

	assert.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, model.OutboxFailed, events[0].Status)
	assert.Equal(t, "schema rejected", events[0].LastError)
}

func TestOutboxPostgres_Requeue(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewOutboxPostgres()
	ctx := context.Background()

	t.Run("failed event requeued", func(t *testing.T) {
		mock.ExpectExec("UPDATE outbox_events").
			WithArgs("evt-9").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Requeue(ctx, db, "evt-9"))
	})

	t.Run("non-failed event is not touched", func(t *testing.T) {
		mock.ExpectExec("UPDATE outbox_events").
			WithArgs("evt-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Requeue(ctx, db, "evt-1"), sql.ErrNoRows)
	})
}
