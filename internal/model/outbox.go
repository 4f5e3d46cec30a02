package model

import (
	"encoding/json"
	"time"
)

// OutboxStatus is the lifecycle state of an outbox event.
//
// processing is a claim marker, not a terminal state: a relay worker that
// wins the conditional claim moves pending -> processing, and from there the
// event ends up processed, back in pending (retry scheduled), or failed.
type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "pending"
	OutboxProcessing OutboxStatus = "processing"
	OutboxProcessed  OutboxStatus = "processed"
	OutboxFailed     OutboxStatus = "failed"
)

// Event types relayed to the external document store.
const (
	EventDocumentUpserted = "document.upserted"
	EventVersionCreated   = "document.version_created"
	EventVersionsPruned   = "document.versions_pruned"
	EventOrderCompleted   = "order.completed"
)

// Aggregate types referenced by outbox events.
const (
	AggregateDocument = "Document"
	AggregateOrder    = "Order"
)

// OutboxEvent is a durable record of a committed mutation that still has to
// be applied to the external store. It is written in the same transaction as
// the mutation it describes and never deleted before reaching processed.
type OutboxEvent struct {
	ID            string          `json:"id"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Payload       json.RawMessage `json:"payload"`
	Status        OutboxStatus    `json:"status"`
	Attempts      int             `json:"attempts"`
	LastError     string          `json:"last_error,omitempty"`
	NextAttemptAt time.Time       `json:"next_attempt_at"`
	CreatedAt     time.Time       `json:"created_at"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
}

// DocumentMirrorPayload is the payload of document.upserted events.
type DocumentMirrorPayload struct {
	DocumentID        string         `json:"document_id"`
	OwnerID           string         `json:"owner_id"`
	TemplateID        string         `json:"template_id"`
	State             FieldMap       `json:"state"`
	SchemaFingerprint string         `json:"schema_fingerprint"`
	Status            DocumentStatus `json:"status"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// VersionMirrorPayload is the payload of document.version_created events.
type VersionMirrorPayload struct {
	VersionID         string     `json:"version_id"`
	DocumentID        string     `json:"document_id"`
	VersionNumber     int        `json:"version_number"`
	State             FieldMap   `json:"state"`
	SchemaFingerprint string     `json:"schema_fingerprint"`
	Label             string     `json:"label"`
	ChangeType        ChangeType `json:"change_type"`
	CreatedBy         string     `json:"created_by"`
	CreatedAt         time.Time  `json:"created_at"`
}

// VersionsPrunedPayload is the payload of document.versions_pruned events.
type VersionsPrunedPayload struct {
	DocumentID string   `json:"document_id"`
	VersionIDs []string `json:"version_ids"`
}

// OrderCompletedPayload is the payload of order.completed events.
type OrderCompletedPayload struct {
	OrderID    string         `json:"order_id"`
	OwnerID    string         `json:"owner_id"`
	PaymentRef string         `json:"payment_ref"`
	Method     string         `json:"method"`
	Details    map[string]any `json:"details,omitempty"`
	Items      []OrderItem    `json:"items"`
}
