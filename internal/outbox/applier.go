package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"formvault/internal/docstore"
	"formvault/internal/model"
)

// Collections in the external store, one per mirrored aggregate kind.
const (
	CollectionDocuments = "documents"
	CollectionVersions  = "document_versions"
	CollectionOrders    = "orders"
)

// ApplierFunc applies one event to the external store. Implementations must
// be idempotent: the relay delivers at least once.
type ApplierFunc func(ctx context.Context, e model.OutboxEvent) error

// Registry maps event types to their appliers. An event whose type has no
// applier is permanently failed, never retried.
type Registry struct {
	appliers map[string]ApplierFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{appliers: make(map[string]ApplierFunc)}
}

// Register binds an applier to an event type, replacing any previous one.
func (r *Registry) Register(eventType string, fn ApplierFunc) {
	r.appliers[eventType] = fn
}

// Apply dispatches the event to its applier.
func (r *Registry) Apply(ctx context.Context, e model.OutboxEvent) error {
	fn, ok := r.appliers[e.EventType]
	if !ok {
		return fmt.Errorf("outbox: no applier for event type %q", e.EventType)
	}
	return fn(ctx, e)
}

// NewMirrorRegistry wires the document store appliers for every event type
// the services record.
func NewMirrorRegistry(store docstore.Store) *Registry {
	r := NewRegistry()
	r.Register(model.EventDocumentUpserted, applyDocumentUpserted(store))
	r.Register(model.EventVersionCreated, applyVersionCreated(store))
	r.Register(model.EventVersionsPruned, applyVersionsPruned(store))
	r.Register(model.EventOrderCompleted, applyOrderCompleted(store))
	return r
}

func applyDocumentUpserted(store docstore.Store) ApplierFunc {
	return func(ctx context.Context, e model.OutboxEvent) error {
		var p model.DocumentMirrorPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return fmt.Errorf("outbox: decode %s payload: %w", e.EventType, err)
		}
		doc := docstore.Document{
			"owner_id":           p.OwnerID,
			"template_id":        p.TemplateID,
			"state":              map[string]any(p.State),
			"schema_fingerprint": p.SchemaFingerprint,
			"status":             string(p.Status),
			"updated_at":         p.UpdatedAt,
		}
		return store.Put(ctx, CollectionDocuments, p.DocumentID, doc)
	}
}

func applyVersionCreated(store docstore.Store) ApplierFunc {
	return func(ctx context.Context, e model.OutboxEvent) error {
		var p model.VersionMirrorPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return fmt.Errorf("outbox: decode %s payload: %w", e.EventType, err)
		}
		doc := docstore.Document{
			"document_id":        p.DocumentID,
			"version_number":     p.VersionNumber,
			"state":              map[string]any(p.State),
			"schema_fingerprint": p.SchemaFingerprint,
			"label":              p.Label,
			"change_type":        string(p.ChangeType),
			"created_by":         p.CreatedBy,
			"created_at":         p.CreatedAt,
		}
		return store.Put(ctx, CollectionVersions, p.VersionID, doc)
	}
}

func applyVersionsPruned(store docstore.Store) ApplierFunc {
	return func(ctx context.Context, e model.OutboxEvent) error {
		var p model.VersionsPrunedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return fmt.Errorf("outbox: decode %s payload: %w", e.EventType, err)
		}
		for _, versionID := range p.VersionIDs {
			if err := store.Delete(ctx, CollectionVersions, versionID); err != nil {
				return err
			}
		}
		return nil
	}
}

func applyOrderCompleted(store docstore.Store) ApplierFunc {
	return func(ctx context.Context, e model.OutboxEvent) error {
		var p model.OrderCompletedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return fmt.Errorf("outbox: decode %s payload: %w", e.EventType, err)
		}
		items := make([]map[string]any, 0, len(p.Items))
		for _, item := range p.Items {
			items = append(items, map[string]any{
				"template_id": item.TemplateID,
				"title":       item.Title,
				"price_cents": item.PriceCents,
			})
		}
		doc := docstore.Document{
			"owner_id":    p.OwnerID,
			"payment_ref": p.PaymentRef,
			"method":      p.Method,
			"details":     p.Details,
			"items":       items,
		}
		return store.Put(ctx, CollectionOrders, p.OrderID, doc)
	}
}
