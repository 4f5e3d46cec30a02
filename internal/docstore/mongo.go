package docstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"formvault/internal/config"
)

// MongoStore implements Store on a MongoDB database, one collection per
// aggregate kind. Documents are keyed by _id so Put is a natural ReplaceOne
// upsert.
type MongoStore struct {
	db *mongo.Database
}

// NewMongoClient opens a client and verifies connectivity within the
// configured timeout. Caller should call client.Disconnect(ctx) on shutdown.
func NewMongoClient(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.TimeoutSec)*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// NewMongoStore creates a Store over the named database.
func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{db: client.Database(database)}
}

var _ Store = (*MongoStore)(nil)

// Put fully replaces the document under id, creating it when absent.
func (s *MongoStore) Put(ctx context.Context, collection, id string, doc Document) error {
	payload := bson.M{"_id": id}
	for k, v := range doc {
		if k == "_id" {
			continue
		}
		payload[k] = v
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, payload, opts); err != nil {
		return classify(fmt.Errorf("docstore put %s/%s: %w", collection, id, err))
	}
	return nil
}

// Get returns the document under id.
func (s *MongoStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var doc Document
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, classify(fmt.Errorf("docstore get %s/%s: %w", collection, id, err))
	}
	return doc, nil
}

// Delete removes the document under id. Absent documents are fine: replayed
// prune events must converge.
func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return classify(fmt.Errorf("docstore delete %s/%s: %w", collection, id, err))
	}
	return nil
}

// classify decides whether a driver error is worth retrying. Network-level
// failures and timeouts are transient; everything else (document validation,
// malformed payloads) will fail the same way on every attempt.
func classify(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Transient(err)
	case errors.As(err, &netErr):
		return Transient(err)
	case mongo.IsTimeout(err):
		return Transient(err)
	case mongo.IsNetworkError(err):
		return Transient(err)
	}
	return err
}
