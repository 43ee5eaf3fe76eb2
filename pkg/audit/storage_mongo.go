package audit

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// MongoStorage appends events to the "audit_log" collection.
type MongoStorage struct {
	collection *mongo.Collection
}

// NewMongoStorage creates a storage over the given database.
func NewMongoStorage(db *mongo.Database) *MongoStorage {
	if db == nil {
		panic("audit: database is required")
	}
	return &MongoStorage{collection: db.Collection("audit_log")}
}

func (s *MongoStorage) Store(ctx context.Context, event Event) error {
	if _, err := s.collection.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("store audit event: %w", err)
	}
	return nil
}
