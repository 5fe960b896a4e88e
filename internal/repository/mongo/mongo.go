// Package mongo stores the event journal in a MongoDB collection.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/smartcity/signalctl/internal/domain"
)

const (
	eventsCollection = "signal_events"
	historyLimit     = 100
)

// MongoRepository implements domain.EventRepository
type MongoRepository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Connect dials uri and returns a repository bound to database
func Connect(ctx context.Context, uri, database string) (*MongoRepository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: failed to connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: failed to ping: %w", err)
	}
	return NewMongoRepository(client, database), nil
}

// NewMongoRepository creates a repository on an existing client
func NewMongoRepository(client *mongo.Client, database string) *MongoRepository {
	return &MongoRepository{
		client: client,
		coll:   client.Database(database).Collection(eventsCollection),
	}
}

// EnsureIndexes creates the timestamp index used by history queries
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "timestamp", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("mongo: failed to create index: %w", err)
	}
	return nil
}

// SaveEvent appends one event to the journal
func (r *MongoRepository) SaveEvent(ctx context.Context, rec domain.EventRecord) error {
	if _, err := r.coll.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("mongo: failed to save event: %w", err)
	}
	return nil
}

// GetEvents returns journal entries within a time range, newest first
func (r *MongoRepository) GetEvents(ctx context.Context, from, to time.Time) ([]domain.EventRecord, error) {
	filter := bson.M{"timestamp": bson.M{"$gte": from, "$lte": to}}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(historyLimit)

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: failed to query events: %w", err)
	}
	defer cur.Close(ctx)

	var results []domain.EventRecord
	if err := cur.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("mongo: failed to decode events: %w", err)
	}
	return results, nil
}

// Health checks server connectivity
func (r *MongoRepository) Health(ctx context.Context) error {
	if err := r.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongo: health check failed: %w", err)
	}
	return nil
}

// Close disconnects the client
func (r *MongoRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
