package export

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// MongoSink writes documents to one MongoDB database.
type MongoSink struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

// ConnectMongo connects to uri and pings the server before returning.
func ConnectMongo(ctx context.Context, uri, database string, logger *zap.Logger) (*MongoSink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if database == "" {
		return nil, fmt.Errorf("mongo database name is required")
	}
	client, err := mongo.Connect(options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(10 * time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to reach mongo: %w", err)
	}
	logger.Debug("mongo connection established", zap.String("database", database))
	return &MongoSink{client: client, db: client.Database(database), logger: logger}, nil
}

// Close disconnects the client.
func (s *MongoSink) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoSink) Clear(ctx context.Context, collection string) error {
	res, err := s.db.Collection(collection).DeleteMany(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", collection, err)
	}
	s.logger.Debug("collection cleared", zap.String("collection", collection), zap.Int64("deleted", res.DeletedCount))
	return nil
}

func (s *MongoSink) InsertMany(ctx context.Context, collection string, docs []any) error {
	if len(docs) == 0 {
		return nil
	}
	if _, err := s.db.Collection(collection).InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", collection, err)
	}
	return nil
}

func (s *MongoSink) EnsureUniqueIndex(ctx context.Context, collection, field string) error {
	_, err := s.db.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create unique index %s.%s: %w", collection, field, err)
	}
	return nil
}

func (s *MongoSink) Count(ctx context.Context, collection string) (int64, error) {
	n, err := s.db.Collection(collection).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	return n, nil
}
