// Package mongodb provides the document-database gateway. It is constructed
// once at startup and passed to the orchestrator and HTTP handlers; there is
// no ambient global handle.
package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"examai/internal/logger"
)

var (
	// ErrUpstream is returned when the database signals failure.
	ErrUpstream = errors.New("mongodb operation failed")

	// ErrNoResult is returned when a find matched no document.
	ErrNoResult = errors.New("no matching document")
)

// Store is the persistence capability surface the pipeline depends on.
type Store interface {
	// InsertOne inserts a document and returns the assigned record ID.
	InsertOne(ctx context.Context, collection string, document any) (string, error)

	// FindOne returns one document matching filter; sort may be nil.
	FindOne(ctx context.Context, collection string, filter any, sort any) (bson.M, error)

	Close(ctx context.Context) error
}

// MongoDB implements Store over the official driver.
type MongoDB struct {
	client *mongo.Client
	db     *mongo.Database
	log    zerolog.Logger
}

// Connect establishes and pings a MongoDB connection.
func Connect(ctx context.Context, uri, dbName string) (*MongoDB, error) {
	const op = "Connect"

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUpstream, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%s: %w: ping failed: %v", op, ErrUpstream, err)
	}

	log := logger.WithComponent("mongodb")
	log.Info().Str("database", dbName).Msg("MongoDB connected")

	return &MongoDB{
		client: client,
		db:     client.Database(dbName),
		log:    log,
	}, nil
}

// InsertOne inserts a document and returns the assigned record ID.
func (m *MongoDB) InsertOne(ctx context.Context, collection string, document any) (string, error) {
	const op = "InsertOne"

	result, err := m.db.Collection(collection).InsertOne(ctx, document)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, ErrUpstream, err)
	}

	var id string
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		id = oid.Hex()
	} else {
		id = fmt.Sprint(result.InsertedID)
	}

	m.log.Debug().
		Str("collection", collection).
		Str("id", id).
		Msg("Document inserted")
	return id, nil
}

// FindOne returns one document matching filter; sort may be nil.
func (m *MongoDB) FindOne(ctx context.Context, collection string, filter any, sort any) (bson.M, error) {
	const op = "FindOne"

	opts := options.FindOne()
	if sort != nil {
		opts.SetSort(sort)
	}
	if filter == nil {
		filter = bson.D{}
	}

	var document bson.M
	err := m.db.Collection(collection).FindOne(ctx, filter, opts).Decode(&document)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s: %w", op, ErrNoResult)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUpstream, err)
	}
	return document, nil
}

// Close disconnects the client.
func (m *MongoDB) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("Close: %w: %v", ErrUpstream, err)
	}
	m.log.Info().Msg("MongoDB connection closed")
	return nil
}
