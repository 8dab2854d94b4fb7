package inventory

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	DefaultMongoCollection = "inventory_documents"

	mongoConnectTimeout = 10 * time.Second
	mongoCloseTimeout   = 5 * time.Second
)

type mongoDocument struct {
	ID        string    `bson:"_id"`
	Payload   []byte    `bson:"payload"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoBackend keeps the document under a fixed _id and replaces it on
// every write.
type MongoBackend struct {
	client *mongo.Client
	col    *mongo.Collection
}

func NewMongoBackend(client *mongo.Client, dbName, collection string) *MongoBackend {
	if collection == "" {
		collection = DefaultMongoCollection
	}
	return &MongoBackend{
		client: client,
		col:    client.Database(dbName).Collection(collection),
	}
}

func OpenMongoBackend(ctx context.Context, uri, dbName, collection string) (*MongoBackend, error) {
	cctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	b := NewMongoBackend(client, dbName, collection)
	if err := b.Ping(cctx); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

func (b *MongoBackend) Read(ctx context.Context) ([]byte, error) {
	var doc mongoDocument
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return b.col.FindOne(ctx, bson.M{"_id": documentID}).Decode(&doc)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.Payload, nil
}

func (b *MongoBackend) Write(ctx context.Context, payload []byte) error {
	doc := mongoDocument{
		ID:        documentID,
		Payload:   payload,
		UpdatedAt: time.Now().UTC(),
	}

	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := b.col.ReplaceOne(ctx, bson.M{"_id": documentID}, doc, options.Replace().SetUpsert(true))
		return err
	})
}

func (b *MongoBackend) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return b.client.Ping(ctx, readpref.Primary())
	})
}

func (b *MongoBackend) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoCloseTimeout)
	defer cancel()
	return b.client.Disconnect(ctx)
}
