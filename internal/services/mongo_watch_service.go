package services

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/campusfound/backend/internal/models"
)

type MongoWatchService struct {
	client     *mongo.Client
	db         *mongo.Database
	collection *mongo.Collection
	items      ItemService
}

type mongoWatchDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	ItemID    string    `bson:"item_id"`
	CreatedAt time.Time `bson:"created_at"`
}

func NewMongoWatchService(ctx context.Context, mongoURI, dbName string) (*MongoWatchService, error) {
	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS12,
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI).SetTLSConfig(tlsCfg))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	db := client.Database(dbName)
	coll := db.Collection("watches")

	// Best-effort; one watch per user+item pair.
	_, _ = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "item_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "item_id", Value: 1}}},
	})

	return &MongoWatchService{client: client, db: db, collection: coll}, nil
}

func (s *MongoWatchService) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoWatchService) SetItemService(items ItemService) {
	s.items = items
}

func (s *MongoWatchService) AddWatch(ctx context.Context, userID, itemID string) (*models.Watch, error) {
	if s.items != nil {
		if _, err := s.items.GetItem(ctx, itemID); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	doc := mongoWatchDoc{
		ID:        uuid.New().String(),
		UserID:    userID,
		ItemID:    itemID,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrAlreadyWatched
		}
		return nil, err
	}

	return &models.Watch{
		ID:        doc.ID,
		UserID:    doc.UserID,
		ItemID:    doc.ItemID,
		CreatedAt: doc.CreatedAt,
	}, nil
}

func (s *MongoWatchService) RemoveWatch(ctx context.Context, userID, itemID string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := s.collection.DeleteOne(ctx, bson.M{"user_id": userID, "item_id": itemID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrWatchNotFound
	}
	return nil
}

func (s *MongoWatchService) ListForUser(ctx context.Context, userID string) ([]*models.Watch, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cur, err := s.collection.Find(
		ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]*models.Watch, 0)
	for cur.Next(ctx) {
		var d mongoWatchDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, &models.Watch{
			ID:        d.ID,
			UserID:    d.UserID,
			ItemID:    d.ItemID,
			CreatedAt: d.CreatedAt,
		})
	}
	return out, cur.Err()
}

func (s *MongoWatchService) RemoveAllForItem(ctx context.Context, itemID string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.collection.DeleteMany(ctx, bson.M{"item_id": itemID})
	return err
}

func (s *MongoWatchService) RemoveAllForUser(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.collection.DeleteMany(ctx, bson.M{"user_id": userID})
	return err
}
