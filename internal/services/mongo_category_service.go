package services

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/campusfound/backend/internal/models"
)

type MongoCategoryService struct {
	client     *mongo.Client
	db         *mongo.Database
	collection *mongo.Collection
	items      ItemService
}

type mongoCategoryDoc struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	NameKey     string    `bson:"name_key"`
	Description string    `bson:"description,omitempty"`
	Icon        string    `bson:"icon,omitempty"`
	Active      bool      `bson:"active"`
	CreatedBy   string    `bson:"created_by,omitempty"`
	ItemCount   int       `bson:"item_count"`
	CreatedAt   time.Time `bson:"created_at"`
}

func NewMongoCategoryService(ctx context.Context, mongoURI, dbName string) (*MongoCategoryService, error) {
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
	coll := db.Collection("categories")

	// Best-effort unique index on the normalized name.
	_, _ = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name_key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	return &MongoCategoryService{client: client, db: db, collection: coll}, nil
}

func (s *MongoCategoryService) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoCategoryService) SetItemService(items ItemService) {
	s.items = items
}

func categoryDocToModel(d mongoCategoryDoc) *models.Category {
	return &models.Category{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Icon:        d.Icon,
		Active:      d.Active,
		CreatedBy:   d.CreatedBy,
		ItemCount:   d.ItemCount,
		CreatedAt:   d.CreatedAt,
	}
}

func (s *MongoCategoryService) Create(ctx context.Context, actor *models.User, req *models.CreateCategoryRequest) (*models.Category, error) {
	if actor.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	name := strings.TrimSpace(req.Name)
	doc := mongoCategoryDoc{
		ID:          uuid.New().String(),
		Name:        name,
		NameKey:     nameKey(name),
		Description: req.Description,
		Icon:        req.Icon,
		Active:      true,
		CreatedBy:   actor.ID,
		CreatedAt:   time.Now().UTC(),
	}

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrCategoryExists
		}
		return nil, err
	}
	return categoryDocToModel(doc), nil
}

func (s *MongoCategoryService) Update(ctx context.Context, actor *models.User, categoryID string, req *models.UpdateCategoryRequest) (*models.Category, error) {
	if actor.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var current mongoCategoryDoc
	if err := s.collection.FindOne(ctx, bson.M{"_id": categoryID}).Decode(&current); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}

	newName := strings.TrimSpace(req.Name)
	renamed := newName != "" && newName != current.Name

	set := bson.M{
		"description": req.Description,
		"icon":        req.Icon,
	}
	if renamed {
		set["name"] = newName
		set["name_key"] = nameKey(newName)
	}
	if req.Active != nil {
		set["active"] = *req.Active
	}

	res := s.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": categoryID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var updated mongoCategoryDoc
	if err := res.Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrCategoryNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrCategoryExists
		}
		return nil, err
	}

	// Cascade the rename across items referencing the old name.
	if renamed && s.items != nil {
		if _, err := s.items.RenameCategory(ctx, current.Name, newName); err != nil {
			return nil, err
		}
	}
	return categoryDocToModel(updated), nil
}

func (s *MongoCategoryService) Delete(ctx context.Context, actor *models.User, categoryID string) error {
	if actor.Role != models.RoleAdmin {
		return ErrForbidden
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var current mongoCategoryDoc
	if err := s.collection.FindOne(ctx, bson.M{"_id": categoryID}).Decode(&current); err != nil {
		if err == mongo.ErrNoDocuments {
			return ErrCategoryNotFound
		}
		return err
	}

	if s.items != nil {
		n, err := s.items.CountByCategory(ctx, current.Name)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrCategoryInUse
		}
	}

	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": categoryID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func (s *MongoCategoryService) List(ctx context.Context, includeInactive bool) ([]*models.Category, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{}
	if !includeInactive {
		filter["active"] = true
	}

	cur, err := s.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]*models.Category, 0)
	for cur.Next(ctx) {
		var d mongoCategoryDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, categoryDocToModel(d))
	}
	return out, cur.Err()
}

func (s *MongoCategoryService) RefreshCounts(ctx context.Context) error {
	if s.items == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cats, err := s.List(ctx, true)
	if err != nil {
		return err
	}
	for _, cat := range cats {
		n, err := s.items.CountByCategory(ctx, cat.Name)
		if err != nil {
			return err
		}
		if _, err := s.collection.UpdateOne(ctx,
			bson.M{"_id": cat.ID},
			bson.M{"$set": bson.M{"item_count": int(n)}},
		); err != nil {
			return err
		}
	}
	return nil
}

// SeedDefaults inserts the default catalog on an empty collection.
func (s *MongoCategoryService) SeedDefaults(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	n, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(models.DefaultCategories))
	now := time.Now().UTC()
	for _, name := range models.DefaultCategories {
		docs = append(docs, mongoCategoryDoc{
			ID:        uuid.New().String(),
			Name:      name,
			NameKey:   nameKey(name),
			Active:    true,
			CreatedAt: now,
		})
	}
	_, err = s.collection.InsertMany(ctx, docs)
	return err
}
