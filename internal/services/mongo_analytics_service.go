package services

import (
	"context"
	"crypto/tls"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/campusfound/backend/internal/models"
)

// MongoAnalyticsService answers report queries with aggregation pipelines
// instead of loading collections into memory.
type MongoAnalyticsService struct {
	client     *mongo.Client
	db         *mongo.Database
	itemsColl  *mongo.Collection
	claimsColl *mongo.Collection
	usersColl  *mongo.Collection
}

func NewMongoAnalyticsService(ctx context.Context, mongoURI, dbName string) (*MongoAnalyticsService, error) {
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
	return &MongoAnalyticsService{
		client:     client,
		db:         db,
		itemsColl:  db.Collection("items"),
		claimsColl: db.Collection("claims"),
		usersColl:  db.Collection("users"),
	}, nil
}

func (s *MongoAnalyticsService) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoAnalyticsService) Overview(ctx context.Context) (*models.OverviewReport, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	report := &models.OverviewReport{}

	counts := []struct {
		coll   *mongo.Collection
		filter bson.M
		dst    *int64
	}{
		{s.itemsColl, bson.M{}, &report.TotalItems},
		{s.itemsColl, bson.M{"type": models.ItemLost}, &report.LostItems},
		{s.itemsColl, bson.M{"type": models.ItemFound}, &report.FoundItems},
		{s.itemsColl, bson.M{"status": models.StatusReturned}, &report.ReturnedItems},
		{s.claimsColl, bson.M{}, &report.TotalClaims},
		{s.claimsColl, bson.M{"status": models.ClaimPending}, &report.PendingClaims},
		{s.claimsColl, bson.M{"status": models.ClaimApproved}, &report.ApprovedClaims},
		{s.usersColl, bson.M{}, &report.TotalUsers},
	}
	for _, c := range counts {
		n, err := c.coll.CountDocuments(ctx, c.filter)
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}
	return report, nil
}

func (s *MongoAnalyticsService) ItemsByStatus(ctx context.Context) ([]models.BucketCount, error) {
	return s.groupField(ctx, s.itemsColl, "$status")
}

func (s *MongoAnalyticsService) ItemsByType(ctx context.Context) ([]models.BucketCount, error) {
	return s.groupField(ctx, s.itemsColl, "$type")
}

func (s *MongoAnalyticsService) ItemsByCategory(ctx context.Context) ([]models.BucketCount, error) {
	return s.groupField(ctx, s.itemsColl, "$category")
}

func (s *MongoAnalyticsService) ClaimsByStatus(ctx context.Context) ([]models.BucketCount, error) {
	return s.groupField(ctx, s.claimsColl, "$status")
}

func (s *MongoAnalyticsService) ItemsOverTime(ctx context.Context, bucket string) ([]models.BucketCount, error) {
	var format string
	switch bucket {
	case BucketDay:
		format = "%Y-%m-%d"
	case BucketWeek:
		format = "%G-W%V"
	case BucketMonth:
		format = "%Y-%m"
	default:
		return nil, ErrBadBucket
	}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$dateToString": bson.M{
				"format": format,
				"date":   "$date_reported",
			}},
			"count": bson.M{"$sum": 1},
		}}},
		bson.D{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}
	return s.runBucketPipeline(ctx, s.itemsColl, pipeline)
}

func (s *MongoAnalyticsService) TopReporters(ctx context.Context, limit int) ([]models.TopReporter, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if limit <= 0 {
		limit = 10
	}
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"reporter_id": bson.M{"$gt": ""}}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":           "$reporter_id",
			"reporter_name": bson.M{"$first": "$reporter_name"},
			"item_count":    bson.M{"$sum": 1},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "item_count", Value: -1}, {Key: "_id", Value: 1}}}},
		bson.D{{Key: "$limit", Value: limit}},
	}

	cur, err := s.itemsColl.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]models.TopReporter, 0)
	for cur.Next(ctx) {
		var row struct {
			ID           string `bson:"_id"`
			ReporterName string `bson:"reporter_name"`
			ItemCount    int64  `bson:"item_count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out = append(out, models.TopReporter{
			UserID:       row.ID,
			ReporterName: row.ReporterName,
			ItemCount:    row.ItemCount,
		})
	}
	return out, cur.Err()
}

func (s *MongoAnalyticsService) MostClaimedItems(ctx context.Context, limit int) ([]models.TopClaimedItem, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if limit <= 0 {
		limit = 10
	}
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$group", Value: bson.M{
			"_id":         "$item_id",
			"claim_count": bson.M{"$sum": 1},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "claim_count", Value: -1}, {Key: "_id", Value: 1}}}},
		bson.D{{Key: "$limit", Value: limit}},
		bson.D{{Key: "$lookup", Value: bson.M{
			"from":         "items",
			"localField":   "_id",
			"foreignField": "_id",
			"as":           "item",
		}}},
	}

	cur, err := s.claimsColl.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]models.TopClaimedItem, 0)
	for cur.Next(ctx) {
		var row struct {
			ID         string `bson:"_id"`
			ClaimCount int64  `bson:"claim_count"`
			Item       []struct {
				Name string `bson:"name"`
			} `bson:"item"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		entry := models.TopClaimedItem{ItemID: row.ID, ClaimCount: row.ClaimCount}
		if len(row.Item) > 0 {
			entry.Name = row.Item[0].Name
		}
		out = append(out, entry)
	}
	return out, cur.Err()
}

func (s *MongoAnalyticsService) PopularTags(ctx context.Context, limit int) ([]models.TagCount, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if limit <= 0 {
		limit = 10
	}
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$unwind", Value: "$search_tags"}},
		bson.D{{Key: "$sortByCount", Value: "$search_tags"}},
		bson.D{{Key: "$limit", Value: limit}},
	}

	cur, err := s.itemsColl.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]models.TagCount, 0)
	for cur.Next(ctx) {
		var row struct {
			ID    string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out = append(out, models.TagCount{Tag: row.ID, Count: row.Count})
	}
	return out, cur.Err()
}

func (s *MongoAnalyticsService) groupField(ctx context.Context, coll *mongo.Collection, field string) ([]models.BucketCount, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$group", Value: bson.M{
			"_id":   field,
			"count": bson.M{"$sum": 1},
		}}},
		bson.D{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}
	return s.runBucketPipeline(ctx, coll, pipeline)
}

func (s *MongoAnalyticsService) runBucketPipeline(ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline) ([]models.BucketCount, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cur, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]models.BucketCount, 0)
	for cur.Next(ctx) {
		var row struct {
			ID    string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out = append(out, models.BucketCount{Key: row.ID, Count: row.Count})
	}
	return out, cur.Err()
}
