package services

import (
	"context"
	"crypto/tls"
	"log"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/campusfound/backend/internal/models"
)

type MongoItemService struct {
	client     *mongo.Client
	db         *mongo.Database
	itemsColl  *mongo.Collection
	claimsColl *mongo.Collection

	notifier Notifier
	mailer   Mailer
}

type mongoItemStats struct {
	TotalClaims    int       `bson:"total_claims"`
	PendingClaims  int       `bson:"pending_claims"`
	ApprovedClaims int       `bson:"approved_claims"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

type mongoClaimSummary struct {
	ClaimID      string    `bson:"claim_id"`
	ClaimantName string    `bson:"claimant_name"`
	Status       string    `bson:"status"`
	Message      string    `bson:"message"`
	CreatedAt    time.Time `bson:"created_at"`
}

type mongoItemDoc struct {
	ID            string             `bson:"_id"`
	Type          string             `bson:"type"`
	Name          string             `bson:"name"`
	Description   string             `bson:"description"`
	Category      string             `bson:"category"`
	Location      string             `bson:"location"`
	PhotoURLs     []string           `bson:"photo_urls,omitempty"`
	Status        string             `bson:"status"`
	ReporterID    string             `bson:"reporter_id,omitempty"`
	ReporterName  string             `bson:"reporter_name,omitempty"`
	ReporterEmail string             `bson:"reporter_email,omitempty"`
	ReporterRole  string             `bson:"reporter_role,omitempty"`
	ClaimedBy     string             `bson:"claimed_by,omitempty"`
	ResolvedDate  *time.Time         `bson:"resolved_date,omitempty"`
	SearchTags    []string           `bson:"search_tags,omitempty"`
	Stats         mongoItemStats     `bson:"stats"`
	LastClaim     *mongoClaimSummary `bson:"last_claim,omitempty"`
	DateReported  time.Time          `bson:"date_reported"`
}

type mongoContactEntry struct {
	Message   string    `bson:"message"`
	SenderID  string    `bson:"sender_id"`
	Delivered bool      `bson:"delivered"`
	CreatedAt time.Time `bson:"created_at"`
}

type mongoClaimDoc struct {
	ID               string              `bson:"_id"`
	ItemID           string              `bson:"item_id"`
	ClaimantID       string              `bson:"claimant_id"`
	ClaimantName     string              `bson:"claimant_name,omitempty"`
	OwnerID          string              `bson:"owner_id,omitempty"`
	Message          string              `bson:"message"`
	ProofDescription string              `bson:"proof_description,omitempty"`
	ContactInfo      string              `bson:"contact_info,omitempty"`
	Status           string              `bson:"status"`
	ContactHistory   []mongoContactEntry `bson:"contact_history,omitempty"`
	ResolvedAt       *time.Time          `bson:"resolved_at,omitempty"`
	ResolvedBy       string              `bson:"resolved_by,omitempty"`
	Response         string              `bson:"response,omitempty"`
	CreatedAt        time.Time           `bson:"created_at"`
}

func NewMongoItemService(ctx context.Context, mongoURI, dbName string) (*MongoItemService, error) {
	// Atlas occasionally fails TLS negotiation unless TLS 1.2 is forced.
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
	items := db.Collection("items")
	claims := db.Collection("claims")

	svc := &MongoItemService{
		client:     client,
		db:         db,
		itemsColl:  items,
		claimsColl: claims,
	}

	// Best-effort indexes.
	_, _ = items.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "date_reported", Value: -1}}},
		{Keys: bson.D{{Key: "reporter_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "type", Value: 1}}},
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "search_tags", Value: 1}}},
	})
	_, _ = claims.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "item_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "claimant_id", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})

	log.Printf("MongoDB connected: db=%s", dbName)
	return svc, nil
}

func (s *MongoItemService) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoItemService) SetNotifier(n Notifier) { s.notifier = n }
func (s *MongoItemService) SetMailer(m Mailer)     { s.mailer = m }

func itemDocToModel(d mongoItemDoc) *models.Item {
	item := &models.Item{
		ID:            d.ID,
		Type:          d.Type,
		Name:          d.Name,
		Description:   d.Description,
		Category:      d.Category,
		Location:      d.Location,
		PhotoURLs:     d.PhotoURLs,
		Status:        d.Status,
		ReporterID:    d.ReporterID,
		ReporterName:  d.ReporterName,
		ReporterEmail: d.ReporterEmail,
		ReporterRole:  d.ReporterRole,
		ClaimedBy:     d.ClaimedBy,
		ResolvedDate:  d.ResolvedDate,
		SearchTags:    d.SearchTags,
		Stats: models.ItemStats{
			TotalClaims:    d.Stats.TotalClaims,
			PendingClaims:  d.Stats.PendingClaims,
			ApprovedClaims: d.Stats.ApprovedClaims,
			UpdatedAt:      d.Stats.UpdatedAt,
		},
		DateReported: d.DateReported,
	}
	if d.LastClaim != nil {
		item.LastClaim = &models.ClaimSummary{
			ClaimID:      d.LastClaim.ClaimID,
			ClaimantName: d.LastClaim.ClaimantName,
			Status:       d.LastClaim.Status,
			Message:      d.LastClaim.Message,
			CreatedAt:    d.LastClaim.CreatedAt,
		}
	}
	return item
}

func claimDocToModel(d mongoClaimDoc) *models.Claim {
	claim := &models.Claim{
		ID:               d.ID,
		ItemID:           d.ItemID,
		ClaimantID:       d.ClaimantID,
		ClaimantName:     d.ClaimantName,
		OwnerID:          d.OwnerID,
		Message:          d.Message,
		ProofDescription: d.ProofDescription,
		ContactInfo:      d.ContactInfo,
		Status:           d.Status,
		ResolvedAt:       d.ResolvedAt,
		ResolvedBy:       d.ResolvedBy,
		Response:         d.Response,
		CreatedAt:        d.CreatedAt,
	}
	for _, e := range d.ContactHistory {
		claim.ContactHistory = append(claim.ContactHistory, models.ContactEntry{
			Message:   e.Message,
			SenderID:  e.SenderID,
			Delivered: e.Delivered,
			CreatedAt: e.CreatedAt,
		})
	}
	return claim
}

func (s *MongoItemService) ReportItem(ctx context.Context, reporter *models.User, req *models.ReportItemRequest) (*models.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	now := time.Now().UTC()
	doc := mongoItemDoc{
		ID:            uuid.New().String(),
		Type:          req.Type,
		Name:          req.Name,
		Description:   req.Description,
		Category:      req.Category,
		Location:      req.Location,
		PhotoURLs:     req.PhotoURLs,
		Status:        models.StatusAvailable,
		ReporterID:    reporter.ID,
		ReporterName:  reporter.Name,
		ReporterEmail: reporter.Email,
		ReporterRole:  reporter.Role,
		SearchTags:    models.BuildSearchTags(req.Name, req.Description),
		Stats:         mongoItemStats{UpdatedAt: now},
		DateReported:  now,
	}

	if _, err := s.itemsColl.InsertOne(ctx, doc); err != nil {
		return nil, err
	}
	return itemDocToModel(doc), nil
}

func (s *MongoItemService) GetItem(ctx context.Context, itemID string) (*models.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.getItem(ctx, itemID)
}

func (s *MongoItemService) getItem(ctx context.Context, itemID string) (*models.Item, error) {
	var d mongoItemDoc
	if err := s.itemsColl.FindOne(ctx, bson.M{"_id": itemID}).Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return itemDocToModel(d), nil
}

func (s *MongoItemService) ListItems(ctx context.Context, filter ItemFilter) ([]*models.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := bson.M{}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Query != "" {
		query["search_tags"] = bson.M{"$regex": filter.Query, "$options": "i"}
	}

	limit := int64(filter.Limit)
	if limit <= 0 || limit > 500 {
		limit = 500
	}

	cur, err := s.itemsColl.Find(
		ctx,
		query,
		options.Find().SetSort(bson.D{{Key: "date_reported", Value: -1}}).SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	results := make([]*models.Item, 0)
	for cur.Next(ctx) {
		var d mongoItemDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		results = append(results, itemDocToModel(d))
	}
	return results, cur.Err()
}

func (s *MongoItemService) UpdateItem(ctx context.Context, actor *models.User, itemID string, req *models.UpdateItemRequest) (*models.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	item, err := s.getItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !canManageItem(actor, item) {
		return nil, ErrForbidden
	}

	set := bson.M{
		"name":        req.Name,
		"description": req.Description,
		"category":    req.Category,
		"location":    req.Location,
		"search_tags": models.BuildSearchTags(req.Name, req.Description),
	}
	if req.PhotoURLs != nil {
		set["photo_urls"] = req.PhotoURLs
	}

	res := s.itemsColl.FindOneAndUpdate(
		ctx,
		bson.M{"_id": itemID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var updated mongoItemDoc
	if err := res.Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return itemDocToModel(updated), nil
}

func (s *MongoItemService) DeleteItem(ctx context.Context, actor *models.User, itemID string) (*models.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	item, err := s.getItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !canManageItem(actor, item) {
		return nil, ErrForbidden
	}

	if _, err := s.claimsColl.DeleteMany(ctx, bson.M{"item_id": itemID}); err != nil {
		return nil, err
	}
	if _, err := s.itemsColl.DeleteOne(ctx, bson.M{"_id": itemID}); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *MongoItemService) SetItemStatus(ctx context.Context, actor *models.User, itemID, status string) (*models.Item, error) {
	if actor.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res := s.itemsColl.FindOneAndUpdate(
		ctx,
		bson.M{"_id": itemID},
		bson.M{"$set": bson.M{"status": status}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var updated mongoItemDoc
	if err := res.Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return itemDocToModel(updated), nil
}

func (s *MongoItemService) SubmitClaim(ctx context.Context, claimant *models.User, itemID string, req *models.SubmitClaimRequest) (*models.Claim, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	item, err := s.getItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Type != models.ItemFound {
		return nil, ErrNotClaimable
	}
	if item.Status != models.StatusAvailable && item.Status != models.StatusClaimPending {
		return nil, ErrItemNotAvailable
	}
	if item.ReporterID != "" && item.ReporterID == claimant.ID {
		return nil, ErrSelfClaim
	}

	n, err := s.claimsColl.CountDocuments(ctx, bson.M{
		"item_id":     itemID,
		"claimant_id": claimant.ID,
		"status":      models.ClaimPending,
	})
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrDuplicateClaim
	}

	now := time.Now().UTC()
	doc := mongoClaimDoc{
		ID:               uuid.New().String(),
		ItemID:           itemID,
		ClaimantID:       claimant.ID,
		ClaimantName:     claimant.Name,
		OwnerID:          item.ReporterID,
		Message:          req.Message,
		ProofDescription: req.ProofDescription,
		ContactInfo:      req.ContactInfo,
		Status:           models.ClaimPending,
		CreatedAt:        now,
	}
	if _, err := s.claimsColl.InsertOne(ctx, doc); err != nil {
		return nil, err
	}

	// First pending claim flips the item to claim_pending.
	_, _ = s.itemsColl.UpdateOne(ctx,
		bson.M{"_id": itemID, "status": models.StatusAvailable},
		bson.M{"$set": bson.M{"status": models.StatusClaimPending}},
	)
	if err := s.RecomputeItemStats(ctx, itemID); err != nil {
		log.Printf("[claims] stats recompute failed item=%s: %v", itemID, err)
	}

	claim := claimDocToModel(doc)
	notifyNewClaim(ctx, s.notifier, s.mailer, item, claim)
	return claim, nil
}

func (s *MongoItemService) ApproveClaim(ctx context.Context, actor *models.User, claimID string) (*models.Claim, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	claim, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	item, err := s.getItem(ctx, claim.ItemID)
	if err != nil {
		return nil, err
	}
	if !canManageItem(actor, item) {
		return nil, ErrForbidden
	}
	if claim.Status != models.ClaimPending {
		return nil, ErrClaimResolved
	}

	now := time.Now().UTC()
	res := s.claimsColl.FindOneAndUpdate(
		ctx,
		bson.M{"_id": claimID, "status": models.ClaimPending},
		bson.M{"$set": bson.M{
			"status":      models.ClaimApproved,
			"resolved_at": now,
			"resolved_by": actor.ID,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var approved mongoClaimDoc
	if err := res.Decode(&approved); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrClaimResolved
		}
		return nil, err
	}

	// Exclusivity: every other pending claim on the item loses.
	rejected, err := s.rejectSiblings(ctx, item.ID, claimID, actor.ID, now)
	if err != nil {
		log.Printf("[claims] sibling rejection failed item=%s: %v", item.ID, err)
	}

	if _, err := s.itemsColl.UpdateOne(ctx,
		bson.M{"_id": item.ID},
		bson.M{"$set": bson.M{
			"status":        models.StatusReturned,
			"claimed_by":    approved.ClaimantID,
			"resolved_date": now,
		}},
	); err != nil {
		return nil, err
	}

	if err := s.RecomputeItemStats(ctx, item.ID); err != nil {
		log.Printf("[claims] stats recompute failed item=%s: %v", item.ID, err)
	}

	claimModel := claimDocToModel(approved)
	item.Status = models.StatusReturned
	notifyClaimApproved(ctx, s.notifier, s.mailer, item, claimModel, rejected)
	return claimModel, nil
}

func (s *MongoItemService) rejectSiblings(ctx context.Context, itemID, keepClaimID, actorID string, now time.Time) ([]*models.Claim, error) {
	filter := bson.M{
		"item_id": itemID,
		"_id":     bson.M{"$ne": keepClaimID},
		"status":  models.ClaimPending,
	}

	cur, err := s.claimsColl.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	rejected := make([]*models.Claim, 0)
	for cur.Next(ctx) {
		var d mongoClaimDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		d.Status = models.ClaimRejected
		d.ResolvedAt = &now
		d.ResolvedBy = actorID
		d.Response = RejectedSiblingReason
		rejected = append(rejected, claimDocToModel(d))
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	_, err = s.claimsColl.UpdateMany(ctx, filter, bson.M{"$set": bson.M{
		"status":      models.ClaimRejected,
		"resolved_at": now,
		"resolved_by": actorID,
		"response":    RejectedSiblingReason,
	}})
	return rejected, err
}

func (s *MongoItemService) RejectClaim(ctx context.Context, actor *models.User, claimID, reason string) (*models.Claim, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	claim, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	item, err := s.getItem(ctx, claim.ItemID)
	if err != nil {
		return nil, err
	}
	if !canManageItem(actor, item) {
		return nil, ErrForbidden
	}
	if claim.Status != models.ClaimPending {
		return nil, ErrClaimResolved
	}

	now := time.Now().UTC()
	res := s.claimsColl.FindOneAndUpdate(
		ctx,
		bson.M{"_id": claimID, "status": models.ClaimPending},
		bson.M{"$set": bson.M{
			"status":      models.ClaimRejected,
			"resolved_at": now,
			"resolved_by": actor.ID,
			"response":    reason,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var updated mongoClaimDoc
	if err := res.Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrClaimResolved
		}
		return nil, err
	}

	// Revert the item when no pending claim remains.
	pending, err := s.claimsColl.CountDocuments(ctx, bson.M{"item_id": item.ID, "status": models.ClaimPending})
	if err == nil && pending == 0 {
		_, _ = s.itemsColl.UpdateOne(ctx,
			bson.M{"_id": item.ID, "status": models.StatusClaimPending},
			bson.M{"$set": bson.M{"status": models.StatusAvailable}},
		)
	}

	if err := s.RecomputeItemStats(ctx, item.ID); err != nil {
		log.Printf("[claims] stats recompute failed item=%s: %v", item.ID, err)
	}

	claimModel := claimDocToModel(updated)
	notifyClaimRejected(ctx, s.notifier, s.mailer, item, claimModel)
	return claimModel, nil
}

func (s *MongoItemService) MarkReturned(ctx context.Context, actor *models.User, itemID, claimID string) (*models.Claim, error) {
	claim, err := s.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim.ItemID != itemID {
		return nil, ErrClaimNotFound
	}
	return s.ApproveClaim(ctx, actor, claimID)
}

func (s *MongoItemService) ContactClaimant(ctx context.Context, actor *models.User, claimID, message string) (*models.Claim, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	claim, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	item, err := s.getItem(ctx, claim.ItemID)
	if err != nil {
		return nil, err
	}
	if !canManageItem(actor, item) {
		return nil, ErrForbidden
	}

	delivered := sendContactEmail(ctx, s.notifier, s.mailer, item, claim, message)

	entry := mongoContactEntry{
		Message:   message,
		SenderID:  actor.ID,
		Delivered: delivered,
		CreatedAt: time.Now().UTC(),
	}
	res := s.claimsColl.FindOneAndUpdate(
		ctx,
		bson.M{"_id": claimID},
		bson.M{"$push": bson.M{"contact_history": entry}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var updated mongoClaimDoc
	if err := res.Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}

	claimModel := claimDocToModel(updated)
	notifyContactMessage(ctx, s.notifier, item, claimModel)
	return claimModel, nil
}

func (s *MongoItemService) GetClaim(ctx context.Context, claimID string) (*models.Claim, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.getClaim(ctx, claimID)
}

func (s *MongoItemService) getClaim(ctx context.Context, claimID string) (*models.Claim, error) {
	var d mongoClaimDoc
	if err := s.claimsColl.FindOne(ctx, bson.M{"_id": claimID}).Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	return claimDocToModel(d), nil
}

func (s *MongoItemService) ListClaimsForItem(ctx context.Context, actor *models.User, itemID string) ([]*models.Claim, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	item, err := s.getItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !canManageItem(actor, item) {
		return nil, ErrForbidden
	}
	return s.findClaims(ctx, bson.M{"item_id": itemID})
}

func (s *MongoItemService) ListClaimsByClaimant(ctx context.Context, userID string) ([]*models.Claim, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.findClaims(ctx, bson.M{"claimant_id": userID})
}

func (s *MongoItemService) findClaims(ctx context.Context, filter bson.M) ([]*models.Claim, error) {
	cur, err := s.claimsColl.Find(
		ctx,
		filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	claims := make([]*models.Claim, 0)
	for cur.Next(ctx) {
		var d mongoClaimDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		claims = append(claims, claimDocToModel(d))
	}
	return claims, cur.Err()
}

// RecomputeItemStats rebuilds the item's derived claim stats from the
// claims collection. Full recomputation, so repeated or racing calls
// converge on the same result.
func (s *MongoItemService) RecomputeItemStats(ctx context.Context, itemID string) error {
	claims, err := s.findClaims(ctx, bson.M{"item_id": itemID})
	if err != nil {
		return err
	}

	stats := mongoItemStats{UpdatedAt: time.Now().UTC()}
	var latest *models.Claim
	for _, c := range claims {
		stats.TotalClaims++
		switch c.Status {
		case models.ClaimPending:
			stats.PendingClaims++
		case models.ClaimApproved:
			stats.ApprovedClaims++
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}

	set := bson.M{"stats": stats}
	update := bson.M{"$set": set}
	if latest != nil {
		sum := latest.Summarize()
		set["last_claim"] = mongoClaimSummary{
			ClaimID:      sum.ClaimID,
			ClaimantName: sum.ClaimantName,
			Status:       sum.Status,
			Message:      sum.Message,
			CreatedAt:    sum.CreatedAt,
		}
	} else {
		// No claims left: drop the stale summary, like the memory twin.
		update["$unset"] = bson.M{"last_claim": ""}
	}

	res, err := s.itemsColl.UpdateOne(ctx, bson.M{"_id": itemID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (s *MongoItemService) RenameCategory(ctx context.Context, oldName, newName string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := s.itemsColl.UpdateMany(ctx,
		bson.M{"category": oldName},
		bson.M{"$set": bson.M{"category": newName}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *MongoItemService) CountByCategory(ctx context.Context, name string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.itemsColl.CountDocuments(ctx, bson.M{"category": name})
}

func (s *MongoItemService) ClearReporter(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := s.itemsColl.UpdateMany(ctx,
		bson.M{"reporter_id": userID},
		bson.M{"$set": bson.M{"reporter_id": "", "status": models.StatusOwnerDeleted}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *MongoItemService) ListAllItems(ctx context.Context) ([]*models.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cur, err := s.itemsColl.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "date_reported", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	items := make([]*models.Item, 0)
	for cur.Next(ctx) {
		var d mongoItemDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		items = append(items, itemDocToModel(d))
	}
	return items, cur.Err()
}

func (s *MongoItemService) ListAllClaims(ctx context.Context) ([]*models.Claim, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return s.findClaims(ctx, bson.M{})
}

// FindStuckItems returns ids of items still claim_pending while holding an
// approved claim (the crash window between claim approval and the item
// status write). The reconcile worker repairs these.
func (s *MongoItemService) FindStuckItems(ctx context.Context) ([]string, error) {
	cur, err := s.claimsColl.Distinct(ctx, "item_id", bson.M{"status": models.ClaimApproved})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(cur))
	for _, v := range cur {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	itemCur, err := s.itemsColl.Find(ctx, bson.M{
		"_id":    bson.M{"$in": ids},
		"status": models.StatusClaimPending,
	}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer itemCur.Close(ctx)

	stuck := make([]string, 0)
	for itemCur.Next(ctx) {
		var d struct {
			ID string `bson:"_id"`
		}
		if err := itemCur.Decode(&d); err != nil {
			return nil, err
		}
		stuck = append(stuck, d.ID)
	}
	return stuck, itemCur.Err()
}

// RepairStuckItem completes the approve transition for an item found by
// FindStuckItems.
func (s *MongoItemService) RepairStuckItem(ctx context.Context, itemID string) error {
	var approved mongoClaimDoc
	err := s.claimsColl.FindOne(ctx, bson.M{"item_id": itemID, "status": models.ClaimApproved}).Decode(&approved)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil
		}
		return err
	}

	now := time.Now().UTC()
	if _, err := s.rejectSiblings(ctx, itemID, approved.ID, approved.ResolvedBy, now); err != nil {
		return err
	}
	if _, err := s.itemsColl.UpdateOne(ctx,
		bson.M{"_id": itemID, "status": models.StatusClaimPending},
		bson.M{"$set": bson.M{
			"status":        models.StatusReturned,
			"claimed_by":    approved.ClaimantID,
			"resolved_date": now,
		}},
	); err != nil {
		return err
	}
	return s.RecomputeItemStats(ctx, itemID)
}
