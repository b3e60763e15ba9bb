package services

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusfound/backend/internal/models"
)

type MongoUserService struct {
	client     *mongo.Client
	db         *mongo.Database
	collection *mongo.Collection
	adminEmail string
}

type mongoNotificationDoc struct {
	ID        string    `bson:"id"`
	Kind      string    `bson:"kind"`
	Message   string    `bson:"message"`
	ItemID    string    `bson:"item_id,omitempty"`
	ClaimID   string    `bson:"claim_id,omitempty"`
	Read      bool      `bson:"read"`
	CreatedAt time.Time `bson:"created_at"`
}

type mongoAdminActionDoc struct {
	Action    string    `bson:"action"`
	Reason    string    `bson:"reason,omitempty"`
	ActorID   string    `bson:"actor_id"`
	CreatedAt time.Time `bson:"created_at"`
}

type mongoUserDoc struct {
	ID            string                 `bson:"_id"`
	Name          string                 `bson:"name"`
	Email         string                 `bson:"email"`
	UniversityID  string                 `bson:"university_id"`
	PasswordHash  string                 `bson:"password_hash"`
	Role          string                 `bson:"role"`
	Verified      bool                   `bson:"verified"`
	Suspended     bool                   `bson:"suspended"`
	Banned        bool                   `bson:"banned"`
	ModReason     string                 `bson:"mod_reason,omitempty"`
	ModAt         time.Time              `bson:"mod_at,omitempty"`
	ModBy         string                 `bson:"mod_by,omitempty"`
	Strikes       int                    `bson:"strikes"`
	Deleted       bool                   `bson:"deleted"`
	Notifications []mongoNotificationDoc `bson:"notifications,omitempty"`
	AuditLog      []mongoAdminActionDoc  `bson:"audit_log,omitempty"`
	CreatedAt     time.Time              `bson:"created_at"`
}

func NewMongoUserService(ctx context.Context, mongoURI, dbName string) (*MongoUserService, error) {
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
	coll := db.Collection("users")

	// Best-effort. Email and university id must stay unique across live
	// accounts; deleted placeholders blank both fields.
	_, _ = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"email": bson.M{"$gt": ""}}),
		},
		{
			Keys: bson.D{{Key: "university_id", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"university_id": bson.M{"$gt": ""}}),
		},
	})

	return &MongoUserService{client: client, db: db, collection: coll}, nil
}

func (s *MongoUserService) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoUserService) SetAdminEmail(email string) {
	s.adminEmail = strings.ToLower(strings.TrimSpace(email))
}

func userDocToModel(d mongoUserDoc) *models.User {
	user := &models.User{
		ID:           d.ID,
		Name:         d.Name,
		Email:        d.Email,
		UniversityID: d.UniversityID,
		PasswordHash: d.PasswordHash,
		Role:         d.Role,
		Verified:     d.Verified,
		Suspended:    d.Suspended,
		Banned:       d.Banned,
		ModReason:    d.ModReason,
		ModAt:        d.ModAt,
		ModBy:        d.ModBy,
		Strikes:      d.Strikes,
		Deleted:      d.Deleted,
		CreatedAt:    d.CreatedAt,
	}
	for _, n := range d.Notifications {
		user.Notifications = append(user.Notifications, models.Notification{
			ID:        n.ID,
			Kind:      n.Kind,
			Message:   n.Message,
			ItemID:    n.ItemID,
			ClaimID:   n.ClaimID,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	for _, a := range d.AuditLog {
		user.AuditLog = append(user.AuditLog, models.AdminAction{
			Action:    a.Action,
			Reason:    a.Reason,
			ActorID:   a.ActorID,
			CreatedAt: a.CreatedAt,
		})
	}
	return user
}

func (s *MongoUserService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	email := strings.ToLower(strings.TrimSpace(req.Email))

	n, err := s.collection.CountDocuments(ctx, bson.M{"email": email})
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrEmailExists
	}
	n, err = s.collection.CountDocuments(ctx, bson.M{"university_id": req.UniversityID})
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrUniversityIDExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	role := models.RoleStudent
	if s.adminEmail != "" && email == s.adminEmail {
		role = models.RoleAdmin
	}

	doc := mongoUserDoc{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Email:        email,
		UniversityID: req.UniversityID,
		PasswordHash: string(hashed),
		Role:         role,
		Verified:     true,
		CreatedAt:    time.Now().UTC(),
	}

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrEmailExists
		}
		return nil, err
	}
	return userDocToModel(doc), nil
}

func (s *MongoUserService) Login(ctx context.Context, req *models.LoginRequest) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var d mongoUserDoc
	err := s.collection.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(req.Email))}).Decode(&d)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if d.Banned {
		return nil, ErrAccountBanned
	}
	if err := bcrypt.CompareHashAndPassword([]byte(d.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidPassword
	}
	return userDocToModel(d), nil
}

func (s *MongoUserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.getByID(ctx, id)
}

func (s *MongoUserService) getByID(ctx context.Context, id string) (*models.User, error) {
	var d mongoUserDoc
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return userDocToModel(d), nil
}

func (s *MongoUserService) UpdateProfile(ctx context.Context, userID string, req *models.UpdateProfileRequest) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res := s.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"name": req.Name}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var d mongoUserDoc
	if err := res.Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return userDocToModel(d), nil
}

func (s *MongoUserService) Notify(ctx context.Context, userID string, n models.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	n.ID = uuid.New().String()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	doc := mongoNotificationDoc{
		ID:        n.ID,
		Kind:      n.Kind,
		Message:   n.Message,
		ItemID:    n.ItemID,
		ClaimID:   n.ClaimID,
		CreatedAt: n.CreatedAt,
	}

	// Prepend and cap in a single update.
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{
		"$push": bson.M{
			"notifications": bson.M{
				"$each":     []mongoNotificationDoc{doc},
				"$position": 0,
				"$slice":    models.MaxNotifications,
			},
		},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *MongoUserService) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Notifications, nil
}

func (s *MongoUserService) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := s.collection.UpdateOne(
		ctx,
		bson.M{"_id": userID, "notifications.id": notificationID},
		bson.M{"$set": bson.M{"notifications.$.read": true}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// Distinguish missing user from missing notification.
		if _, err := s.getByID(ctx, userID); err != nil {
			return err
		}
		return ErrNotificationNotFound
	}
	return nil
}

func (s *MongoUserService) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := s.collection.UpdateOne(
		ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"notifications.$[].read": true}},
	)
	if err != nil {
		// $[] fails on a missing/empty array; treat it as a no-op.
		log.Printf("[notifications] mark-all user=%s: %v", userID, err)
		_, getErr := s.getByID(ctx, userID)
		return getErr
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *MongoUserService) ClearNotifications(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := s.collection.UpdateOne(
		ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"notifications": []mongoNotificationDoc{}}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *MongoUserService) SetRole(ctx context.Context, actor *models.User, userID, role string) (*models.User, error) {
	if role != models.RoleStudent && role != models.RoleAdmin {
		return nil, errors.New("unknown role: " + role)
	}
	return s.adminUpdate(ctx, actor, userID,
		bson.M{"role": role},
		mongoAdminActionDoc{Action: "role_change", Reason: role, ActorID: actor.ID},
	)
}

func (s *MongoUserService) SetSuspended(ctx context.Context, actor *models.User, userID string, suspended bool, reason string) (*models.User, error) {
	action := "suspend"
	if !suspended {
		action = "unsuspend"
	}
	return s.adminUpdate(ctx, actor, userID,
		bson.M{
			"suspended":  suspended,
			"mod_reason": reason,
			"mod_at":     time.Now().UTC(),
			"mod_by":     actor.ID,
		},
		mongoAdminActionDoc{Action: action, Reason: reason, ActorID: actor.ID},
	)
}

func (s *MongoUserService) SetBanned(ctx context.Context, actor *models.User, userID string, banned bool, reason string) (*models.User, error) {
	action := "ban"
	if !banned {
		action = "unban"
	}
	return s.adminUpdate(ctx, actor, userID,
		bson.M{
			"banned":     banned,
			"mod_reason": reason,
			"mod_at":     time.Now().UTC(),
			"mod_by":     actor.ID,
		},
		mongoAdminActionDoc{Action: action, Reason: reason, ActorID: actor.ID},
	)
}

func (s *MongoUserService) AddStrike(ctx context.Context, actor *models.User, userID, reason string) (*models.User, error) {
	if actor == nil || actor.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	audit := mongoAdminActionDoc{
		Action:    "item_removed",
		Reason:    reason,
		ActorID:   actor.ID,
		CreatedAt: time.Now().UTC(),
	}
	res := s.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": userID},
		bson.M{
			"$inc":  bson.M{"strikes": 1},
			"$push": auditPush(audit),
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var d mongoUserDoc
	if err := res.Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return userDocToModel(d), nil
}

func (s *MongoUserService) DeleteUser(ctx context.Context, actor *models.User, userID string) error {
	if actor == nil || actor.Role != models.RoleAdmin || actor.ID == userID {
		return ErrForbidden
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	audit := mongoAdminActionDoc{
		Action:    "deleted",
		ActorID:   actor.ID,
		CreatedAt: time.Now().UTC(),
	}
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{
		"$set": bson.M{
			"name":          "Deleted User",
			"email":         "",
			"university_id": "",
			"password_hash": "",
			"role":          models.RoleStudent,
			"deleted":       true,
			"notifications": []mongoNotificationDoc{},
		},
		"$push": auditPush(audit),
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *MongoUserService) ListUsers(ctx context.Context) ([]*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cur, err := s.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	users := make([]*models.User, 0)
	for cur.Next(ctx) {
		var d mongoUserDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		users = append(users, userDocToModel(d))
	}
	return users, cur.Err()
}

func (s *MongoUserService) adminUpdate(ctx context.Context, actor *models.User, userID string, set bson.M, audit mongoAdminActionDoc) (*models.User, error) {
	if actor == nil || actor.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}
	if actor.ID == userID {
		return nil, ErrForbidden
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	audit.CreatedAt = time.Now().UTC()
	res := s.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": userID},
		bson.M{"$set": set, "$push": auditPush(audit)},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var d mongoUserDoc
	if err := res.Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return userDocToModel(d), nil
}

func auditPush(audit mongoAdminActionDoc) bson.M {
	return bson.M{
		"audit_log": bson.M{
			"$each":     []mongoAdminActionDoc{audit},
			"$position": 0,
			"$slice":    models.MaxAuditEntries,
		},
	}
}
