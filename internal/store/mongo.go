package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/adhikramm/CertWallet/internal/models"
)

// MongoShareStore keeps shares in the "shares" collection with a unique
// index on token and a secondary index on owner_id.
type MongoShareStore struct {
	col *mongo.Collection
}

func NewMongoShareStore(db *mongo.Database) *MongoShareStore {
	return &MongoShareStore{col: db.Collection("shares")}
}

// EnsureIndexes creates the token uniqueness constraint and owner lookup index.
func (s *MongoShareStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "owner_id", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create share indexes: %w", err)
	}
	return nil
}

func (s *MongoShareStore) Insert(ctx context.Context, share *models.Share) error {
	if share.ID.IsZero() {
		share.ID = primitive.NewObjectID()
	}
	_, err := s.col.InsertOne(ctx, share)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateToken
	}
	if err != nil {
		return fmt.Errorf("failed to insert share: %w", err)
	}
	return nil
}

func (s *MongoShareStore) FindByToken(ctx context.Context, token string) (*models.Share, error) {
	var share models.Share
	err := s.col.FindOne(ctx, bson.M{"token": token}).Decode(&share)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up share by token: %w", err)
	}
	return &share, nil
}

func (s *MongoShareStore) FindByID(ctx context.Context, id string) (*models.Share, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var share models.Share
	err = s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&share)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up share: %w", err)
	}
	return &share, nil
}

func (s *MongoShareStore) FindByOwner(ctx context.Context, ownerID string) ([]models.Share, error) {
	cursor, err := s.col.Find(ctx, bson.M{"owner_id": ownerID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}
	defer cursor.Close(ctx)

	var shares []models.Share
	if err := cursor.All(ctx, &shares); err != nil {
		return nil, fmt.Errorf("error decoding shares: %w", err)
	}
	return shares, nil
}

func (s *MongoShareStore) Revoke(ctx context.Context, id, ownerID string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": oid, "owner_id": ownerID},
		bson.M{"$set": bson.M{"is_revoked": true}},
	)
	if err != nil {
		return fmt.Errorf("failed to revoke share: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoShareStore) IncrementView(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$inc": bson.M{"view_count": 1}})
	if err != nil {
		return fmt.Errorf("failed to increment view count: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementDownload is the single atomic check-and-increment gating the
// download cap: the filter only matches while the cap is not yet spent, so
// concurrent downloads against the same share cannot lose updates or
// overrun max_downloads.
func (s *MongoShareStore) IncrementDownload(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	filter := bson.M{
		"_id": oid,
		"$or": bson.A{
			bson.M{"max_downloads": bson.M{"$exists": false}},
			bson.M{"max_downloads": nil},
			bson.M{"$expr": bson.M{"$lt": bson.A{"$download_count", "$max_downloads"}}},
		},
	}
	res, err := s.col.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"download_count": 1}})
	if err != nil {
		return fmt.Errorf("failed to increment download count: %w", err)
	}
	if res.MatchedCount == 0 {
		// Either the share is gone or the cap is spent.
		if _, ferr := s.FindByID(ctx, id); ferr != nil {
			return ferr
		}
		return ErrDownloadLimit
	}
	return nil
}

// MongoAccessLogStore appends audit entries to the "access_logs" collection.
// No update or delete methods exist on purpose.
type MongoAccessLogStore struct {
	col *mongo.Collection
}

func NewMongoAccessLogStore(db *mongo.Database) *MongoAccessLogStore {
	return &MongoAccessLogStore{col: db.Collection("access_logs")}
}

func (s *MongoAccessLogStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "share_id", Value: 1}}},
		{Keys: bson.D{{Key: "certificate_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create access log indexes: %w", err)
	}
	return nil
}

func (s *MongoAccessLogStore) Append(ctx context.Context, entry *models.AccessLogEntry) error {
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if _, err := s.col.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to append access log entry: %w", err)
	}
	return nil
}

func (s *MongoAccessLogStore) ListByShare(ctx context.Context, shareID string) ([]models.AccessLogEntry, error) {
	return s.list(ctx, bson.M{"share_id": shareID})
}

func (s *MongoAccessLogStore) ListByCertificate(ctx context.Context, certificateID string) ([]models.AccessLogEntry, error) {
	return s.list(ctx, bson.M{"certificate_id": certificateID})
}

func (s *MongoAccessLogStore) list(ctx context.Context, filter bson.M) ([]models.AccessLogEntry, error) {
	cursor, err := s.col.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list access log entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []models.AccessLogEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("error decoding access log entries: %w", err)
	}
	return entries, nil
}

// MongoCertificateStore keeps certificate metadata in "certificates".
type MongoCertificateStore struct {
	col *mongo.Collection
}

func NewMongoCertificateStore(db *mongo.Database) *MongoCertificateStore {
	return &MongoCertificateStore{col: db.Collection("certificates")}
}

func (s *MongoCertificateStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create certificate indexes: %w", err)
	}
	return nil
}

func (s *MongoCertificateStore) Insert(ctx context.Context, cert *models.Certificate) error {
	if cert.ID.IsZero() {
		cert.ID = primitive.NewObjectID()
	}
	if _, err := s.col.InsertOne(ctx, cert); err != nil {
		return fmt.Errorf("failed to insert certificate: %w", err)
	}
	return nil
}

func (s *MongoCertificateStore) FindByID(ctx context.Context, id string) (*models.Certificate, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var cert models.Certificate
	err = s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&cert)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up certificate: %w", err)
	}
	return &cert, nil
}

func (s *MongoCertificateStore) FindByIDs(ctx context.Context, ids []string) ([]models.Certificate, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		oids = append(oids, oid)
	}
	cursor, err := s.col.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch certificates: %w", err)
	}
	defer cursor.Close(ctx)

	var certs []models.Certificate
	if err := cursor.All(ctx, &certs); err != nil {
		return nil, fmt.Errorf("error decoding certificates: %w", err)
	}
	// Preserve the caller's ordering; $in gives no order guarantee.
	byID := make(map[string]models.Certificate, len(certs))
	for _, c := range certs {
		byID[c.ID.Hex()] = c
	}
	ordered := make([]models.Certificate, 0, len(certs))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			ordered = append(ordered, c)
		}
	}
	return ordered, nil
}

func (s *MongoCertificateStore) FindByOwner(ctx context.Context, ownerID string) ([]models.Certificate, error) {
	cursor, err := s.col.Find(ctx, bson.M{"owner_id": ownerID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	defer cursor.Close(ctx)

	var certs []models.Certificate
	if err := cursor.All(ctx, &certs); err != nil {
		return nil, fmt.Errorf("error decoding certificates: %w", err)
	}
	return certs, nil
}

func (s *MongoCertificateStore) Delete(ctx context.Context, id, ownerID string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": oid, "owner_id": ownerID})
	if err != nil {
		return fmt.Errorf("failed to delete certificate: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MongoUserStore keeps accounts in "users" with a unique email index.
type MongoUserStore struct {
	col *mongo.Collection
}

func NewMongoUserStore(db *mongo.Database) *MongoUserStore {
	return &MongoUserStore{col: db.Collection("users")}
}

func (s *MongoUserStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}

func (s *MongoUserStore) Insert(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	_, err := s.col.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *MongoUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.col.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return &user, nil
}

func (s *MongoUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var user models.User
	err = s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return &user, nil
}

func (s *MongoUserStore) List(ctx context.Context) ([]models.User, error) {
	cursor, err := s.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("error decoding users: %w", err)
	}
	return users, nil
}
