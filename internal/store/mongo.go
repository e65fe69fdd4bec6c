package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nishant/auction-app/backend/internal/apperrors"
	"github.com/nishant/auction-app/backend/internal/models"
)

// MongoStore handles auction document CRUD in MongoDB.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection("auctions")}
}

func (s *MongoStore) Insert(ctx context.Context, a *models.Auction) (string, error) {
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	res, err := s.col.InsertOne(ctx, a)
	if err != nil {
		return "", fmt.Errorf("mongo insert: %w", err)
	}
	oid := res.InsertedID.(primitive.ObjectID)
	a.ID = oid
	return oid.Hex(), nil
}

func (s *MongoStore) GetByID(ctx context.Context, id string) (*models.Auction, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("auction %s: %w", id, apperrors.ErrNotFound)
	}
	var a models.Auction
	if err := s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("auction %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return &a, nil
}

func (s *MongoStore) List(ctx context.Context) ([]models.Auction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var auctions []models.Auction
	if err := cur.All(ctx, &auctions); err != nil {
		return nil, err
	}
	return auctions, nil
}

// FindByIDs returns the auctions whose ids appear in the given list.
// Unknown or malformed ids are skipped rather than failing the whole fetch.
func (s *MongoStore) FindByIDs(ctx context.Context, ids []string) ([]models.Auction, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return nil, nil
	}

	cur, err := s.col.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var auctions []models.Auction
	if err := cur.All(ctx, &auctions); err != nil {
		return nil, err
	}
	return auctions, nil
}

// ApplyPatch sets the given fields on an auction and returns the updated
// document.
func (s *MongoStore) ApplyPatch(ctx context.Context, id string, fields map[string]interface{}) (*models.Auction, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("auction %s: %w", id, apperrors.ErrNotFound)
	}

	set := bson.M{"updated_at": time.Now()}
	for k, v := range fields {
		set[k] = v
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var a models.Auction
	err = s.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("auction %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return &a, nil
}

// CompareAndSetBid records a bid only if current_bid still equals the value
// the caller read and the auction is still open. Returns the post-write
// document, or nil when the conditional write matched nothing, which means a
// concurrent bid or close landed first.
func (s *MongoStore) CompareAndSetBid(ctx context.Context, id string, expected, amount float64, bidder string) (*models.Auction, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("auction %s: %w", id, apperrors.ErrNotFound)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var a models.Auction
	err = s.col.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "current_bid": expected, "is_closed": false},
		bson.M{"$set": bson.M{
			"current_bid":    amount,
			"highest_bidder": bidder,
			"updated_at":     time.Now(),
		}},
		opts,
	).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("mongo bid update: %w", err)
	}
	return &a, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("auction %s: %w", id, apperrors.ErrNotFound)
	}
	_, err = s.col.DeleteOne(ctx, bson.M{"_id": oid})
	return err
}

// ListExpired returns open auctions whose closing time has passed.
func (s *MongoStore) ListExpired(ctx context.Context, now time.Time) ([]models.Auction, error) {
	cur, err := s.col.Find(ctx, bson.M{
		"is_closed":    false,
		"closing_time": bson.M{"$lte": now},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var auctions []models.Auction
	if err := cur.All(ctx, &auctions); err != nil {
		return nil, err
	}
	return auctions, nil
}

// Close flips is_closed on an open auction and returns the closed document,
// so the winner is read from the final state rather than an earlier snapshot.
// A nil result means the auction was already closed; only one sweeper
// instance gets the document back.
func (s *MongoStore) Close(ctx context.Context, id string) (*models.Auction, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("auction %s: %w", id, apperrors.ErrNotFound)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var a models.Auction
	err = s.col.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "is_closed": false},
		bson.M{"$set": bson.M{"is_closed": true, "updated_at": time.Now()}},
		opts,
	).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("mongo close: %w", err)
	}
	return &a, nil
}
