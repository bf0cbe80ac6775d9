package mongo

import (
	"alcyxob/shaper/internal/domain"
	"alcyxob/shaper/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const offerCollectionName = "offers"

type mongoOfferRepository struct {
	collection *mongo.Collection
}

// NewMongoOfferRepository creates the offer repository.
func NewMongoOfferRepository(db *mongo.Database) repository.OfferRepository {
	return &mongoOfferRepository{
		collection: db.Collection(offerCollectionName),
	}
}

func (r *mongoOfferRepository) Create(ctx context.Context, offer *domain.Offer) (primitive.ObjectID, error) {
	if offer.Token == "" || offer.TrainerID == primitive.NilObjectID || len(offer.Packages) == 0 {
		return primitive.NilObjectID, errors.New("offer requires token, trainer and at least one package")
	}
	offer.ID = primitive.NewObjectID()
	offer.ClientEmail = domain.NormalizeEmail(offer.ClientEmail)
	if offer.Status == "" {
		offer.Status = domain.OfferPending
	}
	now := time.Now().UTC()
	offer.CreatedAt = now
	offer.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, offer); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrConflict
		}
		return primitive.NilObjectID, err
	}
	return offer.ID, nil
}

func (r *mongoOfferRepository) GetByToken(ctx context.Context, token string) (*domain.Offer, error) {
	var offer domain.Offer
	err := r.collection.FindOne(ctx, bson.M{"token": token}).Decode(&offer)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &offer, nil
}

func (r *mongoOfferRepository) ListByTrainer(ctx context.Context, trainerID primitive.ObjectID) ([]domain.Offer, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"trainerId": trainerID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	offers := []domain.Offer{}
	if err := cursor.All(ctx, &offers); err != nil {
		return nil, err
	}
	return offers, nil
}

// TransitionStatus is a compare-and-set on the status field.
func (r *mongoOfferRepository) TransitionStatus(ctx context.Context, token string, from, to domain.OfferStatus, checkoutSessionID string) error {
	if !from.CanTransitionTo(to) {
		return repository.ErrConflict
	}
	set := bson.M{"status": to, "updatedAt": time.Now().UTC()}
	if checkoutSessionID != "" {
		set["checkoutSessionId"] = checkoutSessionID
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"token": token, "status": from}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrConflict
	}
	return nil
}

func (r *mongoOfferRepository) RecordCheckoutSession(ctx context.Context, token string, status domain.OfferStatus, checkoutSessionID string) error {
	update := bson.M{"$set": bson.M{"checkoutSessionId": checkoutSessionID, "updatedAt": time.Now().UTC()}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"token": token, "status": status}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrConflict
	}
	return nil
}

func (r *mongoOfferRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	filter := bson.M{
		"status":    bson.M{"$in": bson.A{domain.OfferPending, domain.OfferProcessing}},
		"expiresAt": bson.M{"$lt": now.UTC()},
	}
	update := bson.M{"$set": bson.M{"status": domain.OfferExpired, "updatedAt": now.UTC()}}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// EnsureOfferIndexes creates indexes for the offers collection.
func EnsureOfferIndexes(ctx context.Context, collection *mongo.Collection) error {
	return createIndexes(ctx, collection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "trainerId", Value: 1}, {Key: "createdAt", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "expiresAt", Value: 1}},
		},
	})
}
