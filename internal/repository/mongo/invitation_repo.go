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

const invitationCollectionName = "collaboration_invitations"

type mongoInvitationRepository struct {
	collection *mongo.Collection
}

func NewMongoInvitationRepository(db *mongo.Database) repository.InvitationRepository {
	return &mongoInvitationRepository{
		collection: db.Collection(invitationCollectionName),
	}
}

func (r *mongoInvitationRepository) Create(ctx context.Context, inv *domain.CollaborationInvitation) (primitive.ObjectID, error) {
	if inv.InviterID == primitive.NilObjectID || inv.RecipientID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("invitation requires inviter and recipient")
	}
	inv.ID = primitive.NewObjectID()
	inv.Status = domain.InvitationPending
	inv.CreatedAt = time.Now().UTC()
	inv.RespondedAt = nil

	if _, err := r.collection.InsertOne(ctx, inv); err != nil {
		return primitive.NilObjectID, err
	}
	return inv.ID, nil
}

func (r *mongoInvitationRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.CollaborationInvitation, error) {
	var inv domain.CollaborationInvitation
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&inv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (r *mongoInvitationRepository) ListForRecipient(ctx context.Context, recipientID primitive.ObjectID, status domain.InvitationStatus) ([]domain.CollaborationInvitation, error) {
	filter := bson.M{"recipientId": recipientID}
	if status != "" {
		filter["status"] = status
	}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	invitations := []domain.CollaborationInvitation{}
	if err := cursor.All(ctx, &invitations); err != nil {
		return nil, err
	}
	return invitations, nil
}

// Respond only touches invitations that are still pending.
func (r *mongoInvitationRepository) Respond(ctx context.Context, id primitive.ObjectID, status domain.InvitationStatus, at time.Time) error {
	filter := bson.M{"_id": id, "status": domain.InvitationPending}
	update := bson.M{"$set": bson.M{"status": status, "respondedAt": at.UTC()}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoInvitationRepository) HasAcceptedBetween(ctx context.Context, a, b primitive.ObjectID) (bool, error) {
	filter := bson.M{
		"status": domain.InvitationAccepted,
		"$or": bson.A{
			bson.M{"inviterId": a, "recipientId": b},
			bson.M{"inviterId": b, "recipientId": a},
		},
	}
	n, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// EnsureInvitationIndexes creates indexes for the collaboration_invitations collection.
func EnsureInvitationIndexes(ctx context.Context, collection *mongo.Collection) error {
	return createIndexes(ctx, collection, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "recipientId", Value: 1}, {Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "inviterId", Value: 1}, {Key: "recipientId", Value: 1}, {Key: "status", Value: 1}},
		},
	})
}
