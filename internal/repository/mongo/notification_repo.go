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

const notificationCollectionName = "notification_outbox"

// mongoNotificationRepository is the durable outbox behind the notification worker.
type mongoNotificationRepository struct {
	collection *mongo.Collection
}

func NewMongoNotificationRepository(db *mongo.Database) repository.NotificationRepository {
	return &mongoNotificationRepository{
		collection: db.Collection(notificationCollectionName),
	}
}

func (r *mongoNotificationRepository) Enqueue(ctx context.Context, n *domain.Notification) error {
	n.ID = primitive.NewObjectID()
	n.Status = domain.NotificationPending
	n.Attempts = 0
	n.CreatedAt = time.Now().UTC()

	_, err := r.collection.InsertOne(ctx, n)
	return err
}

// ClaimNext picks the oldest pending record whose lease is absent or expired.
func (r *mongoNotificationRepository) ClaimNext(ctx context.Context, claimToken string, now, claimUntil time.Time) (*domain.Notification, error) {
	filter := bson.M{
		"status": domain.NotificationPending,
		"$or": bson.A{
			bson.M{"claimUntil": bson.M{"$exists": false}},
			bson.M{"claimUntil": nil},
			bson.M{"claimUntil": bson.M{"$lt": now.UTC()}},
		},
	}
	update := bson.M{
		"$set": bson.M{"claimToken": claimToken, "claimUntil": claimUntil.UTC()},
		"$inc": bson.M{"attempts": 1},
	}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetReturnDocument(options.After)

	var n domain.Notification
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&n); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (r *mongoNotificationRepository) MarkDelivered(ctx context.Context, id primitive.ObjectID, claimToken string, at time.Time) error {
	update := bson.M{
		"$set":   bson.M{"status": domain.NotificationDelivered, "deliveredAt": at.UTC()},
		"$unset": bson.M{"claimToken": "", "claimUntil": ""},
	}
	return r.updateClaimed(ctx, id, claimToken, update)
}

// MarkFailed parks the record until retryAt, or dead-letters it.
func (r *mongoNotificationRepository) MarkFailed(ctx context.Context, id primitive.ObjectID, claimToken string, errMsg string, dead bool, retryAt time.Time) error {
	set := bson.M{"status": domain.NotificationPending, "lastError": errMsg, "claimUntil": retryAt.UTC()}
	if dead {
		set["status"] = domain.NotificationDead
	}
	update := bson.M{
		"$set":   set,
		"$unset": bson.M{"claimToken": ""},
	}
	return r.updateClaimed(ctx, id, claimToken, update)
}

func (r *mongoNotificationRepository) updateClaimed(ctx context.Context, id primitive.ObjectID, claimToken string, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "claimToken": claimToken}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		// Lease expired and another worker took the record.
		return repository.ErrConflict
	}
	return nil
}

// EnsureNotificationIndexes creates indexes for the notification_outbox collection.
func EnsureNotificationIndexes(ctx context.Context, collection *mongo.Collection) error {
	return createIndexes(ctx, collection, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}},
		},
	})
}
