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

const collaboratorCollectionName = "collaborators"

// mongoCollaboratorRepository implements repository.CollaboratorRepository.
// (resourceType, resourceId, userId) is unique so a user holds at most one grant per resource.
type mongoCollaboratorRepository struct {
	collection *mongo.Collection
}

func NewMongoCollaboratorRepository(db *mongo.Database) repository.CollaboratorRepository {
	return &mongoCollaboratorRepository{
		collection: db.Collection(collaboratorCollectionName),
	}
}

func grantFilter(resourceType domain.ResourceType, resourceID, userID primitive.ObjectID) bson.M {
	return bson.M{"resourceType": resourceType, "resourceId": resourceID, "userId": userID}
}

func (r *mongoCollaboratorRepository) Find(ctx context.Context, resourceType domain.ResourceType, resourceID, userID primitive.ObjectID) (*domain.Collaborator, error) {
	var c domain.Collaborator
	err := r.collection.FindOne(ctx, grantFilter(resourceType, resourceID, userID)).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *mongoCollaboratorRepository) ListByResource(ctx context.Context, resourceType domain.ResourceType, resourceID primitive.ObjectID) ([]domain.Collaborator, error) {
	filter := bson.M{"resourceType": resourceType, "resourceId": resourceID}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	collaborators := []domain.Collaborator{}
	if err := cursor.All(ctx, &collaborators); err != nil {
		return nil, err
	}
	return collaborators, nil
}

func (r *mongoCollaboratorRepository) ListResourceIDsForUser(ctx context.Context, resourceType domain.ResourceType, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	filter := bson.M{"resourceType": resourceType, "userId": userID}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetProjection(bson.M{"resourceId": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ResourceID primitive.ObjectID `bson:"resourceId"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ResourceID)
	}
	return ids, nil
}

// Upsert creates the grant or replaces its level and grantor.
func (r *mongoCollaboratorRepository) Upsert(ctx context.Context, c *domain.Collaborator) error {
	if !c.ResourceType.Valid() || !c.Permission.Valid() {
		return errors.New("collaborator requires a valid resource type and permission")
	}
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"permission": c.Permission,
			"grantedBy":  c.GrantedBy,
			"updatedAt":  now,
		},
		"$setOnInsert": bson.M{
			"createdAt": now,
		},
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := r.collection.FindOneAndUpdate(ctx, grantFilter(c.ResourceType, c.ResourceID, c.UserID), update, opts).Decode(c)
	if err != nil {
		// Two concurrent upserts can both miss and race on the unique index.
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrConflict
		}
		return err
	}
	return nil
}

func (r *mongoCollaboratorRepository) Delete(ctx context.Context, resourceType domain.ResourceType, resourceID, userID primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, grantFilter(resourceType, resourceID, userID))
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoCollaboratorRepository) DeleteByResource(ctx context.Context, resourceType domain.ResourceType, resourceID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"resourceType": resourceType, "resourceId": resourceID})
	return err
}

// EnsureCollaboratorIndexes creates indexes for the collaborators collection.
func EnsureCollaboratorIndexes(ctx context.Context, collection *mongo.Collection) error {
	return createIndexes(ctx, collection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "resourceType", Value: 1}, {Key: "resourceId", Value: 1}, {Key: "userId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "resourceType", Value: 1}},
		},
	})
}
