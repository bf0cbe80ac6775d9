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

const packageCollectionName = "package_templates"

type mongoPackageRepository struct {
	collection *mongo.Collection
}

// NewMongoPackageRepository creates the package catalog repository.
func NewMongoPackageRepository(db *mongo.Database) repository.PackageRepository {
	return &mongoPackageRepository{
		collection: db.Collection(packageCollectionName),
	}
}

func (r *mongoPackageRepository) Create(ctx context.Context, pkg *domain.PackageTemplate) (primitive.ObjectID, error) {
	if pkg.Name == "" || pkg.LookupKey == "" {
		return primitive.NilObjectID, errors.New("package requires name and lookup key")
	}
	pkg.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	pkg.CreatedAt = now
	pkg.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, pkg); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrConflict
		}
		return primitive.NilObjectID, err
	}
	return pkg.ID, nil
}

func (r *mongoPackageRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PackageTemplate, error) {
	var pkg domain.PackageTemplate
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&pkg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &pkg, nil
}

func (r *mongoPackageRepository) ListActive(ctx context.Context) ([]domain.PackageTemplate, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"active": true}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	packages := []domain.PackageTemplate{}
	if err := cursor.All(ctx, &packages); err != nil {
		return nil, err
	}
	return packages, nil
}

// EnsurePackageIndexes creates indexes for the package_templates collection.
func EnsurePackageIndexes(ctx context.Context, collection *mongo.Collection) error {
	return createIndexes(ctx, collection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "lookupKey", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
}
