package mongo

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// ConnectDB establishes a connection to MongoDB and pings the primary.
func ConnectDB(ctx context.Context, uri string) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	// Connect succeeds lazily; the ping is what proves the server answers.
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, err
	}

	return client, nil
}

// DisconnectDB gracefully disconnects the MongoDB client.
func DisconnectDB(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}

type indexEnsurer func(ctx context.Context, collection *mongo.Collection) error

// EnsureIndexes creates the indexes of every collection owned by this package.
// Failures are logged per collection and do not stop the remaining ones.
func EnsureIndexes(ctx context.Context, db *mongo.Database, logger *slog.Logger) {
	ensurers := map[string]indexEnsurer{
		userCollectionName:         EnsureUserIndexes,
		exerciseCollectionName:     EnsureExerciseIndexes,
		trainingPlanCollectionName: EnsureTrainingPlanIndexes,
		mealPlanCollectionName:     EnsureMealPlanIndexes,
		workoutCollectionName:      EnsureWorkoutIndexes,
		collaboratorCollectionName: EnsureCollaboratorIndexes,
		invitationCollectionName:   EnsureInvitationIndexes,
		packageCollectionName:      EnsurePackageIndexes,
		offerCollectionName:        EnsureOfferIndexes,
		notificationCollectionName: EnsureNotificationIndexes,
	}

	for name, ensure := range ensurers {
		if err := ensure(ctx, db.Collection(name)); err != nil {
			logger.Warn("index creation failed",
				"module", "repository",
				"operation", "ensure_indexes",
				"collection", name,
				"error", err,
			)
		}
	}
	logger.Info("index check finished", "module", "repository", "operation", "ensure_indexes")
}

func createIndexes(ctx context.Context, collection *mongo.Collection, indexes []mongo.IndexModel) error {
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
