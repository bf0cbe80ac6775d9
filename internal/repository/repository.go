package repository

import (
	"alcyxob/shaper/internal/domain"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrConflict     = RepositoryError("conflict")
	ErrUpdateFailed = RepositoryError("update failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	GetByRole(ctx context.Context, role domain.Role) ([]domain.User, error)
	SetStripeCustomerID(ctx context.Context, userID primitive.ObjectID, customerID string) error
	// SetActivationToken replaces any outstanding activation token of a passwordless account.
	SetActivationToken(ctx context.Context, userID primitive.ObjectID, tokenHash string, expiresAt time.Time) error
	// Activate sets the password of the passwordless account holding an
	// unexpired token and clears the token. ErrNotFound when none matches.
	Activate(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*domain.User, error)
}

// ExerciseFilter narrows exercise library listings. Empty fields match everything.
type ExerciseFilter struct {
	NameContains string
	MuscleGroup  string
	Limit        int64
}

// ExerciseRepository defines the interface for interacting with exercise data.
type ExerciseRepository interface {
	Create(ctx context.Context, exercise *domain.Exercise) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error)
	List(ctx context.Context, filter ExerciseFilter) ([]domain.Exercise, error)
	// UpsertBySource inserts or replaces the exercise identified by (name, source).
	// inserted reports whether a new document was created.
	UpsertBySource(ctx context.Context, exercise *domain.Exercise) (inserted bool, err error)
}

// TrainingPlanRepository defines the interface for interacting with training plan data.
type TrainingPlanRepository interface {
	Create(ctx context.Context, plan *domain.TrainingPlan) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingPlan, error)
	GetAccess(ctx context.Context, id primitive.ObjectID) (*domain.ResourceAccess, error)
	GetByCreator(ctx context.Context, creatorID primitive.ObjectID) ([]domain.TrainingPlan, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.TrainingPlan, error)
	Update(ctx context.Context, plan *domain.TrainingPlan) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// MealPlanRepository defines the interface for interacting with meal plan data.
type MealPlanRepository interface {
	Create(ctx context.Context, plan *domain.MealPlan) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.MealPlan, error)
	GetAccess(ctx context.Context, id primitive.ObjectID) (*domain.ResourceAccess, error)
	GetByCreator(ctx context.Context, creatorID primitive.ObjectID) ([]domain.MealPlan, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.MealPlan, error)
	Update(ctx context.Context, plan *domain.MealPlan) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// WorkoutRepository defines the interface for interacting with workout data.
type WorkoutRepository interface {
	Create(ctx context.Context, workout *domain.Workout) (primitive.ObjectID, error)
	GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.Workout, error)
	DeleteByPlanID(ctx context.Context, planID primitive.ObjectID) error
}

// CollaboratorRepository stores per-resource grants.
type CollaboratorRepository interface {
	// Find returns the single grant of userID on the resource, or ErrNotFound.
	Find(ctx context.Context, resourceType domain.ResourceType, resourceID, userID primitive.ObjectID) (*domain.Collaborator, error)
	ListByResource(ctx context.Context, resourceType domain.ResourceType, resourceID primitive.ObjectID) ([]domain.Collaborator, error)
	ListResourceIDsForUser(ctx context.Context, resourceType domain.ResourceType, userID primitive.ObjectID) ([]primitive.ObjectID, error)
	// Upsert creates the grant or replaces its permission level.
	Upsert(ctx context.Context, collaborator *domain.Collaborator) error
	Delete(ctx context.Context, resourceType domain.ResourceType, resourceID, userID primitive.ObjectID) error
	DeleteByResource(ctx context.Context, resourceType domain.ResourceType, resourceID primitive.ObjectID) error
}

// InvitationRepository stores collaboration invitations between trainers.
type InvitationRepository interface {
	Create(ctx context.Context, invitation *domain.CollaborationInvitation) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.CollaborationInvitation, error)
	ListForRecipient(ctx context.Context, recipientID primitive.ObjectID, status domain.InvitationStatus) ([]domain.CollaborationInvitation, error)
	// Respond moves a PENDING invitation to status. ErrNotFound if it is no longer pending.
	Respond(ctx context.Context, id primitive.ObjectID, status domain.InvitationStatus, at time.Time) error
	// HasAcceptedBetween checks for an accepted invitation in either direction.
	HasAcceptedBetween(ctx context.Context, a, b primitive.ObjectID) (bool, error)
}

// PackageRepository reads and writes the package catalog.
type PackageRepository interface {
	Create(ctx context.Context, pkg *domain.PackageTemplate) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PackageTemplate, error)
	ListActive(ctx context.Context) ([]domain.PackageTemplate, error)
}

// OfferRepository stores offers. The package snapshot is write-once.
type OfferRepository interface {
	Create(ctx context.Context, offer *domain.Offer) (primitive.ObjectID, error)
	GetByToken(ctx context.Context, token string) (*domain.Offer, error)
	ListByTrainer(ctx context.Context, trainerID primitive.ObjectID) ([]domain.Offer, error)
	// TransitionStatus changes status only if the current status equals from.
	// Returns ErrConflict when the offer was not in the expected status.
	TransitionStatus(ctx context.Context, token string, from, to domain.OfferStatus, checkoutSessionID string) error
	// RecordCheckoutSession replaces the session id while the offer is still in status.
	// Returns ErrConflict when the status has moved on.
	RecordCheckoutSession(ctx context.Context, token string, status domain.OfferStatus, checkoutSessionID string) error
	// ExpireDue marks every non-terminal offer whose expiry is before now as EXPIRED.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

// NotificationRepository is the notification outbox.
type NotificationRepository interface {
	Enqueue(ctx context.Context, n *domain.Notification) error
	// ClaimNext leases the oldest deliverable record until claimUntil, or returns ErrNotFound.
	ClaimNext(ctx context.Context, claimToken string, now, claimUntil time.Time) (*domain.Notification, error)
	MarkDelivered(ctx context.Context, id primitive.ObjectID, claimToken string, at time.Time) error
	// MarkFailed releases the record until retryAt, or dead-letters it when dead is set.
	MarkFailed(ctx context.Context, id primitive.ObjectID, claimToken string, errMsg string, dead bool, retryAt time.Time) error
}
