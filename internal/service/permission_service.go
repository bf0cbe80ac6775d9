package service

import (
	"alcyxob/shaper/internal/domain"
	"alcyxob/shaper/internal/repository"
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Denial and grant reasons returned in PermissionCheck.Reason.
const (
	ReasonNotFound             = "not found"
	ReasonPublicResource       = "public resource"
	ReasonNotCollaborator      = "not a collaborator"
	ReasonInsufficient         = "insufficient permission"
	ReasonCreatorOnly          = "only the creator can delete this resource"
	ReasonCheckFailed          = "error checking permissions"
	ReasonUnknownAction        = "unknown action"
	ReasonUnknownResourceType  = "unknown resource type"
	ReasonSelfInvite           = "cannot invite yourself"
	ReasonUserNotFound         = "user not found"
	ReasonNotTrainers          = "both users must be trainers"
	ReasonNoAcceptedConnection = "no accepted collaboration between these trainers"
)

// PermissionCheck is the outcome of a permission evaluation.
type PermissionCheck struct {
	Allowed             bool                   `json:"allowed"`
	Reason              string                 `json:"reason,omitempty"`
	EffectivePermission domain.PermissionLevel `json:"effectivePermission,omitempty"`
	IsCreator           bool                   `json:"isCreator,omitempty"`
}

// PermissionDeniedError carries the human-readable denial reason to request handlers.
type PermissionDeniedError struct {
	Reason string
}

func (e *PermissionDeniedError) Error() string {
	return "permission denied: " + e.Reason
}

// PermissionService decides what an actor may do with a shared plan.
// It never returns errors for evaluation: failures are denials.
type PermissionService interface {
	Evaluate(ctx context.Context, resourceType domain.ResourceType, actorID, resourceID primitive.ObjectID, action domain.PermissionAction) PermissionCheck
	CheckTrainingPlanPermission(ctx context.Context, actorID, planID primitive.ObjectID, action domain.PermissionAction) PermissionCheck
	CheckMealPlanPermission(ctx context.Context, actorID, planID primitive.ObjectID, action domain.PermissionAction) PermissionCheck
	EvaluateBatch(ctx context.Context, resourceType domain.ResourceType, actorID primitive.ObjectID, resourceIDs []primitive.ObjectID, action domain.PermissionAction) map[primitive.ObjectID]PermissionCheck
	CanInviteCollaborators(ctx context.Context, inviterID, recipientID primitive.ObjectID) PermissionCheck
	// RequirePermission is Evaluate for handler code: nil when allowed, *PermissionDeniedError otherwise.
	RequirePermission(ctx context.Context, resourceType domain.ResourceType, actorID, resourceID primitive.ObjectID, action domain.PermissionAction) error
}

type permissionService struct {
	trainingPlanRepo repository.TrainingPlanRepository
	mealPlanRepo     repository.MealPlanRepository
	collaboratorRepo repository.CollaboratorRepository
	invitationRepo   repository.InvitationRepository
	userRepo         repository.UserRepository
	logger           *slog.Logger
}

// NewPermissionService creates the permission evaluator.
func NewPermissionService(
	trainingPlanRepo repository.TrainingPlanRepository,
	mealPlanRepo repository.MealPlanRepository,
	collaboratorRepo repository.CollaboratorRepository,
	invitationRepo repository.InvitationRepository,
	userRepo repository.UserRepository,
	logger *slog.Logger,
) PermissionService {
	return &permissionService{
		trainingPlanRepo: trainingPlanRepo,
		mealPlanRepo:     mealPlanRepo,
		collaboratorRepo: collaboratorRepo,
		invitationRepo:   invitationRepo,
		userRepo:         userRepo,
		logger:           logger,
	}
}

func (s *permissionService) loadAccess(ctx context.Context, resourceType domain.ResourceType, id primitive.ObjectID) (*domain.ResourceAccess, error) {
	switch resourceType {
	case domain.ResourceTrainingPlan:
		return s.trainingPlanRepo.GetAccess(ctx, id)
	case domain.ResourceMealPlan:
		return s.mealPlanRepo.GetAccess(ctx, id)
	default:
		return nil, errUnknownResourceType
	}
}

var errUnknownResourceType = errors.New("unknown resource type")

func (s *permissionService) Evaluate(ctx context.Context, resourceType domain.ResourceType, actorID, resourceID primitive.ObjectID, action domain.PermissionAction) PermissionCheck {
	if !action.Valid() {
		return PermissionCheck{Reason: ReasonUnknownAction}
	}

	access, err := s.loadAccess(ctx, resourceType, resourceID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return PermissionCheck{Reason: ReasonNotFound}
		case errors.Is(err, errUnknownResourceType):
			return PermissionCheck{Reason: ReasonUnknownResourceType}
		}
		return s.failClosed("load_resource", resourceType, actorID, resourceID, err)
	}

	// The creator bypasses the action table entirely, DELETE included.
	if access.CreatorID == actorID {
		return PermissionCheck{
			Allowed:             true,
			IsCreator:           true,
			EffectivePermission: domain.PermissionAdmin,
		}
	}

	collaborator, err := s.collaboratorRepo.Find(ctx, resourceType, resourceID, actorID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return s.failClosed("load_collaborator", resourceType, actorID, resourceID, err)
	}

	if collaborator == nil {
		if action == domain.ActionView && access.IsPublic {
			return PermissionCheck{
				Allowed:             true,
				Reason:              ReasonPublicResource,
				EffectivePermission: domain.PermissionView,
			}
		}
		return PermissionCheck{Reason: ReasonNotCollaborator}
	}

	return decideForLevel(collaborator.Permission, action)
}

// decideForLevel applies the action table to a collaborator's granted level.
func decideForLevel(level domain.PermissionLevel, action domain.PermissionAction) PermissionCheck {
	check := PermissionCheck{EffectivePermission: level}

	required, grantable := action.RequiredLevel()
	if !grantable {
		check.Reason = ReasonCreatorOnly
		return check
	}
	if !level.AtLeast(required) {
		check.Reason = ReasonInsufficient
		return check
	}
	check.Allowed = true
	return check
}

func (s *permissionService) failClosed(op string, resourceType domain.ResourceType, actorID, resourceID primitive.ObjectID, err error) PermissionCheck {
	s.logger.Error("permission evaluation failed",
		"module", "permissions",
		"operation", op,
		"outcome", "denied",
		"resource_type", resourceType,
		"resource_id", resourceID.Hex(),
		"actor_id", actorID.Hex(),
		"error", err,
	)
	return PermissionCheck{Reason: ReasonCheckFailed}
}

func (s *permissionService) CheckTrainingPlanPermission(ctx context.Context, actorID, planID primitive.ObjectID, action domain.PermissionAction) PermissionCheck {
	return s.Evaluate(ctx, domain.ResourceTrainingPlan, actorID, planID, action)
}

func (s *permissionService) CheckMealPlanPermission(ctx context.Context, actorID, planID primitive.ObjectID, action domain.PermissionAction) PermissionCheck {
	return s.Evaluate(ctx, domain.ResourceMealPlan, actorID, planID, action)
}

// EvaluateBatch evaluates every id concurrently. Each evaluation reads its own
// rows; only the result map is shared.
func (s *permissionService) EvaluateBatch(ctx context.Context, resourceType domain.ResourceType, actorID primitive.ObjectID, resourceIDs []primitive.ObjectID, action domain.PermissionAction) map[primitive.ObjectID]PermissionCheck {
	results := make(map[primitive.ObjectID]PermissionCheck, len(resourceIDs))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for _, id := range resourceIDs {
		wg.Add(1)
		go func(id primitive.ObjectID) {
			defer wg.Done()
			check := s.Evaluate(ctx, resourceType, actorID, id, action)

			mu.Lock()
			results[id] = check
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	return results
}

func (s *permissionService) CanInviteCollaborators(ctx context.Context, inviterID, recipientID primitive.ObjectID) PermissionCheck {
	if inviterID == recipientID {
		return PermissionCheck{Reason: ReasonSelfInvite}
	}

	for _, id := range []primitive.ObjectID{inviterID, recipientID} {
		user, err := s.userRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return PermissionCheck{Reason: ReasonUserNotFound}
			}
			return s.failClosed("load_user", "", inviterID, recipientID, err)
		}
		if !user.IsTrainer() {
			return PermissionCheck{Reason: ReasonNotTrainers}
		}
	}

	connected, err := s.invitationRepo.HasAcceptedBetween(ctx, inviterID, recipientID)
	if err != nil {
		return s.failClosed("load_invitation", "", inviterID, recipientID, err)
	}
	if !connected {
		return PermissionCheck{Reason: ReasonNoAcceptedConnection}
	}
	return PermissionCheck{Allowed: true}
}

func (s *permissionService) RequirePermission(ctx context.Context, resourceType domain.ResourceType, actorID, resourceID primitive.ObjectID, action domain.PermissionAction) error {
	check := s.Evaluate(ctx, resourceType, actorID, resourceID, action)
	if !check.Allowed {
		return &PermissionDeniedError{Reason: check.Reason}
	}
	return nil
}
