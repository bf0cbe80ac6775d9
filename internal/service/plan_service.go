package service

import (
	"alcyxob/shaper/internal/domain"
	"alcyxob/shaper/internal/repository"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrPlanValidation = errors.New("plan validation failed")
	ErrPlanNotFound   = errors.New("plan not found")
)

// PlanList groups the plans a user created and the ones shared with them.
type PlanList[T any] struct {
	Owned  []T `json:"owned"`
	Shared []T `json:"shared"`
}

// PlanService manages training plans, their workouts, and meal plans.
// Every read and write goes through the permission evaluator.
type PlanService interface {
	CreateTrainingPlan(ctx context.Context, actorID primitive.ObjectID, plan *domain.TrainingPlan) (*domain.TrainingPlan, error)
	GetTrainingPlan(ctx context.Context, actorID, planID primitive.ObjectID) (*domain.TrainingPlan, error)
	UpdateTrainingPlan(ctx context.Context, actorID primitive.ObjectID, plan *domain.TrainingPlan) (*domain.TrainingPlan, error)
	DeleteTrainingPlan(ctx context.Context, actorID, planID primitive.ObjectID) error
	ListTrainingPlans(ctx context.Context, actorID primitive.ObjectID) (*PlanList[domain.TrainingPlan], error)

	AddWorkout(ctx context.Context, actorID, planID primitive.ObjectID, workout *domain.Workout) (*domain.Workout, error)
	ListWorkouts(ctx context.Context, actorID, planID primitive.ObjectID) ([]domain.Workout, error)

	CreateMealPlan(ctx context.Context, actorID primitive.ObjectID, plan *domain.MealPlan) (*domain.MealPlan, error)
	GetMealPlan(ctx context.Context, actorID, planID primitive.ObjectID) (*domain.MealPlan, error)
	UpdateMealPlan(ctx context.Context, actorID primitive.ObjectID, plan *domain.MealPlan) (*domain.MealPlan, error)
	DeleteMealPlan(ctx context.Context, actorID, planID primitive.ObjectID) error
	ListMealPlans(ctx context.Context, actorID primitive.ObjectID) (*PlanList[domain.MealPlan], error)
}

type planService struct {
	trainingPlanRepo repository.TrainingPlanRepository
	mealPlanRepo     repository.MealPlanRepository
	workoutRepo      repository.WorkoutRepository
	collaboratorRepo repository.CollaboratorRepository
	permissions      PermissionService
	logger           *slog.Logger
}

// NewPlanService creates a new instance of planService.
func NewPlanService(
	trainingPlanRepo repository.TrainingPlanRepository,
	mealPlanRepo repository.MealPlanRepository,
	workoutRepo repository.WorkoutRepository,
	collaboratorRepo repository.CollaboratorRepository,
	permissions PermissionService,
	logger *slog.Logger,
) PlanService {
	return &planService{
		trainingPlanRepo: trainingPlanRepo,
		mealPlanRepo:     mealPlanRepo,
		workoutRepo:      workoutRepo,
		collaboratorRepo: collaboratorRepo,
		permissions:      permissions,
		logger:           logger,
	}
}

// --- Training plans ---

func (s *planService) CreateTrainingPlan(ctx context.Context, actorID primitive.ObjectID, plan *domain.TrainingPlan) (*domain.TrainingPlan, error) {
	plan.Name = strings.TrimSpace(plan.Name)
	if plan.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrPlanValidation)
	}
	if plan.StartDate != nil && plan.EndDate != nil && plan.EndDate.Before(*plan.StartDate) {
		return nil, fmt.Errorf("%w: end date is before start date", ErrPlanValidation)
	}
	plan.CreatorID = actorID

	if _, err := s.trainingPlanRepo.Create(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *planService) GetTrainingPlan(ctx context.Context, actorID, planID primitive.ObjectID) (*domain.TrainingPlan, error) {
	if err := s.permissions.RequirePermission(ctx, domain.ResourceTrainingPlan, actorID, planID, domain.ActionView); err != nil {
		return nil, err
	}
	return s.loadTrainingPlan(ctx, planID)
}

func (s *planService) loadTrainingPlan(ctx context.Context, planID primitive.ObjectID) (*domain.TrainingPlan, error) {
	plan, err := s.trainingPlanRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return plan, nil
}

func (s *planService) UpdateTrainingPlan(ctx context.Context, actorID primitive.ObjectID, plan *domain.TrainingPlan) (*domain.TrainingPlan, error) {
	if err := s.permissions.RequirePermission(ctx, domain.ResourceTrainingPlan, actorID, plan.ID, domain.ActionEdit); err != nil {
		return nil, err
	}
	existing, err := s.loadTrainingPlan(ctx, plan.ID)
	if err != nil {
		return nil, err
	}

	plan.Name = strings.TrimSpace(plan.Name)
	if plan.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrPlanValidation)
	}
	// Visibility is a sharing decision, not an edit.
	if plan.IsPublic != existing.IsPublic {
		if err := s.permissions.RequirePermission(ctx, domain.ResourceTrainingPlan, actorID, plan.ID, domain.ActionShare); err != nil {
			return nil, err
		}
	}
	plan.CreatorID = existing.CreatorID
	plan.CreatedAt = existing.CreatedAt

	if err := s.trainingPlanRepo.Update(ctx, plan); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return plan, nil
}

func (s *planService) DeleteTrainingPlan(ctx context.Context, actorID, planID primitive.ObjectID) error {
	if err := s.permissions.RequirePermission(ctx, domain.ResourceTrainingPlan, actorID, planID, domain.ActionDelete); err != nil {
		return err
	}
	if err := s.workoutRepo.DeleteByPlanID(ctx, planID); err != nil {
		return err
	}
	if err := s.collaboratorRepo.DeleteByResource(ctx, domain.ResourceTrainingPlan, planID); err != nil {
		return err
	}
	if err := s.trainingPlanRepo.Delete(ctx, planID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPlanNotFound
		}
		return err
	}
	s.logger.Info("training plan deleted", "module", "plans", "operation", "delete", "plan_id", planID.Hex(), "actor_id", actorID.Hex())
	return nil
}

func (s *planService) ListTrainingPlans(ctx context.Context, actorID primitive.ObjectID) (*PlanList[domain.TrainingPlan], error) {
	owned, err := s.trainingPlanRepo.GetByCreator(ctx, actorID)
	if err != nil {
		return nil, err
	}
	sharedIDs, err := s.collaboratorRepo.ListResourceIDsForUser(ctx, domain.ResourceTrainingPlan, actorID)
	if err != nil {
		return nil, err
	}
	shared, err := s.trainingPlanRepo.GetByIDs(ctx, sharedIDs)
	if err != nil {
		return nil, err
	}
	return &PlanList[domain.TrainingPlan]{Owned: owned, Shared: shared}, nil
}

// --- Workouts ---

func (s *planService) AddWorkout(ctx context.Context, actorID, planID primitive.ObjectID, workout *domain.Workout) (*domain.Workout, error) {
	if err := s.permissions.RequirePermission(ctx, domain.ResourceTrainingPlan, actorID, planID, domain.ActionEdit); err != nil {
		return nil, err
	}
	workout.Name = strings.TrimSpace(workout.Name)
	if workout.Name == "" {
		return nil, fmt.Errorf("%w: workout name is required", ErrPlanValidation)
	}
	if workout.DayOfWeek != nil && (*workout.DayOfWeek < 0 || *workout.DayOfWeek > 6) {
		return nil, fmt.Errorf("%w: dayOfWeek must be between 0 and 6", ErrPlanValidation)
	}
	workout.TrainingPlanID = planID
	workout.AuthorID = actorID

	if _, err := s.workoutRepo.Create(ctx, workout); err != nil {
		return nil, err
	}
	return workout, nil
}

func (s *planService) ListWorkouts(ctx context.Context, actorID, planID primitive.ObjectID) ([]domain.Workout, error) {
	if err := s.permissions.RequirePermission(ctx, domain.ResourceTrainingPlan, actorID, planID, domain.ActionView); err != nil {
		return nil, err
	}
	return s.workoutRepo.GetByPlanID(ctx, planID)
}

// --- Meal plans ---

func (s *planService) CreateMealPlan(ctx context.Context, actorID primitive.ObjectID, plan *domain.MealPlan) (*domain.MealPlan, error) {
	if err := validateMealPlan(plan); err != nil {
		return nil, err
	}
	plan.CreatorID = actorID

	if _, err := s.mealPlanRepo.Create(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func validateMealPlan(plan *domain.MealPlan) error {
	plan.Name = strings.TrimSpace(plan.Name)
	if plan.Name == "" {
		return fmt.Errorf("%w: name is required", ErrPlanValidation)
	}
	if plan.DailyCalorieTarget < 0 {
		return fmt.Errorf("%w: dailyCalorieTarget cannot be negative", ErrPlanValidation)
	}
	for _, meal := range plan.Meals {
		if strings.TrimSpace(meal.Name) == "" {
			return fmt.Errorf("%w: every meal needs a name", ErrPlanValidation)
		}
		for _, food := range meal.Foods {
			if food.Grams < 0 || food.Calories < 0 {
				return fmt.Errorf("%w: food %q has negative amounts", ErrPlanValidation, food.Name)
			}
		}
	}
	return nil
}

func (s *planService) GetMealPlan(ctx context.Context, actorID, planID primitive.ObjectID) (*domain.MealPlan, error) {
	if err := s.permissions.RequirePermission(ctx, domain.ResourceMealPlan, actorID, planID, domain.ActionView); err != nil {
		return nil, err
	}
	return s.loadMealPlan(ctx, planID)
}

func (s *planService) loadMealPlan(ctx context.Context, planID primitive.ObjectID) (*domain.MealPlan, error) {
	plan, err := s.mealPlanRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return plan, nil
}

func (s *planService) UpdateMealPlan(ctx context.Context, actorID primitive.ObjectID, plan *domain.MealPlan) (*domain.MealPlan, error) {
	if err := s.permissions.RequirePermission(ctx, domain.ResourceMealPlan, actorID, plan.ID, domain.ActionEdit); err != nil {
		return nil, err
	}
	existing, err := s.loadMealPlan(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	if err := validateMealPlan(plan); err != nil {
		return nil, err
	}
	if plan.IsPublic != existing.IsPublic {
		if err := s.permissions.RequirePermission(ctx, domain.ResourceMealPlan, actorID, plan.ID, domain.ActionShare); err != nil {
			return nil, err
		}
	}
	plan.CreatorID = existing.CreatorID
	plan.CreatedAt = existing.CreatedAt

	if err := s.mealPlanRepo.Update(ctx, plan); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return plan, nil
}

func (s *planService) DeleteMealPlan(ctx context.Context, actorID, planID primitive.ObjectID) error {
	if err := s.permissions.RequirePermission(ctx, domain.ResourceMealPlan, actorID, planID, domain.ActionDelete); err != nil {
		return err
	}
	if err := s.collaboratorRepo.DeleteByResource(ctx, domain.ResourceMealPlan, planID); err != nil {
		return err
	}
	if err := s.mealPlanRepo.Delete(ctx, planID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPlanNotFound
		}
		return err
	}
	s.logger.Info("meal plan deleted", "module", "plans", "operation", "delete", "plan_id", planID.Hex(), "actor_id", actorID.Hex())
	return nil
}

func (s *planService) ListMealPlans(ctx context.Context, actorID primitive.ObjectID) (*PlanList[domain.MealPlan], error) {
	owned, err := s.mealPlanRepo.GetByCreator(ctx, actorID)
	if err != nil {
		return nil, err
	}
	sharedIDs, err := s.collaboratorRepo.ListResourceIDsForUser(ctx, domain.ResourceMealPlan, actorID)
	if err != nil {
		return nil, err
	}
	shared, err := s.mealPlanRepo.GetByIDs(ctx, sharedIDs)
	if err != nil {
		return nil, err
	}
	return &PlanList[domain.MealPlan]{Owned: owned, Shared: shared}, nil
}
