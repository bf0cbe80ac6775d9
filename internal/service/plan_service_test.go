package service

import (
	"alcyxob/shaper/internal/domain"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type planFixture struct {
	*permissionFixture
	workouts *fakeWorkoutRepo
	plans    PlanService
}

func newPlanFixture() *planFixture {
	pf := newPermissionFixture()
	workouts := &fakeWorkoutRepo{}
	return &planFixture{
		permissionFixture: pf,
		workouts:          workouts,
		plans:             NewPlanService(pf.plans, pf.meals, workouts, pf.collaborators, pf.svc, discardLogger()),
	}
}

func TestTrainingPlanLifecycle(t *testing.T) {
	f := newPlanFixture()
	ctx := context.Background()
	owner := primitive.NewObjectID()
	editor := primitive.NewObjectID()

	plan, err := f.plans.CreateTrainingPlan(ctx, owner, &domain.TrainingPlan{Name: "  Base block "})
	require.NoError(t, err)
	assert.Equal(t, "Base block", plan.Name)
	assert.Equal(t, owner, plan.CreatorID)

	f.collaborators.grant(domain.ResourceTrainingPlan, plan.ID, editor, domain.PermissionEdit)

	workout, err := f.plans.AddWorkout(ctx, editor, plan.ID, &domain.Workout{Name: "Day 1"})
	require.NoError(t, err)
	assert.Equal(t, editor, workout.AuthorID)

	list, err := f.plans.ListTrainingPlans(ctx, editor)
	require.NoError(t, err)
	assert.Empty(t, list.Owned)
	require.Len(t, list.Shared, 1)

	// Editors may rename; strangers may not touch it and only the creator deletes.
	update := *plan
	update.Name = "Base block v2"
	_, err = f.plans.UpdateTrainingPlan(ctx, editor, &update)
	require.NoError(t, err)

	update.IsPublic = true
	_, err = f.plans.UpdateTrainingPlan(ctx, primitive.NewObjectID(), &update)
	assert.Equal(t, ReasonNotCollaborator, deniedReason(t, err))

	err = f.plans.DeleteTrainingPlan(ctx, editor, plan.ID)
	assert.Equal(t, ReasonCreatorOnly, deniedReason(t, err))

	require.NoError(t, f.plans.DeleteTrainingPlan(ctx, owner, plan.ID))
	assert.Empty(t, f.workouts.workouts)
	ids, err := f.collaborators.ListResourceIDsForUser(ctx, domain.ResourceTrainingPlan, editor)
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = f.plans.GetTrainingPlan(ctx, owner, plan.ID)
	assert.Equal(t, ReasonNotFound, deniedReason(t, err))
}

func TestTrainingPlanValidation(t *testing.T) {
	f := newPlanFixture()
	ctx := context.Background()
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -1)

	_, err := f.plans.CreateTrainingPlan(ctx, primitive.NewObjectID(), &domain.TrainingPlan{Name: " "})
	assert.ErrorIs(t, err, ErrPlanValidation)

	_, err = f.plans.CreateTrainingPlan(ctx, primitive.NewObjectID(), &domain.TrainingPlan{Name: "x", StartDate: &start, EndDate: &end})
	assert.ErrorIs(t, err, ErrPlanValidation)

	owner := primitive.NewObjectID()
	plan, err := f.plans.CreateTrainingPlan(ctx, owner, &domain.TrainingPlan{Name: "x"})
	require.NoError(t, err)
	day := 7
	_, err = f.plans.AddWorkout(ctx, owner, plan.ID, &domain.Workout{Name: "Sunday+1", DayOfWeek: &day})
	assert.ErrorIs(t, err, ErrPlanValidation)
}

func TestPublicMealPlanIsReadOnlyForStrangers(t *testing.T) {
	f := newPlanFixture()
	ctx := context.Background()
	owner := primitive.NewObjectID()
	stranger := primitive.NewObjectID()

	plan, err := f.plans.CreateMealPlan(ctx, owner, &domain.MealPlan{
		Name:     "Lean bulk",
		IsPublic: true,
		Meals:    []domain.Meal{{Name: "Breakfast", Foods: []domain.MealFood{{Name: "Oats", Grams: 80, Calories: 300}}}},
	})
	require.NoError(t, err)

	got, err := f.plans.GetMealPlan(ctx, stranger, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lean bulk", got.Name)

	got.Name = "Mine now"
	_, err = f.plans.UpdateMealPlan(ctx, stranger, got)
	assert.Equal(t, ReasonNotCollaborator, deniedReason(t, err))

	_, err = f.plans.CreateMealPlan(ctx, owner, &domain.MealPlan{
		Name:  "Broken",
		Meals: []domain.Meal{{Name: "Lunch", Foods: []domain.MealFood{{Name: "Rice", Grams: -1}}}},
	})
	assert.ErrorIs(t, err, ErrPlanValidation)
}
