package service

import (
	"alcyxob/shaper/internal/domain"
	"alcyxob/shaper/internal/repository"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeExerciseRepo struct {
	rows       map[primitive.ObjectID]domain.Exercise
	lastFilter repository.ExerciseFilter
}

func (r *fakeExerciseRepo) Create(_ context.Context, ex *domain.Exercise) (primitive.ObjectID, error) {
	for _, existing := range r.rows {
		if existing.Name == ex.Name && existing.Source == ex.Source {
			return primitive.NilObjectID, repository.ErrConflict
		}
	}
	ex.ID = primitive.NewObjectID()
	r.rows[ex.ID] = *ex
	return ex.ID, nil
}

func (r *fakeExerciseRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Exercise, error) {
	ex, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ex, nil
}

func (r *fakeExerciseRepo) List(_ context.Context, filter repository.ExerciseFilter) ([]domain.Exercise, error) {
	r.lastFilter = filter
	return nil, nil
}

func (r *fakeExerciseRepo) UpsertBySource(context.Context, *domain.Exercise) (bool, error) {
	return false, nil
}

func TestExerciseService(t *testing.T) {
	repo := &fakeExerciseRepo{rows: map[primitive.ObjectID]domain.Exercise{}}
	svc := NewExerciseService(repo)
	ctx := context.Background()
	author := primitive.NewObjectID()

	ex, err := svc.CreateExercise(ctx, author, ExerciseInput{Name: " Goblet Squat ", Difficulty: "Novice"})
	require.NoError(t, err)
	assert.Equal(t, "Goblet Squat", ex.Name)
	assert.Equal(t, domain.ExerciseSourceManual, ex.Source)

	_, err = svc.CreateExercise(ctx, author, ExerciseInput{Name: "Goblet Squat"})
	assert.ErrorIs(t, err, ErrExerciseExists)

	_, err = svc.CreateExercise(ctx, author, ExerciseInput{Name: " "})
	assert.ErrorIs(t, err, ErrValidationFailed)
	_, err = svc.CreateExercise(ctx, author, ExerciseInput{Name: "Row", Difficulty: "Elite"})
	assert.ErrorIs(t, err, ErrValidationFailed)

	got, err := svc.GetExerciseByID(ctx, ex.ID)
	require.NoError(t, err)
	assert.Equal(t, author, got.AuthorID)

	_, err = svc.GetExerciseByID(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrExerciseNotFound)

	_, err = svc.ListExercises(ctx, repository.ExerciseFilter{NameContains: " squat ", Limit: 5000})
	require.NoError(t, err)
	assert.Equal(t, "squat", repo.lastFilter.NameContains)
	assert.Equal(t, int64(500), repo.lastFilter.Limit)
}
