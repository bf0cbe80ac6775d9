package service

import (
	"alcyxob/shaper/internal/domain"
	"alcyxob/shaper/internal/repository"
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrExerciseNotFound = errors.New("exercise not found")
	ErrExerciseExists   = errors.New("an exercise with this name already exists")
	ErrValidationFailed = errors.New("exercise validation failed")
)

var validDifficulties = map[string]bool{"": true, "Novice": true, "Medium": true, "Advanced": true}

// ExerciseInput carries the editable fields of a library exercise.
type ExerciseInput struct {
	Name             string
	Description      string
	MuscleGroup      string
	Equipment        []string
	ExecutionTechnic string
	Difficulty       string
	VideoURL         string
}

type ExerciseService interface {
	CreateExercise(ctx context.Context, authorID primitive.ObjectID, input ExerciseInput) (*domain.Exercise, error)
	GetExerciseByID(ctx context.Context, exerciseID primitive.ObjectID) (*domain.Exercise, error)
	ListExercises(ctx context.Context, filter repository.ExerciseFilter) ([]domain.Exercise, error)
}

// exerciseService implements the ExerciseService interface.
type exerciseService struct {
	exerciseRepo repository.ExerciseRepository
}

// NewExerciseService creates a new instance of exerciseService.
func NewExerciseService(exerciseRepo repository.ExerciseRepository) ExerciseService {
	return &exerciseService{
		exerciseRepo: exerciseRepo,
	}
}

// CreateExercise adds a manually authored exercise to the shared library.
func (s *exerciseService) CreateExercise(ctx context.Context, authorID primitive.ObjectID, input ExerciseInput) (*domain.Exercise, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidationFailed)
	}
	if !validDifficulties[input.Difficulty] {
		return nil, fmt.Errorf("%w: difficulty must be Novice, Medium or Advanced", ErrValidationFailed)
	}

	exercise := &domain.Exercise{
		AuthorID:         authorID,
		Name:             name,
		Description:      input.Description,
		MuscleGroup:      input.MuscleGroup,
		Equipment:        input.Equipment,
		ExecutionTechnic: input.ExecutionTechnic,
		Difficulty:       input.Difficulty,
		VideoURL:         input.VideoURL,
		Source:           domain.ExerciseSourceManual,
	}

	if _, err := s.exerciseRepo.Create(ctx, exercise); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrExerciseExists
		}
		return nil, err
	}
	return exercise, nil
}

// GetExerciseByID retrieves a single exercise. The library is readable by every signed-in user.
func (s *exerciseService) GetExerciseByID(ctx context.Context, exerciseID primitive.ObjectID) (*domain.Exercise, error) {
	exercise, err := s.exerciseRepo.GetByID(ctx, exerciseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExerciseNotFound
		}
		return nil, err
	}
	return exercise, nil
}

func (s *exerciseService) ListExercises(ctx context.Context, filter repository.ExerciseFilter) ([]domain.Exercise, error) {
	filter.NameContains = strings.TrimSpace(filter.NameContains)
	if filter.Limit > 500 {
		filter.Limit = 500
	}
	return s.exerciseRepo.List(ctx, filter)
}
