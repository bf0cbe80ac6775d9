package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WorkoutExercise is one exercise prescription inside a workout.
type WorkoutExercise struct {
	ExerciseID primitive.ObjectID `bson:"exerciseId" json:"exerciseId"`
	Sets       int                `bson:"sets,omitempty" json:"sets,omitempty"`
	Reps       string             `bson:"reps,omitempty" json:"reps,omitempty"` // "8-12", "AMRAP"
	Rest       string             `bson:"rest,omitempty" json:"rest,omitempty"`
	Notes      string             `bson:"notes,omitempty" json:"notes,omitempty"`
}

// Workout represents a single workout session within a TrainingPlan.
type Workout struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TrainingPlanID primitive.ObjectID `bson:"trainingPlanId" json:"trainingPlanId"`
	AuthorID       primitive.ObjectID `bson:"authorId" json:"authorId"` // Creator or an editing collaborator
	Name           string             `bson:"name" json:"name"`         // e.g., "Day 1: Upper Body"
	DayOfWeek      *int               `bson:"dayOfWeek,omitempty" json:"dayOfWeek,omitempty"`
	Notes          string             `bson:"notes,omitempty" json:"notes,omitempty"`
	Sequence       int                `bson:"sequence" json:"sequence"`
	Exercises      []WorkoutExercise  `bson:"exercises,omitempty" json:"exercises,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}
