// internal/domain/exercise.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ExerciseSourceManual marks exercises typed in by a trainer rather than imported.
const ExerciseSourceManual = "manual"

// Exercise represents a single exercise definition in the library.
type Exercise struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AuthorID    primitive.ObjectID `bson:"authorId" json:"authorId"` // Trainer who created it, or admin who ran the import
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`

	MuscleGroup      string   `bson:"muscleGroup,omitempty" json:"muscleGroup,omitempty"` // e.g., "Chest", "Legs", "Back"
	Equipment        []string `bson:"equipment,omitempty" json:"equipment,omitempty"`
	ExecutionTechnic string   `bson:"executionTechnic,omitempty" json:"executionTechnic,omitempty"`
	Difficulty       string   `bson:"difficulty,omitempty" json:"difficulty,omitempty"` // "Novice", "Medium", "Advanced"
	VideoURL         string   `bson:"videoUrl,omitempty" json:"videoUrl,omitempty"`

	// Source is "manual" or the dataset name an import came from. Imports
	// upsert on (name, source) so re-running a dataset does not duplicate rows.
	Source     string `bson:"source" json:"source"`
	ExternalID string `bson:"externalId,omitempty" json:"externalId,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
