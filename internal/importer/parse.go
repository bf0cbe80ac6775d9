package importer

import (
	"alcyxob/shaper/internal/domain"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errMissingName = errors.New("exercise name is required")

// exerciseRecord is one line of an exercise dataset.
type exerciseRecord struct {
	ExternalID       string   `json:"id"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	MuscleGroup      string   `json:"muscleGroup"`
	Equipment        []string `json:"equipment"`
	ExecutionTechnic string   `json:"executionTechnic"`
	Difficulty       string   `json:"difficulty"`
	VideoURL         string   `json:"videoUrl"`
}

// ParseExerciseLine decodes a single JSON-lines record into an exercise
// attributed to source and authorID.
func ParseExerciseLine(line []byte, source string, authorID primitive.ObjectID) (*domain.Exercise, error) {
	var rec exerciseRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("invalid record: %w", err)
	}

	name := strings.TrimSpace(rec.Name)
	if name == "" {
		return nil, errMissingName
	}

	equipment := make([]string, 0, len(rec.Equipment))
	for _, e := range rec.Equipment {
		if e = strings.TrimSpace(e); e != "" {
			equipment = append(equipment, e)
		}
	}

	return &domain.Exercise{
		AuthorID:         authorID,
		Name:             name,
		Description:      strings.TrimSpace(rec.Description),
		MuscleGroup:      strings.TrimSpace(rec.MuscleGroup),
		Equipment:        equipment,
		ExecutionTechnic: strings.TrimSpace(rec.ExecutionTechnic),
		Difficulty:       strings.TrimSpace(rec.Difficulty),
		VideoURL:         strings.TrimSpace(rec.VideoURL),
		Source:           source,
		ExternalID:       strings.TrimSpace(rec.ExternalID),
	}, nil
}
