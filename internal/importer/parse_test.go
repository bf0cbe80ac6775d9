package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParseExerciseLine(t *testing.T) {
	author := primitive.NewObjectID()

	t.Run("full record", func(t *testing.T) {
		line := []byte(`{"id":"ex-1","name":"  Back Squat ","muscleGroup":"Legs","equipment":["Barbell"," ",""],"difficulty":"Medium","videoUrl":"https://v/1"}`)

		ex, err := ParseExerciseLine(line, "wger", author)
		require.NoError(t, err)
		assert.Equal(t, "Back Squat", ex.Name)
		assert.Equal(t, "Legs", ex.MuscleGroup)
		assert.Equal(t, []string{"Barbell"}, ex.Equipment)
		assert.Equal(t, "wger", ex.Source)
		assert.Equal(t, "ex-1", ex.ExternalID)
		assert.Equal(t, author, ex.AuthorID)
	})

	t.Run("unknown fields are ignored", func(t *testing.T) {
		ex, err := ParseExerciseLine([]byte(`{"name":"Plank","calories":3}`), "wger", author)
		require.NoError(t, err)
		assert.Equal(t, "Plank", ex.Name)
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := ParseExerciseLine([]byte(`{"name":"   "}`), "wger", author)
		assert.ErrorIs(t, err, errMissingName)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := ParseExerciseLine([]byte(`{"name":`), "wger", author)
		assert.Error(t, err)
	})
}
