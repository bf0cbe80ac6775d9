package api

import (
	"alcyxob/shaper/internal/domain"
	"alcyxob/shaper/internal/repository"
	"alcyxob/shaper/internal/service"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ExerciseHandler holds the exercise service dependency.
type ExerciseHandler struct {
	exerciseService service.ExerciseService
	logger          *slog.Logger
}

// NewExerciseHandler creates a new ExerciseHandler.
func NewExerciseHandler(exerciseService service.ExerciseService, logger *slog.Logger) *ExerciseHandler {
	return &ExerciseHandler{exerciseService: exerciseService, logger: logger}
}

// CreateExerciseRequest defines the expected JSON for creating an exercise.
type CreateExerciseRequest struct {
	Name             string   `json:"name" binding:"required"`
	Description      string   `json:"description"`
	MuscleGroup      string   `json:"muscleGroup"` // e.g., "Chest", "Legs"
	Equipment        []string `json:"equipment"`
	ExecutionTechnic string   `json:"executionTechnic"`
	Difficulty       string   `json:"difficulty"`                       // "Novice", "Medium", "Advanced"
	VideoURL         string   `json:"videoUrl" binding:"omitempty,url"` // validated as URL if provided
}

// CreateExercise godoc
// @Summary Create a new exercise
// @Description Adds a manually authored exercise to the shared library.
// @Tags Exercises
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param exercise body CreateExerciseRequest true "Exercise details"
// @Success 201 {object} domain.Exercise
// @Failure 400 {object} gin.H "Invalid input (validation error)"
// @Failure 403 {object} gin.H "Forbidden (not a trainer)"
// @Failure 409 {object} gin.H "Duplicate name"
// @Router /exercises [post]
func (h *ExerciseHandler) CreateExercise(c *gin.Context) {
	var req CreateExerciseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	authorID, ok := mustUserID(c)
	if !ok {
		return
	}

	exercise, err := h.exerciseService.CreateExercise(c.Request.Context(), authorID, service.ExerciseInput{
		Name:             req.Name,
		Description:      req.Description,
		MuscleGroup:      req.MuscleGroup,
		Equipment:        req.Equipment,
		ExecutionTechnic: req.ExecutionTechnic,
		Difficulty:       req.Difficulty,
		VideoURL:         req.VideoURL,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, exercise)
}

// ListExercises godoc
// @Summary Browse the exercise library
// @Tags Exercises
// @Produce json
// @Security BearerAuth
// @Param q query string false "Name contains"
// @Param muscleGroup query string false "Muscle group"
// @Param limit query int false "Max results"
// @Success 200 {array} domain.Exercise
// @Router /exercises [get]
func (h *ExerciseHandler) ListExercises(c *gin.Context) {
	filter := repository.ExerciseFilter{
		NameContains: c.Query("q"),
		MuscleGroup:  c.Query("muscleGroup"),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || limit <= 0 {
			abortWithError(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	exercises, err := h.exerciseService.ListExercises(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if exercises == nil {
		exercises = []domain.Exercise{}
	}
	c.JSON(http.StatusOK, exercises)
}

func (h *ExerciseHandler) GetExercise(c *gin.Context) {
	id, ok := paramObjectID(c, "id")
	if !ok {
		return
	}
	exercise, err := h.exerciseService.GetExerciseByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, exercise)
}
