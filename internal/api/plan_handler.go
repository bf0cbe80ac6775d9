package api

import (
	"alcyxob/shaper/internal/domain"
	"alcyxob/shaper/internal/service"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanHandler serves training plans, their workouts, and meal plans.
// Access checks happen in the plan service.
type PlanHandler struct {
	plans  service.PlanService
	logger *slog.Logger
}

func NewPlanHandler(plans service.PlanService, logger *slog.Logger) *PlanHandler {
	return &PlanHandler{plans: plans, logger: logger}
}

type TrainingPlanRequest struct {
	Name        string     `json:"name" binding:"required"`
	Description string     `json:"description"`
	ClientID    string     `json:"clientId"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	IsActive    bool       `json:"isActive"`
	IsPublic    bool       `json:"isPublic"`
}

func (r TrainingPlanRequest) toDomain() (*domain.TrainingPlan, error) {
	plan := &domain.TrainingPlan{
		Name:        r.Name,
		Description: r.Description,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		IsActive:    r.IsActive,
		IsPublic:    r.IsPublic,
	}
	if r.ClientID != "" {
		clientID, err := primitive.ObjectIDFromHex(r.ClientID)
		if err != nil {
			return nil, err
		}
		plan.ClientID = &clientID
	}
	return plan, nil
}

type WorkoutRequest struct {
	Name      string                   `json:"name" binding:"required"`
	DayOfWeek *int                     `json:"dayOfWeek"`
	Notes     string                   `json:"notes"`
	Sequence  int                      `json:"sequence"`
	Exercises []domain.WorkoutExercise `json:"exercises"`
}

type MealPlanRequest struct {
	Name               string        `json:"name" binding:"required"`
	Description        string        `json:"description"`
	DailyCalorieTarget int           `json:"dailyCalorieTarget"`
	Meals              []domain.Meal `json:"meals"`
	IsPublic           bool          `json:"isPublic"`
}

func (r MealPlanRequest) toDomain() *domain.MealPlan {
	return &domain.MealPlan{
		Name:               r.Name,
		Description:        r.Description,
		DailyCalorieTarget: r.DailyCalorieTarget,
		Meals:              r.Meals,
		IsPublic:           r.IsPublic,
	}
}

// --- Training plans ---

// CreateTrainingPlan godoc
// @Summary Create a training plan owned by the caller
// @Tags Plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param plan body TrainingPlanRequest true "Plan details"
// @Success 201 {object} domain.TrainingPlan
// @Router /training-plans [post]
func (h *PlanHandler) CreateTrainingPlan(c *gin.Context) {
	actorID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req TrainingPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	plan, err := req.toDomain()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid clientId format.")
		return
	}

	created, err := h.plans.CreateTrainingPlan(c.Request.Context(), actorID, plan)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *PlanHandler) GetTrainingPlan(c *gin.Context) {
	actorID, ok := mustUserID(c)
	if !ok {
		return
	}
	planID, ok := paramObjectID(c, "id")
	if !ok {
		return
	}
	plan, err := h.plans.GetTrainingPlan(c.Request.Context(), actorID, planID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// UpdateTrainingPlan replaces the editable fields. Changing isPublic also needs SHARE.
func (h *PlanHandler) UpdateTrainingPlan(c *gin.Context) {
	actorID, ok := mustUserID(c)
	if !ok {
		return
	}
	planID, ok := paramObjectID(c, "id")
	if !ok {
		return
	}
	var req TrainingPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	plan, err := req.toDomain()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid clientId format.")
		return
	}
	plan.ID = planID

	updated, err := h.plans.UpdateTrainingPlan(c.Request.Context(), actorID, plan)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *PlanHandler) DeleteTrainingPlan(c *gin.Context) {
	actorID, ok := mustUserID(c)
	if !ok {
		return
	}
	planID, ok := paramObjectID(c, "id")
	if !ok {
		return
	}
	if err := h.plans.DeleteTrainingPlan(c.Request.Context(), actorID, planID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PlanHandler) ListTrainingPlans(c *gin.Context) {
	actorID, ok := mustUserID(c)
	if !ok {
		return
	}
	list, err := h.plans.ListTrainingPlans(c.Request.Context(), actorID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// --- Workouts ---

func (h *PlanHandler) AddWorkout(c *gin.Context) {
	actorID, ok := mustUserID(c)
	if !ok {
		return
	}
	planID, ok := paramObjectID(c, "id")
	if !ok {
		return
	}
	var req WorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	workout, err := h.plans.AddWorkout(c.Request.Context(), actorID, planID, &domain.Workout{
		Name:      req.Name,
		DayOfWeek: req.DayOfWeek,
		Notes:     req.Notes,
		Sequence:  req.Sequence,
		Exercises: req.Exercises,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, workout)
}

func (h *PlanHandler) ListWorkouts(c *gin.Context) {
	actorID, ok := mustUserID(c)
	if !ok {
		return
	}
	planID, ok := paramObjectID(c, "id")
	if !ok {
		return
	}
	workouts, err := h.plans.ListWorkouts(c.Request.Context(), actorID, planID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if workouts == nil {
		workouts = []domain.Workout{}
	}
	c.JSON(http.StatusOK, workouts)
}

// --- Meal plans ---

func (h *PlanHandler) CreateMealPlan(c *gin.Context) {
	actorID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req MealPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	created, err := h.plans.CreateMealPlan(c.Request.Context(), actorID, req.toDomain())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *PlanHandler) GetMealPlan(c *gin.Context) {
	actorID, ok := mustUserID(c)
	if !ok {
		return
	}
	planID, ok := paramObjectID(c, "id")
	if !ok {
		return
	}
	plan, err := h.plans.GetMealPlan(c.Request.Context(), actorID, planID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *PlanHandler) UpdateMealPlan(c *gin.Context) {
	actorID, ok := mustUserID(c)
	if !ok {
		return
	}
	planID, ok := paramObjectID(c, "id")
	if !ok {
		return
	}
	var req MealPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	plan := req.toDomain()
	plan.ID = planID

	updated, err := h.plans.UpdateMealPlan(c.Request.Context(), actorID, plan)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *PlanHandler) DeleteMealPlan(c *gin.Context) {
	actorID, ok := mustUserID(c)
	if !ok {
		return
	}
	planID, ok := paramObjectID(c, "id")
	if !ok {
		return
	}
	if err := h.plans.DeleteMealPlan(c.Request.Context(), actorID, planID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PlanHandler) ListMealPlans(c *gin.Context) {
	actorID, ok := mustUserID(c)
	if !ok {
		return
	}
	list, err := h.plans.ListMealPlans(c.Request.Context(), actorID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
