// internal/domain/training_plan.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TrainingPlan represents a structured plan built by a trainer. It can be
// assigned to a client, shared with collaborators, or published.
type TrainingPlan struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	CreatorID   primitive.ObjectID  `bson:"creatorId" json:"creatorId"`                   // Who created the plan (implicit full permission)
	ClientID    *primitive.ObjectID `bson:"clientId,omitempty" json:"clientId,omitempty"` // Who the plan is for, if assigned
	Name        string              `bson:"name" json:"name"`                             // e.g., "Phase 1: Hypertrophy"
	Description string              `bson:"description,omitempty" json:"description,omitempty"`
	StartDate   *time.Time          `bson:"startDate,omitempty" json:"startDate,omitempty"`
	EndDate     *time.Time          `bson:"endDate,omitempty" json:"endDate,omitempty"`
	IsActive    bool                `bson:"isActive" json:"isActive"`
	IsPublic    bool                `bson:"isPublic" json:"isPublic"` // Public plans are viewable by anyone
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// Access returns the projection the permission evaluator works with.
func (p *TrainingPlan) Access() ResourceAccess {
	return ResourceAccess{CreatorID: p.CreatorID, IsPublic: p.IsPublic}
}
