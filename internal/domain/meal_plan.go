package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MealFood is a single food line in a meal.
type MealFood struct {
	Name     string  `bson:"name" json:"name"`
	Grams    float64 `bson:"grams" json:"grams"`
	Calories float64 `bson:"calories" json:"calories"`
	Protein  float64 `bson:"protein,omitempty" json:"protein,omitempty"`
	Carbs    float64 `bson:"carbs,omitempty" json:"carbs,omitempty"`
	Fat      float64 `bson:"fat,omitempty" json:"fat,omitempty"`
}

type Meal struct {
	Name      string     `bson:"name" json:"name"`                               // "Breakfast"
	TimeOfDay string     `bson:"timeOfDay,omitempty" json:"timeOfDay,omitempty"` // "07:30"
	Foods     []MealFood `bson:"foods,omitempty" json:"foods,omitempty"`
}

// Calories sums the calories of every food in the meal.
func (m Meal) Calories() float64 {
	var total float64
	for _, f := range m.Foods {
		total += f.Calories
	}
	return total
}

// MealPlan is a nutrition plan. Sharing rules are the same as for training plans.
type MealPlan struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatorID          primitive.ObjectID `bson:"creatorId" json:"creatorId"`
	Name               string             `bson:"name" json:"name"`
	Description        string             `bson:"description,omitempty" json:"description,omitempty"`
	DailyCalorieTarget int                `bson:"dailyCalorieTarget,omitempty" json:"dailyCalorieTarget,omitempty"`
	Meals              []Meal             `bson:"meals,omitempty" json:"meals,omitempty"`
	IsPublic           bool               `bson:"isPublic" json:"isPublic"`
	CreatedAt          time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (p *MealPlan) Access() ResourceAccess {
	return ResourceAccess{CreatorID: p.CreatorID, IsPublic: p.IsPublic}
}

// TotalCalories sums all meals of the plan.
func (p *MealPlan) TotalCalories() float64 {
	var total float64
	for _, m := range p.Meals {
		total += m.Calories()
	}
	return total
}
