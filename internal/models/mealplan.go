package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MealPlanDays bounds the week: one plan row per day, day 1 through 7.
const MealPlanDays = 7

// MealPlan is one day of a patient's weekly plan, managed by the dietitian
// through the batch editor. (patient, day) is unique so the upsert can match
// submitted rows to existing ones.
type MealPlan struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PatientID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_meal_plan_patient_day" json:"patient_id"`
	Day       int       `gorm:"not null;uniqueIndex:idx_meal_plan_patient_day" json:"day"` // 1..7

	Breakfast      string `gorm:"type:text" json:"breakfast"`
	MorningSnack   string `gorm:"type:text" json:"morning_snack"`
	Lunch          string `gorm:"type:text" json:"lunch"`
	AfternoonSnack string `gorm:"type:text" json:"afternoon_snack"`
	Dinner         string `gorm:"type:text" json:"dinner"`
	EveningSnack   string `gorm:"type:text" json:"evening_snack"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *MealPlan) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
