package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Meal-time choices for a diary entry.
const (
	MealBreakfast = "breakfast"
	MealSnackAM   = "snack_am"
	MealLunch     = "lunch"
	MealSnackPM   = "snack_pm"
	MealDinner    = "dinner"
)

// MealTimes are the accepted form values.
var MealTimes = []string{MealBreakfast, MealSnackAM, MealLunch, MealSnackPM, MealDinner}

// FoodDiary is a patient's self-logged record of one meal. Entries are only
// ever read and written through queries scoped by the owning patient id, so a
// foreign entry id simply does not resolve for another caller.
type FoodDiary struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PatientID uuid.UUID `gorm:"type:uuid;index;not null" json:"patient_id"`

	// Stamped at creation, not editable afterwards.
	Date time.Time `gorm:"not null" json:"date"`

	MealTime    string `gorm:"size:20;not null" json:"meal_time"`
	Description string `gorm:"type:text" json:"description"`
	Beverage    bool   `gorm:"default:false" json:"beverage"` // sugary beverage consumed
	Notes       string `gorm:"type:text" json:"notes"`
	IsActive    bool   `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (d *FoodDiary) BeforeCreate(_ *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Date.IsZero() {
		d.Date = time.Now()
	}
	return nil
}
