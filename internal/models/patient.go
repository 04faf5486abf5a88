package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nutriwellness/nutricare/internal/clinical"
)

// Gender and activity-level choices, as collected by the intake form.
const (
	GenderMale   = "Male"
	GenderFemale = "Female"

	ActivitySedentary = "sedentary"
	ActivityLow       = "low"
	ActivityModerate  = "moderate"
	ActivityIntense   = "intense"
)

// Genders and ActivityLevels are the accepted form values.
var (
	Genders        = []string{GenderMale, GenderFemale}
	ActivityLevels = []string{ActivitySedentary, ActivityLow, ActivityModerate, ActivityIntense}
)

// PatientProfile is the intake record owned 1:1 by a patient user. It is
// created as a side effect of patient signup and lives as long as the user.
// A profile counts as "complete" only once Age is set; mere existence is not
// enough, because the signup hook creates an empty row.
type PatientProfile struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`

	Age           *int   `json:"age"`
	Gender        string `gorm:"size:10" json:"gender"`
	Occupation    string `gorm:"size:100" json:"occupation"`
	ActivityLevel string `gorm:"size:20" json:"activity_level"`

	Diagnosis        string     `gorm:"size:255" json:"diagnosis"`
	DiagnosisDate    *time.Time `json:"diagnosis_date"`
	MedicalHistory   string     `gorm:"type:text" json:"medical_history"`
	Medications      string     `gorm:"type:text" json:"medications"`
	Allergies        bool       `gorm:"default:false" json:"allergies"`
	FamilyHistoryCVD bool       `gorm:"default:false" json:"family_history_cvd"`

	Height             *float64 `json:"height"` // cm (legacy rows may store meters)
	Weight             *float64 `json:"weight"` // kg
	BMI                *float64 `json:"bmi"`
	WaistCircumference *float64 `json:"waist_circumference"`
	BodyFatPercent     *float64 `json:"body_fat_percent"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeSave recomputes the stored BMI snapshot from the current height and
// weight on every save. When either is missing, the previous value is kept as
// is, matching how the record behaved historically.
func (p *PatientProfile) BeforeSave(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if bmi := clinical.BMI(p.Weight, p.Height, 2); bmi != nil {
		p.BMI = bmi
	}
	return nil
}

// Complete reports whether the intake gate should let this profile through.
func (p *PatientProfile) Complete() bool {
	return p != nil && p.Age != nil
}
