package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nutriwellness/nutricare/internal/clinical"
)

// Consultation is one clinical visit recorded by a dietitian for a patient.
// Unlike the profile, its BMI is never stored: it is derived on read from
// this visit's weight and the linked profile's height, so editing the profile
// later does not silently rewrite past consultations' weights.
type Consultation struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	PatientID        uuid.UUID  `gorm:"type:uuid;index;not null" json:"patient_id"`
	DietitianID      uuid.UUID  `gorm:"type:uuid;index;not null" json:"dietitian_id"`
	PatientProfileID *uuid.UUID `gorm:"type:uuid" json:"patient_profile_id,omitempty"`

	// Set once at creation, never updated afterwards.
	DateConsultation time.Time `gorm:"not null" json:"date_consultation"`

	BloodPressure    string   `gorm:"size:20" json:"blood_pressure"`
	TotalCholesterol *float64 `json:"total_cholesterol"`
	LDL              *float64 `json:"ldl"`
	HDL              *float64 `json:"hdl"`
	Triglycerides    *float64 `json:"triglycerides"`
	HbA1c            *float64 `json:"hba1c"`
	Weight           *float64 `json:"weight"` // kg

	NutritionalDiagnosis string `gorm:"type:text" json:"nutritional_diagnosis"`
	Goals                string `gorm:"type:text" json:"goals"`
	InterventionPlan     string `gorm:"type:text" json:"intervention_plan"`

	NextAppointment *time.Time `json:"next_appointment"`

	CreatedAt time.Time `json:"created_at"`

	PatientProfile *PatientProfile `gorm:"foreignKey:PatientProfileID" json:"-"`
}

func (c *Consultation) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.DateConsultation.IsZero() {
		c.DateConsultation = time.Now()
	}
	return nil
}

// BMI derives the index from this consultation's weight and the linked
// profile's height. Requires PatientProfile to be preloaded; returns nil when
// either measurement is missing.
func (c *Consultation) BMI() *float64 {
	if c.PatientProfile == nil {
		return nil
	}
	return clinical.BMI(c.Weight, c.PatientProfile.Height, 1)
}

// BMIStatus classifies the derived BMI into the fixed display bands.
func (c *Consultation) BMIStatus() clinical.Status {
	return clinical.Classify(c.BMI())
}
