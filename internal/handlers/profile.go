package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nutriwellness/nutricare/internal/auth"
	"github.com/nutriwellness/nutricare/internal/httpx"
	"github.com/nutriwellness/nutricare/internal/middleware"
	"github.com/nutriwellness/nutricare/internal/models"
	"github.com/nutriwellness/nutricare/internal/validation"
)

type ProfileHandler struct {
	DB *gorm.DB
}

func NewProfileHandler(db *gorm.DB) *ProfileHandler { return &ProfileHandler{DB: db} }

func (h *ProfileHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /complete-profile", h.completeForm)
	mux.HandleFunc("POST /complete-profile", h.complete)
	mux.HandleFunc("GET /profile", h.show)
	mux.HandleFunc("POST /profile", h.update)
}

type profileInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	Age                *int     `json:"age"`
	Gender             string   `json:"gender"`
	Occupation         string   `json:"occupation"`
	ActivityLevel      string   `json:"activity_level"`
	Height             *float64 `json:"height"`
	Weight             *float64 `json:"weight"`
	WaistCircumference *float64 `json:"waist_circumference"`
	BodyFatPercent     *float64 `json:"body_fat_percent"`
	Diagnosis          string   `json:"diagnosis"`
	DiagnosisDate      string   `json:"diagnosis_date"`
	MedicalHistory     string   `json:"medical_history"`
	Medications        string   `json:"medications"`
	Allergies          *bool    `json:"allergies"`
	FamilyHistoryCVD   *bool    `json:"family_history_cvd"`
}

func formInt(r *http.Request, key string) *int {
	if v := strings.TrimSpace(r.FormValue(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return &n
		}
	}
	return nil
}

func formFloat(r *http.Request, key string) *float64 {
	if v := strings.TrimSpace(r.FormValue(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return &f
		}
	}
	return nil
}

func formBool(r *http.Request, key string) *bool {
	if v := r.FormValue(key); v != "" {
		b := v == "1" || v == "true" || v == "on"
		return &b
	}
	return nil
}

func (in *profileInput) fromForm(r *http.Request) {
	in.FirstName = r.FormValue("first_name")
	in.LastName = r.FormValue("last_name")
	in.Age = formInt(r, "age")
	in.Gender = r.FormValue("gender")
	in.Occupation = r.FormValue("occupation")
	in.ActivityLevel = r.FormValue("activity_level")
	in.Height = formFloat(r, "height")
	in.Weight = formFloat(r, "weight")
	in.WaistCircumference = formFloat(r, "waist_circumference")
	in.BodyFatPercent = formFloat(r, "body_fat_percent")
	in.Diagnosis = r.FormValue("diagnosis")
	in.DiagnosisDate = r.FormValue("diagnosis_date")
	in.MedicalHistory = r.FormValue("medical_history")
	in.Medications = r.FormValue("medications")
	in.Allergies = formBool(r, "allergies")
	in.FamilyHistoryCVD = formBool(r, "family_history_cvd")
}

func (in *profileInput) validate() validation.Violations {
	v := validation.Violations{}
	if in.Age == nil {
		v["age"] = "required"
	} else {
		validation.RangeInt("age", *in.Age, 1, 120, v)
	}
	validation.OneOf("gender", in.Gender, models.Genders, v)
	validation.OneOf("activity_level", in.ActivityLevel, models.ActivityLevels, v)
	if in.Height != nil {
		validation.PositiveFloat("height", *in.Height, v)
	}
	if in.Weight != nil {
		validation.PositiveFloat("weight", *in.Weight, v)
	}
	if in.BodyFatPercent != nil {
		validation.RangeFloat("body_fat_percent", *in.BodyFatPercent, 0, 100, v)
	}
	return v
}

// apply copies the input onto the profile. Pointer fields only overwrite when
// provided, so a partial form does not wipe stored measurements.
func (in *profileInput) apply(p *models.PatientProfile) {
	if in.Age != nil {
		p.Age = in.Age
	}
	if in.Gender != "" {
		p.Gender = in.Gender
	}
	if in.Occupation != "" {
		p.Occupation = in.Occupation
	}
	if in.ActivityLevel != "" {
		p.ActivityLevel = in.ActivityLevel
	}
	if in.Height != nil {
		p.Height = in.Height
	}
	if in.Weight != nil {
		p.Weight = in.Weight
	}
	if in.WaistCircumference != nil {
		p.WaistCircumference = in.WaistCircumference
	}
	if in.BodyFatPercent != nil {
		p.BodyFatPercent = in.BodyFatPercent
	}
	if in.Diagnosis != "" {
		p.Diagnosis = in.Diagnosis
	}
	if in.DiagnosisDate != "" {
		if d, err := time.Parse("2006-01-02", in.DiagnosisDate); err == nil {
			p.DiagnosisDate = &d
		}
	}
	if in.MedicalHistory != "" {
		p.MedicalHistory = in.MedicalHistory
	}
	if in.Medications != "" {
		p.Medications = in.Medications
	}
	if in.Allergies != nil {
		p.Allergies = *in.Allergies
	}
	if in.FamilyHistoryCVD != nil {
		p.FamilyHistoryCVD = *in.FamilyHistoryCVD
	}
}

// completeForm returns the current (incomplete) profile plus the choice lists
// the completion form needs.
func (h *ProfileHandler) completeForm(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	var profile models.PatientProfile
	if err := h.DB.Where("user_id = ?", p.ID).First(&profile).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"profile":         profile,
		"genders":         models.Genders,
		"activity_levels": models.ActivityLevels,
	})
}

func (h *ProfileHandler) complete(w http.ResponseWriter, r *http.Request) {
	pr, _ := auth.PrincipalFromContext(r.Context())
	if pr.IsDietitian() {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}

	var in profileInput
	if err := decodeInput(r, &in, func() { in.fromForm(r) }); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_input", nil)
		return
	}
	if v := in.validate(); !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}

	var profile models.PatientProfile
	if err := h.DB.Where("user_id = ?", pr.ID).First(&profile).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	in.apply(&profile)
	if err := h.DB.Save(&profile).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}

	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, profile)
		return
	}
	middleware.Flash(w, "Profil complété, bienvenue")
	http.Redirect(w, r, "/home", http.StatusSeeOther)
}

func (h *ProfileHandler) show(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	var user models.User
	if err := h.DB.Preload("Profile").First(&user, "id = ?", p.ID).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

// update edits the account and its profile together. Both writes share one
// transaction so a profile failure rolls back the name change too.
func (h *ProfileHandler) update(w http.ResponseWriter, r *http.Request) {
	pr, _ := auth.PrincipalFromContext(r.Context())

	var in profileInput
	if err := decodeInput(r, &in, func() { in.fromForm(r) }); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_input", nil)
		return
	}

	var user models.User
	if err := h.DB.Preload("Profile").First(&user, "id = ?", pr.ID).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}

	v := validation.Violations{}
	validation.OneOf("gender", in.Gender, models.Genders, v)
	validation.OneOf("activity_level", in.ActivityLevel, models.ActivityLevels, v)
	if in.Age != nil {
		validation.RangeInt("age", *in.Age, 1, 120, v)
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if in.FirstName != "" {
			user.FirstName = strings.TrimSpace(in.FirstName)
		}
		if in.LastName != "" {
			user.LastName = strings.TrimSpace(in.LastName)
		}
		if err := tx.Save(&user).Error; err != nil {
			return err
		}
		if user.Role != models.RolePatient {
			return nil
		}
		profile := user.Profile
		if profile == nil {
			profile = &models.PatientProfile{UserID: user.ID}
		}
		in.apply(profile)
		return tx.Save(profile).Error
	})
	if err != nil {
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
			return
		}
		middleware.Flash(w, "La mise à jour du profil a échoué")
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}

	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, user)
		return
	}
	middleware.Flash(w, "Profil mis à jour")
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}
