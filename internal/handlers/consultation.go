package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nutriwellness/nutricare/internal/auth"
	"github.com/nutriwellness/nutricare/internal/gate"
	"github.com/nutriwellness/nutricare/internal/httpx"
	"github.com/nutriwellness/nutricare/internal/middleware"
	"github.com/nutriwellness/nutricare/internal/models"
	"github.com/nutriwellness/nutricare/internal/policy"
	"github.com/nutriwellness/nutricare/internal/validation"
)

type ConsultationHandler struct {
	DB   *gorm.DB
	Gate *policy.AuthGate
}

func NewConsultationHandler(db *gorm.DB, g *policy.AuthGate) *ConsultationHandler {
	return &ConsultationHandler{DB: db, Gate: g}
}

func (h *ConsultationHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /patients/{id}/consultations", h.create)
	mux.HandleFunc("GET /consultations/{id}", h.show)
	mux.HandleFunc("POST /consultations/{id}", h.update)
	mux.HandleFunc("POST /consultations/{id}/delete", h.delete)
}

type consultationInput struct {
	BloodPressure        string   `json:"blood_pressure"`
	TotalCholesterol     *float64 `json:"total_cholesterol"`
	LDL                  *float64 `json:"ldl"`
	HDL                  *float64 `json:"hdl"`
	Triglycerides        *float64 `json:"triglycerides"`
	HbA1c                *float64 `json:"hba1c"`
	Weight               *float64 `json:"weight"`
	NutritionalDiagnosis string   `json:"nutritional_diagnosis"`
	Goals                string   `json:"goals"`
	InterventionPlan     string   `json:"intervention_plan"`
	NextAppointment      string   `json:"next_appointment"`
}

func (in *consultationInput) fromForm(r *http.Request) {
	in.BloodPressure = r.FormValue("blood_pressure")
	in.TotalCholesterol = formFloat(r, "total_cholesterol")
	in.LDL = formFloat(r, "ldl")
	in.HDL = formFloat(r, "hdl")
	in.Triglycerides = formFloat(r, "triglycerides")
	in.HbA1c = formFloat(r, "hba1c")
	in.Weight = formFloat(r, "weight")
	in.NutritionalDiagnosis = r.FormValue("nutritional_diagnosis")
	in.Goals = r.FormValue("goals")
	in.InterventionPlan = r.FormValue("intervention_plan")
	in.NextAppointment = r.FormValue("next_appointment")
}

func (in *consultationInput) validate() validation.Violations {
	v := validation.Violations{}
	if in.Weight != nil {
		validation.PositiveFloat("weight", *in.Weight, v)
	}
	if in.HbA1c != nil {
		validation.RangeFloat("hba1c", *in.HbA1c, 0, 25, v)
	}
	return v
}

func (in *consultationInput) apply(c *models.Consultation) {
	c.BloodPressure = in.BloodPressure
	c.TotalCholesterol = in.TotalCholesterol
	c.LDL = in.LDL
	c.HDL = in.HDL
	c.Triglycerides = in.Triglycerides
	c.HbA1c = in.HbA1c
	c.Weight = in.Weight
	c.NutritionalDiagnosis = in.NutritionalDiagnosis
	c.Goals = in.Goals
	c.InterventionPlan = in.InterventionPlan
	if in.NextAppointment != "" {
		if d, err := time.Parse("2006-01-02", in.NextAppointment); err == nil {
			c.NextAppointment = &d
		}
	}
}

func (h *ConsultationHandler) create(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if !h.Gate.Can(r.Context(), gate.ActionCreate, policy.ResourceConsultation, nil) {
		policy.Deny(w, r)
		return
	}

	var patient models.User
	if err := h.DB.Preload("Profile").First(&patient, "id = ? AND role = ?", patientID, models.RolePatient).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}

	var in consultationInput
	if err := decodeInput(r, &in, func() { in.fromForm(r) }); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_input", nil)
		return
	}
	if v := in.validate(); !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}

	pr, _ := auth.PrincipalFromContext(r.Context())
	// The patient id comes from the route, never from the payload: a tampered
	// form cannot file a visit under someone else's record.
	c := models.Consultation{PatientID: patient.ID, DietitianID: pr.ID}
	if patient.Profile != nil {
		c.PatientProfileID = &patient.Profile.ID
	}
	in.apply(&c)
	if err := h.DB.Create(&c).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}

	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusCreated, c)
		return
	}
	middleware.Flash(w, "Consultation enregistrée")
	http.Redirect(w, r, "/patients/"+patient.ID.String()+"/record", http.StatusSeeOther)
}

func (h *ConsultationHandler) load(r *http.Request) (*models.Consultation, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return nil, gorm.ErrRecordNotFound
	}
	var c models.Consultation
	if err := h.DB.Preload("PatientProfile").First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (h *ConsultationHandler) show(w http.ResponseWriter, r *http.Request) {
	c, err := h.load(r)
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if !h.Gate.Can(r.Context(), gate.ActionView, policy.ResourceConsultation, c) {
		policy.Deny(w, r)
		return
	}
	status := c.BMIStatus()
	httpx.JSON(w, http.StatusOK, map[string]any{
		"consultation": c,
		"bmi":          c.BMI(),
		"bmi_status":   status.Label,
		"bmi_color":    status.Color,
	})
}

func (h *ConsultationHandler) update(w http.ResponseWriter, r *http.Request) {
	c, err := h.load(r)
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if !h.Gate.Can(r.Context(), gate.ActionUpdate, policy.ResourceConsultation, c) {
		policy.Deny(w, r)
		return
	}

	var in consultationInput
	if err := decodeInput(r, &in, func() { in.fromForm(r) }); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_input", nil)
		return
	}
	if v := in.validate(); !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}

	// DateConsultation stays what it was at creation.
	in.apply(c)
	if err := h.DB.Save(c).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}

	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, c)
		return
	}
	middleware.Flash(w, "Consultation mise à jour")
	http.Redirect(w, r, "/patients/"+c.PatientID.String()+"/record", http.StatusSeeOther)
}

func (h *ConsultationHandler) delete(w http.ResponseWriter, r *http.Request) {
	c, err := h.load(r)
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if !h.Gate.Can(r.Context(), gate.ActionDelete, policy.ResourceConsultation, c) {
		policy.Deny(w, r)
		return
	}
	if err := h.DB.Delete(c).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}

	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
		return
	}
	middleware.Flash(w, "Consultation supprimée")
	http.Redirect(w, r, "/patients/"+c.PatientID.String()+"/record", http.StatusSeeOther)
}
