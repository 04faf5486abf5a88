package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nutriwellness/nutricare/internal/gate"
	"github.com/nutriwellness/nutricare/internal/httpx"
	"github.com/nutriwellness/nutricare/internal/middleware"
	"github.com/nutriwellness/nutricare/internal/models"
	"github.com/nutriwellness/nutricare/internal/policy"
	"github.com/nutriwellness/nutricare/internal/validation"
)

type MealPlanHandler struct {
	DB   *gorm.DB
	Gate *policy.AuthGate
}

func NewMealPlanHandler(db *gorm.DB, g *policy.AuthGate) *MealPlanHandler {
	return &MealPlanHandler{DB: db, Gate: g}
}

func (h *MealPlanHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /patients/{id}/meal-plan", h.show)
	mux.HandleFunc("POST /patients/{id}/meal-plan", h.save)
}

type mealPlanDayInput struct {
	Day            int    `json:"day"`
	Breakfast      string `json:"breakfast"`
	MorningSnack   string `json:"morning_snack"`
	Lunch          string `json:"lunch"`
	AfternoonSnack string `json:"afternoon_snack"`
	Dinner         string `json:"dinner"`
	EveningSnack   string `json:"evening_snack"`
}

func (h *MealPlanHandler) patientFromRoute(r *http.Request) (*models.User, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return nil, gorm.ErrRecordNotFound
	}
	var patient models.User
	if err := h.DB.First(&patient, "id = ? AND role = ?", id, models.RolePatient).Error; err != nil {
		return nil, err
	}
	return &patient, nil
}

// show returns the patient's plan as stored. Only a patient with no plan at
// all gets seven blank rows, so the editor has something to start from.
func (h *MealPlanHandler) show(w http.ResponseWriter, r *http.Request) {
	if !h.Gate.Can(r.Context(), gate.ActionView, policy.ResourceMealPlan, nil) {
		policy.Deny(w, r)
		return
	}
	patient, err := h.patientFromRoute(r)
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}

	var week []models.MealPlan
	h.DB.Where("patient_id = ?", patient.ID).Order("day asc").Find(&week)
	if len(week) == 0 {
		week = make([]models.MealPlan, 0, models.MealPlanDays)
		for day := 1; day <= models.MealPlanDays; day++ {
			week = append(week, models.MealPlan{PatientID: patient.ID, Day: day})
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"patient_id": patient.ID, "days": week})
}

// save replaces the whole week in one transaction. Every submitted row is
// validated before anything is written; the patient id is stamped from the
// route so the payload cannot re-target another patient's plan.
func (h *MealPlanHandler) save(w http.ResponseWriter, r *http.Request) {
	if !h.Gate.Can(r.Context(), gate.ActionUpdate, policy.ResourceMealPlan, nil) {
		policy.Deny(w, r)
		return
	}
	patient, err := h.patientFromRoute(r)
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}

	days, err := decodeMealPlanDays(r)
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_input", nil)
		return
	}

	v := validation.Violations{}
	seen := make(map[int]bool)
	for i, d := range days {
		field := fmt.Sprintf("days.%d.day", i)
		validation.RangeInt(field, d.Day, 1, models.MealPlanDays, v)
		if seen[d.Day] {
			v[field] = "duplicate_day"
		}
		seen[d.Day] = true
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		for _, d := range days {
			var plan models.MealPlan
			err := tx.Where("patient_id = ? AND day = ?", patient.ID, d.Day).First(&plan).Error
			if err == gorm.ErrRecordNotFound {
				plan = models.MealPlan{PatientID: patient.ID, Day: d.Day}
			} else if err != nil {
				return err
			}
			plan.Breakfast = d.Breakfast
			plan.MorningSnack = d.MorningSnack
			plan.Lunch = d.Lunch
			plan.AfternoonSnack = d.AfternoonSnack
			plan.Dinner = d.Dinner
			plan.EveningSnack = d.EveningSnack
			if err := tx.Save(&plan).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}

	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"saved": len(days)})
		return
	}
	middleware.Flash(w, "Plan alimentaire enregistré")
	http.Redirect(w, r, "/patients/"+patient.ID.String()+"/record", http.StatusSeeOther)
}

// decodeMealPlanDays reads either a JSON body {"days": [...]} or the indexed
// form fields produced by the seven-row editor (day_1_breakfast, ...).
func decodeMealPlanDays(r *http.Request) ([]mealPlanDayInput, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			Days []mealPlanDayInput `json:"days"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, err
		}
		return body.Days, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	days := make([]mealPlanDayInput, 0, models.MealPlanDays)
	for day := 1; day <= models.MealPlanDays; day++ {
		prefix := fmt.Sprintf("day_%d_", day)
		days = append(days, mealPlanDayInput{
			Day:            day,
			Breakfast:      r.FormValue(prefix + "breakfast"),
			MorningSnack:   r.FormValue(prefix + "morning_snack"),
			Lunch:          r.FormValue(prefix + "lunch"),
			AfternoonSnack: r.FormValue(prefix + "afternoon_snack"),
			Dinner:         r.FormValue(prefix + "dinner"),
			EveningSnack:   r.FormValue(prefix + "evening_snack"),
		})
	}
	return days, nil
}
