package handlers

import (
	"net/http"

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

type DiaryHandler struct {
	DB   *gorm.DB
	Gate *policy.AuthGate
}

func NewDiaryHandler(db *gorm.DB, g *policy.AuthGate) *DiaryHandler {
	return &DiaryHandler{DB: db, Gate: g}
}

func (h *DiaryHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /diary", h.list)
	mux.HandleFunc("POST /diary", h.create)
	mux.HandleFunc("GET /diary/{id}", h.show)
	mux.HandleFunc("POST /diary/{id}", h.update)
	mux.HandleFunc("POST /diary/{id}/delete", h.delete)
}

type diaryInput struct {
	MealTime    string `json:"meal_time"`
	Description string `json:"description"`
	Beverage    *bool  `json:"beverage"`
	Notes       string `json:"notes"`
}

func (in *diaryInput) fromForm(r *http.Request) {
	in.MealTime = r.FormValue("meal_time")
	in.Description = r.FormValue("description")
	in.Beverage = formBool(r, "beverage")
	in.Notes = r.FormValue("notes")
}

func (in *diaryInput) validate() validation.Violations {
	v := validation.Violations{}
	validation.Required("meal_time", in.MealTime, v)
	validation.OneOf("meal_time", in.MealTime, models.MealTimes, v)
	validation.Required("description", in.Description, v)
	return v
}

// loadOwned resolves an entry by id scoped to the calling patient. Entries of
// other patients come back as not-found, never as forbidden.
func (h *DiaryHandler) loadOwned(r *http.Request) (*models.FoodDiary, error) {
	p, _ := auth.PrincipalFromContext(r.Context())
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return nil, gorm.ErrRecordNotFound
	}
	var d models.FoodDiary
	if err := h.DB.First(&d, "id = ? AND patient_id = ? AND is_active = ?", id, p.ID, true).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (h *DiaryHandler) list(w http.ResponseWriter, r *http.Request) {
	if !h.Gate.Can(r.Context(), gate.ActionList, policy.ResourceDiary, nil) {
		policy.Deny(w, r)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	var entries []models.FoodDiary
	q := h.DB.Model(&models.FoodDiary{}).
		Where("patient_id = ? AND is_active = ?", p.ID, true).
		Order("date desc")
	result, err := paginate(q, pageParam(r, "page"), &entries)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *DiaryHandler) create(w http.ResponseWriter, r *http.Request) {
	if !h.Gate.Can(r.Context(), gate.ActionCreate, policy.ResourceDiary, nil) {
		policy.Deny(w, r)
		return
	}
	var in diaryInput
	if err := decodeInput(r, &in, func() { in.fromForm(r) }); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_input", nil)
		return
	}
	if v := in.validate(); !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}

	p, _ := auth.PrincipalFromContext(r.Context())
	d := models.FoodDiary{
		PatientID:   p.ID,
		MealTime:    in.MealTime,
		Description: in.Description,
		Notes:       in.Notes,
		IsActive:    true,
	}
	if in.Beverage != nil {
		d.Beverage = *in.Beverage
	}
	if err := h.DB.Create(&d).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}

	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusCreated, d)
		return
	}
	middleware.Flash(w, "Entrée ajoutée au journal")
	http.Redirect(w, r, "/diary", http.StatusSeeOther)
}

func (h *DiaryHandler) show(w http.ResponseWriter, r *http.Request) {
	d, err := h.loadOwned(r)
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *DiaryHandler) update(w http.ResponseWriter, r *http.Request) {
	d, err := h.loadOwned(r)
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if !h.Gate.Can(r.Context(), gate.ActionUpdate, policy.ResourceDiary, d) {
		policy.Deny(w, r)
		return
	}

	var in diaryInput
	if err := decodeInput(r, &in, func() { in.fromForm(r) }); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_input", nil)
		return
	}
	if v := in.validate(); !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}

	// Date stays what it was at creation.
	d.MealTime = in.MealTime
	d.Description = in.Description
	d.Notes = in.Notes
	if in.Beverage != nil {
		d.Beverage = *in.Beverage
	}
	if err := h.DB.Save(d).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}

	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, d)
		return
	}
	middleware.Flash(w, "Entrée mise à jour")
	http.Redirect(w, r, "/diary", http.StatusSeeOther)
}

// delete deactivates the entry rather than removing the row, so the record
// view can still account for history if ever needed.
func (h *DiaryHandler) delete(w http.ResponseWriter, r *http.Request) {
	d, err := h.loadOwned(r)
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if !h.Gate.Can(r.Context(), gate.ActionDelete, policy.ResourceDiary, d) {
		policy.Deny(w, r)
		return
	}
	if err := h.DB.Model(d).Update("is_active", false).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}

	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
		return
	}
	middleware.Flash(w, "Entrée supprimée")
	http.Redirect(w, r, "/diary", http.StatusSeeOther)
}
