package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nutriwellness/nutricare/internal/auth"
	"github.com/nutriwellness/nutricare/internal/gate"
	"github.com/nutriwellness/nutricare/internal/httpx"
	"github.com/nutriwellness/nutricare/internal/middleware"
	"github.com/nutriwellness/nutricare/internal/models"
	"github.com/nutriwellness/nutricare/internal/policy"
)

// recordPageSize is the page length shared by the consultation and diary
// panes of a record view.
const recordPageSize = 10

type RecordHandler struct {
	DB   *gorm.DB
	Gate *policy.AuthGate
}

func NewRecordHandler(db *gorm.DB, g *policy.AuthGate) *RecordHandler {
	return &RecordHandler{DB: db, Gate: g}
}

func (h *RecordHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /home", h.home)
	mux.HandleFunc("GET /my-record", h.myRecord)
	mux.HandleFunc("GET /patients/{id}/record", h.patientRecord)
}

type page struct {
	Items any   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Pages int   `json:"pages"`
}

func pageParam(r *http.Request, key string) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			return n
		}
	}
	return 1
}

func paginate(q *gorm.DB, pageNum int, dst any) (page, error) {
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return page{}, err
	}
	pages := int((total + recordPageSize - 1) / recordPageSize)
	if pages == 0 {
		pages = 1
	}
	if pageNum > pages {
		pageNum = pages
	}
	err := q.Limit(recordPageSize).Offset((pageNum - 1) * recordPageSize).Find(dst).Error
	return page{Items: dst, Total: total, Page: pageNum, Pages: pages}, err
}

// home is the landing pivot after login. Dietitians get practice counters,
// patients get their own snapshot.
func (h *RecordHandler) home(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	flash := middleware.PopFlash(w, r)

	if p.IsDietitian() {
		var patients, consultations int64
		h.DB.Model(&models.User{}).Where("role = ?", models.RolePatient).Count(&patients)
		h.DB.Model(&models.Consultation{}).Count(&consultations)
		httpx.JSON(w, http.StatusOK, map[string]any{
			"role":          models.RoleDietitian,
			"patients":      patients,
			"consultations": consultations,
			"flash":         flash,
		})
		return
	}

	var profile models.PatientProfile
	complete := false
	if err := h.DB.Where("user_id = ?", p.ID).First(&profile).Error; err == nil {
		complete = profile.Complete()
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"role":             models.RolePatient,
		"profile_complete": complete,
		"flash":            flash,
	})
}

func (h *RecordHandler) myRecord(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	h.renderRecord(w, r, p.ID)
}

func (h *RecordHandler) patientRecord(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if !h.Gate.Can(r.Context(), gate.ActionView, policy.ResourceRecord, id) {
		policy.Deny(w, r)
		return
	}
	h.renderRecord(w, r, id)
}

// renderRecord assembles the full record: profile, consultation history and
// food diary, each pane paginated independently (page_h / page_f).
func (h *RecordHandler) renderRecord(w http.ResponseWriter, r *http.Request, patientID uuid.UUID) {
	var user models.User
	if err := h.DB.Preload("Profile").First(&user, "id = ? AND role = ?", patientID, models.RolePatient).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}

	var consultations []models.Consultation
	histQ := h.DB.Model(&models.Consultation{}).
		Where("patient_id = ?", patientID).
		Preload("PatientProfile").
		Order("date_consultation desc")
	history, err := paginate(histQ, pageParam(r, "page_h"), &consultations)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}
	// Derived BMI rides along with each visit.
	items := make([]map[string]any, 0, len(consultations))
	for i := range consultations {
		c := &consultations[i]
		status := c.BMIStatus()
		items = append(items, map[string]any{
			"consultation": c,
			"bmi":          c.BMI(),
			"bmi_status":   status.Label,
			"bmi_color":    status.Color,
		})
	}
	history.Items = items

	var diary []models.FoodDiary
	diaryQ := h.DB.Model(&models.FoodDiary{}).
		Where("patient_id = ? AND is_active = ?", patientID, true).
		Order("date desc")
	diaryPage, err := paginate(diaryQ, pageParam(r, "page_f"), &diary)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}

	var plans []models.MealPlan
	h.DB.Where("patient_id = ?", patientID).Order("day asc").Find(&plans)

	// Full weight/BMI history for the evolution chart, oldest first and
	// never paginated.
	var all []models.Consultation
	h.DB.Where("patient_id = ?", patientID).
		Preload("PatientProfile").
		Order("date_consultation asc").
		Find(&all)
	series := make([]map[string]any, 0, len(all))
	for i := range all {
		c := &all[i]
		series = append(series, map[string]any{
			"date":   c.DateConsultation,
			"weight": c.Weight,
			"bmi":    c.BMI(),
		})
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"patient":       user,
		"consultations": history,
		"diary":         diaryPage,
		"meal_plans":    plans,
		"chart":         series,
	})
}

// ListPatients is the dietitian's roster with optional name/email search.
// Registered separately so the router can put it behind the dietitian guard.
func (h *RecordHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	q := h.DB.Model(&models.User{}).Where("role = ?", models.RolePatient).Preload("Profile")
	if search := strings.TrimSpace(r.URL.Query().Get("q")); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("lower(first_name) LIKE ? OR lower(last_name) LIKE ? OR lower(email) LIKE ?", like, like, like)
	}
	var patients []models.User
	result, err := paginate(q.Order("last_name asc, first_name asc"), pageParam(r, "page"), &patients)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}
	var active int64
	h.DB.Model(&models.User{}).
		Where("role = ? AND is_active = ?", models.RolePatient, true).
		Count(&active)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":  result.Items,
		"total":  result.Total,
		"active": active,
		"page":   result.Page,
		"pages":  result.Pages,
	})
}
