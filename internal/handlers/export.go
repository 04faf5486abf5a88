package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/nutriwellness/nutricare/internal/httpx"
	"github.com/nutriwellness/nutricare/internal/models"
)

// ExportHandler produces the patient roster as an .xlsx download. Restricted
// to dietitians at the router.
type ExportHandler struct {
	DB *gorm.DB
}

func NewExportHandler(db *gorm.DB) *ExportHandler { return &ExportHandler{DB: db} }

func (h *ExportHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /export/patients.xlsx", h.exportPatients)
}

var exportHeaders = []string{
	"First name", "Last name", "Email", "Username", "Role",
	"Âge", "Genre", "Profession", "Niveau d'activité",
	"Diagnostic", "Taille (cm)", "Poids (kg)", "IMC (BMI)",
}

func naInt(v *int) any {
	if v == nil {
		return "N/A"
	}
	return *v
}

func naFloat(v *float64) any {
	if v == nil {
		return "N/A"
	}
	return *v
}

func naString(s string) any {
	if s == "" {
		return "N/A"
	}
	return s
}

func (h *ExportHandler) exportPatients(w http.ResponseWriter, r *http.Request) {
	q := h.DB.Model(&models.User{}).Where("role = ?", models.RolePatient).Preload("Profile")
	if search := strings.TrimSpace(r.URL.Query().Get("q")); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("lower(first_name) LIKE ? OR lower(last_name) LIKE ? OR lower(email) LIKE ?", like, like, like)
	}
	var patients []models.User
	if err := q.Order("last_name asc").Find(&patients).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Liste des Patients"
	f.SetSheetName(f.GetSheetName(0), sheet)
	if err := f.SetSheetRow(sheet, "A1", &exportHeaders); err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "export_error", nil)
		return
	}

	for i, p := range patients {
		profile := p.Profile
		row := []any{
			p.FirstName, p.LastName, p.Email,
			p.Email, // the login handle doubles as the username
			p.Role,
		}
		if profile == nil {
			row = append(row, "N/A", "N/A", "N/A", "N/A", "N/A", "N/A", "N/A", "N/A")
		} else {
			row = append(row,
				naInt(profile.Age),
				naString(profile.Gender),
				naString(profile.Occupation),
				naString(profile.ActivityLevel),
				naString(profile.Diagnosis),
				naFloat(profile.Height),
				naFloat(profile.Weight),
				naFloat(profile.BMI),
			)
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			httpx.JSONError(w, http.StatusInternalServerError, "export_error", nil)
			return
		}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename=export_patients_complet.xlsx`)
	if err := f.Write(w); err != nil {
		// headers are already out; nothing sensible left to send
		_ = err
	}
}
