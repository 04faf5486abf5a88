package handlers

import (
	"net/http"

	"gorm.io/gorm"

	"github.com/nutriwellness/nutricare/internal/httpx"
	"github.com/nutriwellness/nutricare/internal/models"
)

// StatsHandler serves the practice-wide aggregates behind the dietitian
// statistics dashboard. Route-level middleware restricts it to dietitians.
type StatsHandler struct {
	DB *gorm.DB
}

func NewStatsHandler(db *gorm.DB) *StatsHandler { return &StatsHandler{DB: db} }

func (h *StatsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /stats", h.stats)
}

type labelCount struct {
	Label string `gorm:"column:label" json:"label"`
	Total int64  `gorm:"column:total" json:"total"`
}

func (h *StatsHandler) stats(w http.ResponseWriter, r *http.Request) {
	var genders []labelCount
	h.DB.Model(&models.PatientProfile{}).
		Select("gender as label, count(*) as total").
		Where("gender <> ''").
		Group("gender").
		Find(&genders)

	var withAllergies, withoutAllergies int64
	h.DB.Model(&models.PatientProfile{}).Where("allergies = ?", true).Count(&withAllergies)
	h.DB.Model(&models.PatientProfile{}).Where("allergies = ?", false).Count(&withoutAllergies)

	var activity []labelCount
	h.DB.Model(&models.PatientProfile{}).
		Select("activity_level as label, count(*) as total").
		Where("activity_level <> ''").
		Group("activity_level").
		Find(&activity)

	var occupations []labelCount
	h.DB.Model(&models.PatientProfile{}).
		Select("occupation as label, count(*) as total").
		Where("occupation <> ''").
		Group("occupation").
		Order("total desc").
		Limit(5).
		Find(&occupations)

	var averages struct {
		AvgAge    *float64 `gorm:"column:avg_age" json:"avg_age"`
		AvgWeight *float64 `gorm:"column:avg_weight" json:"avg_weight"`
		AvgHeight *float64 `gorm:"column:avg_height" json:"avg_height"`
		AvgBMI    *float64 `gorm:"column:avg_bmi" json:"avg_bmi"`
	}
	h.DB.Model(&models.PatientProfile{}).
		Select("avg(age) as avg_age, avg(weight) as avg_weight, avg(height) as avg_height, avg(bmi) as avg_bmi").
		Scan(&averages)

	httpx.JSON(w, http.StatusOK, map[string]any{
		"genders": genders,
		"allergies": map[string]int64{
			"with":    withAllergies,
			"without": withoutAllergies,
		},
		"activity_levels": activity,
		"top_occupations": occupations,
		"averages":        averages,
	})
}
