package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gorm.io/gorm"

	"github.com/nutriwellness/nutricare/internal/models"
)

func setupRecords(t *testing.T) (*http.ServeMux, *RecordHandler, *gorm.DB) {
	t.Helper()
	db := setupDB(t)
	h := NewRecordHandler(db, testGate())
	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /patients", h.ListPatients)
	return mux, h, db
}

type recordResponse struct {
	Consultations struct {
		Items []json.RawMessage `json:"items"`
		Total int64             `json:"total"`
		Page  int               `json:"page"`
		Pages int               `json:"pages"`
	} `json:"consultations"`
	Diary struct {
		Items []json.RawMessage `json:"items"`
		Total int64             `json:"total"`
	} `json:"diary"`
	MealPlans []json.RawMessage `json:"meal_plans"`
	Chart     []json.RawMessage `json:"chart"`
}

func decodeRecord(t *testing.T, w *httptest.ResponseRecorder) recordResponse {
	t.Helper()
	var resp recordResponse
	if err := json.Unmarshal([]byte(body(t, w)), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestRecordPaginationBoundary(t *testing.T) {
	mux, _, db := setupRecords(t)
	diet := createUser(t, db, models.RoleDietitian, "doc@example.com")
	patient := createUser(t, db, models.RolePatient, "page@example.com")

	for i := 0; i < 11; i++ {
		c := models.Consultation{PatientID: patient.ID, DietitianID: diet.ID}
		if err := db.Create(&c).Error; err != nil {
			t.Fatalf("create consultation %d: %v", i, err)
		}
	}

	r := asUser(httptest.NewRequest(http.MethodGet, "/patients/"+patient.ID.String()+"/record", nil), diet)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, body(t, w))
	}
	resp := decodeRecord(t, w)
	if len(resp.Consultations.Items) != 10 {
		t.Errorf("page 1 should hold 10 visits, got %d", len(resp.Consultations.Items))
	}
	if resp.Consultations.Total != 11 || resp.Consultations.Pages != 2 {
		t.Errorf("unexpected totals: %+v", resp.Consultations)
	}

	r = asUser(httptest.NewRequest(http.MethodGet, "/patients/"+patient.ID.String()+"/record?page_h=2", nil), diet)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	resp = decodeRecord(t, w)
	if len(resp.Consultations.Items) != 1 {
		t.Errorf("page 2 should hold the remaining visit, got %d", len(resp.Consultations.Items))
	}
}

func TestMyRecordShowsOwnData(t *testing.T) {
	mux, _, db := setupRecords(t)
	diet := createUser(t, db, models.RoleDietitian, "doc2@example.com")
	patient := createUser(t, db, models.RolePatient, "mine@example.com")
	stranger := createUser(t, db, models.RolePatient, "stranger@example.com")

	db.Create(&models.Consultation{PatientID: patient.ID, DietitianID: diet.ID})
	db.Create(&models.Consultation{PatientID: stranger.ID, DietitianID: diet.ID})
	db.Create(&models.FoodDiary{PatientID: patient.ID, MealTime: models.MealLunch, Description: "Thiéboudienne"})
	db.Create(&models.MealPlan{PatientID: patient.ID, Day: 1, Lunch: "Salade"})

	r := asUser(httptest.NewRequest(http.MethodGet, "/my-record", nil), patient)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decodeRecord(t, w)
	if resp.Consultations.Total != 1 {
		t.Errorf("only own visits should appear, got %d", resp.Consultations.Total)
	}
	if resp.Diary.Total != 1 {
		t.Errorf("only own diary entries should appear, got %d", resp.Diary.Total)
	}
	if len(resp.MealPlans) != 1 {
		t.Errorf("own meal plan should appear, got %d", len(resp.MealPlans))
	}
	if len(resp.Chart) != 1 {
		t.Errorf("chart should carry one point per visit, got %d", len(resp.Chart))
	}
}

func TestPatientRecordDeniedForOtherPatients(t *testing.T) {
	mux, _, db := setupRecords(t)
	owner := createUser(t, db, models.RolePatient, "own@example.com")
	other := createUser(t, db, models.RolePatient, "nosy@example.com")

	r := asUser(httptest.NewRequest(http.MethodGet, "/patients/"+owner.ID.String()+"/record", nil), other)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign record should 403, got %d", w.Code)
	}
}

func TestPatientRecordSelfAccess(t *testing.T) {
	mux, _, db := setupRecords(t)
	owner := createUser(t, db, models.RolePatient, "self@example.com")

	r := asUser(httptest.NewRequest(http.MethodGet, "/patients/"+owner.ID.String()+"/record", nil), owner)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("own record via the patient route should 200, got %d", w.Code)
	}
}

func TestListPatientsSearch(t *testing.T) {
	mux, _, db := setupRecords(t)
	diet := createUser(t, db, models.RoleDietitian, "doc3@example.com")
	a := createUser(t, db, models.RolePatient, "amina@example.com")
	db.Model(a).Updates(map[string]any{"first_name": "Amina", "last_name": "Sow"})
	b := createUser(t, db, models.RolePatient, "bruno@example.com")
	db.Model(b).Updates(map[string]any{"first_name": "Bruno", "last_name": "Faye"})

	r := asUser(httptest.NewRequest(http.MethodGet, "/patients?q=amina", nil), diet)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Items  []models.User `json:"items"`
		Total  int64         `json:"total"`
		Active int64         `json:"active"`
	}
	if err := json.Unmarshal([]byte(body(t, w)), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || len(resp.Items) != 1 || resp.Items[0].Email != "amina@example.com" {
		t.Errorf("search should match Amina only: %+v", resp)
	}
	if resp.Active != 2 {
		t.Errorf("active count ignores the search filter, got %d", resp.Active)
	}
}

func TestHomePivot(t *testing.T) {
	mux, _, db := setupRecords(t)
	diet := createUser(t, db, models.RoleDietitian, "doc4@example.com")
	patient := createUser(t, db, models.RolePatient, "home@example.com")

	r := asUser(httptest.NewRequest(http.MethodGet, "/home", nil), diet)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	var dietResp map[string]any
	if err := json.Unmarshal([]byte(body(t, w)), &dietResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dietResp["role"] != models.RoleDietitian {
		t.Errorf("dietitian home should carry the role, got %v", dietResp["role"])
	}
	if _, ok := dietResp["patients"]; !ok {
		t.Error("dietitian home should carry practice counters")
	}

	r = asUser(httptest.NewRequest(http.MethodGet, "/home", nil), patient)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	var patResp map[string]any
	if err := json.Unmarshal([]byte(body(t, w)), &patResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if patResp["profile_complete"] != true {
		t.Errorf("complete patient should see profile_complete=true, got %v", patResp["profile_complete"])
	}
}
