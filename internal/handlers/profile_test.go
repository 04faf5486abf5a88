package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/nutriwellness/nutricare/internal/models"
)

func setupProfile(t *testing.T) (*http.ServeMux, *ProfileHandler) {
	t.Helper()
	db := setupDB(t)
	h := NewProfileHandler(db)
	mux := http.NewServeMux()
	h.Register(mux)
	return mux, h
}

func TestCompleteProfileSetsAge(t *testing.T) {
	mux, h := setupProfile(t)
	u := createUser(t, h.DB, models.RolePatient, "fill@example.com")
	// Start from the empty signup state.
	h.DB.Model(&models.PatientProfile{}).Where("user_id = ?", u.ID).Update("age", nil)

	form := url.Values{}
	form.Set("age", "42")
	form.Set("gender", models.GenderFemale)
	form.Set("activity_level", models.ActivityModerate)
	form.Set("height", "168")
	form.Set("weight", "64")
	r := asUser(formReq(http.MethodPost, "/complete-profile", form), u)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, body(t, w))
	}

	var profile models.PatientProfile
	h.DB.Where("user_id = ?", u.ID).First(&profile)
	if !profile.Complete() {
		t.Error("profile should be complete after the form")
	}
	if profile.BMI == nil {
		t.Fatal("saving height and weight should compute the BMI snapshot")
	}
	// 64 / 1.68^2 rounded to 2 decimals
	if got := *profile.BMI; got < 22.67 || got > 22.68 {
		t.Errorf("unexpected BMI %v", got)
	}
}

func TestCompleteProfileRequiresAge(t *testing.T) {
	mux, h := setupProfile(t)
	u := createUser(t, h.DB, models.RolePatient, "noage@example.com")

	form := url.Values{}
	form.Set("gender", models.GenderMale)
	r := asUser(formReq(http.MethodPost, "/complete-profile", form), u)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing age should 400, got %d", w.Code)
	}
	if !strings.Contains(body(t, w), "age") {
		t.Error("violation should name the age field")
	}
}

func TestCompleteProfileRejectsBadChoices(t *testing.T) {
	mux, h := setupProfile(t)
	u := createUser(t, h.DB, models.RolePatient, "choices@example.com")

	r := asUser(jsonReq(http.MethodPost, "/complete-profile", `{"age":30,"gender":"Other","activity_level":"extreme"}`), u)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad choices should 400, got %d", w.Code)
	}
	b := body(t, w)
	if !strings.Contains(b, "gender") || !strings.Contains(b, "activity_level") {
		t.Errorf("violations should name both fields: %s", b)
	}
}

func TestCompleteProfileForbiddenForDietitians(t *testing.T) {
	mux, h := setupProfile(t)
	d := createUser(t, h.DB, models.RoleDietitian, "diet@example.com")

	r := asUser(jsonReq(http.MethodPost, "/complete-profile", `{"age":30}`), d)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	if w.Code != http.StatusForbidden {
		t.Fatalf("dietitian has no profile to complete, got %d", w.Code)
	}
}

func TestUpdateProfileUpdatesUserAndProfileTogether(t *testing.T) {
	mux, h := setupProfile(t)
	u := createUser(t, h.DB, models.RolePatient, "upd@example.com")

	r := asUser(jsonReq(http.MethodPost, "/profile", `{"first_name":"Fatou","last_name":"Ndiaye","weight":70.5,"occupation":"Enseignante"}`), u)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, body(t, w))
	}

	var fresh models.User
	h.DB.Preload("Profile").First(&fresh, "id = ?", u.ID)
	if fresh.FirstName != "Fatou" || fresh.LastName != "Ndiaye" {
		t.Errorf("name not updated: %s %s", fresh.FirstName, fresh.LastName)
	}
	if fresh.Profile == nil || fresh.Profile.Weight == nil || *fresh.Profile.Weight != 70.5 {
		t.Error("profile weight not updated")
	}
	if fresh.Profile.Occupation != "Enseignante" {
		t.Error("occupation not updated")
	}
	// Fields absent from the payload keep their values.
	if fresh.Profile.Age == nil {
		t.Error("partial update must not clear the age")
	}
}

func TestShowProfile(t *testing.T) {
	mux, h := setupProfile(t)
	u := createUser(t, h.DB, models.RolePatient, "show@example.com")

	r := asUser(httptest.NewRequest(http.MethodGet, "/profile", nil), u)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	b := body(t, w)
	if !strings.Contains(b, "show@example.com") {
		t.Error("response should carry the account")
	}
	if strings.Contains(b, `"password"`) {
		t.Error("password hash must never serialize")
	}
}
