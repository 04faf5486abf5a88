package handlers

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nutriwellness/nutricare/internal/auth"
	"github.com/nutriwellness/nutricare/internal/models"
	"github.com/nutriwellness/nutricare/internal/policy"
)

const testPassword = "motdepasse123"

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	all := []interface{}{
		&models.User{}, &models.Session{}, &models.EmailVerification{},
		&models.PatientProfile{}, &models.Consultation{}, &models.MealPlan{},
		&models.FoodDiary{}, &models.Post{}, &models.Comment{},
	}
	for _, m := range all {
		if err := db.AutoMigrate(m); err != nil {
			t.Fatalf("automigrate %T: %v", m, err)
		}
	}
	return db
}

func testGate() *policy.AuthGate { return policy.NewAuthGate(policy.Options{}) }

func createUser(t *testing.T, db *gorm.DB, role, email string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	u := models.User{
		Email:         email,
		Password:      string(hash),
		FirstName:     "Test",
		LastName:      "User",
		Role:          role,
		EmailVerified: true,
		IsActive:      true,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	if role == models.RolePatient {
		age := 30
		height := 175.0
		p := models.PatientProfile{UserID: u.ID, Age: &age, Height: &height}
		if err := db.Create(&p).Error; err != nil {
			t.Fatalf("create profile: %v", err)
		}
		u.Profile = &p
	}
	return &u
}

func principalOf(u *models.User) auth.Principal {
	return auth.Principal{ID: u.ID, Role: u.Role}
}

// asUser attaches u's principal to the request and asks for JSON so denials
// come back as status codes instead of redirects.
func asUser(r *http.Request, u *models.User) *http.Request {
	r.Header.Set("Accept", "application/json")
	if u == nil {
		return r
	}
	return r.WithContext(auth.WithPrincipal(r.Context(), principalOf(u)))
}

func jsonReq(method, path, body string) *http.Request {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	return r
}

func formReq(method, path string, form url.Values) *http.Request {
	r := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func body(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	b, err := io.ReadAll(w.Result().Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}
