package policy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/nutriwellness/nutricare/internal/auth"
	"github.com/nutriwellness/nutricare/internal/gate"
	"github.com/nutriwellness/nutricare/internal/models"
)

func dietitian() auth.Principal {
	return auth.Principal{ID: uuid.New(), Role: models.RoleDietitian}
}

func patient() auth.Principal {
	return auth.Principal{ID: uuid.New(), Role: models.RolePatient}
}

func TestConsultationPolicyMutation(t *testing.T) {
	p := NewConsultationPolicy()
	ctx := context.Background()

	c := &models.Consultation{PatientID: uuid.New()}
	if p.Can(ctx, patient(), gate.ActionUpdate, c) {
		t.Error("patient should not update consultations")
	}
	if p.Can(ctx, patient(), gate.ActionDelete, c) {
		t.Error("patient should not delete consultations")
	}
	if !p.Can(ctx, dietitian(), gate.ActionUpdate, c) {
		t.Error("dietitian should update consultations")
	}
	if !p.Can(ctx, dietitian(), gate.ActionCreate, nil) {
		t.Error("dietitian should create consultations")
	}
}

func TestConsultationPolicyLegacyMutation(t *testing.T) {
	p := NewLegacyConsultationPolicy()
	c := &models.Consultation{PatientID: uuid.New()}

	if !p.Can(context.Background(), patient(), gate.ActionDelete, c) {
		t.Error("legacy mode should allow any authenticated member to delete")
	}
	if p.Can(context.Background(), patient(), gate.ActionCreate, nil) {
		t.Error("legacy mode still restricts creation to dietitians")
	}
}

func TestConsultationPolicyView(t *testing.T) {
	p := NewConsultationPolicy()
	owner := patient()
	c := &models.Consultation{PatientID: owner.ID}

	if !p.Can(context.Background(), owner, gate.ActionView, c) {
		t.Error("patient should view their own consultation")
	}
	if p.Can(context.Background(), patient(), gate.ActionView, c) {
		t.Error("another patient should not view it")
	}
	if !p.Can(context.Background(), dietitian(), gate.ActionView, c) {
		t.Error("dietitian should view any consultation")
	}
}

func TestDiaryPolicyOwnership(t *testing.T) {
	p := NewDiaryPolicy()
	owner := patient()
	entry := &models.FoodDiary{PatientID: owner.ID}

	if !p.Can(context.Background(), owner, gate.ActionUpdate, entry) {
		t.Error("owner should edit their diary entry")
	}
	if p.Can(context.Background(), patient(), gate.ActionUpdate, entry) {
		t.Error("a different patient should not")
	}
	if p.Can(context.Background(), dietitian(), gate.ActionView, entry) {
		t.Error("the diary is private even from dietitians")
	}
	if !p.Can(context.Background(), owner, gate.ActionCreate, nil) {
		t.Error("patients should create entries")
	}
}

func TestMealPlanPolicy(t *testing.T) {
	p := NewMealPlanPolicy()
	if p.Can(context.Background(), patient(), gate.ActionUpdate, nil) {
		t.Error("patients should not edit meal plans")
	}
	if !p.Can(context.Background(), dietitian(), gate.ActionUpdate, nil) {
		t.Error("dietitians should edit meal plans")
	}
}

func TestRecordPolicy(t *testing.T) {
	p := NewRecordPolicy()
	owner := patient()

	if !p.Can(context.Background(), owner, gate.ActionView, owner.ID) {
		t.Error("patient should view their own record")
	}
	if p.Can(context.Background(), patient(), gate.ActionView, owner.ID) {
		t.Error("another patient should not view it")
	}
	if !p.Can(context.Background(), dietitian(), gate.ActionView, owner.ID) {
		t.Error("dietitian should view any record")
	}
}

func TestPostPolicy(t *testing.T) {
	p := NewPostPolicy()
	author := patient()
	post := &models.Post{AuthorID: author.ID}

	if p.Can(context.Background(), author, gate.ActionCreate, nil) {
		t.Error("patients should not create posts")
	}
	if !p.Can(context.Background(), dietitian(), ActionPin, post) {
		t.Error("dietitians should pin posts")
	}
	if p.Can(context.Background(), patient(), ActionPin, post) {
		t.Error("patients should not pin posts")
	}
	if !p.Can(context.Background(), author, gate.ActionDelete, post) {
		t.Error("the author should delete their own post")
	}
	if p.Can(context.Background(), patient(), gate.ActionDelete, post) {
		t.Error("a stranger should not delete it")
	}
	if !p.Can(context.Background(), patient(), gate.ActionView, post) {
		t.Error("any member should read posts")
	}
}

func TestCommentPolicy(t *testing.T) {
	p := NewCommentPolicy()
	author := patient()
	comment := &models.Comment{UserID: author.ID}

	if !p.Can(context.Background(), patient(), gate.ActionCreate, nil) {
		t.Error("any member should comment")
	}
	if !p.Can(context.Background(), author, gate.ActionDelete, comment) {
		t.Error("author should delete their comment")
	}
	if !p.Can(context.Background(), dietitian(), gate.ActionDelete, comment) {
		t.Error("dietitians moderate comments")
	}
	if p.Can(context.Background(), patient(), gate.ActionDelete, comment) {
		t.Error("strangers should not delete comments")
	}
}

func TestAuthGateRequiresPrincipal(t *testing.T) {
	ag := NewAuthGate(Options{})
	err := ag.Authorize(context.Background(), gate.ActionCreate, ResourceConsultation, nil)
	if err != gate.ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized without a principal, got %v", err)
	}

	ctx := auth.WithPrincipal(context.Background(), dietitian())
	if err := ag.Authorize(ctx, gate.ActionCreate, ResourceConsultation, nil); err != nil {
		t.Fatalf("dietitian create consultation: %v", err)
	}
}

func TestDenyRedirectsBrowsers(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/patients", nil)
	w := httptest.NewRecorder()
	Deny(w, r)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/home" {
		t.Fatalf("expected redirect to /home, got %q", loc)
	}
}

func TestDenyReturns403ForJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/patients", nil)
	r.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()
	Deny(w, r)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestRequireMiddleware(t *testing.T) {
	ag := NewAuthGate(Options{})
	handler := ag.Require(ResourceMealPlan, gate.ActionUpdate)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	r := httptest.NewRequest(http.MethodPost, "/patients/x/meal-plan", nil)
	r = r.WithContext(auth.WithPrincipal(r.Context(), patient()))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("patient should be redirected, got %d", w.Code)
	}

	r = httptest.NewRequest(http.MethodPost, "/patients/x/meal-plan", nil)
	r = r.WithContext(auth.WithPrincipal(r.Context(), dietitian()))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusNoContent {
		t.Fatalf("dietitian should pass through, got %d", w.Code)
	}
}
