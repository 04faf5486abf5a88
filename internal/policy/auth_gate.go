package policy

import (
	"context"
	"net/http"

	"github.com/nutriwellness/nutricare/internal/auth"
	"github.com/nutriwellness/nutricare/internal/gate"
	"github.com/nutriwellness/nutricare/internal/httpx"
)

// AuthGate is the central authorization point of the application. It wraps a
// gate keyed by the authenticated principal and wires the denial response
// shape (silent redirect for browsers, 403 for API callers).
type AuthGate struct {
	gate *gate.Gate[auth.Principal]
}

// Options control deviations from the enforced rules. The zero value is the
// intended behavior.
type Options struct {
	// AllowLegacyConsultationMutation re-opens consultation edit/delete to
	// any authenticated member, as the historical application did. Off by
	// default.
	AllowLegacyConsultationMutation bool
}

// NewAuthGate builds a gate with all resource policies registered.
func NewAuthGate(opts Options) *AuthGate {
	g := gate.NewGate[auth.Principal]()

	consultations := NewConsultationPolicy()
	if opts.AllowLegacyConsultationMutation {
		consultations = NewLegacyConsultationPolicy()
	}
	g.Register(ResourceConsultation, consultations)
	g.Register(ResourceDiary, NewDiaryPolicy())
	g.Register(ResourceMealPlan, NewMealPlanPolicy())
	g.Register(ResourceRecord, NewRecordPolicy())
	g.Register(ResourcePost, NewPostPolicy())
	g.Register(ResourceComment, NewCommentPolicy())
	return &AuthGate{gate: g}
}

// Authorize checks whether the principal attached to ctx may perform action
// on the given resource. Returns nil when authorized.
func (ag *AuthGate) Authorize(ctx context.Context, action gate.Action, resourceType string, resource any) error {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return gate.ErrUnauthorized
	}
	return ag.gate.Authorize(ctx, p, action, resourceType, resource)
}

// Can is the boolean form of Authorize.
func (ag *AuthGate) Can(ctx context.Context, action gate.Action, resourceType string, resource any) bool {
	return ag.Authorize(ctx, action, resourceType, resource) == nil
}

// Deny writes the standard authorization-failure response: browser clients
// are bounced to their landing page without detail, API clients get a 403.
func Deny(w http.ResponseWriter, r *http.Request) {
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	http.Redirect(w, r, "/home", http.StatusSeeOther)
}

// Require returns middleware enforcing a role-level permission before the
// handler runs, for routes where the decision does not depend on a loaded
// resource.
func (ag *AuthGate) Require(resourceType string, action gate.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ag.Can(r.Context(), action, resourceType, nil) {
				Deny(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireDietitian restricts a route to dietitian accounts.
func RequireDietitian(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.PrincipalFromContext(r.Context())
		if !ok || !p.IsDietitian() {
			Deny(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
