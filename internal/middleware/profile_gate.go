package middleware

import (
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/nutriwellness/nutricare/internal/auth"
	"github.com/nutriwellness/nutricare/internal/httpx"
	"github.com/nutriwellness/nutricare/internal/models"
)

// Paths a patient may reach before their profile is filled in. Everything
// else bounces to the completion form.
var profileGateAllowed = []string{
	"/complete-profile",
	"/logout",
	"/home",
	"/static/",
}

func profileGateExempt(path string) bool {
	for _, p := range profileGateAllowed {
		if strings.HasSuffix(p, "/") {
			if strings.HasPrefix(path, p) {
				return true
			}
			continue
		}
		if path == p {
			return true
		}
	}
	return false
}

// ProfileGate blocks patients whose profile is still incomplete (no age on
// file) from everything but the completion form and the handful of pages
// needed to get there. Dietitians and anonymous requests pass through; the
// latter are handled by the auth middleware.
func ProfileGate(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFromContext(r.Context())
			if !ok || p.IsDietitian() || profileGateExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			var profile models.PatientProfile
			err := db.Where("user_id = ?", p.ID).First(&profile).Error
			if err == nil && profile.Complete() {
				next.ServeHTTP(w, r)
				return
			}
			if httpx.WantsJSON(r) {
				httpx.JSONError(w, http.StatusForbidden, "profile_incomplete", nil)
				return
			}
			http.Redirect(w, r, "/complete-profile", http.StatusSeeOther)
		})
	}
}
