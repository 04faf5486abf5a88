// Package auth implements cookie sessions backed by database rows. The cookie
// only carries a signed session token; the row is the source of truth, which
// is what allows a login on one device to revoke the session of another.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nutriwellness/nutricare/internal/httpx"
	"github.com/nutriwellness/nutricare/internal/models"
)

const sessionCookieName = "session"

// DefaultTTL matches the two-week browser session the frontend expects.
const DefaultTTL = 14 * 24 * time.Hour

type ctxKey string

const principalCtxKey = ctxKey("principal")

// Principal is the authenticated subject attached to a request: the user id
// and the role every policy decision keys on.
type Principal struct {
	ID   uuid.UUID
	Role string
}

// IsDietitian reports whether the principal carries the dietitian role.
func (p Principal) IsDietitian() bool { return p.Role == models.RoleDietitian }

// IsPatient reports whether the principal carries the patient role.
func (p Principal) IsPatient() bool { return p.Role == models.RolePatient }

// Store manages session rows and their cookies.
type Store struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
}

// NewStore creates a session store. ttl bounds how long a session row stays
// valid; expired rows are ignored and purged as they are encountered.
func NewStore(db *gorm.DB, secret string, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{db: db, secret: []byte(secret), ttl: ttl}
}

// Login establishes a fresh session for user and invalidates every other one
// bound to the same user id, leaving exactly the session just created. The
// displaced device gets no notification; its next request simply resolves to
// no session. Two concurrent logins race benignly: last write wins.
func (s *Store) Login(w http.ResponseWriter, user *models.User) (*models.Session, error) {
	sess := models.Session{UserID: user.ID, ExpiresAt: time.Now().Add(s.ttl)}
	if err := s.db.Create(&sess).Error; err != nil {
		return nil, err
	}
	if err := s.db.Where("user_id = ? AND id <> ?", user.ID, sess.ID).
		Delete(&models.Session{}).Error; err != nil {
		// The new session is established either way; a leftover row means
		// the displaced device stays signed in until it expires.
		log.Printf("session displacement failed for user %s: %v", user.ID, err)
	}
	s.setCookie(w, sess.ID)
	return &sess, nil
}

// Logout deletes the caller's session row and clears the cookie.
func (s *Store) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := s.parseCookie(r); ok {
		s.db.Where("id = ?", token).Delete(&models.Session{})
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "", Path: "/", Expires: time.Unix(0, 0), HttpOnly: true, SameSite: http.SameSiteLaxMode})
}

// Resolve maps a request to its authenticated principal. A missing, corrupt
// or expired session yields (zero, false) rather than an error, so a bad
// cookie degrades to an anonymous request.
func (s *Store) Resolve(r *http.Request) (Principal, bool) {
	token, ok := s.parseCookie(r)
	if !ok {
		return Principal{}, false
	}
	var sess models.Session
	if err := s.db.First(&sess, "id = ?", token).Error; err != nil {
		return Principal{}, false
	}
	if time.Now().After(sess.ExpiresAt) {
		s.db.Delete(&sess)
		return Principal{}, false
	}
	var user models.User
	if err := s.db.First(&user, "id = ?", sess.UserID).Error; err != nil {
		// Session refers to a deleted user: drop it.
		s.db.Delete(&sess)
		return Principal{}, false
	}
	if !user.IsActive {
		return Principal{}, false
	}
	return Principal{ID: user.ID, Role: user.Role}, true
}

func (s *Store) setCookie(w http.ResponseWriter, token uuid.UUID) {
	value := token.String() + "." + s.sign(token.String())
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(s.ttl),
	})
}

// parseCookie validates the cookie signature and returns the session token.
func (s *Store) parseCookie(r *http.Request) (uuid.UUID, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return uuid.Nil, false
	}
	parts := strings.Split(c.Value, ".")
	if len(parts) != 2 {
		return uuid.Nil, false
	}
	tokenStr, sig := parts[0], parts[1]
	if !hmac.Equal([]byte(sig), []byte(s.sign(tokenStr))) {
		return uuid.Nil, false
	}
	token, err := uuid.Parse(tokenStr)
	if err != nil {
		return uuid.Nil, false
	}
	return token, true
}

func (s *Store) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// WithPrincipal stores the principal in context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

// PrincipalFromContext extracts the authenticated principal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalCtxKey).(Principal)
	return p, ok
}

// Middleware attaches the principal to the request context when a valid
// session is presented.
func (s *Store) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := s.Resolve(r); ok {
			r = r.WithContext(WithPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth redirects to /login if not authenticated (HTML) or returns
// 401 JSON for API clients.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); !ok {
			if httpx.WantsJSON(r) {
				httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
