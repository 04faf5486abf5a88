package server

import (
	"log"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/nutriwellness/nutricare/internal/auth"
	"github.com/nutriwellness/nutricare/internal/config"
	"github.com/nutriwellness/nutricare/internal/handlers"
	"github.com/nutriwellness/nutricare/internal/httpx"
	"github.com/nutriwellness/nutricare/internal/middleware"
	"github.com/nutriwellness/nutricare/internal/notify"
	"github.com/nutriwellness/nutricare/internal/policy"
)

// New constructs the root http.Handler with all routes and middlewares applied.
func New(db *gorm.DB, cfg config.Config, sender notify.Sender) http.Handler {
	store := auth.NewStore(db, cfg.SessionSecret, auth.DefaultTTL)
	authGate := policy.NewAuthGate(policy.Options{
		AllowLegacyConsultationMutation: cfg.AllowLegacyConsultationMutation,
	})

	public := http.NewServeMux()

	// --- Health endpoints ---
	public.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	public.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		if err := db.Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Login landing for redirected browsers; returns any pending flash.
	public.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]any{"login": true, "flash": middleware.PopFlash(w, r)})
	})

	// Signup, login and code confirmation are open but rate limited per IP.
	authHandler := handlers.NewAuthHandler(db, store, sender)
	loginLimit := middleware.PerMinute(5)
	signupLimit := middleware.PerMinute(3)
	authMux := http.NewServeMux()
	authHandler.Register(authMux)
	public.Handle("POST /login", loginLimit.Wrap(authMux))
	public.Handle("POST /signup", signupLimit.Wrap(authMux))
	public.Handle("POST /confirm-email", signupLimit.Wrap(authMux))
	public.Handle("POST /logout", authMux)

	public.Handle("POST /contact", handlerMux(handlers.NewContactHandler(sender)))

	// Everything below requires a session, and patients additionally a
	// completed profile.
	app := http.NewServeMux()
	recordHandler := handlers.NewRecordHandler(db, authGate)
	for _, h := range []interface {
		Register(mux *http.ServeMux)
	}{
		handlers.NewProfileHandler(db),
		recordHandler,
		handlers.NewConsultationHandler(db, authGate),
		handlers.NewDiaryHandler(db, authGate),
		handlers.NewMealPlanHandler(db, authGate),
		handlers.NewCommunityHandler(db, authGate),
	} {
		h.Register(app)
	}

	// Dietitian-only surfaces.
	app.Handle("GET /patients", policy.RequireDietitian(http.HandlerFunc(recordHandler.ListPatients)))
	app.Handle("GET /stats", policy.RequireDietitian(handlerMux(handlers.NewStatsHandler(db))))
	app.Handle("GET /export/patients.xlsx", policy.RequireDietitian(handlerMux(handlers.NewExportHandler(db))))

	protected := store.Middleware(auth.RequireAuth(middleware.ProfileGate(db)(app)))
	public.Handle("/", protected)

	return withRecover(withLogging(public))
}

// handlerMux wraps a single handler's routes in their own mux so route-level
// middleware can be applied to the whole group.
func handlerMux(h interface{ Register(mux *http.ServeMux) }) http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("panic serving %s %s: %v", r.Method, r.URL.Path, rec)
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
