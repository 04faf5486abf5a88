package handlers

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/nutriwellness/nutricare/internal/auth"
	"github.com/nutriwellness/nutricare/internal/httpx"
	"github.com/nutriwellness/nutricare/internal/middleware"
	"github.com/nutriwellness/nutricare/internal/models"
	"github.com/nutriwellness/nutricare/internal/notify"
	"github.com/nutriwellness/nutricare/internal/validation"
)

const (
	verificationTTL         = 10 * time.Minute
	verificationMaxAttempts = 3
)

type AuthHandler struct {
	DB     *gorm.DB
	Store  *auth.Store
	Sender notify.Sender
}

func NewAuthHandler(db *gorm.DB, store *auth.Store, sender notify.Sender) *AuthHandler {
	return &AuthHandler{DB: db, Store: store, Sender: sender}
}

func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /signup", h.signup)
	mux.HandleFunc("POST /confirm-email", h.confirmEmail)
	mux.HandleFunc("POST /login", h.login)
	mux.HandleFunc("POST /logout", h.logout)
}

type signupInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// decodeInput fills dst from a JSON body or, failing that, from form fields
// via the provided fallback.
func decodeInput(r *http.Request, dst any, fromForm func()) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return json.NewDecoder(r.Body).Decode(dst)
	}
	if err := r.ParseForm(); err != nil {
		return err
	}
	fromForm()
	return nil
}

func (h *AuthHandler) signup(w http.ResponseWriter, r *http.Request) {
	var in signupInput
	err := decodeInput(r, &in, func() {
		in.Email = r.FormValue("email")
		in.Password = r.FormValue("password")
		in.FirstName = r.FormValue("first_name")
		in.LastName = r.FormValue("last_name")
	})
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_input", nil)
		return
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	v := validation.Violations{}
	validation.Required("email", in.Email, v)
	validation.Email("email", in.Email, v)
	validation.Required("password", in.Password, v)
	validation.MinLen("password", in.Password, 8, v)
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}

	var count int64
	h.DB.Model(&models.User{}).Where("email = ?", in.Email).Count(&count)
	if count > 0 {
		httpx.JSONError(w, http.StatusConflict, "email_taken", nil)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "hash_error", nil)
		return
	}

	user := models.User{
		Email:     in.Email,
		Password:  string(hash),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Role:      models.RolePatient,
		IsActive:  true,
	}
	// The empty profile is created alongside the account; the completion
	// gate walks the patient through filling it on first login.
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return tx.Create(&models.PatientProfile{UserID: user.ID}).Error
	})
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}

	if err := h.issueVerification(r, &user); err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "mail_error", nil)
		return
	}

	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusCreated, map[string]any{"id": user.ID, "email": user.Email})
		return
	}
	middleware.Flash(w, "Un code de confirmation vous a été envoyé par email")
	http.Redirect(w, r, "/confirm-email", http.StatusSeeOther)
}

// issueVerification replaces any pending code for the user and mails a new one.
func (h *AuthHandler) issueVerification(r *http.Request, user *models.User) error {
	code, err := verificationCode()
	if err != nil {
		return err
	}
	if err := h.DB.Where("user_id = ?", user.ID).Delete(&models.EmailVerification{}).Error; err != nil {
		return err
	}
	rec := models.EmailVerification{
		UserID:    user.ID,
		Code:      code,
		ExpiresAt: time.Now().Add(verificationTTL),
	}
	if err := h.DB.Create(&rec).Error; err != nil {
		return err
	}
	body := fmt.Sprintf("Votre code de confirmation est %s. Il expire dans 10 minutes.", code)
	return h.Sender.Send(r.Context(), user.Email, "Confirmez votre adresse email", body)
}

func verificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

type confirmInput struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (h *AuthHandler) confirmEmail(w http.ResponseWriter, r *http.Request) {
	var in confirmInput
	err := decodeInput(r, &in, func() {
		in.Email = r.FormValue("email")
		in.Code = r.FormValue("code")
	})
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_input", nil)
		return
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Code = strings.TrimSpace(in.Code)

	var user models.User
	if err := h.DB.Where("email = ?", in.Email).First(&user).Error; err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_code", nil)
		return
	}
	var rec models.EmailVerification
	if err := h.DB.Where("user_id = ?", user.ID).Order("created_at desc").First(&rec).Error; err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_code", nil)
		return
	}
	if time.Now().After(rec.ExpiresAt) || rec.Attempts >= verificationMaxAttempts {
		h.DB.Delete(&rec)
		httpx.JSONError(w, http.StatusBadRequest, "code_expired", nil)
		return
	}
	if rec.Code != in.Code {
		h.DB.Model(&rec).Update("attempts", rec.Attempts+1)
		httpx.JSONError(w, http.StatusBadRequest, "invalid_code", nil)
		return
	}

	h.DB.Model(&user).Update("email_verified", true)
	h.DB.Delete(&rec)

	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"verified": true})
		return
	}
	middleware.Flash(w, "Adresse email confirmée, vous pouvez vous connecter")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	err := decodeInput(r, &in, func() {
		in.Email = r.FormValue("email")
		in.Password = r.FormValue("password")
	})
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_input", nil)
		return
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	var user models.User
	if err := h.DB.Where("email = ?", in.Email).First(&user).Error; err != nil {
		httpx.JSONError(w, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)) != nil {
		httpx.JSONError(w, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}
	if !user.IsActive {
		httpx.JSONError(w, http.StatusForbidden, "account_disabled", nil)
		return
	}
	if !user.EmailVerified {
		httpx.JSONError(w, http.StatusForbidden, "email_not_verified", nil)
		return
	}

	// Login displaces every other session of this account.
	if _, err := h.Store.Login(w, &user); err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "session_error", nil)
		return
	}

	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"id": user.ID, "role": user.Role})
		return
	}
	http.Redirect(w, r, "/home", http.StatusSeeOther)
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	h.Store.Logout(w, r)
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
