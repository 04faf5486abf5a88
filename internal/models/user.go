package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User roles form a closed set; every authorization decision keys on one of
// these two values.
const (
	RolePatient   = "patient"
	RoleDietitian = "dietitian"
)

// User is an authenticated principal. Email is the login handle (there is no
// username), ids are random so record links cannot be guessed.
type User struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email         string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password      string    `gorm:"size:255;not null" json:"-"` // bcrypt hash
	FirstName     string    `gorm:"size:150" json:"first_name"`
	LastName      string    `gorm:"size:150" json:"last_name"`
	Role          string    `gorm:"size:20;not null;default:patient" json:"role"`
	EmailVerified bool      `gorm:"default:false" json:"email_verified"`
	IsActive      bool      `gorm:"default:true" json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Profile *PatientProfile `gorm:"foreignKey:UserID" json:"profile,omitempty"`
}

func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Session is one authenticated browser/device. The single-session rule is
// enforced at login: every other row for the same user is deleted, so the
// user_id index is what keeps invalidation cheap.
type Session struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Session) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// EmailVerification holds a pending signup confirmation code. Codes expire
// and allow a fixed number of attempts before a new one must be requested.
type EmailVerification struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Code      string    `gorm:"size:12;not null" json:"-"`
	Attempts  int       `gorm:"default:0" json:"attempts"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (e *EmailVerification) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
