package db

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	// The following blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nutriwellness/nutricare/internal/models"
)

// Models in dependency order; used for AutoMigrate and for test setups.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{}, &models.Session{}, &models.EmailVerification{},
		&models.PatientProfile{}, &models.Consultation{}, &models.MealPlan{},
		&models.FoodDiary{}, &models.Post{}, &models.Comment{},
	}
}

func ConnectAndMigrate() (*gorm.DB, error) {
	dsn := GetNormalizedDSN()
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_DSN est vide, vérifiez la configuration de l'environnement")
	}
	var db *gorm.DB
	var err error
	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "1" {
		logLevel = logger.Info
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}
	for i := 0; i < 10; i++ {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
		if err == nil {
			break
		}
		fmt.Println("Retrying DB connection...", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}

	// Basic connectivity test
	if pingErr := db.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}

	// Print masked DSN once for diagnostics
	masked := dsn
	if strings.Contains(masked, "password=") {
		re := regexp.MustCompile(`(password=)([^\s]+)`)
		masked = re.ReplaceAllString(masked, `${1}***`)
	}
	fmt.Println("[DB] Using DSN:", masked)

	// MIGRATIONS=1 runs the sql files via golang-migrate; otherwise AutoMigrate (dev convenience)
	if v := strings.ToLower(os.Getenv("MIGRATIONS")); v == "1" || v == "true" || v == "yes" {
		if err := runSQLMigrations(dsn); err != nil {
			return nil, fmt.Errorf("sql migrations failed: %w", err)
		}
	} else {
		for _, m := range AllModels() {
			if migErr := db.AutoMigrate(m); migErr != nil {
				return nil, fmt.Errorf("automigrate %T: %w", m, migErr)
			}
		}
	}

	// sanity check: ensure required core tables exist
	for _, table := range []string{"users", "sessions", "patient_profiles", "consultations"} {
		if !db.Migrator().HasTable(table) {
			return nil, errors.New("missing table after migration: " + table)
		}
	}
	// Seeding only when explicitly requested (e.g. development) via DB_SEED=1|true
	if v := strings.ToLower(os.Getenv("DB_SEED")); v == "1" || v == "true" || v == "yes" {
		seed(db)
	}
	return db, nil
}

// seed creates the development dietitian account if it does not exist yet.
func seed(db *gorm.DB) {
	var existing models.User
	err := db.Where("email = ?", "dietitian@nutricare.local").First(&existing).Error
	if err != gorm.ErrRecordNotFound {
		return
	}
	// bcrypt hash of "changeme" is not embedded; the seed account carries an
	// unusable password until reset through the normal flow.
	db.Create(&models.User{
		Email:         "dietitian@nutricare.local",
		Password:      "!",
		FirstName:     "Équipe",
		LastName:      "NutriCare",
		Role:          models.RoleDietitian,
		EmailVerified: true,
		IsActive:      true,
	})
}

// runSQLMigrations executes migrations in ./migrations using golang-migrate file source.
func runSQLMigrations(dsn string) error {
	m, err := migrate.New("file://migrations", ToURLDSN(dsn))
	if err != nil {
		return err
	}
	if err = m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
