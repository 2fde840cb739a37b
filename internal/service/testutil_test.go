package service

import (
	"testing"
	"time"

	"github.com/eventpool/backend/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens a fresh in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(
		&domain.Source{},
		&domain.CanonicalEvent{},
		&domain.EventSource{},
		&domain.DuplicateCandidate{},
		&domain.IngestRun{},
		&domain.AIJob{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func timePtr(v time.Time) *time.Time {
	return &v
}

func testPriorities() map[string]int {
	return map[string]int{
		"manual":  100,
		"partner": 80,
		"feed":    50,
		"scraper": 20,
	}
}
