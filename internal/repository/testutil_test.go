package repository

import (
	"testing"

	"github.com/eventpool/backend/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

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
