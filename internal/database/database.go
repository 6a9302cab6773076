package database

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/careops/reportd/internal/models"
)

// Open connects to the SQLite database at path and migrates the
// schema. The handle is returned to the caller for injection; there is
// no package-level instance.
func Open(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %v", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.ScheduledReport{},
		&models.ReportExecution{},
		&models.User{},
	); err != nil {
		return nil, fmt.Errorf("migrate database: %v", err)
	}

	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get underlying *sql.DB: %v", err)
	}
	return sqlDB.Close()
}
