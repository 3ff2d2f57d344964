package database

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func isPostgresURI(uri string) bool {
	return strings.HasPrefix(uri, "postgres://") || strings.HasPrefix(uri, "postgresql://") || strings.Contains(uri, "host=")
}

// NewDatabase opens the database at uri and applies all migrations. Postgres
// connection strings use the postgres driver, anything else is treated as a
// sqlite file path.
func NewDatabase(uri string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if isPostgresURI(uri) {
		dialector = postgres.Open(uri)
	} else {
		if !strings.HasPrefix(uri, "file:") {
			if err := os.MkdirAll(filepath.Dir(uri), os.ModePerm); err != nil {
				return nil, fmt.Errorf("error creating database directory: %w", err)
			}
		}
		dialector = sqlite.Open(uri)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if err := GetMigrator(db).Migrate(); err != nil {
		return nil, fmt.Errorf("error migrating database: %w", err)
	}

	slog.Info("database ready", "dialect", db.Dialector.Name())

	return db, nil
}
