package database

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/notes-search/notes/internal/notes"
	"github.com/notes-search/notes/internal/users"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Driver names reported by Dialect.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Dialect reports which driver serves the given connection string.
// postgres:// and postgresql:// URLs select PostgreSQL; anything else is a SQLite path.
func Dialect(databaseURL string) string {
	lowered := strings.ToLower(strings.TrimSpace(databaseURL))
	if strings.HasPrefix(lowered, "postgres://") || strings.HasPrefix(lowered, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

// Open establishes the store connection for databaseURL and performs schema migrations.
func Open(databaseURL string, logger *zap.Logger) (*gorm.DB, error) {
	trimmed := strings.TrimSpace(databaseURL)
	if trimmed == "" {
		return nil, fmt.Errorf("database url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	driver := Dialect(trimmed)
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(trimmed)
	default:
		dialector = sqlite.Open(trimmed)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db, logger); err != nil {
		return nil, err
	}

	logger.Info("database initialized", zap.String("driver", driver))

	return db, nil
}

// Migrate creates or updates the schema and applies pending named migrations.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	if err := db.AutoMigrate(&notes.Note{}, &notes.NoteChange{}, &users.Identity{}, &migrationRecord{}); err != nil {
		return err
	}
	return applyMigrations(db, logger)
}
