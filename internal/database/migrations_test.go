package database

import (
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/notes-search/notes/internal/notes"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestApplyMigrationsNormalizesEmptyTags(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&notes.Note{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	if err := database.Exec(
		"INSERT INTO notes (note_id, user_id, title, content, tags_json, created_at_ms, updated_at_ms) VALUES (?, ?, ?, ?, ?, ?, ?)",
		"note-1", "user-1", "Imported", "", "", 1, 1,
	).Error; err != nil {
		testContext.Fatalf("failed to insert note: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var stored notes.Note
	if err := database.Where("user_id = ? AND note_id = ?", "user-1", "note-1").Take(&stored).Error; err != nil {
		testContext.Fatalf("failed to reload note: %v", err)
	}
	if stored.TagsJSON != "[]" {
		testContext.Fatalf("expected tags to be normalized, got %q", stored.TagsJSON)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationNormalizeEmptyNoteTags).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("second run should be a no-op: %v", err)
	}
}

func TestOpenCreatesSchema(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "notes.db")

	database, err := Open(databasePath, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}
	for _, table := range []string{"notes", "note_changes", "user_identities", "db_migrations"} {
		if !database.Migrator().HasTable(table) {
			testContext.Fatalf("expected table %s to exist", table)
		}
	}
}

func TestDialect(testContext *testing.T) {
	testCases := map[string]string{
		"postgres://user@localhost/notes":   DriverPostgres,
		"POSTGRESQL://user@localhost/notes": DriverPostgres,
		"notes.db":                          DriverSQLite,
		"file::memory:?cache=shared":        DriverSQLite,
	}
	for input, want := range testCases {
		if got := Dialect(input); got != want {
			testContext.Fatalf("Dialect(%q) = %s, want %s", input, got, want)
		}
	}
}
