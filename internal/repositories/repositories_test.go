package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/desertthunder/filealchemy/internal/models"
	"github.com/desertthunder/filealchemy/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func newEntry(source, target string, files, ok int) *models.HistoryEntry {
	e := models.NewHistoryEntry("images", source, target)
	e.FileCount, e.SuccessCount, e.FailedCount = files, ok, files-ok
	e.Engine = models.EngineMock
	e.Message = fmt.Sprintf("Converted %d of %d files", ok, files)
	return e
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "history")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(db, "missing"); err == nil {
		t.Error("expected error for table without a sequence")
	}
}

func TestHistoryRepository(t *testing.T) {
	t.Run("Create And Get", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t), 0)
		entry := newEntry("png", "jpg", 3, 2)

		if err := repo.Create(entry); err != nil {
			t.Fatalf("failed to create entry: %v", err)
		}
		if entry.ID() == "" || entry.Sequence() != 1 {
			t.Errorf("expected id and sequence 1, got %q/%d", entry.ID(), entry.Sequence())
		}

		got, err := repo.Get(entry.ID())
		if err != nil {
			t.Fatalf("failed to get entry: %v", err)
		}
		if got.Conversion() != "PNG → JPG" || got.SuccessCount != 2 || got.FailedCount != 1 {
			t.Errorf("unexpected entry %+v", got)
		}
		if got.CreatedAt().IsZero() {
			t.Error("expected created_at to round-trip")
		}
	})

	t.Run("Create Validation", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t), 0)

		if err := repo.Create(newEntry("", "jpg", 1, 1)); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}

		bad := newEntry("png", "jpg", 1, 1)
		bad.FailedCount = 4
		if err := repo.Create(bad); err == nil {
			t.Error("expected error when results exceed file count")
		}
	})

	t.Run("Get Not Found", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t), 0)
		if _, err := repo.Get("nope"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("RecordConversion Keeps Limit", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t), 10)

		for i := range 12 {
			e := newEntry("png", "jpg", i+1, i+1)
			if err := repo.RecordConversion(context.Background(), e); err != nil {
				t.Fatalf("record %d failed: %v", i, err)
			}
		}

		entries, err := repo.Recent(0)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(entries) != 10 {
			t.Fatalf("expected 10 entries, got %d", len(entries))
		}
		if entries[0].FileCount != 12 || entries[9].FileCount != 3 {
			t.Errorf("expected newest first from 12 down to 3, got %d..%d", entries[0].FileCount, entries[9].FileCount)
		}
	})

	t.Run("RecordConversion Canceled", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t), 0)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := repo.RecordConversion(ctx, newEntry("png", "jpg", 1, 1)); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("List Criteria", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t), 0)

		a := newEntry("png", "jpg", 1, 1)
		b := newEntry("pdf", "docx", 1, 0)
		b.Category, b.Engine = "documents", models.EngineBackend
		for _, e := range []*models.HistoryEntry{a, b} {
			if err := repo.Create(e); err != nil {
				t.Fatalf("failed to create: %v", err)
			}
		}

		docs, err := repo.List(map[string]any{"category": "documents"})
		if err != nil || len(docs) != 1 || docs[0].ID() != b.ID() {
			t.Errorf("expected only the documents entry, got %v (%v)", docs, err)
		}

		mock, err := repo.List(map[string]any{"engine": models.EngineMock})
		if err != nil || len(mock) != 1 || mock[0].ID() != a.ID() {
			t.Errorf("expected only the mock entry, got %v (%v)", mock, err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t), 0)
		entry := newEntry("png", "jpg", 2, 1)
		repo.Create(entry)

		entry.Message = "retried"
		if err := repo.Update(entry); err != nil {
			t.Fatalf("failed to update: %v", err)
		}

		got, _ := repo.Get(entry.ID())
		if got.Message != "retried" {
			t.Errorf("expected updated message, got %q", got.Message)
		}
	})

	t.Run("Delete And Clear", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t), 0)
		entries := []*models.HistoryEntry{newEntry("png", "jpg", 1, 1), newEntry("gif", "png", 1, 1), newEntry("bmp", "png", 1, 1)}
		for _, e := range entries {
			repo.Create(e)
		}

		if err := repo.Delete(entries[0].ID()); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if err := repo.Delete(entries[0].ID()); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}

		removed, err := repo.Clear()
		if err != nil {
			t.Fatalf("failed to clear: %v", err)
		}
		if removed != 2 {
			t.Errorf("expected 2 removed, got %d", removed)
		}

		left, _ := repo.Recent(0)
		if len(left) != 0 {
			t.Errorf("expected empty history, got %d", len(left))
		}
	})
}

func TestPreferenceRepository(t *testing.T) {
	t.Run("Set And Get", func(t *testing.T) {
		repo := NewPreferenceRepository(setupTestDB(t))

		if _, err := repo.Set("DARK_MODE", "true"); err != nil {
			t.Fatalf("failed to set: %v", err)
		}
		if !repo.Bool(models.PrefDarkMode, false) {
			t.Error("expected dark mode on")
		}

		if _, err := repo.Set(models.PrefDarkMode, "false"); err != nil {
			t.Fatalf("failed to overwrite: %v", err)
		}
		p, err := repo.Get(models.PrefDarkMode)
		if err != nil || p.Value != "false" {
			t.Errorf("expected overwritten value, got %+v (%v)", p, err)
		}
	})

	t.Run("Unknown Key", func(t *testing.T) {
		repo := NewPreferenceRepository(setupTestDB(t))
		if _, err := repo.Set("font_size", "12"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Missing Uses Fallback", func(t *testing.T) {
		repo := NewPreferenceRepository(setupTestDB(t))

		if _, err := repo.Get(models.PrefDarkMode); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if !repo.Bool(models.PrefDarkMode, true) {
			t.Error("expected fallback true")
		}
	})

	t.Run("List And Delete", func(t *testing.T) {
		repo := NewPreferenceRepository(setupTestDB(t))
		repo.Set(models.PrefDarkMode, "1")

		prefs, err := repo.List()
		if err != nil || len(prefs) != 1 {
			t.Fatalf("expected one preference, got %v (%v)", prefs, err)
		}

		if err := repo.Delete(models.PrefDarkMode); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if err := repo.Delete(models.PrefDarkMode); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
