package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/filealchemy/internal/models"
	"github.com/desertthunder/filealchemy/internal/shared"
)

// PreferenceRepository stores key/value user preferences.
type PreferenceRepository struct {
	db *sql.DB
}

// NewPreferenceRepository creates a new PreferenceRepository with the given database connection
func NewPreferenceRepository(db *sql.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// Get retrieves a preference by key.
func (r *PreferenceRepository) Get(key string) (*models.Preference, error) {
	var p models.Preference
	err := r.db.QueryRow(`SELECT key, value, updated_at FROM preferences WHERE key = ?`, key).Scan(&p.Key, &p.Value, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: preference %q", shared.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preference: %w", err)
	}
	return &p, nil
}

// Set inserts or replaces a preference. Only keys in [models.KnownPreferences] are accepted.
func (r *PreferenceRepository) Set(key, value string) (*models.Preference, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if !slices.Contains(models.KnownPreferences, key) {
		return nil, fmt.Errorf("%w: unknown preference %q (known: %s)", shared.ErrInvalidArgument, key, strings.Join(models.KnownPreferences, ", "))
	}

	p := &models.Preference{Key: key, Value: strings.TrimSpace(value), UpdatedAt: time.Now()}

	query := `
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := r.db.Exec(query, p.Key, p.Value, p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to set preference: %w", err)
	}
	return p, nil
}

// Bool reads a boolean preference, returning fallback when it is unset or unparsable.
func (r *PreferenceRepository) Bool(key string, fallback bool) bool {
	p, err := r.Get(key)
	if err != nil {
		return fallback
	}
	return p.Bool(fallback)
}

// List returns every stored preference ordered by key.
func (r *PreferenceRepository) List() ([]*models.Preference, error) {
	rows, err := r.db.Query(`SELECT key, value, updated_at FROM preferences ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query preferences: %w", err)
	}
	defer rows.Close()

	var prefs []*models.Preference
	for rows.Next() {
		var p models.Preference
		if err := rows.Scan(&p.Key, &p.Value, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		prefs = append(prefs, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return prefs, nil
}

// Delete removes a preference.
func (r *PreferenceRepository) Delete(key string) error {
	result, err := r.db.Exec(`DELETE FROM preferences WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete preference: %w", err)
	}
	return requireRows(result, "preference", key)
}
