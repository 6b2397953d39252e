// package models defines the persisted data model for conversion history and preferences
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/filealchemy/internal/shared"
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// Conversion engines recorded in history.
const (
	EngineBackend = "backend"
	EngineMock    = "mock"
)

// HistoryEntry records one completed conversion batch.
type HistoryEntry struct {
	id        string
	sequence  int
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time

	Category     string
	SourceFormat string
	TargetFormat string
	FileCount    int
	SuccessCount int
	FailedCount  int
	Engine       string
	Message      string
}

// NewHistoryEntry creates an unsaved entry for a source → target batch.
func NewHistoryEntry(category, source, target string) *HistoryEntry {
	now := time.Now()
	return &HistoryEntry{
		Category:     category,
		SourceFormat: strings.ToUpper(source),
		TargetFormat: strings.ToUpper(target),
		createdAt:    now,
		updatedAt:    now,
	}
}

// RestoreHistoryEntry rebuilds an entry loaded from storage.
func RestoreHistoryEntry(id string, sequence int, createdAt, updatedAt time.Time, deletedAt *time.Time) *HistoryEntry {
	return &HistoryEntry{id: id, sequence: sequence, createdAt: createdAt, updatedAt: updatedAt, deletedAt: deletedAt}
}

func (h *HistoryEntry) ID() string               { return h.id }
func (h *HistoryEntry) SetID(id string)          { h.id = id }
func (h *HistoryEntry) Sequence() int            { return h.sequence }
func (h *HistoryEntry) SetSequence(seq int)      { h.sequence = seq }
func (h *HistoryEntry) CreatedAt() time.Time     { return h.createdAt }
func (h *HistoryEntry) UpdatedAt() time.Time     { return h.updatedAt }
func (h *HistoryEntry) SetUpdatedAt(t time.Time) { h.updatedAt = t }
func (h *HistoryEntry) DeletedAt() *time.Time    { return h.deletedAt }

// Validate checks the formats are set and the counts add up.
func (h *HistoryEntry) Validate() error {
	if h.SourceFormat == "" || h.TargetFormat == "" {
		return fmt.Errorf("%w: source and target formats are required", shared.ErrInvalidInput)
	}
	if h.FileCount < 0 || h.SuccessCount < 0 || h.FailedCount < 0 {
		return fmt.Errorf("%w: counts must not be negative", shared.ErrInvalidInput)
	}
	if h.SuccessCount+h.FailedCount > h.FileCount {
		return fmt.Errorf("%w: %d results for %d files", shared.ErrInvalidInput, h.SuccessCount+h.FailedCount, h.FileCount)
	}
	return nil
}

// Conversion formats the pair as "PNG → JPG".
func (h *HistoryEntry) Conversion() string {
	return h.SourceFormat + " → " + h.TargetFormat
}

// Preference keys.
const (
	PrefDarkMode = "dark_mode"
)

// KnownPreferences lists the keys accepted by the preference store.
var KnownPreferences = []string{PrefDarkMode}

// Preference is a single key/value user setting.
type Preference struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// Bool interprets the value as a boolean, returning fallback when it does not parse.
func (p *Preference) Bool(fallback bool) bool {
	if p == nil {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(p.Value))
	if err != nil {
		return fallback
	}
	return b
}
