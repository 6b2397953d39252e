package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/filealchemy/internal/models"
	"github.com/desertthunder/filealchemy/internal/shared"
)

// DefaultHistoryLimit is how many entries are kept when no limit is configured.
const DefaultHistoryLimit = 10

const historyColumns = `id, sequence, category, source_format, target_format, file_count, success_count, failed_count, engine, message, created_at, updated_at, deleted_at`

// HistoryRepository implements models.Repository[*models.HistoryEntry] for conversion history.
//
// Only the most recent limit entries are kept; older ones are soft-deleted on every insert.
type HistoryRepository struct {
	db    *sql.DB
	limit int
}

// NewHistoryRepository creates a new HistoryRepository keeping at most limit entries.
func NewHistoryRepository(db *sql.DB, limit int) *HistoryRepository {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &HistoryRepository{db: db, limit: limit}
}

// Create inserts a new entry with generated ID and sequence
func (r *HistoryRepository) Create(entry *models.HistoryEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "history")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	entry.SetID(shared.GenerateID())
	entry.SetSequence(sequence)

	query := `
		INSERT INTO history (id, sequence, category, source_format, target_format, file_count, success_count, failed_count, engine, message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		entry.ID(),
		sequence,
		entry.Category,
		entry.SourceFormat,
		entry.TargetFormat,
		entry.FileCount,
		entry.SuccessCount,
		entry.FailedCount,
		entry.Engine,
		entry.Message,
		entry.CreatedAt(),
		entry.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}

	return nil
}

// RecordConversion stores a completed batch and prunes entries beyond the configured limit.
func (r *HistoryRepository) RecordConversion(ctx context.Context, entry *models.HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.Create(entry); err != nil {
		return err
	}
	_, err := r.Prune(r.limit)
	return err
}

// Get retrieves an entry by ID, excluding soft-deleted entries
func (r *HistoryRepository) Get(id string) (*models.HistoryEntry, error) {
	query := `SELECT ` + historyColumns + ` FROM history WHERE id = ? AND deleted_at IS NULL`
	return r.scan(r.db.QueryRow(query, id))
}

// Update modifies the summary fields of an existing entry
func (r *HistoryRepository) Update(entry *models.HistoryEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	entry.SetUpdatedAt(now)

	query := `
		UPDATE history
		SET file_count = ?, success_count = ?, failed_count = ?, engine = ?, message = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		entry.FileCount,
		entry.SuccessCount,
		entry.FailedCount,
		entry.Engine,
		entry.Message,
		now,
		entry.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update history entry: %w", err)
	}

	return requireRows(result, "history entry", entry.ID())
}

// Delete soft-deletes an entry by ID
func (r *HistoryRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE history SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete history entry: %w", err)
	}

	return requireRows(result, "history entry", id)
}

// List retrieves entries newest first.
//
// Supported criteria: "category" (string), "engine" (string) and "limit" (int).
func (r *HistoryRepository) List(criteria map[string]any) ([]*models.HistoryEntry, error) {
	query := `SELECT ` + historyColumns + ` FROM history WHERE deleted_at IS NULL`
	args := []any{}

	if category, ok := criteria["category"].(string); ok && category != "" {
		query += " AND category = ?"
		args = append(args, category)
	}

	if engine, ok := criteria["engine"].(string); ok && engine != "" {
		query += " AND engine = ?"
		args = append(args, engine)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []*models.HistoryEntry
	for rows.Next() {
		entry, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

// Recent returns up to limit entries, newest first. A non-positive limit uses the configured one.
func (r *HistoryRepository) Recent(limit int) ([]*models.HistoryEntry, error) {
	if limit <= 0 {
		limit = r.limit
	}
	return r.List(map[string]any{"limit": limit})
}

// Prune soft-deletes every entry except the newest keep and reports how many were removed.
func (r *HistoryRepository) Prune(keep int) (int64, error) {
	query := `
		UPDATE history
		SET deleted_at = ?
		WHERE deleted_at IS NULL AND sequence NOT IN (
			SELECT sequence FROM history WHERE deleted_at IS NULL ORDER BY sequence DESC LIMIT ?
		)
	`

	result, err := r.db.Exec(query, time.Now(), keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}

// Clear soft-deletes every entry and reports how many were removed.
func (r *HistoryRepository) Clear() (int64, error) {
	return r.Prune(0)
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *HistoryRepository) scan(row scanner) (*models.HistoryEntry, error) {
	var (
		id        string
		sequence  int
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
		e         models.HistoryEntry
	)

	err := row.Scan(
		&id, &sequence,
		&e.Category, &e.SourceFormat, &e.TargetFormat,
		&e.FileCount, &e.SuccessCount, &e.FailedCount,
		&e.Engine, &e.Message,
		&createdAt, &updatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: history entry", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan history entry: %w", err)
	}

	var deleted *time.Time
	if deletedAt.Valid {
		deleted = &deletedAt.Time
	}

	entry := models.RestoreHistoryEntry(id, sequence, createdAt, updatedAt, deleted)
	entry.Category, entry.SourceFormat, entry.TargetFormat = e.Category, e.SourceFormat, e.TargetFormat
	entry.FileCount, entry.SuccessCount, entry.FailedCount = e.FileCount, e.SuccessCount, e.FailedCount
	entry.Engine, entry.Message = e.Engine, e.Message
	return entry, nil
}

func requireRows(result sql.Result, kind, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s %s not found or already deleted", shared.ErrNotFound, kind, id)
	}
	return nil
}
