// Package repositories implements SQLite persistence for conversion history and user preferences.
//
// Key Implementations:
//   - [HistoryRepository] : completed conversion batches, pruned to the most recent N entries
//   - [PreferenceRepository] : key/value preferences such as dark_mode
//
// History rows support soft deletes via deleted_at timestamps and deleted rows are excluded from queries.
// Sequence numbers provide stable ordering independent of UUIDs and creation timestamps; [NextSequence]
// atomically increments per-table counters stored in dedicated sequence tables.
package repositories
