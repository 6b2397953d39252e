// Package models defines the persisted entities of FileAlchemy and the repository interface over them.
//
//   - [HistoryEntry] : one completed conversion batch (formats, file counts, engine, summary message)
//   - [Preference] : a key/value user setting such as dark_mode
//
// [HistoryEntry] implements [Model], providing ID generation, timestamps, validation and soft delete support.
// The [Repository] interface defines standard CRUD operations for database access.
package models
