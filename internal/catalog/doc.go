// Package catalog holds the format catalog: which source formats each category accepts and which
// target formats each source format can be converted to.
//
// # Lookups
//
// All lookups are pure and never fail. An unknown category or format yields an empty slice, which
// callers treat as "no valid selection available". Format identifiers are upper-case (PNG, JPG, ...)
// and lookups are case-insensitive; common aliases (JPEG, TIF, HEIF) are folded by [Normalize].
//
// No format lists itself as a target.
//
// # Backend Catalog
//
// The conversion backend may declare its own capabilities via GET /api/formats. [Catalog.Merge]
// narrows the bundled catalog to the pairs the backend reports; when the backend is unreachable
// the bundled [Default] catalog is used unchanged.
package catalog
