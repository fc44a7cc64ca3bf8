// Package journal persists a history of pipeline and batch outcomes in SQLite.
//
// The journal is append-only and purely informational: the batch ledger and
// the files on disk remain the only sources of truth for progress. Losing or
// deleting the database never changes what a rerun does.
package journal
