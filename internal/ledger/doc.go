// Package ledger reads and rewrites the CSV batch ledger.
//
// A ledger has a header row naming Artist, Title, and Status (matched
// case-insensitively) plus any number of other columns. Every column that is
// not Artist, Title, or Status is treated as an input reference; the first
// one carrying a value is the acquisition input. Columns and cell values are
// written back exactly as read apart from the Status cell.
//
// Save replaces the whole file through "{ledger}.tmp" and a rename so a crash
// leaves either the previous or the new snapshot on disk, never a torn one.
package ledger
