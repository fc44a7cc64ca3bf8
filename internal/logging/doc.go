// Package logging assembles structured slog loggers and formatting helpers used
// across karaokeprep.
//
// It owns the console and JSON handlers, routes file output through a rotating
// writer, and exposes context-aware helpers so stage code tags log lines with
// the track, stage, batch phase, ledger row, and correlation ID automatically.
// NewNop returns a logger for tests and wiring code that cannot fail.
package logging
