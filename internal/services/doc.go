// Package services defines shared utilities consumed by the pipeline stages
// and their external collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp track names, stage names, batch phases and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify a
//     failure with errors.Is while keeping the underlying cause.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error classification, observability) stays uniform across the pipeline.
package services
