// Package batch advances ledger rows through the two-phase workflow.
//
// Phase 1 runs the preparation stages for rows marked Uploaded and records
// PrepComplete or PrepFailed. Phase 2 runs the render and distribution stages
// for rows marked PrepComplete or Uploaded and records Completed or
// RenderFailed. Rows in any other status are skipped without touching disk.
//
// The ledger is rewritten after every processed row, before the next row
// starts, so an interrupted run leaves a clean prefix of updated rows and a
// rerun resumes at the first row still eligible. Stage-level idempotency in
// the pipeline covers rows that were mid-flight when the run stopped.
package batch
