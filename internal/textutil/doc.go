// Package textutil provides filename sanitization helpers shared by track
// naming, lock record paths, and published object keys.
//
// Sanitization is deterministic and idempotent: feeding an already sanitized
// value back through the same function returns it unchanged. Repeated
// separator collapsing runs under an explicit iteration cap and reports
// ErrIterationLimitExceeded instead of silently stopping early.
package textutil
