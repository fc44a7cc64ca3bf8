// Package resourcelock serializes access to a scarce host resource across
// unrelated processes.
//
// A lock is a small JSON record at a well-known path, one per resource name,
// holding the owner's PID and start time. Acquire waits while the owner is a
// live process and deletes the record when it is not, so a crashed holder
// never wedges the resource. Release removes the record unconditionally.
//
// Acquisition is check-then-write: two processes that both observe an empty
// slot may both write a record. The post-write read-back narrows the window
// (the loser sees the winner's PID and keeps waiting) but does not close it.
package resourcelock
