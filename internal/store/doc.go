// Package store provides the canonical in-memory state the dashboard
// renders: the job table and per-host sync bookkeeping.
//
// # Core Types
//
// Jobs:
//   - Job table across all hosts, keyed by host name.
//   - A host's subset is replaced wholesale per sync; jobs from other
//     hosts are untouched. No partial-field merges, so a job's
//     attributes always come from a single payload.
//   - AllJobs returns a fresh iterator over an independent snapshot on
//     every call; two consumers never share a cursor.
//
// Hosts:
//   - Per-host {Loading, LastError, IsTimeout, LastSyncAt, Status}.
//   - BeginFetch/CompleteFetch enforce at most one in-flight fetch per
//     host; Loading=true always implies Status=loading.
//   - Timeout failures are recorded distinctly from other fetch errors.
//   - Retry policy lives in the sync engine, never here.
//
// # Concurrency Model
//
// Both types use a mutex with defensive copying on every read, the same
// single-writer/multi-reader pattern the UI refresh loop expects: the
// engine's drain path writes, the view layer reads snapshots at its own
// cadence, and the lock is held only during copies, never during I/O.
package store
