// Package engine implements jobdeck's live state synchronization: it
// keeps the in-memory per-host job table consistent with server-side
// truth under an unreliable push channel, while minimizing redundant
// network calls and degrading gracefully to polling.
//
// # Components
//
// Three pieces, leaves first:
//
//   - Batcher: coalesces inbound state deltas from push and poll into a
//     single ordered queue and drains them on a bounded cadence, with at
//     most one drain in flight.
//   - Supervisor: owns the push-channel lifecycle — dialing, heartbeat
//     staleness detection, reconnect with capped jittered backoff, and
//     pause/resume. It reports transitions and payloads via callbacks and
//     never touches job data.
//   - Orchestrator: the coordinator. It selects the transport, enforces
//     the one-fetch-per-host rule, fans fetched and pushed payloads into
//     the Batcher, and exposes the read surface the view layer consumes.
//
// # Data Flow
//
//	Supervisor ──events──> Orchestrator ──policy──> poll timer
//	     │                       │
//	     └──payloads──┐          └──fetch payloads──┐
//	                  ▼                             ▼
//	               Batcher ──drain──> store.Jobs / store.Hosts
//	                                       │
//	                                       └──> UI reads snapshots
//
// # Transport Policy
//
// Re-evaluated on every connectivity or focus change:
//
//   - Push healthy: polling disabled entirely.
//   - Push stale or backing off: a backstop polling timer is armed; the
//     interval widens while the terminal is unfocused.
//   - Paused: every timer cancelled synchronously, the socket closed,
//     last-known data served with a cache source.
//
// # Consistency
//
// A host's job set is replaced wholesale on each successful sync - never
// merged field by field - so a job can never mix attributes from two
// payloads. Only the Batcher's drain path writes the job store. Updates
// apply in enqueue order within a drain. In-flight fetch results that
// resolve after Destroy or a pause are discarded via an epoch check
// rather than applied.
//
// # Failure Semantics
//
// A failed per-host fetch is recorded in store.Hosts and never blocks
// sibling hosts. A push-channel error drives a Supervisor transition and
// never reaches a caller. A malformed update fails alone inside the
// drain and is logged. Nothing in this package is fatal to the
// application; the worst outcome is visibly stale cached data.
package engine
