// Package store provides the SQLite-backed dispatch journal.
//
// The store is an append-only log with:
//   - Dispatches: one record per dispatch frame (top-level call, shadow
//     call, override or specific call), written when the frame exits
//   - Definition sets: the class and generic definitions calls ran
//     against, content-addressed by ir.DefinitionsHash
//
// # Ordering
//
// All ordering uses seq INTEGER (logical clock), never timestamps. Seq is
// taken when a frame is entered, so ORDER BY seq reproduces call order
// even though frames are written at exit. Every query breaks ties with
// id COLLATE BINARY so results are identical across runs.
//
// # Idempotency
//
// Frame IDs are content-addressed (ir.CallID over token, generic, args and
// seq). Writes use ON CONFLICT DO NOTHING, so writing a frame twice
// leaves one row.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
