// Package store provides SQLite-backed history of harness runs.
//
// The store keeps three append-only tables:
//   - runs: one row per invocation of the test command
//   - outcomes: one row per executed (group, scenario) case
//   - steps: the dispatched driver commands of each outcome
//
// Outcomes carry two content hashes: the group fingerprint (agents,
// configuration and scenarios) and the trace fingerprint (the canonical
// form of the dispatched commands and their results). Two runs of the same
// case with equal hashes dispatched the same commands with the same
// results.
//
// # Deterministic Query Results
//
// Outcomes are read ORDER BY seq ASC, steps ORDER BY seq ASC. Runs are
// listed newest first, ties broken by id.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
