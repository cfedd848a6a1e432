// Package store provides SQLite-backed storage for type-graph analysis runs.
//
// Each run records what the engine learned about one input graph:
//   - Analysis runs: input fingerprint, versions and engine counters
//   - Type summaries: per-node abstract name, summary code, class and SCC
//   - SCCs: cyclic components with their members and internal edges
//   - Classes: equivalence classes with their canonical representative
//
// # Critical Patterns
//
// Logical Identity and Time
//   - Runs are ordered by seq INTEGER (logical clock), NEVER timestamps
//   - Run IDs are UUIDv7
//
// Deterministic Query Results
//   - All queries MUST include an ORDER BY over unique keys
//   - Node IDs are fixed-width hex TEXT so BINARY order is numeric order
//
// Content Addressing
//   - analysis_runs.graph_hash is ir.GraphHash of the input; re-analysing
//     the same input can be detected with FindRunsByGraphHash
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - user_version: schema version; Open refuses newer databases
//
// Member and edge lists are stored as msgpack payloads with a schema
// version, since they are only ever read back whole.
package store
