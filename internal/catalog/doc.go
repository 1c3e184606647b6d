// Package catalog provides a SQLite-backed snapshot of project nodes.
//
// The catalog stores:
//   - Nodes: one row per unique_id, with precomputed match columns
//     (dotted fqn, slash path, file name and stem)
//   - Node tags: one row per tag, in declaration order
//
// # Critical Patterns
//
// Deterministic Query Results
//   - All reads MUST include: ORDER BY unique_id COLLATE BINARY
//   - Ensures identical results across runs and backends
//
// Replace by Identity
//   - WriteNodes upserts by unique_id and rewrites the node's tags
//   - Reset empties the catalog before a full import
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Selections run through internal/querysql and must agree with the in-memory
// evaluator for every expression the SQL backend accepts.
package catalog
