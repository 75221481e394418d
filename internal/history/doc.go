// Package history persists run reports in SQLite.
//
// Each run writes one row to runs plus its batches, track outcomes, failures
// and skipped inputs in a single transaction. The database is an append-only
// archive read by the history command. Schema changes bump schemaVersion in
// schema.go; an older database must be removed to adopt the new schema.
package history
