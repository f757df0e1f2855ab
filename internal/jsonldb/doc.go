// Package jsonldb provides a generic, concurrent-safe, JSONL-backed data store.
//
// # Overview
//
// The package centers around [Table], a generic container that stores rows in a
// JSONL (JSON Lines) file with full in-memory caching for fast reads. Tables are
// safe for concurrent use by multiple goroutines.
//
// # Concurrency: Pessimistic Locking
//
// Every mutation holds the table write lock while it updates both the file and
// the in-memory copy. Readers only ever observe rows that were persisted.
// Callers needing check-then-act semantics across several calls must add their
// own lock.
//
// # Secondary Indexes
//
// [UniqueIndex] and [Index] provide O(1) lookups by arbitrary keys, staying
// synchronized with table mutations via [TableObserver].
//
// # File Format
//
// One JSON object per line, in insertion order. Appends are written in place;
// updates and deletes rewrite the file through a temporary file and a rename,
// so a crash leaves either the old or the new file on disk.
package jsonldb
