// Package storage provides history.Storage backends.
//
// The memory backend keeps records in a map and suits tests and
// single-process deployments that do not need durable history. The SQLite
// backend uses the pure-Go modernc.org/sqlite driver and survives
// restarts.
package storage
