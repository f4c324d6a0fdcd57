// Package storage provides the content-addressed media store.
//
// Files are named by the MD5 hex digest of their source URL plus the URL's
// extension, so fetching the same asset twice lands on the same path and a
// rerun becomes a cheap no-op. Writes are atomic: data goes to a temporary
// file first and is renamed into place.
//
// The Manager type is the primary interface for storage operations. It keeps
// an in-memory index of stored files for fast existence checks and scans the
// output directory on startup so earlier runs are recognized.
package storage
