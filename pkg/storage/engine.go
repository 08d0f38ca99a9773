// Package storage wraps a single embedded bbolt database shared by the log
// store and the state-machine store, one *bolt.DB handle with a bucket per
// namespace. Here the buckets are the two namespaces the core needs: "logs"
// (Raft log entries, index-keyed) and "store" (scalar metadata: vote,
// committed watermark, purge watermark, snapshot).
package storage

import (
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

// Bucket names for the two namespaces the core relies on.
const (
	BucketLogs  = "logs"
	BucketStore = "store"
)

// Engine is the embedded KV engine (component A): a single process-wide
// bbolt handle, opened once per node and shared between the log store and
// the state-machine store's snapshot persistence.
type Engine struct {
	db   *bolt.DB
	path string
}

// Open creates (or reopens) the embedded database at <dataDir>/raftkv.db
// and ensures the logs/store buckets exist.
func Open(dataDir string) (*Engine, error) {
	path := filepath.Join(dataDir, "raftkv.db")
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open embedded engine: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{BucketLogs, BucketStore} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Engine{db: db, path: path}, nil
}

// Path returns the on-disk database file path.
func (e *Engine) Path() string { return e.path }

// Close closes the underlying database.
func (e *Engine) Close() error { return e.db.Close() }

// View runs fn against the named bucket in a read-only transaction.
func (e *Engine) View(bucket string, fn func(*bolt.Bucket) error) error {
	return e.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucket)
		}
		return fn(b)
	})
}

// Update runs fn against the named bucket in a read-write transaction.
// bbolt fsyncs the transaction's WAL page on commit, so a successful
// return here is the durability boundary appends and scalar writes
// depend on: no completion is signaled before this returns nil.
func (e *Engine) Update(bucket string, fn func(*bolt.Bucket) error) error {
	return e.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucket)
		}
		return fn(b)
	})
}

// Sync flushes any pending writes. Every Update transaction already fsyncs
// on commit, so this is a no-op read-only round trip through the database
// that exists to let callers state a flush boundary explicitly (e.g. after
// a batch of scalar writes) without reasoning about bbolt internals.
func (e *Engine) Sync() error {
	return e.db.View(func(tx *bolt.Tx) error { return nil })
}

// Stats exposes bbolt's own stats for metrics collection.
func (e *Engine) Stats() bolt.Stats {
	return e.db.Stats()
}
