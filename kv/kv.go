// Package kv is the gateway's persistent key-value store — the "persistent
// key-value store" external collaborator named by the core's scope. It
// backs warm-restart provider-health snapshots and cron schedule
// bookkeeping with a small BoltDB wrapper.
//
// Consistency model mirrors BoltDB itself: single-process, single-writer,
// ACID write transactions, read-only transactions for lookups.
package kv

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Store wraps a BoltDB file with typed JSON Get/Put helpers over named buckets.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the BoltDB file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("kv: open %q: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutJSON marshals v and writes it to bucket/key, creating the bucket if absent.
func (s *Store) PutJSON(bucket, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kv: marshal %s/%s: %w", bucket, key, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

// GetJSON reads bucket/key into v. Returns ok=false if the key (or bucket) is absent.
func (s *Store) GetJSON(bucket, key string, v interface{}) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, v)
	})
	if err != nil {
		return false, fmt.Errorf("kv: get %s/%s: %w", bucket, key, err)
	}
	return found, nil
}

// ForEach iterates every key/value pair in bucket, decoding each value via fn.
// If bucket does not exist, ForEach is a no-op.
func (s *Store) ForEach(bucket string, fn func(key string, data []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			return fn(string(k), v)
		})
	})
}

// Delete removes bucket/key. No-op if absent.
func (s *Store) Delete(bucket, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}
