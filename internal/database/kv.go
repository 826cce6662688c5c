package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// KVStore is a named key-value collection backed by the shared kv_store
// table. Values are JSON-encoded. Typed getters treat malformed values
// as absent rather than failing: a persisted value that no longer
// decodes must not break callers, only degrade to the default.
type KVStore struct {
	collection string
}

// NewKVStore returns a KVStore for the named collection.
func NewKVStore(collection string) *KVStore {
	return &KVStore{collection: collection}
}

// GetRaw returns the raw value stored under key, and whether it exists.
func (s *KVStore) GetRaw(tx *ReadTx, key string) ([]byte, bool, error) {
	var value []byte
	err := tx.QueryRow(
		`SELECT value FROM kv_store WHERE collection = ? AND key = ?`,
		s.collection, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading key %s/%s: %w", s.collection, key, err)
	}
	return value, true, nil
}

// SetRaw stores value under key, overwriting any existing value.
func (s *KVStore) SetRaw(tx *WriteTx, key string, value []byte) error {
	_, err := tx.Exec(
		`INSERT INTO kv_store (collection, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (collection, key) DO UPDATE SET value = excluded.value`,
		s.collection, key, value,
	)
	if err != nil {
		return fmt.Errorf("writing key %s/%s: %w", s.collection, key, err)
	}
	return nil
}

// Remove deletes the value under key. Removing an absent key is a no-op.
func (s *KVStore) Remove(tx *WriteTx, key string) error {
	_, err := tx.Exec(
		`DELETE FROM kv_store WHERE collection = ? AND key = ?`,
		s.collection, key,
	)
	if err != nil {
		return fmt.Errorf("removing key %s/%s: %w", s.collection, key, err)
	}
	return nil
}

// All returns every key/value pair in the collection.
func (s *KVStore) All(tx *ReadTx) (map[string][]byte, error) {
	rows, err := tx.Query(
		`SELECT key, value FROM kv_store WHERE collection = ?`,
		s.collection,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning collection %s: %w", s.collection, err)
	}
	defer rows.Close()

	all := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning collection %s: %w", s.collection, err)
		}
		all[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scanning collection %s: %w", s.collection, err)
	}
	return all, nil
}

// GetBool returns the boolean stored under key, or fallback if the key
// is absent or the stored value is malformed.
func (s *KVStore) GetBool(tx *ReadTx, key string, fallback bool) (bool, error) {
	raw, ok, err := s.GetRaw(tx, key)
	if err != nil || !ok {
		return fallback, err
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return fallback, nil
	}
	return v, nil
}

// SetBool stores a boolean under key.
func (s *KVStore) SetBool(tx *WriteTx, key string, v bool) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding key %s/%s: %w", s.collection, key, err)
	}
	return s.SetRaw(tx, key, raw)
}

// GetUint64 returns the counter stored under key, or nil if the key is
// absent or the stored value is malformed.
func (s *KVStore) GetUint64(tx *ReadTx, key string) (*uint64, error) {
	raw, ok, err := s.GetRaw(tx, key)
	if err != nil || !ok {
		return nil, err
	}
	var v uint64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, nil
	}
	return &v, nil
}

// SetUint64 stores a counter under key.
func (s *KVStore) SetUint64(tx *WriteTx, key string, v uint64) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding key %s/%s: %w", s.collection, key, err)
	}
	return s.SetRaw(tx, key, raw)
}
