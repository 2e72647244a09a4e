package directory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gridswitch/internal/infrastructure/etcd"
)

// Store reads the identifier -> address entries kept under a key prefix.
type Store interface {
	// List returns every child of prefix keyed by its identifier (the last
	// "/" segment of the key). An absent prefix yields an empty map.
	List(ctx context.Context, prefix string) (map[string]string, error)
}

// Writer edits entries in a backing store. etcd.Client and SQLiteStore
// satisfy it.
type Writer interface {
	Put(ctx context.Context, key, address string) error
	Delete(ctx context.Context, key string) error
}

// EntryKey returns the store key of identifier id below prefix.
func EntryKey(prefix, id string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + id
}

// childKey returns the identifier part of key, or "" when key is not
// strictly below prefix.
func childKey(prefix, key string) string {
	base := strings.TrimSuffix(prefix, "/") + "/"
	rest, ok := strings.CutPrefix(key, base)
	if !ok || rest == "" {
		return ""
	}
	if i := strings.LastIndex(rest, "/"); i >= 0 {
		rest = rest[i+1:]
	}
	return rest
}

// KV is the subset of the etcd client used by EtcdStore.
type KV interface {
	GetPrefix(ctx context.Context, prefix string) ([]etcd.KeyValue, error)
}

// EtcdStore reads directory entries from an etcd v3 key prefix.
type EtcdStore struct {
	kv KV
}

// NewEtcdStore creates a store backed by an etcd client.
func NewEtcdStore(kv KV) *EtcdStore {
	return &EtcdStore{kv: kv}
}

// List reads every key below prefix.
func (s *EtcdStore) List(ctx context.Context, prefix string) (map[string]string, error) {
	kvs, err := s.kv.GetPrefix(ctx, strings.TrimSuffix(prefix, "/")+"/")
	if err != nil {
		return nil, err
	}

	entries := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		if id := childKey(prefix, kv.Key); id != "" {
			entries[id] = strings.TrimSpace(kv.Value)
		}
	}
	return entries, nil
}

// SQLiteStore reads directory entries from the directory_entries table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store on an open, migrated SQLite connection.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// List reads every row whose key is below prefix.
func (s *SQLiteStore) List(ctx context.Context, prefix string) (map[string]string, error) {
	base := strings.TrimSuffix(prefix, "/") + "/"

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, address
		FROM directory_entries
		WHERE substr(key, 1, length(?)) = ?`, base, base)
	if err != nil {
		return nil, fmt.Errorf("querying directory entries: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]string)
	for rows.Next() {
		var key, address string
		if err := rows.Scan(&key, &address); err != nil {
			return nil, fmt.Errorf("scanning directory entry: %w", err)
		}
		if id := childKey(prefix, key); id != "" {
			entries[id] = strings.TrimSpace(address)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating directory entries: %w", err)
	}
	return entries, nil
}

// Put inserts or replaces the address stored at key.
func (s *SQLiteStore) Put(ctx context.Context, key, address string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO directory_entries (key, address, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			address = excluded.address,
			updated_at = excluded.updated_at`,
		key, address, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storing directory entry %s: %w", key, err)
	}
	return nil
}

// Delete removes the entry at key. Deleting an absent key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM directory_entries WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting directory entry %s: %w", key, err)
	}
	return nil
}
