// Package localstore is the client's durable key/value store. Each key holds
// one whole JSON dataset; writes are last-write-wins per key.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// FileName is the database file created inside the data directory.
const FileName = "liftlog.db"

// Change describes a key that was written or removed.
type Change struct {
	Key     string
	Removed bool
	// External is set when another process made the change.
	External bool
}

// Store persists datasets in SQLite.
type Store struct {
	db   *sql.DB
	dir  string
	path string

	// writeMu orders local writes against external-change detection.
	writeMu sync.Mutex

	mu       sync.Mutex
	versions map[string]int64
	subs     map[int]func(Change)
	nextSub  int
}

// Open opens (or creates) the store at dir/liftlog.db.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, FileName)
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening local store: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS datasets (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		version    INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating datasets table: %w", err)
	}

	s := &Store{
		db:   db,
		dir:  dir,
		path: path,
		subs: make(map[int]func(Change)),
	}
	if s.versions, err = s.loadVersions(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Get decodes the dataset stored under key into v. It reports false when
// the key is absent, leaving v untouched.
func (s *Store) Get(key string, v any) (bool, error) {
	raw, ok, err := s.GetRaw(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

// GetRaw returns the stored JSON for key.
func (s *Store) GetRaw(key string) (json.RawMessage, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM datasets WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", key, err)
	}
	return json.RawMessage(value), true, nil
}

// Set encodes v as JSON, stores it under key and notifies subscribers.
func (s *Store) Set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return s.SetRaw(key, data)
}

// SetRaw stores already-encoded JSON under key.
func (s *Store) SetRaw(key string, data json.RawMessage) error {
	if !json.Valid(data) {
		return fmt.Errorf("writing %s: invalid JSON", key)
	}
	s.writeMu.Lock()
	version := time.Now().UnixNano()
	_, err := s.db.Exec(
		`INSERT INTO datasets (key, value, version) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, version = excluded.version`,
		key, string(data), version,
	)
	if err == nil {
		s.mu.Lock()
		s.versions[key] = version
		s.mu.Unlock()
	}
	s.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}

	s.notify(Change{Key: key})
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (s *Store) Remove(key string) error {
	s.writeMu.Lock()
	res, err := s.db.Exec(`DELETE FROM datasets WHERE key = ?`, key)
	if err == nil {
		s.mu.Lock()
		delete(s.versions, key)
		s.mu.Unlock()
	}
	s.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("removing %s: %w", key, err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		s.notify(Change{Key: key, Removed: true})
	}
	return nil
}

// Keys lists the stored keys in lexical order.
func (s *Store) Keys() ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM datasets ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Subscribe registers fn to be called after every change. Calls happen on
// the writing goroutine. The returned func removes the subscription.
func (s *Store) Subscribe(fn func(Change)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(c Change) {
	s.mu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) loadVersions() (map[string]int64, error) {
	rows, err := s.db.Query(`SELECT key, version FROM datasets`)
	if err != nil {
		return nil, fmt.Errorf("loading versions: %w", err)
	}
	defer rows.Close()

	versions := make(map[string]int64)
	for rows.Next() {
		var k string
		var v int64
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		versions[k] = v
	}
	return versions, rows.Err()
}

// syncExternal diffs the on-disk versions against the last known ones and
// notifies subscribers of every key another process touched.
func (s *Store) syncExternal() error {
	s.writeMu.Lock()
	current, err := s.loadVersions()
	if err != nil {
		s.writeMu.Unlock()
		return err
	}

	var changes []Change
	s.mu.Lock()
	for k, v := range current {
		if s.versions[k] != v {
			changes = append(changes, Change{Key: k, External: true})
		}
	}
	for k := range s.versions {
		if _, ok := current[k]; !ok {
			changes = append(changes, Change{Key: k, Removed: true, External: true})
		}
	}
	s.versions = current
	s.mu.Unlock()
	s.writeMu.Unlock()

	for _, c := range changes {
		s.notify(c)
	}
	return nil
}

// WatchExternal blocks until ctx is done, notifying subscribers of changes
// made to the same database by other processes.
func (s *Store) WatchExternal(ctx context.Context) error {
	w, err := newWatcher(s.dir)
	if err != nil {
		return err
	}
	defer w.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-w.errors():
			return fmt.Errorf("watching %s: %w", s.dir, err)
		case <-w.events():
			if err := s.syncExternal(); err != nil {
				return err
			}
		}
	}
}
