// Package store persists activation flags and other small settings in a
// SQLite key/value table and notifies subscribers when values change.
//
// Writes made through the Store notify subscribers right after commit.
// Writes made by another process (the CLI flipping a flag while a
// browser session runs) are picked up by Watch, which polls a revision
// counter. Each change is delivered once whichever path sees it first.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/linkguard/internal/dbopen"
	"github.com/hazyhaar/linkguard/internal/watch"
)

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	rev        INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Change is the transition of one key. A missing side is nil.
type Change struct {
	OldValue any `json:"old_value"`
	NewValue any `json:"new_value"`
}

// Bool reads NewValue as a flag; anything but true is false.
func (c Change) Bool() bool {
	b, _ := c.NewValue.(bool)
	return b
}

// Changes maps keys to their transition within one write.
type Changes map[string]Change

// Listener receives changes. It runs synchronously on the writing
// goroutine and must neither block nor call back into the Store.
type Listener func(Changes)

// Options configures Open.
type Options struct {
	// PollInterval is the cross-process polling period of Watch.
	// Default: 200ms.
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Store is safe for concurrent use.
type Store struct {
	db     *sql.DB
	owned  bool
	opts   Options
	logger *slog.Logger

	// mu serialises writes, reloads and notifications so subscribers see
	// changes in commit order.
	mu   sync.Mutex
	snap map[string]string

	subMu sync.Mutex
	subs  map[int]Listener
	seq   int
}

// Open opens or creates the store at path.
func Open(path string, opts Options) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(schema))
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	s, err := newStore(db, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// OpenMemory opens a private in-memory store closed at test end.
func OpenMemory(tb testing.TB) *Store {
	tb.Helper()
	db := dbopen.OpenMemory(tb, dbopen.WithSchema(schema))
	s, err := newStore(db, Options{PollInterval: 10 * time.Millisecond})
	if err != nil {
		tb.Fatalf("store.OpenMemory: %v", err)
	}
	return s
}

func newStore(db *sql.DB, opts Options) (*Store, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 200 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Store{db: db, opts: opts, logger: opts.Logger, subs: make(map[int]Listener)}
	snap, err := s.load(context.Background())
	if err != nil {
		return nil, err
	}
	s.snap = snap
	return s, nil
}

// Close releases the database when the Store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

func (s *Store) load(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM kv")
	if err != nil {
		return nil, fmt.Errorf("store: load: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Get returns the decoded values of keys. Missing keys are absent from
// the result.
func (s *Store) Get(ctx context.Context, keys ...string) (map[string]any, error) {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		var raw string
		err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", k).Scan(&raw)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("store: get %s: %w", k, err)
		}
		out[k] = decode(raw)
	}
	return out, nil
}

// All returns every stored value.
func (s *Store) All(ctx context.Context) (map[string]any, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(snap))
	for k, v := range snap {
		out[k] = decode(v)
	}
	return out, nil
}

// Bool reads a flag; a missing key is false.
func (s *Store) Bool(ctx context.Context, key string) (bool, error) {
	vals, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	b, _ := vals[key].(bool)
	return b, nil
}

// SetBool writes one flag.
func (s *Store) SetBool(ctx context.Context, key string, v bool) error {
	return s.Set(ctx, map[string]any{key: v})
}

// Set writes values in one transaction and notifies subscribers of the
// keys whose value actually changed.
func (s *Store) Set(ctx context.Context, values map[string]any) error {
	encoded := make(map[string]string, len(values))
	for k, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("store: encode %s: %w", k, err)
		}
		encoded[k] = string(b)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		var rev int64
		if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(rev), 0) + 1 FROM kv").Scan(&rev); err != nil {
			return fmt.Errorf("store: next rev: %w", err)
		}
		for _, k := range slices.Sorted(maps.Keys(encoded)) {
			_, err := tx.ExecContext(ctx, `INSERT INTO kv (key, value, rev, updated_at) VALUES (?, ?, ?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value, rev = excluded.rev, updated_at = excluded.updated_at`,
				k, encoded[k], rev, now)
			if err != nil {
				return fmt.Errorf("store: upsert %s: %w", k, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	next := maps.Clone(s.snap)
	maps.Copy(next, encoded)
	s.apply(next)
	return nil
}

// apply diffs next against the snapshot, installs it and notifies.
// Caller holds s.mu.
func (s *Store) apply(next map[string]string) {
	changes := make(Changes)
	for k, v := range next {
		old, ok := s.snap[k]
		if ok && old == v {
			continue
		}
		c := Change{NewValue: decode(v)}
		if ok {
			c.OldValue = decode(old)
		}
		changes[k] = c
	}
	for k, old := range s.snap {
		if _, ok := next[k]; !ok {
			changes[k] = Change{OldValue: decode(old)}
		}
	}
	s.snap = next
	if len(changes) == 0 {
		return
	}

	s.subMu.Lock()
	subs := slices.Collect(maps.Values(s.subs))
	s.subMu.Unlock()
	for _, fn := range subs {
		fn(changes)
	}
}

// Subscribe registers fn. The returned function unregisters it.
func (s *Store) Subscribe(fn Listener) (cancel func()) {
	s.subMu.Lock()
	s.seq++
	id := s.seq
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// Reload re-reads the table and notifies subscribers of differences.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.load(ctx)
	if err != nil {
		return err
	}
	s.apply(next)
	return nil
}

// Watch polls for writes from other processes until ctx ends.
func (s *Store) Watch(ctx context.Context) {
	w := watch.New(s.db, watch.Options{
		Interval: s.opts.PollInterval,
		Detector: watch.MaxColumn("kv", "rev"),
		Logger:   s.logger,
	})
	w.OnChange(ctx, func() error { return s.Reload(ctx) })
}

func decode(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}
