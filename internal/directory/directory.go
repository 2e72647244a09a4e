package directory

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Directory.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Snapshot is an immutable identifier -> address table.
// The zero value is an empty snapshot.
type Snapshot struct {
	entries     map[string]string
	refreshedAt time.Time
}

// NewSnapshot copies entries into a new Snapshot stamped with at.
func NewSnapshot(entries map[string]string, at time.Time) Snapshot {
	out := make(map[string]string, len(entries))
	maps.Copy(out, entries)
	return Snapshot{entries: out, refreshedAt: at}
}

// Lookup returns the address for id.
func (s Snapshot) Lookup(id string) (string, bool) {
	addr, ok := s.entries[id]
	return addr, ok
}

// Len returns the number of identifiers in the snapshot.
func (s Snapshot) Len() int {
	return len(s.entries)
}

// Entries returns a copy of the table.
func (s Snapshot) Entries() map[string]string {
	out := make(map[string]string, len(s.entries))
	maps.Copy(out, s.entries)
	return out
}

// RefreshedAt returns when the snapshot was read from the store.
// It is the zero time for a directory that has never refreshed.
func (s Snapshot) RefreshedAt() time.Time {
	return s.refreshedAt
}

// Directory holds the current Snapshot and rebuilds it from a Store.
//
// All public methods are thread-safe.
type Directory struct {
	store  Store
	prefix string

	mu      sync.RWMutex // Protects current
	current Snapshot

	refreshMu sync.Mutex // Serialises store reads
	logger    Logger
	now       func() time.Time
}

// New creates a directory reading entries under prefix from store.
// It starts empty; call Refresh before serving lookups.
func New(store Store, prefix string) *Directory {
	return &Directory{
		store:  store,
		prefix: prefix,
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for the directory.
func (d *Directory) SetLogger(logger Logger) {
	d.logger = logger
}

// Prefix returns the key prefix the directory reads.
func (d *Directory) Prefix() string {
	return d.prefix
}

// Snapshot returns the current snapshot. Callers resolving one message
// should take it once and use it throughout.
func (d *Directory) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current
}

// Refresh reads the store and replaces the current snapshot wholesale.
//
// On error the previous snapshot is kept and returned alongside a wrapped
// ErrStoreRead.
func (d *Directory) Refresh(ctx context.Context) (Snapshot, error) {
	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()

	start := d.now()
	entries, err := d.store.List(ctx, d.prefix)
	metricRefreshDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metricRefreshTotal.WithLabelValues("error").Inc()
		return d.Snapshot(), fmt.Errorf("%w: %w", ErrStoreRead, err)
	}

	next := NewSnapshot(entries, d.now())

	d.mu.Lock()
	d.current = next
	d.mu.Unlock()

	metricRefreshTotal.WithLabelValues("success").Inc()
	metricEntries.Set(float64(next.Len()))
	d.logger.Debug("directory refreshed", "prefix", d.prefix, "entries", next.Len())

	return next, nil
}

// Run refreshes the directory every interval until ctx is cancelled.
// Failures are logged and retried on the next tick.
func (d *Directory) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				d.logger.Warn("directory refresh failed, keeping previous snapshot",
					"prefix", d.prefix,
					"error", err,
				)
			}
		}
	}
}
