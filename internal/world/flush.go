package world

import (
	"context"
	"fmt"
	"time"

	"github.com/VoidMesh/voxelstore/internal/chunk"
	"github.com/charmbracelet/log"
)

// Stats describes the cache contents and flush history.
type Stats struct {
	New       int `json:"new"`
	Changed   int `json:"changed"`
	Unchanged int `json:"unchanged"`

	Flushes       int64     `json:"flushes"`
	FailedFlushes int64     `json:"failed_flushes"`
	Inserted      int64     `json:"inserted"`
	Updated       int64     `json:"updated"`
	LastFlush     time.Time `json:"last_flush"`
	LastError     string    `json:"last_error,omitempty"`
}

// Stats returns a snapshot of the cache counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stats
	for _, e := range m.entries {
		switch e.state {
		case StateNew:
			s.New++
		case StateChanged:
			s.Changed++
		default:
			s.Unchanged++
		}
	}
	return s
}

// pendingWrite is a snapshot of one cache entry taken at the start of a flush.
type pendingWrite struct {
	coord   chunk.Coord
	state   State
	version uint64
	data    []byte
}

// Flush writes every New chunk (insert) and every Changed chunk (update) to
// the store in one transaction. On success the flushed and unchanged entries
// are evicted, so later reads come from the store. Entries mutated while the
// flush was running stay cached and pending.
//
// On failure the cache is left exactly as it was and the same writes are
// attempted again by the next flush. Only one flush runs at a time.
func (m *Manager) Flush(ctx context.Context) error {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	start := time.Now()
	writes, snapshot := m.snapshot()
	if len(writes) == 0 && len(snapshot) == 0 {
		log.Debug("Nothing to flush")
		return nil
	}

	inserted, updated := 0, 0
	err := m.store.WithTx(ctx, func(tx ReadWriter) error {
		for _, w := range writes {
			if err := ctx.Err(); err != nil {
				return err
			}
			switch w.state {
			case StateNew:
				if err := tx.Insert(ctx, w.coord, w.data); err != nil {
					return fmt.Errorf("failed to insert new chunk: %w", err)
				}
				inserted++
			case StateChanged:
				if err := tx.Update(ctx, w.coord, w.data); err != nil {
					return fmt.Errorf("failed to update changed chunk: %w", err)
				}
				updated++
			}
		}
		return nil
	})
	if err != nil {
		m.mu.Lock()
		m.stats.FailedFlushes++
		m.stats.LastError = err.Error()
		m.mu.Unlock()
		log.Error("failed to flush chunks", "error", err, "pending", len(writes), "duration", time.Since(start))
		return fmt.Errorf("failed to flush chunks: %w", err)
	}

	evicted, retained := m.evictFlushed(snapshot, inserted, updated)
	log.Info("Flushed chunks",
		"inserted", inserted,
		"updated", updated,
		"evicted", evicted,
		"retained", retained,
		"duration", time.Since(start),
	)
	return nil
}

// snapshot encodes every pending entry and records the version of every
// cached entry.
func (m *Manager) snapshot() ([]pendingWrite, map[chunk.Coord]pendingWrite) {
	m.mu.Lock()
	defer m.mu.Unlock()

	writes := make([]pendingWrite, 0)
	snapshot := make(map[chunk.Coord]pendingWrite, len(m.entries))
	for coord, e := range m.entries {
		w := pendingWrite{coord: coord, state: e.state, version: e.version}
		if e.state != StateUnchanged {
			w.data = m.codec.Encode(e.chunk)
			writes = append(writes, w)
		}
		snapshot[coord] = w
	}
	return writes, snapshot
}

// evictFlushed drops every entry that still matches the snapshot. An entry
// touched after the snapshot stays cached; if it was New its row now exists,
// so it becomes Changed.
func (m *Manager) evictFlushed(snapshot map[chunk.Coord]pendingWrite, inserted, updated int) (evicted, retained int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for coord, w := range snapshot {
		e, ok := m.entries[coord]
		if !ok {
			continue
		}
		if e.version == w.version {
			m.evictLocked(coord, e)
			evicted++
			continue
		}
		if w.state == StateNew {
			m.setStateLocked(coord, e, StateChanged)
		}
		retained++
	}

	m.stats.Flushes++
	m.stats.LastFlush = time.Now()
	m.stats.LastError = ""
	m.stats.Inserted += int64(inserted)
	m.stats.Updated += int64(updated)
	return evicted, retained
}
