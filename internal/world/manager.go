package world

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/VoidMesh/voxelstore/internal/chunk"
	"github.com/VoidMesh/voxelstore/internal/db"
	"github.com/charmbracelet/log"
)

// ErrChunkExists is returned by AddChunk when the coordinate is already cached.
var ErrChunkExists = errors.New("chunk already cached")

// State is the cache partition a chunk belongs to.
type State int

const (
	// StateUnchanged chunks match their stored row.
	StateUnchanged State = iota
	// StateNew chunks were created this session and have no stored row yet.
	StateNew
	// StateChanged chunks have a stored row and were mutated since the last flush.
	StateChanged
)

func (s State) String() string {
	switch s {
	case StateUnchanged:
		return "unchanged"
	case StateNew:
		return "new"
	case StateChanged:
		return "changed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Reader is the read side of the chunk store.
type Reader interface {
	SelectOne(ctx context.Context, coord chunk.Coord) ([]byte, bool, error)
	SelectByColumn(ctx context.Context, x, z int32) ([]db.Record, error)
	ExistsAny(ctx context.Context, x, z int32) (bool, error)
}

// Writer is the write side of the chunk store.
type Writer interface {
	Insert(ctx context.Context, coord chunk.Coord, data []byte) error
	Update(ctx context.Context, coord chunk.Coord, data []byte) error
}

// ReadWriter is a transactional view of the chunk store.
type ReadWriter interface {
	Reader
	Writer
}

// Store is the durable chunk table the manager writes back to. *db.Store
// satisfies it through StoreAdapter.
type Store interface {
	Reader
	WithTx(ctx context.Context, fn func(tx ReadWriter) error) error
}

// StoreAdapter exposes a *db.Store as a Store.
type StoreAdapter struct {
	*db.Store
}

func (a StoreAdapter) WithTx(ctx context.Context, fn func(tx ReadWriter) error) error {
	return a.Store.WithTx(ctx, func(tx *db.Tx) error {
		return fn(tx)
	})
}

type entry struct {
	chunk   *chunk.Chunk
	state   State
	version uint64
}

// columnKey identifies a stack of chunks by its horizontal chunk origin.
type columnKey struct {
	x, z int32
}

func columnOf(coord chunk.Coord) columnKey {
	return columnKey{x: coord.X, z: coord.Z}
}

// Snapshot is a copy of a cached chunk and its state, taken under the cache
// lock. It is safe to read while the cache keeps changing.
type Snapshot struct {
	Chunk *chunk.Chunk
	State State
}

// Manager is the write-back chunk cache for one world. It owns every
// in-memory chunk; the store and codec only ever see byte payloads.
//
// Each coordinate is cached at most once and carries exactly one State. All
// state changes go through setStateLocked.
//
// Chunks returned by Get, GetChunk and Column are the cached objects
// themselves; they may only be read by the goroutine that mutates the world.
// Concurrent readers use BlockAt, Snapshot and ColumnSnapshots.
type Manager struct {
	store  Store
	codec  *chunk.Codec
	radius int32

	mu      sync.Mutex
	entries map[chunk.Coord]*entry
	// newColumns counts the New entries of every column.
	newColumns map[columnKey]int
	stats      Stats

	flushMu sync.Mutex
	genMu   sync.Mutex
}

// Options configure a Manager.
type Options struct {
	// BufferRadius is the horizontal generation radius in chunks.
	BufferRadius int
}

func NewManager(store Store, codec *chunk.Codec, opts Options) *Manager {
	return &Manager{
		store:      store,
		codec:      codec,
		radius:     int32(opts.BufferRadius),
		entries:    make(map[chunk.Coord]*entry),
		newColumns: make(map[columnKey]int),
	}
}

// AddChunk caches a freshly created chunk as New.
func (m *Manager) AddChunk(c *chunk.Chunk) error {
	coord := c.Coordinate()

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[coord]; ok {
		return fmt.Errorf("%w: %v is %s", ErrChunkExists, coord, e.state)
	}
	m.entries[coord] = &entry{chunk: c, state: StateNew}
	m.newColumns[columnOf(coord)]++
	log.Debug("Added new chunk", "chunk_x", coord.X, "chunk_y", coord.Y, "chunk_z", coord.Z)
	return nil
}

// Get returns the chunk containing pos, loading it from the store on a cache
// miss. It returns nil without error when the chunk exists nowhere. A stored
// payload that fails to decode is returned as an error wrapping
// chunk.ErrCorruptData.
func (m *Manager) Get(ctx context.Context, pos chunk.Position) (*chunk.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(ctx, chunk.CoordOf(pos))
}

// GetChunk is Get for a chunk coordinate.
func (m *Manager) GetChunk(ctx context.Context, coord chunk.Coord) (*chunk.Chunk, error) {
	return m.Get(ctx, coord.Position())
}

func (m *Manager) getLocked(ctx context.Context, coord chunk.Coord) (*chunk.Chunk, error) {
	if e, ok := m.entries[coord]; ok {
		return e.chunk, nil
	}

	data, ok, err := m.store.SelectOne(ctx, coord)
	if err != nil {
		return nil, fmt.Errorf("failed to load %v: %w", coord, err)
	}
	if !ok {
		return nil, nil
	}

	return m.cacheLoadedLocked(coord, data)
}

func (m *Manager) cacheLoadedLocked(coord chunk.Coord, data []byte) (*chunk.Chunk, error) {
	c, err := m.codec.Decode(data)
	if err != nil {
		log.Error("failed to decode stored chunk", "error", err, "chunk_x", coord.X, "chunk_y", coord.Y, "chunk_z", coord.Z)
		return nil, fmt.Errorf("failed to load %v: %w", coord, err)
	}
	if c.Coordinate() != coord {
		log.Error("stored chunk has wrong coordinate", "chunk_x", coord.X, "chunk_y", coord.Y, "chunk_z", coord.Z, "payload_coord", c.Coordinate())
		return nil, fmt.Errorf("failed to load %v: %w: payload holds %v", coord, chunk.ErrCorruptData, c.Coordinate())
	}

	m.entries[coord] = &entry{chunk: c, state: StateUnchanged}
	log.Debug("Loaded chunk from store", "chunk_x", coord.X, "chunk_y", coord.Y, "chunk_z", coord.Z)
	return c, nil
}

// Column returns every chunk sharing the horizontal position of pos, ordered
// by height. Stored chunks are loaded into the cache as Unchanged unless they
// are already cached; unflushed New chunks of the column are included.
func (m *Manager) Column(ctx context.Context, pos chunk.Position) ([]*chunk.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.columnLocked(ctx, chunk.CoordOf(pos))
}

func (m *Manager) columnLocked(ctx context.Context, origin chunk.Coord) ([]*chunk.Chunk, error) {
	records, err := m.store.SelectByColumn(ctx, origin.X, origin.Z)
	if err != nil {
		return nil, fmt.Errorf("failed to load column (%d, %d): %w", origin.X, origin.Z, err)
	}

	seen := make(map[chunk.Coord]bool, len(records))
	column := make([]*chunk.Chunk, 0, len(records))
	for _, rec := range records {
		seen[rec.Coord] = true
		if e, ok := m.entries[rec.Coord]; ok {
			column = append(column, e.chunk)
			continue
		}
		c, err := m.cacheLoadedLocked(rec.Coord, rec.Data)
		if err != nil {
			return nil, err
		}
		column = append(column, c)
	}

	for coord, e := range m.entries {
		if coord.X == origin.X && coord.Z == origin.Z && !seen[coord] {
			column = append(column, e.chunk)
		}
	}

	sort.Slice(column, func(i, j int) bool {
		return column[i].Coordinate().Y < column[j].Coordinate().Y
	})
	return column, nil
}

// BlockAt returns the block at pos; ok is false when no chunk holds pos.
func (m *Manager) BlockAt(ctx context.Context, pos chunk.Position) (block chunk.Block, ok bool, err error) {
	coord := chunk.CoordOf(pos)

	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.getLocked(ctx, coord)
	if err != nil || c == nil {
		return chunk.Block{}, false, err
	}
	return c.BlockAt(coord.Local(pos)), true, nil
}

// Snapshot returns a copy of the chunk containing pos together with its
// cache state; ok is false when the chunk exists nowhere.
func (m *Manager) Snapshot(ctx context.Context, pos chunk.Position) (snap Snapshot, ok bool, err error) {
	coord := chunk.CoordOf(pos)

	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.getLocked(ctx, coord)
	if err != nil || c == nil {
		return Snapshot{}, false, err
	}
	return Snapshot{Chunk: c.Clone(), State: m.entries[coord].state}, true, nil
}

// ColumnSnapshots is Column returning copies of the chunks with their states.
func (m *Manager) ColumnSnapshots(ctx context.Context, pos chunk.Position) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	column, err := m.columnLocked(ctx, chunk.CoordOf(pos))
	if err != nil {
		return nil, err
	}
	snaps := make([]Snapshot, len(column))
	for i, c := range column {
		snaps[i] = Snapshot{Chunk: c.Clone(), State: m.entries[c.Coordinate()].state}
	}
	return snaps, nil
}

// SetBlock places block at pos and marks the owning chunk as needing a write
// back. It returns the replaced block; ok is false when no chunk holds pos.
func (m *Manager) SetBlock(ctx context.Context, pos chunk.Position, block chunk.Block) (old chunk.Block, ok bool, err error) {
	coord := chunk.CoordOf(pos)

	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.getLocked(ctx, coord)
	if err != nil || c == nil {
		return chunk.Block{}, false, err
	}

	local := coord.Local(pos)
	old = c.BlockAt(local)
	c.SetBlockAt(local, block)
	m.promoteLocked(coord, StateChanged)
	return old, true, nil
}

// SetBlockType places a fresh block of type t at pos without marking the
// owning chunk as changed, and returns the chunk (nil when no chunk holds
// pos).
//
// This is the batched placement path. The caller is responsible for dirtying
// the chunk through SetBlock or MarkChanged when the placement must survive;
// otherwise the mutation is persisted only if something else dirties the
// chunk before a flush evicts it.
func (m *Manager) SetBlockType(ctx context.Context, pos chunk.Position, t chunk.ItemType) (*chunk.Chunk, error) {
	coord := chunk.CoordOf(pos)

	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.getLocked(ctx, coord)
	if err != nil || c == nil {
		return nil, err
	}

	c.SetTypeAt(coord.Local(pos), t)
	if e := m.entries[coord]; e != nil {
		e.version++
	}
	return c, nil
}

// MarkChanged schedules the cached chunk at coord for write back. It reports
// false when the chunk is not cached.
func (m *Manager) MarkChanged(coord chunk.Coord) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[coord]; !ok {
		return false
	}
	m.promoteLocked(coord, StateChanged)
	return true
}

// State returns the partition coord is cached in.
func (m *Manager) State(coord chunk.Coord) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[coord]
	if !ok {
		return 0, false
	}
	return e.state, true
}

// promoteLocked records a mutation of coord and moves it into state. New
// chunks stay New: they have no row yet, so they are inserted with their
// latest contents either way.
func (m *Manager) promoteLocked(coord chunk.Coord, state State) {
	e, ok := m.entries[coord]
	if !ok {
		return
	}
	e.version++
	if e.state == StateNew && state == StateChanged {
		return
	}
	m.setStateLocked(coord, e, state)
}

// setStateLocked is the only place an entry changes state once cached.
func (m *Manager) setStateLocked(coord chunk.Coord, e *entry, state State) {
	if e.state == state {
		return
	}
	col := columnOf(coord)
	if e.state == StateNew {
		if m.newColumns[col]--; m.newColumns[col] <= 0 {
			delete(m.newColumns, col)
		}
	}
	if state == StateNew {
		m.newColumns[col]++
	}
	e.state = state
}

// evictLocked drops coord from the cache.
func (m *Manager) evictLocked(coord chunk.Coord, e *entry) {
	m.setStateLocked(coord, e, StateUnchanged)
	delete(m.entries, coord)
}

// hasNewInColumnLocked reports whether an unflushed chunk occupies x/z.
func (m *Manager) hasNewInColumnLocked(x, z int32) bool {
	return m.newColumns[columnKey{x: x, z: z}] > 0
}
