package testutils

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/VoidMesh/voxelstore/internal/chunk"
	"github.com/VoidMesh/voxelstore/internal/db"
	"github.com/VoidMesh/voxelstore/internal/world"
)

// Op is a store call recorded by MemoryStore.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
)

// Call is one recorded write.
type Call struct {
	Op    Op
	Coord chunk.Coord
}

// MemoryStore implements world.Store in memory and records every write it is
// asked to perform. Transactions are serialized and applied atomically.
type MemoryStore struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	rows  map[chunk.Coord][]byte
	calls []Call

	// FailOn makes a write to the coordinate fail with the given error.
	failOn map[chunk.Coord]error
	// txErr makes the next WithTx fail before running.
	txErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:   make(map[chunk.Coord][]byte),
		failOn: make(map[chunk.Coord]error),
	}
}

// FailWritesTo makes every write to coord fail with err until cleared with a
// nil err.
func (s *MemoryStore) FailWritesTo(coord chunk.Coord, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failOn, coord)
		return
	}
	s.failOn[coord] = err
}

// FailNextTx makes the next transaction fail to begin with err.
func (s *MemoryStore) FailNextTx(err error) {
	s.mu.Lock()
	s.txErr = err
	s.mu.Unlock()
}

// Put stores a row directly, bypassing call recording.
func (s *MemoryStore) Put(coord chunk.Coord, data []byte) {
	s.mu.Lock()
	s.rows[coord] = data
	s.mu.Unlock()
}

// Row returns the stored payload for coord.
func (s *MemoryStore) Row(coord chunk.Coord) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.rows[coord]
	return data, ok
}

// Len returns the number of stored rows.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// Calls returns every write attempted so far, in order.
func (s *MemoryStore) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsFor returns the writes attempted for coord.
func (s *MemoryStore) CallsFor(coord chunk.Coord) []Op {
	var ops []Op
	for _, c := range s.Calls() {
		if c.Coord == coord {
			ops = append(ops, c.Op)
		}
	}
	return ops
}

// ResetCalls forgets the recorded writes.
func (s *MemoryStore) ResetCalls() {
	s.mu.Lock()
	s.calls = nil
	s.mu.Unlock()
}

func (s *MemoryStore) SelectOne(ctx context.Context, coord chunk.Coord) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.rows[coord]
	return data, ok, nil
}

func (s *MemoryStore) SelectByColumn(ctx context.Context, x, z int32) ([]db.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return selectColumn(s.rows, x, z), nil
}

func (s *MemoryStore) ExistsAny(ctx context.Context, x, z int32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(selectColumn(s.rows, x, z)) > 0, nil
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx world.ReadWriter) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	if err := s.txErr; err != nil {
		s.txErr = nil
		s.mu.Unlock()
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	staged := make(map[chunk.Coord][]byte, len(s.rows))
	for k, v := range s.rows {
		staged[k] = v
	}
	s.mu.Unlock()

	tx := &memoryTx{store: s, rows: staged}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.rows = staged
	s.mu.Unlock()
	return nil
}

type memoryTx struct {
	store *MemoryStore
	rows  map[chunk.Coord][]byte
}

func (tx *memoryTx) record(op Op, coord chunk.Coord) error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	tx.store.calls = append(tx.store.calls, Call{Op: op, Coord: coord})
	return tx.store.failOn[coord]
}

func (tx *memoryTx) Insert(ctx context.Context, coord chunk.Coord, data []byte) error {
	if err := tx.record(OpInsert, coord); err != nil {
		return err
	}
	if _, ok := tx.rows[coord]; ok {
		return fmt.Errorf("insert %v: %w", coord, db.ErrDuplicateKey)
	}
	tx.rows[coord] = data
	return nil
}

func (tx *memoryTx) Update(ctx context.Context, coord chunk.Coord, data []byte) error {
	if err := tx.record(OpUpdate, coord); err != nil {
		return err
	}
	if _, ok := tx.rows[coord]; !ok {
		return fmt.Errorf("update %v: %w", coord, db.ErrNotFound)
	}
	tx.rows[coord] = data
	return nil
}

func (tx *memoryTx) SelectOne(ctx context.Context, coord chunk.Coord) ([]byte, bool, error) {
	data, ok := tx.rows[coord]
	return data, ok, nil
}

func (tx *memoryTx) SelectByColumn(ctx context.Context, x, z int32) ([]db.Record, error) {
	return selectColumn(tx.rows, x, z), nil
}

func (tx *memoryTx) ExistsAny(ctx context.Context, x, z int32) (bool, error) {
	return len(selectColumn(tx.rows, x, z)) > 0, nil
}

func selectColumn(rows map[chunk.Coord][]byte, x, z int32) []db.Record {
	var records []db.Record
	for coord, data := range rows {
		if coord.X == x && coord.Z == z {
			records = append(records, db.Record{Coord: coord, Data: data})
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Coord.Y < records[j].Coord.Y })
	return records
}

// CountingGenerator builds a single ground-level chunk per column and
// remembers which columns it was asked for.
type CountingGenerator struct {
	mu      sync.Mutex
	columns []chunk.Coord
	Fill    chunk.ItemType
	Err     error
}

func (g *CountingGenerator) GenerateChunks(ctx context.Context, origin chunk.Coord, sink world.ChunkSink) error {
	g.mu.Lock()
	g.columns = append(g.columns, origin)
	g.mu.Unlock()

	if g.Err != nil {
		return g.Err
	}

	c := chunk.New(origin)
	if g.Fill != chunk.Air {
		c.Fill(chunk.Position{}, chunk.Position{X: chunk.Size, Y: 1, Z: chunk.Size}, chunk.Block{Type: g.Fill})
	}
	return sink.AddChunk(c)
}

// Columns returns the origins requested so far.
func (g *CountingGenerator) Columns() []chunk.Coord {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]chunk.Coord(nil), g.columns...)
}

// Reset forgets the requested origins.
func (g *CountingGenerator) Reset() {
	g.mu.Lock()
	g.columns = nil
	g.mu.Unlock()
}

// TestWorld represents a test world backed by a temporary SQLite save
type TestWorld struct {
	Store    *db.Store
	Codec    *chunk.Codec
	Manager  *world.Manager
	Location string
}

// CreateTestWorld opens a fresh save location in a temporary directory
func CreateTestWorld(t *testing.T, opts world.Options) *TestWorld {
	t.Helper()

	location := t.TempDir()
	store, err := db.NewRegistry().Open(location, db.Options{})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}

	codec, err := chunk.NewCodec()
	if err != nil {
		store.Close()
		t.Fatalf("Failed to create codec: %v", err)
	}

	return &TestWorld{
		Store:    store,
		Codec:    codec,
		Manager:  world.NewManager(world.StoreAdapter{Store: store}, codec, opts),
		Location: location,
	}
}

// Cleanup closes the store and codec
func (tw *TestWorld) Cleanup() {
	tw.Codec.Close()
	tw.Store.Close()
}

// StoredChunk decodes the stored row for coord, failing the test if it is
// missing or corrupt.
func (tw *TestWorld) StoredChunk(t *testing.T, coord chunk.Coord) *chunk.Chunk {
	t.Helper()

	data, ok, err := tw.Store.SelectOne(context.Background(), coord)
	if err != nil {
		t.Fatalf("Failed to select %v: %v", coord, err)
	}
	if !ok {
		t.Fatalf("No stored row for %v", coord)
	}
	c, err := tw.Codec.Decode(data)
	if err != nil {
		t.Fatalf("Failed to decode %v: %v", coord, err)
	}
	return c
}
