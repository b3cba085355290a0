package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/VoidMesh/voxelstore/internal/chunk"
	"github.com/charmbracelet/log"
)

// Record is one durable chunk row.
type Record struct {
	Coord chunk.Coord
	Data  []byte
}

// Store is a key-addressed blob table of chunk payloads for one save
// location. Payload bytes are never inspected. Stores are shared and
// reference counted through a Registry; see Open.
type Store struct {
	chunkOps

	sqlDB    *sql.DB
	location string
	path     string

	registry *Registry
	refs     int // guarded by registry.mu
	closed   atomic.Bool
}

// Tx is a transactional view of a Store. All reads and writes made through a
// Tx commit or roll back together.
type Tx struct {
	chunkOps
}

// chunkOps implements the chunk operations shared by Store and Tx.
type chunkOps struct {
	queries  *LoggingQueries
	isClosed func() bool
}

// Location returns the save location the store was opened for.
func (s *Store) Location() string {
	return s.location
}

// Path returns the database file backing the store.
func (s *Store) Path() string {
	return s.path
}

// Close releases this reference to the store. The underlying connection is
// closed when the last reference is released. Each handle returned by Open
// must be closed exactly once.
func (s *Store) Close() error {
	return s.registry.release(s)
}

// WithTx runs fn inside one serializable transaction. The transaction is
// committed when fn returns nil and rolled back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	if s.closed.Load() {
		return ErrClosed
	}

	start := time.Now()
	sqlTx, err := s.sqlDB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", ctxErr)
		}
		return fmt.Errorf("failed to begin transaction: %w: %w", ErrStorageUnavailable, err)
	}
	defer sqlTx.Rollback()

	tx := &Tx{chunkOps: chunkOps{queries: s.queries.WithTx(sqlTx), isClosed: s.closed.Load}}
	if err := fn(tx); err != nil {
		log.Debug("Rolling back chunk transaction", "error", err, "duration", time.Since(start))
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return classify("failed to commit transaction", err)
	}
	log.Debug("Committed chunk transaction", "duration", time.Since(start))
	return nil
}

// Count returns the number of stored chunk rows.
func (s *Store) Count(ctx context.Context) (int64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	n, err := s.queries.CountChunks(ctx)
	if err != nil {
		return 0, classify("failed to count chunks", err)
	}
	return n, nil
}

// Insert stores a new row for coord. It fails with ErrDuplicateKey when a row
// already exists; callers only insert chunks known to be new.
func (o chunkOps) Insert(ctx context.Context, coord chunk.Coord, data []byte) error {
	if o.isClosed() {
		return ErrClosed
	}
	err := o.queries.InsertChunk(ctx, InsertChunkParams{
		X:    int64(coord.X),
		Y:    int64(coord.Y),
		Z:    int64(coord.Z),
		Data: data,
	})
	if err != nil {
		return classify(fmt.Sprintf("failed to insert %v", coord), err)
	}
	return nil
}

// Update overwrites the row for coord. It fails with ErrNotFound when there
// is no such row.
func (o chunkOps) Update(ctx context.Context, coord chunk.Coord, data []byte) error {
	if o.isClosed() {
		return ErrClosed
	}
	affected, err := o.queries.UpdateChunk(ctx, UpdateChunkParams{
		Data: data,
		X:    int64(coord.X),
		Y:    int64(coord.Y),
		Z:    int64(coord.Z),
	})
	if err != nil {
		return classify(fmt.Sprintf("failed to update %v", coord), err)
	}
	if affected == 0 {
		return fmt.Errorf("failed to update %v: %w", coord, ErrNotFound)
	}
	return nil
}

// SelectOne returns the payload stored for coord, if any.
func (o chunkOps) SelectOne(ctx context.Context, coord chunk.Coord) ([]byte, bool, error) {
	if o.isClosed() {
		return nil, false, ErrClosed
	}
	data, err := o.queries.GetChunk(ctx, GetChunkParams{
		X: int64(coord.X),
		Y: int64(coord.Y),
		Z: int64(coord.Z),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, classify(fmt.Sprintf("failed to select %v", coord), err)
	}
	return data, true, nil
}

// SelectByColumn returns every row sharing the horizontal position x/z,
// ordered by height.
func (o chunkOps) SelectByColumn(ctx context.Context, x, z int32) ([]Record, error) {
	if o.isClosed() {
		return nil, ErrClosed
	}
	rows, err := o.queries.GetChunkColumn(ctx, GetChunkColumnParams{X: int64(x), Z: int64(z)})
	if err != nil {
		return nil, classify(fmt.Sprintf("failed to select column (%d, %d)", x, z), err)
	}

	records := make([]Record, len(rows))
	for i, row := range rows {
		records[i] = Record{
			Coord: chunk.Coord{X: int32(row.X), Y: int32(row.Y), Z: int32(row.Z)},
			Data:  row.Data,
		}
	}
	return records, nil
}

// ExistsAny reports whether any row shares the horizontal position x/z.
func (o chunkOps) ExistsAny(ctx context.Context, x, z int32) (bool, error) {
	if o.isClosed() {
		return false, ErrClosed
	}
	exists, err := o.queries.ChunkColumnExists(ctx, ChunkColumnExistsParams{X: int64(x), Z: int64(z)})
	if err != nil {
		return false, classify(fmt.Sprintf("failed to check column (%d, %d)", x, z), err)
	}
	return exists == 1, nil
}
