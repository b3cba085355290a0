package world_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/VoidMesh/voxelstore/internal/chunk"
	"github.com/VoidMesh/voxelstore/internal/db"
	"github.com/VoidMesh/voxelstore/internal/world"
	"github.com/VoidMesh/voxelstore/internal/world/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCells(t *testing.T) {
	tests := []struct {
		name   string
		center chunk.Position
		radius int
		want   []chunk.Coord
	}{
		{
			name:   "radius zero",
			center: chunk.Position{X: 3, Y: 40, Z: 3},
			radius: 0,
			want:   []chunk.Coord{{X: 0, Y: 0, Z: 0}},
		},
		{
			name:   "radius one around origin",
			center: chunk.Position{},
			radius: 1,
			want: []chunk.Coord{
				{X: -16, Z: -16}, {X: -16, Z: 0}, {X: -16, Z: 16},
				{X: 0, Z: -16}, {X: 0, Z: 0}, {X: 0, Z: 16},
				{X: 16, Z: -16}, {X: 16, Z: 0}, {X: 16, Z: 16},
			},
		},
		{
			name:   "center is normalized to ground level",
			center: chunk.Position{X: 20, Y: -70, Z: -1},
			radius: 0,
			want:   []chunk.Coord{{X: 16, Y: 0, Z: -16}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, world.Cells(tt.center, tt.radius))
		})
	}

	assert.Len(t, world.Cells(chunk.Position{}, 3), 49)
}

func TestGenerateMissing(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newTestManager(t, 1)
	gen := &testutils.CountingGenerator{Fill: chunk.Stone}

	n, err := m.GenerateMissing(ctx, chunk.Position{X: 4, Y: 100, Z: 4}, gen)
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.Equal(t, world.Cells(chunk.Position{}, 1), gen.Columns())
	assert.Equal(t, 9, m.Stats().New)
	assert.Zero(t, store.Len(), "generation only touches the cache")

	gen.Reset()
	n, err = m.GenerateMissing(ctx, chunk.Position{}, gen)
	require.NoError(t, err)
	assert.Zero(t, n, "columns with new chunks are not regenerated")
	assert.Empty(t, gen.Columns())

	require.NoError(t, m.Flush(ctx))
	assert.Equal(t, 9, store.Len())

	n, err = m.GenerateMissing(ctx, chunk.Position{}, gen)
	require.NoError(t, err)
	assert.Zero(t, n, "stored columns are not regenerated")
	assert.Empty(t, gen.Columns())
}

func TestGenerateMissingSkipsStoredColumns(t *testing.T) {
	ctx := context.Background()
	m, store, codec := newTestManager(t, 1)

	// Any chunk in a column marks it present, not only the ground chunk.
	storeChunk(t, store, codec, chunk.New(chunk.Coord{X: 16, Y: 48, Z: 0}))

	gen := &testutils.CountingGenerator{}
	n, err := m.GenerateMissing(ctx, chunk.Position{}, gen)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.NotContains(t, gen.Columns(), chunk.Coord{X: 16, Y: 0, Z: 0})
}

func TestGenerateMissingSkipsPendingColumns(t *testing.T) {
	ctx := context.Background()
	m, store, codec := newTestManager(t, 1)

	// One column is stored and loaded, another holds two unflushed chunks.
	storeChunk(t, store, codec, chunk.New(chunk.Coord{X: -16, Y: 16, Z: 16}))
	_, err := m.GetChunk(ctx, chunk.Coord{X: -16, Y: 16, Z: 16})
	require.NoError(t, err)
	require.NoError(t, m.AddChunk(chunk.New(chunk.Coord{X: 16, Y: 48, Z: 0})))
	require.NoError(t, m.AddChunk(chunk.New(chunk.Coord{X: 16, Y: 64, Z: 0})))

	gen := &testutils.CountingGenerator{}
	n, err := m.GenerateMissing(ctx, chunk.Position{}, gen)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NotContains(t, gen.Columns(), chunk.Coord{X: 16, Y: 0, Z: 0})
	assert.NotContains(t, gen.Columns(), chunk.Coord{X: -16, Y: 0, Z: 16})

	// A failed flush keeps the chunks New, so the column stays pending.
	store.FailNextTx(errors.New("disk full"))
	require.Error(t, m.Flush(ctx))
	gen.Reset()
	n, err = m.GenerateMissing(ctx, chunk.Position{}, gen)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGenerateMissingGeneratorErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("failed column is retried next pass", func(t *testing.T) {
		m, _, _ := newTestManager(t, 0)
		gen := &testutils.CountingGenerator{Err: errors.New("noise exploded")}

		n, err := m.GenerateMissing(ctx, chunk.Position{}, gen)
		require.NoError(t, err, "a generator failure only skips its column")
		assert.Equal(t, 1, n)
		assert.Zero(t, m.Stats().New)

		gen.Err = nil
		n, err = m.GenerateMissing(ctx, chunk.Position{}, gen)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Len(t, gen.Columns(), 2)
		assert.Equal(t, 1, m.Stats().New)
	})

	t.Run("already cached chunk is benign", func(t *testing.T) {
		m, _, _ := newTestManager(t, 0)
		// The second add collides with the chunk the generator just cached.
		gen := world.GeneratorFunc(func(ctx context.Context, origin chunk.Coord, sink world.ChunkSink) error {
			if err := sink.AddChunk(chunk.New(origin)); err != nil {
				return err
			}
			return sink.AddChunk(chunk.New(origin))
		})

		n, err := m.GenerateMissing(ctx, chunk.Position{}, gen)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, 1, m.Stats().New)
	})
}

func TestGenerateMissingStoreErrors(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newTestManager(t, 1)
	gen := &testutils.CountingGenerator{}

	store.FailNextTx(db.ErrStorageUnavailable)
	_, err := m.GenerateMissing(ctx, chunk.Position{}, gen)
	assert.ErrorIs(t, err, db.ErrStorageUnavailable)
	assert.Empty(t, gen.Columns())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = m.GenerateMissing(cancelled, chunk.Position{}, gen)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, gen.Columns())
}

func TestConcurrentGenerateMissing(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newTestManager(t, 2)
	gen := &testutils.CountingGenerator{Fill: chunk.Grass}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.GenerateMissing(ctx, chunk.Position{X: int32(i % 2)}, gen)
			assert.NoError(t, err)
			if i%3 == 0 {
				assert.NoError(t, m.Flush(ctx))
			}
		}(i)
	}
	wg.Wait()
	require.NoError(t, m.Flush(ctx))

	assert.Len(t, gen.Columns(), 25, "every column is generated exactly once")
	assert.Equal(t, 25, store.Len())
	for _, c := range store.Calls() {
		assert.Equal(t, testutils.OpInsert, c.Op)
	}
}
