package world_test

import (
	"context"
	"sync"
	"testing"

	"github.com/VoidMesh/voxelstore/internal/chunk"
	"github.com/VoidMesh/voxelstore/internal/world"
	"github.com/VoidMesh/voxelstore/internal/world/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, radius int) (*world.Manager, *testutils.MemoryStore, *chunk.Codec) {
	t.Helper()
	codec, err := chunk.NewCodec()
	require.NoError(t, err)
	t.Cleanup(codec.Close)

	store := testutils.NewMemoryStore()
	return world.NewManager(store, codec, world.Options{BufferRadius: radius}), store, codec
}

func storeChunk(t *testing.T, store *testutils.MemoryStore, codec *chunk.Codec, c *chunk.Chunk) {
	t.Helper()
	store.Put(c.Coordinate(), codec.Encode(c))
}

func TestAddChunk(t *testing.T) {
	m, store, _ := newTestManager(t, 0)
	coord := chunk.Coord{X: 16, Y: 0, Z: -16}

	require.NoError(t, m.AddChunk(chunk.New(coord)))
	state, ok := m.State(coord)
	require.True(t, ok)
	assert.Equal(t, world.StateNew, state)

	err := m.AddChunk(chunk.New(coord))
	assert.ErrorIs(t, err, world.ErrChunkExists)
	assert.Empty(t, store.Calls(), "adding must not touch the store")
}

func TestGet(t *testing.T) {
	ctx := context.Background()

	t.Run("missing everywhere", func(t *testing.T) {
		m, _, _ := newTestManager(t, 0)
		c, err := m.Get(ctx, chunk.Position{X: 5, Y: 5, Z: 5})
		require.NoError(t, err)
		assert.Nil(t, c)
		_, ok := m.State(chunk.Coord{})
		assert.False(t, ok)
	})

	t.Run("loads stored chunk once", func(t *testing.T) {
		m, store, codec := newTestManager(t, 0)
		stored := chunk.New(chunk.Coord{X: 0, Y: 16, Z: 0})
		stored.SetBlockAt(chunk.Position{X: 1, Y: 1, Z: 1}, chunk.Block{Type: chunk.Stone})
		storeChunk(t, store, codec, stored)

		first, err := m.Get(ctx, chunk.Position{X: 1, Y: 17, Z: 1})
		require.NoError(t, err)
		require.NotNil(t, first)
		assert.True(t, stored.Equal(first))

		second, err := m.GetChunk(ctx, chunk.Coord{X: 0, Y: 16, Z: 0})
		require.NoError(t, err)
		assert.Same(t, first, second, "a coordinate is cached at most once")

		state, ok := m.State(stored.Coordinate())
		require.True(t, ok)
		assert.Equal(t, world.StateUnchanged, state)
	})

	t.Run("returns new chunk from cache", func(t *testing.T) {
		m, _, _ := newTestManager(t, 0)
		c := chunk.New(chunk.Coord{X: -16, Y: 0, Z: 0})
		require.NoError(t, m.AddChunk(c))

		got, err := m.Get(ctx, chunk.Position{X: -1, Y: 0, Z: 0})
		require.NoError(t, err)
		assert.Same(t, c, got)
	})

	t.Run("corrupt payload is not cached", func(t *testing.T) {
		m, store, _ := newTestManager(t, 0)
		coord := chunk.Coord{X: 32, Y: 0, Z: 32}
		store.Put(coord, []byte("definitely not a chunk"))

		c, err := m.GetChunk(ctx, coord)
		assert.ErrorIs(t, err, chunk.ErrCorruptData)
		assert.Nil(t, c)
		_, ok := m.State(coord)
		assert.False(t, ok)
	})

	t.Run("payload for another coordinate is corrupt", func(t *testing.T) {
		m, store, codec := newTestManager(t, 0)
		coord := chunk.Coord{X: 0, Y: 0, Z: 0}
		store.Put(coord, codec.Encode(chunk.New(chunk.Coord{X: 16, Y: 0, Z: 0})))

		_, err := m.GetChunk(ctx, coord)
		assert.ErrorIs(t, err, chunk.ErrCorruptData)
	})
}

func TestConcurrentGetSharesOneCopy(t *testing.T) {
	ctx := context.Background()
	m, store, codec := newTestManager(t, 0)
	coord := chunk.Coord{X: 48, Y: 0, Z: 16}
	storeChunk(t, store, codec, chunk.New(coord))

	const workers = 16
	results := make([]*chunk.Chunk, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := m.GetChunk(ctx, coord)
			assert.NoError(t, err)
			results[i] = c
		}(i)
	}
	wg.Wait()

	for _, c := range results[1:] {
		assert.Same(t, results[0], c)
	}
	assert.Equal(t, 1, m.Stats().Unchanged)
}

func TestSetBlock(t *testing.T) {
	ctx := context.Background()

	t.Run("promotes unchanged to changed", func(t *testing.T) {
		m, store, codec := newTestManager(t, 0)
		stored := chunk.New(chunk.Coord{})
		stored.SetBlockAt(chunk.Position{X: 2, Y: 3, Z: 4}, chunk.Block{Type: chunk.Dirt, Meta: 7})
		storeChunk(t, store, codec, stored)

		old, ok, err := m.SetBlock(ctx, chunk.Position{X: 2, Y: 3, Z: 4}, chunk.Block{Type: chunk.Grass})
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, chunk.Block{Type: chunk.Dirt, Meta: 7}, old)

		state, _ := m.State(chunk.Coord{})
		assert.Equal(t, world.StateChanged, state)

		c, err := m.GetChunk(ctx, chunk.Coord{})
		require.NoError(t, err)
		assert.Equal(t, chunk.Grass, c.BlockAt(chunk.Position{X: 2, Y: 3, Z: 4}).Type)
	})

	t.Run("new stays new", func(t *testing.T) {
		m, _, _ := newTestManager(t, 0)
		require.NoError(t, m.AddChunk(chunk.New(chunk.Coord{})))

		_, ok, err := m.SetBlock(ctx, chunk.Position{X: 1}, chunk.Block{Type: chunk.Stone})
		require.NoError(t, err)
		require.True(t, ok)

		state, _ := m.State(chunk.Coord{})
		assert.Equal(t, world.StateNew, state)
	})

	t.Run("no chunk holds position", func(t *testing.T) {
		m, _, _ := newTestManager(t, 0)
		_, ok, err := m.SetBlock(ctx, chunk.Position{X: 100, Y: 100, Z: 100}, chunk.Block{Type: chunk.Stone})
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, world.Stats{}, m.Stats())
	})

	t.Run("corrupt stored chunk", func(t *testing.T) {
		m, store, _ := newTestManager(t, 0)
		store.Put(chunk.Coord{}, []byte{1, 2, 3})
		_, ok, err := m.SetBlock(ctx, chunk.Position{}, chunk.Block{Type: chunk.Stone})
		assert.ErrorIs(t, err, chunk.ErrCorruptData)
		assert.False(t, ok)
	})
}

func TestSetBlockTypeDoesNotPromote(t *testing.T) {
	ctx := context.Background()
	m, store, codec := newTestManager(t, 0)
	stored := chunk.New(chunk.Coord{})
	storeChunk(t, store, codec, stored)

	c, err := m.SetBlockType(ctx, chunk.Position{X: 3, Y: 3, Z: 3}, chunk.Sand)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, chunk.Sand, c.BlockAt(chunk.Position{X: 3, Y: 3, Z: 3}).Type)

	state, ok := m.State(chunk.Coord{})
	require.True(t, ok)
	assert.Equal(t, world.StateUnchanged, state)

	require.NoError(t, m.Flush(ctx))
	assert.Empty(t, store.Calls(), "an unchanged chunk is never written back")

	data, _ := store.Row(chunk.Coord{})
	persisted, err := codec.Decode(data)
	require.NoError(t, err)
	assert.True(t, stored.Equal(persisted))

	missing, err := m.SetBlockType(ctx, chunk.Position{X: 0, Y: 64, Z: 0}, chunk.Sand)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMarkChanged(t *testing.T) {
	ctx := context.Background()
	m, store, codec := newTestManager(t, 0)
	storeChunk(t, store, codec, chunk.New(chunk.Coord{}))

	assert.False(t, m.MarkChanged(chunk.Coord{}), "not cached yet")

	_, err := m.SetBlockType(ctx, chunk.Position{}, chunk.Water)
	require.NoError(t, err)
	require.True(t, m.MarkChanged(chunk.Coord{}))

	require.NoError(t, m.Flush(ctx))
	assert.Equal(t, []testutils.Op{testutils.OpUpdate}, store.CallsFor(chunk.Coord{}))

	data, _ := store.Row(chunk.Coord{})
	persisted, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, chunk.Water, persisted.BlockAt(chunk.Position{}).Type)
}

func TestColumn(t *testing.T) {
	ctx := context.Background()
	m, store, codec := newTestManager(t, 0)

	storeChunk(t, store, codec, chunk.New(chunk.Coord{X: 16, Y: 16, Z: 16}))
	storeChunk(t, store, codec, chunk.New(chunk.Coord{X: 16, Y: 0, Z: 16}))
	storeChunk(t, store, codec, chunk.New(chunk.Coord{X: 32, Y: 0, Z: 16}))

	fresh := chunk.New(chunk.Coord{X: 16, Y: 32, Z: 16})
	require.NoError(t, m.AddChunk(fresh))

	_, _, err := m.SetBlock(ctx, chunk.Position{X: 16, Y: 0, Z: 16}, chunk.Block{Type: chunk.Wood})
	require.NoError(t, err)

	column, err := m.Column(ctx, chunk.Position{X: 20, Y: 200, Z: 31})
	require.NoError(t, err)
	require.Len(t, column, 3)
	for i, y := range []int32{0, 16, 32} {
		assert.Equal(t, chunk.Coord{X: 16, Y: y, Z: 16}, column[i].Coordinate())
	}
	assert.Equal(t, chunk.Wood, column[0].BlockAt(chunk.Position{}).Type, "cached copy wins over the stored row")
	assert.Same(t, fresh, column[2])

	state, _ := m.State(chunk.Coord{X: 16, Y: 16, Z: 16})
	assert.Equal(t, world.StateUnchanged, state)
	_, ok := m.State(chunk.Coord{X: 32, Y: 0, Z: 16})
	assert.False(t, ok, "other columns are not loaded")
}

func TestSnapshots(t *testing.T) {
	ctx := context.Background()
	m, store, codec := newTestManager(t, 0)

	stored := chunk.New(chunk.Coord{})
	stored.SetTypeAt(chunk.Position{X: 1, Y: 1, Z: 1}, chunk.Stone)
	storeChunk(t, store, codec, stored)
	require.NoError(t, m.AddChunk(chunk.New(chunk.Coord{Y: 16})))

	t.Run("block at", func(t *testing.T) {
		block, ok, err := m.BlockAt(ctx, chunk.Position{X: 1, Y: 1, Z: 1})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, chunk.Block{Type: chunk.Stone}, block)

		_, ok, err = m.BlockAt(ctx, chunk.Position{X: 100})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("snapshot is a copy", func(t *testing.T) {
		snap, ok, err := m.Snapshot(ctx, chunk.Position{X: 3})
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, world.StateUnchanged, snap.State)

		snap.Chunk.SetTypeAt(chunk.Position{X: 1, Y: 1, Z: 1}, chunk.Air)
		block, _, err := m.BlockAt(ctx, chunk.Position{X: 1, Y: 1, Z: 1})
		require.NoError(t, err)
		assert.Equal(t, chunk.Stone, block.Type, "editing a snapshot must not reach the cache")

		_, ok, err = m.Snapshot(ctx, chunk.Position{X: 100})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("column snapshots", func(t *testing.T) {
		_, _, err := m.SetBlock(ctx, chunk.Position{}, chunk.Block{Type: chunk.Wood})
		require.NoError(t, err)

		snaps, err := m.ColumnSnapshots(ctx, chunk.Position{X: 5, Z: 5})
		require.NoError(t, err)
		require.Len(t, snaps, 2)
		assert.Equal(t, world.StateChanged, snaps[0].State)
		assert.Equal(t, chunk.Wood, snaps[0].Chunk.BlockAt(chunk.Position{}).Type)
		assert.Equal(t, world.StateNew, snaps[1].State)
	})
}

func TestSnapshotsDuringWrites(t *testing.T) {
	ctx := context.Background()
	m, store, codec := newTestManager(t, 0)
	storeChunk(t, store, codec, chunk.New(chunk.Coord{}))
	pos := chunk.Position{X: 2, Y: 2, Z: 2}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_, _, err := m.SetBlock(ctx, pos, chunk.Block{Type: chunk.ItemType(1 + i%2)})
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			snap, ok, err := m.Snapshot(ctx, pos)
			if assert.NoError(t, err) && assert.True(t, ok) {
				assert.LessOrEqual(t, snap.Chunk.CountNonAir(), 1)
			}
		}
	}()
	wg.Wait()
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unchanged", world.StateUnchanged.String())
	assert.Equal(t, "new", world.StateNew.String())
	assert.Equal(t, "changed", world.StateChanged.String())
	assert.Equal(t, "state(9)", world.State(9).String())
}
