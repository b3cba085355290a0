package world_test

import (
	"context"
	"testing"
	"time"

	"github.com/VoidMesh/voxelstore/internal/chunk"
	"github.com/VoidMesh/voxelstore/internal/world"
	"github.com/VoidMesh/voxelstore/internal/world/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceAnchors(t *testing.T) {
	m, _, _ := newTestManager(t, 0)
	svc := world.NewService(m, &testutils.CountingGenerator{}, world.ServiceConfig{})

	svc.Watch("spawn", chunk.Position{})
	svc.Watch("player-1", chunk.Position{X: 100})
	svc.Watch("spawn", chunk.Position{Z: 50})
	svc.Unwatch("player-1")

	anchors := svc.Anchors()
	assert.Equal(t, map[string]chunk.Position{"spawn": {Z: 50}}, anchors)

	anchors["intruder"] = chunk.Position{}
	assert.Len(t, svc.Anchors(), 1, "callers get a copy")
}

func TestServiceRunFlushesOnShutdown(t *testing.T) {
	m, store, _ := newTestManager(t, 1)
	gen := &testutils.CountingGenerator{Fill: chunk.Stone}
	svc := world.NewService(m, gen, world.ServiceConfig{
		FlushInterval:    time.Hour,
		GenerateInterval: time.Hour,
		ShutdownTimeout:  time.Second,
	})
	svc.Watch("spawn", chunk.Position{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool { return m.Stats().New == 9 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, store.Len())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	assert.Equal(t, 9, store.Len())
	assert.Zero(t, m.Stats().New)
}

func TestServiceRunTicks(t *testing.T) {
	m, store, _ := newTestManager(t, 0)
	gen := &testutils.CountingGenerator{}
	svc := world.NewService(m, gen, world.ServiceConfig{
		FlushInterval:    20 * time.Millisecond,
		GenerateInterval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	// Anchors registered after start are picked up by the generation ticker
	// and written by the flush ticker.
	svc.Watch("late", chunk.Position{X: 40, Z: -40})
	require.Eventually(t, func() bool {
		_, ok := store.Row(chunk.Coord{X: 32, Y: 0, Z: -48})
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Len(t, gen.Columns(), 1)
}
