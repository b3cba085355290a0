package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/VoidMesh/voxelstore/internal/chunk"
	"github.com/VoidMesh/voxelstore/internal/db"
	"github.com/VoidMesh/voxelstore/internal/world"
	"github.com/VoidMesh/voxelstore/internal/world/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router  http.Handler
	manager *world.Manager
	service *world.Service
	store   *testutils.MemoryStore
	codec   *chunk.Codec
	gen     *testutils.CountingGenerator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	codec, err := chunk.NewCodec()
	require.NoError(t, err)
	t.Cleanup(codec.Close)

	store := testutils.NewMemoryStore()
	manager := world.NewManager(store, codec, world.Options{BufferRadius: 1})
	gen := &testutils.CountingGenerator{Fill: chunk.Stone}
	service := world.NewService(manager, gen, world.ServiceConfig{})

	return &testServer{
		router:  SetupRoutes(NewHandler(manager, service, gen)),
		manager: manager,
		service: service,
		store:   store,
		codec:   codec,
		gen:     gen,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "voxelstore", body["service"])
}

func TestGetChunk(t *testing.T) {
	s := newTestServer(t)
	stored := chunk.New(chunk.Coord{X: 16, Y: 0, Z: 0})
	stored.SetBlockAt(chunk.Position{}, chunk.Block{Type: chunk.Grass})
	stored.SetBlockAt(chunk.Position{X: 1}, chunk.Block{Type: chunk.Grass})
	s.store.Put(stored.Coordinate(), s.codec.Encode(stored))

	tests := []struct {
		name       string
		path       string
		wantStatus int
		check      func(t *testing.T, rec *httptest.ResponseRecorder)
	}{
		{
			name:       "stored chunk",
			path:       "/api/v1/chunks/20/3/9",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				summary := decode[ChunkSummary](t, rec)
				assert.Equal(t, chunk.Coord{X: 16}, summary.Coord)
				assert.Equal(t, "unchanged", summary.State)
				assert.Equal(t, 2, summary.NonAir)
				assert.Equal(t, map[string]int{"grass": 2}, summary.Counts)
			},
		},
		{
			name:       "missing chunk",
			path:       "/api/v1/chunks/0/0/0",
			wantStatus: http.StatusNotFound,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				resp := decode[ErrorResponse](t, rec)
				assert.Equal(t, http.StatusNotFound, resp.Code)
				assert.Equal(t, "chunk not found", resp.Message)
			},
		},
		{
			name:       "invalid coordinate",
			path:       "/api/v1/chunks/abc/0/0",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.check != nil {
				tt.check(t, rec)
			}
		})
	}
}

func TestGetChunkCorrupt(t *testing.T) {
	s := newTestServer(t)
	s.store.Put(chunk.Coord{}, []byte("garbage"))

	rec := s.do(t, http.MethodGet, "/api/v1/chunks/1/1/1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "Internal server error", resp.Error)
	assert.Equal(t, "stored chunk is corrupt", resp.Message)
}

func TestBlocks(t *testing.T) {
	s := newTestServer(t)
	s.store.Put(chunk.Coord{}, s.codec.Encode(chunk.New(chunk.Coord{})))

	rec := s.do(t, http.MethodPut, "/api/v1/blocks/2/3/4", `{"type": 6, "meta": 1, "orientation": 3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[BlockResponse](t, rec)
	assert.Equal(t, chunk.Block{Type: chunk.Wood, Meta: 1, Orientation: 3}, resp.Block)
	require.NotNil(t, resp.Previous)
	assert.Equal(t, chunk.Air, resp.Previous.Type)

	state, _ := s.manager.State(chunk.Coord{})
	assert.Equal(t, world.StateChanged, state)

	rec = s.do(t, http.MethodGet, "/api/v1/blocks/2/3/4", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, chunk.Wood, decode[BlockResponse](t, rec).Block.Type)

	rec = s.do(t, http.MethodPut, "/api/v1/blocks/2/3/4", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/v1/blocks/500/3/4", `{"type": 1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConcurrentBlockReadsAndWrites(t *testing.T) {
	s := newTestServer(t)
	s.store.Put(chunk.Coord{}, s.codec.Encode(chunk.New(chunk.Coord{})))

	const iterations = 500
	var wg sync.WaitGroup
	errs := make(chan string, 4*iterations)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			body := `{"type": 1}`
			if i%2 == 1 {
				body = `{"type": 2}`
			}
			if rec := s.do(t, http.MethodPut, "/api/v1/blocks/1/1/1", body); rec.Code != http.StatusOK {
				errs <- "set block: " + rec.Body.String()
			}
		}
	}()

	for _, path := range []string{"/api/v1/blocks/1/1/1", "/api/v1/chunks/1/1/1", "/api/v1/columns/1/1"} {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				if rec := s.do(t, http.MethodGet, path, ""); rec.Code != http.StatusOK {
					errs <- path + ": " + rec.Body.String()
				}
			}
		}(path)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < iterations/10; i++ {
			if rec := s.do(t, http.MethodPost, "/api/v1/flush", ""); rec.Code != http.StatusOK {
				errs <- "flush: " + rec.Body.String()
			}
		}
	}()

	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}

	require.NoError(t, s.manager.Flush(context.Background()))
	data, ok := s.store.Row(chunk.Coord{})
	require.True(t, ok)
	stored, err := s.codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, chunk.Dirt, stored.BlockAt(chunk.Position{X: 1, Y: 1, Z: 1}).Type, "last write wins")
}

func TestGenerateAndFlush(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/generate", `{"x": 0, "y": 0, "z": 0}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 9, decode[GenerateResponse](t, rec).Columns)

	rec = s.do(t, http.MethodGet, "/api/v1/cache", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 9, decode[world.Stats](t, rec).New)

	rec = s.do(t, http.MethodGet, "/api/v1/columns/-1/17", "")
	require.Equal(t, http.StatusOK, rec.Code)
	column := decode[ColumnResponse](t, rec)
	assert.Equal(t, int32(-16), column.X)
	assert.Equal(t, int32(16), column.Z)
	require.Len(t, column.Chunks, 1)
	assert.Equal(t, "new", column.Chunks[0].State)

	rec = s.do(t, http.MethodPost, "/api/v1/flush", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[world.Stats](t, rec)
	assert.Equal(t, int64(9), stats.Inserted)
	assert.Zero(t, stats.New)
	assert.Equal(t, 9, s.store.Len())
}

func TestFlushStorageUnavailable(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.manager.AddChunk(chunk.New(chunk.Coord{})))
	s.store.FailNextTx(db.ErrStorageUnavailable)

	rec := s.do(t, http.MethodPost, "/api/v1/flush", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 1, s.manager.Stats().New)
}

func TestAnchors(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPut, "/api/v1/anchors/spawn", `{"x": 10, "y": 64, "z": -3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]chunk.Position{"spawn": {X: 10, Y: 64, Z: -3}}, s.service.Anchors())

	rec = s.do(t, http.MethodGet, "/api/v1/anchors", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]chunk.Position{"spawn": {X: 10, Y: 64, Z: -3}}, decode[map[string]chunk.Position](t, rec))

	rec = s.do(t, http.MethodDelete, "/api/v1/anchors/spawn", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, s.service.Anchors())
}
