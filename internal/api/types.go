package api

import (
	"github.com/VoidMesh/voxelstore/internal/chunk"
	"github.com/VoidMesh/voxelstore/internal/world"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ChunkSummary describes one chunk without its block array.
type ChunkSummary struct {
	Coord  chunk.Coord    `json:"coord"`
	State  string         `json:"state"`
	NonAir int            `json:"non_air"`
	Counts map[string]int `json:"counts"`
}

type ColumnResponse struct {
	X      int32          `json:"x"`
	Z      int32          `json:"z"`
	Chunks []ChunkSummary `json:"chunks"`
}

type BlockResponse struct {
	Position chunk.Position `json:"position"`
	Block    chunk.Block    `json:"block"`
	Previous *chunk.Block   `json:"previous,omitempty"`
}

type GenerateRequest struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
	Z int32 `json:"z"`
}

type GenerateResponse struct {
	Center  chunk.Position `json:"center"`
	Columns int            `json:"columns"`
}

func summarize(snap world.Snapshot) ChunkSummary {
	counts := make(map[string]int)
	nonAir := 0
	for t, n := range snap.Chunk.Counts() {
		counts[t.String()] = n
		nonAir += n
	}
	return ChunkSummary{
		Coord:  snap.Chunk.Coordinate(),
		State:  snap.State.String(),
		NonAir: nonAir,
		Counts: counts,
	}
}
