package world

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/VoidMesh/voxelstore/internal/chunk"
	"github.com/charmbracelet/log"
)

// ChunkSink receives chunks produced by a Generator. *Manager implements it.
type ChunkSink interface {
	AddChunk(c *chunk.Chunk) error
}

// Generator creates the chunks of the column whose ground-level origin is
// given and registers them with sink.
type Generator interface {
	GenerateChunks(ctx context.Context, origin chunk.Coord, sink ChunkSink) error
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, origin chunk.Coord, sink ChunkSink) error

func (f GeneratorFunc) GenerateChunks(ctx context.Context, origin chunk.Coord, sink ChunkSink) error {
	return f(ctx, origin, sink)
}

// Cells returns the ground-level column origins within radius chunks of
// center, row by row from the lowest x and z.
func Cells(center chunk.Position, radius int) []chunk.Coord {
	base := chunk.CoordOf(center)
	base.Y = 0

	r := int32(radius)
	cells := make([]chunk.Coord, 0, (2*radius+1)*(2*radius+1))
	for dx := -r; dx <= r; dx++ {
		for dz := -r; dz <= r; dz++ {
			cells = append(cells, base.Offset(dx, 0, dz))
		}
	}
	return cells
}

// GenerateMissing asks gen to create every column within the buffer radius of
// center that is neither cached as New nor present in the store, and returns
// the number of columns it asked for.
//
// The existence checks of a pass run in one store transaction and passes are
// serialized, so two callers never both decide the same column is missing. A
// generator error only skips its column; the column is evaluated again by the
// next pass.
func (m *Manager) GenerateMissing(ctx context.Context, center chunk.Position, gen Generator) (int, error) {
	m.genMu.Lock()
	defer m.genMu.Unlock()

	start := time.Now()
	cells := Cells(center, int(m.radius))
	generated := 0

	err := m.store.WithTx(ctx, func(tx ReadWriter) error {
		for _, origin := range cells {
			if err := ctx.Err(); err != nil {
				return err
			}

			m.mu.Lock()
			pending := m.hasNewInColumnLocked(origin.X, origin.Z)
			m.mu.Unlock()
			if pending {
				continue
			}

			exists, err := tx.ExistsAny(ctx, origin.X, origin.Z)
			if err != nil {
				return fmt.Errorf("failed to check column %v: %w", origin, err)
			}
			if exists {
				continue
			}

			log.Debug("Generating missing column", "chunk_x", origin.X, "chunk_z", origin.Z)
			generated++
			if err := gen.GenerateChunks(ctx, origin, m); err != nil {
				if errors.Is(err, ErrChunkExists) {
					log.Debug("column already generated", "chunk_x", origin.X, "chunk_z", origin.Z)
					continue
				}
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.Error("failed to generate column", "error", err, "chunk_x", origin.X, "chunk_z", origin.Z)
			}
		}
		return nil
	})
	if err != nil {
		return generated, fmt.Errorf("failed to generate missing chunks: %w", err)
	}

	if generated > 0 {
		log.Info("Generated missing columns", "center", center, "columns", generated, "duration", time.Since(start))
	}
	return generated, nil
}
