package terrain

import (
	"context"
	"fmt"
	"math"

	"github.com/VoidMesh/voxelstore/internal/chunk"
	"github.com/VoidMesh/voxelstore/internal/world"
	"github.com/aquilax/go-perlin"
	"github.com/charmbracelet/log"
)

// Options shape the generated terrain. Heights are in blocks above y=0.
type Options struct {
	Seed       int64
	BaseHeight int32
	Amplitude  int32
	WaterLevel int32
	// Scale is the horizontal zoom of the noise; larger values give gentler hills.
	Scale     float64
	DirtDepth int32
}

// DefaultOptions returns gentle rolling hills with shallow lakes.
func DefaultOptions(seed int64) Options {
	return Options{
		Seed:       seed,
		BaseHeight: 20,
		Amplitude:  12,
		WaterLevel: 16,
		Scale:      48,
		DirtDepth:  3,
	}
}

// NoiseGenerator builds heightmap terrain from 2D Perlin noise. It is
// deterministic for a seed and safe for concurrent use.
type NoiseGenerator struct {
	noise *perlin.Perlin
	opts  Options
}

var _ world.Generator = (*NoiseGenerator)(nil)

func NewNoiseGenerator(opts Options) *NoiseGenerator {
	if opts.Scale <= 0 {
		opts.Scale = 48
	}
	// alpha=2, beta=2, n=3 gives terrain-like noise
	return &NoiseGenerator{
		noise: perlin.NewPerlin(2, 2, 3, opts.Seed),
		opts:  opts,
	}
}

// Seed returns the seed the generator was built with.
func (g *NoiseGenerator) Seed() int64 {
	return g.opts.Seed
}

// Height returns the surface height at world column x/z, always at least 1.
func (g *NoiseGenerator) Height(x, z int32) int32 {
	n := g.noise.Noise2D(float64(x)/g.opts.Scale, float64(z)/g.opts.Scale)
	n = math.Max(-1, math.Min(1, n))
	h := g.opts.BaseHeight + int32(math.Round(n*float64(g.opts.Amplitude)))
	if h < 1 {
		h = 1
	}
	return h
}

// GenerateChunks fills the column at origin from y=0 up to the surface and
// hands every non-empty chunk to sink, lowest first.
func (g *NoiseGenerator) GenerateChunks(ctx context.Context, origin chunk.Coord, sink world.ChunkSink) error {
	var heights [chunk.Size][chunk.Size]int32
	top := int32(0)
	for lx := int32(0); lx < chunk.Size; lx++ {
		for lz := int32(0); lz < chunk.Size; lz++ {
			h := g.Height(origin.X+lx, origin.Z+lz)
			heights[lx][lz] = h
			top = max(top, h, g.opts.WaterLevel)
		}
	}

	added := 0
	for y := int32(0); y <= top; y += chunk.Size {
		if err := ctx.Err(); err != nil {
			return err
		}

		c := chunk.New(chunk.Coord{X: origin.X, Y: y, Z: origin.Z})
		for lx := int32(0); lx < chunk.Size; lx++ {
			for lz := int32(0); lz < chunk.Size; lz++ {
				for ly := int32(0); ly < chunk.Size; ly++ {
					if t := g.blockAt(y+ly, heights[lx][lz]); t != chunk.Air {
						c.SetTypeAt(chunk.Position{X: lx, Y: ly, Z: lz}, t)
					}
				}
			}
		}
		if c.CountNonAir() == 0 {
			continue
		}

		if err := sink.AddChunk(c); err != nil {
			return fmt.Errorf("failed to add generated chunk %v: %w", c.Coordinate(), err)
		}
		added++
	}

	log.Debug("Generated terrain column", "chunk_x", origin.X, "chunk_z", origin.Z, "chunks", added, "top", top)
	return nil
}

// blockAt picks the block at height y for a column whose surface is h.
func (g *NoiseGenerator) blockAt(y, h int32) chunk.ItemType {
	switch {
	case y < h-g.opts.DirtDepth:
		return chunk.Stone
	case y < h:
		if h <= g.opts.WaterLevel {
			return chunk.Sand
		}
		return chunk.Dirt
	case y == h:
		if h <= g.opts.WaterLevel {
			return chunk.Sand
		}
		return chunk.Grass
	case y <= g.opts.WaterLevel:
		return chunk.Water
	}
	return chunk.Air
}
