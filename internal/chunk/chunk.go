package chunk

import "fmt"

// Chunk is a fixed-size cube of blocks. It is plain data: it knows its own
// coordinate and its interior and nothing about other chunks or storage.
type Chunk struct {
	coord  Coord
	blocks [Volume]Block
}

// New returns an all-air chunk at coord.
func New(coord Coord) *Chunk {
	return &Chunk{coord: coord}
}

func (c *Chunk) Coordinate() Coord {
	return c.coord
}

// BlockAt returns the block at a chunk-local offset.
func (c *Chunk) BlockAt(local Position) Block {
	return c.blocks[index(local)]
}

// SetBlockAt replaces the block at a chunk-local offset.
func (c *Chunk) SetBlockAt(local Position, block Block) {
	c.blocks[index(local)] = block
}

// SetTypeAt places a fresh block of type t at a chunk-local offset, dropping
// any meta or orientation of the block it replaces.
func (c *Chunk) SetTypeAt(local Position, t ItemType) {
	c.blocks[index(local)] = Block{Type: t}
}

// Fill sets every block in the half-open local box [from, to) to block.
func (c *Chunk) Fill(from, to Position, block Block) {
	for y := from.Y; y < to.Y; y++ {
		for z := from.Z; z < to.Z; z++ {
			for x := from.X; x < to.X; x++ {
				c.blocks[index(Position{X: x, Y: y, Z: z})] = block
			}
		}
	}
}

// CountNonAir returns how many blocks in the chunk are not air.
func (c *Chunk) CountNonAir() int {
	n := 0
	for _, b := range c.blocks {
		if !b.IsAir() {
			n++
		}
	}
	return n
}

// Counts returns the number of blocks of each non-air type.
func (c *Chunk) Counts() map[ItemType]int {
	counts := make(map[ItemType]int)
	for _, b := range c.blocks {
		if !b.IsAir() {
			counts[b.Type]++
		}
	}
	return counts
}

// Clone returns a deep copy of the chunk.
func (c *Chunk) Clone() *Chunk {
	dup := *c
	return &dup
}

// Equal reports whether both chunks have the same coordinate and contents.
func (c *Chunk) Equal(other *Chunk) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.coord == other.coord && c.blocks == other.blocks
}

func index(local Position) int {
	if local.X < 0 || local.X >= Size || local.Y < 0 || local.Y >= Size || local.Z < 0 || local.Z >= Size {
		panic(fmt.Sprintf("chunk: local offset %s out of range", local))
	}
	return int(local.X) + int(local.Z)*Size + int(local.Y)*Size*Size
}
