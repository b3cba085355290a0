package chunk

import "fmt"

const (
	// Size is the edge length of a chunk in blocks.
	Size = 16

	// Volume is the number of blocks held by one chunk.
	Volume = Size * Size * Size
)

// ItemType identifies what a block is made of. Zero is air.
type ItemType uint16

const (
	Air   ItemType = 0
	Stone ItemType = 1
	Dirt  ItemType = 2
	Grass ItemType = 3
	Sand  ItemType = 4
	Water ItemType = 5
	Wood  ItemType = 6
)

var itemNames = map[ItemType]string{
	Air:   "air",
	Stone: "stone",
	Dirt:  "dirt",
	Grass: "grass",
	Sand:  "sand",
	Water: "water",
	Wood:  "wood",
}

func (t ItemType) String() string {
	if name, ok := itemNames[t]; ok {
		return name
	}
	return fmt.Sprintf("item(%d)", uint16(t))
}

// Block is a single voxel.
type Block struct {
	Type        ItemType `json:"type"`
	Meta        uint8    `json:"meta"`
	Orientation uint8    `json:"orientation"`
}

// IsAir reports whether the block is empty.
func (b Block) IsAir() bool {
	return b.Type == Air
}

// Position is an arbitrary block position in world space.
type Position struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
	Z int32 `json:"z"`
}

func (p Position) Add(o Position) Position {
	return Position{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z}
}

func (p Position) Sub(o Position) Position {
	return Position{X: p.X - o.X, Y: p.Y - o.Y, Z: p.Z - o.Z}
}

func (p Position) String() string {
	return fmt.Sprintf("(%d, %d, %d)", p.X, p.Y, p.Z)
}

// Coord is the origin of a chunk: a Position whose axes are all multiples of Size.
// It is the identity of a chunk in the cache and in the store.
type Coord struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
	Z int32 `json:"z"`
}

// CoordOf returns the origin of the chunk containing pos.
func CoordOf(pos Position) Coord {
	return Coord{X: floorAlign(pos.X), Y: floorAlign(pos.Y), Z: floorAlign(pos.Z)}
}

// Position returns the world position of the chunk origin.
func (c Coord) Position() Position {
	return Position{X: c.X, Y: c.Y, Z: c.Z}
}

// Offset returns the coordinate dx, dy, dz chunks away.
func (c Coord) Offset(dx, dy, dz int32) Coord {
	return Coord{X: c.X + dx*Size, Y: c.Y + dy*Size, Z: c.Z + dz*Size}
}

// Local returns pos relative to the chunk origin. The result is only a valid
// block offset when CoordOf(pos) == c.
func (c Coord) Local(pos Position) Position {
	return pos.Sub(c.Position())
}

// Contains reports whether pos lies inside the chunk.
func (c Coord) Contains(pos Position) bool {
	return CoordOf(pos) == c
}

func (c Coord) String() string {
	return fmt.Sprintf("chunk(%d, %d, %d)", c.X, c.Y, c.Z)
}

// floorAlign rounds v down to a multiple of Size, toward negative infinity.
func floorAlign(v int32) int32 {
	r := v % Size
	if r < 0 {
		r += Size
	}
	return v - r
}
