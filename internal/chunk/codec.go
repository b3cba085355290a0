package chunk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/klauspost/compress/zstd"
)

// ErrCorruptData is returned by Decode when a payload does not hold a chunk.
var ErrCorruptData = errors.New("corrupt chunk data")

// Payload layout before compression:
// [Magic:4][Version:1][Flags:1][X:4][Y:4][Z:4][Checksum:4] followed by
// Volume block records of [Type:2][Meta:1][Orientation:1].
const (
	payloadMagic      = "VXCK"
	payloadVersion    = uint8(1)
	payloadHeaderSize = 22
	blockRecordSize   = 4
	payloadBodySize   = Volume * blockRecordSize
	payloadSize       = payloadHeaderSize + payloadBodySize
)

// Codec turns chunks into opaque byte payloads and back. It is safe for
// concurrent use.
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func NewCodec() (*Codec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(4*payloadSize))
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &Codec{encoder: encoder, decoder: decoder}, nil
}

// Close releases the decoder goroutines.
func (cd *Codec) Close() {
	cd.decoder.Close()
	cd.encoder.Close()
}

// Encode serializes c. The returned slice is owned by the caller.
func (cd *Codec) Encode(c *Chunk) []byte {
	raw := make([]byte, payloadSize)
	body := raw[payloadHeaderSize:]
	for i, b := range c.blocks {
		off := i * blockRecordSize
		binary.BigEndian.PutUint16(body[off:], uint16(b.Type))
		body[off+2] = b.Meta
		body[off+3] = b.Orientation
	}

	copy(raw[0:4], payloadMagic)
	raw[4] = payloadVersion
	raw[5] = 0
	binary.BigEndian.PutUint32(raw[6:10], uint32(c.coord.X))
	binary.BigEndian.PutUint32(raw[10:14], uint32(c.coord.Y))
	binary.BigEndian.PutUint32(raw[14:18], uint32(c.coord.Z))
	binary.BigEndian.PutUint32(raw[18:22], crc32.ChecksumIEEE(body))

	return cd.encoder.EncodeAll(raw, make([]byte, 0, payloadSize/8))
}

// Decode parses a payload produced by Encode. Any mismatch with the expected
// layout is reported as ErrCorruptData.
func (cd *Codec) Decode(data []byte) (*Chunk, error) {
	raw, err := cd.decoder.DecodeAll(data, make([]byte, 0, payloadSize))
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %v", ErrCorruptData, err)
	}

	if len(raw) != payloadSize {
		return nil, fmt.Errorf("%w: payload is %d bytes, want %d", ErrCorruptData, len(raw), payloadSize)
	}
	if string(raw[0:4]) != payloadMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorruptData, raw[0:4])
	}
	if raw[4] != payloadVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptData, raw[4])
	}

	coord := Coord{
		X: int32(binary.BigEndian.Uint32(raw[6:10])),
		Y: int32(binary.BigEndian.Uint32(raw[10:14])),
		Z: int32(binary.BigEndian.Uint32(raw[14:18])),
	}
	if CoordOf(coord.Position()) != coord {
		return nil, fmt.Errorf("%w: coordinate %v is not chunk aligned", ErrCorruptData, coord)
	}

	body := raw[payloadHeaderSize:]
	want := binary.BigEndian.Uint32(raw[18:22])
	if got := crc32.ChecksumIEEE(body); got != want {
		return nil, fmt.Errorf("%w: checksum mismatch (got %x, expected %x)", ErrCorruptData, got, want)
	}

	c := New(coord)
	for i := range c.blocks {
		off := i * blockRecordSize
		c.blocks[i] = Block{
			Type:        ItemType(binary.BigEndian.Uint16(body[off:])),
			Meta:        body[off+2],
			Orientation: body[off+3],
		}
	}
	return c, nil
}
