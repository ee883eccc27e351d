package slicefield

import (
	"encoding/binary"
	"math"
)

// ExtentsSize is the byte size of the packed extents uniform block.
const ExtentsSize = 48

// Extents holds the packed volume-extent vectors the lighting shader needs
// to map a world-space sample onto the atlas. Each row is a vec4<f32>,
// matching the DistanceFieldExtents struct in field_sample.wgsl.
type Extents struct {
	// Volume is (virtual width, virtual height, virtual depth, max distance).
	Volume [4]float32

	// Slice is (slice width px, slice height px, slice count, resolution).
	Slice [4]float32

	// Atlas is (columns, rows, atlas width px, atlas height px).
	Atlas [4]float32
}

// NewExtents packs a layout into uniform vectors.
func NewExtents(l Layout) Extents {
	return Extents{
		Volume: [4]float32{
			float32(l.VirtualWidth),
			float32(l.VirtualHeight),
			float32(l.VirtualDepth),
			float32(l.MaxDistance),
		},
		Slice: [4]float32{
			float32(l.SliceWidth),
			float32(l.SliceHeight),
			float32(l.SliceCount),
			float32(l.Resolution),
		},
		Atlas: [4]float32{
			float32(l.Columns),
			float32(l.Rows),
			float32(l.AtlasWidth()),
			float32(l.AtlasHeight()),
		},
	}
}

// Bytes returns the extents as a little-endian uniform buffer.
func (e Extents) Bytes() []byte {
	buf := make([]byte, ExtentsSize)
	off := 0
	for _, row := range [...][4]float32{e.Volume, e.Slice, e.Atlas} {
		for _, v := range row {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
			off += 4
		}
	}
	return buf
}
