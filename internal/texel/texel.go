// Package texel encodes distances into RGBA16Float atlas texels.
//
// A stored channel holds the distance divided by the field's max distance,
// clamped to [-1, 1], as an IEEE 754 half float in little-endian order.
// With a max distance <= 0 the raw distance is stored.
package texel

import (
	"encoding/binary"
	"math"

	"github.com/x448/float16"
)

// Size is the byte size of one RGBA16Float texel.
const Size = 8

// channelSize is the byte size of one half-float channel.
const channelSize = 2

// Encode converts a distance to half-float bits.
func Encode(d, maxDistance float64) uint16 {
	if maxDistance > 0 {
		d = math.Max(-1, math.Min(1, d/maxDistance))
	}
	return float16.Fromfloat32(float32(d)).Bits()
}

// Decode converts half-float bits back to a distance.
func Decode(bits uint16, maxDistance float64) float64 {
	d := float64(float16.Frombits(bits).Float32())
	if maxDistance > 0 {
		d *= maxDistance
	}
	return d
}

// Offset returns the byte offset of channel ch of pixel (x, y) in a
// tightly packed atlas that is width pixels wide.
func Offset(width, x, y, ch int) int {
	return (y*width+x)*Size + ch*channelSize
}

// Put stores bits at off.
func Put(buf []byte, off int, bits uint16) {
	binary.LittleEndian.PutUint16(buf[off:], bits)
}

// Get loads the bits at off.
func Get(buf []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(buf[off:])
}
