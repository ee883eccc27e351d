package slicefield

import (
	"fmt"
	"image"
	"math"
)

// Packing constants.
const (
	// PackingFactor is the number of logical slices stored per physical
	// texel group, one per color channel (R, G, B).
	PackingFactor = 3

	// MinResolution and MaxResolution bound the detail level, in atlas
	// pixels per virtual unit.
	MinResolution = 0.05
	MaxResolution = 1.0

	// BytesPerPixel is the atlas pixel size (RGBA16Float).
	BytesPerPixel = 8

	// DefaultMaxSurfaceSize is used when neither the allocator nor an
	// option supplies a limit.
	DefaultMaxSurfaceSize = 8192

	// MaxSurfaceLimit caps the surface size a layout accepts; larger
	// limits are clamped to it.
	MaxSurfaceLimit = 1 << 16
)

// Descriptor is the requested volume: its virtual extent, detail level,
// number of slices and the largest distance the encoding represents.
type Descriptor struct {
	// Width and Height are the virtual extent of each slice, in scene units.
	Width  int
	Height int

	// Depth is the virtual extent covered by the slice stack.
	Depth float64

	// Resolution is the requested detail level. Clamped to
	// [MinResolution, MaxResolution].
	Resolution float64

	// SliceCount is the requested number of logical slices. Rounded up to
	// a multiple of PackingFactor (minimum PackingFactor) and truncated to
	// device capacity.
	SliceCount int

	// MaxDistance is the maximum encoded distance.
	MaxDistance float64
}

// Layout is the immutable result of packing a Descriptor onto a device:
// effective resolution, per-slice pixel size, slice counts and the
// column×row atlas grid.
//
// Invariant: Columns * Rows * PackingFactor >= SliceCount.
type Layout struct {
	VirtualWidth  int
	VirtualHeight int
	VirtualDepth  float64
	MaxDistance   float64

	// RequestedResolution is the clamped request; Resolution is the value
	// that reproduces the chosen integral slice size.
	RequestedResolution float64
	Resolution          float64

	// SliceWidth and SliceHeight are the pixel size of one texel group.
	SliceWidth  int
	SliceHeight int

	// SliceCount is always a multiple of PackingFactor (or zero when the
	// slice does not fit on the device at all).
	SliceCount         int
	PhysicalSliceCount int

	// Columns and Rows describe the atlas grid of texel groups.
	Columns int
	Rows    int

	// MaxSlicesX and MaxSlicesY are the device limits on the grid.
	MaxSlicesX int
	MaxSlicesY int
}

// NewLayout packs desc onto a device whose largest texture dimension is
// maxSurfaceSize. It never fails: out-of-range requests are clamped and
// slice counts beyond device capacity are silently truncated.
func NewLayout(desc Descriptor, maxSurfaceSize int) Layout {
	if maxSurfaceSize <= 0 {
		maxSurfaceSize = DefaultMaxSurfaceSize
	}
	maxSurfaceSize = min(maxSurfaceSize, MaxSurfaceLimit)
	vw := max(desc.Width, 1)
	vh := max(desc.Height, 1)

	l := Layout{
		VirtualWidth:        vw,
		VirtualHeight:       vh,
		VirtualDepth:        desc.Depth,
		MaxDistance:         desc.MaxDistance,
		RequestedResolution: clampResolution(desc.Resolution),
	}

	// Snap the resolution to the integral slice size it produces so the
	// reported detail level matches the atlas exactly.
	cw := max(roundInt(float64(vw)*l.RequestedResolution), 1)
	ch := max(roundInt(float64(vh)*l.RequestedResolution), 1)
	ratio := (float64(cw)/float64(vw) + float64(ch)/float64(vh)) / 2
	l.Resolution = clampResolution(math.Round(ratio*1000) / 1000)

	l.SliceWidth = max(roundInt(float64(vw)*l.Resolution), 1)
	l.SliceHeight = max(roundInt(float64(vh)*l.Resolution), 1)

	l.MaxSlicesX = maxSurfaceSize / l.SliceWidth
	l.MaxSlicesY = maxSurfaceSize / l.SliceHeight
	maxSlices := l.MaxSlicesX * l.MaxSlicesY * PackingFactor

	l.SliceCount = min(maxSlices, roundUp(max(PackingFactor, desc.SliceCount), PackingFactor))
	l.PhysicalSliceCount = ceilDiv(l.SliceCount, PackingFactor)
	if l.PhysicalSliceCount == 0 {
		return l
	}

	l.Columns = min(l.MaxSlicesX, l.PhysicalSliceCount)
	l.Rows = min(l.MaxSlicesY, max(ceilDiv(l.PhysicalSliceCount, l.Columns), 1))
	l.rebalance()
	return l
}

// rebalance trades columns for rows while the grid is wider than tall,
// never dropping capacity below PhysicalSliceCount.
func (l *Layout) rebalance() {
	for l.Rows < l.Columns && l.Rows < l.MaxSlicesY {
		rows := min(l.Rows+1, l.MaxSlicesY)
		cols := min(ceilDiv(l.PhysicalSliceCount, rows), l.MaxSlicesX)
		if rows*cols < l.PhysicalSliceCount {
			return
		}
		l.Rows, l.Columns = rows, cols
	}
}

// AtlasWidth returns the atlas texture width in pixels.
func (l Layout) AtlasWidth() int { return l.SliceWidth * l.Columns }

// AtlasHeight returns the atlas texture height in pixels.
func (l Layout) AtlasHeight() int { return l.SliceHeight * l.Rows }

// Capacity returns the number of logical slices the grid can hold.
func (l Layout) Capacity() int { return l.Columns * l.Rows * PackingFactor }

// ByteSize returns the size of the raw atlas dump: 8 bytes per pixel.
func (l Layout) ByteSize() int { return l.AtlasWidth() * l.AtlasHeight() * BytesPerPixel }

// IsEmpty reports whether the layout holds no slices.
func (l Layout) IsEmpty() bool { return l.SliceCount == 0 }

// SliceRect returns the atlas region of logical slice i and the channel
// (0 = R, 1 = G, 2 = B) it occupies inside that region.
// ok is false when i is out of range.
func (l Layout) SliceRect(i int) (r image.Rectangle, channel int, ok bool) {
	if i < 0 || i >= l.SliceCount {
		return image.Rectangle{}, 0, false
	}
	group := i / PackingFactor
	col := group % l.Columns
	row := group / l.Columns
	x0 := col * l.SliceWidth
	y0 := row * l.SliceHeight
	return image.Rect(x0, y0, x0+l.SliceWidth, y0+l.SliceHeight), i % PackingFactor, true
}

// SliceDepth returns the virtual depth at the centre of slice i.
func (l Layout) SliceDepth(i int) float64 {
	if l.SliceCount == 0 {
		return 0
	}
	return (float64(i) + 0.5) / float64(l.SliceCount) * l.VirtualDepth
}

// String returns a compact description of the layout.
func (l Layout) String() string {
	return fmt.Sprintf("Layout[%dx%d res=%.3f slice=%dx%d slices=%d/%d grid=%dx%d atlas=%dx%d]",
		l.VirtualWidth, l.VirtualHeight, l.Resolution,
		l.SliceWidth, l.SliceHeight,
		l.SliceCount, l.PhysicalSliceCount,
		l.Columns, l.Rows,
		l.AtlasWidth(), l.AtlasHeight())
}

func clampResolution(r float64) float64 {
	if math.IsNaN(r) || r < MinResolution {
		return MinResolution
	}
	if r > MaxResolution {
		return MaxResolution
	}
	return r
}

func roundInt(v float64) int {
	return int(math.Round(v))
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func roundUp(v, multiple int) int {
	return ceilDiv(v, multiple) * multiple
}
