// Package preview turns slicefield atlases into images for inspection.
//
// Distances are mapped to 8-bit intensity around mid-gray: 128 is the
// surface, darker is inside geometry and brighter is outside, saturating
// at the field's max distance.
package preview

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/slicefield"
	"github.com/gogpu/slicefield/internal/texel"
	"github.com/gogpu/slicefield/render"
)

// ErrSliceOutOfRange is returned for a slice index outside the layout.
var ErrSliceOutOfRange = errors.New("preview: slice index out of range")

// ReadAtlas reads the whole texture under the allocator's in-use lock.
func ReadAtlas(alloc render.Allocator, tex render.Texture) ([]byte, error) {
	buf := make([]byte, tex.Width()*tex.Height()*render.BytesPerPixel(tex.Format()))
	lock := alloc.InUse()
	lock.Lock()
	defer lock.Unlock()
	if err := tex.ReadPixels(buf); err != nil {
		return nil, fmt.Errorf("preview: read %q: %w", tex.Label(), err)
	}
	return buf, nil
}

// Intensity maps a distance to 8-bit gray.
func Intensity(d, maxDistance float64) uint8 {
	if maxDistance <= 0 {
		maxDistance = 1
	}
	v := 0.5 + 0.5*d/maxDistance
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

// AtlasImage renders the atlas as it is stored: each texel group shows
// its three slices in the R, G and B channels.
func AtlasImage(pixels []byte, l slicefield.Layout) (*image.NRGBA, error) {
	w, h := l.AtlasWidth(), l.AtlasHeight()
	if len(pixels) < w*h*texel.Size {
		return nil, fmt.Errorf("preview: atlas needs %d bytes, got %d", w*h*texel.Size, len(pixels))
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var c [3]uint8
			for ch := range c {
				d := texel.Decode(texel.Get(pixels, texel.Offset(w, x, y, ch)), l.MaxDistance)
				c[ch] = Intensity(d, l.MaxDistance)
			}
			img.SetNRGBA(x, y, color.NRGBA{R: c[0], G: c[1], B: c[2], A: 255})
		}
	}
	return img, nil
}

// SliceImage renders slice i as a grayscale cross-section.
func SliceImage(pixels []byte, l slicefield.Layout, i int) (*image.Gray, error) {
	rect, ch, ok := l.SliceRect(i)
	if !ok {
		return nil, fmt.Errorf("%w: %d of %d", ErrSliceOutOfRange, i, l.SliceCount)
	}
	w := l.AtlasWidth()
	if len(pixels) < w*l.AtlasHeight()*texel.Size {
		return nil, fmt.Errorf("preview: atlas needs %d bytes, got %d", w*l.AtlasHeight()*texel.Size, len(pixels))
	}
	img := image.NewGray(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := 0; y < rect.Dy(); y++ {
		for x := 0; x < rect.Dx(); x++ {
			d := texel.Decode(texel.Get(pixels, texel.Offset(w, rect.Min.X+x, rect.Min.Y+y, ch)), l.MaxDistance)
			img.SetGray(x, y, color.Gray{Y: Intensity(d, l.MaxDistance)})
		}
	}
	return img, nil
}

// Scale resizes img by factor with Catmull-Rom filtering. A factor of 1 or
// less returns img unchanged.
func Scale(img image.Image, factor int) image.Image {
	if factor <= 1 {
		return img
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}
