package preview

import (
	"bufio"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/webp"

	"github.com/gogpu/slicefield/internal/fsync"
)

// Format is an image file format.
type Format int

const (
	// FormatPNG is lossless PNG.
	FormatPNG Format = iota
	// FormatWebP is lossless WebP.
	FormatWebP
	// FormatTGA is uncompressed Truevision TGA, for game texture pipelines.
	FormatTGA
)

// String returns the format's file extension without the dot.
func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatWebP:
		return "webp"
	case FormatTGA:
		return "tga"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// FormatFromPath picks a format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return FormatPNG, nil
	case ".webp":
		return FormatWebP, nil
	case ".tga":
		return FormatTGA, nil
	default:
		return 0, fmt.Errorf("preview: unsupported image extension %q", filepath.Ext(path))
	}
}

// Encode writes img to w in format f.
func Encode(w io.Writer, img image.Image, f Format) error {
	var err error
	switch f {
	case FormatPNG:
		err = png.Encode(w, img)
	case FormatWebP:
		err = nativewebp.Encode(w, img, nil)
	case FormatTGA:
		err = tga.Encode(w, img)
	default:
		return fmt.Errorf("preview: unsupported format %v", f)
	}
	if err != nil {
		return fmt.Errorf("preview: encode %v: %w", f, err)
	}
	return nil
}

// WriteFile encodes img in the format implied by path and replaces path
// atomically.
func WriteFile(path string, img image.Image) error {
	f, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	return fsync.WriteFile(path, 0o644, func(w io.Writer) error {
		return Encode(w, img, f)
	})
}

// ReadFile decodes a PNG, WebP or TGA image, picking the decoder from the
// file extension. The TGA format has no magic number, so content sniffing
// with image.Decode would misroute other formats.
func ReadFile(path string) (image.Image, error) {
	f, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, err := Decode(bufio.NewReader(file), f)
	if err != nil {
		return nil, fmt.Errorf("preview: decode %s: %w", path, err)
	}
	return img, nil
}

// Decode reads an image in format f from r.
func Decode(r io.Reader, f Format) (image.Image, error) {
	switch f {
	case FormatPNG:
		return png.Decode(r)
	case FormatWebP:
		return webp.Decode(r)
	case FormatTGA:
		return tga.Decode(r)
	default:
		return nil, fmt.Errorf("preview: unsupported format %v", f)
	}
}
