package slicefield

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gogpu/slicefield/internal/fsync"
	"github.com/gogpu/slicefield/render"
)

// The persisted format is a raw dump of the whole atlas: exactly
// Layout.ByteSize() bytes (8 per pixel, rows top to bottom), with no
// header, version or compression. Dimensions are not stored; a loader
// must be constructed from an equivalent Descriptor.

// Save writes the atlas contents to w.
//
// The field must be fully generated up to its watermark; otherwise Save
// returns ErrIncompleteField and writes nothing. The texture readback
// holds the allocator's in-use lock.
func (f *Field) Save(w io.Writer) error {
	buf, err := f.snapshot()
	if err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("slicefield: write atlas: %w", err)
	}
	f.log.Info("slicefield: atlas saved", slog.Int("bytes", len(buf)))
	return nil
}

// snapshot checks the watermark and reads back the atlas.
func (f *Field) snapshot() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.disposed {
		return nil, ErrDisposed
	}
	if wm := f.atlas.ledger.Watermark(); wm < f.layout.SliceCount {
		return nil, fmt.Errorf("%w: watermark %d of %d slices", ErrIncompleteField, wm, f.layout.SliceCount)
	}
	return readAtlas(f.alloc, f.atlas.tex, f.layout.ByteSize())
}

// Load replaces the atlas contents with exactly Layout.ByteSize() bytes
// read from r.
//
// A short stream returns ErrTruncatedData and leaves the field untouched.
// On success the dirty set is cleared and the watermark is set to the
// slice count rounded up to PackingFactor.
func (f *Field) Load(r io.Reader) error {
	size := f.layout.ByteSize()
	buf := make([]byte, size)
	if n, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: read %d of %d bytes", ErrTruncatedData, n, size)
		}
		return fmt.Errorf("slicefield: read atlas: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.disposed {
		return ErrDisposed
	}
	if err := writeAtlas(f.alloc, f.atlas.tex, buf); err != nil {
		return err
	}
	// TODO: the watermark should probably be SliceCount itself; the rounding
	// is kept until loaders relying on it are audited.
	f.atlas.ledger.setComplete(roundUp(f.layout.SliceCount, PackingFactor))
	f.needsClear = false
	f.revision++
	f.log.Info("slicefield: atlas loaded", slog.Int("bytes", size))
	return nil
}

// SaveFile saves the atlas to path, replacing it atomically once the data
// has reached stable storage.
func (f *Field) SaveFile(path string) error {
	buf, err := f.snapshot()
	if err != nil {
		return err
	}
	err = fsync.WriteFile(path, 0o644, func(w io.Writer) error {
		_, err := w.Write(buf)
		return err
	})
	if err != nil {
		return fmt.Errorf("slicefield: save %s: %w", path, err)
	}
	f.log.Info("slicefield: atlas saved", slog.String("path", path), slog.Int("bytes", len(buf)))
	return nil
}

// LoadFile loads the atlas from path. See Load.
func (f *Field) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("slicefield: load %s: %w", path, err)
	}
	defer file.Close()
	return f.Load(file)
}

// readAtlas reads the whole texture under the allocator's in-use lock.
func readAtlas(alloc render.Allocator, tex render.Texture, size int) ([]byte, error) {
	buf := make([]byte, size)
	lock := alloc.InUse()
	lock.Lock()
	defer lock.Unlock()
	if err := tex.ReadPixels(buf); err != nil {
		return nil, fmt.Errorf("slicefield: read back atlas: %w", err)
	}
	return buf, nil
}

// writeAtlas uploads the whole texture under the allocator's in-use lock.
func writeAtlas(alloc render.Allocator, tex render.Texture, buf []byte) error {
	lock := alloc.InUse()
	lock.Lock()
	defer lock.Unlock()
	if err := tex.WritePixels(buf); err != nil {
		return fmt.Errorf("slicefield: upload atlas: %w", err)
	}
	return nil
}
