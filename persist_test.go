package slicefield

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// fillPattern writes a recognizable byte pattern into the atlas.
func fillPattern(t *testing.T, f *Field) []byte {
	t.Helper()
	buf := make([]byte, f.Layout().ByteSize())
	for i := range buf {
		buf[i] = byte(i*7 + 3)
	}
	if err := f.Texture().WritePixels(buf); err != nil {
		t.Fatalf("WritePixels: %v", err)
	}
	return buf
}

func TestSave_Incomplete(t *testing.T) {
	f := newTestField(t, newTestAllocator())
	defer f.Dispose()

	// Everything but the last slice.
	for i := 0; i < 8; i++ {
		f.Validate(i)
		f.MarkValid(i)
	}

	var out bytes.Buffer
	err := f.Save(&out)
	if !errors.Is(err, ErrIncompleteField) {
		t.Fatalf("Save() error = %v, want ErrIncompleteField", err)
	}
	if out.Len() != 0 {
		t.Errorf("Save() wrote %d bytes on failure", out.Len())
	}
}

func TestSave_Complete(t *testing.T) {
	f := newTestField(t, newTestAllocator())
	defer f.Dispose()

	want := fillPattern(t, f)
	generateAll(f)

	var out bytes.Buffer
	if err := f.Save(&out); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if out.Len() != 2048 {
		t.Errorf("Save() wrote %d bytes, want 2048", out.Len())
	}
	if !bytes.Equal(out.Bytes(), want) {
		t.Error("saved bytes differ from atlas contents")
	}
}

func TestSave_WatermarkGatesNotDirtySet(t *testing.T) {
	f := newTestField(t, newTestAllocator())
	defer f.Dispose()

	generateAll(f)
	f.InvalidateAll()

	// Dirty set is full but the watermark still covers every slice.
	var out bytes.Buffer
	if err := f.Save(&out); err != nil {
		t.Errorf("Save() after InvalidateAll error = %v, want nil", err)
	}
}

func TestLoad_Truncated(t *testing.T) {
	f := newTestField(t, newTestAllocator())
	defer f.Dispose()

	before := make([]byte, 2048)
	if err := f.Texture().ReadPixels(before); err != nil {
		t.Fatal(err)
	}

	short := bytes.Repeat([]byte{0xAB}, 1000)
	err := f.Load(bytes.NewReader(short))
	if !errors.Is(err, ErrTruncatedData) {
		t.Fatalf("Load(short) error = %v, want ErrTruncatedData", err)
	}

	after := make([]byte, 2048)
	if err := f.Texture().ReadPixels(after); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Error("failed Load modified the atlas")
	}
	if f.IsFullyGenerated() || f.InvalidCount() != 9 {
		t.Errorf("failed Load changed validity: %v", f)
	}

	if err := f.Load(bytes.NewReader(nil)); !errors.Is(err, ErrTruncatedData) {
		t.Errorf("Load(empty) error = %v, want ErrTruncatedData", err)
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	alloc := newTestAllocator()
	src := newTestField(t, alloc)
	defer src.Dispose()
	want := fillPattern(t, src)
	generateAll(src)

	var saved bytes.Buffer
	if err := src.Save(&saved); err != nil {
		t.Fatal(err)
	}

	dst := newTestField(t, alloc)
	defer dst.Dispose()
	if dst.Revision() != 0 {
		t.Errorf("Revision() = %d before Load, want 0", dst.Revision())
	}

	// Trailing bytes beyond the atlas size are ignored.
	saved.Write([]byte{1, 2, 3})
	if err := dst.Load(&saved); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	got := make([]byte, len(want))
	if err := dst.Texture().ReadPixels(got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Error("loaded atlas differs from saved atlas")
	}
	if !dst.IsFullyGenerated() {
		t.Errorf("IsFullyGenerated() = false after Load: %v", dst)
	}
	if dst.Revision() != 1 {
		t.Errorf("Revision() = %d after Load, want 1", dst.Revision())
	}
	if dst.NeedsWork() {
		t.Error("NeedsWork() = true after Load")
	}
	if dst.NeedsClear() {
		t.Error("NeedsClear() = true after Load")
	}
	if dst.Watermark() != 9 {
		t.Errorf("Watermark() = %d after Load, want 9", dst.Watermark())
	}
}

func TestSaveFile_LoadFile(t *testing.T) {
	alloc := newTestAllocator()
	src := newTestField(t, alloc)
	defer src.Dispose()
	want := fillPattern(t, src)
	generateAll(src)

	path := filepath.Join(t.TempDir(), "level.sdf")
	if err := src.SaveFile(path); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(raw, want) {
		t.Error("file contents differ from atlas")
	}

	dst := newTestField(t, alloc)
	defer dst.Dispose()
	if err := dst.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if !dst.IsFullyGenerated() {
		t.Error("IsFullyGenerated() = false after LoadFile")
	}

	if err := dst.LoadFile(filepath.Join(t.TempDir(), "missing.sdf")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadFile(missing) error = %v, want os.ErrNotExist", err)
	}
}

func TestSaveFile_IncompleteLeavesNoFile(t *testing.T) {
	f := newTestField(t, newTestAllocator())
	defer f.Dispose()

	path := filepath.Join(t.TempDir(), "partial.sdf")
	if err := f.SaveFile(path); !errors.Is(err, ErrIncompleteField) {
		t.Fatalf("SaveFile() error = %v, want ErrIncompleteField", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("SaveFile created %s on failure", path)
	}
}

func TestPersist_Disposed(t *testing.T) {
	f := newTestField(t, newTestAllocator())
	generateAll(f)
	f.Dispose()

	if err := f.Save(&bytes.Buffer{}); !errors.Is(err, ErrDisposed) {
		t.Errorf("Save() after Dispose error = %v, want ErrDisposed", err)
	}
	if err := f.Load(bytes.NewReader(make([]byte, 2048))); !errors.Is(err, ErrDisposed) {
		t.Errorf("Load() after Dispose error = %v, want ErrDisposed", err)
	}
}
