// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
)

func newTestAllocator() *SoftwareAllocator {
	return NewSoftwareAllocator(SoftwareConfig{BudgetMB: 16, MaxTextureSize: 1024})
}

func atlasDesc(w, h int) TextureDescriptor {
	return TextureDescriptor{
		Label:  "test_atlas",
		Width:  w,
		Height: h,
		Format: gputypes.TextureFormatRGBA16Float,
		Usage:  AtlasUsage,
	}
}

func TestSoftwareAllocator_CreateRelease(t *testing.T) {
	a := newTestAllocator()

	tex, err := a.CreateTexture(atlasDesc(16, 8))
	if err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}
	if tex.Width() != 16 || tex.Height() != 8 {
		t.Errorf("size = %dx%d, want 16x8", tex.Width(), tex.Height())
	}
	if tex.Format() != gputypes.TextureFormatRGBA16Float {
		t.Errorf("Format() = %v, want RGBA16Float", tex.Format())
	}

	stats := a.Stats()
	if stats.TextureCount != 1 || stats.UsedBytes != 16*8*8 {
		t.Errorf("Stats() = %+v, want 1 texture of %d bytes", stats, 16*8*8)
	}

	a.Release(tex)
	a.Release(tex)
	if !tex.Released() {
		t.Error("Released() = false after Release")
	}
	if got := a.Stats(); got.TextureCount != 0 || got.UsedBytes != 0 {
		t.Errorf("Stats() after release = %+v, want empty", got)
	}
	if err := tex.WritePixels(make([]byte, 16*8*8)); !errors.Is(err, ErrTextureReleased) {
		t.Errorf("WritePixels() after release error = %v, want ErrTextureReleased", err)
	}
}

func TestSoftwareAllocator_Budget(t *testing.T) {
	a := newTestAllocator()
	// 1024x1024x8 = 8 MB; two fit in 16 MB, a third does not.
	for i := 0; i < 2; i++ {
		if _, err := a.CreateTexture(atlasDesc(1024, 1024)); err != nil {
			t.Fatalf("CreateTexture(#%d) error = %v", i, err)
		}
	}
	if _, err := a.CreateTexture(atlasDesc(1024, 1024)); !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("third CreateTexture() error = %v, want ErrBudgetExceeded", err)
	}
}

func TestSoftwareTexture_ReadWrite(t *testing.T) {
	a := newTestAllocator()
	tex, err := a.CreateTexture(atlasDesc(4, 2))
	if err != nil {
		t.Fatal(err)
	}

	src := make([]byte, 4*2*8)
	for i := range src {
		src[i] = byte(i)
	}
	if err := tex.WritePixels(src); err != nil {
		t.Fatalf("WritePixels() error = %v", err)
	}
	if err := tex.WritePixels(src[:10]); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("short WritePixels() error = %v, want ErrSizeMismatch", err)
	}

	dst := make([]byte, len(src))
	if err := tex.ReadPixels(dst); err != nil {
		t.Fatalf("ReadPixels() error = %v", err)
	}
	for i := range src {
		if dst[i] != src[i] {
			t.Fatalf("ReadPixels()[%d] = %d, want %d", i, dst[i], src[i])
		}
	}
	if err := tex.ReadPixels(make([]byte, 3)); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("short ReadPixels() error = %v, want ErrSizeMismatch", err)
	}
}

func TestSoftwareTexture_WriteRegion(t *testing.T) {
	a := newTestAllocator()
	tex, err := a.CreateTexture(atlasDesc(4, 4))
	if err != nil {
		t.Fatal(err)
	}

	region := make([]byte, 2*2*8)
	for i := range region {
		region[i] = 0xFF
	}
	if err := tex.WriteRegion(2, 1, 2, 2, region); err != nil {
		t.Fatalf("WriteRegion() error = %v", err)
	}

	pix := make([]byte, 4*4*8)
	if err := tex.ReadPixels(pix); err != nil {
		t.Fatal(err)
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			inside := x >= 2 && y >= 1 && y < 3
			got := pix[(y*4+x)*8]
			if inside && got != 0xFF {
				t.Errorf("pixel (%d,%d) = %d, want 0xFF", x, y, got)
			}
			if !inside && got != 0 {
				t.Errorf("pixel (%d,%d) = %d, want 0", x, y, got)
			}
		}
	}

	if err := tex.WriteRegion(3, 3, 2, 2, region); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("out-of-bounds WriteRegion() error = %v, want ErrInvalidDimensions", err)
	}
}

func TestSoftwareAllocator_DeviceLost(t *testing.T) {
	a := newTestAllocator()

	var calls []int
	cancel1 := a.OnDeviceLost(func() { calls = append(calls, 1) })
	cancel2 := a.OnDeviceLost(func() { calls = append(calls, 2) })
	if a.Subscribers() != 2 {
		t.Fatalf("Subscribers() = %d, want 2", a.Subscribers())
	}

	a.NotifyDeviceLost()
	if len(calls) != 2 || calls[0] != 1 || calls[1] != 2 {
		t.Errorf("notification order = %v, want [1 2]", calls)
	}

	cancel1()
	cancel1()
	a.NotifyDeviceLost()
	if len(calls) != 3 || calls[2] != 2 {
		t.Errorf("after cancel, calls = %v, want [1 2 2]", calls)
	}
	cancel2()
	if a.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0", a.Subscribers())
	}
	if a.Stats().DeviceLosses != 2 {
		t.Errorf("DeviceLosses = %d, want 2", a.Stats().DeviceLosses)
	}
}

func TestSoftwareAllocator_Close(t *testing.T) {
	a := newTestAllocator()
	tex, err := a.CreateTexture(atlasDesc(8, 8))
	if err != nil {
		t.Fatal(err)
	}
	a.Close()
	a.Close()
	if !tex.Released() {
		t.Error("Close() should release live textures")
	}
	if _, err := a.CreateTexture(atlasDesc(8, 8)); !errors.Is(err, ErrAllocatorClosed) {
		t.Errorf("CreateTexture() after Close error = %v, want ErrAllocatorClosed", err)
	}
}
