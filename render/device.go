// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Allocator errors.
var (
	// ErrInvalidDimensions is returned when a texture descriptor has a
	// non-positive width or height, or exceeds the device limit.
	ErrInvalidDimensions = errors.New("render: invalid texture dimensions")

	// ErrTextureReleased is returned when operating on a released texture.
	ErrTextureReleased = errors.New("render: texture has been released")

	// ErrSizeMismatch is returned when a pixel buffer does not match the
	// texture or region it targets.
	ErrSizeMismatch = errors.New("render: pixel buffer size mismatch")

	// ErrBudgetExceeded is returned when an allocation would exceed the
	// allocator's memory budget.
	ErrBudgetExceeded = errors.New("render: memory budget exceeded")

	// ErrAllocatorClosed is returned when operating on a closed allocator.
	ErrAllocatorClosed = errors.New("render: allocator closed")
)

// DefaultMaxTextureSize is the WebGPU default for maxTextureDimension2D.
const DefaultMaxTextureSize = 8192

// DeviceHandle provides GPU device access from the host application.
//
// Key principle: the field manager RECEIVES the device from the host, it
// does NOT create one. DeviceHandle is an alias for
// gpucontext.DeviceProvider so any gogpu host can be passed directly.
type DeviceHandle = gpucontext.DeviceProvider

// TextureDescriptor describes parameters for creating a 2D texture.
// This mirrors the subset of GPUTextureDescriptor the atlas needs.
type TextureDescriptor struct {
	// Label is an optional debug label for the texture.
	Label string

	// Width is the texture width in pixels.
	Width int

	// Height is the texture height in pixels.
	Height int

	// Format is the texture pixel format.
	Format gputypes.TextureFormat

	// Usage specifies how the texture will be used.
	Usage gputypes.TextureUsage
}

// AtlasUsage is the usage set requested for distance-field atlases: the
// rasterizer renders into it, the lighting pass samples it and
// persistence copies in both directions.
const AtlasUsage = gputypes.TextureUsageTextureBinding |
	gputypes.TextureUsageRenderAttachment |
	gputypes.TextureUsageCopySrc |
	gputypes.TextureUsageCopyDst

// Validate checks the descriptor against a maximum texture dimension.
func (d TextureDescriptor) Validate(maxSize int) error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, d.Width, d.Height)
	}
	if maxSize > 0 && (d.Width > maxSize || d.Height > maxSize) {
		return fmt.Errorf("%w: %dx%d exceeds device limit %d",
			ErrInvalidDimensions, d.Width, d.Height, maxSize)
	}
	if BytesPerPixel(d.Format) == 0 {
		return fmt.Errorf("render: unsupported texture format %v", d.Format)
	}
	return nil
}

// SizeBytes returns the tightly packed byte size of the described texture.
func (d TextureDescriptor) SizeBytes() int {
	return d.Width * d.Height * BytesPerPixel(d.Format)
}

// BytesPerPixel returns the number of bytes per pixel for the formats
// allocators in this module support, or 0 for anything else.
func BytesPerPixel(f gputypes.TextureFormat) int {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm:
		return 4
	case gputypes.TextureFormatRGBA16Float:
		return 8
	default:
		return 0
	}
}

// Texture is a 2D texture handle owned by an Allocator.
//
// Pixel buffers are tightly packed rows of Width * BytesPerPixel bytes.
type Texture interface {
	// Width returns the texture width in pixels.
	Width() int

	// Height returns the texture height in pixels.
	Height() int

	// Format returns the texture pixel format.
	Format() gputypes.TextureFormat

	// Label returns the debug label.
	Label() string

	// ReadPixels copies the whole texture into dst, which must hold at
	// least Width*Height*BytesPerPixel bytes.
	ReadPixels(dst []byte) error

	// WritePixels replaces the whole texture with src, which must be
	// exactly Width*Height*BytesPerPixel bytes.
	WritePixels(src []byte) error

	// WriteRegion replaces the w×h region at (x, y) with src.
	WriteRegion(x, y, w, h int, src []byte) error

	// Released reports whether the texture has been released.
	Released() bool
}

// Allocator creates and releases textures on behalf of distance fields
// and reports device loss.
type Allocator interface {
	// CreateTexture allocates a texture. Creation is serialized by the
	// allocator's creation lock.
	CreateTexture(desc TextureDescriptor) (Texture, error)

	// Release returns a texture to the allocator. Releasing twice is a no-op.
	Release(tex Texture)

	// InUse returns the shared lock guarding texture contents outside the
	// normal render-submission path (readback, bulk upload).
	InUse() sync.Locker

	// OnDeviceLost registers fn to be called after device loss. The
	// returned cancel func removes the subscription and is idempotent.
	OnDeviceLost(fn func()) (cancel func())

	// Capabilities returns the device limits.
	Capabilities() DeviceCapabilities
}

// DeviceCapabilities describes the capabilities of a GPU device.
type DeviceCapabilities struct {
	// MaxTextureSize is the maximum texture dimension supported.
	MaxTextureSize int

	// VendorName is the GPU vendor name.
	VendorName string

	// DeviceName is the GPU device name.
	DeviceName string
}

// MaxSurfaceSize returns MaxTextureSize, or DefaultMaxTextureSize when
// the limit is unknown.
func (c DeviceCapabilities) MaxSurfaceSize() int {
	if c.MaxTextureSize <= 0 {
		return DefaultMaxTextureSize
	}
	return c.MaxTextureSize
}

// NullDeviceHandle is a DeviceHandle that provides nil implementations.
// Used for CPU-only baking where no GPU is available.
type NullDeviceHandle struct{}

// Device returns nil for the null device.
func (NullDeviceHandle) Device() gpucontext.Device { return nil }

// Queue returns nil for the null device.
func (NullDeviceHandle) Queue() gpucontext.Queue { return nil }

// Adapter returns nil for the null device.
func (NullDeviceHandle) Adapter() gpucontext.Adapter { return nil }

// SurfaceFormat returns undefined format for the null device.
func (NullDeviceHandle) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

// Ensure NullDeviceHandle implements DeviceHandle.
var _ DeviceHandle = NullDeviceHandle{}
