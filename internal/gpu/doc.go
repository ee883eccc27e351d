//go:build !nogpu

// Package gpu implements render.Allocator on a shared wgpu/hal device.
//
// This is an internal package; the public entry point is
// github.com/gogpu/slicefield/gpu.
//
// # Device Sharing
//
// The allocator never creates a device. The host passes a provider that
// exposes HalDevice() and HalQueue() (gogpu apps do), and keeps ownership
// of both. After the host recreates a lost device it calls
// NotifyDeviceLost so every field resets its ledgers.
//
// # Readback
//
// Texture readback copies into a staging buffer with rows padded to 256
// bytes, waits on a fence and strips the padding. It blocks the caller and
// is only used for persistence and previews.
//
// # Shaders
//
// shaders/field_sample.wgsl holds the sampling helpers the lighting pass
// uses and a compute entry point that renders a cross-section. WGSL is
// compiled to SPIR-V with naga.
package gpu
