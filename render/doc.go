// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render defines the allocator contract between distance fields
// and the host's texture management.
//
// # Key Principle
//
// A distance field RECEIVES textures from an Allocator, it does NOT
// create GPU resources itself. The allocator owns the creation lock, the
// shared in-use lock guarding texture contents outside normal render
// submission, and the device-loss notification channel.
//
// # Core Interfaces
//
//   - Allocator: texture creation, release, locks and device-loss events
//   - Texture: 2D texture handle with whole-texture readback and upload
//   - DeviceHandle: GPU device access from the host application
//
// # Implementations
//
//   - SoftwareAllocator: host-memory textures for offline baking and tests
//   - gpu.NewAllocator: wgpu HAL textures on a shared device (package gpu)
//
// # Usage
//
//	alloc := render.NewSoftwareAllocator(render.SoftwareConfig{})
//	field, err := slicefield.New(alloc, desc)
//	...
//	alloc.NotifyDeviceLost() // field re-invalidates every slice
package render
