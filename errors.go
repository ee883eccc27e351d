package slicefield

import "errors"

var (
	// ErrIncompleteField is returned by Save when not every slice has been
	// generated. Nothing is written.
	ErrIncompleteField = errors.New("slicefield: distance field is incomplete")

	// ErrTruncatedData is returned by Load when the stream holds fewer
	// bytes than the atlas. The texture is left untouched.
	ErrTruncatedData = errors.New("slicefield: truncated atlas data")

	// ErrNotSupported is returned by persistence calls on a DynamicField,
	// which has no on-disk format.
	ErrNotSupported = errors.New("slicefield: operation not supported")

	// ErrDisposed is returned when operating on a disposed field.
	ErrDisposed = errors.New("slicefield: field has been disposed")

	// ErrEmptyLayout is returned when the requested volume cannot hold a
	// single slice on the device (slice larger than the maximum surface).
	ErrEmptyLayout = errors.New("slicefield: layout holds no slices")

	// ErrNilAllocator is returned when constructing a field without an allocator.
	ErrNilAllocator = errors.New("slicefield: allocator is nil")
)
