package slicefield

import "log/slog"

// Option configures a Field or DynamicField during creation.
//
// Example:
//
//	field, err := slicefield.New(alloc, desc,
//	    slicefield.WithLabel("level_sdf"),
//	    slicefield.WithMaxSurfaceSize(4096),
//	)
type Option func(*options)

// options holds optional configuration for field creation.
type options struct {
	label          string
	maxSurfaceSize int
	logger         *slog.Logger
}

// defaultOptions returns the default field options.
func defaultOptions() options {
	return options{
		label:          "distance_field",
		maxSurfaceSize: 0, // taken from the allocator's capabilities
		logger:         nil,
	}
}

// WithLabel sets the debug label used for atlas textures and log records.
func WithLabel(label string) Option {
	return func(o *options) {
		if label != "" {
			o.label = label
		}
	}
}

// WithMaxSurfaceSize overrides the maximum atlas dimension reported by the
// allocator. The smaller of the two is used.
func WithMaxSurfaceSize(size int) Option {
	return func(o *options) {
		o.maxSurfaceSize = size
	}
}

// WithLogger sets a logger for this field only, overriding SetLogger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
