package slicefield

import (
	"log/slog"
	"testing"
)

func TestDefaultOptions(t *testing.T) {
	o := defaultOptions()
	if o.label != "distance_field" {
		t.Errorf("label = %q, want distance_field", o.label)
	}
	if o.maxSurfaceSize != 0 {
		t.Errorf("maxSurfaceSize = %d, want 0", o.maxSurfaceSize)
	}
	if o.logger != nil {
		t.Error("logger should default to nil")
	}
}

func TestOptions(t *testing.T) {
	l := slog.New(nopHandler{})
	tests := []struct {
		name  string
		opts  []Option
		check func(t *testing.T, o options)
	}{
		{
			name: "label",
			opts: []Option{WithLabel("scene")},
			check: func(t *testing.T, o options) {
				if o.label != "scene" {
					t.Errorf("label = %q, want scene", o.label)
				}
			},
		},
		{
			name: "empty label keeps default",
			opts: []Option{WithLabel("")},
			check: func(t *testing.T, o options) {
				if o.label != "distance_field" {
					t.Errorf("label = %q, want distance_field", o.label)
				}
			},
		},
		{
			name: "surface size and logger",
			opts: []Option{WithMaxSurfaceSize(2048), WithLogger(l)},
			check: func(t *testing.T, o options) {
				if o.maxSurfaceSize != 2048 {
					t.Errorf("maxSurfaceSize = %d, want 2048", o.maxSurfaceSize)
				}
				if o.logger != l {
					t.Error("logger not applied")
				}
			},
		},
		{
			name: "last option wins",
			opts: []Option{WithLabel("a"), WithLabel("b")},
			check: func(t *testing.T, o options) {
				if o.label != "b" {
					t.Errorf("label = %q, want b", o.label)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := defaultOptions()
			for _, opt := range tt.opts {
				opt(&o)
			}
			tt.check(t, o)
		})
	}
}

func TestWithMaxSurfaceSize_LargerThanDevice(t *testing.T) {
	// The allocator reports 1024; asking for more keeps the device limit.
	alloc := newTestAllocator()
	f, err := New(alloc, Descriptor{Width: 512, Height: 512, Resolution: 1, SliceCount: 30},
		WithMaxSurfaceSize(4096))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Dispose()

	if got := f.Layout().SliceCount; got != 12 {
		t.Errorf("SliceCount = %d, want 12 (2x2 grid on 1024)", got)
	}
}
