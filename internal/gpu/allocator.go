//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/slicefield/render"
)

// copyRowAlignment is the required BytesPerRow alignment for
// texture-to-buffer copies.
const copyRowAlignment = 256

// readbackTimeout bounds the fence wait of a texture readback.
const readbackTimeout = 5 * time.Second

var (
	// ErrNoHALProvider is returned when the provider does not expose
	// HalDevice() and HalQueue().
	ErrNoHALProvider = errors.New("gpu: provider does not expose HAL types")

	// ErrForeignTexture is returned when a texture from another allocator
	// is passed in.
	ErrForeignTexture = errors.New("gpu: texture not created by this allocator")

	// ErrReadbackTimeout is returned when the GPU does not finish a
	// readback copy within readbackTimeout.
	ErrReadbackTimeout = errors.New("gpu: readback timed out")
)

// Config configures a HALAllocator.
type Config struct {
	// MaxTextureSize is the device's maxTextureDimension2D.
	// Defaults to render.DefaultMaxTextureSize if <= 0.
	MaxTextureSize int

	// Label prefixes staging buffers and encoders for debugging.
	Label string
}

// HALAllocator creates atlas textures on a shared wgpu/hal device.
//
// The device and queue are owned by the host (for example a gogpu app);
// the allocator never destroys them. Device loss is reported by the host
// through NotifyDeviceLost.
type HALAllocator struct {
	device hal.Device
	queue  hal.Queue
	label  string
	caps   render.DeviceCapabilities

	// inUse serializes texture access against queue submission.
	inUse sync.Mutex

	mu       sync.Mutex
	textures map[*halTexture]struct{}
	closed   bool

	lost   render.LossNotifier
	losses atomic.Uint64
}

var _ render.Allocator = (*HALAllocator)(nil)

// NewHALAllocator wraps the HAL device of provider. The provider must
// implement HalDevice() any and HalQueue() any returning hal.Device and
// hal.Queue.
func NewHALAllocator(provider any, cfg Config) (*HALAllocator, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHALProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("gpu: provider HalQueue is not hal.Queue")
	}

	maxSize := cfg.MaxTextureSize
	if maxSize <= 0 {
		maxSize = render.DefaultMaxTextureSize
	}
	label := cfg.Label
	if label == "" {
		label = "slicefield"
	}

	a := &HALAllocator{
		device:   device,
		queue:    queue,
		label:    label,
		caps:     render.DeviceCapabilities{MaxTextureSize: maxSize},
		textures: make(map[*halTexture]struct{}),
	}
	slogger().Debug("gpu: allocator ready", slog.Int("max_texture_size", maxSize))
	return a, nil
}

// CreateTexture creates a 2D texture and its default view.
func (a *HALAllocator) CreateTexture(desc render.TextureDescriptor) (render.Texture, error) {
	if err := desc.Validate(a.caps.MaxTextureSize); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, render.ErrAllocatorClosed
	}

	//nolint:gosec // G115: dimensions validated positive and bounded
	w, h := uint32(desc.Width), uint32(desc.Height)
	tex, err := a.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create texture %q: %w", desc.Label, err)
	}
	view, err := a.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         desc.Label + "_view",
		Format:        desc.Format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		a.device.DestroyTexture(tex)
		return nil, fmt.Errorf("gpu: create texture view %q: %w", desc.Label, err)
	}

	t := &halTexture{
		alloc:  a,
		tex:    tex,
		view:   view,
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
		label:  desc.Label,
		bpp:    render.BytesPerPixel(desc.Format),
	}
	a.textures[t] = struct{}{}
	slogger().Debug("gpu: texture created",
		slog.String("label", desc.Label),
		slog.Int("width", desc.Width),
		slog.Int("height", desc.Height))
	return t, nil
}

// Release destroys a texture created by this allocator. Foreign and
// already released textures are ignored.
func (a *HALAllocator) Release(tex render.Texture) {
	t, ok := tex.(*halTexture)
	if !ok || t.alloc != a {
		return
	}
	if t.released.Swap(true) {
		return
	}
	a.mu.Lock()
	delete(a.textures, t)
	a.mu.Unlock()
	a.destroy(t)
}

func (a *HALAllocator) destroy(t *halTexture) {
	if t.view != nil {
		a.device.DestroyTextureView(t.view)
	}
	if t.tex != nil {
		a.device.DestroyTexture(t.tex)
	}
}

// InUse returns the lock held while a texture is read back or uploaded.
func (a *HALAllocator) InUse() sync.Locker {
	return &a.inUse
}

// OnDeviceLost registers fn for device-loss notifications.
func (a *HALAllocator) OnDeviceLost(fn func()) (cancel func()) {
	return a.lost.Subscribe(fn)
}

// Capabilities returns the configured device limits.
func (a *HALAllocator) Capabilities() render.DeviceCapabilities {
	return a.caps
}

// NotifyDeviceLost is called by the host after the device was lost and
// recreated in place. Every subscriber is notified in registration order.
func (a *HALAllocator) NotifyDeviceLost() {
	n := a.losses.Add(1)
	slogger().Warn("gpu: device lost", slog.Uint64("count", n), slog.Int("subscribers", a.lost.Len()))
	a.lost.Notify()
}

// Close destroys every live texture. The device and queue are not touched.
func (a *HALAllocator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	for t := range a.textures {
		if !t.released.Swap(true) {
			a.destroy(t)
		}
	}
	a.textures = nil
}

// writeRegion uploads a tightly packed w x h block at (x, y).
func (a *HALAllocator) writeRegion(t *halTexture, x, y, w, h int, src []byte) {
	//nolint:gosec // G115: region validated against texture bounds
	a.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: 0,
			Origin:   hal.Origin3D{X: uint32(x), Y: uint32(y), Z: 0},
		},
		src,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(w * t.bpp),
			RowsPerImage: uint32(h),
		},
		&hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
	)
}

// readTexture copies the whole texture to a staging buffer, waits for the
// GPU and strips the row padding into dst.
func (a *HALAllocator) readTexture(t *halTexture, dst []byte) error {
	rowBytes := t.width * t.bpp
	padded := paddedBytesPerRow(rowBytes)
	bufSize := uint64(padded) * uint64(t.height) //nolint:gosec // G115: positive

	encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: a.label + "_readback_encoder",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(a.label + "_readback"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageTextureBinding,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})

	staging, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: a.label + "_readback_staging",
		Size:  bufSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("create staging buffer: %w", err)
	}
	defer a.device.DestroyBuffer(staging)

	//nolint:gosec // G115: dimensions validated at creation
	encoder.CopyTextureToBuffer(t.tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: uint32(padded), RowsPerImage: uint32(t.height)},
		TextureBase:  hal.ImageCopyTexture{Texture: t.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: uint32(t.width), Height: uint32(t.height), DepthOrArrayLayers: 1},
	}})

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageTextureBinding,
		},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer a.device.FreeCommandBuffer(cmdBuf)

	fence, err := a.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer a.device.DestroyFence(fence)

	if err := a.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if err := waitFence(a.device, fence, readbackTimeout); err != nil {
		return err
	}

	readback := make([]byte, bufSize)
	if err := a.queue.ReadBuffer(staging, 0, readback); err != nil {
		return fmt.Errorf("readback: %w", err)
	}
	unpadRows(dst, readback, rowBytes, padded, t.height)
	return nil
}

// fenceWaiter is the part of hal.Device used to wait for a submission.
type fenceWaiter interface {
	Wait(fence hal.Fence, value uint64, timeout time.Duration) (bool, error)
}

// waitFence waits for fence to reach 1.
func waitFence(dev fenceWaiter, fence hal.Fence, timeout time.Duration) error {
	ok, err := dev.Wait(fence, 1, timeout)
	if err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w after %v", ErrReadbackTimeout, timeout)
	}
	return nil
}

// paddedBytesPerRow rounds rowBytes up to copyRowAlignment.
func paddedBytesPerRow(rowBytes int) int {
	return (rowBytes + copyRowAlignment - 1) / copyRowAlignment * copyRowAlignment
}

// unpadRows copies rows of rowBytes from a padded buffer into dst.
func unpadRows(dst, src []byte, rowBytes, padded, rows int) {
	if rowBytes == padded {
		copy(dst, src[:rowBytes*rows])
		return
	}
	for y := 0; y < rows; y++ {
		copy(dst[y*rowBytes:(y+1)*rowBytes], src[y*padded:y*padded+rowBytes])
	}
}

// halTexture is a render.Texture backed by a hal.Texture.
type halTexture struct {
	alloc    *HALAllocator
	tex      hal.Texture
	view     hal.TextureView
	width    int
	height   int
	format   gputypes.TextureFormat
	label    string
	bpp      int
	released atomic.Bool
}

var _ render.Texture = (*halTexture)(nil)

func (t *halTexture) Width() int                     { return t.width }
func (t *halTexture) Height() int                    { return t.height }
func (t *halTexture) Format() gputypes.TextureFormat { return t.format }
func (t *halTexture) Label() string                  { return t.label }
func (t *halTexture) Released() bool                 { return t.released.Load() }

// View returns the texture view for bind group creation.
func (t *halTexture) View() hal.TextureView { return t.view }

// HALTexture returns the underlying hal.Texture.
func (t *halTexture) HALTexture() hal.Texture { return t.tex }

func (t *halTexture) size() int { return t.width * t.height * t.bpp }

// ReadPixels reads the whole texture back from the GPU. It blocks until
// the copy completes.
func (t *halTexture) ReadPixels(dst []byte) error {
	if t.released.Load() {
		return render.ErrTextureReleased
	}
	if len(dst) < t.size() {
		return fmt.Errorf("%w: dst has %d bytes, texture needs %d", render.ErrSizeMismatch, len(dst), t.size())
	}
	if err := t.alloc.readTexture(t, dst[:t.size()]); err != nil {
		return fmt.Errorf("gpu: read %q: %w", t.label, err)
	}
	return nil
}

// WritePixels uploads the whole texture.
func (t *halTexture) WritePixels(src []byte) error {
	if t.released.Load() {
		return render.ErrTextureReleased
	}
	if len(src) != t.size() {
		return fmt.Errorf("%w: src has %d bytes, texture needs %d", render.ErrSizeMismatch, len(src), t.size())
	}
	t.alloc.writeRegion(t, 0, 0, t.width, t.height, src)
	return nil
}

// WriteRegion uploads a tightly packed w x h block at (x, y).
func (t *halTexture) WriteRegion(x, y, w, h int, src []byte) error {
	if t.released.Load() {
		return render.ErrTextureReleased
	}
	if x < 0 || y < 0 || w <= 0 || h <= 0 || x+w > t.width || y+h > t.height {
		return fmt.Errorf("%w: region (%d,%d %dx%d) outside %dx%d",
			render.ErrInvalidDimensions, x, y, w, h, t.width, t.height)
	}
	if len(src) != w*h*t.bpp {
		return fmt.Errorf("%w: src has %d bytes, region needs %d", render.ErrSizeMismatch, len(src), w*h*t.bpp)
	}
	t.alloc.writeRegion(t, x, y, w, h, src)
	return nil
}

func (t *halTexture) String() string {
	return fmt.Sprintf("halTexture[%s %dx%d %v]", t.label, t.width, t.height, t.format)
}
