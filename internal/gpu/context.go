package gpu

import (
	"fmt"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// DefaultFenceTimeout bounds every wait for submitted work unless
// overridden. A GPU that has not finished a frame's work in this time is
// treated as lost.
const DefaultFenceTimeout = 5 * time.Second

// InstanceFactory creates HAL instances. Every registered hal.Backend
// satisfies it, as does noop.API.
type InstanceFactory interface {
	CreateInstance(desc *hal.InstanceDescriptor) (hal.Instance, error)
}

// ContextOption configures NewContext.
type ContextOption func(*contextOptions)

type contextOptions struct {
	backend          InstanceFactory
	requiredFeatures gputypes.Features
	fenceTimeout     time.Duration
	surfaceFormat    gputypes.TextureFormat
	memoryMB         int
}

func defaultContextOptions() contextOptions {
	return contextOptions{
		fenceTimeout:  DefaultFenceTimeout,
		surfaceFormat: gputypes.TextureFormatRGBA8Unorm,
		memoryMB:      DefaultMaxMemoryMB,
	}
}

// WithBackend selects the HAL backend used to enumerate adapters.
// Defaults to the registered Vulkan backend.
func WithBackend(b InstanceFactory) ContextOption {
	return func(o *contextOptions) { o.backend = b }
}

// WithRequiredFeatures rejects adapters that lack any of f.
func WithRequiredFeatures(f gputypes.Features) ContextOption {
	return func(o *contextOptions) { o.requiredFeatures = f }
}

// WithFenceTimeout bounds waits for submitted work. Zero waits forever.
func WithFenceTimeout(d time.Duration) ContextOption {
	return func(o *contextOptions) {
		if d >= 0 {
			o.fenceTimeout = d
		}
	}
}

// WithMemoryBudget caps the memory of renderer-owned attachments.
func WithMemoryBudget(megabytes int) ContextOption {
	return func(o *contextOptions) { o.memoryMB = megabytes }
}

// WithSurfaceFormat sets the default color format for eye images.
func WithSurfaceFormat(f gputypes.TextureFormat) ContextOption {
	return func(o *contextOptions) { o.surfaceFormat = f }
}

// Context owns the device, its queue and the pipeline cache.
//
// Every other type in this package takes a *Context explicitly; there is no
// package-level device state. A Context is not safe for concurrent use
// except for its pipeline cache.
type Context struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	cache    *PipelineCache
	memory   *MemoryTracker

	adapterName   string
	external      bool
	fenceTimeout  time.Duration
	surfaceFormat gputypes.TextureFormat
}

// NewContext selects the most capable adapter that exposes the required
// features and opens a device on it. It returns ErrNoSuitableAdapter when
// none qualifies.
func NewContext(opts ...ContextOption) (*Context, error) {
	o := defaultContextOptions()
	for _, opt := range opts {
		opt(&o)
	}

	backend := o.backend
	if backend == nil {
		b, ok := hal.GetBackend(gputypes.BackendVulkan)
		if !ok {
			return nil, fmt.Errorf("%w: vulkan backend not available", ErrNoSuitableAdapter)
		}
		backend = b
	}

	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	selected := selectAdapter(adapters, o.requiredFeatures)
	if selected == nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: %d adapters, none with features %#x",
			ErrNoSuitableAdapter, len(adapters), uint64(o.requiredFeatures))
	}

	openDev, err := selected.Adapter.Open(o.requiredFeatures, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}

	c := newContext(openDev.Device, openDev.Queue, o)
	c.instance = instance
	c.adapterName = selected.Info.Name
	slogger().Info("gpu: adapter selected", "adapter", c.adapterName, "score", scoreAdapter(selected))
	return c, nil
}

// NewContextFromProvider adopts a device created elsewhere, for example by
// the windowing layer. The provider must expose HalDevice and HalQueue.
// The device is not destroyed by Context.Destroy.
func NewContextFromProvider(provider gpucontext.DeviceProvider, opts ...ContextOption) (*Context, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNotHALProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNotHALProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNotHALProvider)
	}

	o := defaultContextOptions()
	if f := provider.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
		o.surfaceFormat = f
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := newContext(device, queue, o)
	c.external = true
	c.adapterName = provider.AdapterInfo().Name
	if c.adapterName == "" {
		c.adapterName = "external"
	}
	slogger().Info("gpu: using external device", "format", c.surfaceFormat)
	return c, nil
}

func newContext(device hal.Device, queue hal.Queue, o contextOptions) *Context {
	return &Context{
		device:        device,
		queue:         queue,
		cache:         NewPipelineCache(),
		memory:        NewMemoryTracker(o.memoryMB),
		fenceTimeout:  o.fenceTimeout,
		surfaceFormat: o.surfaceFormat,
	}
}

// Device returns the HAL device.
func (c *Context) Device() hal.Device { return c.device }

// Queue returns the graphics queue.
func (c *Context) Queue() hal.Queue { return c.queue }

// PipelineCache returns the context's render pipeline cache.
func (c *Context) PipelineCache() *PipelineCache { return c.cache }

// Memory returns the attachment memory tracker.
func (c *Context) Memory() *MemoryTracker { return c.memory }

// FenceTimeout returns the bound applied to waits for submitted work.
func (c *Context) FenceTimeout() time.Duration { return c.fenceTimeout }

// SurfaceFormat returns the default color format for eye images.
func (c *Context) SurfaceFormat() gputypes.TextureFormat { return c.surfaceFormat }

// AdapterName returns the name of the selected adapter.
func (c *Context) AdapterName() string { return c.adapterName }

// Destroy releases cached pipelines and, unless the device is external, the
// device and instance. Safe to call more than once.
func (c *Context) Destroy() {
	if c.device == nil {
		return
	}
	c.cache.DestroyAll(c.device)
	if !c.external {
		c.device.Destroy()
		if c.instance != nil {
			c.instance.Destroy()
		}
	}
	c.device = nil
	c.queue = nil
	c.instance = nil
}

// submissionPollInterval is the pause between completion polls of the queue.
const submissionPollInterval = 200 * time.Microsecond

// waitSubmission blocks until the queue reports submission index as
// completed. The queue's completion counter is a timeline fence: it only
// moves forward. ErrDeviceLost is reported once timeout has elapsed; a zero
// timeout never expires. It returns the number of polls issued.
func waitSubmission(queue hal.Queue, index uint64, timeout time.Duration) (int, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	polls := 0
	for {
		polls++
		if queue.PollCompleted() >= index {
			return polls, nil
		}
		if timeout > 0 && !time.Now().Before(deadline) {
			return polls, fmt.Errorf("%w: submission %d not completed after %v", ErrDeviceLost, index, timeout)
		}
		time.Sleep(submissionPollInterval)
	}
}
