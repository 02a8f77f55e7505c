package gpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/xr/compositor"
	"github.com/gogpu/xr/compositor/sim"
)

// openNoopDevice opens a device on the noop backend and registers cleanup.
func openNoopDevice(t *testing.T) (hal.Device, hal.Queue) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return openDev.Device, openDev.Queue
}

// newNoopContext returns a Context on the noop backend. The device is owned
// by the test cleanup, not by the Context.
func newNoopContext(t *testing.T, opts ...ContextOption) *Context {
	t.Helper()
	device, queue := openNoopDevice(t)
	return newContextOn(t, device, queue, opts...)
}

func newContextOn(t *testing.T, device hal.Device, queue hal.Queue, opts ...ContextOption) *Context {
	t.Helper()
	o := defaultContextOptions()
	for _, opt := range opts {
		opt(&o)
	}
	c := newContext(device, queue, o)
	c.external = true
	t.Cleanup(c.Destroy)
	return c
}

// pollQueue wraps a queue. It reports submissions as not completed for the
// first notCompleted polls (or forever when stuck is set), and fails every
// Submit when submitErr is set.
type pollQueue struct {
	hal.Queue
	notCompleted int
	stuck        bool
	submitErr    error
	polls        int
}

func (q *pollQueue) PollCompleted() uint64 {
	q.polls++
	if q.stuck || q.polls <= q.notCompleted {
		return 0
	}
	return q.Queue.PollCompleted()
}

func (q *pollQueue) Submit(cmds []hal.CommandBuffer) (uint64, error) {
	if q.submitErr != nil {
		return 0, q.submitErr
	}
	return q.Queue.Submit(cmds)
}

var errEncoderClosed = errors.New("BeginEncoding on a closed encoder")

// strictDevice hands out encoders that refuse to begin again after
// EndEncoding or DiscardEncoding until ResetAll, the way pooled backend
// encoders behave.
type strictDevice struct {
	hal.Device
	encoders int
}

func (d *strictDevice) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	enc, err := d.Device.CreateCommandEncoder(desc)
	if err != nil {
		return nil, err
	}
	d.encoders++
	return &strictEncoder{CommandEncoder: enc}, nil
}

type strictEncoder struct {
	hal.CommandEncoder
	closed bool
}

func (e *strictEncoder) BeginEncoding(label string) error {
	if e.closed {
		return errEncoderClosed
	}
	return e.CommandEncoder.BeginEncoding(label)
}

func (e *strictEncoder) EndEncoding() (hal.CommandBuffer, error) {
	e.closed = true
	return e.CommandEncoder.EndEncoding()
}

func (e *strictEncoder) DiscardEncoding() {
	e.closed = true
	e.CommandEncoder.DiscardEncoding()
}

func (e *strictEncoder) ResetAll(cmds []hal.CommandBuffer) {
	e.closed = false
	e.CommandEncoder.ResetAll(cmds)
}

// newEyeSwapChain allocates count images through a simulated compositor.
func newEyeSwapChain(t *testing.T, ctx *Context, count int, opts ...sim.Option) (*SwapChain, error) {
	t.Helper()
	c := sim.New(ctx.Device(), opts...)
	t.Cleanup(c.Destroy)
	return NewSwapChain(c, compositor.SwapChainDesc{
		Label:       "test_eye",
		Type:        compositor.TextureType2D,
		Format:      gputypes.TextureFormatRGBA8Unorm,
		Width:       128,
		Height:      96,
		BufferCount: count,
	})
}

// newTargets builds an initialized render target set over a fresh swap chain.
func newTargets(t *testing.T, ctx *Context, count int, cfg RenderTargetSetConfig) (*SwapChain, *RenderTargetSet) {
	t.Helper()
	sc, err := newEyeSwapChain(t, ctx, count)
	if err != nil {
		t.Fatalf("NewSwapChain: %v", err)
	}
	set := NewRenderTargetSet(ctx, "test_targets", cfg)
	t.Cleanup(set.Destroy)
	if err := set.Create(sc.Images(), sc.Format(), cfg.RenderPass(sc.Format()), sc.Width(), sc.Height()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := set.InitializeLayouts(); err != nil {
		t.Fatalf("InitializeLayouts: %v", err)
	}
	return sc, set
}

// replacedImage is a swap-chain image distinct from any the compositor
// handed out.
type replacedImage struct {
	hal.Texture
	id int
}

// runRecord records and submits one eye frame for rt in slot i.
func runRecord(p *FrameSlotPool, i int, rt *RenderTarget, pass RenderPassDesc) error {
	if err := p.WaitAndReset(i); err != nil {
		return err
	}
	enc, err := p.Begin(i)
	if err != nil {
		return err
	}
	if err := RecordEye(enc, rt, pass, nil, nil); err != nil {
		p.Discard(i)
		return err
	}
	if err := p.End(i); err != nil {
		return err
	}
	return p.Submit(i)
}
