package xr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/xr/compositor"
	"github.com/gogpu/xr/internal/gpu"
)

// notReadyPoll is how long Run sleeps while the surface gate is closed.
const notReadyPoll = 10 * time.Millisecond

// eyeChain is the per-eye state: the borrowed swap-chain images, one render
// target and one command slot per image, and the ring cursor.
type eyeChain struct {
	eye     Eye
	swap    *gpu.SwapChain
	targets *gpu.RenderTargetSet
	slots   *gpu.FrameSlotPool

	// cursor is the slot the next frame records into.
	cursor int
	// last is the slot submitted by the most recent frame, -1 before any.
	last int
}

// Stats is a snapshot of renderer counters.
type Stats struct {
	// FrameIndex is the index of the last frame handed to the compositor.
	FrameIndex uint64
	// FramesSubmitted counts frames the compositor accepted, including the
	// loading frame.
	FramesSubmitted uint64
	// DroppedFrames counts frames the compositor rejected.
	DroppedFrames uint64
	// PipelineHits and PipelineMisses are the pipeline cache counters.
	PipelineHits   uint64
	PipelineMisses uint64
	// AttachmentBytes is the memory held by MSAA and depth attachments.
	AttachmentBytes uint64
}

// Renderer produces stereo frames for one compositor session.
//
// Tick must be called from a single goroutine. Stats and the surface hooks
// (OnSurfaceReady, OnSurfaceLost, OnResize, OnResumed, OnPaused) may be
// called from any goroutine.
type Renderer struct {
	ctx     *gpu.Context
	comp    compositor.Compositor
	session compositor.SessionHandle
	opts    options

	pipeline hal.RenderPipeline
	eyes     [compositor.EyeCount]*eyeChain

	frameIndex atomic.Uint64
	started    bool
	closed     bool
	failed     error

	submitted atomic.Uint64
	dropped   atomic.Uint64

	mu      sync.Mutex
	resumed bool
	surface bool
	width   uint32
	height  uint32
}

// New creates the per-eye swap chains, render targets and command slots,
// moves every image to the shader-read-only layout, and builds the scene
// pipeline. Any failure is fatal and leaves nothing allocated.
//
// The renderer starts resumed with a surface present; window-driven
// callers report lifecycle changes through the surface hooks.
func New(ctx *gpu.Context, comp compositor.Compositor, session compositor.SessionHandle, opts ...Option) (*Renderer, error) {
	if !session.Valid() {
		return nil, ErrInvalidSession
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.format == gputypes.TextureFormatUndefined {
		o.format = ctx.SurfaceFormat()
	}
	if o.foveated {
		Logger().Warn("xr: foveated rendering requested but not supported")
	}

	r := &Renderer{
		ctx:     ctx,
		comp:    comp,
		session: session,
		opts:    o,
		resumed: true,
		surface: true,
	}

	cfg := gpu.RenderTargetSetConfig{
		Multiview:         o.multiview,
		FoveatedRendering: o.foveated,
		MSAASamples:       o.msaa,
		Depth:             o.depth,
	}
	pass := cfg.RenderPass(o.format)
	pass.ClearColor = o.clearColor

	for i := range r.eyes {
		e, err := r.newEyeChain(Eye(i), cfg, pass)
		if err != nil {
			r.release()
			return nil, err
		}
		r.eyes[i] = e
	}

	pipeline, err := ctx.ScenePipeline(pass, gpu.ShaderSource{WGSL: o.shader, SPIRV: o.spirv})
	if err != nil {
		r.release()
		return nil, fmt.Errorf("xr: scene pipeline: %w", err)
	}
	r.pipeline = pipeline

	Logger().Info("xr: renderer ready", "session", session, "slots", o.slotCount,
		"width", o.width, "height", o.height, "msaa", pass.SampleCount, "depth", pass.HasDepth())
	return r, nil
}

func (r *Renderer) newEyeChain(eye Eye, cfg gpu.RenderTargetSetConfig, pass gpu.RenderPassDesc) (*eyeChain, error) {
	texType := compositor.TextureType2D
	if cfg.Multiview {
		texType = compositor.TextureType2DArray
	}
	label := "eye_" + eye.String()

	swap, err := gpu.NewSwapChain(r.comp, compositor.SwapChainDesc{
		Label:       label,
		Type:        texType,
		Format:      r.opts.format,
		Width:       r.opts.width,
		Height:      r.opts.height,
		MipLevels:   1,
		BufferCount: r.opts.slotCount,
	})
	if err != nil {
		return nil, fmt.Errorf("xr: %s eye: %w", eye, err)
	}

	e := &eyeChain{eye: eye, swap: swap, last: -1}

	e.targets = gpu.NewRenderTargetSet(r.ctx, label, cfg)
	if err := e.targets.Create(swap.Images(), swap.Format(), pass, swap.Width(), swap.Height()); err != nil {
		e.release()
		return nil, fmt.Errorf("xr: %s eye: %w", eye, err)
	}
	if err := e.targets.InitializeLayouts(); err != nil {
		e.release()
		return nil, fmt.Errorf("xr: %s eye: initialize layouts: %w", eye, err)
	}

	var slotOpts []gpu.SlotOption
	if r.opts.hasTimeout {
		slotOpts = append(slotOpts, gpu.WithWaitTimeout(r.opts.fenceTimeout))
	}
	e.slots, err = gpu.NewFrameSlotPool(r.ctx, label, swap.Len(), slotOpts...)
	if err != nil {
		e.release()
		return nil, fmt.Errorf("xr: %s eye: %w", eye, err)
	}
	return e, nil
}

// release waits for in-flight work and frees everything the eye owns.
// Swap-chain images stay with the compositor.
func (e *eyeChain) release() {
	if e.slots != nil {
		e.slots.Destroy()
		e.slots = nil
	}
	if e.targets != nil {
		e.targets.Destroy()
		e.targets = nil
	}
}

func (r *Renderer) release() {
	for i, e := range r.eyes {
		if e != nil {
			e.release()
			r.eyes[i] = nil
		}
	}
}

// Tick renders and submits one frame.
//
// It returns ErrNotReady while the surface gate is closed, ctx.Err() if ctx
// is already done, and a *FrameError when the GPU fails. After a fatal error
// every later Tick returns the same error.
func (r *Renderer) Tick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.closed {
		return ErrClosed
	}
	if r.failed != nil {
		return r.failed
	}
	if !r.Ready() {
		return ErrNotReady
	}

	idx := r.frameIndex.Add(1)

	if !r.started {
		r.started = true
		fd := compositor.NewLoadingFrame(idx, r.comp.PredictedDisplayTime(r.session, idx))
		r.submitFrame(fd)
		return nil
	}

	for _, e := range r.eyes {
		if err := r.renderEye(e, idx); err != nil {
			r.failed = err
			Logger().Error("xr: frame failed", "frame", idx, "eye", e.eye, "err", err)
			return err
		}
	}
	r.compose(idx)
	return nil
}

// renderEye runs select, reclaim, record, submit and advance for one eye.
func (r *Renderer) renderEye(e *eyeChain, idx uint64) error {
	slot := e.cursor

	if err := e.slots.WaitAndReset(slot); err != nil {
		return &FrameError{FrameIndex: idx, Eye: e.eye, Stage: StageReclaim, Err: err}
	}

	encoder, err := e.slots.Begin(slot)
	if err != nil {
		return &FrameError{FrameIndex: idx, Eye: e.eye, Stage: StageRecord, Err: err}
	}
	err = gpu.RecordEye(encoder, e.targets.Target(slot), e.targets.Pass(), r.pipeline, r.eyeDraw(e.eye, idx))
	if err != nil {
		e.slots.Discard(slot)
		return &FrameError{FrameIndex: idx, Eye: e.eye, Stage: StageRecord, Err: err}
	}
	if err := e.slots.End(slot); err != nil {
		return &FrameError{FrameIndex: idx, Eye: e.eye, Stage: StageRecord, Err: err}
	}

	if err := e.slots.Submit(slot); err != nil {
		return &FrameError{FrameIndex: idx, Eye: e.eye, Stage: StageSubmit, Err: err}
	}

	e.last = slot
	e.cursor = (slot + 1) % e.slots.Len()
	return nil
}

func (r *Renderer) eyeDraw(eye Eye, idx uint64) gpu.DrawFunc {
	if r.opts.draw == nil {
		return gpu.DrawTriangle
	}
	draw := r.opts.draw
	return func(pass hal.RenderPassEncoder, _ *gpu.RenderTarget) {
		draw(pass, eye, idx)
	}
}

// compose hands the slots just submitted for each eye to the compositor,
// together with the predicted pose the eye images should be warped from.
func (r *Renderer) compose(idx uint64) {
	displayTime := r.comp.PredictedDisplayTime(r.session, idx)
	tracking := r.comp.PredictedTracking(r.session, displayTime)

	fd := &compositor.FrameDescriptor{
		FrameIndex:   idx,
		SwapInterval: r.opts.swapInterval,
		DisplayTime:  displayTime,
		HeadPose:     tracking.HeadPose,
	}
	for i, e := range r.eyes {
		fd.Eyes[i] = compositor.EyeLayer{
			SwapChain:              e.swap.Handle(),
			SlotIndex:              e.last,
			TexCoordsFromTanAngles: compositor.TexCoordsFromProjection(tracking.Eyes[i].Projection),
		}
	}
	r.submitFrame(fd)
}

// submitFrame forwards fd to the compositor. A rejected frame is dropped.
func (r *Renderer) submitFrame(fd *compositor.FrameDescriptor) {
	if err := r.comp.SubmitFrame(r.session, fd); err != nil {
		r.dropped.Add(1)
		Logger().Warn("xr: compositor dropped frame", "frame", fd.FrameIndex, "flags", fd.Flags, "err", err)
		return
	}
	r.submitted.Add(1)
	Logger().Debug("xr: frame submitted", "frame", fd.FrameIndex, "flags", fd.Flags,
		"display_time", fd.DisplayTime, "left", fd.Eyes[0].SlotIndex, "right", fd.Eyes[1].SlotIndex)
}

// Run ticks until n frames have been submitted (n <= 0 runs until ctx is
// done) or a fatal error occurs. While the surface gate is closed it idles
// without consuming frames. Cancellation returns nil.
func (r *Renderer) Run(ctx context.Context, n int) error {
	for done := 0; n <= 0 || done < n; {
		err := r.Tick(ctx)
		switch {
		case err == nil:
			done++
		case errors.Is(err, ErrNotReady):
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(notReadyPoll):
			}
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		default:
			return err
		}
	}
	return nil
}

// Cursor returns the slot the next frame of eye records into.
func (r *Renderer) Cursor(eye Eye) int { return r.eyes[eye].cursor }

// SlotCount returns the number of slots per eye.
func (r *Renderer) SlotCount() int { return r.eyes[EyeLeft].slots.Len() }

// SwapChain returns the compositor handle of eye's swap chain.
func (r *Renderer) SwapChain(eye Eye) compositor.SwapChainHandle {
	return r.eyes[eye].swap.Handle()
}

// Stats returns a snapshot of the renderer counters. It is safe to call
// while another goroutine ticks.
func (r *Renderer) Stats() Stats {
	hits, misses := r.ctx.PipelineCache().Stats()
	mem := r.ctx.Memory().Stats()
	return Stats{
		FrameIndex:      r.frameIndex.Load(),
		FramesSubmitted: r.submitted.Load(),
		DroppedFrames:   r.dropped.Load(),
		PipelineHits:    hits,
		PipelineMisses:  misses,
		AttachmentBytes: mem.UsedBytes,
	}
}

// Close waits for every in-flight frame and releases the render targets and
// command slots. The scene pipeline stays cached in the gpu context and the
// swap-chain images stay with the compositor. Safe to call more than once.
func (r *Renderer) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.release()
	Logger().Info("xr: renderer closed", "frames", r.submitted.Load(), "dropped", r.dropped.Load())
}
