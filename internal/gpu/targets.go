package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// RenderTargetSetConfig holds the optional capabilities of a target set.
// The zero value renders single-sampled, without depth, one view per image.
type RenderTargetSetConfig struct {
	// Multiview creates two-layer array views so one pass can cover both
	// eyes. The images must be 2D arrays.
	Multiview bool

	// FoveatedRendering requests a fragment density map. The HAL has no
	// density map attachment, so the flag is recorded and ignored.
	FoveatedRendering bool

	// MSAASamples above 1 renders into a multisampled color texture that
	// resolves into the swap-chain image.
	MSAASamples uint32

	// Depth attaches a depth buffer of DepthFormat to every target.
	Depth       bool
	DepthFormat gputypes.TextureFormat
}

// RenderPass derives the render pass description for images of format.
func (cfg RenderTargetSetConfig) RenderPass(format gputypes.TextureFormat) RenderPassDesc {
	pass := RenderPassDesc{
		ColorFormat: format,
		DepthFormat: gputypes.TextureFormatUndefined,
		SampleCount: 1,
		ClearColor:  gputypes.Color{R: 0, G: 0, B: 0, A: 1},
		Multiview:   cfg.Multiview,
	}
	if cfg.MSAASamples > 1 {
		pass.SampleCount = cfg.MSAASamples
	}
	if cfg.Depth {
		pass.DepthFormat = cfg.DepthFormat
		if pass.DepthFormat == gputypes.TextureFormatUndefined {
			pass.DepthFormat = gputypes.TextureFormatDepth24PlusStencil8
		}
	}
	return pass
}

// RenderPassDesc describes the attachments every target of a set is
// rendered with.
type RenderPassDesc struct {
	ColorFormat gputypes.TextureFormat
	// DepthFormat is TextureFormatUndefined when the pass has no depth.
	DepthFormat gputypes.TextureFormat
	SampleCount uint32
	ClearColor  gputypes.Color
	Multiview   bool
}

// HasDepth reports whether the pass declares a depth attachment.
func (p RenderPassDesc) HasDepth() bool {
	return p.DepthFormat != gputypes.TextureFormatUndefined
}

// Multisampled reports whether the pass resolves an MSAA attachment.
func (p RenderPassDesc) Multisampled() bool { return p.SampleCount > 1 }

// RenderTarget binds one swap-chain image to the views a render pass needs.
// The image is borrowed; everything else is owned by the RenderTarget.
type RenderTarget struct {
	Index  int
	Image  hal.Texture
	View   hal.TextureView
	Width  uint32
	Height uint32
	Layers uint32

	msaaTex   hal.Texture
	msaaView  hal.TextureView
	msaaMem   Reservation
	depthTex  hal.Texture
	depthView hal.TextureView
	depthMem  Reservation

	layout Layout
}

// Layout returns the tracked layout of the image.
func (rt *RenderTarget) Layout() Layout { return rt.layout }

// passDescriptor builds the render pass descriptor that clears and draws
// into rt. With MSAA the swap-chain view is the resolve target.
func (rt *RenderTarget) passDescriptor(pass RenderPassDesc, label string) *hal.RenderPassDescriptor {
	color := hal.RenderPassColorAttachment{
		View:       rt.View,
		LoadOp:     gputypes.LoadOpClear,
		StoreOp:    gputypes.StoreOpStore,
		ClearValue: pass.ClearColor,
	}
	if rt.msaaView != nil {
		color.View = rt.msaaView
		color.ResolveTarget = rt.View
		color.StoreOp = gputypes.StoreOpDiscard
	}

	desc := &hal.RenderPassDescriptor{
		Label:            label,
		ColorAttachments: []hal.RenderPassColorAttachment{color},
	}
	if rt.depthView != nil {
		desc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:              rt.depthView,
			DepthLoadOp:       gputypes.LoadOpClear,
			DepthStoreOp:      gputypes.StoreOpDiscard,
			DepthClearValue:   1.0,
			StencilLoadOp:     gputypes.LoadOpClear,
			StencilStoreOp:    gputypes.StoreOpDiscard,
			StencilClearValue: 0,
		}
	}
	return desc
}

func (rt *RenderTarget) destroy(device hal.Device, mem *MemoryTracker) {
	if rt.depthView != nil {
		device.DestroyTextureView(rt.depthView)
		rt.depthView = nil
	}
	mem.Release(rt.depthMem)
	rt.depthMem = 0
	if rt.depthTex != nil {
		device.DestroyTexture(rt.depthTex)
		rt.depthTex = nil
	}
	if rt.msaaView != nil {
		device.DestroyTextureView(rt.msaaView)
		rt.msaaView = nil
	}
	mem.Release(rt.msaaMem)
	rt.msaaMem = 0
	if rt.msaaTex != nil {
		device.DestroyTexture(rt.msaaTex)
		rt.msaaTex = nil
	}
	if rt.View != nil {
		device.DestroyTextureView(rt.View)
		rt.View = nil
	}
	// Image belongs to the compositor.
	rt.Image = nil
}

// RenderTargetSet holds one RenderTarget per swap-chain image of an eye,
// plus the sampler the images are read with.
type RenderTargetSet struct {
	ctx     *Context
	label   string
	cfg     RenderTargetSetConfig
	pass    RenderPassDesc
	targets []*RenderTarget
	sampler hal.Sampler
}

// NewRenderTargetSet returns an empty set; call Create to build targets.
func NewRenderTargetSet(ctx *Context, label string, cfg RenderTargetSetConfig) *RenderTargetSet {
	if cfg.FoveatedRendering {
		slogger().Warn("gpu: foveated rendering is not supported, flag ignored", "set", label)
	}
	return &RenderTargetSet{ctx: ctx, label: label, cfg: cfg}
}

// Create builds one target per image at width x height for pass.
// A second call releases the previous targets first, so repeated calls with
// the same inputs leave the same number of identically sized targets.
// A new target bound to the same image at the same index keeps the tracked
// layout; any other image starts undefined. On error nothing is left
// allocated.
func (s *RenderTargetSet) Create(images []hal.Texture, format gputypes.TextureFormat, pass RenderPassDesc, width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidExtent, width, height)
	}
	if format != pass.ColorFormat {
		return fmt.Errorf("%w: images %v, pass %v", ErrFormatMismatch, format, pass.ColorFormat)
	}
	if pass.Multiview != s.cfg.Multiview {
		return fmt.Errorf("%s: render pass multiview=%v, set multiview=%v", s.label, pass.Multiview, s.cfg.Multiview)
	}

	layouts := s.carriedLayouts(images)
	s.destroyTargets()

	device := s.ctx.Device()
	if s.sampler == nil {
		sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
			Label:        s.label + "_sampler",
			AddressModeU: gputypes.AddressModeClampToEdge,
			AddressModeV: gputypes.AddressModeClampToEdge,
			AddressModeW: gputypes.AddressModeClampToEdge,
			MagFilter:    gputypes.FilterModeLinear,
			MinFilter:    gputypes.FilterModeLinear,
			MipmapFilter: gputypes.FilterModeLinear,
		})
		if err != nil {
			return fmt.Errorf("create %s sampler: %w", s.label, err)
		}
		s.sampler = sampler
	}

	targets := make([]*RenderTarget, 0, len(images))
	for i, img := range images {
		rt, err := s.createTarget(i, img, format, pass, width, height)
		if err != nil {
			for _, t := range targets {
				t.destroy(device, s.ctx.Memory())
			}
			return fmt.Errorf("create %s target %d: %w", s.label, i, err)
		}
		rt.layout = layouts[i]
		targets = append(targets, rt)
	}

	s.targets = targets
	s.pass = pass
	slogger().Debug("gpu: render targets created", "set", s.label, "count", len(targets),
		"width", width, "height", height, "samples", pass.SampleCount, "depth", pass.HasDepth())
	return nil
}

// carriedLayouts returns the layout each of images is known to be in.
func (s *RenderTargetSet) carriedLayouts(images []hal.Texture) []Layout {
	layouts := make([]Layout, len(images))
	for i, rt := range s.targets {
		if i < len(images) && rt.Image == images[i] {
			layouts[i] = rt.layout
		}
	}
	return layouts
}

func (s *RenderTargetSet) createTarget(
	index int,
	img hal.Texture,
	format gputypes.TextureFormat,
	pass RenderPassDesc,
	width, height uint32,
) (*RenderTarget, error) {
	device := s.ctx.Device()
	mem := s.ctx.Memory()

	layers := uint32(1)
	viewDim := gputypes.TextureViewDimension2D
	if s.cfg.Multiview {
		layers = 2
		viewDim = gputypes.TextureViewDimension2DArray
	}

	rt := &RenderTarget{
		Index:  index,
		Image:  img,
		Width:  width,
		Height: height,
		Layers: layers,
		layout: LayoutUndefined,
	}

	view, err := device.CreateTextureView(img, &hal.TextureViewDescriptor{
		Label:           fmt.Sprintf("%s_view_%d", s.label, index),
		Format:          format,
		Dimension:       viewDim,
		Aspect:          gputypes.TextureAspectAll,
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: layers,
	})
	if err != nil {
		return nil, fmt.Errorf("create view: %w", err)
	}
	rt.View = view

	size := hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: layers}

	if pass.Multisampled() {
		msaaTex, err := device.CreateTexture(&hal.TextureDescriptor{
			Label:         fmt.Sprintf("%s_msaa_%d", s.label, index),
			Size:          size,
			MipLevelCount: 1,
			SampleCount:   pass.SampleCount,
			Dimension:     gputypes.TextureDimension2D,
			Format:        format,
			Usage:         gputypes.TextureUsageRenderAttachment,
		})
		if err != nil {
			rt.destroy(device, mem)
			return nil, fmt.Errorf("create MSAA color texture: %w", err)
		}
		rt.msaaTex = msaaTex
		rt.msaaMem, err = mem.Reserve(textureBytes(format, width, height, layers, pass.SampleCount))
		if err != nil {
			rt.destroy(device, mem)
			return nil, fmt.Errorf("MSAA color texture: %w", err)
		}

		msaaView, err := device.CreateTextureView(msaaTex, &hal.TextureViewDescriptor{
			Label:           fmt.Sprintf("%s_msaa_view_%d", s.label, index),
			Format:          format,
			Dimension:       viewDim,
			Aspect:          gputypes.TextureAspectAll,
			MipLevelCount:   1,
			ArrayLayerCount: layers,
		})
		if err != nil {
			rt.destroy(device, mem)
			return nil, fmt.Errorf("create MSAA color view: %w", err)
		}
		rt.msaaView = msaaView
	}

	if pass.HasDepth() {
		depthTex, err := device.CreateTexture(&hal.TextureDescriptor{
			Label:         fmt.Sprintf("%s_depth_%d", s.label, index),
			Size:          size,
			MipLevelCount: 1,
			SampleCount:   pass.SampleCount,
			Dimension:     gputypes.TextureDimension2D,
			Format:        pass.DepthFormat,
			Usage:         gputypes.TextureUsageRenderAttachment,
		})
		if err != nil {
			rt.destroy(device, mem)
			return nil, fmt.Errorf("create depth texture: %w", err)
		}
		rt.depthTex = depthTex
		rt.depthMem, err = mem.Reserve(textureBytes(pass.DepthFormat, width, height, layers, pass.SampleCount))
		if err != nil {
			rt.destroy(device, mem)
			return nil, fmt.Errorf("depth texture: %w", err)
		}

		depthView, err := device.CreateTextureView(depthTex, &hal.TextureViewDescriptor{
			Label:           fmt.Sprintf("%s_depth_view_%d", s.label, index),
			Format:          pass.DepthFormat,
			Dimension:       viewDim,
			Aspect:          gputypes.TextureAspectAll,
			MipLevelCount:   1,
			ArrayLayerCount: layers,
		})
		if err != nil {
			rt.destroy(device, mem)
			return nil, fmt.Errorf("create depth view: %w", err)
		}
		rt.depthView = depthView
	}

	return rt, nil
}

// InitializeLayouts moves every image that is still undefined into the
// shader-read-only layout using a setup command buffer, so the first frame
// starts from the layout the compositor hands images back in.
func (s *RenderTargetSet) InitializeLayouts() error {
	setup, err := s.ctx.CreateSetupCommandBuffer(s.label + "_init_layouts")
	if err != nil {
		return err
	}
	for _, rt := range s.targets {
		if rt.layout != LayoutUndefined {
			continue
		}
		if err := transition(setup.Encoder(), rt, LayoutUndefined, LayoutShaderReadOnly); err != nil {
			setup.Encoder().DiscardEncoding()
			return err
		}
	}
	return s.ctx.FlushSetupCommandBuffer(setup)
}

// Len returns the number of targets.
func (s *RenderTargetSet) Len() int { return len(s.targets) }

// Target returns the target for swap-chain image i.
func (s *RenderTargetSet) Target(i int) *RenderTarget { return s.targets[i] }

// Pass returns the render pass the targets were created for.
func (s *RenderTargetSet) Pass() RenderPassDesc { return s.pass }

// Config returns the capability flags of the set.
func (s *RenderTargetSet) Config() RenderTargetSetConfig { return s.cfg }

// Sampler returns the sampler eye images are read with.
func (s *RenderTargetSet) Sampler() hal.Sampler { return s.sampler }

func (s *RenderTargetSet) destroyTargets() {
	device := s.ctx.Device()
	for _, rt := range s.targets {
		rt.destroy(device, s.ctx.Memory())
	}
	s.targets = nil
}

// Destroy releases every target and the sampler. Swap-chain images are
// left to the compositor. Safe to call more than once.
func (s *RenderTargetSet) Destroy() {
	if s.ctx.Device() == nil {
		return
	}
	s.destroyTargets()
	if s.sampler != nil {
		s.ctx.Device().DestroySampler(s.sampler)
		s.sampler = nil
	}
}
