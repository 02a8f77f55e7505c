package xr

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/pelletier/go-toml/v2"
)

// Defaults for a Renderer.
const (
	DefaultSlotCount    = 3
	DefaultEyeWidth     = 1024
	DefaultEyeHeight    = 1024
	DefaultSwapInterval = 1
)

// DrawFunc issues the draw calls for one eye of frameIndex. The scene
// pipeline is bound and viewport and scissor cover the eye image.
type DrawFunc func(pass hal.RenderPassEncoder, eye Eye, frameIndex uint64)

// Option configures a Renderer during creation.
//
// Example:
//
//	r, err := xr.New(ctx, comp, session,
//	    xr.WithSlotCount(2),
//	    xr.WithEyeSize(1440, 1584),
//	    xr.WithMSAA(4),
//	)
type Option func(*options)

type options struct {
	slotCount    int
	width        uint32
	height       uint32
	format       gputypes.TextureFormat
	fenceTimeout time.Duration
	hasTimeout   bool
	clearColor   gputypes.Color
	msaa         uint32
	depth        bool
	multiview    bool
	foveated     bool
	swapInterval int
	shader       string
	spirv        bool
	draw         DrawFunc
}

func defaultOptions() options {
	return options{
		slotCount:    DefaultSlotCount,
		width:        DefaultEyeWidth,
		height:       DefaultEyeHeight,
		format:       gputypes.TextureFormatUndefined, // context surface format
		clearColor:   gputypes.Color{R: 0, G: 0, B: 0, A: 1},
		depth:        true,
		swapInterval: DefaultSwapInterval,
	}
}

// WithSlotCount sets the number of swap-chain images per eye, which is also
// the number of frames that may be in flight. Must be at least 1.
func WithSlotCount(n int) Option {
	return func(o *options) { o.slotCount = n }
}

// WithEyeSize sets the per-eye image resolution.
func WithEyeSize(width, height uint32) Option {
	return func(o *options) {
		o.width = width
		o.height = height
	}
}

// WithFormat sets the swap-chain color format. The default is the surface
// format of the gpu context.
func WithFormat(f gputypes.TextureFormat) Option {
	return func(o *options) { o.format = f }
}

// WithFenceTimeout bounds how long a tick waits for a slot to come back
// from the GPU before reporting the device lost. Zero waits forever.
func WithFenceTimeout(d time.Duration) Option {
	return func(o *options) {
		o.fenceTimeout = d
		o.hasTimeout = true
	}
}

// WithClearColor sets the color each eye image is cleared to.
func WithClearColor(c gputypes.Color) Option {
	return func(o *options) { o.clearColor = c }
}

// WithMSAA renders into multisampled targets resolved into the swap-chain
// images. 0 and 1 disable multisampling.
func WithMSAA(samples uint32) Option {
	return func(o *options) { o.msaa = samples }
}

// WithDepth enables or disables the per-target depth buffer. Enabled by
// default.
func WithDepth(enabled bool) Option {
	return func(o *options) { o.depth = enabled }
}

// WithMultiview requests two-layer array swap chains. Eyes are still
// rendered one pass each.
func WithMultiview(enabled bool) Option {
	return func(o *options) { o.multiview = enabled }
}

// WithFoveatedRendering records a request for fixed foveated rendering.
// The HAL exposes no density map, so the request is logged and ignored.
func WithFoveatedRendering(enabled bool) Option {
	return func(o *options) { o.foveated = enabled }
}

// WithSwapInterval sets the number of display refreshes per frame.
func WithSwapInterval(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.swapInterval = n
		}
	}
}

// WithShader replaces the built-in triangle with WGSL source exposing
// vs_main and fs_main.
func WithShader(wgsl string) Option {
	return func(o *options) { o.shader = wgsl }
}

// WithSPIRV compiles the scene shader to SPIR-V before handing it to the
// device.
func WithSPIRV(enabled bool) Option {
	return func(o *options) { o.spirv = enabled }
}

// WithDrawFunc replaces the default draw, a single triangle.
func WithDrawFunc(fn DrawFunc) Option {
	return func(o *options) { o.draw = fn }
}

// Config is the file form of the renderer options.
//
//	slot_count = 3
//	eye_width = 1024
//	eye_height = 1024
//	format = "rgba8unorm"
//	fence_timeout_ms = 5000
//	clear_color = [0.0, 0.0, 0.0, 1.0]
//	msaa_samples = 4
//	depth = true
type Config struct {
	SlotCount         int        `toml:"slot_count"`
	EyeWidth          uint32     `toml:"eye_width"`
	EyeHeight         uint32     `toml:"eye_height"`
	Format            string     `toml:"format"`
	FenceTimeoutMS    int64      `toml:"fence_timeout_ms"`
	ClearColor        [4]float64 `toml:"clear_color"`
	MSAASamples       uint32     `toml:"msaa_samples"`
	Depth             bool       `toml:"depth"`
	Multiview         bool       `toml:"multiview"`
	FoveatedRendering bool       `toml:"foveated_rendering"`
	SwapInterval      int        `toml:"swap_interval"`
	SPIRV             bool       `toml:"spirv"`
}

// DefaultConfig returns the configuration New uses without options.
func DefaultConfig() Config {
	return Config{
		SlotCount:      DefaultSlotCount,
		EyeWidth:       DefaultEyeWidth,
		EyeHeight:      DefaultEyeHeight,
		FenceTimeoutMS: 5000,
		ClearColor:     [4]float64{0, 0, 0, 1},
		Depth:          true,
		SwapInterval:   DefaultSwapInterval,
	}
}

// LoadConfig decodes TOML from r on top of DefaultConfig.
// Unknown keys are rejected.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("xr: decode config: %w", err)
	}
	return cfg, nil
}

// Options converts c to renderer options.
func (c Config) Options() ([]Option, error) {
	format, err := parseFormat(c.Format)
	if err != nil {
		return nil, err
	}
	if c.FenceTimeoutMS < 0 {
		return nil, fmt.Errorf("xr: negative fence_timeout_ms %d", c.FenceTimeoutMS)
	}
	return []Option{
		WithSlotCount(c.SlotCount),
		WithEyeSize(c.EyeWidth, c.EyeHeight),
		WithFormat(format),
		WithFenceTimeout(time.Duration(c.FenceTimeoutMS) * time.Millisecond),
		WithClearColor(gputypes.Color{R: c.ClearColor[0], G: c.ClearColor[1], B: c.ClearColor[2], A: c.ClearColor[3]}),
		WithMSAA(c.MSAASamples),
		WithDepth(c.Depth),
		WithMultiview(c.Multiview),
		WithFoveatedRendering(c.FoveatedRendering),
		WithSwapInterval(c.SwapInterval),
		WithSPIRV(c.SPIRV),
	}, nil
}

func parseFormat(s string) (gputypes.TextureFormat, error) {
	switch strings.ToLower(s) {
	case "":
		return gputypes.TextureFormatUndefined, nil
	case "rgba8unorm":
		return gputypes.TextureFormatRGBA8Unorm, nil
	case "bgra8unorm":
		return gputypes.TextureFormatBGRA8Unorm, nil
	default:
		return gputypes.TextureFormatUndefined, fmt.Errorf("xr: unsupported format %q", s)
	}
}
