// Package sim provides a headless compositor.
//
// The simulated compositor allocates swap-chain images on a [hal.Device],
// predicts display times from a fixed refresh rate, synthesizes a slowly
// turning head pose, and records every frame submitted to it. It backs the
// demo driver and the renderer tests, and it can be told to misbehave
// (short swap chains, failed submissions) to exercise error paths.
package sim

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/xr/compositor"
)

// Defaults for a simulated headset.
const (
	DefaultRefreshRate = 72.0
	DefaultIPD         = 0.064
	DefaultFov         = 90.0
	defaultNearZ       = 0.1
)

var (
	// ErrNoSession is returned by SubmitFrame before BeginSession.
	ErrNoSession = errors.New("sim: no active session")

	// ErrStaleFrame is returned when a submitted frame index does not
	// increase.
	ErrStaleFrame = errors.New("sim: frame index not increasing")

	// ErrInjected is the default error for WithSubmitFailure.
	ErrInjected = errors.New("sim: injected submit failure")
)

// Option configures a Compositor.
type Option func(*Compositor)

// WithRefreshRate sets the simulated display refresh rate in Hz.
func WithRefreshRate(hz float64) Option {
	return func(c *Compositor) {
		if hz > 0 {
			c.period = framePeriod(hz)
		}
	}
}

// WithImageShortfall makes CreateSwapChain return n fewer images than
// requested, as a misbehaving driver would.
func WithImageShortfall(n int) Option {
	return func(c *Compositor) { c.shortfall = n }
}

// WithSubmitFailure makes SubmitFrame fail for the given frame index.
// A nil err uses ErrInjected.
func WithSubmitFailure(frameIndex uint64, err error) Option {
	return func(c *Compositor) {
		if err == nil {
			err = ErrInjected
		}
		c.failures[frameIndex] = err
	}
}

// WithIPD sets the interpupillary distance in meters.
func WithIPD(meters float32) Option {
	return func(c *Compositor) { c.ipd = meters }
}

// WithFov sets the symmetric per-eye field of view in degrees.
func WithFov(xDeg, yDeg float32) Option {
	return func(c *Compositor) {
		c.fovX = xDeg
		c.fovY = yDeg
	}
}

// WithYawRate sets how fast the simulated head turns, in radians per second.
func WithYawRate(radPerSec float32) Option {
	return func(c *Compositor) { c.yawRate = radPerSec }
}

// framePeriod returns the display period for a refresh rate in Hz.
func framePeriod(hz float64) time.Duration {
	return time.Duration(float64(time.Second) / hz)
}

type swapChain struct {
	desc     compositor.SwapChainDesc
	textures []hal.Texture
}

// Compositor is a headless [compositor.Compositor].
// It is safe for concurrent use.
type Compositor struct {
	device hal.Device

	period    time.Duration
	shortfall int
	failures  map[uint64]error
	ipd       float32
	fovX      float32
	fovY      float32
	yawRate   float32

	mu         sync.Mutex
	nextID     uint64
	session    compositor.SessionHandle
	swapChains map[uint64]*swapChain
	frames     []compositor.FrameDescriptor
	lastFrame  uint64
	anyFrame   bool
}

var _ compositor.Compositor = (*Compositor)(nil)

// New creates a simulated compositor that allocates images on device.
func New(device hal.Device, opts ...Option) *Compositor {
	c := &Compositor{
		device:     device,
		period:     framePeriod(DefaultRefreshRate),
		failures:   make(map[uint64]error),
		ipd:        DefaultIPD,
		fovX:       DefaultFov,
		fovY:       DefaultFov,
		yawRate:    0.5,
		swapChains: make(map[uint64]*swapChain),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BeginSession enters VR mode and returns the session handle.
// Calling it again while a session is active returns the same handle.
func (c *Compositor) BeginSession() compositor.SessionHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.session.Valid() {
		c.nextID++
		c.session = compositor.NewSessionHandle(c.nextID)
	}
	return c.session
}

// EndSession leaves VR mode. Swap chains stay allocated.
func (c *Compositor) EndSession() {
	c.mu.Lock()
	c.session = compositor.SessionHandle{}
	c.mu.Unlock()
}

// CreateSwapChain allocates desc.BufferCount textures (minus any configured
// shortfall) usable as render attachments and sampled textures.
func (c *Compositor) CreateSwapChain(desc compositor.SwapChainDesc) (compositor.SwapChainHandle, []hal.Texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return compositor.SwapChainHandle{}, nil, fmt.Errorf("sim: invalid swap chain size %dx%d", desc.Width, desc.Height)
	}
	if desc.BufferCount < 1 {
		return compositor.SwapChainHandle{}, nil, fmt.Errorf("sim: invalid buffer count %d", desc.BufferCount)
	}

	layers := uint32(1)
	if desc.Type == compositor.TextureType2DArray {
		layers = compositor.EyeCount
	}
	mips := desc.MipLevels
	if mips == 0 {
		mips = 1
	}

	count := desc.BufferCount - c.shortfall
	if count < 0 {
		count = 0
	}
	textures := make([]hal.Texture, 0, count)
	for i := range count {
		tex, err := c.device.CreateTexture(&hal.TextureDescriptor{
			Label:         fmt.Sprintf("%s_image_%d", desc.Label, i),
			Size:          hal.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: layers},
			MipLevelCount: mips,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        desc.Format,
			Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding,
		})
		if err != nil {
			for _, t := range textures {
				c.device.DestroyTexture(t)
			}
			return compositor.SwapChainHandle{}, nil, fmt.Errorf("sim: create swap chain image %d: %w", i, err)
		}
		textures = append(textures, tex)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.swapChains[c.nextID] = &swapChain{desc: desc, textures: textures}

	out := make([]hal.Texture, len(textures))
	copy(out, textures)
	return compositor.NewSwapChainHandle(c.nextID), out, nil
}

// SwapChainLength reports the number of images actually allocated for h.
func (c *Compositor) SwapChainLength(h compositor.SwapChainHandle) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	sc, ok := c.swapChains[h.ID()]
	if !ok {
		return 0
	}
	return len(sc.textures)
}

// PredictedDisplayTime returns the vsync at which frameIndex is shown,
// one refresh period after the previous frame.
func (c *Compositor) PredictedDisplayTime(s compositor.SessionHandle, frameIndex uint64) time.Duration {
	if !c.sessionActive(s) {
		return 0
	}
	return time.Duration(frameIndex+1) * c.period
}

// PredictedTracking returns a head turning about +Y at the configured rate
// and the per-eye view and projection matrices for that pose.
func (c *Compositor) PredictedTracking(s compositor.SessionHandle, displayTime time.Duration) compositor.Tracking {
	if !c.sessionActive(s) {
		return compositor.Tracking{DisplayTime: displayTime, HeadPose: compositor.IdentityPose}
	}

	yaw := c.yawRate * float32(displayTime.Seconds())
	head := compositor.YawPose(yaw, f32.Vec3{0, 1.6, 0})
	proj := compositor.ProjectionFov(c.fovX, c.fovY, 0, 0, defaultNearZ, 0)

	tr := compositor.Tracking{
		DisplayTime: displayTime,
		Status:      compositor.TrackingOrientationValid | compositor.TrackingPositionValid,
		HeadPose:    head,
	}
	half := c.ipd / 2
	tr.Eyes[0] = compositor.EyeTracking{View: compositor.EyeView(head, -half), Projection: proj}
	tr.Eyes[1] = compositor.EyeTracking{View: compositor.EyeView(head, half), Projection: proj}
	return tr
}

// SubmitFrame validates fd against the allocated swap chains and records it.
func (c *Compositor) SubmitFrame(s compositor.SessionHandle, fd *compositor.FrameDescriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.session.Valid() {
		return ErrNoSession
	}
	if s != c.session {
		return compositor.ErrInvalidSession
	}
	if fd == nil {
		return errors.New("sim: nil frame descriptor")
	}
	if c.anyFrame && fd.FrameIndex <= c.lastFrame {
		return fmt.Errorf("%w: %d after %d", ErrStaleFrame, fd.FrameIndex, c.lastFrame)
	}
	if err, ok := c.failures[fd.FrameIndex]; ok {
		return err
	}
	if !fd.Loading() {
		for eye, layer := range fd.Eyes {
			sc, ok := c.swapChains[layer.SwapChain.ID()]
			if !ok {
				return fmt.Errorf("eye %d: %w", eye, compositor.ErrInvalidSwapChain)
			}
			if layer.SlotIndex < 0 || layer.SlotIndex >= len(sc.textures) {
				return fmt.Errorf("eye %d slot %d: %w", eye, layer.SlotIndex, compositor.ErrInvalidSlot)
			}
		}
	}

	c.frames = append(c.frames, *fd)
	c.lastFrame = fd.FrameIndex
	c.anyFrame = true
	return nil
}

// Frames returns a copy of every accepted frame in submission order.
func (c *Compositor) Frames() []compositor.FrameDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]compositor.FrameDescriptor, len(c.frames))
	copy(out, c.frames)
	return out
}

// Destroy frees every image allocated by the compositor.
func (c *Compositor) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, sc := range c.swapChains {
		for _, t := range sc.textures {
			c.device.DestroyTexture(t)
		}
		delete(c.swapChains, id)
	}
	c.session = compositor.SessionHandle{}
}

func (c *Compositor) sessionActive(s compositor.SessionHandle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Valid() && s == c.session
}
