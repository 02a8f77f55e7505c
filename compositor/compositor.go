// Package compositor defines the boundary between the stereo renderer and
// the display compositor.
//
// The compositor owns the swap-chain images, predicts when the next frame
// will reach the display and where the head will be at that moment, and
// accepts finished frames for time-warped presentation. The renderer never
// allocates or frees swap-chain images; it only borrows the handles returned
// by [Compositor.CreateSwapChain] and passes them back through
// [FrameDescriptor].
//
// Handles are opaque: a [SwapChainHandle] or [SessionHandle] supports no
// arithmetic and is only meaningful to the compositor that issued it.
package compositor

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// EyeCount is the number of independent eye pipelines.
const EyeCount = 2

// Errors reported by compositor implementations.
var (
	// ErrInvalidSession is returned when a call names a session the
	// compositor does not know.
	ErrInvalidSession = errors.New("compositor: invalid session handle")

	// ErrInvalidSwapChain is returned when a descriptor references a swap
	// chain the compositor does not know.
	ErrInvalidSwapChain = errors.New("compositor: invalid swap chain handle")

	// ErrInvalidSlot is returned when a descriptor references an image index
	// outside the swap chain.
	ErrInvalidSlot = errors.New("compositor: slot index out of range")
)

// SwapChainHandle identifies a compositor-owned swap chain.
// The zero value is invalid.
type SwapChainHandle struct {
	id uint64
}

// NewSwapChainHandle wraps a compositor-issued identifier.
// Only compositor implementations should call it.
func NewSwapChainHandle(id uint64) SwapChainHandle {
	return SwapChainHandle{id: id}
}

// Valid reports whether h was issued by a compositor.
func (h SwapChainHandle) Valid() bool { return h.id != 0 }

// ID returns the raw identifier for use by the issuing compositor.
func (h SwapChainHandle) ID() uint64 { return h.id }

func (h SwapChainHandle) String() string {
	return fmt.Sprintf("swapchain#%d", h.id)
}

// SessionHandle identifies an active compositor session (VR mode).
// The zero value is invalid.
type SessionHandle struct {
	id uint64
}

// NewSessionHandle wraps a compositor-issued session identifier.
func NewSessionHandle(id uint64) SessionHandle {
	return SessionHandle{id: id}
}

// Valid reports whether s was issued by a compositor.
func (s SessionHandle) Valid() bool { return s.id != 0 }

// ID returns the raw identifier for use by the issuing compositor.
func (s SessionHandle) ID() uint64 { return s.id }

func (s SessionHandle) String() string {
	return fmt.Sprintf("session#%d", s.id)
}

// TextureType selects the image dimensionality of a swap chain.
type TextureType uint8

const (
	// TextureType2D is one 2D image per swap-chain slot.
	TextureType2D TextureType = iota
	// TextureType2DArray is a two-layer image per slot, one layer per eye.
	TextureType2DArray
)

func (t TextureType) String() string {
	switch t {
	case TextureType2D:
		return "2d"
	case TextureType2DArray:
		return "2d-array"
	default:
		return fmt.Sprintf("TextureType(%d)", uint8(t))
	}
}

// SwapChainDesc describes a swap chain requested from the compositor.
type SwapChainDesc struct {
	Label       string
	Type        TextureType
	Format      gputypes.TextureFormat
	Width       uint32
	Height      uint32
	MipLevels   uint32
	BufferCount int
}

// Compositor is the external display service.
//
// Implementations must return exactly BufferCount images from
// CreateSwapChain; callers treat any other length as a contract violation.
type Compositor interface {
	// CreateSwapChain allocates a ring of images. The images stay owned by
	// the compositor.
	CreateSwapChain(desc SwapChainDesc) (SwapChainHandle, []hal.Texture, error)

	// SwapChainLength reports the number of images in the swap chain.
	SwapChainLength(h SwapChainHandle) int

	// PredictedDisplayTime returns when the frame with the given index is
	// expected to reach the display, measured from session start.
	PredictedDisplayTime(s SessionHandle, frameIndex uint64) time.Duration

	// PredictedTracking returns the predicted head pose and per-eye
	// matrices at displayTime.
	PredictedTracking(s SessionHandle, displayTime time.Duration) Tracking

	// SubmitFrame hands a finished frame to the compositor.
	SubmitFrame(s SessionHandle, fd *FrameDescriptor) error
}
