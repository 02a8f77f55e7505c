package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/xr/compositor"
)

// SwapChain wraps the compositor-owned image ring of one eye.
// The handle and images are borrowed; SwapChain never destroys them.
type SwapChain struct {
	handle compositor.SwapChainHandle
	images []hal.Texture
	desc   compositor.SwapChainDesc
}

// NewSwapChain asks c for a swap chain matching desc. The compositor must
// return exactly desc.BufferCount images; anything else is a contract
// violation and yields ErrSwapChainLength.
func NewSwapChain(c compositor.Compositor, desc compositor.SwapChainDesc) (*SwapChain, error) {
	if desc.MipLevels == 0 {
		desc.MipLevels = 1
	}
	handle, images, err := c.CreateSwapChain(desc)
	if err != nil {
		return nil, fmt.Errorf("create swap chain %q: %w", desc.Label, err)
	}
	if len(images) != desc.BufferCount {
		return nil, fmt.Errorf("%w: %q requested %d images, got %d",
			ErrSwapChainLength, desc.Label, desc.BufferCount, len(images))
	}
	if n := c.SwapChainLength(handle); n != desc.BufferCount {
		return nil, fmt.Errorf("%w: %q requested %d images, compositor reports %d",
			ErrSwapChainLength, desc.Label, desc.BufferCount, n)
	}

	slogger().Info("gpu: swap chain created", "label", desc.Label, "handle", handle,
		"images", len(images), "width", desc.Width, "height", desc.Height)
	return &SwapChain{handle: handle, images: images, desc: desc}, nil
}

// Handle returns the compositor handle.
func (s *SwapChain) Handle() compositor.SwapChainHandle { return s.handle }

// Images returns the borrowed images in slot order.
func (s *SwapChain) Images() []hal.Texture { return s.images }

// Len returns the number of images.
func (s *SwapChain) Len() int { return len(s.images) }

// Width returns the image width in pixels.
func (s *SwapChain) Width() uint32 { return s.desc.Width }

// Height returns the image height in pixels.
func (s *SwapChain) Height() uint32 { return s.desc.Height }

// Format returns the image format.
func (s *SwapChain) Format() gputypes.TextureFormat { return s.desc.Format }
