package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Layout is the access state of a swap-chain image.
type Layout uint8

const (
	// LayoutUndefined is the state of a freshly allocated image.
	LayoutUndefined Layout = iota
	// LayoutShaderReadOnly is the state the compositor samples from.
	LayoutShaderReadOnly
	// LayoutColorAttachment is the state the renderer draws into.
	LayoutColorAttachment
)

func (l Layout) String() string {
	switch l {
	case LayoutUndefined:
		return "undefined"
	case LayoutShaderReadOnly:
		return "shader-read-only"
	case LayoutColorAttachment:
		return "color-attachment"
	default:
		return fmt.Sprintf("Layout(%d)", uint8(l))
	}
}

// usage maps a layout to the texture usage the HAL derives image layouts
// and pipeline stages from.
func (l Layout) usage() gputypes.TextureUsage {
	switch l {
	case LayoutShaderReadOnly:
		return gputypes.TextureUsageTextureBinding
	case LayoutColorAttachment:
		return gputypes.TextureUsageRenderAttachment
	default:
		return gputypes.TextureUsage(0)
	}
}

// transition records a barrier moving rt's image from one layout to
// another. It fails with ErrLayoutMismatch if the tracked layout is not from.
func transition(encoder hal.CommandEncoder, rt *RenderTarget, from, to Layout) error {
	if rt.layout != from {
		return fmt.Errorf("%w: image %d is %s, want %s", ErrLayoutMismatch, rt.Index, rt.layout, from)
	}
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: rt.Image,
		Usage: hal.TextureUsageTransition{
			OldUsage: from.usage(),
			NewUsage: to.usage(),
		},
	}})
	rt.layout = to
	return nil
}
