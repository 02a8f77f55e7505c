package gpu

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"
)

// DrawFunc issues the draw calls of one eye inside an open render pass.
// The pipeline is already bound and viewport and scissor cover target.
type DrawFunc func(pass hal.RenderPassEncoder, target *RenderTarget)

// DrawTriangle draws the three vertices of the built-in scene shader.
func DrawTriangle(pass hal.RenderPassEncoder, _ *RenderTarget) {
	pass.Draw(3, 1, 0, 0)
}

// RecordEye records one eye's frame into encoder:
//
//  1. transition the image shader-read-only -> color-attachment
//  2. begin the render pass (clear color and depth)
//  3. set viewport and scissor to the full target, bind pipeline
//  4. draw
//  5. end the pass and transition back to shader-read-only
//
// The image must be in LayoutShaderReadOnly on entry and is again on a nil
// return. A nil draw uses DrawTriangle.
func RecordEye(
	encoder hal.CommandEncoder,
	target *RenderTarget,
	pass RenderPassDesc,
	pipeline hal.RenderPipeline,
	draw DrawFunc,
) error {
	if draw == nil {
		draw = DrawTriangle
	}
	if err := transition(encoder, target, LayoutShaderReadOnly, LayoutColorAttachment); err != nil {
		return fmt.Errorf("record eye: %w", err)
	}

	rp := encoder.BeginRenderPass(target.passDescriptor(pass, fmt.Sprintf("eye_pass_%d", target.Index)))
	rp.SetViewport(0, 0, float32(target.Width), float32(target.Height), 0, 1)
	rp.SetScissorRect(0, 0, target.Width, target.Height)
	if pipeline != nil {
		rp.SetPipeline(pipeline)
	}
	draw(rp, target)
	rp.End()

	if err := transition(encoder, target, LayoutColorAttachment, LayoutShaderReadOnly); err != nil {
		return fmt.Errorf("record eye: %w", err)
	}
	return nil
}
