// Package gpu owns every device call of the stereo frame pipeline.
//
// It sits on the Pure Go HAL from gogpu/wgpu (zero CGO) and exposes the
// building blocks the renderer drives once per display tick:
//
//   - Context: device, queue, pipeline cache and one-shot setup command buffers
//   - SwapChain: compositor-owned image ring for one eye
//   - RenderTargetSet: one view (plus optional MSAA and depth) per image
//   - FrameSlotPool: completion-guarded command encoders, one per image
//   - RecordEye: the layout-bracketed render pass for one eye
//   - MemoryTracker: budget for renderer-owned MSAA and depth attachments
//
// # Layout protocol
//
// Swap-chain images alternate between two owners. The compositor samples an
// image while it is in [LayoutShaderReadOnly]; the renderer writes it only in
// [LayoutColorAttachment]. RecordEye always transitions into the attachment
// layout first and back to shader-read-only last, so control returns to the
// compositor with the image in the layout it expects.
//
// # Frame pacing
//
// A slot is recorded again only after the queue reports its previous
// submission complete. Each recording gets a fresh command encoder; the
// command buffer of the last one is freed on reclaim.
// [FrameSlotPool.WaitAndReset] is the only blocking call on the frame path
// and bounds the number of frames in flight to the swap-chain length.
package gpu
