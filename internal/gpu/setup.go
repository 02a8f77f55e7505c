package gpu

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"
)

// SetupCommandBuffer is a one-shot encoder for initialization work such as
// the first layout transition of swap-chain images. It is never used on the
// frame path.
type SetupCommandBuffer struct {
	encoder hal.CommandEncoder
	label   string
	done    bool
}

// Encoder returns the encoder, already in the recording state.
func (s *SetupCommandBuffer) Encoder() hal.CommandEncoder { return s.encoder }

// CreateSetupCommandBuffer returns a setup command buffer ready for
// recording. It must be passed to FlushSetupCommandBuffer exactly once.
func (c *Context) CreateSetupCommandBuffer(label string) (*SetupCommandBuffer, error) {
	encoder, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: label + "_encoder",
	})
	if err != nil {
		return nil, fmt.Errorf("create setup command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		encoder.DiscardEncoding()
		return nil, fmt.Errorf("begin setup encoding: %w", err)
	}
	return &SetupCommandBuffer{encoder: encoder, label: label}, nil
}

// FlushSetupCommandBuffer ends recording, submits the work, blocks until the
// GPU has finished it and frees the command buffer.
func (c *Context) FlushSetupCommandBuffer(s *SetupCommandBuffer) error {
	if s == nil || s.done {
		return fmt.Errorf("flush setup command buffer: already flushed")
	}
	s.done = true

	cmdBuf, err := s.encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end setup encoding: %w", err)
	}
	defer c.device.FreeCommandBuffer(cmdBuf)

	index, err := c.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return fmt.Errorf("submit setup command buffer: %w", err)
	}
	if _, err := waitSubmission(c.queue, index, c.fenceTimeout); err != nil {
		return fmt.Errorf("setup command buffer %q: %w", s.label, err)
	}
	slogger().Debug("gpu: setup command buffer flushed", "label", s.label)
	return nil
}
