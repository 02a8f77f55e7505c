package gpu

import (
	"fmt"
	"time"

	"github.com/gogpu/wgpu/hal"
)

// SlotOption configures a FrameSlotPool.
type SlotOption func(*FrameSlotPool)

// WithWaitTimeout overrides the context fence timeout for this pool.
// Zero waits forever.
func WithWaitTimeout(d time.Duration) SlotOption {
	return func(p *FrameSlotPool) {
		if d >= 0 {
			p.timeout = d
		}
	}
}

// frameSlot is one command buffer and the submission that guards it.
//
// The queue's completion counter acts as the slot fence: the slot is free
// again once the counter reaches submission. The encoder exists only while
// the slot is recording; EndEncoding hands its resources to cmdBuf.
type frameSlot struct {
	encoder    hal.CommandEncoder
	submission uint64
	cmdBuf     hal.CommandBuffer
	recording bool
	submitted bool
}

// FrameSlotPool hands out command encoders, one per swap-chain image. A slot
// is recorded only after WaitAndReset has observed the completion of its
// previous submission, which bounds frames in flight to Len().
//
// FrameSlotPool is not safe for concurrent use.
type FrameSlotPool struct {
	ctx     *Context
	label   string
	slots   []frameSlot
	timeout time.Duration
}

// NewFrameSlotPool creates count slots, none of them submitted.
func NewFrameSlotPool(ctx *Context, label string, count int, opts ...SlotOption) (*FrameSlotPool, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSlotCount, count)
	}

	p := &FrameSlotPool{
		ctx:     ctx,
		label:   label,
		slots:   make([]frameSlot, count),
		timeout: ctx.FenceTimeout(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Len returns the number of slots.
func (p *FrameSlotPool) Len() int { return len(p.slots) }

// Submitted reports whether slot i has work the GPU may still be executing.
func (p *FrameSlotPool) Submitted(i int) bool {
	return i >= 0 && i < len(p.slots) && p.slots[i].submitted
}

func (p *FrameSlotPool) slot(i int) (*frameSlot, error) {
	if i < 0 || i >= len(p.slots) {
		return nil, fmt.Errorf("%w: %d of %d", ErrSlotOutOfRange, i, len(p.slots))
	}
	return &p.slots[i], nil
}

// WaitAndReset blocks until the previous submission of slot i has completed,
// then frees its command buffer and clears the submitted flag. It returns
// immediately for a slot that was never submitted. Work that does not
// complete within the timeout yields ErrDeviceLost.
func (p *FrameSlotPool) WaitAndReset(i int) error {
	s, err := p.slot(i)
	if err != nil {
		return err
	}
	if s.submitted {
		polls, err := waitSubmission(p.ctx.Queue(), s.submission, p.timeout)
		if err != nil {
			return fmt.Errorf("%s slot %d: %w", p.label, i, err)
		}
		if polls > 1 {
			slogger().Debug("gpu: slot wait", "pool", p.label, "slot", i, "polls", polls)
		}
		s.submitted = false
	}
	if s.cmdBuf != nil {
		p.ctx.Device().FreeCommandBuffer(s.cmdBuf)
		s.cmdBuf = nil
	}
	return nil
}

// MarkSubmitted records that slot i has work on the queue.
func (p *FrameSlotPool) MarkSubmitted(i int) {
	if s, err := p.slot(i); err == nil {
		s.submitted = true
	}
}

// Begin starts recording into slot i. The slot must have been reclaimed.
func (p *FrameSlotPool) Begin(i int) (hal.CommandEncoder, error) {
	s, err := p.slot(i)
	if err != nil {
		return nil, err
	}
	if s.submitted {
		return nil, fmt.Errorf("%w: %s slot %d", ErrSlotInFlight, p.label, i)
	}
	if s.recording {
		s.discard()
	}
	if s.cmdBuf != nil {
		p.ctx.Device().FreeCommandBuffer(s.cmdBuf)
		s.cmdBuf = nil
	}

	encoder, err := p.ctx.Device().CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: fmt.Sprintf("%s_encoder_%d", p.label, i),
	})
	if err != nil {
		return nil, fmt.Errorf("create %s command encoder %d: %w", p.label, i, err)
	}
	if err := encoder.BeginEncoding(fmt.Sprintf("%s_frame_%d", p.label, i)); err != nil {
		encoder.DiscardEncoding()
		return nil, fmt.Errorf("begin encoding %s slot %d: %w", p.label, i, err)
	}
	s.encoder = encoder
	s.recording = true
	return encoder, nil
}

func (s *frameSlot) discard() {
	s.encoder.DiscardEncoding()
	s.encoder = nil
	s.recording = false
}

// Discard abandons a recording started with Begin.
func (p *FrameSlotPool) Discard(i int) {
	if s, err := p.slot(i); err == nil && s.recording {
		s.discard()
	}
}

// End finishes recording slot i and keeps the command buffer for Submit.
func (p *FrameSlotPool) End(i int) error {
	s, err := p.slot(i)
	if err != nil {
		return err
	}
	if !s.recording {
		return fmt.Errorf("%w: %s slot %d", ErrSlotNotRecording, p.label, i)
	}
	cmdBuf, err := s.encoder.EndEncoding()
	if err != nil {
		s.discard()
		return fmt.Errorf("end encoding %s slot %d: %w", p.label, i, err)
	}
	s.encoder = nil
	s.recording = false
	s.cmdBuf = cmdBuf
	return nil
}

// Submit puts slot i's command buffer on the queue, remembers the
// submission index as the slot's completion point and marks the slot
// submitted.
func (p *FrameSlotPool) Submit(i int) error {
	s, err := p.slot(i)
	if err != nil {
		return err
	}
	if s.cmdBuf == nil {
		return fmt.Errorf("%w: %s slot %d has nothing to submit", ErrSlotNotRecording, p.label, i)
	}
	index, err := p.ctx.Queue().Submit([]hal.CommandBuffer{s.cmdBuf})
	if err != nil {
		return fmt.Errorf("submit %s slot %d: %w", p.label, i, err)
	}
	s.submission = index
	p.MarkSubmitted(i)
	return nil
}

// WaitIdle waits for every in-flight slot.
func (p *FrameSlotPool) WaitIdle() error {
	for i := range p.slots {
		if err := p.WaitAndReset(i); err != nil {
			return err
		}
	}
	return nil
}

// Destroy waits for in-flight work and releases command buffers.
// Safe to call more than once.
func (p *FrameSlotPool) Destroy() {
	device := p.ctx.Device()
	if device == nil {
		return
	}
	if err := p.WaitIdle(); err != nil {
		slogger().Warn("gpu: slot pool destroyed with work in flight", "pool", p.label, "error", err)
	}
	for i := range p.slots {
		s := &p.slots[i]
		if s.recording {
			s.discard()
		}
		if s.cmdBuf != nil {
			device.FreeCommandBuffer(s.cmdBuf)
			s.cmdBuf = nil
		}
		s.submitted = false
	}
}
