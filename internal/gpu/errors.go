package gpu

import "errors"

// Errors returned by the frame pipeline. All of them are fatal for the
// frame loop: rendering on after any of them risks GPU-side corruption.
var (
	// ErrNoSuitableAdapter is returned when no adapter exposes the
	// required features.
	ErrNoSuitableAdapter = errors.New("gpu: no suitable adapter")

	// ErrNotHALProvider is returned when a device provider does not expose
	// HAL device and queue objects.
	ErrNotHALProvider = errors.New("gpu: provider does not expose HAL types")

	// ErrSwapChainLength is returned when the compositor hands back a
	// different number of images than requested.
	ErrSwapChainLength = errors.New("gpu: swap chain length mismatch")

	// ErrFormatMismatch is returned when images and render pass disagree
	// on the color format.
	ErrFormatMismatch = errors.New("gpu: image format does not match render pass")

	// ErrInvalidExtent is returned for zero-sized render targets.
	ErrInvalidExtent = errors.New("gpu: render target extent must be non-zero")

	// ErrInvalidSlotCount is returned when a slot pool is created empty.
	ErrInvalidSlotCount = errors.New("gpu: slot count must be at least 1")

	// ErrSlotOutOfRange is returned for a slot index outside the pool.
	ErrSlotOutOfRange = errors.New("gpu: slot index out of range")

	// ErrSlotInFlight is returned when recording into a slot whose previous
	// submission has not been reclaimed.
	ErrSlotInFlight = errors.New("gpu: slot still in flight")

	// ErrSlotNotRecording is returned when finishing a slot that was never
	// begun.
	ErrSlotNotRecording = errors.New("gpu: slot is not recording")

	// ErrDeviceLost is returned when submitted work does not complete
	// within the configured timeout.
	ErrDeviceLost = errors.New("gpu: device lost")

	// ErrLayoutMismatch is returned when an image is not in the layout a
	// transition expects.
	ErrLayoutMismatch = errors.New("gpu: unexpected image layout")
)
