package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
)

// ErrMemoryBudgetExceeded is returned when an attachment allocation would
// exceed the context memory budget.
var ErrMemoryBudgetExceeded = errors.New("gpu: memory budget exceeded")

// Default memory limits.
const (
	// DefaultMaxMemoryMB is the default budget for renderer-owned
	// attachments (MSAA color and depth). Swap-chain images are not counted.
	DefaultMaxMemoryMB = 1024

	// MinMemoryMB is the minimum allowed memory budget.
	MinMemoryMB = 16
)

// MemoryStats contains attachment memory usage statistics.
type MemoryStats struct {
	// TotalBytes is the memory budget in bytes.
	TotalBytes uint64

	// UsedBytes is the currently reserved memory in bytes.
	UsedBytes uint64

	// TextureCount is the number of tracked textures.
	TextureCount int

	// Utilization is the fraction of budget used (0.0 to 1.0).
	Utilization float64
}

// String returns a human-readable string of memory stats.
func (s MemoryStats) String() string {
	return fmt.Sprintf("Memory[%.1f%% used, %d/%d MB, %d textures]",
		s.Utilization*100,
		s.UsedBytes/(1024*1024),
		s.TotalBytes/(1024*1024),
		s.TextureCount)
}

// Reservation identifies the bytes reserved for one texture. The zero value
// is never handed out and releases nothing.
type Reservation uint64

// MemoryTracker accounts for textures the renderer allocates on its own
// behalf and enforces a budget. Every reserved texture is live for as long
// as its render target, so nothing is evicted: an allocation that does not
// fit fails.
//
// MemoryTracker is safe for concurrent use.
type MemoryTracker struct {
	mu sync.Mutex

	budgetBytes  uint64
	usedBytes    uint64
	last         Reservation
	reservations map[Reservation]uint64
}

// NewMemoryTracker creates a tracker with a budget of megabytes.
// Values below MinMemoryMB are raised to it.
func NewMemoryTracker(megabytes int) *MemoryTracker {
	if megabytes < MinMemoryMB {
		megabytes = MinMemoryMB
	}
	//nolint:gosec // G115: megabytes bounded by MinMemoryMB minimum
	return &MemoryTracker{
		budgetBytes:  uint64(megabytes) * 1024 * 1024,
		reservations: make(map[Reservation]uint64),
	}
}

// Reserve records size bytes for one texture and returns the handle that
// releases them. It fails with ErrMemoryBudgetExceeded if the budget cannot
// hold them. Texture handles are not used as keys: a backend may return
// equal handles for distinct textures.
func (m *MemoryTracker) Reserve(size uint64) (Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.usedBytes+size > m.budgetBytes {
		return 0, fmt.Errorf("%w: need %d bytes, %d of %d in use",
			ErrMemoryBudgetExceeded, size, m.usedBytes, m.budgetBytes)
	}
	m.last++
	m.reservations[m.last] = size
	m.usedBytes += size
	return m.last, nil
}

// Release returns the bytes of r to the budget. Unknown or already
// released reservations are ignored.
func (m *MemoryTracker) Release(r Reservation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	size, ok := m.reservations[r]
	if !ok {
		return
	}
	delete(m.reservations, r)
	m.usedBytes -= size
}

// Stats returns current memory usage statistics.
func (m *MemoryTracker) Stats() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	var utilization float64
	if m.budgetBytes > 0 {
		utilization = float64(m.usedBytes) / float64(m.budgetBytes)
	}
	return MemoryStats{
		TotalBytes:   m.budgetBytes,
		UsedBytes:    m.usedBytes,
		TextureCount: len(m.reservations),
		Utilization:  utilization,
	}
}

// textureBytes estimates the size of a 2D texture without mipmaps.
func textureBytes(format gputypes.TextureFormat, width, height, layers, samples uint32) uint64 {
	if samples == 0 {
		samples = 1
	}
	return uint64(width) * uint64(height) * uint64(layers) * uint64(samples) * bytesPerTexel(format)
}

func bytesPerTexel(format gputypes.TextureFormat) uint64 {
	switch format {
	case gputypes.TextureFormatR8Unorm:
		return 1
	default:
		// RGBA8, BGRA8, Depth24PlusStencil8 and Depth32Float.
		return 4
	}
}
