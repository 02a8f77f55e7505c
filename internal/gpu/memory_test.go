package gpu

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"
)

func TestMemoryTrackerReserveRelease(t *testing.T) {
	m := NewMemoryTracker(MinMemoryMB)

	a, err := m.Reserve(4 << 20)
	if err != nil {
		t.Fatal(err)
	}
	// Equal sizes for distinct textures are separate reservations.
	b, err := m.Reserve(4 << 20)
	if err != nil {
		t.Fatal(err)
	}
	c, err := m.Reserve(4 << 20)
	if err != nil {
		t.Fatal(err)
	}
	if a == 0 || a == b || b == c || a == c {
		t.Fatalf("reservations not distinct: %d %d %d", a, b, c)
	}

	s := m.Stats()
	if s.UsedBytes != 12<<20 || s.TextureCount != 3 {
		t.Errorf("Stats = %+v", s)
	}
	if s.Utilization != 0.75 {
		t.Errorf("Utilization = %v, want 0.75", s.Utilization)
	}
	if !strings.Contains(s.String(), "12/16 MB") {
		t.Errorf("String() = %q", s.String())
	}

	m.Release(a)
	m.Release(a)
	m.Release(0)
	m.Release(c + 100)
	if s := m.Stats(); s.UsedBytes != 8<<20 || s.TextureCount != 2 {
		t.Errorf("after release: %+v", s)
	}
}

func TestMemoryTrackerBudget(t *testing.T) {
	m := NewMemoryTracker(0)
	if m.Stats().TotalBytes != MinMemoryMB<<20 {
		t.Errorf("budget = %d, want minimum", m.Stats().TotalBytes)
	}
	r, err := m.Reserve((MinMemoryMB << 20) + 1)
	if !errors.Is(err, ErrMemoryBudgetExceeded) {
		t.Errorf("err = %v, want ErrMemoryBudgetExceeded", err)
	}
	if r != 0 {
		t.Errorf("failed Reserve returned %d", r)
	}
	if m.Stats().UsedBytes != 0 {
		t.Error("failed reservation must not be counted")
	}
}

func TestTextureBytes(t *testing.T) {
	tests := []struct {
		format  gputypes.TextureFormat
		w, h    uint32
		layers  uint32
		samples uint32
		want    uint64
	}{
		{gputypes.TextureFormatRGBA8Unorm, 1024, 1024, 1, 1, 4 << 20},
		{gputypes.TextureFormatRGBA8Unorm, 1024, 1024, 1, 4, 16 << 20},
		{gputypes.TextureFormatDepth24PlusStencil8, 1024, 1024, 2, 1, 8 << 20},
		{gputypes.TextureFormatR8Unorm, 100, 10, 1, 0, 1000},
	}
	for _, tt := range tests {
		if got := textureBytes(tt.format, tt.w, tt.h, tt.layers, tt.samples); got != tt.want {
			t.Errorf("textureBytes(%v, %d, %d, %d, %d) = %d, want %d",
				tt.format, tt.w, tt.h, tt.layers, tt.samples, got, tt.want)
		}
	}
}

func TestRenderTargetsAccountMemory(t *testing.T) {
	ctx := newNoopContext(t)
	sc, set := newTargets(t, ctx, 3, RenderTargetSetConfig{MSAASamples: 4, Depth: true})

	// 128x96, 4 samples, 4 bytes per texel, color and depth, 3 targets.
	want := uint64(128*96*4*4) * 2 * 3
	if got := ctx.Memory().Stats(); got.UsedBytes != want || got.TextureCount != 6 {
		t.Errorf("Stats = %+v, want %d bytes in 6 textures", got, want)
	}

	// Re-creating releases the old attachments before reserving new ones.
	if err := set.Create(sc.Images(), sc.Format(), set.Pass(), sc.Width(), sc.Height()); err != nil {
		t.Fatal(err)
	}
	if got := ctx.Memory().Stats(); got.UsedBytes != want || got.TextureCount != 6 {
		t.Errorf("after re-Create: %+v", got)
	}

	set.Destroy()
	if got := ctx.Memory().Stats(); got.UsedBytes != 0 || got.TextureCount != 0 {
		t.Errorf("after Destroy: %+v", got)
	}
}

func TestRenderTargetsOverBudget(t *testing.T) {
	ctx := newNoopContext(t, WithMemoryBudget(MinMemoryMB))
	sc, err := newEyeSwapChain(t, ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	// Fill the budget so the first attachment cannot fit.
	if _, err := ctx.Memory().Reserve(MinMemoryMB << 20); err != nil {
		t.Fatal(err)
	}

	cfg := RenderTargetSetConfig{Depth: true}
	set := NewRenderTargetSet(ctx, "tight", cfg)
	defer set.Destroy()
	err = set.Create(sc.Images(), sc.Format(), cfg.RenderPass(sc.Format()), sc.Width(), sc.Height())
	if !errors.Is(err, ErrMemoryBudgetExceeded) {
		t.Fatalf("err = %v, want ErrMemoryBudgetExceeded", err)
	}
	if set.Len() != 0 {
		t.Errorf("failed Create left %d targets", set.Len())
	}
	if ctx.Memory().Stats().TextureCount != 1 {
		t.Error("failed Create leaked reservations")
	}
}
