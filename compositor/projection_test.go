package compositor

import (
	"math"
	"testing"

	"golang.org/x/image/math/f32"
)

const eps = 1e-5

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < eps
}

// project applies the tan-angle matrix to a view direction the way the
// compositor does: (tanX, tanY, -1, 1) followed by division by row 2.
func project(m f32.Mat4, tanX, tanY float32) (u, v float32) {
	vec := [4]float32{tanX, tanY, -1, 1}
	var out [3]float32
	for r := range 3 {
		for c := range 4 {
			out[r] += m[4*r+c] * vec[c]
		}
	}
	return out[0] / out[2], out[1] / out[2]
}

func TestProjectionFovSymmetric(t *testing.T) {
	p := ProjectionFov(90, 90, 0, 0, 0.1, 100)

	if !near(p[0], 1) || !near(p[5], 1) {
		t.Errorf("scale = (%v, %v), want (1, 1)", p[0], p[5])
	}
	if !near(p[2], 0) || !near(p[6], 0) {
		t.Errorf("center offset = (%v, %v), want (0, 0)", p[2], p[6])
	}
	if p[14] != -1 {
		t.Errorf("p[14] = %v, want -1", p[14])
	}
}

func TestProjectionFovInfiniteFar(t *testing.T) {
	p := ProjectionFov(90, 90, 0, 0, 0.1, 0)
	if p[10] != -1 {
		t.Errorf("p[10] = %v, want -1 for infinite far plane", p[10])
	}
	if !near(p[11], -0.2) {
		t.Errorf("p[11] = %v, want -0.2", p[11])
	}
}

func TestTexCoordsFromProjection(t *testing.T) {
	m := TexCoordsFromProjection(ProjectionFov(90, 90, 0, 0, 0.1, 0))

	tests := []struct {
		name       string
		tanX, tanY float32
		u, v       float32
	}{
		{"center", 0, 0, 0.5, 0.5},
		{"left edge", -1, 0, 0, 0.5},
		{"right edge", 1, 0, 1, 0.5},
		{"top edge", 0, 1, 0.5, 0},
		{"bottom edge", 0, -1, 0.5, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, v := project(m, tt.tanX, tt.tanY)
			if !near(u, tt.u) || !near(v, tt.v) {
				t.Errorf("project(%v, %v) = (%v, %v), want (%v, %v)", tt.tanX, tt.tanY, u, v, tt.u, tt.v)
			}
		})
	}
}

func TestTexCoordsCarryDepthTerms(t *testing.T) {
	p := ProjectionFov(90, 90, 0, 0, 0.1, 100)
	m := TexCoordsFromProjection(p)
	if m[12] != p[10] || m[13] != p[11] || m[14] != p[14] || m[15] != 1 {
		t.Errorf("last row = %v, want depth terms of projection", m[12:])
	}
}

func TestEyeViewIdentityHead(t *testing.T) {
	left := EyeView(IdentityPose, -0.032)
	right := EyeView(IdentityPose, 0.032)

	if !near(left[3], 0.032) {
		t.Errorf("left eye x translation = %v, want 0.032", left[3])
	}
	if !near(right[3], -0.032) {
		t.Errorf("right eye x translation = %v, want -0.032", right[3])
	}
	for i, want := range []float32{1, 0, 0, 0, 1, 0, 0, 0, 1} {
		got := left[4*(i/3)+i%3]
		if !near(got, want) {
			t.Errorf("rotation[%d] = %v, want %v", i, got, want)
		}
	}
}

func TestYawPoseQuarterTurn(t *testing.T) {
	pose := YawPose(math.Pi/2, f32.Vec3{})
	view := EyeView(pose, 0)

	// Turning left by 90 degrees puts world -X straight ahead, so the camera
	// +Z axis (row 2 of the view matrix) points along world +X.
	if !near(view[8], 1) || !near(view[10], 0) {
		t.Errorf("view row 2 = (%v, %v, %v), want (1, 0, 0)", view[8], view[9], view[10])
	}
}

func TestHandles(t *testing.T) {
	var zero SwapChainHandle
	if zero.Valid() {
		t.Error("zero SwapChainHandle should be invalid")
	}
	h := NewSwapChainHandle(7)
	if !h.Valid() || h.ID() != 7 {
		t.Errorf("handle = %v, want valid id 7", h)
	}
	if h.String() != "swapchain#7" {
		t.Errorf("String() = %q", h.String())
	}

	var s SessionHandle
	if s.Valid() {
		t.Error("zero SessionHandle should be invalid")
	}
	if NewSessionHandle(1) != NewSessionHandle(1) {
		t.Error("handles with equal ids should compare equal")
	}
}

func TestFrameFlagsString(t *testing.T) {
	tests := []struct {
		f    FrameFlags
		want string
	}{
		{0, "none"},
		{FlagFlush, "flush"},
		{FlagLoading, "loading"},
		{FlagFlush | FlagLoading, "flush|loading"},
	}
	for _, tt := range tests {
		if got := tt.f.String(); got != tt.want {
			t.Errorf("FrameFlags(%d).String() = %q, want %q", tt.f, got, tt.want)
		}
	}
}

func TestNewLoadingFrame(t *testing.T) {
	fd := NewLoadingFrame(0, 0)
	if !fd.Loading() {
		t.Error("loading frame should report Loading")
	}
	if fd.Flags&FlagFlush == 0 {
		t.Error("loading frame should request a flush")
	}
	for eye, layer := range fd.Eyes {
		if layer.SwapChain.Valid() {
			t.Errorf("eye %d: loading frame should carry no layer", eye)
		}
	}
}
