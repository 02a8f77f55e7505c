package compositor

import (
	"strings"
	"time"

	"golang.org/x/image/math/f32"
)

// Pose is a rigid transform: unit quaternion orientation (x, y, z, w) and
// position in meters.
type Pose struct {
	Orientation f32.Vec4
	Position    f32.Vec3
}

// IdentityPose is the pose at the tracking origin looking down -Z.
var IdentityPose = Pose{Orientation: f32.Vec4{0, 0, 0, 1}}

// EyeTracking holds the matrices for one eye at a predicted display time.
// Matrices are row major, as in [f32.Mat4].
type EyeTracking struct {
	View       f32.Mat4
	Projection f32.Mat4
}

// TrackingStatus reports which parts of a tracking sample are valid.
type TrackingStatus uint32

const (
	TrackingOrientationValid TrackingStatus = 1 << iota
	TrackingPositionValid
)

// Tracking is a predicted head pose plus the per-eye matrices derived from it.
type Tracking struct {
	DisplayTime time.Duration
	Status      TrackingStatus
	HeadPose    Pose
	Eyes        [EyeCount]EyeTracking
}

// FrameFlags modify how the compositor treats a submitted frame.
type FrameFlags uint32

const (
	// FlagFlush asks the compositor to drop any queued frames and stale
	// time-warp state before showing this one.
	FlagFlush FrameFlags = 1 << iota
	// FlagLoading marks a placeholder frame shown while content warms up.
	// Loading frames carry no eye layers.
	FlagLoading
)

func (f FrameFlags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	if f&FlagFlush != 0 {
		parts = append(parts, "flush")
	}
	if f&FlagLoading != 0 {
		parts = append(parts, "loading")
	}
	return strings.Join(parts, "|")
}

// EyeLayer references the image one eye rendered this frame.
type EyeLayer struct {
	SwapChain SwapChainHandle
	// SlotIndex is the swap-chain image that received this frame's draw.
	SlotIndex int
	// TexCoordsFromTanAngles maps tangent-space view directions to texture
	// coordinates, see [TexCoordsFromProjection].
	TexCoordsFromTanAngles f32.Mat4
}

// FrameDescriptor is the per-frame payload handed to [Compositor.SubmitFrame].
// It is not retained by the renderer after submission.
type FrameDescriptor struct {
	FrameIndex   uint64
	SwapInterval int
	DisplayTime  time.Duration
	HeadPose     Pose
	Flags        FrameFlags
	Eyes         [EyeCount]EyeLayer
}

// Loading reports whether fd is a placeholder frame.
func (fd *FrameDescriptor) Loading() bool { return fd.Flags&FlagLoading != 0 }

// NewLoadingFrame returns the placeholder descriptor submitted before any
// eye content exists.
func NewLoadingFrame(frameIndex uint64, displayTime time.Duration) *FrameDescriptor {
	return &FrameDescriptor{
		FrameIndex:   frameIndex,
		SwapInterval: 1,
		DisplayTime:  displayTime,
		HeadPose:     IdentityPose,
		Flags:        FlagFlush | FlagLoading,
	}
}
