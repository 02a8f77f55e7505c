package compositor

import (
	"math"

	"golang.org/x/image/math/f32"
)

// ProjectionFov builds a right-handed projection matrix from field-of-view
// angles in degrees. offsetX and offsetY shift the frustum center at the
// near plane. A farZ at or below nearZ yields an infinite far plane.
func ProjectionFov(fovXDeg, fovYDeg, offsetX, offsetY, nearZ, farZ float32) f32.Mat4 {
	halfWidth := nearZ * float32(math.Tan(float64(fovXDeg)*math.Pi/360))
	halfHeight := nearZ * float32(math.Tan(float64(fovYDeg)*math.Pi/360))

	minX, maxX := offsetX-halfWidth, offsetX+halfWidth
	minY, maxY := offsetY-halfHeight, offsetY+halfHeight
	width := maxX - minX
	height := maxY - minY
	offsetZ := nearZ

	var m f32.Mat4
	m[0] = 2 * nearZ / width
	m[2] = (maxX + minX) / width
	m[5] = 2 * nearZ / height
	m[6] = (maxY + minY) / height
	if farZ <= nearZ {
		m[10] = -1
		m[11] = -(nearZ + offsetZ)
	} else {
		m[10] = -(farZ + offsetZ) / (farZ - nearZ)
		m[11] = -(farZ * (nearZ + offsetZ)) / (farZ - nearZ)
	}
	m[14] = -1
	return m
}

// TexCoordsFromProjection derives the tan-angle texture matrix the
// compositor uses to sample an eye image during time warp.
//
// The first two rows map a view direction (x/z, y/z) into [0,1] texture
// space with a flipped Y. The last row stores the clip-Z to linear depth
// terms of proj.
func TexCoordsFromProjection(proj f32.Mat4) f32.Mat4 {
	return f32.Mat4{
		0.5 * proj[0], 0, 0.5*proj[2] - 0.5, 0,
		0, -0.5 * proj[5], -0.5*proj[6] - 0.5, 0,
		0, 0, -1, 0,
		proj[10], proj[11], proj[14], 1,
	}
}

// EyeView returns the view matrix of an eye offset along the head's X axis
// by eyeOffsetX meters (negative for the left eye).
func EyeView(head Pose, eyeOffsetX float32) f32.Mat4 {
	r := rotation(head.Orientation)
	// Eye position in tracking space.
	ex := head.Position[0] + r[0]*eyeOffsetX
	ey := head.Position[1] + r[3]*eyeOffsetX
	ez := head.Position[2] + r[6]*eyeOffsetX

	// Inverse of a rigid transform: transpose the rotation and rotate the
	// negated translation.
	return f32.Mat4{
		r[0], r[3], r[6], -(r[0]*ex + r[3]*ey + r[6]*ez),
		r[1], r[4], r[7], -(r[1]*ex + r[4]*ey + r[7]*ez),
		r[2], r[5], r[8], -(r[2]*ex + r[5]*ey + r[8]*ez),
		0, 0, 0, 1,
	}
}

// YawPose returns a pose at position rotated by yaw radians about +Y.
func YawPose(yaw float32, position f32.Vec3) Pose {
	s, c := math.Sincos(float64(yaw) / 2)
	return Pose{
		Orientation: f32.Vec4{0, float32(s), 0, float32(c)},
		Position:    position,
	}
}

// rotation converts a unit quaternion to a row-major 3x3 rotation matrix.
func rotation(q f32.Vec4) f32.Mat3 {
	x, y, z, w := q[0], q[1], q[2], q[3]
	return f32.Mat3{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	}
}
