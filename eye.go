package xr

import "fmt"

// Eye identifies one of the two eye pipelines.
type Eye int

const (
	EyeLeft Eye = iota
	EyeRight
)

func (e Eye) String() string {
	switch e {
	case EyeLeft:
		return "left"
	case EyeRight:
		return "right"
	default:
		return fmt.Sprintf("Eye(%d)", int(e))
	}
}
