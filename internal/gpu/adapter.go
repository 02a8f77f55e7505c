package gpu

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Adapter scores. Discrete beats integrated beats everything else.
const (
	scoreDiscrete   = 1000
	scoreIntegrated = 500
	scoreOther      = 100
)

// scoreAdapter rates an adapter for stereo rendering.
func scoreAdapter(a *hal.ExposedAdapter) int {
	switch a.Info.DeviceType {
	case gputypes.DeviceTypeDiscreteGPU:
		return scoreDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		return scoreIntegrated
	default:
		return scoreOther
	}
}

// selectAdapter returns the highest-scoring adapter that exposes every
// required feature, or nil. Ties keep enumeration order.
func selectAdapter(adapters []hal.ExposedAdapter, required gputypes.Features) *hal.ExposedAdapter {
	var best *hal.ExposedAdapter
	bestScore := -1
	for i := range adapters {
		a := &adapters[i]
		if a.Features&required != required {
			slogger().Debug("gpu: adapter rejected, missing features",
				"adapter", a.Info.Name, "missing", uint64(required&^a.Features))
			continue
		}
		if s := scoreAdapter(a); s > bestScore {
			best, bestScore = a, s
		}
	}
	return best
}
