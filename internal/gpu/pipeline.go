package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ScenePipeline returns the render pipeline that draws src into targets
// described by pass, building it on first use. Both eyes share one pipeline
// when their passes match.
func (c *Context) ScenePipeline(pass RenderPassDesc, src ShaderSource) (hal.RenderPipeline, error) {
	src = src.withDefaults()
	key := &PipelineKey{
		Label:       src.Label,
		ShaderHash:  hashString(src.WGSL),
		ColorFormat: pass.ColorFormat,
		DepthFormat: pass.DepthFormat,
		SampleCount: pass.SampleCount,
		Multiview:   pass.Multiview,
		SPIRV:       src.SPIRV,
	}
	cached, err := c.cache.GetOrCreate(key, func() (*CachedPipeline, error) {
		return createScenePipeline(c.device, pass, src)
	})
	if err != nil {
		return nil, err
	}
	return cached.Pipeline, nil
}

func createScenePipeline(device hal.Device, pass RenderPassDesc, src ShaderSource) (*CachedPipeline, error) {
	p := &CachedPipeline{}

	shader, err := createShaderModule(device, src)
	if err != nil {
		return nil, err
	}
	p.Shader = shader

	layout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: src.Label + "_pipe_layout",
	})
	if err != nil {
		p.destroy(device)
		return nil, fmt.Errorf("create %s pipeline layout: %w", src.Label, err)
	}
	p.Layout = layout

	desc := &hal.RenderPipelineDescriptor{
		Label:  src.Label + "_pipeline",
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    pass.ColorFormat,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: pass.SampleCount,
			Mask:  0xFFFFFFFF,
		},
	}
	if pass.HasDepth() {
		desc.DepthStencil = &hal.DepthStencilState{
			Format:            pass.DepthFormat,
			DepthWriteEnabled: true,
			DepthCompare:      gputypes.CompareFunctionLessEqual,
			StencilFront: hal.StencilFaceState{
				Compare:     gputypes.CompareFunctionAlways,
				FailOp:      hal.StencilOperationKeep,
				DepthFailOp: hal.StencilOperationKeep,
				PassOp:      hal.StencilOperationKeep,
			},
			StencilBack: hal.StencilFaceState{
				Compare:     gputypes.CompareFunctionAlways,
				FailOp:      hal.StencilOperationKeep,
				DepthFailOp: hal.StencilOperationKeep,
				PassOp:      hal.StencilOperationKeep,
			},
		}
	}

	pipeline, err := device.CreateRenderPipeline(desc)
	if err != nil {
		p.destroy(device)
		return nil, fmt.Errorf("create %s render pipeline: %w", src.Label, err)
	}
	p.Pipeline = pipeline

	slogger().Debug("gpu: scene pipeline created", "label", src.Label,
		"format", pass.ColorFormat, "samples", pass.SampleCount, "depth", pass.HasDepth(), "spirv", src.SPIRV)
	return p, nil
}
