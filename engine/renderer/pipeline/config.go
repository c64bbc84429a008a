package pipeline

import (
	"fmt"

	"github.com/spaghettifunk/anima-vk/engine/core"
	"github.com/spaghettifunk/anima-vk/engine/renderer/descriptor"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
)

const (
	// MaxSets is the number of descriptor sets a bundle can declare.
	MaxSets = 2
	// MaxPushConstantRanges bounds Config.PushConstants.
	MaxPushConstantRanges = 32
	// DefaultEntry is the shader entry point used when none is configured.
	DefaultEntry = "main"
)

// VertexAttribute is one attribute of the interleaved vertex layout. Offsets are
// assigned in declaration order from the format sizes.
type VertexAttribute struct {
	Location uint32
	Format   gpu.Format
}

// Config describes a graphics pipeline and the layouts it is built against.
type Config struct {
	Name string

	VertexShader   string
	FragmentShader string
	VertexEntry    string
	FragmentEntry  string

	Attributes []VertexAttribute
	// Sets holds the bindings of set 0 and set 1. An empty declaration creates no
	// layout. Set 1 can only be declared together with set 0, so set i is at
	// index i of the pipeline layout.
	Sets          [MaxSets][]descriptor.Binding
	PushConstants []gpu.PushConstantRange

	// RenderPass is borrowed and must outlive the bundle.
	RenderPass gpu.RenderPass
	Subpass    uint32

	Topology    gpu.PrimitiveTopology
	PolygonMode gpu.PolygonMode
	CullMode    gpu.CullMode
	FrontFace   gpu.FrontFace

	DepthTest  bool
	DepthWrite bool
	// DepthCompare is used as given when DepthCompareSet is true. Otherwise a
	// depth tested pipeline compares with less.
	DepthCompare    gpu.CompareOp
	DepthCompareSet bool
	StencilTest     bool

	// BlendAttachments defaults to one opaque attachment writing every component.
	BlendAttachments []gpu.ColorBlendAttachment
	// DynamicStates defaults to viewport and scissor.
	DynamicStates []gpu.DynamicState
}

// OpaqueBlend writes every component without blending.
func OpaqueBlend() gpu.ColorBlendAttachment {
	return gpu.ColorBlendAttachment{
		SrcColor:  gpu.BlendFactorOne,
		DstColor:  gpu.BlendFactorZero,
		ColorOp:   gpu.BlendOpAdd,
		SrcAlpha:  gpu.BlendFactorOne,
		DstAlpha:  gpu.BlendFactorZero,
		AlphaOp:   gpu.BlendOpAdd,
		WriteMask: gpu.ColorComponentAll,
	}
}

// AlphaBlend is straight alpha blending.
func AlphaBlend() gpu.ColorBlendAttachment {
	return gpu.ColorBlendAttachment{
		BlendEnable: true,
		SrcColor:    gpu.BlendFactorSrcAlpha,
		DstColor:    gpu.BlendFactorOneMinusSrcAlpha,
		ColorOp:     gpu.BlendOpAdd,
		SrcAlpha:    gpu.BlendFactorOne,
		DstAlpha:    gpu.BlendFactorOneMinusSrcAlpha,
		AlphaOp:     gpu.BlendOpAdd,
		WriteMask:   gpu.ColorComponentAll,
	}
}

// validate rejects configurations no device call could accept.
func (c *Config) validate(limits gpu.Limits) error {
	if c.RenderPass == 0 {
		return fmt.Errorf("pipeline %q: null render pass: %w", c.Name, core.ErrInvalidArgument)
	}
	if c.VertexShader == "" || c.FragmentShader == "" {
		return fmt.Errorf("pipeline %q: vertex and fragment shaders are required: %w", c.Name, core.ErrInvalidArgument)
	}

	locations := make(map[uint32]struct{}, len(c.Attributes))
	for _, a := range c.Attributes {
		if a.Format.Size() == 0 {
			return fmt.Errorf("pipeline %q: attribute %d has format %s: %w", c.Name, a.Location, a.Format, core.ErrInvalidArgument)
		}
		if _, dup := locations[a.Location]; dup {
			return fmt.Errorf("pipeline %q: attribute location %d declared twice: %w", c.Name, a.Location, core.ErrInvalidArgument)
		}
		locations[a.Location] = struct{}{}
	}

	for i, bindings := range c.Sets {
		if len(bindings) == 0 {
			continue
		}
		if i > 0 && len(c.Sets[i-1]) == 0 {
			return fmt.Errorf("pipeline %q: set %d declared without set %d: %w", c.Name, i, i-1, core.ErrInvalidArgument)
		}
		if _, err := descriptor.LayoutCreateInfo(bindings); err != nil {
			return fmt.Errorf("pipeline %q: set %d: %w", c.Name, i, err)
		}
	}

	if len(c.PushConstants) > MaxPushConstantRanges {
		return fmt.Errorf("pipeline %q: %d push constant ranges, at most %d: %w", c.Name, len(c.PushConstants), MaxPushConstantRanges, core.ErrInvalidArgument)
	}
	for i, r := range c.PushConstants {
		if r.Stages == 0 || r.Size == 0 || r.Offset%4 != 0 || r.Size%4 != 0 {
			return fmt.Errorf("pipeline %q: push constant range %d %+v: %w", c.Name, i, r, core.ErrInvalidArgument)
		}
		if limit := limits.MaxPushConstantsSize; limit > 0 && r.Offset+r.Size > limit {
			return fmt.Errorf("pipeline %q: push constant range %d ends at %d, device limit is %d: %w", c.Name, i, r.Offset+r.Size, limit, core.ErrInvalidArgument)
		}
	}
	return nil
}

// vertexInput lays the attributes out interleaved in binding 0.
func (c *Config) vertexInput() ([]gpu.VertexInputBinding, []gpu.VertexInputAttribute) {
	if len(c.Attributes) == 0 {
		return nil, nil
	}
	attrs := make([]gpu.VertexInputAttribute, len(c.Attributes))
	var offset uint32
	for i, a := range c.Attributes {
		attrs[i] = gpu.VertexInputAttribute{
			Location: a.Location,
			Binding:  0,
			Format:   a.Format,
			Offset:   offset,
		}
		offset += a.Format.Size()
	}
	return []gpu.VertexInputBinding{{Binding: 0, Stride: offset}}, attrs
}

func (c *Config) createInfo(vs, fs gpu.ShaderModule, layout gpu.PipelineLayout) *gpu.GraphicsPipelineCreateInfo {
	bindings, attrs := c.vertexInput()

	info := &gpu.GraphicsPipelineCreateInfo{
		Stages: []gpu.ShaderStageInfo{
			{Stage: gpu.ShaderStageVertex, Module: vs, Entry: orDefault(c.VertexEntry)},
			{Stage: gpu.ShaderStageFragment, Module: fs, Entry: orDefault(c.FragmentEntry)},
		},
		VertexBindings:   bindings,
		VertexAttributes: attrs,
		Topology:         c.Topology,
		PolygonMode:      c.PolygonMode,
		CullMode:         c.CullMode,
		FrontFace:        c.FrontFace,
		LineWidth:        1.0,
		DepthTest:        c.DepthTest,
		DepthWrite:       c.DepthWrite,
		DepthCompare:     c.DepthCompare,
		StencilTest:      c.StencilTest,
		BlendAttachments: c.BlendAttachments,
		DynamicStates:    c.DynamicStates,
		Layout:           layout,
		RenderPass:       c.RenderPass,
		Subpass:          c.Subpass,
	}
	if info.DepthTest && !c.DepthCompareSet {
		info.DepthCompare = gpu.CompareOpLess
	}
	if len(info.BlendAttachments) == 0 {
		info.BlendAttachments = []gpu.ColorBlendAttachment{OpaqueBlend()}
	}
	if len(info.DynamicStates) == 0 {
		info.DynamicStates = []gpu.DynamicState{gpu.DynamicStateViewport, gpu.DynamicStateScissor}
	}
	return info
}

func orDefault(entry string) string {
	if entry == "" {
		return DefaultEntry
	}
	return entry
}
