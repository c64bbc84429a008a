package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-vk/engine/core"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
)

func (d *VulkanDevice) CreatePipelineLayout(info *gpu.PipelineLayoutCreateInfo) (gpu.PipelineLayout, error) {
	setLayouts := make([]vk.DescriptorSetLayout, len(info.SetLayouts))
	for i, l := range info.SetLayouts {
		var ok bool
		if setLayouts[i], ok = d.setLayouts.get(uint64(l)); !ok {
			return 0, fmt.Errorf("descriptor set layout %d: %w", l, core.ErrUnknownHandle)
		}
	}

	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}

	// Push constants
	if len(info.PushConstantRanges) > 0 {
		ranges := make([]vk.PushConstantRange, len(info.PushConstantRanges))
		for i, r := range info.PushConstantRanges {
			ranges[i] = vk.PushConstantRange{
				StageFlags: toShaderStages(r.Stages),
				Offset:     r.Offset,
				Size:       r.Size,
			}
		}
		pipelineLayoutCreateInfo.PushConstantRangeCount = uint32(len(ranges))
		pipelineLayoutCreateInfo.PPushConstantRanges = ranges
	}

	var pPipelineLayout vk.PipelineLayout
	if err := d.locks.SafeCall(PipelineManagement, func() error {
		return check("vkCreatePipelineLayout", vk.CreatePipelineLayout(d.context.LogicalDevice, &pipelineLayoutCreateInfo, d.context.Allocator, &pPipelineLayout))
	}); err != nil {
		return 0, err
	}
	return gpu.PipelineLayout(d.pipelineLayouts.add(pPipelineLayout)), nil
}

func (d *VulkanDevice) DestroyPipelineLayout(layout gpu.PipelineLayout) {
	if l, ok := d.pipelineLayouts.remove(uint64(layout)); ok {
		_ = d.locks.SafeCall(PipelineManagement, func() error {
			vk.DestroyPipelineLayout(d.context.LogicalDevice, l, d.context.Allocator)
			return nil
		})
	}
}

// pipelineCacheCreateInfo seeds a cache with data from a previous run, if any.
func pipelineCacheCreateInfo(initialData []byte) vk.PipelineCacheCreateInfo {
	info := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}
	if len(initialData) > 0 {
		info.InitialDataSize = uint64(len(initialData))
		info.PInitialData = unsafe.Pointer(&initialData[0])
	}
	return info
}

func (d *VulkanDevice) CreatePipelineCache(initialData []byte) (gpu.PipelineCache, error) {
	cacheCreateInfo := pipelineCacheCreateInfo(initialData)

	var cache vk.PipelineCache
	if err := d.locks.SafeCall(PipelineManagement, func() error {
		return check("vkCreatePipelineCache", vk.CreatePipelineCache(d.context.LogicalDevice, &cacheCreateInfo, d.context.Allocator, &cache))
	}); err != nil {
		return 0, err
	}
	return gpu.PipelineCache(d.pipelineCaches.add(cache)), nil
}

// PipelineCacheData returns the serialized cache for the caller to persist.
func (d *VulkanDevice) PipelineCacheData(handle gpu.PipelineCache) ([]byte, error) {
	cache, ok := d.pipelineCaches.get(uint64(handle))
	if !ok {
		return nil, fmt.Errorf("pipeline cache %d: %w", handle, core.ErrUnknownHandle)
	}

	var size uint64
	if err := check("vkGetPipelineCacheData", vk.GetPipelineCacheData(d.context.LogicalDevice, cache, &size, nil)); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	data := make([]byte, size)
	if err := check("vkGetPipelineCacheData", vk.GetPipelineCacheData(d.context.LogicalDevice, cache, &size, unsafe.Pointer(&data[0]))); err != nil {
		return nil, err
	}
	return data[:size], nil
}

func (d *VulkanDevice) DestroyPipelineCache(handle gpu.PipelineCache) {
	if c, ok := d.pipelineCaches.remove(uint64(handle)); ok {
		_ = d.locks.SafeCall(PipelineManagement, func() error {
			vk.DestroyPipelineCache(d.context.LogicalDevice, c, d.context.Allocator)
			return nil
		})
	}
}

func (d *VulkanDevice) CreateGraphicsPipeline(cacheHandle gpu.PipelineCache, info *gpu.GraphicsPipelineCreateInfo) (gpu.Pipeline, error) {
	stages, err := d.shaderStages(info.Stages)
	if err != nil {
		return 0, err
	}
	layout, ok := d.pipelineLayouts.get(uint64(info.Layout))
	if !ok {
		return 0, fmt.Errorf("pipeline layout %d: %w", info.Layout, core.ErrUnknownHandle)
	}
	renderPass, ok := d.renderPasses.get(uint64(info.RenderPass))
	if !ok {
		return 0, fmt.Errorf("render pass %d: %w", info.RenderPass, core.ErrUnknownHandle)
	}
	var cache vk.PipelineCache
	if cacheHandle != 0 {
		if cache, ok = d.pipelineCaches.get(uint64(cacheHandle)); !ok {
			return 0, fmt.Errorf("pipeline cache %d: %w", cacheHandle, core.ErrUnknownHandle)
		}
	}

	// Viewport and scissor are dynamic; only their counts are fixed here.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	// Rasterizer
	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonMode(info.PolygonMode),
		LineWidth:               info.LineWidth,
		CullMode:                vk.CullModeFlags(info.CullMode),
		FrontFace:               vk.FrontFace(info.FrontFace),
		DepthBiasEnable:         vk.False,
	}

	// Multisampling.
	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vk.SampleCount1Bit,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	// Depth and stencil testing.
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       toBool(info.DepthTest),
		DepthWriteEnable:      toBool(info.DepthWrite),
		DepthCompareOp:        toCompareOp(info.DepthCompare),
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     toBool(info.StencilTest),
	}

	attachments := make([]vk.PipelineColorBlendAttachmentState, len(info.BlendAttachments))
	for i, a := range info.BlendAttachments {
		attachments[i] = vk.PipelineColorBlendAttachmentState{
			BlendEnable:         toBool(a.BlendEnable),
			SrcColorBlendFactor: vk.BlendFactor(a.SrcColor),
			DstColorBlendFactor: vk.BlendFactor(a.DstColor),
			ColorBlendOp:        vk.BlendOp(a.ColorOp),
			SrcAlphaBlendFactor: vk.BlendFactor(a.SrcAlpha),
			DstAlphaBlendFactor: vk.BlendFactor(a.DstAlpha),
			AlphaBlendOp:        vk.BlendOp(a.AlphaOp),
			ColorWriteMask:      vk.ColorComponentFlags(a.WriteMask),
		}
	}
	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
	}

	// Dynamic state
	dynamicStates := make([]vk.DynamicState, len(info.DynamicStates))
	for i, s := range info.DynamicStates {
		dynamicStates[i] = vk.DynamicState(s)
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	// Vertex input
	bindingDescriptions := make([]vk.VertexInputBindingDescription, len(info.VertexBindings))
	for i, b := range info.VertexBindings {
		rate := vk.VertexInputRateVertex
		if b.PerInstance {
			rate = vk.VertexInputRateInstance
		}
		bindingDescriptions[i] = vk.VertexInputBindingDescription{
			Binding:   b.Binding,
			Stride:    b.Stride,
			InputRate: rate,
		}
	}
	attributeDescriptions := make([]vk.VertexInputAttributeDescription, len(info.VertexAttributes))
	for i, a := range info.VertexAttributes {
		attributeDescriptions[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  a.Binding,
			Format:   toFormat(a.Format),
			Offset:   a.Offset,
		}
	}
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindingDescriptions)),
		PVertexBindingDescriptions:      bindingDescriptions,
		VertexAttributeDescriptionCount: uint32(len(attributeDescriptions)),
		PVertexAttributeDescriptions:    attributeDescriptions,
	}

	// Input assembly
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopology(info.Topology),
		PrimitiveRestartEnable: toBool(info.PrimitiveRestart),
	}

	// Pipeline create
	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              layout,
		RenderPass:          renderPass.handle,
		Subpass:             info.Subpass,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pPipelines := make([]vk.Pipeline, 1)
	if err := d.locks.SafeCall(PipelineManagement, func() error {
		return check("vkCreateGraphicsPipelines", vk.CreateGraphicsPipelines(
			d.context.LogicalDevice,
			cache,
			1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo},
			d.context.Allocator,
			pPipelines))
	}); err != nil {
		return 0, err
	}

	core.LogDebug("Graphics pipeline created!")
	return gpu.Pipeline(d.pipelines.add(pPipelines[0])), nil
}

func (d *VulkanDevice) DestroyPipeline(pipeline gpu.Pipeline) {
	if p, ok := d.pipelines.remove(uint64(pipeline)); ok {
		_ = d.locks.SafeCall(PipelineManagement, func() error {
			vk.DestroyPipeline(d.context.LogicalDevice, p, d.context.Allocator)
			return nil
		})
	}
}
