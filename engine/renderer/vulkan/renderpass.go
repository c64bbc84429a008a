package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-vk/engine/core"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
)

// RenderPassInfo describes a single subpass render pass with one color
// attachment and an optional depth attachment.
type RenderPassInfo struct {
	ColorFormat gpu.Format
	// DepthFormat is FormatUndefined for a color-only pass.
	DepthFormat gpu.Format
	// FinalLayout of the color attachment. Defaults to shader read only.
	FinalLayout gpu.ImageLayout
	ClearColor  bool
}

// CreateRenderPass creates a render pass owned by the device, usable as the
// target of graphics pipelines. It is destroyed by UnregisterRenderPass or Destroy.
func (d *VulkanDevice) CreateRenderPass(info RenderPassInfo) (gpu.RenderPass, error) {
	if info.ColorFormat == gpu.FormatUndefined {
		return 0, fmt.Errorf("render pass without a color format: %w", core.ErrInvalidArgument)
	}
	finalLayout := info.FinalLayout
	if finalLayout == gpu.ImageLayoutUndefined {
		finalLayout = gpu.ImageLayoutShaderReadOnlyOptimal
	}
	loadOp := vk.AttachmentLoadOpLoad
	initialLayout := vk.ImageLayoutColorAttachmentOptimal
	if info.ClearColor {
		// Do not expect any particular layout before the pass starts.
		loadOp = vk.AttachmentLoadOpClear
		initialLayout = vk.ImageLayoutUndefined
	}

	// Main subpass
	subpass := vk.SubpassDescription{
		PipelineBindPoint: vk.PipelineBindPointGraphics,
	}

	attachmentDescriptions := []vk.AttachmentDescription{{
		Format:         toFormat(info.ColorFormat),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         loadOp,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  initialLayout,
		FinalLayout:    toImageLayout(finalLayout),
	}}

	subpass.ColorAttachmentCount = 1
	subpass.PColorAttachments = []vk.AttachmentReference{{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}

	if info.DepthFormat != gpu.FormatUndefined {
		attachmentDescriptions = append(attachmentDescriptions, vk.AttachmentDescription{
			Format:         toFormat(info.DepthFormat),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		})
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: 1,
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit) | vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachmentDescriptions)),
		PAttachments:    attachmentDescriptions,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var pRenderPass vk.RenderPass
	if err := d.locks.SafeCall(PipelineManagement, func() error {
		return check("vkCreateRenderPass", vk.CreateRenderPass(d.context.LogicalDevice, &renderpassCreateInfo, d.context.Allocator, &pRenderPass))
	}); err != nil {
		return 0, err
	}
	return gpu.RenderPass(d.renderPasses.add(renderPass{handle: pRenderPass, owned: true})), nil
}

// NativeRenderPass returns the vulkan handle behind pass, for beginning it on a
// command buffer recorded outside this package.
func (d *VulkanDevice) NativeRenderPass(pass gpu.RenderPass) vk.RenderPass {
	rp, _ := d.renderPasses.get(uint64(pass))
	return rp.handle
}
