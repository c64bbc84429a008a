package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
)

// The gpu enumerations and flag bits share their numeric values with the Vulkan
// ones, so most conversions are plain casts. Formats are the exception.

var formats = map[gpu.Format]vk.Format{
	gpu.FormatUndefined:          vk.FormatUndefined,
	gpu.FormatR8Unorm:            vk.FormatR8Unorm,
	gpu.FormatR8G8Unorm:          vk.FormatR8g8Unorm,
	gpu.FormatR8G8B8A8Unorm:      vk.FormatR8g8b8a8Unorm,
	gpu.FormatR8G8B8A8Srgb:       vk.FormatR8g8b8a8Srgb,
	gpu.FormatB8G8R8A8Unorm:      vk.FormatB8g8r8a8Unorm,
	gpu.FormatB8G8R8A8Srgb:       vk.FormatB8g8r8a8Srgb,
	gpu.FormatR8G8B8A8Uint:       vk.FormatR8g8b8a8Uint,
	gpu.FormatR16G16Sfloat:       vk.FormatR16g16Sfloat,
	gpu.FormatR16G16B16A16Sfloat: vk.FormatR16g16b16a16Sfloat,
	gpu.FormatR32Sint:            vk.FormatR32Sint,
	gpu.FormatR32Uint:            vk.FormatR32Uint,
	gpu.FormatR32Sfloat:          vk.FormatR32Sfloat,
	gpu.FormatR32G32Sfloat:       vk.FormatR32g32Sfloat,
	gpu.FormatR32G32B32Sfloat:    vk.FormatR32g32b32Sfloat,
	gpu.FormatR32G32B32A32Sfloat: vk.FormatR32g32b32a32Sfloat,
	gpu.FormatD32Sfloat:          vk.FormatD32Sfloat,
	gpu.FormatD24UnormS8Uint:     vk.FormatD24UnormS8Uint,
}

func toFormat(f gpu.Format) vk.Format {
	if v, ok := formats[f]; ok {
		return v
	}
	return vk.FormatUndefined
}

func toDescriptorType(t gpu.DescriptorType) vk.DescriptorType {
	return vk.DescriptorType(t)
}

func toShaderStages(s gpu.ShaderStageFlags) vk.ShaderStageFlags {
	return vk.ShaderStageFlags(s)
}

func toShaderStage(s gpu.ShaderStageFlags) vk.ShaderStageFlagBits {
	return vk.ShaderStageFlagBits(s)
}

func toImageLayout(l gpu.ImageLayout) vk.ImageLayout {
	return vk.ImageLayout(l)
}

func toCompareOp(op gpu.CompareOp) vk.CompareOp {
	return vk.CompareOp(op)
}

func toBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

// aspectMask returns the image aspects addressed by views and barriers of format.
func aspectMask(f gpu.Format) vk.ImageAspectFlags {
	switch {
	case f.HasDepth() && f.HasStencil():
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit) | vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	case f.HasDepth():
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

// barrierMasks returns the access masks and pipeline stages of a layout transition.
func barrierMasks(from, to gpu.ImageLayout) (src, dst vk.AccessFlags, srcStage, dstStage vk.PipelineStageFlags) {
	src, srcStage = layoutAccess(from)
	dst, dstStage = layoutAccess(to)
	return src, dst, srcStage, dstStage
}

func layoutAccess(l gpu.ImageLayout) (vk.AccessFlags, vk.PipelineStageFlags) {
	switch l {
	case gpu.ImageLayoutUndefined:
		return 0, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	case gpu.ImageLayoutTransferDstOptimal:
		return vk.AccessFlags(vk.AccessTransferWriteBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case gpu.ImageLayoutTransferSrcOptimal:
		return vk.AccessFlags(vk.AccessTransferReadBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case gpu.ImageLayoutShaderReadOnlyOptimal:
		return vk.AccessFlags(vk.AccessShaderReadBit), vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	case gpu.ImageLayoutColorAttachmentOptimal:
		return vk.AccessFlags(vk.AccessColorAttachmentReadBit) | vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	case gpu.ImageLayoutDepthStencilAttachmentOptimal:
		return vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit) | vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)
	case gpu.ImageLayoutGeneral:
		return vk.AccessFlags(vk.AccessShaderReadBit) | vk.AccessFlags(vk.AccessTransferWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)
	}
	return 0, vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)
}

// memoryType picks the first memory type allowed by typeBits that has every
// required property, preferring one that also has the preferred properties.
func memoryType(props *vk.PhysicalDeviceMemoryProperties, typeBits uint32, required, preferred gpu.MemoryPropertyFlags) (uint32, gpu.MemoryPropertyFlags, bool) {
	best := -1
	var bestFlags gpu.MemoryPropertyFlags
	for i := uint32(0); i < props.MemoryTypeCount; i++ {
		if typeBits&(1<<i) == 0 {
			continue
		}
		props.MemoryTypes[i].Deref()
		flags := gpu.MemoryPropertyFlags(props.MemoryTypes[i].PropertyFlags)
		if flags&required != required {
			continue
		}
		if flags&preferred == preferred {
			return i, flags, true
		}
		if best < 0 {
			best, bestFlags = int(i), flags
		}
	}
	if best < 0 {
		return 0, 0, false
	}
	return uint32(best), bestFlags, true
}
