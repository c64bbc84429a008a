package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
)

func TestEveryFormatIsMapped(t *testing.T) {
	seen := make(map[vk.Format]gpu.Format)
	for f := gpu.FormatUndefined; f <= gpu.FormatD24UnormS8Uint; f++ {
		v, ok := formats[f]
		if !ok {
			t.Errorf("%s has no vulkan format", f)
			continue
		}
		if prev, dup := seen[v]; dup {
			t.Errorf("%s and %s map to the same vulkan format %d", prev, f, v)
		}
		seen[v] = f
	}
	if got := toFormat(gpu.Format(1000)); got != vk.FormatUndefined {
		t.Errorf("unknown format converted to %d", got)
	}
}

func TestAspectMask(t *testing.T) {
	tests := []struct {
		format gpu.Format
		want   vk.ImageAspectFlags
	}{
		{gpu.FormatR8G8B8A8Unorm, vk.ImageAspectFlags(vk.ImageAspectColorBit)},
		{gpu.FormatD32Sfloat, vk.ImageAspectFlags(vk.ImageAspectDepthBit)},
		{gpu.FormatD24UnormS8Uint, vk.ImageAspectFlags(vk.ImageAspectDepthBit) | vk.ImageAspectFlags(vk.ImageAspectStencilBit)},
	}
	for _, tt := range tests {
		if got := aspectMask(tt.format); got != tt.want {
			t.Errorf("aspectMask(%s) = %#x, want %#x", tt.format, got, tt.want)
		}
	}
}

func TestBarrierMasks(t *testing.T) {
	tests := []struct {
		name               string
		from, to           gpu.ImageLayout
		src, dst           vk.AccessFlags
		srcStage, dstStage vk.PipelineStageFlags
	}{
		{
			name: "upload",
			from: gpu.ImageLayoutUndefined, to: gpu.ImageLayoutTransferDstOptimal,
			src: 0, dst: vk.AccessFlags(vk.AccessTransferWriteBit),
			srcStage: vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
			dstStage: vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		},
		{
			name: "sample after upload",
			from: gpu.ImageLayoutTransferDstOptimal, to: gpu.ImageLayoutShaderReadOnlyOptimal,
			src: vk.AccessFlags(vk.AccessTransferWriteBit), dst: vk.AccessFlags(vk.AccessShaderReadBit),
			srcStage: vk.PipelineStageFlags(vk.PipelineStageTransferBit),
			dstStage: vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		},
		{
			name: "depth target",
			from: gpu.ImageLayoutUndefined, to: gpu.ImageLayoutDepthStencilAttachmentOptimal,
			src: 0, dst: vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit) | vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit),
			srcStage: vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
			dstStage: vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, dst, srcStage, dstStage := barrierMasks(tt.from, tt.to)
			if src != tt.src || dst != tt.dst {
				t.Errorf("access %#x -> %#x, want %#x -> %#x", src, dst, tt.src, tt.dst)
			}
			if srcStage != tt.srcStage || dstStage != tt.dstStage {
				t.Errorf("stages %#x -> %#x, want %#x -> %#x", srcStage, dstStage, tt.srcStage, tt.dstStage)
			}
		})
	}
}

func TestMemoryType(t *testing.T) {
	var props vk.PhysicalDeviceMemoryProperties
	props.MemoryTypeCount = 3
	props.MemoryTypes[0] = vk.MemoryType{PropertyFlags: vk.MemoryPropertyFlags(gpu.MemoryPropertyDeviceLocal)}
	props.MemoryTypes[1] = vk.MemoryType{PropertyFlags: vk.MemoryPropertyFlags(gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyHostCoherent)}
	props.MemoryTypes[2] = vk.MemoryType{PropertyFlags: vk.MemoryPropertyFlags(gpu.MemoryPropertyDeviceLocal | gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyHostCoherent)}

	tests := []struct {
		name                string
		typeBits            uint32
		required, preferred gpu.MemoryPropertyFlags
		want                uint32
		ok                  bool
	}{
		{"device local", 0b111, gpu.MemoryPropertyDeviceLocal, 0, 0, true},
		{"staging", 0b111, gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyHostCoherent, 0, 1, true},
		{"preferred wins", 0b111, gpu.MemoryPropertyHostVisible, gpu.MemoryPropertyDeviceLocal, 2, true},
		{"preferred unavailable", 0b011, gpu.MemoryPropertyHostVisible, gpu.MemoryPropertyDeviceLocal, 1, true},
		{"excluded by type bits", 0b001, gpu.MemoryPropertyHostVisible, 0, 0, false},
		{"beyond type count", 0b1000, 0, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, ok := memoryType(&props, tt.typeBits, tt.required, tt.preferred)
			if ok != tt.ok || (ok && got != tt.want) {
				t.Errorf("memoryType = %d, %v, want %d, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}
