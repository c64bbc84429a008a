package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-vk/engine/core"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
)

func shaderModuleCreateInfo(code []uint32) vk.ShaderModuleCreateInfo {
	return vk.ShaderModuleCreateInfo{
		SType: vk.StructureTypeShaderModuleCreateInfo,
		// CodeSize is in bytes.
		CodeSize: uint64(len(code) * 4),
		PCode:    code,
	}
}

func (d *VulkanDevice) CreateShaderModule(code []uint32) (gpu.ShaderModule, error) {
	if len(code) == 0 {
		return 0, fmt.Errorf("empty SPIR-V module: %w", core.ErrInvalidArgument)
	}
	createInfo := shaderModuleCreateInfo(code)

	var module vk.ShaderModule
	if err := d.locks.SafeCall(ShaderManagement, func() error {
		return check("vkCreateShaderModule", vk.CreateShaderModule(d.context.LogicalDevice, &createInfo, d.context.Allocator, &module))
	}); err != nil {
		return 0, err
	}
	return gpu.ShaderModule(d.shaderModules.add(module)), nil
}

func (d *VulkanDevice) DestroyShaderModule(module gpu.ShaderModule) {
	if m, ok := d.shaderModules.remove(uint64(module)); ok {
		_ = d.locks.SafeCall(ShaderManagement, func() error {
			vk.DestroyShaderModule(d.context.LogicalDevice, m, d.context.Allocator)
			return nil
		})
	}
}

// shaderStages builds the stage create infos of a pipeline.
func (d *VulkanDevice) shaderStages(stages []gpu.ShaderStageInfo) ([]vk.PipelineShaderStageCreateInfo, error) {
	out := make([]vk.PipelineShaderStageCreateInfo, len(stages))
	for i, s := range stages {
		module, ok := d.shaderModules.get(uint64(s.Module))
		if !ok {
			return nil, fmt.Errorf("shader module %d: %w", s.Module, core.ErrUnknownHandle)
		}
		out[i] = vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  toShaderStage(s.Stage),
			Module: module,
			PName:  VulkanSafeString(s.Entry),
		}
	}
	return out, nil
}
