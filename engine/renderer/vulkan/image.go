package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-vk/engine/core"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
)

func (d *VulkanDevice) CreateImageView(img gpu.Image, format gpu.Format) (gpu.ImageView, error) {
	target, ok := d.images.get(uint64(img))
	if !ok {
		return 0, fmt.Errorf("image %d: %w", img, core.ErrUnknownHandle)
	}

	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    target.handle,
		ViewType: vk.ImageViewType2d,
		Format:   toFormat(format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspectMask(format),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	var view vk.ImageView
	if err := d.locks.SafeCall(ImageManagement, func() error {
		return check("vkCreateImageView", vk.CreateImageView(d.context.LogicalDevice, &viewInfo, d.context.Allocator, &view))
	}); err != nil {
		return 0, err
	}
	return gpu.ImageView(d.imageViews.add(view)), nil
}

func (d *VulkanDevice) DestroyImageView(view gpu.ImageView) {
	if v, ok := d.imageViews.remove(uint64(view)); ok {
		_ = d.locks.SafeCall(ImageManagement, func() error {
			vk.DestroyImageView(d.context.LogicalDevice, v, d.context.Allocator)
			return nil
		})
	}
}

func (d *VulkanDevice) CreateSampler(info *gpu.SamplerCreateInfo) (gpu.Sampler, error) {
	address := vk.SamplerAddressMode(info.AddressMode)
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.Filter(info.MagFilter),
		MinFilter:               vk.Filter(info.MinFilter),
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            address,
		AddressModeV:            address,
		AddressModeW:            address,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1.0,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
	}

	var sampler vk.Sampler
	if err := d.locks.SafeCall(SamplerManagement, func() error {
		return check("vkCreateSampler", vk.CreateSampler(d.context.LogicalDevice, &samplerInfo, d.context.Allocator, &sampler))
	}); err != nil {
		return 0, err
	}
	return gpu.Sampler(d.samplers.add(sampler)), nil
}

func (d *VulkanDevice) DestroySampler(sampler gpu.Sampler) {
	if s, ok := d.samplers.remove(uint64(sampler)); ok {
		_ = d.locks.SafeCall(SamplerManagement, func() error {
			vk.DestroySampler(d.context.LogicalDevice, s, d.context.Allocator)
			return nil
		})
	}
}
