package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-vk/engine/core"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
)

type descriptorSet struct {
	handle vk.DescriptorSet
	pool   gpu.DescriptorPool
}

func (d *VulkanDevice) CreateDescriptorSetLayout(info *gpu.DescriptorSetLayoutCreateInfo) (gpu.DescriptorSetLayout, error) {
	bindings := make([]vk.DescriptorSetLayoutBinding, len(info.Bindings))
	for i, b := range info.Bindings {
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  toDescriptorType(b.Type),
			DescriptorCount: b.Count,
			StageFlags:      toShaderStages(b.Stages),
		}
	}

	layoutCreateInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		Flags:        vk.DescriptorSetLayoutCreateFlags(info.Flags),
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	if len(info.BindingFlags) > 0 {
		flags := make([]vk.DescriptorBindingFlags, len(info.BindingFlags))
		for i, f := range info.BindingFlags {
			flags[i] = vk.DescriptorBindingFlags(f)
		}
		flagsInfo := vk.DescriptorSetLayoutBindingFlagsCreateInfo{
			SType:         vk.StructureTypeDescriptorSetLayoutBindingFlagsCreateInfo,
			BindingCount:  uint32(len(flags)),
			PBindingFlags: flags,
		}
		ref, _ := flagsInfo.PassRef()
		layoutCreateInfo.PNext = unsafe.Pointer(ref)
	}

	var layout vk.DescriptorSetLayout
	if err := d.locks.SafeCall(DescriptorManagement, func() error {
		return check("vkCreateDescriptorSetLayout", vk.CreateDescriptorSetLayout(d.context.LogicalDevice, &layoutCreateInfo, d.context.Allocator, &layout))
	}); err != nil {
		return 0, err
	}
	return gpu.DescriptorSetLayout(d.setLayouts.add(layout)), nil
}

func (d *VulkanDevice) DestroyDescriptorSetLayout(layout gpu.DescriptorSetLayout) {
	if l, ok := d.setLayouts.remove(uint64(layout)); ok {
		_ = d.locks.SafeCall(DescriptorManagement, func() error {
			vk.DestroyDescriptorSetLayout(d.context.LogicalDevice, l, d.context.Allocator)
			return nil
		})
	}
}

func (d *VulkanDevice) CreateDescriptorPool(info *gpu.DescriptorPoolCreateInfo) (gpu.DescriptorPool, error) {
	sizes := make([]vk.DescriptorPoolSize, len(info.PoolSizes))
	for i, s := range info.PoolSizes {
		sizes[i] = vk.DescriptorPoolSize{
			Type:            toDescriptorType(s.Type),
			DescriptorCount: s.Count,
		}
	}

	poolCreateInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(info.Flags),
		MaxSets:       info.MaxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}

	var pool vk.DescriptorPool
	if err := d.locks.SafeCall(DescriptorManagement, func() error {
		return check("vkCreateDescriptorPool", vk.CreateDescriptorPool(d.context.LogicalDevice, &poolCreateInfo, d.context.Allocator, &pool))
	}); err != nil {
		return 0, err
	}
	return gpu.DescriptorPool(d.descriptorPools.add(pool)), nil
}

// DestroyDescriptorPool also releases every set allocated from the pool.
func (d *VulkanDevice) DestroyDescriptorPool(handle gpu.DescriptorPool) {
	if p, ok := d.descriptorPools.remove(uint64(handle)); ok {
		d.descriptorSets.removeIf(func(s descriptorSet) bool { return s.pool == handle })
		_ = d.locks.SafeCall(DescriptorManagement, func() error {
			vk.DestroyDescriptorPool(d.context.LogicalDevice, p, d.context.Allocator)
			return nil
		})
	}
}

func (d *VulkanDevice) AllocateDescriptorSets(handle gpu.DescriptorPool, layouts []gpu.DescriptorSetLayout) ([]gpu.DescriptorSet, error) {
	pool, ok := d.descriptorPools.get(uint64(handle))
	if !ok {
		return nil, fmt.Errorf("descriptor pool %d: %w", handle, core.ErrUnknownHandle)
	}
	if len(layouts) == 0 {
		return nil, nil
	}
	native := make([]vk.DescriptorSetLayout, len(layouts))
	for i, l := range layouts {
		if native[i], ok = d.setLayouts.get(uint64(l)); !ok {
			return nil, fmt.Errorf("descriptor set layout %d: %w", l, core.ErrUnknownHandle)
		}
	}

	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: uint32(len(native)),
		PSetLayouts:        native,
	}
	sets := make([]vk.DescriptorSet, len(native))
	if err := d.locks.SafeCall(DescriptorManagement, func() error {
		return check("vkAllocateDescriptorSets", vk.AllocateDescriptorSets(d.context.LogicalDevice, &allocateInfo, &sets[0]))
	}); err != nil {
		return nil, err
	}

	out := make([]gpu.DescriptorSet, len(sets))
	for i, s := range sets {
		out[i] = gpu.DescriptorSet(d.descriptorSets.add(descriptorSet{handle: s, pool: handle}))
	}
	return out, nil
}

func (d *VulkanDevice) FreeDescriptorSets(handle gpu.DescriptorPool, sets []gpu.DescriptorSet) error {
	pool, ok := d.descriptorPools.get(uint64(handle))
	if !ok {
		return fmt.Errorf("descriptor pool %d: %w", handle, core.ErrUnknownHandle)
	}
	native := make([]vk.DescriptorSet, 0, len(sets))
	for _, s := range sets {
		if set, ok := d.descriptorSets.get(uint64(s)); ok && set.pool == handle {
			native = append(native, set.handle)
		}
	}
	if len(native) == 0 {
		return nil
	}

	if err := d.locks.SafeCall(DescriptorManagement, func() error {
		return check("vkFreeDescriptorSets", vk.FreeDescriptorSets(d.context.LogicalDevice, pool, uint32(len(native)), &native[0]))
	}); err != nil {
		return err
	}
	for _, s := range sets {
		d.descriptorSets.remove(uint64(s))
	}
	return nil
}

func (d *VulkanDevice) UpdateDescriptorSets(writes []gpu.DescriptorWrite) {
	native := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		set, ok := d.descriptorSets.get(uint64(w.Set))
		if !ok {
			core.LogError("Descriptor write to unknown set %d skipped", w.Set)
			continue
		}
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set.handle,
			DstBinding:      w.Binding,
			DstArrayElement: w.ArrayElement,
			DescriptorType:  toDescriptorType(w.Type),
		}
		if w.Type.IsBuffer() {
			infos := make([]vk.DescriptorBufferInfo, len(w.Buffers))
			for i, b := range w.Buffers {
				buffer, _ := d.buffers.get(uint64(b.Buffer))
				rng := vk.DeviceSize(b.Range)
				if b.Range == 0 {
					rng = vk.DeviceSize(vk.WholeSize)
				}
				infos[i] = vk.DescriptorBufferInfo{Buffer: buffer, Offset: vk.DeviceSize(b.Offset), Range: rng}
			}
			write.DescriptorCount = uint32(len(infos))
			write.PBufferInfo = infos
		} else {
			infos := make([]vk.DescriptorImageInfo, len(w.Images))
			for i, img := range w.Images {
				sampler, _ := d.samplers.get(uint64(img.Sampler))
				view, _ := d.imageViews.get(uint64(img.View))
				infos[i] = vk.DescriptorImageInfo{Sampler: sampler, ImageView: view, ImageLayout: toImageLayout(img.Layout)}
			}
			write.DescriptorCount = uint32(len(infos))
			write.PImageInfo = infos
		}
		native = append(native, write)
	}
	if len(native) == 0 {
		return
	}
	vk.UpdateDescriptorSets(d.context.LogicalDevice, uint32(len(native)), native, 0, nil)
}
