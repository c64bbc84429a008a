package gputest

import (
	"fmt"

	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
)

func (d *Device) CreateDescriptorSetLayout(info *gpu.DescriptorSetLayoutCreateInfo) (gpu.DescriptorSetLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f := d.call("CreateDescriptorSetLayout"); f != nil {
		return 0, gpu.NewResultError("vkCreateDescriptorSetLayout", f.result)
	}
	if info.BindingFlags != nil && len(info.BindingFlags) != len(info.Bindings) {
		return 0, fmt.Errorf("gputest: %d binding flags for %d bindings", len(info.BindingFlags), len(info.Bindings))
	}
	l := gpu.DescriptorSetLayout(d.add(KindDescriptorSetLayout))
	d.layouts[l] = gpu.DescriptorSetLayoutCreateInfo{
		Flags:        info.Flags,
		Bindings:     append([]gpu.DescriptorSetLayoutBinding(nil), info.Bindings...),
		BindingFlags: append([]gpu.DescriptorBindingFlags(nil), info.BindingFlags...),
	}
	return l, nil
}

func (d *Device) DestroyDescriptorSetLayout(layout gpu.DescriptorSetLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.remove(KindDescriptorSetLayout, uint64(layout)) {
		delete(d.layouts, layout)
	}
}

// LayoutInfo returns the create info of a live descriptor set layout.
func (d *Device) LayoutInfo(layout gpu.DescriptorSetLayout) (gpu.DescriptorSetLayoutCreateInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.layouts[layout]
	return info, ok
}

func (d *Device) CreateDescriptorPool(info *gpu.DescriptorPoolCreateInfo) (gpu.DescriptorPool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f := d.call("CreateDescriptorPool"); f != nil {
		return 0, gpu.NewResultError("vkCreateDescriptorPool", f.result)
	}
	if info.MaxSets == 0 {
		return 0, gpu.NewResultError("vkCreateDescriptorPool", gpu.ResultErrorInitializationFailed)
	}
	p := &pool{
		info: gpu.DescriptorPoolCreateInfo{
			Flags:     info.Flags,
			MaxSets:   info.MaxSets,
			PoolSizes: append([]gpu.DescriptorPoolSize(nil), info.PoolSizes...),
		},
		sets:      make(map[gpu.DescriptorSet][]gpu.DescriptorPoolSize),
		available: make(map[gpu.DescriptorType]uint32),
	}
	for _, s := range info.PoolSizes {
		p.available[s.Type] += s.Count
	}
	h := gpu.DescriptorPool(d.add(KindDescriptorPool))
	d.pools[h] = p
	return h, nil
}

// DestroyDescriptorPool releases every set still allocated from the pool.
func (d *Device) DestroyDescriptorPool(handle gpu.DescriptorPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pools[handle]
	if !ok {
		return
	}
	for s := range p.sets {
		d.remove(KindDescriptorSet, uint64(s))
		delete(d.setLayouts, s)
		delete(d.writes, s)
	}
	delete(d.pools, handle)
	d.remove(KindDescriptorPool, uint64(handle))
}

func (d *Device) AllocateDescriptorSets(handle gpu.DescriptorPool, layouts []gpu.DescriptorSetLayout) ([]gpu.DescriptorSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f := d.call("AllocateDescriptorSets")
	if f != nil && !f.partial {
		return nil, gpu.NewResultError("vkAllocateDescriptorSets", f.result)
	}
	p, ok := d.pools[handle]
	if !ok {
		return nil, fmt.Errorf("gputest: unknown descriptor pool %d", handle)
	}
	if uint32(len(p.sets)+len(layouts)) > p.info.MaxSets {
		return nil, gpu.NewResultError("vkAllocateDescriptorSets", gpu.ResultErrorOutOfPoolMemory)
	}

	need := make(map[gpu.DescriptorType]uint32)
	perSet := make([][]gpu.DescriptorPoolSize, len(layouts))
	for i, l := range layouts {
		info, ok := d.layouts[l]
		if !ok {
			return nil, fmt.Errorf("gputest: unknown descriptor set layout %d", l)
		}
		for _, b := range info.Bindings {
			need[b.Type] += b.Count
			perSet[i] = append(perSet[i], gpu.DescriptorPoolSize{Type: b.Type, Count: b.Count})
		}
	}
	for t, n := range need {
		if p.available[t] < n {
			return nil, gpu.NewResultError("vkAllocateDescriptorSets", gpu.ResultErrorOutOfPoolMemory)
		}
	}

	sets := make([]gpu.DescriptorSet, len(layouts))
	for i, l := range layouts {
		s := gpu.DescriptorSet(d.add(KindDescriptorSet))
		for _, ps := range perSet[i] {
			p.available[ps.Type] -= ps.Count
		}
		p.sets[s] = perSet[i]
		d.setLayouts[s] = l
		sets[i] = s
	}
	if f != nil {
		sets = append(sets, 0)
	}
	return sets, nil
}

func (d *Device) FreeDescriptorSets(handle gpu.DescriptorPool, sets []gpu.DescriptorSet) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f := d.call("FreeDescriptorSets"); f != nil {
		return gpu.NewResultError("vkFreeDescriptorSets", f.result)
	}
	p, ok := d.pools[handle]
	if !ok {
		return fmt.Errorf("gputest: unknown descriptor pool %d", handle)
	}
	if p.info.Flags&gpu.DescriptorPoolCreateFreeDescriptorSet == 0 {
		return fmt.Errorf("gputest: pool %d was not created with the free descriptor set flag", handle)
	}
	for _, s := range sets {
		if _, ok := p.sets[s]; !ok {
			return fmt.Errorf("gputest: set %d does not belong to pool %d", s, handle)
		}
	}
	for _, s := range sets {
		for _, ps := range p.sets[s] {
			p.available[ps.Type] += ps.Count
		}
		delete(p.sets, s)
		delete(d.setLayouts, s)
		delete(d.writes, s)
		d.remove(KindDescriptorSet, uint64(s))
		d.freed = append(d.freed, s)
	}
	d.freeBatches++
	return nil
}

func (d *Device) UpdateDescriptorSets(writes []gpu.DescriptorWrite) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls["UpdateDescriptorSets"]++
	for _, w := range writes {
		d.writes[w.Set] = append(d.writes[w.Set], w)
	}
}

// Writes returns every write recorded against a live set.
func (d *Device) Writes(set gpu.DescriptorSet) []gpu.DescriptorWrite {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]gpu.DescriptorWrite(nil), d.writes[set]...)
}

// Freed returns every set released through FreeDescriptorSets, in order.
func (d *Device) Freed() []gpu.DescriptorSet {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]gpu.DescriptorSet(nil), d.freed...)
}

// FreeBatches returns how many FreeDescriptorSets calls succeeded.
func (d *Device) FreeBatches() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.freeBatches
}

// SetAlive reports whether set is allocated and not yet freed.
func (d *Device) SetAlive(set gpu.DescriptorSet) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.isLive(KindDescriptorSet, uint64(set))
}

// PoolInfo returns the create info of a live descriptor pool.
func (d *Device) PoolInfo(handle gpu.DescriptorPool) (gpu.DescriptorPoolCreateInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pools[handle]
	if !ok {
		return gpu.DescriptorPoolCreateInfo{}, false
	}
	return p.info, true
}
