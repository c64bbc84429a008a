// Package descriptor caches descriptor set layouts, allocates descriptor sets and
// defers their release until the frame-in-flight slot that last used them has
// been confirmed complete by the GPU.
package descriptor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/anima-vk/engine/core"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
)

// Config sizes the pools of an Engine.
type Config struct {
	// FramesInFlight is the number of per-slot free queues.
	FramesInFlight int
	// MaxSets is the number of sets one pool can hold.
	MaxSets uint32

	UniformBuffers        uint32
	CombinedImageSamplers uint32
	StorageBuffers        uint32
	StorageImages         uint32

	// UpdateAfterBind creates pools that accept update-after-bind layouts.
	UpdateAfterBind bool
	// GrowOnExhaustion makes AllocateSet fall back to the other pools and then to a
	// new pool when the current one is exhausted, instead of failing.
	GrowOnExhaustion bool
}

// DefaultConfig returns the sizing used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		FramesInFlight:        2,
		MaxSets:               1024,
		UniformBuffers:        1024,
		CombinedImageSamplers: 4096,
		StorageBuffers:        256,
	}
}

func (c Config) poolCreateInfo() *gpu.DescriptorPoolCreateInfo {
	info := &gpu.DescriptorPoolCreateInfo{
		Flags:   gpu.DescriptorPoolCreateFreeDescriptorSet,
		MaxSets: c.MaxSets,
	}
	if c.UpdateAfterBind {
		info.Flags |= gpu.DescriptorPoolCreateUpdateAfterBind
	}
	sizes := []gpu.DescriptorPoolSize{
		{Type: gpu.DescriptorTypeUniformBuffer, Count: c.UniformBuffers},
		{Type: gpu.DescriptorTypeCombinedImageSampler, Count: c.CombinedImageSamplers},
		{Type: gpu.DescriptorTypeStorageBuffer, Count: c.StorageBuffers},
		{Type: gpu.DescriptorTypeStorageImage, Count: c.StorageImages},
	}
	for _, s := range sizes {
		if s.Count > 0 {
			info.PoolSizes = append(info.PoolSizes, s)
		}
	}
	return info
}

// Stats is a snapshot of the engine bookkeeping.
type Stats struct {
	Pools    int
	Layouts  int
	LiveSets int
	// Pending holds the number of sets queued for release, per frame slot.
	Pending []int
}

// Engine owns the descriptor pools and the layout cache of one renderer.
//
// A set handed to FreeSets is queued on the slot that is current at call time and
// released only by CleanupCompletedFrameSets for that same slot.
type Engine struct {
	device gpu.Device
	frames gpu.FrameIndexProvider
	config Config

	mu      sync.Mutex
	layouts map[string]gpu.DescriptorSetLayout
	// pools are in creation order; the last one is the current pool.
	pools []gpu.DescriptorPool
	// owners maps every live set to the pool it came from.
	owners map[gpu.DescriptorSet]gpu.DescriptorPool
	// pending is the per-slot free queue. queued maps a set to its slot.
	pending  [][]gpu.DescriptorSet
	queued   map[gpu.DescriptorSet]int
	disposed bool
}

// NewEngine creates the engine and its first descriptor pool.
func NewEngine(device gpu.Device, frames gpu.FrameIndexProvider, config Config) (*Engine, error) {
	if device == nil || frames == nil {
		return nil, fmt.Errorf("descriptor engine needs a device and a frame index provider: %w", core.ErrInvalidArgument)
	}
	if config.FramesInFlight <= 0 {
		return nil, fmt.Errorf("frames in flight must be positive, got %d: %w", config.FramesInFlight, core.ErrInvalidArgument)
	}
	if config.MaxSets == 0 {
		return nil, fmt.Errorf("descriptor pool max sets must be positive: %w", core.ErrInvalidArgument)
	}

	e := &Engine{
		device:  device,
		frames:  frames,
		config:  config,
		layouts: make(map[string]gpu.DescriptorSetLayout),
		owners:  make(map[gpu.DescriptorSet]gpu.DescriptorPool),
		pending: make([][]gpu.DescriptorSet, config.FramesInFlight),
		queued:  make(map[gpu.DescriptorSet]int),
	}
	if _, err := e.createPool(); err != nil {
		return nil, err
	}
	core.LogDebug("Descriptor engine created (%d frames in flight, %d sets per pool)", config.FramesInFlight, config.MaxSets)
	return e, nil
}

// createPool appends a new pool and makes it current. e.mu must be held or e unpublished.
func (e *Engine) createPool() (gpu.DescriptorPool, error) {
	pool, err := e.device.CreateDescriptorPool(e.config.poolCreateInfo())
	if err != nil {
		err = fmt.Errorf("create descriptor pool: %w", err)
		core.LogError("%s", err)
		return 0, err
	}
	e.pools = append(e.pools, pool)
	return pool, nil
}

// GetOrCreateLayout returns the cached layout for bindings, creating it on first use.
func (e *Engine) GetOrCreateLayout(bindings []Binding) (gpu.DescriptorSetLayout, error) {
	key := LayoutKey(bindings)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return 0, core.ErrDisposed
	}
	if layout, ok := e.layouts[key]; ok {
		return layout, nil
	}

	info, err := LayoutCreateInfo(bindings)
	if err != nil {
		return 0, err
	}
	if info.Flags&gpu.DescriptorSetLayoutCreateUpdateAfterBindPool != 0 && !e.config.UpdateAfterBind {
		return 0, fmt.Errorf("layout %q is update-after-bind but the pools are not: %w", key, core.ErrInvalidArgument)
	}
	layout, err := e.device.CreateDescriptorSetLayout(info)
	if err != nil {
		err = fmt.Errorf("create descriptor set layout %q: %w", key, err)
		core.LogError("%s", err)
		return 0, err
	}
	e.layouts[key] = layout
	return layout, nil
}

// AllocateSet allocates one set against layout. When the pool is exhausted the
// returned error matches core.ErrPoolExhausted, unless GrowOnExhaustion is set.
func (e *Engine) AllocateSet(layout gpu.DescriptorSetLayout) (gpu.DescriptorSet, error) {
	if layout == 0 {
		return 0, fmt.Errorf("allocate descriptor set with null layout: %w", core.ErrInvalidArgument)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return 0, core.ErrDisposed
	}

	current := e.pools[len(e.pools)-1]
	set, err := e.allocateFrom(current, layout)
	if err == nil {
		return set, nil
	}
	if !errors.Is(err, core.ErrPoolExhausted) || !e.config.GrowOnExhaustion {
		core.LogError("Failed to allocate descriptor set: %s", err)
		return 0, fmt.Errorf("allocate descriptor set: %w", err)
	}

	// Older pools regain capacity as frames retire.
	for i := len(e.pools) - 2; i >= 0; i-- {
		if set, err = e.allocateFrom(e.pools[i], layout); err == nil {
			return set, nil
		}
		if !errors.Is(err, core.ErrPoolExhausted) {
			return 0, fmt.Errorf("allocate descriptor set: %w", err)
		}
	}

	core.LogWarn("Descriptor pools exhausted, creating pool #%d", len(e.pools)+1)
	pool, err := e.createPool()
	if err != nil {
		return 0, err
	}
	if set, err = e.allocateFrom(pool, layout); err != nil {
		return 0, fmt.Errorf("allocate descriptor set from new pool: %w", err)
	}
	return set, nil
}

// allocateFrom allocates one set from pool. e.mu must be held.
func (e *Engine) allocateFrom(pool gpu.DescriptorPool, layout gpu.DescriptorSetLayout) (gpu.DescriptorSet, error) {
	sets, err := e.device.AllocateDescriptorSets(pool, []gpu.DescriptorSetLayout{layout})
	if err != nil {
		return 0, err
	}
	if len(sets) != 1 || sets[0] == 0 {
		live := make([]gpu.DescriptorSet, 0, len(sets))
		for _, s := range sets {
			if s != 0 {
				live = append(live, s)
			}
		}
		if len(live) > 0 {
			if err := e.device.FreeDescriptorSets(pool, live); err != nil {
				core.LogError("Failed to release malformed descriptor set allocation: %s", err)
			}
		}
		return 0, gpu.NewResultError("vkAllocateDescriptorSets", gpu.ResultErrorUnknown)
	}
	e.owners[sets[0]] = pool
	return sets[0], nil
}

// UpdateSet writes resource bindings into a live set. Sets queued for release are rejected.
func (e *Engine) UpdateSet(set gpu.DescriptorSet, writes ...gpu.DescriptorWrite) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return core.ErrDisposed
	}
	if err := e.checkLive(set); err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}

	out := make([]gpu.DescriptorWrite, len(writes))
	for i, w := range writes {
		if w.Type.IsBuffer() && len(w.Buffers) == 0 || !w.Type.IsBuffer() && len(w.Images) == 0 {
			return fmt.Errorf("write to binding %d of type %s carries no resources: %w", w.Binding, w.Type, core.ErrInvalidArgument)
		}
		w.Set = set
		out[i] = w
	}
	e.device.UpdateDescriptorSets(out)
	return nil
}

// checkLive reports whether set can still be used. e.mu must be held.
func (e *Engine) checkLive(set gpu.DescriptorSet) error {
	if _, ok := e.owners[set]; !ok {
		return fmt.Errorf("descriptor set %d: %w", set, core.ErrUnknownHandle)
	}
	if slot, ok := e.queued[set]; ok {
		return fmt.Errorf("descriptor set %d queued on frame slot %d: %w", set, slot, core.ErrSetRetired)
	}
	return nil
}

// FreeSets queues sets for release on the frame slot that is current now. Null
// handles are skipped. If any set is unknown or already queued nothing is queued.
func (e *Engine) FreeSets(sets ...gpu.DescriptorSet) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return core.ErrDisposed
	}

	slot := e.frames.CurrentFrameIndex()
	if slot < 0 || slot >= len(e.pending) {
		return fmt.Errorf("current frame index %d outside [0, %d): %w", slot, len(e.pending), core.ErrInvalidArgument)
	}

	batch := make(map[gpu.DescriptorSet]struct{}, len(sets))
	for _, s := range sets {
		if s == 0 {
			continue
		}
		if err := e.checkLive(s); err != nil {
			return err
		}
		if _, dup := batch[s]; dup {
			return fmt.Errorf("descriptor set %d freed twice: %w", s, core.ErrSetRetired)
		}
		batch[s] = struct{}{}
	}

	for _, s := range sets {
		if s == 0 {
			continue
		}
		e.pending[slot] = append(e.pending[slot], s)
		e.queued[s] = slot
	}
	return nil
}

// CleanupCompletedFrameSets releases every set queued on slot. Call it only once the
// GPU work submitted during the previous use of slot has completed.
func (e *Engine) CleanupCompletedFrameSets(slot int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if slot < 0 || slot >= len(e.pending) {
		return fmt.Errorf("frame slot %d outside [0, %d): %w", slot, len(e.pending), core.ErrInvalidArgument)
	}
	if e.disposed {
		return core.ErrDisposed
	}

	list := e.pending[slot]
	if len(list) == 0 {
		return nil
	}

	var order []gpu.DescriptorPool
	groups := make(map[gpu.DescriptorPool][]gpu.DescriptorSet)
	for _, s := range list {
		p := e.owners[s]
		if _, ok := groups[p]; !ok {
			order = append(order, p)
		}
		groups[p] = append(groups[p], s)
	}

	var kept []gpu.DescriptorSet
	var errs []error
	for _, p := range order {
		group := groups[p]
		if err := e.device.FreeDescriptorSets(p, group); err != nil {
			core.LogError("Failed to free %d descriptor sets of frame slot %d: %s", len(group), slot, err)
			errs = append(errs, err)
			kept = append(kept, group...)
			continue
		}
		for _, s := range group {
			delete(e.owners, s)
			delete(e.queued, s)
		}
	}
	e.pending[slot] = kept
	if len(errs) > 0 {
		return fmt.Errorf("cleanup frame slot %d: %w", slot, errors.Join(errs...))
	}
	return nil
}

// Stats returns a snapshot of pools, cached layouts, live sets and queue lengths.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Stats{
		Pools:    len(e.pools),
		Layouts:  len(e.layouts),
		LiveSets: len(e.owners),
		Pending:  make([]int, len(e.pending)),
	}
	for i, q := range e.pending {
		s.Pending[i] = len(q)
	}
	return s
}

// Dispose destroys every pool, which releases all sets, and every cached layout.
func (e *Engine) Dispose() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	for _, p := range e.pools {
		e.device.DestroyDescriptorPool(p)
	}
	for _, l := range e.layouts {
		e.device.DestroyDescriptorSetLayout(l)
	}
	e.pools = nil
	e.layouts = nil
	e.owners = nil
	e.queued = nil
	for i := range e.pending {
		e.pending[i] = nil
	}
	e.disposed = true
	core.LogDebug("Descriptor engine disposed")
}
