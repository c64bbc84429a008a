// Package gputest provides an in-memory gpu.Device and gpu.Allocator for tests.
//
// The device records every object it creates and destroys, enforces descriptor
// pool capacity, keeps the contents of every allocation in host memory and
// executes recorded transfer commands when a single-use command buffer is ended,
// so uploads can be read back. Failures are injected per operation with FailOn.
package gputest

import (
	"fmt"
	"sync"
	"time"

	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
)

// Kind names a class of device object for the counters.
type Kind string

const (
	KindDescriptorSetLayout Kind = "descriptor_set_layout"
	KindDescriptorPool      Kind = "descriptor_pool"
	KindDescriptorSet       Kind = "descriptor_set"
	KindShaderModule        Kind = "shader_module"
	KindPipelineLayout      Kind = "pipeline_layout"
	KindPipelineCache       Kind = "pipeline_cache"
	KindPipeline            Kind = "pipeline"
	KindImageView           Kind = "image_view"
	KindSampler             Kind = "sampler"
	KindBuffer              Kind = "buffer"
	KindImage               Kind = "image"
	KindAllocation          Kind = "allocation"
	KindCommandBuffer       Kind = "command_buffer"
	KindFence               Kind = "fence"
)

type failure struct {
	result  gpu.Result
	nth     int
	partial bool
}

type pool struct {
	info      gpu.DescriptorPoolCreateInfo
	sets      map[gpu.DescriptorSet][]gpu.DescriptorPoolSize
	available map[gpu.DescriptorType]uint32
}

type allocation struct {
	data       []byte
	flags      gpu.MemoryPropertyFlags
	persistent bool
	maps       int
}

type buffer struct {
	alloc gpu.Allocation
	size  uint64
}

type image struct {
	alloc  gpu.Allocation
	info   gpu.ImageCreateInfo
	layout gpu.ImageLayout
}

// Device implements gpu.Device and gpu.Allocator in host memory.
type Device struct {
	mu sync.Mutex

	limits gpu.Limits
	next   uint64

	live      map[Kind]map[uint64]struct{}
	created   map[Kind]int
	destroyed map[Kind]int

	calls    map[string]int
	failures map[string][]*failure

	layouts     map[gpu.DescriptorSetLayout]gpu.DescriptorSetLayoutCreateInfo
	pools       map[gpu.DescriptorPool]*pool
	setLayouts  map[gpu.DescriptorSet]gpu.DescriptorSetLayout
	writes      map[gpu.DescriptorSet][]gpu.DescriptorWrite
	freed       []gpu.DescriptorSet
	freeBatches int

	modules         map[gpu.ShaderModule][]uint32
	pipelineLayouts map[gpu.PipelineLayout]gpu.PipelineLayoutCreateInfo
	pipelines       map[gpu.Pipeline]gpu.GraphicsPipelineCreateInfo
	caches          map[gpu.PipelineCache][]byte

	allocations map[gpu.Allocation]*allocation
	buffers     map[gpu.Buffer]*buffer
	images      map[gpu.Image]*image

	commands    map[gpu.CommandBuffer][]func() error
	submissions int
	flushes     int

	fences map[gpu.Fence]bool
}

var (
	_ gpu.Device    = (*Device)(nil)
	_ gpu.Allocator = (*Device)(nil)
)

// New returns an empty device with desktop-like limits.
func New() *Device {
	return &Device{
		limits: gpu.Limits{
			NonCoherentAtomSize:             64,
			MinUniformBufferOffsetAlignment: 256,
			MaxPushConstantsSize:            128,
			MaxBoundDescriptorSets:          4,
		},
		live:            make(map[Kind]map[uint64]struct{}),
		created:         make(map[Kind]int),
		destroyed:       make(map[Kind]int),
		calls:           make(map[string]int),
		failures:        make(map[string][]*failure),
		layouts:         make(map[gpu.DescriptorSetLayout]gpu.DescriptorSetLayoutCreateInfo),
		pools:           make(map[gpu.DescriptorPool]*pool),
		setLayouts:      make(map[gpu.DescriptorSet]gpu.DescriptorSetLayout),
		writes:          make(map[gpu.DescriptorSet][]gpu.DescriptorWrite),
		modules:         make(map[gpu.ShaderModule][]uint32),
		pipelineLayouts: make(map[gpu.PipelineLayout]gpu.PipelineLayoutCreateInfo),
		pipelines:       make(map[gpu.Pipeline]gpu.GraphicsPipelineCreateInfo),
		caches:          make(map[gpu.PipelineCache][]byte),
		allocations:     make(map[gpu.Allocation]*allocation),
		buffers:         make(map[gpu.Buffer]*buffer),
		images:          make(map[gpu.Image]*image),
		commands:        make(map[gpu.CommandBuffer][]func() error),
		fences:          make(map[gpu.Fence]bool),
	}
}

// SetLimits replaces the limits reported by Limits.
func (d *Device) SetLimits(l gpu.Limits) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.limits = l
}

// FailOn makes the nth call (1-based, counted from now) to op fail with result.
// op is the method name, e.g. "CreatePipelineLayout".
func (d *Device) FailOn(op string, result gpu.Result, nth int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[op] = append(d.failures[op], &failure{result: result, nth: d.calls[op] + nth})
}

// FailPartialOn is FailOn for CreateBuffer and CreateImage where the failing call
// still returns a live resource handle without its allocation. For
// AllocateDescriptorSets the call succeeds but appends a null set to the result.
func (d *Device) FailPartialOn(op string, result gpu.Result, nth int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[op] = append(d.failures[op], &failure{result: result, nth: d.calls[op] + nth, partial: true})
}

// Live returns the number of objects of kind that are created and not destroyed.
func (d *Device) Live(kind Kind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live[kind])
}

// LiveTotal returns the number of live objects of every kind.
func (d *Device) LiveTotal() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, objs := range d.live {
		n += len(objs)
	}
	return n
}

func (d *Device) Created(kind Kind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created[kind]
}

func (d *Device) Destroyed(kind Kind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed[kind]
}

// Calls returns how many times op was invoked.
func (d *Device) Calls(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[op]
}

// call counts an invocation of op and returns the injected failure for it, if any.
// d.mu must be held.
func (d *Device) call(op string) *failure {
	d.calls[op]++
	n := d.calls[op]
	fs := d.failures[op]
	for i, f := range fs {
		if f.nth == n {
			d.failures[op] = append(fs[:i], fs[i+1:]...)
			return f
		}
	}
	return nil
}

// add registers a new object of kind and returns its id. d.mu must be held.
func (d *Device) add(kind Kind) uint64 {
	d.next++
	if d.live[kind] == nil {
		d.live[kind] = make(map[uint64]struct{})
	}
	d.live[kind][d.next] = struct{}{}
	d.created[kind]++
	return d.next
}

// remove unregisters id. It returns false for null or unknown ids. d.mu must be held.
func (d *Device) remove(kind Kind, id uint64) bool {
	if id == 0 {
		return false
	}
	if _, ok := d.live[kind][id]; !ok {
		return false
	}
	delete(d.live[kind], id)
	d.destroyed[kind]++
	return true
}

// isLive reports whether id is a live object of kind. d.mu must be held.
func (d *Device) isLive(kind Kind, id uint64) bool {
	_, ok := d.live[kind][id]
	return ok
}

func (d *Device) Limits() gpu.Limits {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.limits
}

func (d *Device) CreateShaderModule(code []uint32) (gpu.ShaderModule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f := d.call("CreateShaderModule"); f != nil {
		return 0, gpu.NewResultError("vkCreateShaderModule", f.result)
	}
	if len(code) == 0 {
		return 0, gpu.NewResultError("vkCreateShaderModule", gpu.ResultErrorInvalidShaderNV)
	}
	m := gpu.ShaderModule(d.add(KindShaderModule))
	d.modules[m] = append([]uint32(nil), code...)
	return m, nil
}

func (d *Device) DestroyShaderModule(module gpu.ShaderModule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.remove(KindShaderModule, uint64(module)) {
		delete(d.modules, module)
	}
}

// ModuleCode returns the bytecode a live module was created from.
func (d *Device) ModuleCode(module gpu.ShaderModule) []uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.modules[module]
}

func (d *Device) CreatePipelineLayout(info *gpu.PipelineLayoutCreateInfo) (gpu.PipelineLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f := d.call("CreatePipelineLayout"); f != nil {
		return 0, gpu.NewResultError("vkCreatePipelineLayout", f.result)
	}
	for _, l := range info.SetLayouts {
		if !d.isLive(KindDescriptorSetLayout, uint64(l)) {
			return 0, fmt.Errorf("gputest: pipeline layout references dead set layout %d", l)
		}
	}
	l := gpu.PipelineLayout(d.add(KindPipelineLayout))
	d.pipelineLayouts[l] = gpu.PipelineLayoutCreateInfo{
		SetLayouts:         append([]gpu.DescriptorSetLayout(nil), info.SetLayouts...),
		PushConstantRanges: append([]gpu.PushConstantRange(nil), info.PushConstantRanges...),
	}
	return l, nil
}

func (d *Device) DestroyPipelineLayout(layout gpu.PipelineLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.remove(KindPipelineLayout, uint64(layout)) {
		delete(d.pipelineLayouts, layout)
	}
}

// PipelineLayoutInfo returns the create info of a live pipeline layout.
func (d *Device) PipelineLayoutInfo(layout gpu.PipelineLayout) (gpu.PipelineLayoutCreateInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.pipelineLayouts[layout]
	return info, ok
}

func (d *Device) CreatePipelineCache(initialData []byte) (gpu.PipelineCache, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f := d.call("CreatePipelineCache"); f != nil {
		return 0, gpu.NewResultError("vkCreatePipelineCache", f.result)
	}
	c := gpu.PipelineCache(d.add(KindPipelineCache))
	d.caches[c] = append([]byte(nil), initialData...)
	return c, nil
}

func (d *Device) PipelineCacheData(cache gpu.PipelineCache) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.caches[cache]
	if !ok {
		return nil, gpu.NewResultError("vkGetPipelineCacheData", gpu.ResultErrorUnknown)
	}
	return append([]byte(nil), data...), nil
}

func (d *Device) DestroyPipelineCache(cache gpu.PipelineCache) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.remove(KindPipelineCache, uint64(cache)) {
		delete(d.caches, cache)
	}
}

func (d *Device) CreateGraphicsPipeline(cache gpu.PipelineCache, info *gpu.GraphicsPipelineCreateInfo) (gpu.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f := d.call("CreateGraphicsPipeline"); f != nil {
		return 0, gpu.NewResultError("vkCreateGraphicsPipelines", f.result)
	}
	if !d.isLive(KindPipelineLayout, uint64(info.Layout)) {
		return 0, fmt.Errorf("gputest: pipeline references dead layout %d", info.Layout)
	}
	if info.RenderPass == 0 {
		return 0, fmt.Errorf("gputest: pipeline without render pass")
	}
	if cache != 0 && !d.isLive(KindPipelineCache, uint64(cache)) {
		return 0, fmt.Errorf("gputest: pipeline references dead cache %d", cache)
	}
	for _, s := range info.Stages {
		if !d.isLive(KindShaderModule, uint64(s.Module)) {
			return 0, fmt.Errorf("gputest: pipeline stage references dead module %d", s.Module)
		}
	}
	p := gpu.Pipeline(d.add(KindPipeline))
	cp := *info
	cp.Stages = append([]gpu.ShaderStageInfo(nil), info.Stages...)
	cp.VertexAttributes = append([]gpu.VertexInputAttribute(nil), info.VertexAttributes...)
	cp.VertexBindings = append([]gpu.VertexInputBinding(nil), info.VertexBindings...)
	cp.BlendAttachments = append([]gpu.ColorBlendAttachment(nil), info.BlendAttachments...)
	cp.DynamicStates = append([]gpu.DynamicState(nil), info.DynamicStates...)
	d.pipelines[p] = cp
	if cache != 0 {
		d.caches[cache] = append(d.caches[cache], byte(p))
	}
	return p, nil
}

func (d *Device) DestroyPipeline(pipeline gpu.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.remove(KindPipeline, uint64(pipeline)) {
		delete(d.pipelines, pipeline)
	}
}

// PipelineInfo returns the create info of a live graphics pipeline.
func (d *Device) PipelineInfo(pipeline gpu.Pipeline) (gpu.GraphicsPipelineCreateInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.pipelines[pipeline]
	return info, ok
}

func (d *Device) CreateImageView(img gpu.Image, format gpu.Format) (gpu.ImageView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f := d.call("CreateImageView"); f != nil {
		return 0, gpu.NewResultError("vkCreateImageView", f.result)
	}
	if _, ok := d.images[img]; !ok {
		return 0, fmt.Errorf("gputest: view of unknown image %d", img)
	}
	return gpu.ImageView(d.add(KindImageView)), nil
}

func (d *Device) DestroyImageView(view gpu.ImageView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.remove(KindImageView, uint64(view))
}

func (d *Device) CreateSampler(info *gpu.SamplerCreateInfo) (gpu.Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f := d.call("CreateSampler"); f != nil {
		return 0, gpu.NewResultError("vkCreateSampler", f.result)
	}
	return gpu.Sampler(d.add(KindSampler)), nil
}

func (d *Device) DestroySampler(sampler gpu.Sampler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.remove(KindSampler, uint64(sampler))
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f := d.call("CreateFence"); f != nil {
		return 0, gpu.NewResultError("vkCreateFence", f.result)
	}
	fence := gpu.Fence(d.add(KindFence))
	d.fences[fence] = signaled
	return fence, nil
}

// WaitForFence succeeds immediately for signaled fences and times out otherwise.
func (d *Device) WaitForFence(fence gpu.Fence, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f := d.call("WaitForFence"); f != nil {
		return gpu.NewResultError("vkWaitForFences", f.result)
	}
	signaled, ok := d.fences[fence]
	if !ok {
		return gpu.NewResultError("vkWaitForFences", gpu.ResultErrorDeviceLost)
	}
	if !signaled {
		return gpu.NewResultError("vkWaitForFences", gpu.ResultTimeout)
	}
	return nil
}

func (d *Device) ResetFence(fence gpu.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f := d.call("ResetFence"); f != nil {
		return gpu.NewResultError("vkResetFences", f.result)
	}
	if _, ok := d.fences[fence]; !ok {
		return gpu.NewResultError("vkResetFences", gpu.ResultErrorDeviceLost)
	}
	d.fences[fence] = false
	return nil
}

func (d *Device) DestroyFence(fence gpu.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.remove(KindFence, uint64(fence)) {
		delete(d.fences, fence)
	}
}

// SignalFence marks fence as signaled, as the queue does when the submission it
// guards completes.
func (d *Device) SignalFence(fence gpu.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.fences[fence]; ok {
		d.fences[fence] = true
	}
}

// FenceSignaled reports the state of fence.
func (d *Device) FenceSignaled(fence gpu.Fence) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fences[fence]
}
