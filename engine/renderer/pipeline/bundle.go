// Package pipeline builds graphics pipelines together with the descriptor set
// layouts and pipeline layout they are created against.
package pipeline

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-vk/engine/core"
	"github.com/spaghettifunk/anima-vk/engine/renderer/descriptor"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
)

// ShaderSource resolves shader paths to modules it keeps ownership of.
type ShaderSource interface {
	Module(path string) (gpu.ShaderModule, error)
}

// Bundle owns a graphics pipeline, its pipeline layout and its descriptor set
// layouts. Shader modules are borrowed from the ShaderSource.
type Bundle struct {
	id     uuid.UUID
	name   string
	device gpu.Device

	setLayouts [MaxSets]gpu.DescriptorSetLayout
	layout     gpu.PipelineLayout
	pipeline   gpu.Pipeline
	disposed   bool
}

// NewBundle creates every object of the bundle or none of them: on failure the
// objects created by this call are destroyed before the error is returned.
func NewBundle(device gpu.Device, shaders ShaderSource, cache gpu.PipelineCache, cfg *Config) (*Bundle, error) {
	if device == nil || shaders == nil || cfg == nil {
		return nil, fmt.Errorf("pipeline bundle needs a device, shaders and a config: %w", core.ErrInvalidArgument)
	}
	if err := cfg.validate(device.Limits()); err != nil {
		return nil, err
	}

	vs, err := shaders.Module(cfg.VertexShader)
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: vertex shader: %w", cfg.Name, err)
	}
	fs, err := shaders.Module(cfg.FragmentShader)
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: fragment shader: %w", cfg.Name, err)
	}

	b := &Bundle{
		id:     uuid.New(),
		name:   cfg.Name,
		device: device,
	}
	if err := b.build(cfg, cache, vs, fs); err != nil {
		b.destroy()
		core.LogError("Failed to create pipeline '%s': %s", cfg.Name, err)
		return nil, err
	}
	core.LogDebug("Pipeline '%s' created (%s)", b.name, b.id)
	return b, nil
}

func (b *Bundle) build(cfg *Config, cache gpu.PipelineCache, vs, fs gpu.ShaderModule) error {
	var layouts []gpu.DescriptorSetLayout
	for i, bindings := range cfg.Sets {
		if len(bindings) == 0 {
			continue
		}
		info, err := descriptor.LayoutCreateInfo(bindings)
		if err != nil {
			return fmt.Errorf("pipeline %q: set %d: %w", cfg.Name, i, err)
		}
		layout, err := b.device.CreateDescriptorSetLayout(info)
		if err != nil {
			return fmt.Errorf("pipeline %q: set %d layout: %w", cfg.Name, i, err)
		}
		b.setLayouts[i] = layout
		layouts = append(layouts, layout)
	}

	layout, err := b.device.CreatePipelineLayout(&gpu.PipelineLayoutCreateInfo{
		SetLayouts:         layouts,
		PushConstantRanges: cfg.PushConstants,
	})
	if err != nil {
		return fmt.Errorf("pipeline %q: pipeline layout: %w", cfg.Name, err)
	}
	b.layout = layout

	pipeline, err := b.device.CreateGraphicsPipeline(cache, cfg.createInfo(vs, fs, layout))
	if err != nil {
		return fmt.Errorf("pipeline %q: graphics pipeline: %w", cfg.Name, err)
	}
	b.pipeline = pipeline
	return nil
}

// destroy releases whatever has been created, in reverse creation order.
func (b *Bundle) destroy() {
	if b.pipeline != 0 {
		b.device.DestroyPipeline(b.pipeline)
		b.pipeline = 0
	}
	if b.layout != 0 {
		b.device.DestroyPipelineLayout(b.layout)
		b.layout = 0
	}
	for i := len(b.setLayouts) - 1; i >= 0; i-- {
		if b.setLayouts[i] != 0 {
			b.device.DestroyDescriptorSetLayout(b.setLayouts[i])
			b.setLayouts[i] = 0
		}
	}
}

// ID identifies the bundle in logs.
func (b *Bundle) ID() uuid.UUID {
	return b.id
}

func (b *Bundle) Name() string {
	return b.name
}

func (b *Bundle) GraphicsPipeline() gpu.Pipeline {
	return b.pipeline
}

func (b *Bundle) PipelineLayout() gpu.PipelineLayout {
	return b.layout
}

// DescriptorSetLayout returns the layout of set index, null when the set was
// declared empty.
func (b *Bundle) DescriptorSetLayout(index int) (gpu.DescriptorSetLayout, error) {
	if index < 0 || index >= MaxSets {
		return 0, fmt.Errorf("descriptor set index %d outside [0, %d): %w", index, MaxSets, core.ErrInvalidArgument)
	}
	return b.setLayouts[index], nil
}

// Dispose destroys the pipeline, the pipeline layout and the set layouts. Shader
// modules are left to their cache. Calling it again does nothing.
func (b *Bundle) Dispose() {
	if b == nil || b.disposed {
		return
	}
	b.destroy()
	b.disposed = true
	core.LogDebug("Pipeline '%s' destroyed (%s)", b.name, b.id)
}
