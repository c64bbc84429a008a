package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/anima-vk/engine/core"
	"github.com/spaghettifunk/anima-vk/engine/renderer/descriptor"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/anima-vk/engine/renderer/shader"
)

type fakeShaders struct {
	dev     *gputest.Device
	modules map[string]gpu.ShaderModule
	calls   int
	err     error
}

func newFakeShaders(dev *gputest.Device) *fakeShaders {
	return &fakeShaders{dev: dev, modules: make(map[string]gpu.ShaderModule)}
}

func (f *fakeShaders) Module(path string) (gpu.ShaderModule, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	if m, ok := f.modules[path]; ok {
		return m, nil
	}
	m, err := f.dev.CreateShaderModule([]uint32{0x07230203})
	if err != nil {
		return 0, err
	}
	f.modules[path] = m
	return m, nil
}

const testRenderPass gpu.RenderPass = 7

func worldConfig() *Config {
	return &Config{
		Name:           "world",
		VertexShader:   "world.vert.spv",
		FragmentShader: "world.frag.spv",
		Attributes: []VertexAttribute{
			{Location: 0, Format: gpu.FormatR32G32B32Sfloat},
			{Location: 1, Format: gpu.FormatR32G32Sfloat},
		},
		Sets: [MaxSets][]descriptor.Binding{
			{{Binding: 0, Type: gpu.DescriptorTypeUniformBuffer, Count: 1, Stages: gpu.ShaderStageVertex}},
			{{Binding: 0, Type: gpu.DescriptorTypeCombinedImageSampler, Count: 1, Stages: gpu.ShaderStageFragment}},
		},
		PushConstants: []gpu.PushConstantRange{{Stages: gpu.ShaderStageVertex, Offset: 0, Size: 64}},
		RenderPass:    testRenderPass,
		Topology:      gpu.PrimitiveTopologyTriangleList,
		CullMode:      gpu.CullModeBack,
		DepthTest:     true,
		DepthWrite:    true,
	}
}

func TestNewBundle(t *testing.T) {
	dev := gputest.New()
	shaders := newFakeShaders(dev)
	cache, err := dev.CreatePipelineCache(nil)
	if err != nil {
		t.Fatal(err)
	}

	b, err := NewBundle(dev, shaders, cache, worldConfig())
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}

	set0, err := b.DescriptorSetLayout(0)
	if err != nil || set0 == 0 {
		t.Fatalf("DescriptorSetLayout(0) = %d, %v", set0, err)
	}
	set1, err := b.DescriptorSetLayout(1)
	if err != nil || set1 == 0 {
		t.Fatalf("DescriptorSetLayout(1) = %d, %v", set1, err)
	}

	layout, ok := dev.PipelineLayoutInfo(b.PipelineLayout())
	if !ok {
		t.Fatal("pipeline layout is not live")
	}
	if len(layout.SetLayouts) != 2 || layout.SetLayouts[0] != set0 || layout.SetLayouts[1] != set1 {
		t.Errorf("pipeline layout sets = %v, want [%d %d]", layout.SetLayouts, set0, set1)
	}
	if len(layout.PushConstantRanges) != 1 || layout.PushConstantRanges[0].Size != 64 {
		t.Errorf("push constants = %+v", layout.PushConstantRanges)
	}

	info, ok := dev.PipelineInfo(b.GraphicsPipeline())
	if !ok {
		t.Fatal("pipeline is not live")
	}
	if info.RenderPass != testRenderPass || info.Layout != b.PipelineLayout() {
		t.Errorf("pipeline render pass %d layout %d", info.RenderPass, info.Layout)
	}
	if len(info.Stages) != 2 || info.Stages[0].Entry != DefaultEntry || info.Stages[1].Stage != gpu.ShaderStageFragment {
		t.Errorf("stages = %+v", info.Stages)
	}
	if len(info.VertexBindings) != 1 || info.VertexBindings[0].Stride != 20 {
		t.Errorf("vertex bindings = %+v, want stride 20", info.VertexBindings)
	}
	if len(info.VertexAttributes) != 2 || info.VertexAttributes[1].Offset != 12 {
		t.Errorf("vertex attributes = %+v", info.VertexAttributes)
	}
	if info.DepthCompare != gpu.CompareOpLess {
		t.Errorf("depth compare = %d, want less", info.DepthCompare)
	}
	if len(info.BlendAttachments) != 1 || info.BlendAttachments[0].BlendEnable || info.BlendAttachments[0].WriteMask != gpu.ColorComponentAll {
		t.Errorf("blend attachments = %+v, want one opaque attachment", info.BlendAttachments)
	}
	if len(info.DynamicStates) != 2 || info.DynamicStates[0] != gpu.DynamicStateViewport || info.DynamicStates[1] != gpu.DynamicStateScissor {
		t.Errorf("dynamic states = %v", info.DynamicStates)
	}
	if data, _ := dev.PipelineCacheData(cache); len(data) == 0 {
		t.Error("pipeline cache was not used")
	}

	b.Dispose()
	b.Dispose()
	for _, k := range []gputest.Kind{gputest.KindDescriptorSetLayout, gputest.KindPipelineLayout, gputest.KindPipeline} {
		if got := dev.Live(k); got != 0 {
			t.Errorf("%d %s live after Dispose", got, k)
		}
	}
	if got := dev.Live(gputest.KindShaderModule); got != 2 {
		t.Errorf("%d shader modules live, Dispose must not touch borrowed modules", got)
	}
}

func TestNewBundleEmptySet(t *testing.T) {
	dev := gputest.New()
	cfg := worldConfig()
	cfg.Sets[1] = nil

	b, err := NewBundle(dev, newFakeShaders(dev), 0, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Dispose()

	if l, _ := b.DescriptorSetLayout(1); l != 0 {
		t.Errorf("empty set has layout %d", l)
	}
	layout, _ := dev.PipelineLayoutInfo(b.PipelineLayout())
	if len(layout.SetLayouts) != 1 {
		t.Errorf("pipeline layout has %d set layouts, want 1", len(layout.SetLayouts))
	}
}

func TestDescriptorSetLayoutIndexOutOfRange(t *testing.T) {
	dev := gputest.New()
	b, err := NewBundle(dev, newFakeShaders(dev), 0, worldConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Dispose()

	for _, i := range []int{-1, MaxSets, 5} {
		if _, err := b.DescriptorSetLayout(i); !errors.Is(err, core.ErrInvalidArgument) {
			t.Errorf("DescriptorSetLayout(%d) = %v, want ErrInvalidArgument", i, err)
		}
	}
}

// Every failure after the shaders are resolved leaves no bundle object alive.
func TestNewBundleIsAtomic(t *testing.T) {
	tests := []struct {
		name string
		op   string
		nth  int
	}{
		{"first set layout", "CreateDescriptorSetLayout", 1},
		{"second set layout", "CreateDescriptorSetLayout", 2},
		{"pipeline layout", "CreatePipelineLayout", 1},
		{"graphics pipeline", "CreateGraphicsPipeline", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := gputest.New()
			dev.FailOn(tt.op, gpu.ResultErrorOutOfDeviceMemory, tt.nth)

			b, err := NewBundle(dev, newFakeShaders(dev), 0, worldConfig())
			if err == nil {
				b.Dispose()
				t.Fatal("NewBundle succeeded despite injected failure")
			}
			var re *gpu.ResultError
			if !errors.As(err, &re) || re.Result != gpu.ResultErrorOutOfDeviceMemory {
				t.Errorf("error %v does not carry the device result", err)
			}
			for _, k := range []gputest.Kind{gputest.KindDescriptorSetLayout, gputest.KindPipelineLayout, gputest.KindPipeline} {
				if got := dev.Live(k); got != 0 {
					t.Errorf("%d %s leaked", got, k)
				}
			}
			if got := dev.Live(gputest.KindShaderModule); got != 2 {
				t.Errorf("%d shader modules live, failure must not destroy borrowed modules", got)
			}
		})
	}
}

func TestNewBundleRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"null render pass", func(c *Config) { c.RenderPass = 0 }},
		{"no vertex shader", func(c *Config) { c.VertexShader = "" }},
		{"no fragment shader", func(c *Config) { c.FragmentShader = "" }},
		{"undefined attribute format", func(c *Config) { c.Attributes[0].Format = gpu.FormatUndefined }},
		{"duplicate attribute location", func(c *Config) { c.Attributes[1].Location = 0 }},
		{"too many push constants", func(c *Config) {
			c.PushConstants = make([]gpu.PushConstantRange, MaxPushConstantRanges+1)
			for i := range c.PushConstants {
				c.PushConstants[i] = gpu.PushConstantRange{Stages: gpu.ShaderStageVertex, Size: 4}
			}
		}},
		{"push constants past the limit", func(c *Config) { c.PushConstants[0].Size = 256 }},
		{"misaligned push constants", func(c *Config) { c.PushConstants[0].Offset = 2 }},
		{"invalid binding", func(c *Config) { c.Sets[0][0].Count = 0 }},
		{"invalid binding in set 1", func(c *Config) { c.Sets[1][0].Stages = 0 }},
		{"set 1 without set 0", func(c *Config) { c.Sets[0] = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := gputest.New()
			shaders := newFakeShaders(dev)
			cfg := worldConfig()
			tt.mutate(cfg)

			if _, err := NewBundle(dev, shaders, 0, cfg); !errors.Is(err, core.ErrInvalidArgument) {
				t.Fatalf("error = %v, want ErrInvalidArgument", err)
			}
			if shaders.calls != 0 {
				t.Errorf("%d shader lookups before the config was rejected", shaders.calls)
			}
			if got := dev.LiveTotal(); got != 0 {
				t.Errorf("%d device objects created for a rejected config", got)
			}
		})
	}
}

func TestNewBundleShaderFailure(t *testing.T) {
	dev := gputest.New()
	shaders := newFakeShaders(dev)
	shaders.err = core.ErrShaderNotFound

	if _, err := NewBundle(dev, shaders, 0, worldConfig()); !errors.Is(err, core.ErrShaderNotFound) {
		t.Fatalf("error = %v, want ErrShaderNotFound", err)
	}
	if got := dev.LiveTotal(); got != 0 {
		t.Errorf("%d objects created before the shaders resolved", got)
	}
}

// The vertex module resolves, the fragment source does not exist.
func TestNewBundleMissingFragmentShader(t *testing.T) {
	dir := t.TempDir()
	vertex := filepath.Join(dir, "world.vert.spv")
	if err := os.WriteFile(vertex, shader.Bytes([]uint32{0x07230203, 0x00010000}), 0o644); err != nil {
		t.Fatal(err)
	}

	dev := gputest.New()
	shaders, err := shader.NewCache(dev)
	if err != nil {
		t.Fatal(err)
	}
	defer shaders.Dispose()

	cfg := worldConfig()
	cfg.VertexShader = vertex
	cfg.FragmentShader = filepath.Join(dir, "world.frag.spv")

	if _, err := NewBundle(dev, shaders, 0, cfg); !errors.Is(err, core.ErrShaderNotFound) {
		t.Fatalf("error = %v, want ErrShaderNotFound", err)
	}
	for _, k := range []gputest.Kind{gputest.KindDescriptorSetLayout, gputest.KindPipelineLayout, gputest.KindPipeline} {
		if got := dev.Live(k); got != 0 {
			t.Errorf("%d %s live after a missing fragment shader", got, k)
		}
	}
	if got := dev.Live(gputest.KindShaderModule); got != 1 {
		t.Errorf("%d shader modules live, want the cached vertex module", got)
	}
}

func TestDepthCompare(t *testing.T) {
	tests := []struct {
		name string
		set  bool
		op   gpu.CompareOp
		want gpu.CompareOp
	}{
		{"unset defaults to less", false, gpu.CompareOpNever, gpu.CompareOpLess},
		{"explicit never", true, gpu.CompareOpNever, gpu.CompareOpNever},
		{"explicit greater", true, gpu.CompareOpGreater, gpu.CompareOpGreater},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := gputest.New()
			cfg := worldConfig()
			cfg.DepthCompare, cfg.DepthCompareSet = tt.op, tt.set

			b, err := NewBundle(dev, newFakeShaders(dev), 0, cfg)
			if err != nil {
				t.Fatal(err)
			}
			defer b.Dispose()
			info, _ := dev.PipelineInfo(b.GraphicsPipeline())
			if info.DepthCompare != tt.want {
				t.Errorf("depth compare = %d, want %d", info.DepthCompare, tt.want)
			}
		})
	}
}

func TestBundleIDsAreUnique(t *testing.T) {
	dev := gputest.New()
	shaders := newFakeShaders(dev)
	a, err := NewBundle(dev, shaders, 0, worldConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Dispose()
	b, err := NewBundle(dev, shaders, 0, worldConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Dispose()

	if a.ID() == b.ID() {
		t.Errorf("two bundles share id %s", a.ID())
	}
	if a.GraphicsPipeline() == b.GraphicsPipeline() {
		t.Error("two bundles share a pipeline")
	}
}
