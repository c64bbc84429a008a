package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/anima-vk/engine/core"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/anima-vk/engine/renderer/shader"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata", "world.shadercfg"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Name != "builtin.world" {
		t.Errorf("Name = %q", cfg.Name)
	}
	wantShader := filepath.Join("testdata", "shaders", "world.wgsl")
	if cfg.VertexShader != wantShader || cfg.FragmentShader != wantShader {
		t.Errorf("shaders = %q, %q, want %q", cfg.VertexShader, cfg.FragmentShader, wantShader)
	}
	if cfg.VertexEntry != "vs_main" || cfg.FragmentEntry != "fs_main" {
		t.Errorf("entries = %q, %q", cfg.VertexEntry, cfg.FragmentEntry)
	}
	if len(cfg.Attributes) != 2 || cfg.Attributes[0].Format != gpu.FormatR32G32B32Sfloat || cfg.Attributes[1].Format != gpu.FormatR32G32Sfloat {
		t.Errorf("attributes = %+v", cfg.Attributes)
	}

	if len(cfg.Sets[0]) != 1 {
		t.Fatalf("set 0 = %+v", cfg.Sets[0])
	}
	if b := cfg.Sets[0][0]; b.Type != gpu.DescriptorTypeUniformBuffer || b.Count != 1 || b.Stages != gpu.ShaderStageVertex|gpu.ShaderStageFragment {
		t.Errorf("set 0 binding = %+v", b)
	}
	if len(cfg.Sets[1]) != 1 {
		t.Fatalf("set 1 = %+v", cfg.Sets[1])
	}
	if b := cfg.Sets[1][0]; b.Type != gpu.DescriptorTypeCombinedImageSampler || b.Count != 16 || b.Flags != gpu.DescriptorBindingPartiallyBound {
		t.Errorf("set 1 binding = %+v", b)
	}

	if len(cfg.PushConstants) != 1 || cfg.PushConstants[0] != (gpu.PushConstantRange{Stages: gpu.ShaderStageVertex, Size: 64}) {
		t.Errorf("push constants = %+v", cfg.PushConstants)
	}
	if cfg.Topology != gpu.PrimitiveTopologyTriangleList || cfg.PolygonMode != gpu.PolygonModeFill {
		t.Errorf("topology %d polygon mode %d, want defaults", cfg.Topology, cfg.PolygonMode)
	}
	if cfg.CullMode != gpu.CullModeBack || !cfg.DepthTest || !cfg.DepthWrite || cfg.DepthCompare != gpu.CompareOpLessOrEqual || !cfg.DepthCompareSet {
		t.Errorf("state = cull %d depth %v/%v compare %d", cfg.CullMode, cfg.DepthTest, cfg.DepthWrite, cfg.DepthCompare)
	}
	if len(cfg.BlendAttachments) != 1 || cfg.BlendAttachments[0] != AlphaBlend() {
		t.Errorf("blend = %+v, want alpha", cfg.BlendAttachments)
	}
	if cfg.RenderPass != 0 {
		t.Error("LoadConfig set a render pass")
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", "vertex = \"a.spv\"\nfragment = \"b.spv\"\ncolour = \"red\"\n"},
		{"missing fragment", "vertex = \"a.spv\"\n"},
		{"unknown format", "vertex = \"a.spv\"\nfragment = \"b.spv\"\n[[attributes]]\nlocation = 0\nformat = \"rgb\"\n"},
		{"unknown descriptor type", "vertex = \"a.spv\"\nfragment = \"b.spv\"\n[[sets]]\n[[sets.bindings]]\nbinding = 0\ntype = \"texture\"\nstages = [\"fragment\"]\n"},
		{"unknown stage", "vertex = \"a.spv\"\nfragment = \"b.spv\"\n[[sets]]\n[[sets.bindings]]\nbinding = 0\ntype = \"uniform_buffer\"\nstages = [\"pixel\"]\n"},
		{"too many sets", "vertex = \"a.spv\"\nfragment = \"b.spv\"\n[[sets]]\n[[sets]]\n[[sets]]\n"},
		{"unknown cull mode", "vertex = \"a.spv\"\nfragment = \"b.spv\"\n[state]\ncull_mode = \"sideways\"\n"},
		{"unknown blend", "vertex = \"a.spv\"\nfragment = \"b.spv\"\n[state]\nblend = \"additive\"\n"},
	}
	dir := t.TempDir()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "bad.shadercfg")
			if err := os.WriteFile(path, []byte(tt.doc), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadConfig(path); !errors.Is(err, core.ErrInvalidArgument) {
				t.Errorf("LoadConfig = %v, want ErrInvalidArgument", err)
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(dir, "missing.shadercfg")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadConfig of a missing file = %v", err)
	}
}

func TestLoadConfigDepthCompareNever(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never.shadercfg")
	doc := "vertex = \"a.spv\"\nfragment = \"b.spv\"\n[state]\ndepth_test = true\ndepth_compare = \"never\"\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg.RenderPass = testRenderPass

	dev := gputest.New()
	b, err := NewBundle(dev, newFakeShaders(dev), 0, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Dispose()
	if info, _ := dev.PipelineInfo(b.GraphicsPipeline()); info.DepthCompare != gpu.CompareOpNever {
		t.Errorf("depth compare = %d, want never", info.DepthCompare)
	}
}

// A loaded .shadercfg builds a bundle with modules from the shader cache.
func TestLoadConfigBuildsBundle(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata", "world.shadercfg"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.RenderPass = testRenderPass

	dev := gputest.New()
	compiles := 0
	shaders, err := shader.NewCache(dev, shader.WithCompiler(func(string) ([]byte, error) {
		compiles++
		return []byte{0x03, 0x02, 0x23, 0x07}, nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer shaders.Dispose()

	b, err := NewBundle(dev, shaders, 0, cfg)
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	defer b.Dispose()

	if compiles != 1 {
		t.Errorf("shared WGSL source compiled %d times, want 1", compiles)
	}
	info, _ := dev.PipelineInfo(b.GraphicsPipeline())
	if info.Stages[0].Module != info.Stages[1].Module {
		t.Error("vertex and fragment stages of one source use different modules")
	}
	if info.Stages[0].Entry != "vs_main" || info.Stages[1].Entry != "fs_main" {
		t.Errorf("entries = %q, %q", info.Stages[0].Entry, info.Stages[1].Entry)
	}
}
