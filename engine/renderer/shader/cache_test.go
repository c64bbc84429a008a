package shader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/anima-vk/engine/core"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu/gputest"
)

var fakeSPIRV = []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00}

type countingCompiler struct {
	calls  int
	output []byte
	err    error
}

func (c *countingCompiler) compile(string) ([]byte, error) {
	c.calls++
	return c.output, c.err
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestModuleLoadsSPIRV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "basic.vert.spv")
	writeFile(t, path, fakeSPIRV)

	dev := gputest.New()
	c, err := NewCache(dev)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Dispose()

	m, err := c.Module(path)
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	again, err := c.Module(filepath.Join(dir, ".", "basic.vert.spv"))
	if err != nil {
		t.Fatal(err)
	}
	if again != m {
		t.Errorf("second lookup returned module %d, want cached %d", again, m)
	}
	if got := dev.Calls("CreateShaderModule"); got != 1 {
		t.Errorf("CreateShaderModule called %d times, want 1", got)
	}
	code := dev.ModuleCode(m)
	if len(code) != 2 || code[0] != 0x07230203 {
		t.Errorf("module code = %#x", code)
	}
}

func TestModuleErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "odd.spv"), fakeSPIRV[:6])
	writeFile(t, filepath.Join(dir, "empty.spv"), nil)
	writeFile(t, filepath.Join(dir, "shader.glsl"), []byte("void main() {}"))

	tests := []struct {
		name string
		path string
		want error
	}{
		{"missing spir-v", filepath.Join(dir, "missing.spv"), core.ErrShaderNotFound},
		{"missing wgsl", filepath.Join(dir, "missing.wgsl"), core.ErrShaderNotFound},
		{"truncated bytecode", filepath.Join(dir, "odd.spv"), core.ErrInvalidArgument},
		{"empty bytecode", filepath.Join(dir, "empty.spv"), core.ErrInvalidArgument},
		{"unsupported source", filepath.Join(dir, "shader.glsl"), core.ErrInvalidArgument},
		{"empty path", "", core.ErrInvalidArgument},
	}

	dev := gputest.New()
	c, err := NewCache(dev)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Dispose()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Module(tt.path); !errors.Is(err, tt.want) {
				t.Errorf("Module(%q) = %v, want %v", tt.path, err, tt.want)
			}
		})
	}
	if got := dev.Live(gputest.KindShaderModule); got != 0 {
		t.Errorf("%d modules created for failing loads", got)
	}
}

func TestModuleCompilesWGSLThroughDiskCache(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	src := filepath.Join(dir, "shaders", "basic.wgsl")
	writeFile(t, src, []byte("@vertex fn main() {}"))

	comp := &countingCompiler{output: fakeSPIRV}
	dev := gputest.New()
	c, err := NewCache(dev, WithCacheDir(cacheDir), WithCompiler(comp.compile))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Module(src); err != nil {
		t.Fatalf("Module: %v", err)
	}
	if comp.calls != 1 {
		t.Fatalf("compiler called %d times, want 1", comp.calls)
	}
	cached, err := os.ReadFile(c.CachePath(src))
	if err != nil {
		t.Fatalf("cache file not written: %v", err)
	}
	if string(cached) != string(fakeSPIRV) {
		t.Errorf("cache file = %x, want %x", cached, fakeSPIRV)
	}
	c.Dispose()

	// A fresh cache reuses the bytecode while it is not older than the source.
	c, err = NewCache(dev, WithCacheDir(cacheDir), WithCompiler(comp.compile))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Module(src); err != nil {
		t.Fatal(err)
	}
	if comp.calls != 1 {
		t.Errorf("compiler called again despite a fresh cache file")
	}
	c.Dispose()

	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(src, later, later); err != nil {
		t.Fatal(err)
	}
	c, err = NewCache(dev, WithCacheDir(cacheDir), WithCompiler(comp.compile))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Dispose()
	if _, err := c.Module(src); err != nil {
		t.Fatal(err)
	}
	if comp.calls != 2 {
		t.Errorf("compiler calls = %d, want a recompile of the newer source", comp.calls)
	}
}

func TestModuleCompilerFailure(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.wgsl")
	writeFile(t, src, []byte("fn"))

	tests := []struct {
		name string
		comp *countingCompiler
	}{
		{"compile error", &countingCompiler{err: errors.New("expected identifier")}},
		{"misaligned output", &countingCompiler{output: []byte{1, 2, 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := gputest.New()
			c, err := NewCache(dev, WithCompiler(tt.comp.compile))
			if err != nil {
				t.Fatal(err)
			}
			defer c.Dispose()
			if _, err := c.Module(src); err == nil {
				t.Fatal("Module succeeded despite compiler failure")
			}
			if c.Len() != 0 {
				t.Error("failed load was cached")
			}
		})
	}
}

func TestInvalidateRecompiles(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "basic.wgsl")
	writeFile(t, src, []byte("@vertex fn main() {}"))

	comp := &countingCompiler{output: fakeSPIRV}
	dev := gputest.New()
	c, err := NewCache(dev, WithCacheDir(filepath.Join(dir, "cache")), WithCompiler(comp.compile))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Dispose()

	first, err := c.Module(src)
	if err != nil {
		t.Fatal(err)
	}
	c.Invalidate(filepath.Join(dir, "unknown.wgsl"))
	c.Invalidate(src)
	second, err := c.Module(src)
	if err != nil {
		t.Fatal(err)
	}
	if second == first {
		t.Error("invalidated shader returned the old module")
	}
	if comp.calls != 2 {
		t.Errorf("compiler calls = %d, want 2", comp.calls)
	}
	if got := dev.Live(gputest.KindShaderModule); got != 1 {
		t.Errorf("%d modules live, previous module not destroyed", got)
	}
}

func TestHandleEvent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "basic.spv")
	writeFile(t, src, fakeSPIRV)

	dev := gputest.New()
	c, err := NewCache(dev)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Dispose()
	if _, err := c.Module(src); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		op    fsnotify.Op
		stale bool
	}{
		{fsnotify.Chmod, false},
		{fsnotify.Remove, false},
		{fsnotify.Write, true},
		{fsnotify.Create, true},
		{fsnotify.Rename, true},
	}
	for _, tt := range tests {
		c.modules[src].stale = false
		c.handleEvent(fsnotify.Event{Name: src, Op: tt.op})
		if got := c.modules[src].stale; got != tt.stale {
			t.Errorf("%s event: stale = %v, want %v", tt.op, got, tt.stale)
		}
	}
}

func TestWatchAndDispose(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "basic.spv")
	writeFile(t, src, fakeSPIRV)

	dev := gputest.New()
	c, err := NewCache(dev)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Module(src); err != nil {
		t.Fatal(err)
	}
	if err := c.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if err := c.Watch(); err != nil {
		t.Fatalf("second Watch: %v", err)
	}
	if _, ok := c.watched[dir]; !ok {
		t.Errorf("directory %s not watched", dir)
	}

	c.Dispose()
	c.Dispose()
	if got := dev.Live(gputest.KindShaderModule); got != 0 {
		t.Errorf("%d modules live after Dispose", got)
	}
	if _, err := c.Module(src); !errors.Is(err, core.ErrDisposed) {
		t.Errorf("Module after Dispose = %v, want ErrDisposed", err)
	}
	if err := c.Watch(); !errors.Is(err, core.ErrDisposed) {
		t.Errorf("Watch after Dispose = %v, want ErrDisposed", err)
	}
}
