// Package shader loads shader bytecode, compiling WGSL sources on demand, and
// owns the device shader modules created from it.
package shader

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/anima-vk/engine/core"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
)

const (
	extSPIRV = ".spv"
	extWGSL  = ".wgsl"
)

type entry struct {
	module gpu.ShaderModule
	stale  bool
}

// Cache creates one shader module per source path and keeps it until the cache
// is disposed or the source is invalidated.
type Cache struct {
	device   gpu.Device
	files    Files
	compile  Compiler
	cacheDir string

	mu       sync.Mutex
	modules  map[string]*entry
	watcher  *fsnotify.Watcher
	watched  map[string]struct{}
	done     chan struct{}
	disposed bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithCacheDir stores compiled WGSL bytecode under dir. An empty dir disables
// the on-disk cache.
func WithCacheDir(dir string) Option {
	return func(c *Cache) {
		c.cacheDir = dir
	}
}

// WithFiles replaces the host file system.
func WithFiles(files Files) Option {
	return func(c *Cache) {
		c.files = files
	}
}

// WithCompiler replaces the WGSL compiler.
func WithCompiler(compile Compiler) Option {
	return func(c *Cache) {
		c.compile = compile
	}
}

// NewCache returns an empty cache creating modules on device.
func NewCache(device gpu.Device, opts ...Option) (*Cache, error) {
	if device == nil {
		return nil, fmt.Errorf("shader cache without device: %w", core.ErrInvalidArgument)
	}
	c := &Cache{
		device:  device,
		files:   OSFiles(),
		compile: NagaCompiler,
		modules: make(map[string]*entry),
		watched: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.files == nil || c.compile == nil {
		return nil, fmt.Errorf("shader cache without files or compiler: %w", core.ErrInvalidArgument)
	}
	return c, nil
}

// Module returns the module of the shader at path, loading it on first use or
// after it was invalidated.
func (c *Cache) Module(path string) (gpu.ShaderModule, error) {
	if path == "" {
		return 0, fmt.Errorf("empty shader path: %w", core.ErrInvalidArgument)
	}
	path = filepath.Clean(path)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return 0, core.ErrDisposed
	}

	e, ok := c.modules[path]
	if ok && !e.stale {
		return e.module, nil
	}

	code, err := c.load(path, ok)
	if err != nil {
		core.LogError("Failed to load shader '%s': %s", path, err)
		return 0, err
	}
	module, err := c.device.CreateShaderModule(code)
	if err != nil {
		core.LogError("Failed to create shader module for '%s': %s", path, err)
		return 0, fmt.Errorf("create shader module %s: %w", path, err)
	}

	if ok {
		c.device.DestroyShaderModule(e.module)
		core.LogDebug("Reloaded shader '%s'", path)
	}
	c.modules[path] = &entry{module: module}
	if c.watcher != nil {
		c.watchDir(path)
	}
	return module, nil
}

// load reads the bytecode of path. Reloads skip the on-disk cache.
func (c *Cache) load(path string, reload bool) ([]uint32, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case extSPIRV:
		data, err := c.files.ReadFile(path)
		if err != nil {
			return nil, notFound(path, err)
		}
		return Words(data)
	case extWGSL:
		return c.loadWGSL(path, reload)
	default:
		return nil, fmt.Errorf("shader %s is neither SPIR-V nor WGSL: %w", path, core.ErrInvalidArgument)
	}
}

func (c *Cache) loadWGSL(path string, reload bool) ([]uint32, error) {
	src, err := c.files.Stat(path)
	if err != nil {
		return nil, notFound(path, err)
	}

	cached := c.CachePath(path)
	if cached != "" && !reload {
		if st, err := c.files.Stat(cached); err == nil && !st.ModTime().Before(src.ModTime()) {
			if data, err := c.files.ReadFile(cached); err == nil {
				if code, err := Words(data); err == nil {
					return code, nil
				}
			}
			core.LogWarn("Ignoring unreadable shader cache '%s'", cached)
		}
	}

	source, err := c.files.ReadFile(path)
	if err != nil {
		return nil, notFound(path, err)
	}
	spirv, err := c.compile(string(source))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", path, err)
	}
	code, err := Words(spirv)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", path, err)
	}

	if cached != "" {
		if err := c.files.WriteFile(cached, spirv); err != nil {
			core.LogWarn("Failed to write shader cache '%s': %s", cached, err)
		}
	}
	core.LogDebug("Compiled shader '%s' (%d words)", path, len(code))
	return code, nil
}

// CachePath returns where the compiled bytecode of the WGSL source at path is
// stored, or "" when the on-disk cache is disabled.
func (c *Cache) CachePath(path string) string {
	if c.cacheDir == "" {
		return ""
	}
	flat := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(filepath.ToSlash(filepath.Clean(path)))
	return filepath.Join(c.cacheDir, flat+extSPIRV)
}

func notFound(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", path, core.ErrShaderNotFound)
	}
	return fmt.Errorf("read %s: %w", path, err)
}

// Invalidate marks the module of path stale. The next Module call recompiles the
// source and destroys the previous module. Unknown paths are ignored.
func (c *Cache) Invalidate(path string) {
	path = filepath.Clean(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.modules[path]; ok && !e.stale {
		e.stale = true
		core.LogDebug("Shader '%s' invalidated", path)
	}
}

// Len returns the number of cached modules.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.modules)
}

// Dispose stops the watcher and destroys every module. Bundles borrowing
// modules must be disposed first.
func (c *Cache) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.stopWatch()
	for _, e := range c.modules {
		c.device.DestroyShaderModule(e.module)
	}
	c.modules = nil
	c.disposed = true
	core.LogDebug("Shader cache disposed")
}
