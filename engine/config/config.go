// Package config loads the renderer configuration from TOML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/anima-vk/engine/core"
	"github.com/spaghettifunk/anima-vk/engine/renderer/descriptor"
)

type Config struct {
	Frames      Frames      `toml:"frames"`
	Descriptors Descriptors `toml:"descriptors"`
	Shaders     Shaders     `toml:"shaders"`
	Log         Log         `toml:"log"`
}

type Frames struct {
	InFlight int `toml:"in_flight"`
}

// Descriptors sizes every descriptor pool the engine creates.
type Descriptors struct {
	MaxSets               uint32 `toml:"max_sets"`
	UniformBuffers        uint32 `toml:"uniform_buffers"`
	CombinedImageSamplers uint32 `toml:"combined_image_samplers"`
	StorageBuffers        uint32 `toml:"storage_buffers"`
	StorageImages         uint32 `toml:"storage_images"`
	UpdateAfterBind       bool   `toml:"update_after_bind"`
	GrowOnExhaustion      bool   `toml:"grow_on_exhaustion"`
}

type Shaders struct {
	// CacheDir holds compiled SPIR-V. Empty disables the disk cache.
	CacheDir string `toml:"cache_dir"`
	Watch    bool   `toml:"watch"`
}

type Log struct {
	Level string `toml:"level"`
}

// Default returns the configuration used for keys a file leaves out.
func Default() *Config {
	d := descriptor.DefaultConfig()
	return &Config{
		Frames: Frames{InFlight: d.FramesInFlight},
		Descriptors: Descriptors{
			MaxSets:               d.MaxSets,
			UniformBuffers:        d.UniformBuffers,
			CombinedImageSamplers: d.CombinedImageSamplers,
			StorageBuffers:        d.StorageBuffers,
			StorageImages:         d.StorageImages,
			UpdateAfterBind:       d.UpdateAfterBind,
			GrowOnExhaustion:      d.GrowOnExhaustion,
		},
		Shaders: Shaders{CacheDir: ".shadercache"},
		Log:     Log{Level: "info"},
	}
}

// Load reads path over the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a TOML document over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("%s: %w", strict.String(), core.ErrInvalidArgument)
		}
		var decode *toml.DecodeError
		if errors.As(err, &decode) {
			row, col := decode.Position()
			return nil, fmt.Errorf("line %d column %d: %s: %w", row, col, decode.Error(), core.ErrInvalidArgument)
		}
		return nil, fmt.Errorf("%s: %w", err, core.ErrInvalidArgument)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values a descriptor engine or logger would reject.
func (c *Config) Validate() error {
	if c.Frames.InFlight <= 0 {
		return fmt.Errorf("frames.in_flight must be positive, got %d: %w", c.Frames.InFlight, core.ErrInvalidArgument)
	}
	if c.Descriptors.MaxSets == 0 {
		return fmt.Errorf("descriptors.max_sets must be positive: %w", core.ErrInvalidArgument)
	}
	d := c.Descriptors
	if d.UniformBuffers+d.CombinedImageSamplers+d.StorageBuffers+d.StorageImages == 0 {
		return fmt.Errorf("descriptors: every pool size is zero: %w", core.ErrInvalidArgument)
	}
	if c.Shaders.Watch && c.Shaders.CacheDir == "" {
		core.LogDebug("Shader watching enabled without a disk cache")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("log.level %q: %w", c.Log.Level, core.ErrInvalidArgument)
	}
	return nil
}

// Apply sets the process log level.
func (c *Config) Apply() error {
	return core.SetLogLevel(c.Log.Level)
}

// DescriptorConfig returns the descriptor engine configuration.
func (c *Config) DescriptorConfig() descriptor.Config {
	return descriptor.Config{
		FramesInFlight:        c.Frames.InFlight,
		MaxSets:               c.Descriptors.MaxSets,
		UniformBuffers:        c.Descriptors.UniformBuffers,
		CombinedImageSamplers: c.Descriptors.CombinedImageSamplers,
		StorageBuffers:        c.Descriptors.StorageBuffers,
		StorageImages:         c.Descriptors.StorageImages,
		UpdateAfterBind:       c.Descriptors.UpdateAfterBind,
		GrowOnExhaustion:      c.Descriptors.GrowOnExhaustion,
	}
}
