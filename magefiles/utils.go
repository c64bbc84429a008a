//go:build mage

package main

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"

	"github.com/spaghettifunk/anima-vk/engine/config"
	"github.com/spaghettifunk/anima-vk/engine/renderer/pipeline"
	"github.com/spaghettifunk/anima-vk/engine/renderer/shader"
)

const defaultShaderDir = "assets/shaders"

type cmdOptions struct {
	args   []string
	stream bool
}

type cmdOption func(*cmdOptions)

func withArgs(args ...string) cmdOption {
	return func(o *cmdOptions) {
		o.args = args
	}
}

func withStream() cmdOption {
	return func(o *cmdOptions) {
		o.stream = true
	}
}

func executeCmd(command string, options ...cmdOption) (string, error) {
	opts := &cmdOptions{}
	for _, o := range options {
		o(opts)
	}

	fmt.Printf("Executing: %s %s\n", command, strings.Join(opts.args, " "))
	cmd := exec.Command(command, opts.args...)

	streamOutput := mg.Verbose() || opts.stream

	var b bytes.Buffer
	if streamOutput {
		cmd.Stdout = io.MultiWriter(&b, os.Stdout)
		cmd.Stderr = io.MultiWriter(&b, os.Stderr)
	} else {
		cmd.Stdout = &b
		cmd.Stderr = &b
	}
	err := cmd.Run()
	if err != nil {
		if !streamOutput {
			fmt.Println("... failed command output:")
			fmt.Println(b.String())
		}
		return "", fmt.Errorf("error executing %s: %w", command, err)
	}
	return b.String(), nil
}

func shaderDir() string {
	if dir := os.Getenv("ANIMA_SHADER_DIR"); dir != "" {
		return dir
	}
	return defaultShaderDir
}

// buildShaders compiles the WGSL sources under dir and returns how many were written.
func buildShaders(dir string) (int, error) {
	compiled := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".wgsl" {
			return nil
		}
		source, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		code, err := shader.CompileWGSL(string(source))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		out := strings.TrimSuffix(path, ".wgsl") + ".spv"
		if err := os.WriteFile(out, shader.Bytes(code), 0o644); err != nil {
			return err
		}
		if mg.Verbose() {
			fmt.Printf("%s -> %s\n", path, out)
		}
		compiled++
		return nil
	})
	return compiled, err
}

func checkConfigs(dir string) error {
	if path := os.Getenv("ANIMA_CONFIG"); path != "" {
		if _, err := config.Load(path); err != nil {
			return err
		}
		fmt.Printf("%s ok\n", path)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".shadercfg" {
			return nil
		}
		cfg, err := pipeline.LoadConfig(path)
		if err != nil {
			return err
		}
		for _, src := range []string{cfg.VertexShader, cfg.FragmentShader} {
			if _, err := os.Stat(src); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}
		fmt.Printf("%s ok\n", path)
		return nil
	})
}
