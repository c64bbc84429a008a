//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Shaders compiles every .wgsl file under the shader directory to a .spv file
// next to it. The directory is $ANIMA_SHADER_DIR or assets/shaders.
func (Build) Shaders() error {
	dir := shaderDir()
	n, err := buildShaders(dir)
	if err != nil {
		return err
	}
	fmt.Printf("Compiled %d shaders in %s\n", n, dir)
	return nil
}

// Check validates every .shadercfg file under the shader directory and the
// renderer configuration in $ANIMA_CONFIG, when set.
func (Build) Check() error {
	mg.Deps(Build.Shaders)
	return checkConfigs(shaderDir())
}

// Vet runs go vet on the module.
func (Build) Vet() error {
	_, err := executeCmd("go", withArgs("vet", "./..."), withStream())
	return err
}
