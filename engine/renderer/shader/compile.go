package shader

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga"

	"github.com/spaghettifunk/anima-vk/engine/core"
)

// Compiler turns shader source into SPIR-V bytes.
type Compiler func(source string) ([]byte, error)

// NagaCompiler compiles WGSL with naga.
func NagaCompiler(source string) ([]byte, error) {
	return naga.Compile(source)
}

// CompileWGSL compiles WGSL source to SPIR-V words.
func CompileWGSL(source string) ([]uint32, error) {
	spirv, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to compile shader: %w", err)
	}
	return Words(spirv)
}

// Words converts little-endian SPIR-V bytes to words. The byte count must be a
// positive multiple of 4.
func Words(spirv []byte) ([]uint32, error) {
	if len(spirv) == 0 || len(spirv)%4 != 0 {
		return nil, fmt.Errorf("spir-v bytecode of %d bytes: %w", len(spirv), core.ErrInvalidArgument)
	}
	code := make([]uint32, len(spirv)/4)
	for i := range code {
		code[i] = binary.LittleEndian.Uint32(spirv[i*4:])
	}
	return code, nil
}

// Bytes is the inverse of Words.
func Bytes(code []uint32) []byte {
	out := make([]byte, len(code)*4)
	for i, w := range code {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}
