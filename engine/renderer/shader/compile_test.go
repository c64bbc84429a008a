package shader

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/anima-vk/engine/core"
)

const spirvMagic = 0x07230203

func TestWords(t *testing.T) {
	code, err := Words([]byte{0x03, 0x02, 0x23, 0x07, 0xff, 0x00, 0x00, 0x01})
	if err != nil {
		t.Fatal(err)
	}
	if len(code) != 2 || code[0] != spirvMagic || code[1] != 0x010000ff {
		t.Errorf("Words = %#x", code)
	}
	if got := Bytes(code); len(got) != 8 || got[4] != 0xff || got[7] != 0x01 {
		t.Errorf("Bytes = %x", got)
	}

	for _, n := range []int{0, 3, 5} {
		if _, err := Words(make([]byte, n)); !errors.Is(err, core.ErrInvalidArgument) {
			t.Errorf("Words(%d bytes) = %v, want ErrInvalidArgument", n, err)
		}
	}
}

func TestCompileWGSL(t *testing.T) {
	const source = `
@vertex
fn vs_main() -> @builtin(position) vec4<f32> {
    return vec4<f32>(0.0, 0.0, 0.0, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.0, 0.0, 1.0);
}
`
	code, err := CompileWGSL(source)
	if err != nil {
		t.Fatalf("CompileWGSL: %v", err)
	}
	if len(code) < 5 || code[0] != spirvMagic {
		t.Errorf("compiled module does not start with the SPIR-V header: %#x", code[:min(len(code), 5)])
	}

	if _, err := CompileWGSL("fn broken("); err == nil {
		t.Error("CompileWGSL accepted invalid source")
	}
}
