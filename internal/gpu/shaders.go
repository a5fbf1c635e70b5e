//go:build !nogpu

package gpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"

	"github.com/gogpu/stereossim/internal/cache"
)

// Embedded WGSL shader sources.

//go:embed shaders/reduce.wgsl
var reduceShaderSource string

//go:embed shaders/downsample.wgsl
var downsampleShaderSource string

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// shaderSource pairs a shader label with its WGSL text.
type shaderSource struct {
	label string
	wgsl  string
}

func shaderSources() []shaderSource {
	return []shaderSource{
		{label: "reduce", wgsl: reduceShaderSource},
		{label: "downsample", wgsl: downsampleShaderSource},
	}
}

// spirvCache maps WGSL source text to its SPIR-V words. Entries are
// shared by every device and must not be modified.
var spirvCache = cache.New[string, []uint32](16)

// compileShader returns the SPIR-V words of a WGSL source, compiling it on
// first use.
func compileShader(label, source string) ([]uint32, error) {
	return spirvCache.Load(source, func() ([]uint32, error) {
		return translateShader(label, source)
	})
}

// translateShader compiles WGSL source to SPIR-V words.
func translateShader(label, source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("compile %s shader: %w", label, err)
	}
	if len(spirvBytes) < 4 || len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("compile %s shader: SPIR-V length %d is not a whole number of words", label, len(spirvBytes))
	}

	// SPIR-V is little-endian 32-bit words
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	if words[0] != spirvMagic {
		return nil, fmt.Errorf("compile %s shader: bad SPIR-V magic %#08x", label, words[0])
	}
	return words, nil
}

// ValidateShaders parses, validates and compiles every embedded shader.
// It needs no GPU.
func ValidateShaders() error {
	for _, s := range shaderSources() {
		ast, err := naga.Parse(s.wgsl)
		if err != nil {
			return fmt.Errorf("parse %s shader: %w", s.label, err)
		}
		module, err := naga.LowerWithSource(ast, s.wgsl)
		if err != nil {
			return fmt.Errorf("lower %s shader: %w", s.label, err)
		}
		problems, err := naga.Validate(module)
		if err != nil {
			return fmt.Errorf("validate %s shader: %w", s.label, err)
		}
		if len(problems) > 0 {
			return fmt.Errorf("validate %s shader: %s (%d problems)", s.label, problems[0].Message, len(problems))
		}
		if _, err := translateShader(s.label, s.wgsl); err != nil {
			return err
		}
	}
	return nil
}
