//go:build !nogpu

package gpu

import (
	"strings"
	"testing"
)

func TestValidateShaders(t *testing.T) {
	if err := ValidateShaders(); err != nil {
		t.Fatalf("ValidateShaders: %v", err)
	}
}

func TestCompileShaderMagic(t *testing.T) {
	for _, s := range shaderSources() {
		words, err := compileShader(s.label, s.wgsl)
		if err != nil {
			t.Fatalf("%s: %v", s.label, err)
		}
		if words[0] != spirvMagic {
			t.Errorf("%s: magic %#08x", s.label, words[0])
		}
	}
}

func TestCompileShaderIsCached(t *testing.T) {
	first, err := compileShader("reduce", reduceShaderSource)
	if err != nil {
		t.Fatal(err)
	}
	before := spirvCache.Stats().Hits
	again, err := compileShader("reduce", reduceShaderSource)
	if err != nil {
		t.Fatal(err)
	}
	if spirvCache.Stats().Hits != before+1 {
		t.Error("second compile missed the cache")
	}
	if &first[0] != &again[0] {
		t.Error("cached words were copied")
	}
}

func TestCompileShaderError(t *testing.T) {
	_, err := compileShader("broken", "fn main( {")
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Errorf("error = %v", err)
	}
}

func TestEntryPointsExist(t *testing.T) {
	for _, entry := range programEntryPoints {
		if !strings.Contains(reduceShaderSource, "fn "+entry+"(") {
			t.Errorf("reduce.wgsl has no entry point %s", entry)
		}
	}
	if !strings.Contains(downsampleShaderSource, "fn fs_main(") {
		t.Error("downsample.wgsl has no fs_main")
	}
}
