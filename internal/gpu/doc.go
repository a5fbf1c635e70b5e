//go:build !nogpu

// Package gpu implements the stereossim reducer on a wgpu/hal device.
//
// This is an internal package; import github.com/gogpu/stereossim/gpu to
// register it.
//
// # Reduction pass
//
// Every pass follows the same sequence:
//
//  1. Allocate an S×S R16Unorm target with log2(S)+1 mip levels and one
//     view per level.
//  2. Render one quad into level 0 with the pass's fragment program
//     (average, variance or covariance), sampling through a linear sampler.
//  3. Generate the mip chain: for k = 1..log2(S), a render pass reads level
//     k-1 with textureLoad and writes the 2x2 mean into level k.
//  4. Copy the 1×1 level into a MapRead staging buffer, submit, wait, map
//     and decode the texel.
//  5. Destroy every object created by the pass, on every return path.
//
// Shaders, pipelines, bind group layouts, the sampler and the index buffer
// are created once per Reducer and shared by all passes.
//
// # Build tags
//
// Building with -tags nogpu removes this package; stereossim then runs on
// its software reducer only.
package gpu
