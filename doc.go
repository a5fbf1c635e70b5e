// Package stereossim validates the packing layout of a stereoscopic frame by
// measuring the structural similarity (SSIM) between its two eye views.
//
// # Overview
//
// A stereo frame stores two eye images inside one picture, either side by
// side or top and bottom. If the claimed layout is correct, the two halves
// are near copies of each other and their global SSIM is high. If the frame
// is actually 2D content, the halves are unrelated and SSIM drops.
//
// # Quick Start
//
//	import "github.com/gogpu/stereossim"
//
//	frame, err := stereossim.LoadFrame("frame.nv12", 1920, 1080)
//	if err != nil {
//	    return err
//	}
//	v, err := stereossim.NewValidator()
//	if err != nil {
//	    return err
//	}
//	defer v.Close()
//	res, err := v.Validate(ctx, frame, stereossim.SideBySide)
//
// # Reduction
//
// Every statistic is a mean over an S×S grid. A Reducer renders a derived
// per-pixel value (luma, squared deviation or deviation product) into a
// 16-bit target of side S and collapses it through its mip chain: level k
// holds the mean of 2^k × 2^k blocks of level 0, so the 1×1 level holds the
// mean of the whole grid.
//
// Two reducers are available:
//   - software: the mip chain built on the CPU (always registered)
//   - gpu: render passes on a wgpu/hal device (import the gpu package)
//
//	import _ "github.com/gogpu/stereossim/gpu"
//
// # Scale
//
// Means and deviations in [MomentSet] are on the 0-255 luma scale, the same
// scale as the SSIM stabilizers C1 and C2.
package stereossim

// Version information
const (
	// Version is the current version of the library
	Version = "0.3.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 3

	// VersionPatch is the patch version
	VersionPatch = 0
)
