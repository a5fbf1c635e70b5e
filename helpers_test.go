package stereossim

import "math/rand/v2"

// flatFrame returns a w×h frame with every luma sample set to v.
func flatFrame(w, h int, v byte) *Frame {
	luma := make([]byte, w*h)
	for i := range luma {
		luma[i] = v
	}
	return &Frame{Width: w, Height: h, Luma: luma}
}

// noiseFrame returns a w×h frame of uniform noise from a fixed seed.
func noiseFrame(w, h int, seed uint64) *Frame {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	luma := make([]byte, w*h)
	for i := range luma {
		luma[i] = byte(rng.IntN(256))
	}
	return &Frame{Width: w, Height: h, Luma: luma}
}

// mirroredSBS returns a side-by-side frame whose right half copies the
// left half.
func mirroredSBS(w, h int, seed uint64) *Frame {
	half := noiseFrame(w/2, h, seed)
	luma := make([]byte, w*h)
	for y := 0; y < h; y++ {
		copy(luma[y*w:], half.Luma[y*(w/2):(y+1)*(w/2)])
		copy(luma[y*w+w/2:], half.Luma[y*(w/2):(y+1)*(w/2)])
	}
	return &Frame{Width: w, Height: h, Luma: luma}
}

// checkerboard returns a frame of alternating 0 and 255 cells of the
// given size in pixels.
func checkerboard(w, h, cell int) *Frame {
	luma := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/cell+y/cell)%2 == 1 {
				luma[y*w+x] = 255
			}
		}
	}
	return &Frame{Width: w, Height: h, Luma: luma}
}
