//go:build !nogpu

package main

import _ "github.com/gogpu/stereossim/gpu" // registers the GPU reducer
