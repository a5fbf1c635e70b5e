// Package cache holds compiled artifacts that outlive a single GPU device,
// such as SPIR-V translated from WGSL. Reopening a reducer on a new device
// (for example after switching to a shared device) then skips the shader
// compiler.
//
//	c := cache.New[string, []uint32](8)
//	words, err := c.Load(source, func() ([]uint32, error) {
//	    return compile(source)
//	})
//
// Cache is safe for concurrent use and must not be copied.
package cache
