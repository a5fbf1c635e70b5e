package stereossim

import (
	"encoding/binary"
	"math"
)

// Vertex is one corner of a reduction quad.
type Vertex struct {
	Position [3]float32
	UV       [2]float32
}

// VertexStride is the size in bytes of one encoded Vertex.
const VertexStride = 5 * 4

// Quad is a full-viewport quad. Only the texture coordinates vary between
// quads; the positions always cover clip space.
type Quad [4]Vertex

// QuadIndices draws a Quad as two triangles.
var QuadIndices = [6]uint16{0, 1, 3, 3, 1, 2}

// FullQuad samples the whole source.
var FullQuad = NewQuad(FullRect)

// NewQuad builds the quad whose texture coordinates span r.
func NewQuad(r Rect) Quad {
	return Quad{
		{Position: [3]float32{-1, -1, 0}, UV: [2]float32{r.U0, r.V1}},
		{Position: [3]float32{-1, 1, 0}, UV: [2]float32{r.U0, r.V0}},
		{Position: [3]float32{1, 1, 0}, UV: [2]float32{r.U1, r.V0}},
		{Position: [3]float32{1, -1, 0}, UV: [2]float32{r.U1, r.V1}},
	}
}

// Rect returns the texture-coordinate rectangle spanned by q.
func (q Quad) Rect() Rect {
	r := Rect{U0: q[0].UV[0], V0: q[0].UV[1], U1: q[0].UV[0], V1: q[0].UV[1]}
	for _, v := range q[1:] {
		r.U0 = min(r.U0, v.UV[0])
		r.V0 = min(r.V0, v.UV[1])
		r.U1 = max(r.U1, v.UV[0])
		r.V1 = max(r.V1, v.UV[1])
	}
	return r
}

// Bytes encodes q as a little-endian vertex buffer: position xyz followed
// by uv for each vertex.
func (q Quad) Bytes() []byte {
	buf := make([]byte, len(q)*VertexStride)
	off := 0
	for _, v := range q {
		for _, f := range v.Position {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
			off += 4
		}
		for _, f := range v.UV {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
			off += 4
		}
	}
	return buf
}

// IndexBytes encodes QuadIndices as a little-endian uint16 index buffer.
func IndexBytes() []byte {
	buf := make([]byte, len(QuadIndices)*2)
	for i, idx := range QuadIndices {
		binary.LittleEndian.PutUint16(buf[i*2:], idx)
	}
	return buf
}
