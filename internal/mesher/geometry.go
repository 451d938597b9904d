package mesher

import (
	"github.com/eastlondoner/prismarine-viewer/internal/world"
	"github.com/eastlondoner/prismarine-viewer/pkg/blockstates"
)

// Geometry holds the vertex buffers for one section mesh. Buffers are
// single-owner: the producing worker hands them off and never touches them
// again.
type Geometry struct {
	Positions []float32
	Normals   []float32
	Colors    []float32
	UVs       []float32
	Indices   []uint32
}

// Empty reports whether the geometry carries no vertices.
func (g *Geometry) Empty() bool {
	return g == nil || len(g.Positions) == 0
}

// Clone makes a deep copy, for callers that need to retain buffers past the
// ownership handoff.
func (g *Geometry) Clone() *Geometry {
	if g == nil {
		return nil
	}
	clone := &Geometry{}
	if len(g.Positions) > 0 {
		clone.Positions = append([]float32(nil), g.Positions...)
	}
	if len(g.Normals) > 0 {
		clone.Normals = append([]float32(nil), g.Normals...)
	}
	if len(g.Colors) > 0 {
		clone.Colors = append([]float32(nil), g.Colors...)
	}
	if len(g.UVs) > 0 {
		clone.UVs = append([]float32(nil), g.UVs...)
	}
	if len(g.Indices) > 0 {
		clone.Indices = append([]uint32(nil), g.Indices...)
	}
	return clone
}

// FaceCount returns the number of quads in the geometry.
func (g *Geometry) FaceCount() int {
	if g == nil {
		return 0
	}
	return len(g.Indices) / 6
}

// addFace appends a quad (two indexed triangles) with a flat normal and a
// uniform color.
func (g *Geometry) addFace(v [4][3]float32, n [3]float32, c [3]float32) {
	base := uint32(len(g.Positions) / 3)
	for i := 0; i < 4; i++ {
		g.Positions = append(g.Positions, v[i][0], v[i][1], v[i][2])
		g.Normals = append(g.Normals, n[0], n[1], n[2])
		g.Colors = append(g.Colors, c[0], c[1], c[2])
	}
	g.UVs = append(g.UVs, 0, 0, 1, 0, 1, 1, 0, 1)
	g.Indices = append(g.Indices, base, base+1, base+2, base, base+2, base+3)
}

// SectionMesher turns one 16x16x16 section of a BlockSource into geometry.
// Implementations must be pure: same inputs, same buffers. A nil result means
// the section produced no visible faces.
type SectionMesher interface {
	Generate(sec world.SectionPos, src *world.BlockSource, table *blockstates.Table) *Geometry
}
