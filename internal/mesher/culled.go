package mesher

import (
	"github.com/eastlondoner/prismarine-viewer/internal/world"
	"github.com/eastlondoner/prismarine-viewer/pkg/blockstates"
)

// face describes one cube side: its outward direction, the quad corners
// relative to the block's min corner, and a flat shade factor so stacked
// cubes read as 3D without lighting.
var faces = [6]struct {
	dir     [3]int
	corners [4][3]float32
	shade   float32
}{
	{dir: [3]int{1, 0, 0}, corners: [4][3]float32{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {1, 0, 1}}, shade: 0.8},
	{dir: [3]int{-1, 0, 0}, corners: [4][3]float32{{0, 0, 1}, {0, 1, 1}, {0, 1, 0}, {0, 0, 0}}, shade: 0.8},
	{dir: [3]int{0, 1, 0}, corners: [4][3]float32{{0, 1, 0}, {0, 1, 1}, {1, 1, 1}, {1, 1, 0}}, shade: 1.0},
	{dir: [3]int{0, -1, 0}, corners: [4][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}}, shade: 0.5},
	{dir: [3]int{0, 0, 1}, corners: [4][3]float32{{1, 0, 1}, {1, 1, 1}, {0, 1, 1}, {0, 0, 1}}, shade: 0.6},
	{dir: [3]int{0, 0, -1}, corners: [4][3]float32{{0, 0, 0}, {0, 1, 0}, {1, 1, 0}, {1, 0, 0}}, shade: 0.6},
}

// CulledMesher is the default SectionMesher: one quad per cube face that is
// not hidden by a neighboring cube, with neighbor checks crossing section and
// column boundaries through the BlockSource.
type CulledMesher struct{}

func (CulledMesher) Generate(sec world.SectionPos, src *world.BlockSource, table *blockstates.Table) *Geometry {
	g := &Geometry{}
	for ly := 0; ly < world.SectionSize; ly++ {
		for lz := 0; lz < world.SectionSize; lz++ {
			for lx := 0; lx < world.SectionSize; lx++ {
				pos := world.Pos{X: sec.X + lx, Y: sec.Y + ly, Z: sec.Z + lz}
				b := src.GetBlock(pos)
				if b == nil || b.StateID == 0 || !b.Cube {
					continue
				}
				r, gr, bl := tintOf(table, b.StateID)
				for _, f := range faces {
					n := src.GetBlock(world.Pos{X: pos.X + f.dir[0], Y: pos.Y + f.dir[1], Z: pos.Z + f.dir[2]})
					if !faceVisible(b, n) {
						continue
					}
					var quad [4][3]float32
					for i, c := range f.corners {
						quad[i] = [3]float32{
							float32(pos.X) + c[0],
							float32(pos.Y) + c[1],
							float32(pos.Z) + c[2],
						}
					}
					normal := [3]float32{float32(f.dir[0]), float32(f.dir[1]), float32(f.dir[2])}
					g.addFace(quad, normal, [3]float32{r * f.shade, gr * f.shade, bl * f.shade})
				}
			}
		}
	}
	if g.Empty() {
		return nil
	}
	return g
}

// faceVisible reports whether a cube face against the given neighbor should
// be emitted. A nil neighbor (column not loaded) is treated as air so the
// face appears; a later neighbor load re-dirties the section and the face is
// culled on the regenerate.
func faceVisible(b, n *world.Block) bool {
	if n == nil || n.StateID == 0 || !n.Cube {
		return true
	}
	// Transparent cubes cull faces between like blocks (water against
	// water) but show faces against other transparent blocks.
	if n.Transparent {
		return n.StateID != b.StateID
	}
	return false
}

func tintOf(table *blockstates.Table, id uint32) (float32, float32, float32) {
	tint := uint32(0xffffff)
	if s, ok := table.Get(id); ok && s.Tint != 0 {
		tint = s.Tint
	}
	return float32(tint>>16&0xff) / 255,
		float32(tint>>8&0xff) / 255,
		float32(tint&0xff) / 255
}
