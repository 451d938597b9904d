package mesher

import (
	"encoding/json"
	"testing"

	"github.com/eastlondoner/prismarine-viewer/internal/world"
	"github.com/eastlondoner/prismarine-viewer/pkg/blockstates"
)

// emptySource builds a BlockSource with empty columns loaded at the given
// coordinates, ready for SetBlockStateID.
func emptySource(t *testing.T, cols ...world.ColumnPos) *world.BlockSource {
	t.Helper()
	doc, err := json.Marshal(map[string]any{"minY": 0, "worldHeight": 64, "sections": []any{}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	src := world.NewBlockSource(blockstates.Builtin(), nil)
	for _, c := range cols {
		if err := src.LoadColumn(c.X, c.Z, &world.ColumnPayload{Format: world.FormatJSON, Data: doc}); err != nil {
			t.Fatalf("load %v: %v", c, err)
		}
	}
	return src
}

func generate(src *world.BlockSource) *Geometry {
	return CulledMesher{}.Generate(world.SectionPos{X: 0, Y: 0, Z: 0}, src, src.Table())
}

func TestEmptySectionProducesNoGeometry(t *testing.T) {
	src := emptySource(t, world.ColumnPos{X: 0, Z: 0})
	if g := generate(src); g != nil {
		t.Fatalf("empty section: got %d faces, want nil", g.FaceCount())
	}
}

func TestSingleBlockMesh(t *testing.T) {
	src := emptySource(t, world.ColumnPos{X: 0, Z: 0})
	src.SetBlockStateID(world.Pos{X: 4, Y: 4, Z: 4}, 1)
	g := generate(src)
	if g.FaceCount() != 6 {
		t.Fatalf("single block: got %d faces, want 6", g.FaceCount())
	}
	if len(g.Positions) != 6*4*3 || len(g.Indices) != 6*6 {
		t.Fatalf("buffer sizes: %d positions, %d indices", len(g.Positions), len(g.Indices))
	}
	if len(g.Normals) != len(g.Positions) || len(g.Colors) != len(g.Positions) {
		t.Fatalf("normal/color buffers out of step with positions")
	}
	if len(g.UVs) != 6*4*2 {
		t.Fatalf("got %d uv floats, want %d", len(g.UVs), 6*4*2)
	}
}

func TestTouchingBlocksCullSharedFaces(t *testing.T) {
	src := emptySource(t, world.ColumnPos{X: 0, Z: 0})
	src.SetBlockStateID(world.Pos{X: 4, Y: 4, Z: 4}, 1)
	src.SetBlockStateID(world.Pos{X: 5, Y: 4, Z: 4}, 1)
	g := generate(src)
	// Two cubes sharing one interior wall: 12 - 2 hidden faces.
	if g.FaceCount() != 10 {
		t.Fatalf("touching blocks: got %d faces, want 10", g.FaceCount())
	}
}

func TestSeparatedBlocksKeepAllFaces(t *testing.T) {
	src := emptySource(t, world.ColumnPos{X: 0, Z: 0})
	src.SetBlockStateID(world.Pos{X: 4, Y: 4, Z: 4}, 1)
	src.SetBlockStateID(world.Pos{X: 6, Y: 4, Z: 4}, 1)
	g := generate(src)
	if g.FaceCount() != 12 {
		t.Fatalf("separated blocks: got %d faces, want 12", g.FaceCount())
	}
}

func TestCrossColumnFaceCulling(t *testing.T) {
	// Neighbor column missing: the boundary face is emitted.
	src := emptySource(t, world.ColumnPos{X: 0, Z: 0})
	src.SetBlockStateID(world.Pos{X: 15, Y: 4, Z: 4}, 1)
	if g := generate(src); g.FaceCount() != 6 {
		t.Fatalf("missing neighbor column: got %d faces, want 6", g.FaceCount())
	}

	// Neighbor column loaded with an adjoining block: the face is culled.
	src = emptySource(t, world.ColumnPos{X: 0, Z: 0}, world.ColumnPos{X: 1, Z: 0})
	src.SetBlockStateID(world.Pos{X: 15, Y: 4, Z: 4}, 1)
	src.SetBlockStateID(world.Pos{X: 16, Y: 4, Z: 4}, 1)
	if g := generate(src); g.FaceCount() != 5 {
		t.Fatalf("adjoining neighbor block: got %d faces, want 5", g.FaceCount())
	}
}

func TestTransparentNeighborCulling(t *testing.T) {
	src := emptySource(t, world.ColumnPos{X: 0, Z: 0})
	// Water against water: interior faces culled.
	src.SetBlockStateID(world.Pos{X: 4, Y: 4, Z: 4}, 5)
	src.SetBlockStateID(world.Pos{X: 5, Y: 4, Z: 4}, 5)
	if g := generate(src); g.FaceCount() != 10 {
		t.Fatalf("water against water: got %d faces, want 10", g.FaceCount())
	}

	// Stone next to water: the stone face facing water stays visible (6),
	// while water's face against the opaque cube is hidden (5).
	src.SetBlockStateID(world.Pos{X: 5, Y: 4, Z: 4}, 1)
	g := generate(src)
	if g.FaceCount() != 11 {
		t.Fatalf("stone against water: got %d faces, want 11", g.FaceCount())
	}
}

func TestNonCubeBlocksSkipped(t *testing.T) {
	src := emptySource(t, world.ColumnPos{X: 0, Z: 0})
	src.SetBlockStateID(world.Pos{X: 4, Y: 4, Z: 4}, 7) // sign: not a cube
	if g := generate(src); g != nil {
		t.Fatalf("non-cube block meshed: %d faces", g.FaceCount())
	}
}
