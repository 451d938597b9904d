package physics_test

import (
	"encoding/json"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/eastlondoner/prismarine-viewer/internal/physics"
	"github.com/eastlondoner/prismarine-viewer/internal/world"
	"github.com/eastlondoner/prismarine-viewer/pkg/blockstates"
)

// flatSource loads a single empty 0..256 column so individual blocks can be
// placed with SetBlockStateID.
func flatSource(t *testing.T) *world.BlockSource {
	t.Helper()
	src := world.NewBlockSource(blockstates.Builtin(), nil)
	data, err := json.Marshal(map[string]any{"minY": 0, "worldHeight": 256, "sections": []any{}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	payload := &world.ColumnPayload{Format: world.FormatJSON, Data: data}
	if err := src.LoadColumn(0, 0, payload); err != nil {
		t.Fatalf("load column: %v", err)
	}
	return src
}

func TestRaycast(t *testing.T) {
	src := flatSource(t)
	src.SetBlockStateID(world.Pos{X: 5, Y: 0, Z: 0}, 1)

	start := mgl32.Vec3{0.5, 0.5, 0.5}
	dir := mgl32.Vec3{1, 0, 0}
	minDist := float32(0.1)
	maxDist := float32(10.0)

	result := physics.Raycast(start, dir, minDist, maxDist, src)

	if !result.Hit {
		t.Fatalf("Expected hit, got miss")
	}
	if result.HitPosition != (world.Pos{X: 5, Y: 0, Z: 0}) {
		t.Errorf("Expected hit at {5,0,0}, got %v", result.HitPosition)
	}
	if result.AdjacentPosition != (world.Pos{X: 4, Y: 0, Z: 0}) {
		t.Errorf("Expected adjacent at {4,0,0}, got %v", result.AdjacentPosition)
	}
	// Ray starts at X=0.5 and enters the cell at X=5.0, so distance is 4.5.
	// Allow small float error from the fixed step size.
	if result.Distance < 4.49 || result.Distance > 4.53 {
		t.Errorf("Expected distance ~4.5, got %f", result.Distance)
	}

	// Miss: ray capped before the block.
	resultShort := physics.Raycast(start, dir, minDist, float32(4.0), src)
	if resultShort.Hit {
		t.Errorf("Expected miss due to maxDist, got hit at %v", resultShort.HitPosition)
	}

	// Miss: wrong direction.
	resultWrong := physics.Raycast(start, mgl32.Vec3{0, 1, 0}, minDist, maxDist, src)
	if resultWrong.Hit {
		t.Errorf("Expected miss, got hit")
	}

	// Diagonal hit.
	src.SetBlockStateID(world.Pos{X: 2, Y: 2, Z: 2}, 1)
	dirDiag := mgl32.Vec3{1, 1, 1}.Normalize()
	resultDiag := physics.Raycast(start, dirDiag, minDist, maxDist, src)
	if !resultDiag.Hit {
		t.Errorf("Expected hit at {2,2,2}, got miss")
	} else if resultDiag.HitPosition != (world.Pos{X: 2, Y: 2, Z: 2}) {
		t.Errorf("Expected hit at {2,2,2}, got %v", resultDiag.HitPosition)
	}
}

func TestRaycastThroughUnloadedColumns(t *testing.T) {
	src := flatSource(t)

	// The ray exits the only loaded column into unloaded space: no hit.
	result := physics.Raycast(mgl32.Vec3{8, 10, 8}, mgl32.Vec3{1, 0, 0}, 0.1, 30, src)
	if result.Hit {
		t.Fatalf("unloaded space should not be hittable, got %v", result.HitPosition)
	}
}

func TestRaycastIgnoresNonCubes(t *testing.T) {
	src := flatSource(t)
	src.SetBlockStateID(world.Pos{X: 3, Y: 0, Z: 0}, 7) // oak_sign, not a cube
	src.SetBlockStateID(world.Pos{X: 6, Y: 0, Z: 0}, 1)

	result := physics.Raycast(mgl32.Vec3{0.5, 0.5, 0.5}, mgl32.Vec3{1, 0, 0}, 0.1, 10, src)
	if !result.Hit || result.HitPosition != (world.Pos{X: 6, Y: 0, Z: 0}) {
		t.Fatalf("ray should pass the sign and hit the stone, got %+v", result)
	}
}
