package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/eastlondoner/prismarine-viewer/internal/profiling"
	"github.com/eastlondoner/prismarine-viewer/internal/world"
)

const (
	MinReachDistance = 0.1
	MaxReachDistance = 5.0
)

// RaycastResult stores the result of a raycast operation
type RaycastResult struct {
	HitPosition      world.Pos
	AdjacentPosition world.Pos
	Distance         float32
	Hit              bool
}

// Raycast marches a ray from start along direction and reports the first
// solid block it enters, resolving viewer clicks to world blocks. A block
// occupies the unit cell at its floored coordinates. AdjacentPosition is the
// last empty cell before the hit, i.e. where a placed block would go.
func Raycast(start mgl32.Vec3, direction mgl32.Vec3, minDist, maxDist float32, src *world.BlockSource) RaycastResult {
	defer profiling.Track("physics.Raycast")()
	stepSize := float32(0.02)
	steps := int(maxDist / stepSize)

	var lastEmptyPos world.Pos
	result := RaycastResult{Hit: false}

	for i := 0; i <= steps; i++ {
		dist := float32(i) * stepSize
		if dist < minDist {
			continue
		}

		pos := start.Add(direction.Mul(dist))
		blockPos := world.Pos{
			X: int(math.Floor(float64(pos.X()))),
			Y: int(math.Floor(float64(pos.Y()))),
			Z: int(math.Floor(float64(pos.Z()))),
		}

		if solid(src, blockPos) {
			result.HitPosition = blockPos
			result.AdjacentPosition = lastEmptyPos
			result.Distance = dist
			result.Hit = true
			return result
		}

		lastEmptyPos = blockPos
	}

	return result
}

// solid treats only full cubes as hittable; air, unloaded columns and
// non-cube decorations let the ray pass.
func solid(src *world.BlockSource, p world.Pos) bool {
	b := src.GetBlock(p)
	return b != nil && b.StateID != 0 && b.Cube
}
