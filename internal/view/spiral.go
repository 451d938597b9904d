package view

import "github.com/eastlondoner/prismarine-viewer/internal/world"

// SpiralOrder returns the column coordinates covered by the view square
// around center, nearest ring first. The square spans 2*viewDistance cells
// per axis, so offsets run from -viewDistance to viewDistance-1 inclusive.
func SpiralOrder(center world.ColumnPos, viewDistance int) []world.ColumnPos {
	side := 2 * viewDistance
	out := make([]world.ColumnPos, 0, side*side)

	add := func(dx, dz int) {
		if dx < -viewDistance || dx >= viewDistance || dz < -viewDistance || dz >= viewDistance {
			return
		}
		out = append(out, world.ColumnPos{X: center.X + dx, Z: center.Z + dz})
	}

	add(0, 0)
	for r := 1; r <= viewDistance; r++ {
		x0, x1 := -r, r
		z0, z1 := -r, r
		for xk := x0; xk <= x1; xk++ {
			add(xk, z0)
		}
		for zk := z0 + 1; zk <= z1-1; zk++ {
			add(x1, zk)
		}
		for xk := x1; xk >= x0; xk-- {
			add(xk, z1)
		}
		for zk := z1 - 1; zk >= z0+1; zk-- {
			add(x0, zk)
		}
	}
	return out
}

// inView reports whether a column falls inside the view square centered on
// the chunk cell (cx, cz).
func inView(cx, cz, viewDistance int, pos world.ColumnPos) bool {
	dx := pos.X - cx
	dz := pos.Z - cz
	return dx >= -viewDistance && dx < viewDistance && dz >= -viewDistance && dz < viewDistance
}
