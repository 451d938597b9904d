package world

const (
	// Section dimensions: the meshing unit is a 16x16x16 cube.
	SectionSize   = 16
	SectionVolume = SectionSize * SectionSize * SectionSize

	// Biomes are stored per 4x4x4 cell within a section.
	biomeCells  = SectionSize / 4
	biomeVolume = biomeCells * biomeCells * biomeCells
)

// Pos is an integer block position in world coordinates.
type Pos struct {
	X, Y, Z int
}

// ColumnPos identifies a chunk column on the chunk grid.
type ColumnPos struct {
	X, Z int
}

// SectionPos identifies a section by its minimum corner in world
// coordinates; all components are multiples of SectionSize.
type SectionPos struct {
	X, Y, Z int
}

// Column returns the chunk-grid column containing the section.
func (s SectionPos) Column() ColumnPos {
	return ColumnPos{X: floorDiv(s.X, SectionSize), Z: floorDiv(s.Z, SectionSize)}
}

// SectionOf returns the section containing a block position.
func SectionOf(p Pos) SectionPos {
	return SectionPos{
		X: floorDiv(p.X, SectionSize) * SectionSize,
		Y: floorDiv(p.Y, SectionSize) * SectionSize,
		Z: floorDiv(p.Z, SectionSize) * SectionSize,
	}
}

// ColumnOf returns the chunk-grid column containing a block position.
func ColumnOf(p Pos) ColumnPos {
	return ColumnPos{X: floorDiv(p.X, SectionSize), Z: floorDiv(p.Z, SectionSize)}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
