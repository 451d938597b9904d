package world

import "encoding/json"

// Column holds all block and biome data for one vertical chunk stack.
// It is owned by exactly one BlockSource and never shared across goroutines.
type Column struct {
	X, Z        int
	MinY        int
	WorldHeight int

	// sections[0] starts at MinY; a nil entry means the slice has no block
	// data (all air).
	sections []*sectionData

	// blockEntities is keyed by local X/Z (0..15) and world Y.
	blockEntities map[Pos]json.RawMessage
}

type sectionData struct {
	blocks []uint32 // SectionVolume state ids
	biomes []uint8  // biomeVolume cells, nil when the payload carried none
}

func newColumn(x, z, minY, worldHeight int) *Column {
	return &Column{
		X:           x,
		Z:           z,
		MinY:        minY,
		WorldHeight: worldHeight,
		sections:    make([]*sectionData, worldHeight/SectionSize),
	}
}

// sectionIndex maps a world Y to an index into sections, or -1 when the Y is
// outside the column's populated range.
func (c *Column) sectionIndex(worldY int) int {
	idx := floorDiv(worldY-c.MinY, SectionSize)
	if idx < 0 || idx >= len(c.sections) {
		return -1
	}
	return idx
}

// SectionPresent reports whether the slice at the given section-corner world Y
// exists and has block data. Out-of-range slices are structurally empty.
func (c *Column) SectionPresent(worldY int) bool {
	idx := c.sectionIndex(worldY)
	return idx >= 0 && c.sections[idx] != nil
}

// InRange reports whether a world Y falls inside the column's vertical extent.
func (c *Column) InRange(worldY int) bool {
	return c.sectionIndex(worldY) >= 0
}

func indexInSection(x, localY, z int) int {
	return (localY*SectionSize+z)*SectionSize + x
}

// Block returns the state id at local X/Z and world Y.
func (c *Column) Block(localX, worldY, localZ int) (uint32, bool) {
	if localX < 0 || localX >= SectionSize || localZ < 0 || localZ >= SectionSize {
		return 0, false
	}
	idx := c.sectionIndex(worldY)
	if idx < 0 {
		return 0, false
	}
	sec := c.sections[idx]
	if sec == nil {
		return 0, true // all air
	}
	localY := mod(worldY-c.MinY, SectionSize)
	return sec.blocks[indexInSection(localX, localY, localZ)], true
}

// SetBlock writes a state id, materializing the section if needed. Returns
// false when the position is outside the column.
func (c *Column) SetBlock(localX, worldY, localZ int, state uint32) bool {
	if localX < 0 || localX >= SectionSize || localZ < 0 || localZ >= SectionSize {
		return false
	}
	idx := c.sectionIndex(worldY)
	if idx < 0 {
		return false
	}
	sec := c.sections[idx]
	if sec == nil {
		if state == 0 {
			return true // air into an empty slice, nothing to store
		}
		sec = &sectionData{blocks: make([]uint32, SectionVolume)}
		c.sections[idx] = sec
	}
	localY := mod(worldY-c.MinY, SectionSize)
	sec.blocks[indexInSection(localX, localY, localZ)] = state
	return true
}

// BiomeAt returns the raw biome id for a position, reporting false when the
// payload carried no biome data for that slice.
func (c *Column) BiomeAt(localX, worldY, localZ int) (uint8, bool) {
	idx := c.sectionIndex(worldY)
	if idx < 0 || c.sections[idx] == nil || c.sections[idx].biomes == nil {
		return 0, false
	}
	localY := mod(worldY-c.MinY, SectionSize)
	cell := (localY/4*biomeCells+localZ/4)*biomeCells + localX/4
	return c.sections[idx].biomes[cell], true
}

// BlockEntities returns the column's block-entity map, keyed by local X/Z and
// world Y. Callers must not mutate it.
func (c *Column) BlockEntities() map[Pos]json.RawMessage {
	return c.blockEntities
}
