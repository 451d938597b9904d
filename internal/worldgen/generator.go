package worldgen

import (
	"encoding/json"
	"fmt"

	"github.com/eastlondoner/prismarine-viewer/internal/world"
)

// Block-state ids from the builtin palette.
const (
	blockStone   = 1
	blockDirt    = 2
	blockGrass   = 3
	blockBedrock = 4
	blockWater   = 5
	blockSand    = 6
	blockSign    = 7
)

const plainsBiome = 1

// Generator is a deterministic heightmap world source so the viewer can run
// without an upstream server. Columns are produced on demand in the
// compressed buffer wire format.
type Generator struct {
	seed        int64
	minY        int
	worldHeight int

	scale       float64
	baseHeight  int
	amp         float64
	octaves     int
	persistence float64
	lacunarity  float64
	seaLevel    int
}

func New(seed int64, minY, worldHeight int) *Generator {
	return &Generator{
		seed:        seed,
		minY:        minY,
		worldHeight: worldHeight,
		scale:       1.0 / 64.0,
		baseHeight:  32,
		amp:         24,
		octaves:     4,
		persistence: 0.5,
		lacunarity:  2.0,
		seaLevel:    30,
	}
}

// HeightAt computes the surface height (block Y) at world X,Z.
func (g *Generator) HeightAt(worldX, worldZ int) int {
	x := float64(worldX) * g.scale
	z := float64(worldZ) * g.scale
	n := octaveNoise2D(x, z, g.seed, g.octaves, g.persistence, g.lacunarity)
	h := g.minY + 1 + int(float64(g.baseHeight)+n*g.amp)
	top := g.minY + g.worldHeight - 1
	if h > top {
		h = top
	}
	if h < g.minY+1 {
		h = g.minY + 1
	}
	return h
}

// ColumnAt implements the view layer's column source.
func (g *Generator) ColumnAt(pos world.ColumnPos) (*world.ColumnPayload, error) {
	numSections := g.worldHeight / world.SectionSize
	states := make([]uint16, numSections*world.SectionVolume)
	biomes := make([]uint8, numSections*world.SectionVolume/64)
	for i := range biomes {
		biomes[i] = plainsBiome
	}

	set := func(lx, worldY, lz int, id uint16) {
		rel := worldY - g.minY
		sec := rel / world.SectionSize
		ly := rel % world.SectionSize
		states[sec*world.SectionVolume+(ly*world.SectionSize+lz)*world.SectionSize+lx] = id
	}

	for lx := 0; lx < world.SectionSize; lx++ {
		for lz := 0; lz < world.SectionSize; lz++ {
			worldX := pos.X*world.SectionSize + lx
			worldZ := pos.Z*world.SectionSize + lz
			height := g.HeightAt(worldX, worldZ)

			set(lx, g.minY, lz, blockBedrock)
			for y := g.minY + 1; y < height-3; y++ {
				set(lx, y, lz, blockStone)
			}
			for y := height - 3; y < height; y++ {
				if y > g.minY {
					set(lx, y, lz, blockDirt)
				}
			}
			switch {
			case height <= g.seaLevel+1:
				set(lx, height, lz, blockSand)
			default:
				set(lx, height, lz, blockGrass)
			}
			for y := height + 1; y <= g.seaLevel; y++ {
				set(lx, y, lz, blockWater)
			}
		}
	}

	entities := g.blockEntities(pos, set)

	return world.EncodeBufferColumn(g.minY, g.worldHeight, states, biomes, true, entities)
}

// blockEntities places the spawn marker sign in the origin column.
func (g *Generator) blockEntities(pos world.ColumnPos, set func(lx, worldY, lz int, id uint16)) map[string]json.RawMessage {
	if pos.X != 0 || pos.Z != 0 {
		return nil
	}
	const lx, lz = 8, 8
	y := g.HeightAt(lx, lz) + 1
	if y >= g.minY+g.worldHeight {
		return nil
	}
	set(lx, y, lz, blockSign)
	data, _ := json.Marshal(map[string]string{"Text1": "spawn"})
	return map[string]json.RawMessage{
		fmt.Sprintf("%d,%d,%d", lx, y, lz): data,
	}
}
