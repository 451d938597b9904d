package protocol

import "encoding/json"

// VERSION (server -> viewer): selects the world version and invalidates all
// previously streamed state.
type VersionMsg struct {
	Type    string `json:"type"`
	Version string `json:"version"`
}

// BLOCKSTATES (server -> viewer): the full block-state palette for the
// selected version. Sent immediately after VERSION.
type BlockStatesMsg struct {
	Type   string       `json:"type"`
	States []BlockState `json:"states"`
}

type BlockState struct {
	ID          uint32 `json:"id"`
	Name        string `json:"name"`
	Cube        bool   `json:"cube,omitempty"`
	Transparent bool   `json:"transparent,omitempty"`
	Tint        uint32 `json:"tint,omitempty"`
}

// SectionKey identifies a 16x16x16 mesh slot by its minimum world corner.
type SectionKey struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// GEOMETRY (server -> viewer): replaces the mesh at a section key. Empty
// buffers clear the slot.
type GeometryMsg struct {
	Type      string     `json:"type"`
	Key       SectionKey `json:"key"`
	Positions []float32  `json:"positions"`
	Normals   []float32  `json:"normals"`
	Colors    []float32  `json:"colors"`
	UVs       []float32  `json:"uvs"`
	Indices   []uint32   `json:"indices"`
}

// SECTIONFINISHED (server -> viewer): the section's latest redraw has been
// fully processed, whether or not it produced geometry.
type SectionFinishedMsg struct {
	Type string     `json:"type"`
	Key  SectionKey `json:"key"`
}

// CHUNKLOAD / CHUNKUNLOAD (server -> viewer): column lifecycle on the chunk
// grid. X and Z are chunk coordinates, not block coordinates.
type ChunkLoadMsg struct {
	Type string `json:"type"`
	X    int    `json:"x"`
	Z    int    `json:"z"`
}

type ChunkUnloadMsg struct {
	Type string `json:"type"`
	X    int    `json:"x"`
	Z    int    `json:"z"`
}

// BLOCKENTITY (server -> viewer): an interesting block entity surfaced by the
// view layer, e.g. sign text. Data carries the entity's raw NBT-derived JSON.
type BlockEntityMsg struct {
	Type string          `json:"type"`
	X    int             `json:"x"`
	Y    int             `json:"y"`
	Z    int             `json:"z"`
	Name string          `json:"name"`
	Data json.RawMessage `json:"data,omitempty"`
}

// POSITION (viewer -> server): the viewpoint moved. Units are world blocks.
type PositionMsg struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
}
