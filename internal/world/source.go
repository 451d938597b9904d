package world

import (
	"encoding/json"
	"log"

	"github.com/eastlondoner/prismarine-viewer/pkg/blockstates"
)

// FallbackBiome is used when a payload carries no biome data or an unmapped
// biome index.
const FallbackBiome uint32 = 1

// Block is the descriptor returned by BlockSource.GetBlock. The shape fields
// come from the memoized per-state cache; Position and Biome are filled per
// lookup on a fresh copy, so the value stays valid after later lookups.
type Block struct {
	StateID     uint32
	Name        string
	Cube        bool
	Transparent bool
	Position    Pos
	Biome       uint32
}

// BlockSource owns the loaded chunk columns for one shard (or for the
// controller's auxiliary lookups). It is confined to a single goroutine and
// needs no internal locking.
type BlockSource struct {
	columns map[ColumnPos]*Column
	cache   map[uint32]Block
	table   *blockstates.Table
	log     *log.Logger
}

// NewBlockSource creates an empty source. table may be nil until the
// block-state broadcast arrives.
func NewBlockSource(table *blockstates.Table, logger *log.Logger) *BlockSource {
	return &BlockSource{
		columns: make(map[ColumnPos]*Column),
		cache:   make(map[uint32]Block),
		table:   table,
		log:     logger,
	}
}

// SetTable installs a new block-state table and drops the descriptor cache.
func (s *BlockSource) SetTable(table *blockstates.Table) {
	s.table = table
	s.cache = make(map[uint32]Block)
}

// Table returns the current block-state table (may be nil).
func (s *BlockSource) Table() *blockstates.Table {
	return s.table
}

// Column returns the loaded column at a chunk-grid coordinate, or nil.
func (s *BlockSource) Column(pos ColumnPos) *Column {
	return s.columns[pos]
}

// Len returns the number of loaded columns.
func (s *BlockSource) Len() int {
	return len(s.columns)
}

// LoadColumn decodes a payload and installs it, replacing any previous column
// at that coordinate. Unrecognized shapes are logged and re-encoded through
// JSON before giving up; a structurally plausible payload never panics.
func (s *BlockSource) LoadColumn(x, z int, p *ColumnPayload) error {
	col, err := decodeColumn(x, z, p)
	if err != nil {
		if s.log != nil {
			s.log.Printf("column %d,%d: %v; retrying via json re-encode", x, z, err)
		}
		col, err = s.reencodeColumn(x, z, p)
		if err != nil {
			if s.log != nil {
				s.log.Printf("column %d,%d: dropped: %v", x, z, err)
			}
			return err
		}
	}
	s.columns[ColumnPos{X: x, Z: z}] = col
	return nil
}

func (s *BlockSource) reencodeColumn(x, z int, p *ColumnPayload) (*Column, error) {
	var raw json.RawMessage
	if p != nil && len(p.Data) > 0 {
		raw = p.Data
	} else {
		b, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return decodeJSONColumn(x, z, raw)
}

// UnloadColumn removes a column; subsequent reads report "not loaded".
func (s *BlockSource) UnloadColumn(x, z int) {
	delete(s.columns, ColumnPos{X: x, Z: z})
}

// GetBlock resolves a world position to its block descriptor. Returns nil
// when the owning column is not loaded; this is a normal streaming condition,
// never an error.
func (s *BlockSource) GetBlock(p Pos) *Block {
	col := s.columns[ColumnOf(p)]
	if col == nil {
		return nil
	}
	localX := mod(p.X, SectionSize)
	localZ := mod(p.Z, SectionSize)
	state, ok := col.Block(localX, p.Y, localZ)
	if !ok {
		state = 0 // outside the column's vertical extent reads as air
	}
	b := s.descriptor(state)
	b.Position = p
	b.Biome = FallbackBiome
	if raw, ok := col.BiomeAt(localX, p.Y, localZ); ok {
		b.Biome = uint32(raw)
	}
	return &b
}

// descriptor returns the memoized shape descriptor for a state id, creating
// it on first sight. Callers receive copies, so cache entries stay pristine.
func (s *BlockSource) descriptor(state uint32) Block {
	if b, ok := s.cache[state]; ok {
		return b
	}
	b := Block{StateID: state}
	if st, ok := s.table.Get(state); ok {
		b.Name = st.Name
		b.Cube = st.Cube
		b.Transparent = st.Transparent
	} else {
		b.Cube = state != 0
	}
	s.cache[state] = b
	return b
}

// SetBlockStateID mutates a single block in place. Reports false (a no-op)
// when the owning column is not loaded.
func (s *BlockSource) SetBlockStateID(p Pos, state uint32) bool {
	col := s.columns[ColumnOf(p)]
	if col == nil {
		return false
	}
	return col.SetBlock(mod(p.X, SectionSize), p.Y, mod(p.Z, SectionSize), state)
}
