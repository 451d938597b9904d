package blockstates

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// State describes one block-state id: how the block looks and whether it
// occupies a full cube for face-culling purposes.
type State struct {
	ID          uint32 `json:"id"`
	Name        string `json:"name"`
	Cube        bool   `json:"cube"`
	Transparent bool   `json:"transparent,omitempty"`
	Tint        uint32 `json:"tint,omitempty"`
}

// Table maps block-state ids to their descriptors. Read-only after load;
// safe to share across goroutines.
type Table struct {
	states map[uint32]State
}

// FromStates builds a table from an in-memory state list.
func FromStates(states []State) *Table {
	t := &Table{states: make(map[uint32]State, len(states))}
	for _, s := range states {
		t.states[s.ID] = s
	}
	return t
}

// Load reads a JSON array of states from an asset file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read block states file: %w", err)
	}
	var states []State
	if err := json.Unmarshal(data, &states); err != nil {
		return nil, fmt.Errorf("could not unmarshal block states json: %w", err)
	}
	return FromStates(states), nil
}

// Get returns the state for an id, reporting whether it is known.
func (t *Table) Get(id uint32) (State, bool) {
	if t == nil {
		return State{}, false
	}
	s, ok := t.states[id]
	return s, ok
}

// IsCube reports whether the id renders as a full cube. Unknown non-zero ids
// default to cube so missing table entries still produce visible geometry.
func (t *Table) IsCube(id uint32) bool {
	if s, ok := t.Get(id); ok {
		return s.Cube
	}
	return id != 0
}

// NameOf returns the state name, or "" for unknown ids.
func (t *Table) NameOf(id uint32) string {
	s, _ := t.Get(id)
	return s.Name
}

// Len returns the number of known states.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.states)
}

// States returns all states ordered by id, for broadcast to clients.
func (t *Table) States() []State {
	if t == nil {
		return nil
	}
	out := make([]State, 0, len(t.states))
	for _, s := range t.states {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Builtin returns the small default palette used when no asset file is
// configured. Ids are stable; the demo world generator depends on them.
func Builtin() *Table {
	return FromStates([]State{
		{ID: 0, Name: "air"},
		{ID: 1, Name: "stone", Cube: true},
		{ID: 2, Name: "dirt", Cube: true},
		{ID: 3, Name: "grass_block", Cube: true, Tint: 0x7cbd6b},
		{ID: 4, Name: "bedrock", Cube: true},
		{ID: 5, Name: "water", Cube: true, Transparent: true, Tint: 0x3f76e4},
		{ID: 6, Name: "sand", Cube: true},
		{ID: 7, Name: "oak_sign", Cube: false},
	})
}
