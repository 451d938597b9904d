package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/eastlondoner/prismarine-viewer/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	// Round-trip the real message structs so the schemas and the struct tags
	// cannot drift apart.
	validate := func(s *jsonschema.Schema, msg any) {
		t.Helper()
		b, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate %s: %v", b, err)
		}
	}

	validate(compile("version.schema.json"), protocol.VersionMsg{
		Type:    protocol.TypeVersion,
		Version: "1.21.1",
	})

	validate(compile("blockStates.schema.json"), protocol.BlockStatesMsg{
		Type: protocol.TypeBlockStates,
		States: []protocol.BlockState{
			{ID: 0, Name: "air"},
			{ID: 1, Name: "stone", Cube: true},
			{ID: 5, Name: "water", Cube: true, Transparent: true, Tint: 0x3f76e4},
		},
	})

	key := protocol.SectionKey{X: -16, Y: 64, Z: 32}

	validate(compile("geometry.schema.json"), protocol.GeometryMsg{
		Type:      protocol.TypeGeometry,
		Key:       key,
		Positions: []float32{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0},
		Normals:   []float32{0, 0, 1, 0, 0, 1, 0, 0, 1, 0, 0, 1},
		Colors:    []float32{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
		UVs:       []float32{0, 0, 1, 0, 1, 1, 0, 1},
		Indices:   []uint32{0, 1, 2, 0, 2, 3},
	})

	validate(compile("sectionFinished.schema.json"), protocol.SectionFinishedMsg{
		Type: protocol.TypeSectionFinished,
		Key:  key,
	})

	validate(compile("chunkLoad.schema.json"), protocol.ChunkLoadMsg{
		Type: protocol.TypeChunkLoad, X: -3, Z: 7,
	})
	validate(compile("chunkUnload.schema.json"), protocol.ChunkUnloadMsg{
		Type: protocol.TypeChunkUnload, X: -3, Z: 7,
	})

	validate(compile("blockEntity.schema.json"), protocol.BlockEntityMsg{
		Type: protocol.TypeBlockEntity,
		X:    10, Y: 64, Z: -5,
		Name: "oak_sign",
		Data: json.RawMessage(`{"Text1":"hello"}`),
	})

	validate(compile("position.schema.json"), protocol.PositionMsg{
		Type: protocol.TypePosition,
		X:    12.5, Y: 80, Z: -33.25,
	})
}

func TestDecodeBase(t *testing.T) {
	m, err := protocol.DecodeBase([]byte(`{"type":"position","x":1,"y":2,"z":3}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Type != protocol.TypePosition {
		t.Fatalf("type = %q, want position", m.Type)
	}
	if _, err := protocol.DecodeBase([]byte(`not json`)); err == nil {
		t.Fatal("bad payload decoded without error")
	}
}
