package world

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Payload formats. Anything else is rejected with a logged fallback rather
// than coerced (see BlockSource.LoadColumn).
const (
	FormatJSON   = "json"
	FormatBuffer = "buffer"

	CompressionZlib = "zlib"
)

const sectionByteLen = SectionVolume*2 + biomeVolume

// ColumnPayload is the tagged variant carrying column data between the view
// layer, the dispatcher and the mesh workers.
type ColumnPayload struct {
	Format   string          `json:"format"`
	Data     json.RawMessage `json:"data,omitempty"`     // FormatJSON
	Bytes    []byte          `json:"bytes,omitempty"`    // FormatBuffer
	Metadata *BufferMetadata `json:"metadata,omitempty"` // FormatBuffer
}

// BufferMetadata accompanies raw buffer payloads. MinY varies by dimension
// (e.g. -64 for an overworld, 0 elsewhere), so it must travel with the bytes.
type BufferMetadata struct {
	MinY          int                        `json:"minY"`
	WorldHeight   int                        `json:"worldHeight"`
	Compression   string                     `json:"compression,omitempty"`
	BlockEntities map[string]json.RawMessage `json:"blockEntities,omitempty"`
	LightMasks    json.RawMessage            `json:"lightMasks,omitempty"`
}

// columnDoc is the serialized-document form of a column.
type columnDoc struct {
	MinY          int                        `json:"minY"`
	WorldHeight   int                        `json:"worldHeight"`
	Sections      []sectionDoc               `json:"sections"`
	BlockEntities map[string]json.RawMessage `json:"blockEntities,omitempty"`
}

type sectionDoc struct {
	// Y is the section's world Y divided by SectionSize.
	Y      int      `json:"y"`
	Blocks []uint32 `json:"blocks"`
	Biomes []uint8  `json:"biomes,omitempty"`
}

// Owned returns a payload whose buffer no longer aliases the caller's backing
// store, so it can cross a goroutine boundary safely. JSON payloads are
// returned as-is: their bytes are never mutated after decode.
func (p *ColumnPayload) Owned() *ColumnPayload {
	if p == nil || p.Format != FormatBuffer || p.Bytes == nil {
		return p
	}
	cp := *p
	cp.Bytes = append([]byte(nil), p.Bytes...)
	return &cp
}

// Extent reports the vertical extent the payload carries, peeking into the
// document for JSON payloads. ok is false when the payload carries none, or
// when the document cannot be parsed.
func (p *ColumnPayload) Extent() (minY, worldHeight int, ok bool) {
	if p == nil {
		return 0, 0, false
	}
	switch p.Format {
	case FormatBuffer:
		if p.Metadata != nil && p.Metadata.WorldHeight > 0 {
			return p.Metadata.MinY, p.Metadata.WorldHeight, true
		}
	case FormatJSON:
		if doc, err := unwrapDoc(p.Data); err == nil && doc.WorldHeight > 0 {
			return doc.MinY, doc.WorldHeight, true
		}
	}
	return 0, 0, false
}

// EncodeBufferColumn builds a buffer payload from flat per-section arrays.
// states holds numSections*SectionVolume entries bottom-up in section index
// order; biomes one byte per 4x4x4 cell in the same order. Block entity keys
// are "x,y,z" with local x/z and world y.
func EncodeBufferColumn(minY, worldHeight int, states []uint16, biomes []uint8, compress bool, blockEntities map[string]json.RawMessage) (*ColumnPayload, error) {
	if worldHeight <= 0 || worldHeight%SectionSize != 0 || minY%SectionSize != 0 {
		return nil, fmt.Errorf("bad extent minY=%d worldHeight=%d", minY, worldHeight)
	}
	numSections := worldHeight / SectionSize
	if len(states) != numSections*SectionVolume {
		return nil, fmt.Errorf("states has %d entries, want %d", len(states), numSections*SectionVolume)
	}
	if len(biomes) != numSections*biomeVolume {
		return nil, fmt.Errorf("biomes has %d entries, want %d", len(biomes), numSections*biomeVolume)
	}

	raw := make([]byte, numSections*sectionByteLen)
	for i := 0; i < numSections; i++ {
		sec := raw[i*sectionByteLen : (i+1)*sectionByteLen]
		for j := 0; j < SectionVolume; j++ {
			binary.LittleEndian.PutUint16(sec[j*2:], states[i*SectionVolume+j])
		}
		copy(sec[SectionVolume*2:], biomes[i*biomeVolume:(i+1)*biomeVolume])
	}

	meta := &BufferMetadata{MinY: minY, WorldHeight: worldHeight, BlockEntities: blockEntities}
	if compress {
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}
		raw = buf.Bytes()
		meta.Compression = CompressionZlib
	}
	return &ColumnPayload{Format: FormatBuffer, Bytes: raw, Metadata: meta}, nil
}

// decodeColumn parses a payload into a Column. The x/z identify the column on
// the chunk grid; they are not carried inside the payload.
func decodeColumn(x, z int, p *ColumnPayload) (*Column, error) {
	if p == nil {
		return nil, fmt.Errorf("nil payload for column %d,%d", x, z)
	}
	switch p.Format {
	case FormatJSON:
		return decodeJSONColumn(x, z, p.Data)
	case FormatBuffer:
		return decodeBufferColumn(x, z, p.Bytes, p.Metadata)
	default:
		return nil, fmt.Errorf("unknown payload format %q for column %d,%d", p.Format, x, z)
	}
}

func decodeJSONColumn(x, z int, data json.RawMessage) (*Column, error) {
	doc, err := unwrapDoc(data)
	if err != nil {
		return nil, err
	}
	if doc.WorldHeight <= 0 || doc.WorldHeight%SectionSize != 0 || doc.MinY%SectionSize != 0 {
		return nil, fmt.Errorf("column %d,%d: bad extent minY=%d worldHeight=%d", x, z, doc.MinY, doc.WorldHeight)
	}
	col := newColumn(x, z, doc.MinY, doc.WorldHeight)
	for _, sec := range doc.Sections {
		idx := sec.Y - doc.MinY/SectionSize
		if idx < 0 || idx >= len(col.sections) {
			return nil, fmt.Errorf("column %d,%d: section y=%d outside extent", x, z, sec.Y)
		}
		if len(sec.Blocks) != SectionVolume {
			return nil, fmt.Errorf("column %d,%d: section y=%d has %d blocks, want %d", x, z, sec.Y, len(sec.Blocks), SectionVolume)
		}
		sd := &sectionData{blocks: append([]uint32(nil), sec.Blocks...)}
		if len(sec.Biomes) == biomeVolume {
			sd.biomes = append([]uint8(nil), sec.Biomes...)
		}
		col.sections[idx] = sd
	}
	col.blockEntities = parseBlockEntities(doc.BlockEntities)
	return col, nil
}

// unwrapDoc accepts a document, a {"chunk": ...} wrapper, or a JSON string
// containing either.
func unwrapDoc(data json.RawMessage) (*columnDoc, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty json payload")
	}
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, fmt.Errorf("string payload: %w", err)
		}
		return unwrapDoc(json.RawMessage(inner))
	}
	var wrapper struct {
		Chunk json.RawMessage `json:"chunk"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err == nil && len(wrapper.Chunk) > 0 {
		return unwrapDoc(wrapper.Chunk)
	}
	var doc columnDoc
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("column document: %w", err)
	}
	return &doc, nil
}

func decodeBufferColumn(x, z int, raw []byte, meta *BufferMetadata) (*Column, error) {
	if meta == nil {
		return nil, fmt.Errorf("column %d,%d: buffer payload without metadata", x, z)
	}
	if meta.WorldHeight <= 0 || meta.WorldHeight%SectionSize != 0 || meta.MinY%SectionSize != 0 {
		return nil, fmt.Errorf("column %d,%d: bad extent minY=%d worldHeight=%d", x, z, meta.MinY, meta.WorldHeight)
	}
	data := raw
	if meta.Compression == CompressionZlib {
		r, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("column %d,%d: zlib: %w", x, z, err)
		}
		data, err = io.ReadAll(r)
		r.Close()
		if err != nil {
			return nil, fmt.Errorf("column %d,%d: zlib: %w", x, z, err)
		}
	}
	numSections := meta.WorldHeight / SectionSize
	if len(data) != numSections*sectionByteLen {
		return nil, fmt.Errorf("column %d,%d: buffer is %d bytes, want %d", x, z, len(data), numSections*sectionByteLen)
	}
	col := newColumn(x, z, meta.MinY, meta.WorldHeight)
	for i := 0; i < numSections; i++ {
		secBytes := data[i*sectionByteLen : (i+1)*sectionByteLen]
		if allZero(secBytes[:SectionVolume*2]) {
			continue // all air, leave the slice unmaterialized
		}
		sd := &sectionData{
			blocks: make([]uint32, SectionVolume),
			biomes: append([]uint8(nil), secBytes[SectionVolume*2:]...),
		}
		for j := 0; j < SectionVolume; j++ {
			sd.blocks[j] = uint32(binary.LittleEndian.Uint16(secBytes[j*2:]))
		}
		col.sections[i] = sd
	}
	col.blockEntities = parseBlockEntities(meta.BlockEntities)
	return col, nil
}

func parseBlockEntities(raw map[string]json.RawMessage) map[Pos]json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[Pos]json.RawMessage, len(raw))
	for key, data := range raw {
		var p Pos
		if _, err := fmt.Sscanf(key, "%d,%d,%d", &p.X, &p.Y, &p.Z); err != nil {
			continue
		}
		out[p] = data
	}
	return out
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
