package protocol

import "encoding/json"

const Version = "1.1"

// Message types.
const (
	TypeVersion         = "version"
	TypeBlockStates     = "blockStates"
	TypeGeometry        = "geometry"
	TypeSectionFinished = "sectionFinished"
	TypeChunkLoad       = "chunkLoad"
	TypeChunkUnload     = "chunkUnload"
	TypeBlockEntity     = "blockEntity"
	TypePosition        = "position"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type string `json:"type"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
