package render

import (
	"github.com/eastlondoner/prismarine-viewer/internal/mesher"
	"github.com/eastlondoner/prismarine-viewer/internal/world"
	"github.com/eastlondoner/prismarine-viewer/pkg/blockstates"
)

// Controller-to-shard messages. Each worker consumes its own inbox channel in
// arrival order; there is no shared mutable state between the controller and
// a shard besides the payload buffers, which are either owned copies or
// immutable after send.
type workerMsg interface {
	workerMsg()
}

type versionMsg struct {
	Version string
}

type blockStatesMsg struct {
	Table *blockstates.Table
}

type chunkMsg struct {
	X, Z    int
	Payload *world.ColumnPayload
}

type unloadChunkMsg struct {
	X, Z int
}

type blockUpdateMsg struct {
	Pos     world.Pos
	StateID uint32
}

type dirtyMsg struct {
	Pos   world.SectionPos
	Value bool
}

type resetMsg struct{}

func (versionMsg) workerMsg() {}
func (blockStatesMsg) workerMsg() {}
func (chunkMsg) workerMsg() {}
func (unloadChunkMsg) workerMsg() {}
func (blockUpdateMsg) workerMsg() {}
func (dirtyMsg) workerMsg() {}
func (resetMsg) workerMsg() {}

// workerResult flows from shards back to the dispatcher over one shared
// fan-in channel. Geometry results transfer buffer ownership to the
// dispatcher; finished results acknowledge that the shard is done with a key
// whether or not geometry was produced.
type workerResult struct {
	shard    int
	key      world.SectionPos
	geometry *mesher.Geometry // nil for finished acknowledgements
	finished bool
}
