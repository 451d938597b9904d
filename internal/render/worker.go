package render

import (
	"context"
	"log"
	"time"

	"github.com/eastlondoner/prismarine-viewer/internal/mesher"
	"github.com/eastlondoner/prismarine-viewer/internal/profiling"
	"github.com/eastlondoner/prismarine-viewer/internal/world"
	"github.com/eastlondoner/prismarine-viewer/pkg/blockstates"
)

// MeshWorker is one shard: it mirrors the world in its own BlockSource and
// regenerates the sections routed to it. All state is confined to the Run
// goroutine, so the worker needs no locks.
//
// A section key is in at most one of dirty or pending at any time. Pending
// keys are dirty instructions that arrived before their column's data; column
// arrival promotes them to dirty or finishes them immediately when the slice
// is structurally empty.
type MeshWorker struct {
	id       int
	inbox    chan workerMsg
	results  chan<- workerResult
	interval time.Duration
	gen      mesher.SectionMesher
	log      *log.Logger

	src     *world.BlockSource
	table   *blockstates.Table
	version string
	dirty   map[world.SectionPos]struct{}
	pending map[world.SectionPos]struct{}
	// failed tracks columns whose last payload could not be decoded, so
	// dirty instructions behind the rejected load are acknowledged instead
	// of parking forever.
	failed map[world.ColumnPos]struct{}
}

func newMeshWorker(id int, results chan<- workerResult, gen mesher.SectionMesher, interval time.Duration, logger *log.Logger) *MeshWorker {
	return &MeshWorker{
		id:       id,
		inbox:    make(chan workerMsg, 1024),
		results:  results,
		interval: interval,
		gen:      gen,
		log:      logger,
		src:      world.NewBlockSource(nil, logger),
		dirty:    make(map[world.SectionPos]struct{}),
		pending:  make(map[world.SectionPos]struct{}),
		failed:   make(map[world.ColumnPos]struct{}),
	}
}

// Run processes messages and ticks until ctx is cancelled.
func (w *MeshWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-w.inbox:
			w.handle(ctx, msg)
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *MeshWorker) handle(ctx context.Context, msg workerMsg) {
	switch m := msg.(type) {
	case versionMsg:
		w.version = m.Version
	case blockStatesMsg:
		w.table = m.Table
		w.src.SetTable(m.Table)
	case chunkMsg:
		col := world.ColumnPos{X: m.X, Z: m.Z}
		if err := w.src.LoadColumn(m.X, m.Z, m.Payload); err != nil {
			// The dispatcher already counted this column's keys
			// outstanding; they must still be acknowledged.
			w.failed[col] = struct{}{}
			w.resolveFailed(ctx, col)
			return
		}
		delete(w.failed, col)
		w.promotePending(ctx, col)
	case unloadChunkMsg:
		w.src.UnloadColumn(m.X, m.Z)
		delete(w.failed, world.ColumnPos{X: m.X, Z: m.Z})
	case blockUpdateMsg:
		// Ignored when the column is not loaded; a future full-column
		// load supersedes the update.
		w.src.SetBlockStateID(m.Pos, m.StateID)
	case dirtyMsg:
		w.markDirty(ctx, m.Pos, m.Value)
	case resetMsg:
		w.src = world.NewBlockSource(w.table, w.log)
		w.dirty = make(map[world.SectionPos]struct{})
		w.pending = make(map[world.SectionPos]struct{})
		w.failed = make(map[world.ColumnPos]struct{})
	}
}

// promotePending re-evaluates every pending key of a freshly arrived column:
// slices with block data become dirty, structurally empty ones finish with no
// geometry.
func (w *MeshWorker) promotePending(ctx context.Context, col world.ColumnPos) {
	for key := range w.pending {
		if key.Column() != col {
			continue
		}
		delete(w.pending, key)
		if w.sectionReady(key) {
			w.dirty[key] = struct{}{}
		} else {
			w.emitFinished(ctx, key)
		}
	}
}

// resolveFailed finishes every parked key of a column whose payload was
// rejected; nothing will mesh there until a good payload arrives.
func (w *MeshWorker) resolveFailed(ctx context.Context, col world.ColumnPos) {
	for key := range w.pending {
		if key.Column() != col {
			continue
		}
		delete(w.pending, key)
		w.emitFinished(ctx, key)
	}
}

func (w *MeshWorker) markDirty(ctx context.Context, key world.SectionPos, value bool) {
	if !value {
		// Cancellation clears any state and acknowledges immediately.
		delete(w.dirty, key)
		delete(w.pending, key)
		w.emitFinished(ctx, key)
		return
	}
	col := w.src.Column(key.Column())
	switch {
	case col == nil:
		delete(w.dirty, key)
		if _, bad := w.failed[key.Column()]; bad {
			w.emitFinished(ctx, key)
			return
		}
		w.pending[key] = struct{}{}
	case w.sectionReady(key):
		delete(w.pending, key)
		w.dirty[key] = struct{}{}
	default:
		// Column loaded but the slice has no block data: nothing will
		// ever mesh here, finish right away.
		delete(w.dirty, key)
		delete(w.pending, key)
		w.emitFinished(ctx, key)
	}
}

// sectionReady reports whether the key's column is loaded with block data at
// that vertical slice.
func (w *MeshWorker) sectionReady(key world.SectionPos) bool {
	col := w.src.Column(key.Column())
	return col != nil && col.SectionPresent(key.Y)
}

// tick drains the dirty set: every ready section is meshed and every
// attempted section is acknowledged, whether or not geometry came out. A
// panic in one section's generation is logged and must not stall the rest of
// the batch.
func (w *MeshWorker) tick(ctx context.Context) {
	if len(w.dirty) == 0 {
		return
	}
	defer profiling.Track("render.workerTick")()

	keys := make([]world.SectionPos, 0, len(w.dirty))
	for key := range w.dirty {
		keys = append(keys, key)
	}
	for _, key := range keys {
		delete(w.dirty, key)
		if w.sectionReady(key) {
			if g := w.generate(key); !g.Empty() {
				w.emit(ctx, workerResult{shard: w.id, key: key, geometry: g})
			}
		}
		w.emitFinished(ctx, key)
	}
}

func (w *MeshWorker) generate(key world.SectionPos) (g *mesher.Geometry) {
	defer func() {
		if r := recover(); r != nil {
			if w.log != nil {
				w.log.Printf("shard %d: section %v: mesher panic: %v", w.id, key, r)
			}
			g = nil
		}
	}()
	return w.gen.Generate(key, w.src, w.table)
}

func (w *MeshWorker) emitFinished(ctx context.Context, key world.SectionPos) {
	w.emit(ctx, workerResult{shard: w.id, key: key, finished: true})
}

func (w *MeshWorker) emit(ctx context.Context, res workerResult) {
	select {
	case w.results <- res:
	case <-ctx.Done():
	}
}
