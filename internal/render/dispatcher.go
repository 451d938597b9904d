package render

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/eastlondoner/prismarine-viewer/internal/mesher"
	"github.com/eastlondoner/prismarine-viewer/internal/world"
	"github.com/eastlondoner/prismarine-viewer/pkg/blockstates"
)

// Options configures a Dispatcher.
type Options struct {
	Workers      int           // number of shards, fixed for the dispatcher's lifetime
	TickInterval time.Duration // worker meshing cadence
	MinY         int           // default vertical extent when a payload carries none
	WorldHeight  int
	Scene        Scene
	Mesher       mesher.SectionMesher
	Table        *blockstates.Table
	Logger       *log.Logger
	// OnSectionFinished, when set, is called after a section's redraw has
	// been acknowledged. Invoked from the dispatch loop; keep it cheap.
	OnSectionFinished func(world.SectionPos)
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.Workers <= 0 {
		out.Workers = 4
	}
	if out.TickInterval <= 0 {
		out.TickInterval = 50 * time.Millisecond
	}
	if out.WorldHeight <= 0 {
		out.WorldHeight = 256
	}
	if out.Scene == nil {
		out.Scene = NullScene{}
	}
	if out.Mesher == nil {
		out.Mesher = mesher.CulledMesher{}
	}
	return out
}

// Dispatcher routes world updates to a fixed set of mesh workers and
// reassembles their geometry into the displayed-mesh table. Each section key
// is owned by exactly one shard, chosen by a deterministic spatial hash, so
// no two shards ever produce the same mesh.
type Dispatcher struct {
	opts    Options
	workers []*MeshWorker
	results chan workerResult
	scene   Scene
	log     *log.Logger

	mu          sync.Mutex
	version     string
	table       *blockstates.Table
	loaded      map[world.ColumnPos]columnExtent
	displayed   map[world.SectionPos]Mesh
	outstanding map[world.SectionPos]struct{}
	waiters     []chan struct{}

	copyNote sync.Once
}

// NewDispatcher builds the dispatcher and its workers. Run must be called
// before any columns are added.
func NewDispatcher(opts Options) *Dispatcher {
	o := opts.withDefaults()
	d := &Dispatcher{
		opts:        o,
		results:     make(chan workerResult, 1024),
		scene:       o.Scene,
		log:         o.Logger,
		table:       o.Table,
		loaded:      make(map[world.ColumnPos]columnExtent),
		displayed:   make(map[world.SectionPos]Mesh),
		outstanding: make(map[world.SectionPos]struct{}),
	}
	for i := 0; i < o.Workers; i++ {
		d.workers = append(d.workers, newMeshWorker(i, d.results, o.Mesher, o.TickInterval, o.Logger))
	}
	if o.Table != nil {
		// Inboxes are buffered, so this parks until Run starts the workers.
		d.broadcast(blockStatesMsg{Table: o.Table})
	}
	return d
}

// shardFor routes a section to its owning worker: a pure hash of the
// section's chunk-grid coordinates, stable across runs and restarts.
func (d *Dispatcher) shardFor(key world.SectionPos) int {
	sum := key.X/world.SectionSize + key.Y/world.SectionSize + key.Z/world.SectionSize
	m := sum % len(d.workers)
	if m < 0 {
		m += len(d.workers)
	}
	return m
}

// Run starts the workers and consumes their results until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(w *MeshWorker) {
			defer wg.Done()
			w.Run(ctx)
		}(w)
	}
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case res := <-d.results:
			if res.finished {
				d.sectionFinished(res.key)
			} else {
				d.installGeometry(res.key, res.geometry)
			}
		}
	}
}

// installGeometry swaps the displayed mesh for a key. Geometry for a column
// unloaded in the interim is discarded silently: that race is expected.
func (d *Dispatcher) installGeometry(key world.SectionPos, g *mesher.Geometry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.loaded[key.Column()]; !ok {
		return
	}
	if old, ok := d.displayed[key]; ok {
		d.scene.Detach(old)
		d.scene.Dispose(old)
	}
	d.displayed[key] = d.scene.Attach(key, g)
}

// sectionFinished drains the outstanding set and wakes waiters when the
// render is fully caught up.
func (d *Dispatcher) sectionFinished(key world.SectionPos) {
	d.mu.Lock()
	delete(d.outstanding, key)
	if len(d.outstanding) == 0 {
		d.notifyWaitersLocked()
	}
	d.mu.Unlock()
	if d.opts.OnSectionFinished != nil {
		d.opts.OnSectionFinished(key)
	}
}

func (d *Dispatcher) notifyWaitersLocked() {
	for _, ch := range d.waiters {
		close(ch)
	}
	d.waiters = nil
}

// broadcast sends a message to every shard, outside the state lock.
func (d *Dispatcher) broadcast(msg workerMsg) {
	for _, w := range d.workers {
		w.inbox <- msg
	}
}

func (d *Dispatcher) send(shard int, msg workerMsg) {
	d.workers[shard].inbox <- msg
}

// SetVersion is the only full-reset path: all shard state and displayed
// meshes are dropped, then version and block-state metadata are rebroadcast.
func (d *Dispatcher) SetVersion(version string, table *blockstates.Table) {
	d.mu.Lock()
	d.version = version
	d.table = table
	d.loaded = make(map[world.ColumnPos]columnExtent)
	d.outstanding = make(map[world.SectionPos]struct{})
	d.notifyWaitersLocked()
	old := d.displayed
	d.displayed = make(map[world.SectionPos]Mesh)
	d.mu.Unlock()

	for _, m := range old {
		d.scene.Detach(m)
		d.scene.Dispose(m)
	}
	d.broadcast(resetMsg{})
	d.broadcast(versionMsg{Version: version})
	d.broadcast(blockStatesMsg{Table: table})
}

// Version returns the currently broadcast version string.
func (d *Dispatcher) Version() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.version
}

// columnExtent is the vertical extent a column arrived with, recorded in the
// loaded set so unload sweeps the same sections that load dirtied.
type columnExtent struct {
	minY, worldHeight int
}

// sections enumerates the column's section keys over the extent, bottom-up.
func (e columnExtent) sections(col world.ColumnPos) []world.SectionPos {
	out := make([]world.SectionPos, 0, e.worldHeight/world.SectionSize)
	for y := e.minY; y < e.minY+e.worldHeight; y += world.SectionSize {
		out = append(out, world.SectionPos{X: col.X * world.SectionSize, Y: y, Z: col.Z * world.SectionSize})
	}
	return out
}

// AddColumn installs column data: the payload is broadcast to every shard
// (with its buffer copied so no shard aliases the caller's backing store) and
// every section of the column plus its four horizontal neighbors is marked
// dirty, so boundary faces are re-culled once a neighbor appears. Each column
// is dirtied over its own extent, taken from the payload when it carries one.
func (d *Dispatcher) AddColumn(x, z int, payload *world.ColumnPayload) {
	owned := payload.Owned()
	if owned != payload {
		d.copyNote.Do(func() {
			if d.log != nil {
				d.log.Printf("copying buffer payloads before shard broadcast")
			}
		})
	}

	ext := columnExtent{minY: d.opts.MinY, worldHeight: d.opts.WorldHeight}
	if minY, worldHeight, ok := owned.Extent(); ok {
		ext = columnExtent{minY: minY, worldHeight: worldHeight}
	}

	pos := world.ColumnPos{X: x, Z: z}
	d.mu.Lock()
	d.loaded[pos] = ext
	dirty := ext.sections(pos)
	for _, delta := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
		np := world.ColumnPos{X: x + delta[0], Z: z + delta[1]}
		if next, ok := d.loaded[np]; ok {
			dirty = append(dirty, next.sections(np)...)
		}
	}
	d.mu.Unlock()

	d.broadcast(chunkMsg{X: x, Z: z, Payload: owned})
	for _, key := range dirty {
		d.SetSectionDirty(key, true)
	}
}

// RemoveColumn unloads a column: shards drop their mirrors and every section
// of the column is cancelled over its recorded extent. The displayed table is
// swept by column key, so a mesh is disposed even if its section lies outside
// the configured default extent.
func (d *Dispatcher) RemoveColumn(x, z int) {
	pos := world.ColumnPos{X: x, Z: z}
	d.mu.Lock()
	ext, ok := d.loaded[pos]
	if !ok {
		ext = columnExtent{minY: d.opts.MinY, worldHeight: d.opts.WorldHeight}
	}
	delete(d.loaded, pos)
	var drop []Mesh
	for key, m := range d.displayed {
		if key.Column() == pos {
			drop = append(drop, m)
			delete(d.displayed, key)
		}
	}
	d.mu.Unlock()

	for _, m := range drop {
		d.scene.Detach(m)
		d.scene.Dispose(m)
	}
	d.broadcast(unloadChunkMsg{X: x, Z: z})
	for _, key := range ext.sections(pos) {
		d.SetSectionDirty(key, false)
	}
}

// SetBlockStateID broadcasts a single-block change (each shard applies it
// only if it owns the column) and dirties the containing section plus any
// face-adjacent section when the block sits on a section boundary.
func (d *Dispatcher) SetBlockStateID(pos world.Pos, stateID uint32) {
	d.broadcast(blockUpdateMsg{Pos: pos, StateID: stateID})

	sec := world.SectionOf(pos)
	d.SetSectionDirty(sec, true)
	for _, n := range boundaryNeighbors(pos, sec) {
		d.SetSectionDirty(n, true)
	}
}

// boundaryNeighbors returns the sections sharing the faces that pos touches:
// at most 3, one per axis whose local coordinate is 0 or 15.
func boundaryNeighbors(pos world.Pos, sec world.SectionPos) []world.SectionPos {
	var out []world.SectionPos
	axes := [3]struct{ local, axis int }{
		{pos.X - sec.X, 0},
		{pos.Y - sec.Y, 1},
		{pos.Z - sec.Z, 2},
	}
	for _, a := range axes {
		step := 0
		switch a.local {
		case 0:
			step = -world.SectionSize
		case world.SectionSize - 1:
			step = world.SectionSize
		default:
			continue
		}
		n := sec
		switch a.axis {
		case 0:
			n.X += step
		case 1:
			n.Y += step
		case 2:
			n.Z += step
		}
		out = append(out, n)
	}
	return out
}

// SetSectionDirty routes a dirty instruction to the owning shard. value=true
// is dropped for columns outside the loaded set (nothing to mesh, and the
// shard could never resolve it); value=false always goes through so
// cancellations reach parked pending keys.
func (d *Dispatcher) SetSectionDirty(key world.SectionPos, value bool) {
	if value {
		d.mu.Lock()
		if _, ok := d.loaded[key.Column()]; !ok {
			d.mu.Unlock()
			return
		}
		d.outstanding[key] = struct{}{}
		d.mu.Unlock()
	}
	d.send(d.shardFor(key), dirtyMsg{Pos: key, Value: value})
}

// Outstanding returns the number of sections awaiting acknowledgement.
func (d *Dispatcher) Outstanding() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.outstanding)
}

// DisplayedCount returns the number of meshes currently attached.
func (d *Dispatcher) DisplayedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.displayed)
}

// WaitForRenderComplete blocks until every outstanding section has been
// acknowledged. Returns immediately when the render is already caught up.
// Safe for multiple concurrent and sequential waiters.
func (d *Dispatcher) WaitForRenderComplete(ctx context.Context) error {
	d.mu.Lock()
	if len(d.outstanding) == 0 {
		d.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	d.waiters = append(d.waiters, ch)
	d.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
