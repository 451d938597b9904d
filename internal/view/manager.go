package view

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/eastlondoner/prismarine-viewer/internal/world"
)

// ColumnSource supplies serialized column data for the tracked world.
// ColumnAt returns (nil, nil) when no data exists at that coordinate.
type ColumnSource interface {
	ColumnAt(pos world.ColumnPos) (*world.ColumnPayload, error)
}

// LoadEvent announces that a column entered the view and carries its payload.
type LoadEvent struct {
	Pos     world.ColumnPos
	Payload *world.ColumnPayload
}

// UnloadEvent announces that a column left the view.
type UnloadEvent struct {
	Pos world.ColumnPos
}

// BlockEntityEvent announces a block entity of interest inside a freshly
// loaded column. Pos is in world coordinates.
type BlockEntityEvent struct {
	Pos  world.Pos
	Name string
	Data json.RawMessage
}

// BlockUpdateEvent announces a single-block change inside a loaded column.
type BlockUpdateEvent struct {
	Pos     world.Pos
	StateID uint32
}

// Options tunes a Manager. Zero values pick the defaults below.
type Options struct {
	ViewDistance int           // in chunks
	SliceSize    int           // columns fetched per burst
	SliceDelay   time.Duration // pause between bursts
	Logger       *log.Logger

	// Interesting classifies block-entity names worth emitting.
	// Defaults to sign-like blocks.
	Interesting func(name string) bool
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.ViewDistance <= 0 {
		out.ViewDistance = 4
	}
	if out.SliceSize <= 0 {
		out.SliceSize = 5
	}
	if out.SliceDelay == 0 {
		out.SliceDelay = 50 * time.Millisecond
	}
	if out.Interesting == nil {
		out.Interesting = func(name string) bool { return strings.Contains(name, "sign") }
	}
	return out
}

// Manager tracks one viewpoint and keeps the set of loaded columns matched to
// the view distance, loading in spiral order and in bounded slices so a burst
// of movement cannot saturate the column source.
type Manager struct {
	source ColumnSource
	aux    *world.BlockSource // controller-side mirror for name lookups
	opts   Options
	log    *log.Logger

	mu          sync.Mutex
	initialized bool
	pos         mgl32.Vec3
	cellX       int
	cellZ       int
	loaded      map[world.ColumnPos]struct{}

	loads         chan LoadEvent
	unloads       chan UnloadEvent
	blockEntities chan BlockEntityEvent
	blockUpdates  chan BlockUpdateEvent
}

// NewManager creates a view manager over a column source. aux is the
// controller-side BlockSource used to classify block entities by name.
func NewManager(source ColumnSource, aux *world.BlockSource, opts Options) *Manager {
	o := opts.withDefaults()
	return &Manager{
		source:        source,
		aux:           aux,
		opts:          o,
		log:           o.Logger,
		loaded:        make(map[world.ColumnPos]struct{}),
		loads:         make(chan LoadEvent, 256),
		unloads:       make(chan UnloadEvent, 256),
		blockEntities: make(chan BlockEntityEvent, 64),
		blockUpdates:  make(chan BlockUpdateEvent, 256),
	}
}

// Loads delivers one event per column load, in load order.
func (m *Manager) Loads() <-chan LoadEvent { return m.loads }

// Unloads delivers one event per column unload.
func (m *Manager) Unloads() <-chan UnloadEvent { return m.unloads }

// BlockEntities delivers classified block entities from loaded columns.
func (m *Manager) BlockEntities() <-chan BlockEntityEvent { return m.blockEntities }

// BlockUpdates delivers single-block changes applied via NotifyBlockChange.
func (m *Manager) BlockUpdates() <-chan BlockUpdateEvent { return m.blockUpdates }

// IsLoaded reports whether a load event was emitted for pos with no unload
// following it.
func (m *Manager) IsLoaded(pos world.ColumnPos) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.loaded[pos]
	return ok
}

// LoadedCount returns the size of the loaded set.
func (m *Manager) LoadedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.loaded)
}

func chunkCell(pos mgl32.Vec3) (int, int) {
	cx := int(math.Floor(float64(pos.X()))) >> 4
	cz := int(math.Floor(float64(pos.Z()))) >> 4
	return cx, cz
}

// Init starts tracking at the given position and loads the surrounding
// columns in spiral order. Blocks until the initial load pass completes or
// ctx is cancelled.
func (m *Manager) Init(ctx context.Context, pos mgl32.Vec3) error {
	m.mu.Lock()
	m.initialized = true
	m.pos = pos
	m.cellX, m.cellZ = chunkCell(pos)
	order := SpiralOrder(world.ColumnPos{X: m.cellX, Z: m.cellZ}, m.opts.ViewDistance)
	m.mu.Unlock()

	return m.loadSlices(ctx, order)
}

// UpdatePosition moves the tracked viewpoint. When the chunk cell is
// unchanged and force is false only the position is updated; otherwise
// columns outside the new view square are unloaded and missing ones loaded,
// nearest first. The load pass runs on the calling goroutine.
func (m *Manager) UpdatePosition(ctx context.Context, pos mgl32.Vec3, force bool) error {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return m.Init(ctx, pos)
	}
	cx, cz := chunkCell(pos)
	m.pos = pos
	if cx == m.cellX && cz == m.cellZ && !force {
		m.mu.Unlock()
		return nil
	}
	m.cellX, m.cellZ = cx, cz

	var toUnload []world.ColumnPos
	for pos := range m.loaded {
		if !inView(cx, cz, m.opts.ViewDistance, pos) {
			toUnload = append(toUnload, pos)
		}
	}
	order := SpiralOrder(world.ColumnPos{X: cx, Z: cz}, m.opts.ViewDistance)
	m.mu.Unlock()

	for _, p := range toUnload {
		if err := m.unloadColumn(ctx, p); err != nil {
			return err
		}
	}
	return m.loadSlices(ctx, order)
}

// loadSlices fetches columns in bounded bursts with a delay between bursts.
// The delay is a rate limit on the column source, not a correctness
// mechanism.
func (m *Manager) loadSlices(ctx context.Context, order []world.ColumnPos) error {
	for i := 0; i < len(order); i += m.opts.SliceSize {
		end := i + m.opts.SliceSize
		if end > len(order) {
			end = len(order)
		}
		for _, pos := range order[i:end] {
			if err := m.loadColumn(ctx, pos); err != nil {
				return err
			}
		}
		if end < len(order) && m.opts.SliceDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.opts.SliceDelay):
			}
		}
	}
	return nil
}

// loadColumn fetches and emits one column. Requests that raced behind a
// moving viewpoint are dropped: the coordinate must still be in view of the
// current tracked cell at dispatch time.
func (m *Manager) loadColumn(ctx context.Context, pos world.ColumnPos) error {
	m.mu.Lock()
	if _, ok := m.loaded[pos]; ok {
		m.mu.Unlock()
		return nil
	}
	if !inView(m.cellX, m.cellZ, m.opts.ViewDistance, pos) {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	payload, err := m.source.ColumnAt(pos)
	if err != nil {
		if m.log != nil {
			m.log.Printf("column %d,%d: fetch failed: %v", pos.X, pos.Z, err)
		}
		return nil
	}
	if payload == nil {
		return nil
	}

	m.mu.Lock()
	if _, ok := m.loaded[pos]; ok {
		m.mu.Unlock()
		return nil // a concurrent pass got here first
	}
	if !inView(m.cellX, m.cellZ, m.opts.ViewDistance, pos) {
		m.mu.Unlock()
		return nil // viewpoint moved away while fetching
	}
	m.loaded[pos] = struct{}{}
	m.mu.Unlock()

	if m.aux != nil {
		_ = m.aux.LoadColumn(pos.X, pos.Z, payload)
	}

	select {
	case m.loads <- LoadEvent{Pos: pos, Payload: payload}:
	case <-ctx.Done():
		return ctx.Err()
	}
	return m.emitBlockEntities(ctx, pos)
}

func (m *Manager) emitBlockEntities(ctx context.Context, pos world.ColumnPos) error {
	if m.aux == nil {
		return nil
	}
	col := m.aux.Column(pos)
	if col == nil {
		return nil
	}
	for local, data := range col.BlockEntities() {
		worldPos := world.Pos{
			X: pos.X*world.SectionSize + local.X,
			Y: local.Y,
			Z: pos.Z*world.SectionSize + local.Z,
		}
		b := m.aux.GetBlock(worldPos)
		if b == nil || !m.opts.Interesting(b.Name) {
			continue
		}
		select {
		case m.blockEntities <- BlockEntityEvent{Pos: worldPos, Name: b.Name, Data: data}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *Manager) unloadColumn(ctx context.Context, pos world.ColumnPos) error {
	m.mu.Lock()
	if _, ok := m.loaded[pos]; !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.loaded, pos)
	m.mu.Unlock()

	if m.aux != nil {
		m.aux.UnloadColumn(pos.X, pos.Z)
	}
	select {
	case m.unloads <- UnloadEvent{Pos: pos}:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// NotifyBlockChange applies a single-block change coming from the world and
// forwards it to subscribers. Changes in unloaded columns are ignored; a
// future full-column load supersedes them.
func (m *Manager) NotifyBlockChange(ctx context.Context, pos world.Pos, stateID uint32) error {
	if !m.IsLoaded(world.ColumnOf(pos)) {
		return nil
	}
	if m.aux != nil {
		m.aux.SetBlockStateID(pos, stateID)
	}
	select {
	case m.blockUpdates <- BlockUpdateEvent{Pos: pos, StateID: stateID}:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
