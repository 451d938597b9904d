package view

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/eastlondoner/prismarine-viewer/internal/world"
	"github.com/eastlondoner/prismarine-viewer/pkg/blockstates"
)

// fakeSource serves a flat one-section column for every coordinate and
// records how many times each was requested.
type fakeSource struct {
	mu       sync.Mutex
	requests map[world.ColumnPos]int
	entities map[string]json.RawMessage
}

func newFakeSource() *fakeSource {
	return &fakeSource{requests: make(map[world.ColumnPos]int)}
}

func (f *fakeSource) ColumnAt(pos world.ColumnPos) (*world.ColumnPayload, error) {
	f.mu.Lock()
	f.requests[pos]++
	f.mu.Unlock()

	blocks := make([]uint32, world.SectionVolume)
	for i := range blocks {
		blocks[i] = 1
	}
	doc := map[string]any{
		"minY":        0,
		"worldHeight": 64,
		"sections":    []map[string]any{{"y": 0, "blocks": blocks}},
	}
	if f.entities != nil {
		doc["blockEntities"] = f.entities
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return &world.ColumnPayload{Format: world.FormatJSON, Data: raw}, nil
}

func (f *fakeSource) requestCount(pos world.ColumnPos) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[pos]
}

func testManager(src ColumnSource) *Manager {
	aux := world.NewBlockSource(blockstates.Builtin(), nil)
	return NewManager(src, aux, Options{ViewDistance: 2, SliceSize: 4, SliceDelay: -1})
}

func drainLoads(m *Manager) []LoadEvent {
	var out []LoadEvent
	for {
		select {
		case ev := <-m.Loads():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func drainUnloads(m *Manager) []UnloadEvent {
	var out []UnloadEvent
	for {
		select {
		case ev := <-m.Unloads():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestInitLoadsViewSquare(t *testing.T) {
	src := newFakeSource()
	m := testManager(src)

	if err := m.Init(context.Background(), mgl32.Vec3{0, 64, 0}); err != nil {
		t.Fatalf("init: %v", err)
	}

	loads := drainLoads(m)
	if len(loads) != 16 {
		t.Fatalf("got %d load events, want 16", len(loads))
	}
	if m.LoadedCount() != 16 {
		t.Fatalf("loaded set has %d entries, want 16", m.LoadedCount())
	}
	for pos, n := range src.requests {
		if n != 1 {
			t.Fatalf("column %v requested %d times, want 1", pos, n)
		}
	}
}

func TestUpdateSameCellIsCheap(t *testing.T) {
	src := newFakeSource()
	m := testManager(src)
	ctx := context.Background()

	if err := m.Init(ctx, mgl32.Vec3{0, 64, 0}); err != nil {
		t.Fatalf("init: %v", err)
	}
	drainLoads(m)

	// Move within the same chunk cell: no loads, no unloads.
	if err := m.UpdatePosition(ctx, mgl32.Vec3{8, 70, 8}, false); err != nil {
		t.Fatalf("update: %v", err)
	}
	if n := len(drainLoads(m)); n != 0 {
		t.Fatalf("same-cell move produced %d loads", n)
	}
	if n := len(drainUnloads(m)); n != 0 {
		t.Fatalf("same-cell move produced %d unloads", n)
	}
}

func TestUpdateMovesViewSquare(t *testing.T) {
	src := newFakeSource()
	m := testManager(src)
	ctx := context.Background()

	if err := m.Init(ctx, mgl32.Vec3{0, 64, 0}); err != nil {
		t.Fatalf("init: %v", err)
	}
	drainLoads(m)

	// Jump far enough that the view squares do not overlap.
	if err := m.UpdatePosition(ctx, mgl32.Vec3{160, 64, 0}, false); err != nil {
		t.Fatalf("update: %v", err)
	}

	unloads := drainUnloads(m)
	if len(unloads) != 16 {
		t.Fatalf("got %d unloads, want 16", len(unloads))
	}
	loads := drainLoads(m)
	if len(loads) != 16 {
		t.Fatalf("got %d loads after move, want 16", len(loads))
	}
	if m.LoadedCount() != 16 {
		t.Fatalf("loaded set has %d entries, want 16", m.LoadedCount())
	}
	if !m.IsLoaded(world.ColumnPos{X: 10, Z: 0}) {
		t.Fatal("new center column not loaded")
	}
	if m.IsLoaded(world.ColumnPos{X: 0, Z: 0}) {
		t.Fatal("old center column still loaded")
	}
}

func TestOverlappingMoveSkipsLoadedColumns(t *testing.T) {
	src := newFakeSource()
	m := testManager(src)
	ctx := context.Background()

	if err := m.Init(ctx, mgl32.Vec3{0, 64, 0}); err != nil {
		t.Fatalf("init: %v", err)
	}
	drainLoads(m)

	// One cell east: the squares share 12 columns.
	if err := m.UpdatePosition(ctx, mgl32.Vec3{16, 64, 0}, false); err != nil {
		t.Fatalf("update: %v", err)
	}
	if n := len(drainUnloads(m)); n != 4 {
		t.Fatalf("got %d unloads, want 4", n)
	}
	if n := len(drainLoads(m)); n != 4 {
		t.Fatalf("got %d loads, want 4", n)
	}
	// Shared columns were not re-requested.
	if n := src.requestCount(world.ColumnPos{X: 0, Z: 0}); n != 1 {
		t.Fatalf("shared column requested %d times, want 1", n)
	}
}

func TestForcedUpdateReloadsMissing(t *testing.T) {
	src := newFakeSource()
	m := testManager(src)
	ctx := context.Background()

	if err := m.Init(ctx, mgl32.Vec3{0, 64, 0}); err != nil {
		t.Fatalf("init: %v", err)
	}
	drainLoads(m)

	if err := m.UpdatePosition(ctx, mgl32.Vec3{1, 64, 1}, true); err != nil {
		t.Fatalf("forced update: %v", err)
	}
	// Everything already loaded: the forced pass emits nothing new.
	if n := len(drainLoads(m)); n != 0 {
		t.Fatalf("forced update produced %d loads", n)
	}
}

func TestBlockEntityClassification(t *testing.T) {
	src := newFakeSource()
	src.entities = map[string]json.RawMessage{
		"3,10,7": json.RawMessage(`{"Text1":"hi"}`),
	}
	aux := world.NewBlockSource(blockstates.Builtin(), nil)
	m := NewManager(src, aux, Options{ViewDistance: 1, SliceSize: 4, SliceDelay: -1})
	ctx := context.Background()

	if err := m.Init(ctx, mgl32.Vec3{0, 64, 0}); err != nil {
		t.Fatalf("init: %v", err)
	}
	// The flat column is stone everywhere, so the entity's block is not
	// sign-like and must be filtered out.
	select {
	case ev := <-m.BlockEntities():
		t.Fatalf("unexpected block entity event %+v", ev)
	default:
	}

	// Turn the entity position into a sign and re-run classification.
	drainLoads(m)
	aux.SetBlockStateID(world.Pos{X: 3, Y: 10, Z: 7}, 7)
	if err := m.emitBlockEntities(ctx, world.ColumnPos{X: 0, Z: 0}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	select {
	case ev := <-m.BlockEntities():
		if ev.Name != "oak_sign" || ev.Pos != (world.Pos{X: 3, Y: 10, Z: 7}) {
			t.Fatalf("got %+v, want oak_sign at 3,10,7", ev)
		}
	default:
		t.Fatal("no block entity event for sign")
	}
}

func TestNotifyBlockChange(t *testing.T) {
	src := newFakeSource()
	m := testManager(src)
	ctx := context.Background()

	// Before any load: silently ignored.
	if err := m.NotifyBlockChange(ctx, world.Pos{X: 0, Y: 5, Z: 0}, 2); err != nil {
		t.Fatalf("notify: %v", err)
	}
	select {
	case ev := <-m.BlockUpdates():
		t.Fatalf("update for unloaded column: %+v", ev)
	default:
	}

	if err := m.Init(ctx, mgl32.Vec3{0, 64, 0}); err != nil {
		t.Fatalf("init: %v", err)
	}
	drainLoads(m)

	if err := m.NotifyBlockChange(ctx, world.Pos{X: 0, Y: 5, Z: 0}, 2); err != nil {
		t.Fatalf("notify: %v", err)
	}
	select {
	case ev := <-m.BlockUpdates():
		if ev.StateID != 2 {
			t.Fatalf("got state %d, want 2", ev.StateID)
		}
	default:
		t.Fatal("no block update event")
	}
}
