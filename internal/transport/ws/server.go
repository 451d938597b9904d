package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eastlondoner/prismarine-viewer/internal/mesher"
	"github.com/eastlondoner/prismarine-viewer/internal/protocol"
	"github.com/eastlondoner/prismarine-viewer/internal/render"
	"github.com/eastlondoner/prismarine-viewer/internal/world"
	"github.com/eastlondoner/prismarine-viewer/pkg/blockstates"
)

const (
	writeWait  = 5 * time.Second
	readWait   = 60 * time.Second
	clientBufs = 256
)

type Options struct {
	Logger *log.Logger
	// OnPosition receives viewpoint updates from connected viewers.
	OnPosition func(x, y, z float64)
}

// Server streams the world to websocket viewers. It doubles as the render
// Scene: attached geometry is broadcast live and cached so late-joining
// clients receive the current world on connect.
type Server struct {
	log        *log.Logger
	onPosition func(x, y, z float64)
	upgrader   websocket.Upgrader

	mu       sync.Mutex
	clients  map[*client]struct{}
	version  []byte
	states   []byte
	chunks   map[world.ColumnPos][]byte
	geoms    map[protocol.SectionKey][]byte
	entities map[world.Pos][]byte
}

type client struct {
	conn *websocket.Conn
	out  chan []byte
}

func NewServer(opts Options) *Server {
	return &Server{
		log:        opts.Logger,
		onPosition: opts.OnPosition,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		clients:  make(map[*client]struct{}),
		chunks:   make(map[world.ColumnPos][]byte),
		geoms:    make(map[protocol.SectionKey][]byte),
		entities: make(map[world.Pos][]byte),
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		c := &client{conn: conn}
		s.register(c)
		defer s.unregister(c)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for b := range c.out {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(readWait))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypePosition {
				continue
			}
			var pos protocol.PositionMsg
			if err := json.Unmarshal(msg, &pos); err != nil {
				continue
			}
			if s.onPosition != nil {
				s.onPosition(pos.X, pos.Y, pos.Z)
			}
		}
		<-done
	}
}

// register snapshots the current world into the new client's queue before it
// joins the broadcast set, so it never misses or double-sees an update. The
// queue is sized to hold the whole snapshot plus broadcast headroom.
func (s *Server) register(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var snap [][]byte
	if s.version != nil {
		snap = append(snap, s.version)
	}
	if s.states != nil {
		snap = append(snap, s.states)
	}
	for _, b := range s.chunks {
		snap = append(snap, b)
	}
	for _, b := range s.geoms {
		snap = append(snap, b)
	}
	for _, b := range s.entities {
		snap = append(snap, b)
	}
	c.out = make(chan []byte, len(snap)+clientBufs)
	for _, b := range snap {
		c.out <- b
	}
	s.clients[c] = struct{}{}
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.out)
	}
	s.mu.Unlock()
}

// broadcastLocked queues b on every client. A client that cannot keep up is
// dropped rather than stalling the pipeline.
func (s *Server) broadcastLocked(b []byte) {
	for c := range s.clients {
		select {
		case c.out <- b:
		default:
			if s.log != nil {
				s.log.Printf("ws: dropping slow viewer %s", c.conn.RemoteAddr())
			}
			delete(s.clients, c)
			close(c.out)
		}
	}
}

func marshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err) // all message types are marshalable
	}
	return b
}

// SetVersion resets the streamed world: caches are cleared and the new
// version and palette are announced.
func (s *Server) SetVersion(version string, table *blockstates.Table) {
	states := make([]protocol.BlockState, 0, table.Len())
	for _, st := range table.States() {
		states = append(states, protocol.BlockState{
			ID:          st.ID,
			Name:        st.Name,
			Cube:        st.Cube,
			Transparent: st.Transparent,
			Tint:        st.Tint,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = marshal(protocol.VersionMsg{Type: protocol.TypeVersion, Version: version})
	s.states = marshal(protocol.BlockStatesMsg{Type: protocol.TypeBlockStates, States: states})
	s.chunks = make(map[world.ColumnPos][]byte)
	s.geoms = make(map[protocol.SectionKey][]byte)
	s.entities = make(map[world.Pos][]byte)
	s.broadcastLocked(s.version)
	s.broadcastLocked(s.states)
}

func (s *Server) ChunkLoaded(x, z int) {
	b := marshal(protocol.ChunkLoadMsg{Type: protocol.TypeChunkLoad, X: x, Z: z})
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[world.ColumnPos{X: x, Z: z}] = b
	s.broadcastLocked(b)
}

func (s *Server) ChunkUnloaded(x, z int) {
	b := marshal(protocol.ChunkUnloadMsg{Type: protocol.TypeChunkUnload, X: x, Z: z})
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, world.ColumnPos{X: x, Z: z})
	for pos := range s.entities {
		if world.ColumnOf(pos) == (world.ColumnPos{X: x, Z: z}) {
			delete(s.entities, pos)
		}
	}
	s.broadcastLocked(b)
}

func (s *Server) BlockEntity(x, y, z int, name string, data json.RawMessage) {
	b := marshal(protocol.BlockEntityMsg{Type: protocol.TypeBlockEntity, X: x, Y: y, Z: z, Name: name, Data: data})
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[world.Pos{X: x, Y: y, Z: z}] = b
	s.broadcastLocked(b)
}

// SectionFinished announces that a section's latest redraw is complete.
// Not cached: it is a progress signal, not world state.
func (s *Server) SectionFinished(key world.SectionPos) {
	b := marshal(protocol.SectionFinishedMsg{Type: protocol.TypeSectionFinished, Key: sectionKey(key)})
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLocked(b)
}

// Attach implements render.Scene: the geometry is broadcast and cached under
// its section key for late joiners.
func (s *Server) Attach(key world.SectionPos, g *mesher.Geometry) render.Mesh {
	pk := sectionKey(key)
	b := marshal(geometryMsg(pk, g))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.geoms[pk] = b
	s.broadcastLocked(b)
	return pk
}

// Detach implements render.Scene: viewers clear the slot on empty buffers.
func (s *Server) Detach(m render.Mesh) {
	pk := m.(protocol.SectionKey)
	b := marshal(emptyGeometryMsg(pk))
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.geoms, pk)
	s.broadcastLocked(b)
}

// Dispose implements render.Scene. Buffers live on the client side; nothing
// is held here once the slot is cleared.
func (s *Server) Dispose(render.Mesh) {}

func sectionKey(key world.SectionPos) protocol.SectionKey {
	return protocol.SectionKey{X: key.X, Y: key.Y, Z: key.Z}
}

func geometryMsg(key protocol.SectionKey, g *mesher.Geometry) protocol.GeometryMsg {
	if g.Empty() {
		return emptyGeometryMsg(key)
	}
	return protocol.GeometryMsg{
		Type:      protocol.TypeGeometry,
		Key:       key,
		Positions: g.Positions,
		Normals:   g.Normals,
		Colors:    g.Colors,
		UVs:       g.UVs,
		Indices:   g.Indices,
	}
}

func emptyGeometryMsg(key protocol.SectionKey) protocol.GeometryMsg {
	return protocol.GeometryMsg{
		Type:      protocol.TypeGeometry,
		Key:       key,
		Positions: []float32{},
		Normals:   []float32{},
		Colors:    []float32{},
		UVs:       []float32{},
		Indices:   []uint32{},
	}
}
