package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/eastlondoner/prismarine-viewer/internal/config"
	"github.com/eastlondoner/prismarine-viewer/internal/profiling"
	"github.com/eastlondoner/prismarine-viewer/internal/render"
	"github.com/eastlondoner/prismarine-viewer/internal/transport/ws"
	"github.com/eastlondoner/prismarine-viewer/internal/view"
	"github.com/eastlondoner/prismarine-viewer/internal/world"
	"github.com/eastlondoner/prismarine-viewer/internal/worldgen"
	"github.com/eastlondoner/prismarine-viewer/pkg/blockstates"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "viewer.yaml path (empty for defaults)")
		addr    = flag.String("addr", "", "override listen address")
		seed    = flag.Int64("seed", 0, "override world seed")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[viewer] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}

	table := blockstates.Builtin()
	if cfg.BlockStatesPath != "" {
		table, err = blockstates.Load(cfg.BlockStatesPath)
		if err != nil {
			logger.Fatalf("block states: %v", err)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	positions := make(chan mgl32.Vec3, 16)
	server := ws.NewServer(ws.Options{
		Logger: logger,
		OnPosition: func(x, y, z float64) {
			select {
			case positions <- mgl32.Vec3{float32(x), float32(y), float32(z)}:
			default: // tracker is behind, newer positions win
			}
		},
	})

	dispatcher := render.NewDispatcher(render.Options{
		Workers:           cfg.Workers,
		TickInterval:      cfg.TickDuration(),
		MinY:              cfg.MinY,
		WorldHeight:       cfg.WorldHeight,
		Scene:             server,
		Table:             table,
		Logger:            logger,
		OnSectionFinished: server.SectionFinished,
	})
	go dispatcher.Run(ctx)
	dispatcher.SetVersion(cfg.Version, table)
	server.SetVersion(cfg.Version, table)

	gen := worldgen.New(cfg.Seed, cfg.MinY, cfg.WorldHeight)
	aux := world.NewBlockSource(table, logger)
	manager := view.NewManager(gen, aux, view.Options{
		ViewDistance: cfg.ViewDistance,
		SliceSize:    cfg.LoadSliceSize,
		SliceDelay:   cfg.SliceDelay(),
		Logger:       logger,
	})

	go pumpViewEvents(ctx, manager, dispatcher, server)
	go trackViewpoint(ctx, manager, gen, positions, logger)
	go logProfile(ctx, logger)

	mux := http.NewServeMux()
	mux.Handle("/ws", server.Handler())
	if cfg.AssetsPath != "" {
		mux.Handle("/", http.FileServer(http.Dir(cfg.AssetsPath)))
	}
	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Printf("serving world seed=%d version=%s on %s", cfg.Seed, cfg.Version, cfg.ListenAddr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("http: %v", err)
	}
}

// pumpViewEvents bridges the view manager's event streams into the meshing
// pipeline and the outward websocket surface.
func pumpViewEvents(ctx context.Context, manager *view.Manager, dispatcher *render.Dispatcher, server *ws.Server) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-manager.Loads():
			dispatcher.AddColumn(ev.Pos.X, ev.Pos.Z, ev.Payload)
			server.ChunkLoaded(ev.Pos.X, ev.Pos.Z)
		case ev := <-manager.Unloads():
			dispatcher.RemoveColumn(ev.Pos.X, ev.Pos.Z)
			server.ChunkUnloaded(ev.Pos.X, ev.Pos.Z)
		case ev := <-manager.BlockEntities():
			server.BlockEntity(ev.Pos.X, ev.Pos.Y, ev.Pos.Z, ev.Name, ev.Data)
		case ev := <-manager.BlockUpdates():
			dispatcher.SetBlockStateID(ev.Pos, ev.StateID)
		}
	}
}

// trackViewpoint performs the initial spiral load around spawn and then
// follows viewer position updates.
func trackViewpoint(ctx context.Context, manager *view.Manager, gen *worldgen.Generator, positions <-chan mgl32.Vec3, logger *log.Logger) {
	spawn := mgl32.Vec3{8, float32(gen.HeightAt(8, 8) + 2), 8}
	if err := manager.Init(ctx, spawn); err != nil && ctx.Err() == nil {
		logger.Printf("initial load: %v", err)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-positions:
			if err := manager.UpdatePosition(ctx, p, false); err != nil && ctx.Err() == nil {
				logger.Printf("view update: %v", err)
			}
		}
	}
}

func logProfile(ctx context.Context, logger *log.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s := profiling.Summary(5); s != "" {
				logger.Printf("hot paths: %s", s)
			}
			profiling.Reset()
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
