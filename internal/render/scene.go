package render

import (
	"github.com/eastlondoner/prismarine-viewer/internal/mesher"
	"github.com/eastlondoner/prismarine-viewer/internal/world"
)

// Mesh is an opaque handle to geometry installed in a scene.
type Mesh any

// Scene is the display surface consumed by the dispatcher. Attach converts
// geometry into a displayable mesh and takes ownership of its buffers;
// Detach removes a mesh from display; Dispose releases its resources.
// Detach and Dispose are always called in that order and exactly once per
// attached mesh.
type Scene interface {
	Attach(key world.SectionPos, g *mesher.Geometry) Mesh
	Detach(m Mesh)
	Dispose(m Mesh)
}

// NullScene discards all geometry. Useful for headless runs and tests.
type NullScene struct{}

func (NullScene) Attach(key world.SectionPos, g *mesher.Geometry) Mesh { return key }
func (NullScene) Detach(m Mesh)                                        {}
func (NullScene) Dispose(m Mesh)                                       {}
