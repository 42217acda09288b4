// Package scene keeps a population of renderable proxies in step with the
// drone simulation and handles pointer hover, click-to-expand and the info
// label of the expanded drones.
package scene

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/drone-simulator/model"
)

// Renderable is an opaque handle owned by the renderer. It carries only the
// drone ID; the controller keeps every other association in its side table.
type Renderable interface {
	DroneID() string
	Position() mgl64.Vec3
	SetPosition(mgl64.Vec3)
	Color() model.Color
	SetColor(model.Color)
	Visible() bool
	SetVisible(bool)
}

// MeshFactory builds a renderable for a drone's render kind.
type MeshFactory interface {
	NewMesh(droneID string, kind model.RenderKind, tint model.Color) Renderable
}

// SceneGraph is the set of renderables the renderer draws.
type SceneGraph interface {
	Add(Renderable)
	Remove(Renderable)
}

// Projector maps a geographic coordinate onto a render-space position.
type Projector interface {
	Project(model.GeoPoint) mgl64.Vec3
}

// HitTester finds the nearest candidate under a pointer given in
// normalized device coordinates.
type HitTester interface {
	Raycast(ndc mgl64.Vec2, candidates []Renderable) (Renderable, bool)
}

// Camera exposes the matrices used to project world positions to the
// screen.
type Camera interface {
	Projection() mgl64.Mat4
	View() mgl64.Mat4
}

// Renderer is everything the controller needs from the drawing side.
type Renderer interface {
	MeshFactory
	SceneGraph
	Projector
	HitTester
	Camera
	// SetPointerHint signals whether an interactive object is under the
	// pointer.
	SetPointerHint(bool)
}

// Label is an on-screen text box anchored at a pixel position.
type Label interface {
	SetText(string)
	SetPosition(x, y float64)
	Close()
}

// LabelLayer creates labels and reports the size of the container they
// are positioned in.
type LabelLayer interface {
	NewLabel() Label
	Size() (width, height float64)
}
