// Package render is a small software renderer: meshes in a local Y-up frame
// anchored at a geographic point, a perspective camera, ray picking and an
// in-memory label layer. Frontends draw from it.
package render

import (
	"math"
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/drone-simulator/model"
)

// MeshSizeM is the edge length (box) or radius (sphere, tetrahedron) of a
// drone mesh in metres.
const MeshSizeM = 1000.0

// Mesh is a drone primitive placed in render space.
type Mesh struct {
	id      string
	kind    model.RenderKind
	pos     mgl64.Vec3
	color   model.Color
	visible bool
}

// NewMesh builds a visible mesh at the origin.
func NewMesh(droneID string, kind model.RenderKind, tint model.Color) *Mesh {
	return &Mesh{id: droneID, kind: kind, color: tint, visible: true}
}

// DroneID is the ID of the drone the mesh stands for.
func (m *Mesh) DroneID() string { return m.id }

// Kind is the primitive shape.
func (m *Mesh) Kind() model.RenderKind { return m.kind }

// Position is the mesh centre in anchor-relative render space.
func (m *Mesh) Position() mgl64.Vec3 { return m.pos }

// SetPosition moves the mesh centre.
func (m *Mesh) SetPosition(p mgl64.Vec3) { m.pos = p }

// Color is the current tint.
func (m *Mesh) Color() model.Color { return m.color }

// SetColor replaces the tint.
func (m *Mesh) SetColor(c model.Color) { m.color = c }

// Visible reports whether the mesh is drawn and pickable.
func (m *Mesh) Visible() bool { return m.visible }

// SetVisible shows or hides the mesh.
func (m *Mesh) SetVisible(visible bool) { m.visible = visible }

// BoundingRadius is the radius of the sphere enclosing the primitive.
func (m *Mesh) BoundingRadius() float64 {
	if m.kind == model.RenderKindBox {
		return MeshSizeM * math.Sqrt(3) / 2
	}
	return MeshSizeM
}

// Scene is the set of meshes to draw. Membership changes are locked; mesh
// fields are not, so drawing must be serialized with the frame loop.
type Scene struct {
	mu     sync.RWMutex
	meshes map[string]*Mesh
}

// NewScene returns an empty scene.
func NewScene() *Scene {
	return &Scene{meshes: make(map[string]*Mesh)}
}

// Insert adds m, replacing any mesh with the same drone ID.
func (s *Scene) Insert(m *Mesh) {
	s.mu.Lock()
	s.meshes[m.id] = m
	s.mu.Unlock()
}

// Delete removes the mesh for a drone ID.
func (s *Scene) Delete(id string) {
	s.mu.Lock()
	delete(s.meshes, id)
	s.mu.Unlock()
}

// Len returns the number of meshes.
func (s *Scene) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.meshes)
}

// Meshes returns the meshes sorted by drone ID.
func (s *Scene) Meshes() []*Mesh {
	s.mu.RLock()
	out := make([]*Mesh, 0, len(s.meshes))
	for _, m := range s.meshes {
		out = append(out, m)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
