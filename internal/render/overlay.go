package render

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/drone-simulator/core"
	"github.com/signalsfoundry/drone-simulator/internal/scene"
	"github.com/signalsfoundry/drone-simulator/model"
)

// Overlay renders drones in a local Y-up frame whose origin is an anchor
// point on the Earth's surface: +X east, +Y up, -Z north, in metres. It
// implements scene.Renderer.
type Overlay struct {
	Scene  *Scene
	Camera *Camera

	anchor    model.GeoPoint
	east      mgl64.Vec3
	north     mgl64.Vec3
	up        mgl64.Vec3
	pickScale float64

	mu   sync.Mutex
	hint bool
}

// OverlayOption configures an Overlay.
type OverlayOption func(*Overlay)

// WithPickScale enlarges mesh bounding spheres for hit testing. Frontends
// that draw one glyph per drone use it so the glyph area is clickable.
func WithPickScale(scale float64) OverlayOption {
	return func(o *Overlay) {
		if scale > 0 {
			o.pickScale = scale
		}
	}
}

// WithCamera replaces the default top-down camera.
func WithCamera(c *Camera) OverlayOption {
	return func(o *Overlay) {
		if c != nil {
			o.Camera = c
		}
	}
}

// NewOverlay anchors a new overlay at anchor.
func NewOverlay(anchor model.GeoPoint, opts ...OverlayOption) *Overlay {
	up := core.ToSpherePoint(anchor)
	theta := mgl64.DegToRad(anchor.Lng)
	phi := mgl64.DegToRad(90 - anchor.Lat)

	o := &Overlay{
		Scene:     NewScene(),
		Camera:    NewTopDownCamera(DefaultAltitudeM, 4.0/3.0),
		anchor:    anchor,
		up:        up,
		east:      mgl64.Vec3{-math.Sin(theta), 0, math.Cos(theta)},
		north:     mgl64.Vec3{-math.Cos(phi) * math.Cos(theta), math.Sin(phi), -math.Cos(phi) * math.Sin(theta)},
		pickScale: 1,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetPickScale replaces the hit-test scale. Like mesh fields it is read by
// Raycast without locking, so calls must be serialized with the frame loop.
func (o *Overlay) SetPickScale(scale float64) {
	if scale > 0 {
		o.pickScale = scale
	}
}

// Anchor returns the geographic origin of the render frame.
func (o *Overlay) Anchor() model.GeoPoint { return o.anchor }

// NewMesh implements scene.MeshFactory.
func (o *Overlay) NewMesh(droneID string, kind model.RenderKind, tint model.Color) scene.Renderable {
	return NewMesh(droneID, kind, tint)
}

// Add implements scene.SceneGraph.
func (o *Overlay) Add(r scene.Renderable) {
	if m, ok := r.(*Mesh); ok {
		o.Scene.Insert(m)
	}
}

// Remove implements scene.SceneGraph.
func (o *Overlay) Remove(r scene.Renderable) {
	o.Scene.Delete(r.DroneID())
}

// Project implements scene.Projector. Points are placed on the sphere of
// radius core.EarthRadiusM and expressed relative to the anchor, so far
// away drones curve below the horizon.
func (o *Overlay) Project(p model.GeoPoint) mgl64.Vec3 {
	d := core.ToSpherePoint(p).Sub(o.up).Mul(core.EarthRadiusM)
	return mgl64.Vec3{d.Dot(o.east), d.Dot(o.up), -d.Dot(o.north)}
}

// Raycast implements scene.HitTester: the nearest candidate whose bounding
// sphere the pointer ray crosses.
func (o *Overlay) Raycast(ndc mgl64.Vec2, candidates []scene.Renderable) (scene.Renderable, bool) {
	near, far := o.Camera.Unproject(ndc)
	ray := core.NewRay(near, far)

	var (
		best  scene.Renderable
		bestT = math.Inf(1)
	)
	for _, c := range candidates {
		radius := MeshSizeM
		if m, ok := c.(*Mesh); ok {
			radius = m.BoundingRadius()
		}
		t, hit := ray.IntersectSphere(c.Position(), radius*o.pickScale)
		if hit && t < bestT {
			best, bestT = c, t
		}
	}
	return best, best != nil
}

// Projection implements scene.Camera.
func (o *Overlay) Projection() mgl64.Mat4 { return o.Camera.Projection() }

// View implements scene.Camera.
func (o *Overlay) View() mgl64.Mat4 { return o.Camera.View() }

// SetPointerHint implements scene.Renderer.
func (o *Overlay) SetPointerHint(on bool) {
	o.mu.Lock()
	o.hint = on
	o.mu.Unlock()
}

// PointerHint reports whether an interactive object is under the pointer.
func (o *Overlay) PointerHint() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hint
}

// ScreenPoint projects a world position into a container of the given
// size. ok is false for points behind the camera.
func (o *Overlay) ScreenPoint(world mgl64.Vec3, width, height float64) (x, y float64, ok bool) {
	clip := o.Camera.Projection().Mul4(o.Camera.View()).Mul4x1(world.Vec4(1))
	if clip.W() <= 0 {
		return 0, 0, false
	}
	x, y = scene.ScreenPosition(world, o.Camera.Projection(), o.Camera.View(), width, height)
	return x, y, true
}
