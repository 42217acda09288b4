package render

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Camera is a perspective camera looking at Target from Eye.
type Camera struct {
	Eye    mgl64.Vec3
	Target mgl64.Vec3
	Up     mgl64.Vec3

	FovY   float64 // radians
	Aspect float64
	Near   float64
	Far    float64
}

// DefaultAltitudeM is the height of the top-down default camera.
const DefaultAltitudeM = 400_000.0

// NewTopDownCamera looks straight down at the origin from altitude metres,
// with north (-Z) at the top of the screen.
func NewTopDownCamera(altitude, aspect float64) *Camera {
	return &Camera{
		Eye:    mgl64.Vec3{0, altitude, 0},
		Target: mgl64.Vec3{0, 0, 0},
		Up:     mgl64.Vec3{0, 0, -1},
		FovY:   mgl64.DegToRad(45),
		Aspect: aspect,
		Near:   10,
		Far:    altitude * 10,
	}
}

// Projection returns the perspective projection matrix.
func (c *Camera) Projection() mgl64.Mat4 {
	return mgl64.Perspective(c.FovY, c.Aspect, c.Near, c.Far)
}

// View returns the world-to-camera matrix.
func (c *Camera) View() mgl64.Mat4 {
	return mgl64.LookAtV(c.Eye, c.Target, c.Up)
}

// Zoom moves the eye towards (factor < 1) or away from (factor > 1) the
// target. Non-positive factors are ignored.
func (c *Camera) Zoom(factor float64) {
	if !(factor > 0) {
		return
	}
	offset := c.Eye.Sub(c.Target).Mul(factor)
	if offset.Len() < c.Near*2 {
		return
	}
	c.Eye = c.Target.Add(offset)
}

// Unproject turns a pointer position in normalized device coordinates into
// the world-space points on the near and far planes.
func (c *Camera) Unproject(ndc mgl64.Vec2) (near, far mgl64.Vec3) {
	inv := c.Projection().Mul4(c.View()).Inv()
	return unprojectPoint(inv, ndc, -1), unprojectPoint(inv, ndc, 1)
}

func unprojectPoint(inv mgl64.Mat4, ndc mgl64.Vec2, z float64) mgl64.Vec3 {
	p := inv.Mul4x1(mgl64.Vec4{ndc.X(), ndc.Y(), z, 1})
	if w := p.W(); w != 0 {
		return p.Vec3().Mul(1 / w)
	}
	return p.Vec3()
}
