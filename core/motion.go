package core

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/drone-simulator/model"
)

// Body preconditions.
var (
	// ErrZeroAxis rejects a zero-length or non-finite rotation axis.
	ErrZeroAxis = errors.New("rotation axis must be non-zero")
	// ErrZeroStart rejects a zero-length or non-finite start position.
	ErrZeroStart = errors.New("start position must be non-zero")
)

// MotionModel advances a pose by a time step and reports where it is.
type MotionModel interface {
	Advance(dt float64)
	Location() model.GeoPoint
	Active() bool
}

// Body is a point on the unit sphere rotating about a fixed axis at a fixed
// angular speed. Only position, totalAngle and totalTime change after
// construction.
type Body struct {
	position     mgl64.Vec3
	axis         mgl64.Vec3
	angularSpeed float64 // rad/s, sign encodes direction

	totalAngle float64
	totalTime  float64
	active     bool
}

// NewBody constructs an active body. Neither start nor axis needs to be unit
// length; both are normalized here.
func NewBody(start, axis mgl64.Vec3, angularSpeed float64) (Body, error) {
	axisLen := axis.Len()
	if axisLen == 0 || math.IsNaN(axisLen) || math.IsInf(axisLen, 0) {
		return Body{}, ErrZeroAxis
	}
	startLen := start.Len()
	if startLen == 0 || math.IsNaN(startLen) || math.IsInf(startLen, 0) {
		return Body{}, ErrZeroStart
	}
	return Body{
		position:     start.Mul(1 / startLen),
		axis:         axis.Mul(1 / axisLen),
		angularSpeed: angularSpeed,
		active:       true,
	}, nil
}

// Advance rotates the position by angularSpeed*dt. Inactive bodies and
// non-positive steps are left untouched.
func (b *Body) Advance(dt float64) {
	if !b.active || !(dt > 0) {
		return
	}

	delta := b.angularSpeed * dt
	q := mgl64.QuatRotate(delta, b.axis).Normalize()
	b.position = q.Rotate(b.position).Normalize()

	b.totalAngle += delta
	b.totalTime += dt
}

// Position returns the current unit-sphere point.
func (b *Body) Position() mgl64.Vec3 { return b.position }

// Axis returns the unit rotation axis.
func (b *Body) Axis() mgl64.Vec3 { return b.axis }

// AngularSpeed returns the signed angular speed in rad/s.
func (b *Body) AngularSpeed() float64 { return b.angularSpeed }

// TotalAngle returns the accumulated signed rotation in radians.
func (b *Body) TotalAngle() float64 { return b.totalAngle }

// TotalTime returns the accumulated simulated time in seconds.
func (b *Body) TotalTime() float64 { return b.totalTime }

// Location is derived from the current position on every call.
func (b *Body) Location() model.GeoPoint { return ToGeographic(b.position) }

// Active reports whether the body still moves. Once false it stays false.
func (b *Body) Active() bool { return b.active }

func (b *Body) deactivate() { b.active = false }
