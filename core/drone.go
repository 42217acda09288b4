package core

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/signalsfoundry/drone-simulator/model"
)

var (
	// ErrDegenerateAxis indicates a transit whose two points do not define a
	// unique great circle (identical or antipodal points).
	ErrDegenerateAxis = errors.New("start and pass-through points do not define a great circle")
	// ErrInvalidSpeed indicates a non-positive or non-finite speed.
	ErrInvalidSpeed = errors.New("speed must be positive and finite")
	// ErrInvalidRadius indicates a non-positive or non-finite patrol radius.
	ErrInvalidRadius = errors.New("patrol radius must be positive and finite")
)

// ExpiringTransitTTL is the lifetime of a triangle drone in seconds.
const ExpiringTransitTTL = 60 * 60.0

// degenerateCrossEpsilon bounds |a×b| below which two unit vectors are
// treated as parallel.
const degenerateCrossEpsilon = 1e-12

// Variant is the closed set of motion/lifecycle policies.
type Variant int

const (
	VariantCircularPatrol Variant = iota
	VariantUnlimitedTransit
	VariantExpiringTransit
)

func (v Variant) String() string {
	switch v {
	case VariantCircularPatrol:
		return "circular_patrol"
	case VariantUnlimitedTransit:
		return "unlimited_transit"
	case VariantExpiringTransit:
		return "expiring_transit"
	default:
		return "unknown"
	}
}

// RetireReason explains why a drone deactivated.
type RetireReason string

const (
	RetireNone        RetireReason = ""
	RetireLapComplete RetireReason = "lap_complete"
	RetireExpired     RetireReason = "expired"
)

// Drone is one simulated object: a Body plus a variant tag that decides
// when it deactivates and how it is displayed.
type Drone struct {
	Body

	id      string
	variant Variant
	speedMS float64
	ttl     float64 // +Inf when the variant never expires
	reason  RetireReason
}

// NewCircleDrone builds a closed patrol around center. The drone starts
// radiusM (surface distance) away from the centre and deactivates after one
// full revolution.
func NewCircleDrone(center model.GeoPoint, radiusM, speedMS float64) (*Drone, error) {
	if !(radiusM > 0) || math.IsInf(radiusM, 0) {
		return nil, fmt.Errorf("circle drone: %w", ErrInvalidRadius)
	}
	if err := validateSpeed(speedMS); err != nil {
		return nil, fmt.Errorf("circle drone: %w", err)
	}

	axis := ToSpherePoint(center)
	angle := radiusM / EarthRadiusM

	// Tilt the centre away from itself about any perpendicular axis so the
	// start point sits exactly angle radians from the patrol axis.
	tilt := axis.Cross(mgl64.Vec3{0, 1, 0})
	if tilt.Len() < degenerateCrossEpsilon {
		tilt = mgl64.Vec3{1, 0, 0}
	}
	start := mgl64.QuatRotate(angle, tilt.Normalize()).Normalize().Rotate(axis)

	body, err := NewBody(start, axis, speedMS/radiusM)
	if err != nil {
		return nil, fmt.Errorf("circle drone: %w", err)
	}
	return newDrone(body, VariantCircularPatrol, speedMS, math.Inf(1)), nil
}

// NewSquareDrone builds a great-circle transit through start and
// passThrough that never expires on its own.
func NewSquareDrone(start, passThrough model.GeoPoint, speedMS float64) (*Drone, error) {
	body, err := transitBody(start, passThrough, speedMS)
	if err != nil {
		return nil, fmt.Errorf("square drone: %w", err)
	}
	return newDrone(body, VariantUnlimitedTransit, speedMS, math.Inf(1)), nil
}

// NewTriangleDrone builds a great-circle transit from start towards
// destination that deactivates after ExpiringTransitTTL seconds.
func NewTriangleDrone(start, destination model.GeoPoint, speedMS float64) (*Drone, error) {
	body, err := transitBody(start, destination, speedMS)
	if err != nil {
		return nil, fmt.Errorf("triangle drone: %w", err)
	}
	return newDrone(body, VariantExpiringTransit, speedMS, ExpiringTransitTTL), nil
}

// NewDrone dispatches on the drone type. For circles, other is ignored and
// radiusM is used; for transits, other is the pass-through/destination.
func NewDrone(t model.DroneType, start, other model.GeoPoint, radiusM, speedMS float64) (*Drone, error) {
	switch t {
	case model.DroneTypeCircle:
		return NewCircleDrone(start, radiusM, speedMS)
	case model.DroneTypeSquare:
		return NewSquareDrone(start, other, speedMS)
	case model.DroneTypeTriangle:
		return NewTriangleDrone(start, other, speedMS)
	default:
		return nil, fmt.Errorf("unknown drone type %q", t)
	}
}

func transitBody(start, other model.GeoPoint, speedMS float64) (Body, error) {
	if err := validateSpeed(speedMS); err != nil {
		return Body{}, err
	}
	a := ToSpherePoint(start)
	axis := a.Cross(ToSpherePoint(other))
	if l := axis.Len(); l < degenerateCrossEpsilon || math.IsNaN(l) {
		return Body{}, ErrDegenerateAxis
	}
	return NewBody(a, axis, speedMS/EarthRadiusM)
}

func validateSpeed(speedMS float64) error {
	if !(speedMS > 0) || math.IsInf(speedMS, 0) {
		return ErrInvalidSpeed
	}
	return nil
}

func newDrone(body Body, v Variant, speedMS, ttl float64) *Drone {
	return &Drone{
		Body:    body,
		id:      uuid.NewString(),
		variant: v,
		speedMS: speedMS,
		ttl:     ttl,
	}
}

// Advance runs the shared rotation first, then the variant's deactivation
// predicate.
func (d *Drone) Advance(dt float64) {
	if !d.Active() || !(dt > 0) {
		return
	}
	d.Body.Advance(dt)

	switch d.variant {
	case VariantCircularPatrol:
		if math.Abs(d.TotalAngle()) >= 2*math.Pi {
			d.retire(RetireLapComplete)
		}
	case VariantExpiringTransit:
		d.ttl -= dt
		if d.ttl <= 0 {
			d.retire(RetireExpired)
		}
	case VariantUnlimitedTransit:
		// Runs until removed externally.
	}
}

func (d *Drone) retire(reason RetireReason) {
	d.reason = reason
	d.deactivate()
}

// ID returns the stable unique identifier.
func (d *Drone) ID() string { return d.id }

// Variant returns the motion policy tag.
func (d *Drone) Variant() Variant { return d.variant }

// Type maps the variant onto its public type tag.
func (d *Drone) Type() model.DroneType {
	switch d.variant {
	case VariantCircularPatrol:
		return model.DroneTypeCircle
	case VariantExpiringTransit:
		return model.DroneTypeTriangle
	default:
		return model.DroneTypeSquare
	}
}

// SpeedMS returns the nominal ground speed in metres per second.
func (d *Drone) SpeedMS() float64 { return d.speedMS }

// TTL returns the remaining lifetime and whether it is finite.
func (d *Drone) TTL() (float64, bool) {
	return d.ttl, !math.IsInf(d.ttl, 0)
}

// RetireReason is empty while the drone is active.
func (d *Drone) RetireReason() RetireReason { return d.reason }

// RenderKind selects the mesh primitive for the drone's proxy.
func (d *Drone) RenderKind() model.RenderKind {
	switch d.variant {
	case VariantCircularPatrol:
		return model.RenderKindSphere
	case VariantExpiringTransit:
		return model.RenderKindTetrahedron
	default:
		return model.RenderKindBox
	}
}

// Tint is the fixed display color for the drone's type.
func (d *Drone) Tint() model.Color {
	return TintFor(d.Type())
}

// TintFor returns the fixed display color of a drone type.
func TintFor(t model.DroneType) model.Color {
	switch t {
	case model.DroneTypeCircle:
		return 0xaaffaa
	case model.DroneTypeTriangle:
		return 0xffaaaa
	default:
		return 0xaaaaff
	}
}
