package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/drone-simulator/model"
)

// EarthRadiusM is the mean Earth radius used for all sphere-surface motion
// (metres).
const EarthRadiusM = 6371000.0

// EarthCircumferenceM is the great-circle circumference at EarthRadiusM.
const EarthCircumferenceM = 2 * math.Pi * EarthRadiusM

// ToSpherePoint maps a geographic coordinate onto the unit sphere.
// Y is the polar axis; longitude 0 lies on +X.
func ToSpherePoint(p model.GeoPoint) mgl64.Vec3 {
	phi := mgl64.DegToRad(90 - p.Lat) // polar angle from the north pole
	theta := mgl64.DegToRad(p.Lng)    // azimuth from +X in the X/Z plane

	return mgl64.Vec3{
		math.Sin(phi) * math.Cos(theta),
		math.Cos(phi),
		math.Sin(phi) * math.Sin(theta),
	}
}

// ToGeographic is the inverse of ToSpherePoint. The input is normalized
// first, so any non-zero vector is accepted. At the poles the recovered
// longitude is arbitrary.
func ToGeographic(v mgl64.Vec3) model.GeoPoint {
	n := v.Normalize()
	y := n.Y()
	if y > 1 {
		y = 1
	} else if y < -1 {
		y = -1
	}
	phi := math.Acos(y)
	theta := math.Atan2(n.Z(), n.X())

	return model.GeoPoint{
		Lat: 90 - mgl64.RadToDeg(phi),
		Lng: mgl64.RadToDeg(theta),
	}
}

// GreatCircleDistanceM returns the surface distance between two points.
func GreatCircleDistanceM(a, b model.GeoPoint) float64 {
	return AngleBetween(ToSpherePoint(a), ToSpherePoint(b)) * EarthRadiusM
}

// AngleBetween returns the angle in radians between two non-zero vectors.
func AngleBetween(a, b mgl64.Vec3) float64 {
	// atan2 form stays accurate for nearly parallel vectors.
	return math.Atan2(a.Cross(b).Len(), a.Dot(b))
}

// KmhToMs converts kilometres per hour to metres per second.
func KmhToMs(kmh float64) float64 { return kmh / 3.6 }

// MsToKmh converts metres per second to kilometres per hour.
func MsToKmh(ms float64) float64 { return ms * 3.6 }

// Ray is a half-line used for pointer picking.
type Ray struct {
	Origin    mgl64.Vec3
	Direction mgl64.Vec3 // unit length
}

// NewRay builds a ray from origin towards target.
func NewRay(origin, target mgl64.Vec3) Ray {
	return Ray{Origin: origin, Direction: target.Sub(origin).Normalize()}
}

// At returns the point at parameter t along the ray.
func (r Ray) At(t float64) mgl64.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// IntersectSphere returns the smallest non-negative t at which the ray
// meets the sphere, if any. A ray starting inside the sphere reports the
// exit point.
func (r Ray) IntersectSphere(center mgl64.Vec3, radius float64) (float64, bool) {
	oc := r.Origin.Sub(center)
	b := oc.Dot(r.Direction)
	c := oc.Dot(oc) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	t := -b - sq
	if t < 0 {
		t = -b + sq
	}
	if t < 0 {
		return 0, false
	}
	return t, true
}
