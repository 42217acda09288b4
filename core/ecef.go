package core

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/drone-simulator/model"
)

// GeodeticToECEF converts a geographic position at altKm above the
// reference ellipsoid radius into Earth-fixed coordinates in metres.
// go-satellite goes through the inertial frame at the given instant, so the
// same GMST is used on the way back to keep the result Earth-fixed.
func GeodeticToECEF(p model.GeoPoint, altKm float64, at time.Time) model.Motion {
	at = at.UTC()
	year, month, day := at.Date()
	hour, min, sec := at.Clock()
	jd := satellite.JDay(year, int(month), day, hour, min, sec)

	obs := satellite.LatLong{
		Latitude:  mgl64.DegToRad(p.Lat),
		Longitude: mgl64.DegToRad(p.Lng),
	}
	eci := satellite.LLAToECI(obs, altKm, jd)
	ecef := satellite.ECIToECEF(eci, satellite.ThetaG_JD(jd))

	// go-satellite works in kilometres; we store metres in the model.
	const kmToM = 1000.0
	return model.Motion{
		X: ecef.X * kmToM,
		Y: ecef.Y * kmToM,
		Z: ecef.Z * kmToM,
	}
}
