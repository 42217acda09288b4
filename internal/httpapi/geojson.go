package httpapi

import (
	"net/http"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/signalsfoundry/drone-simulator/core"
	"github.com/signalsfoundry/drone-simulator/model"
)

// FeatureCollection renders drones as GeoJSON points with their state as
// properties.
func FeatureCollection(drones []model.DroneSnapshot) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, d := range drones {
		f := geojson.NewFeature(orb.Point{d.Location.Lng, d.Location.Lat})
		f.ID = d.ID
		f.Properties["id"] = d.ID
		f.Properties["type"] = string(d.Type)
		f.Properties["speed_kmh"] = core.MsToKmh(d.SpeedMS)
		f.Properties["visible"] = d.Visible
		f.Properties["expanded"] = d.Expanded
		if d.TTL != nil {
			f.Properties["ttl"] = *d.TTL
		}
		fc.Append(f)
	}
	return fc
}

func (s *Server) dronesGeoJSON(w http.ResponseWriter, _ *http.Request) {
	data, err := FeatureCollection(s.catalog.List()).MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
