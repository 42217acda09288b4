package model

import "fmt"

// GeoPoint is a geographic coordinate in degrees. Ranges are not enforced;
// callers are responsible for producing sensible values.
type GeoPoint struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// String renders the point the way labels display it.
func (p GeoPoint) String() string {
	return fmt.Sprintf("(%.6f;%.6f)", p.Lat, p.Lng)
}
