package model

// RegionType identifies the shape of a region.
type RegionType string

const (
	// RegionTypeBox is an axis-aligned latitude/longitude box.
	RegionTypeBox RegionType = "box"
	// RegionTypeEarth covers the whole globe.
	RegionTypeEarth RegionType = "earth"
)

// Region defines a geographic area that spawn points are drawn from.
type Region struct {
	Type   RegionType `yaml:"type"`
	MinLat float64    `yaml:"min_lat"`
	MaxLat float64    `yaml:"max_lat"`
	MinLng float64    `yaml:"min_lng"`
	MaxLng float64    `yaml:"max_lng"`
}

// Earth returns the region spanning every latitude and longitude.
func Earth() Region {
	return Region{Type: RegionTypeEarth, MinLat: -90, MaxLat: 90, MinLng: -180, MaxLng: 180}
}

// Estonia is the default start-point box used by the spawner.
func Estonia() Region {
	return Region{
		Type:   RegionTypeBox,
		MinLat: 57.4745283067,
		MaxLat: 59.6110903998,
		MinLng: 23.3397953631,
		MaxLng: 28.1316992531,
	}
}

// Contains reports whether p lies inside the region (inclusive).
func (r Region) Contains(p GeoPoint) bool {
	if r.Type == RegionTypeEarth {
		return true
	}
	return p.Lat >= r.MinLat && p.Lat <= r.MaxLat && p.Lng >= r.MinLng && p.Lng <= r.MaxLng
}

// Valid reports whether the bounds are ordered.
func (r Region) Valid() bool {
	return r.MinLat <= r.MaxLat && r.MinLng <= r.MaxLng
}
