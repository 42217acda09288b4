package command

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/signalsfoundry/drone-simulator/core"
	"github.com/signalsfoundry/drone-simulator/model"
)

// ErrInvalidPolicy indicates a spawn policy with unusable ranges.
var ErrInvalidPolicy = errors.New("invalid spawn policy")

// SpeedRange is an inclusive speed interval in km/h.
type SpeedRange struct {
	MinKmh float64 `yaml:"min_speed_kmh"`
	MaxKmh float64 `yaml:"max_speed_kmh"`
}

// CirclePolicy adds the patrol radius interval to a speed range.
type CirclePolicy struct {
	SpeedRange `yaml:",inline"`
	MinRadiusM float64 `yaml:"min_radius_m"`
	MaxRadiusM float64 `yaml:"max_radius_m"`
}

// SpawnPolicy controls where new drones start, where transits head and how
// fast each type flies.
type SpawnPolicy struct {
	StartBounds   model.Region `yaml:"start_bounds"`
	Destinations  model.Region `yaml:"destinations"`
	Circle        CirclePolicy `yaml:"circle"`
	Square        SpeedRange   `yaml:"square"`
	Triangle      SpeedRange   `yaml:"triangle"`
	MaxPerRequest int          `yaml:"max_per_request"`
}

// DefaultSpawnPolicy starts drones inside Estonia and sends transits
// anywhere on Earth.
func DefaultSpawnPolicy() SpawnPolicy {
	return SpawnPolicy{
		StartBounds:  model.Estonia(),
		Destinations: model.Earth(),
		Circle: CirclePolicy{
			SpeedRange: SpeedRange{MinKmh: 110, MaxKmh: 400},
			MinRadiusM: 10_000,
			MaxRadiusM: 30_000,
		},
		Square:        SpeedRange{MinKmh: 50, MaxKmh: 80},
		Triangle:      SpeedRange{MinKmh: 1700, MaxKmh: 2200},
		MaxPerRequest: 1000,
	}
}

// Validate checks that every interval is ordered and positive.
func (p SpawnPolicy) Validate() error {
	if !p.StartBounds.Valid() {
		return fmt.Errorf("%w: start bounds are not ordered", ErrInvalidPolicy)
	}
	if !p.Destinations.Valid() {
		return fmt.Errorf("%w: destinations are not ordered", ErrInvalidPolicy)
	}
	for name, r := range map[string]SpeedRange{
		"circle":   p.Circle.SpeedRange,
		"square":   p.Square,
		"triangle": p.Triangle,
	} {
		if r.MinKmh <= 0 || r.MaxKmh < r.MinKmh {
			return fmt.Errorf("%w: %s speed range [%v, %v] km/h", ErrInvalidPolicy, name, r.MinKmh, r.MaxKmh)
		}
	}
	if p.Circle.MinRadiusM <= 0 || p.Circle.MaxRadiusM < p.Circle.MinRadiusM {
		return fmt.Errorf("%w: circle radius range [%v, %v] m", ErrInvalidPolicy, p.Circle.MinRadiusM, p.Circle.MaxRadiusM)
	}
	if p.MaxPerRequest <= 0 {
		return fmt.Errorf("%w: max_per_request must be positive", ErrInvalidPolicy)
	}
	return nil
}

// Spawner builds randomized drones according to a SpawnPolicy. It is safe
// for concurrent use.
type Spawner struct {
	policy SpawnPolicy

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSpawner validates policy and seeds the generator. Equal seeds yield
// equal drone parameters.
func NewSpawner(policy SpawnPolicy, seed uint64) (*Spawner, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Spawner{
		policy: policy,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

// Policy returns the spawn policy.
func (s *Spawner) Policy() SpawnPolicy { return s.policy }

// Spawn builds one drone of type t. Construction errors from the motion
// model are returned unchanged so callers can count rejections.
func (s *Spawner) Spawn(t model.DroneType) (*core.Drone, error) {
	s.mu.Lock()
	start := s.pointIn(s.policy.StartBounds)
	var (
		other   model.GeoPoint
		radiusM float64
		speed   SpeedRange
	)
	switch t {
	case model.DroneTypeCircle:
		radiusM = s.between(s.policy.Circle.MinRadiusM, s.policy.Circle.MaxRadiusM)
		speed = s.policy.Circle.SpeedRange
	case model.DroneTypeSquare:
		other = s.pointIn(s.policy.Destinations)
		speed = s.policy.Square
	case model.DroneTypeTriangle:
		other = s.pointIn(s.policy.Destinations)
		speed = s.policy.Triangle
	default:
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: unknown drone type %q", ErrInvalidCommand, t)
	}
	speedMS := core.KmhToMs(s.between(speed.MinKmh, speed.MaxKmh))
	s.mu.Unlock()

	return core.NewDrone(t, start, other, radiusM, speedMS)
}

// pointIn draws a point uniformly in latitude and longitude. Caller holds
// s.mu.
func (s *Spawner) pointIn(r model.Region) model.GeoPoint {
	return model.GeoPoint{
		Lat: s.between(r.MinLat, r.MaxLat),
		Lng: s.between(r.MinLng, r.MaxLng),
	}
}

func (s *Spawner) between(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}
