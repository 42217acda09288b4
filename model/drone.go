package model

import (
	"fmt"
	"strings"
)

// DroneType tags the motion policy of a drone.
type DroneType string

const (
	DroneTypeCircle   DroneType = "circle"   // closed circular patrol
	DroneTypeTriangle DroneType = "triangle" // great-circle transit with a TTL
	DroneTypeSquare   DroneType = "square"   // great-circle transit without expiry
)

// DroneTypes lists every known type in display order.
var DroneTypes = []DroneType{DroneTypeCircle, DroneTypeTriangle, DroneTypeSquare}

// ParseDroneType accepts a case-insensitive type name.
func ParseDroneType(s string) (DroneType, error) {
	switch DroneType(strings.ToLower(strings.TrimSpace(s))) {
	case DroneTypeCircle:
		return DroneTypeCircle, nil
	case DroneTypeTriangle:
		return DroneTypeTriangle, nil
	case DroneTypeSquare:
		return DroneTypeSquare, nil
	default:
		return "", fmt.Errorf("unknown drone type %q", s)
	}
}

// DroneFlags is a per-type boolean set. It doubles as the visibility filter
// and as the type selection of an "add drones" command.
type DroneFlags struct {
	Circle   bool `json:"circle" yaml:"circle"`
	Triangle bool `json:"triangle" yaml:"triangle"`
	Square   bool `json:"square" yaml:"square"`
}

// AllDrones returns flags with every type set.
func AllDrones() DroneFlags {
	return DroneFlags{Circle: true, Triangle: true, Square: true}
}

// FlagsOf builds flags from a list of types.
func FlagsOf(types ...DroneType) DroneFlags {
	var f DroneFlags
	for _, t := range types {
		f = f.With(t, true)
	}
	return f
}

// Allows reports whether t is set.
func (f DroneFlags) Allows(t DroneType) bool {
	switch t {
	case DroneTypeCircle:
		return f.Circle
	case DroneTypeTriangle:
		return f.Triangle
	case DroneTypeSquare:
		return f.Square
	default:
		return false
	}
}

// With returns a copy of f with t set to v.
func (f DroneFlags) With(t DroneType, v bool) DroneFlags {
	switch t {
	case DroneTypeCircle:
		f.Circle = v
	case DroneTypeTriangle:
		f.Triangle = v
	case DroneTypeSquare:
		f.Square = v
	}
	return f
}

// Types returns the set types in display order.
func (f DroneFlags) Types() []DroneType {
	out := make([]DroneType, 0, len(DroneTypes))
	for _, t := range DroneTypes {
		if f.Allows(t) {
			out = append(out, t)
		}
	}
	return out
}

// Any reports whether at least one type is set.
func (f DroneFlags) Any() bool {
	return f.Circle || f.Triangle || f.Square
}

// RenderKind selects the mesh primitive for a drone's visual proxy.
type RenderKind int

const (
	RenderKindSphere RenderKind = iota
	RenderKindBox
	RenderKindTetrahedron
)

func (k RenderKind) String() string {
	switch k {
	case RenderKindSphere:
		return "sphere"
	case RenderKindBox:
		return "box"
	case RenderKindTetrahedron:
		return "tetrahedron"
	default:
		return "unknown"
	}
}

// Color is a 0xRRGGBB display color.
type Color uint32

// RGB splits the color into its channels.
func (c Color) RGB() (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

func (c Color) String() string {
	return fmt.Sprintf("#%06x", uint32(c)&0xffffff)
}

// DroneSnapshot is an immutable, copyable view of one drone as published
// after a frame. Read paths (HTTP, websocket, gRPC list) only ever see
// snapshots, never live simulation objects.
type DroneSnapshot struct {
	ID          string    `json:"id"`
	Type        DroneType `json:"type"`
	Location    GeoPoint  `json:"location"`
	ECEF        Motion    `json:"ecef"`
	SpeedMS     float64   `json:"speed_ms"`
	TTL         *float64  `json:"ttl,omitempty"` // nil when the drone never expires
	Visible     bool      `json:"visible"`
	Expanded    bool      `json:"expanded"`
	Highlighted bool      `json:"highlighted"`
}
