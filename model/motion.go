package model

// Motion represents a position in ECEF metres.
type Motion struct {
	X float64
	Y float64
	Z float64
}
