package core

// TickReport summarizes one Simulation.Update call.
type TickReport struct {
	Dt      float64
	Active  int
	Retired []*Drone
}

// Simulation owns the live drone set. It is not safe for concurrent use;
// the frame loop is its only writer.
type Simulation struct {
	drones        []*Drone
	tickListeners []func(TickReport)
}

// NewSimulation returns an empty simulation.
func NewSimulation() *Simulation {
	return &Simulation{}
}

// RegisterTickListener adds fn to the callbacks run after every Update.
func (s *Simulation) RegisterTickListener(fn func(TickReport)) {
	s.tickListeners = append(s.tickListeners, fn)
}

// AddDrone inserts d. Nil drones are ignored.
func (s *Simulation) AddDrone(d *Drone) {
	if d == nil {
		return
	}
	s.drones = append(s.drones, d)
}

// Update advances every drone by dt, then drops the ones that deactivated.
// Removal waits until all advances are done so each drone sees the same dt.
// It returns the drones pruned in this tick.
func (s *Simulation) Update(dt float64) []*Drone {
	for _, d := range s.drones {
		d.Advance(dt)
	}

	var retired []*Drone
	kept := s.drones[:0]
	for _, d := range s.drones {
		if d.Active() {
			kept = append(kept, d)
		} else {
			retired = append(retired, d)
		}
	}
	// Clear the tail so pruned drones can be collected.
	for i := len(kept); i < len(s.drones); i++ {
		s.drones[i] = nil
	}
	s.drones = kept

	report := TickReport{Dt: dt, Active: len(s.drones), Retired: retired}
	for _, fn := range s.tickListeners {
		fn(report)
	}
	return retired
}

// Drones returns a copy of the live set. Order is unspecified.
func (s *Simulation) Drones() []*Drone {
	out := make([]*Drone, len(s.drones))
	copy(out, s.drones)
	return out
}

// Len returns the number of live drones.
func (s *Simulation) Len() int { return len(s.drones) }
