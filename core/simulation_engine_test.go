package core

import (
	"testing"

	"github.com/signalsfoundry/drone-simulator/model"
)

func mustDrone(d *Drone, err error) *Drone {
	if err != nil {
		panic(err)
	}
	return d
}

func TestSimulationPrunesExactlyInactiveDrones(t *testing.T) {
	sim := NewSimulation()

	// 10 km at 100 m/s closes its lap after ~628 s.
	short := mustDrone(NewCircleDrone(tallinn, 10000, 100))
	// 30 km at 30 m/s needs ~6283 s.
	long := mustDrone(NewCircleDrone(tallinn, 30000, 30))
	square := mustDrone(NewSquareDrone(tallinn, model.GeoPoint{Lat: 10, Lng: 10}, 20))
	triangle := mustDrone(NewTriangleDrone(tallinn, model.GeoPoint{Lat: 10, Lng: 10}, 500))

	for _, d := range []*Drone{short, long, square, triangle} {
		sim.AddDrone(d)
	}
	sim.AddDrone(nil)
	if sim.Len() != 4 {
		t.Fatalf("Len = %d, want 4", sim.Len())
	}

	var retired []*Drone
	for i := 0; i < 700; i++ {
		retired = append(retired, sim.Update(1)...)
	}
	if len(retired) != 1 || retired[0] != short {
		t.Fatalf("retired after 700 s = %v, want only the short circle", retired)
	}
	assertMembers(t, sim, long, square, triangle)

	for i := 0; i < 3000; i++ {
		retired = append(retired, sim.Update(1)...)
	}
	// 3700 s: the triangle has expired too.
	if len(retired) != 2 || retired[1] != triangle {
		t.Fatalf("retired after 3700 s = %v, want short circle then triangle", retired)
	}
	assertMembers(t, sim, long, square)
}

func TestSimulationUpdateWithNoDrones(t *testing.T) {
	sim := NewSimulation()
	if got := sim.Update(1); len(got) != 0 {
		t.Fatalf("Update on empty simulation retired %d drones", len(got))
	}
}

func TestSimulationTickListener(t *testing.T) {
	sim := NewSimulation()
	sim.AddDrone(mustDrone(NewTriangleDrone(tallinn, model.GeoPoint{}, 500)))

	var reports []TickReport
	sim.RegisterTickListener(func(r TickReport) { reports = append(reports, r) })

	sim.Update(1800)
	sim.Update(1800)
	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	if reports[0].Active != 1 || len(reports[0].Retired) != 0 {
		t.Fatalf("first report = %+v", reports[0])
	}
	if reports[1].Active != 0 || len(reports[1].Retired) != 1 || reports[1].Dt != 1800 {
		t.Fatalf("second report = %+v", reports[1])
	}
}

func TestSimulationDronesReturnsCopy(t *testing.T) {
	sim := NewSimulation()
	d := mustDrone(NewSquareDrone(tallinn, model.GeoPoint{}, 20))
	sim.AddDrone(d)

	list := sim.Drones()
	list[0] = nil
	if sim.Drones()[0] != d {
		t.Fatalf("mutating the returned slice changed the simulation")
	}
}

func assertMembers(t *testing.T, sim *Simulation, want ...*Drone) {
	t.Helper()
	got := map[*Drone]bool{}
	for _, d := range sim.Drones() {
		got[d] = true
	}
	if len(got) != len(want) {
		t.Fatalf("simulation holds %d drones, want %d", len(got), len(want))
	}
	for _, d := range want {
		if !got[d] {
			t.Fatalf("drone %s (%s) missing from simulation", d.ID(), d.Type())
		}
	}
}
