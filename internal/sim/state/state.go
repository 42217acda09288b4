// internal/sim/state/state.go
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/drone-simulator/core"
	"github.com/signalsfoundry/drone-simulator/internal/logging"
	"github.com/signalsfoundry/drone-simulator/internal/scene"
	"github.com/signalsfoundry/drone-simulator/kb"
	"github.com/signalsfoundry/drone-simulator/model"
)

var (
	// ErrDroneNotFound indicates a requested drone is not live.
	ErrDroneNotFound = scene.ErrUnknownDrone
	// ErrDroneExists indicates a drone was added twice.
	ErrDroneExists = scene.ErrDuplicateDrone
	// ErrNilDrone indicates AddDrone was called without a drone.
	ErrNilDrone = errors.New("nil drone")
)

// ScenarioState serializes every mutation of the scene controller behind
// one lock and publishes a snapshot of each frame to the catalog. The
// controller itself is single-threaded; gRPC, HTTP and the terminal
// frontend all go through here.
type ScenarioState struct {
	// mu is the coarse scenario-level lock. Take this before touching the
	// catalog to maintain the lock ordering ScenarioState -> KB.
	mu sync.Mutex

	ctrl *scene.Controller

	// catalog receives one snapshot per live drone after every frame.
	catalog *kb.KnowledgeBase

	simTime time.Time
	frames  uint64

	log     logging.Logger
	metrics SimMetricsRecorder
}

// SimMetricsRecorder receives drone lifecycle and frame metrics.
type SimMetricsRecorder interface {
	SetActiveDrones(counts map[model.DroneType]int)
	IncSpawned(t model.DroneType)
	IncRejected(t model.DroneType)
	IncRetired(t model.DroneType, reason string)
	ObserveFrame(d time.Duration)
}

// FrameReport summarizes one RunFrame call.
type FrameReport struct {
	Index       uint64
	Dt          float64
	SimTime     time.Time
	Active      int
	Retired     []RetiredDrone
	Highlighted string
}

// RetiredDrone identifies a drone pruned during a frame.
type RetiredDrone struct {
	ID     string
	Type   model.DroneType
	Reason core.RetireReason
}

// ScenarioStateOption customises ScenarioState construction.
type ScenarioStateOption func(*ScenarioState)

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m SimMetricsRecorder) ScenarioStateOption {
	return func(s *ScenarioState) {
		s.metrics = m
	}
}

// WithCatalog publishes frames into an existing catalog instead of a
// private one.
func WithCatalog(c *kb.KnowledgeBase) ScenarioStateOption {
	return func(s *ScenarioState) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithStartTime sets the simulation epoch used for ECEF snapshots.
func WithStartTime(t time.Time) ScenarioStateOption {
	return func(s *ScenarioState) {
		if !t.IsZero() {
			s.simTime = t
		}
	}
}

// NewScenarioState wraps ctrl. The controller must not be used directly
// once handed over.
func NewScenarioState(ctrl *scene.Controller, log logging.Logger, opts ...ScenarioStateOption) *ScenarioState {
	if log == nil {
		log = logging.Noop()
	}
	s := &ScenarioState{
		ctrl:    ctrl,
		catalog: kb.NewKnowledgeBase(),
		simTime: time.Now().UTC(),
		log:     log,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	ctrl.Simulation().RegisterTickListener(s.recordTick)
	s.updateMetricsLocked()
	return s
}

// Catalog exposes the snapshot catalog for read paths.
func (s *ScenarioState) Catalog() *kb.KnowledgeBase {
	return s.catalog
}

// AddDrone registers a constructed drone with the controller.
func (s *ScenarioState) AddDrone(ctx context.Context, d *core.Drone) error {
	if d == nil {
		return ErrNilDrone
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ctrl.AddDrone(d); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncSpawned(d.Type())
	}
	s.updateMetricsLocked()
	s.log.Debug(ctx, "drone added",
		logging.String("entity_type", "drone"),
		logging.String("operation", "add"),
		logging.String("drone_id", d.ID()),
		logging.String("type", string(d.Type())),
	)
	return nil
}

// RejectDrone records a spawn that failed construction. The frame loop is
// not involved; the error is only logged and counted.
func (s *ScenarioState) RejectDrone(ctx context.Context, t model.DroneType, err error) {
	if s.metrics != nil {
		s.metrics.IncRejected(t)
	}
	s.log.Warn(ctx, "drone rejected",
		logging.String("entity_type", "drone"),
		logging.String("operation", "add"),
		logging.String("type", string(t)),
		logging.Err(err),
	)
}

// SetFilter replaces the visibility filter. It applies from the next frame.
func (s *ScenarioState) SetFilter(ctx context.Context, f model.DroneFlags) {
	s.mu.Lock()
	s.ctrl.SetFilter(f)
	s.mu.Unlock()

	s.log.Debug(ctx, "visibility filter set",
		logging.Any("filter", f),
	)
}

// Filter returns the current visibility filter.
func (s *ScenarioState) Filter() model.DroneFlags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Filter()
}

// PointerMoved records the pointer in normalized device coordinates.
func (s *ScenarioState) PointerMoved(ndc mgl64.Vec2) {
	s.mu.Lock()
	s.ctrl.PointerMoved(ndc)
	s.mu.Unlock()
}

// PointerClicked toggles the highlighted drone and returns its ID, or ""
// when nothing is under the pointer.
func (s *ScenarioState) PointerClicked(ctx context.Context) string {
	s.mu.Lock()
	id := s.ctrl.PointerClicked()
	expanded := s.ctrl.Expanded(id)
	s.mu.Unlock()

	if id != "" {
		s.log.Debug(ctx, "drone toggled",
			logging.String("drone_id", id),
			logging.Any("expanded", expanded),
		)
	}
	return id
}

// SetExpanded expands or collapses a drone by ID.
func (s *ScenarioState) SetExpanded(ctx context.Context, id string, expanded bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ctrl.SetExpanded(id, expanded); err != nil {
		return fmt.Errorf("set expanded: %w", err)
	}
	return nil
}

// RunFrame advances the simulation by dt seconds, runs the hit test and
// publishes the frame to the catalog.
func (s *ScenarioState) RunFrame(ctx context.Context, dt float64) FrameReport {
	started := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	retired := s.ctrl.Update(dt)
	s.ctrl.BeforeDraw()

	if dt > 0 {
		s.simTime = s.simTime.Add(time.Duration(dt * float64(time.Second)))
	}
	s.frames++

	snaps := s.ctrl.Snapshots(s.simTime)
	s.catalog.Sync(snaps)
	s.updateMetricsLocked()

	report := FrameReport{
		Index:       s.frames,
		Dt:          dt,
		SimTime:     s.simTime,
		Active:      len(snaps),
		Highlighted: s.ctrl.Highlighted(),
	}
	for _, d := range retired {
		report.Retired = append(report.Retired, RetiredDrone{ID: d.ID(), Type: d.Type(), Reason: d.RetireReason()})
	}
	if len(report.Retired) > 0 {
		s.log.Debug(ctx, "frame retired drones",
			logging.Int("retired", len(report.Retired)),
			logging.Int("active", report.Active),
		)
	}
	if s.metrics != nil {
		s.metrics.ObserveFrame(time.Since(started))
	}
	return report
}

// View runs fn with exclusive access to the controller, e.g. for drawing.
// fn must not call back into ScenarioState.
func (s *ScenarioState) View(fn func(*scene.Controller)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.ctrl)
}

// SimTime returns the simulation clock.
func (s *ScenarioState) SimTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.simTime
}

// Len returns the number of live drones.
func (s *ScenarioState) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Len()
}

// recordTick runs inside Simulation.Update, so the caller already holds
// s.mu.
func (s *ScenarioState) recordTick(r core.TickReport) {
	if s.metrics == nil {
		return
	}
	for _, d := range r.Retired {
		s.metrics.IncRetired(d.Type(), string(d.RetireReason()))
	}
}

// updateMetricsLocked pushes per-type drone counts into the metrics
// recorder. Caller must hold s.mu when invoking this helper.
func (s *ScenarioState) updateMetricsLocked() {
	if s == nil || s.metrics == nil {
		return
	}
	counts := make(map[model.DroneType]int, len(model.DroneTypes))
	for _, t := range model.DroneTypes {
		counts[t] = 0
	}
	for _, d := range s.ctrl.Simulation().Drones() {
		counts[d.Type()]++
	}
	s.metrics.SetActiveDrones(counts)
}
