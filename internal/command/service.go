// Package command is the operator surface of the simulator: adding
// randomized drones, changing the visibility filter and listing the live
// fleet, in Go and over gRPC.
package command

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/drone-simulator/internal/logging"
	"github.com/signalsfoundry/drone-simulator/internal/sim/state"
	"github.com/signalsfoundry/drone-simulator/model"
)

var (
	// ErrInvalidCommand is returned for malformed command arguments.
	ErrInvalidCommand = errors.New("invalid command")
	// ErrNotReady is returned when the service has no scenario or spawner.
	ErrNotReady = errors.New("command service not ready")
)

// AddResult reports the outcome of an AddDrones call.
type AddResult struct {
	Added    []string
	Rejected int
}

// Service executes operator commands against a ScenarioState.
type Service struct {
	state   *state.ScenarioState
	spawner *Spawner
	log     logging.Logger
}

// NewService wires a Service to the shared ScenarioState.
func NewService(st *state.ScenarioState, spawner *Spawner, log logging.Logger) *Service {
	if log == nil {
		log = logging.Noop()
	}
	return &Service{state: st, spawner: spawner, log: log}
}

// AddDrones spawns count drones for every type set in types. Spawns the
// motion model rejects are counted and skipped; they never fail the call.
func (s *Service) AddDrones(ctx context.Context, types model.DroneFlags, count int) (AddResult, error) {
	if err := s.ensureReady(); err != nil {
		return AddResult{}, err
	}
	if !types.Any() {
		return AddResult{}, fmt.Errorf("%w: at least one drone type is required", ErrInvalidCommand)
	}
	if limit := s.spawner.Policy().MaxPerRequest; count < 1 || count > limit {
		return AddResult{}, fmt.Errorf("%w: count must be between 1 and %d, got %d", ErrInvalidCommand, limit, count)
	}

	ctx, span := startDroneSpan(ctx, "Command.AddDrones", types, "", attrDroneCount.Int(count))
	defer span.End()

	var res AddResult
	for _, t := range types.Types() {
		for i := 0; i < count; i++ {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			d, err := s.spawner.Spawn(t)
			if err != nil {
				res.Rejected++
				s.state.RejectDrone(ctx, t, err)
				continue
			}
			if err := s.state.AddDrone(ctx, d); err != nil {
				span.RecordError(err)
				return res, err
			}
			res.Added = append(res.Added, d.ID())
		}
	}

	span.SetAttributes(
		attribute.Int("added", len(res.Added)),
		attribute.Int("rejected", res.Rejected),
	)
	s.logger(ctx).Info(ctx, "drones added",
		logging.Int("added", len(res.Added)),
		logging.Int("rejected", res.Rejected),
		logging.Any("types", typeNames(types)),
	)
	return res, nil
}

// SetVisibilityFilter replaces the per-type visibility filter. An empty
// filter is allowed and hides every drone.
func (s *Service) SetVisibilityFilter(ctx context.Context, types model.DroneFlags) error {
	if s == nil || s.state == nil {
		return ErrNotReady
	}
	s.state.SetFilter(ctx, types)
	s.logger(ctx).Info(ctx, "visibility filter updated",
		logging.Any("types", typeNames(types)),
	)
	return nil
}

// SetExpanded expands or collapses one live drone.
func (s *Service) SetExpanded(ctx context.Context, id string, expanded bool) error {
	if s == nil || s.state == nil {
		return ErrNotReady
	}
	if id == "" {
		return fmt.Errorf("%w: drone id is required", ErrInvalidCommand)
	}
	ctx, span := startDroneSpan(ctx, "Command.SetExpanded", model.DroneFlags{}, id, attribute.Bool("expanded", expanded))
	defer span.End()

	if err := s.state.SetExpanded(ctx, id, expanded); err != nil {
		span.RecordError(err)
		return err
	}
	s.logger(ctx).Info(ctx, "drone expansion set",
		logging.String("drone_id", id),
		logging.Bool("expanded", expanded),
	)
	return nil
}

// VisibilityFilter returns the current filter.
func (s *Service) VisibilityFilter() (model.DroneFlags, error) {
	if s == nil || s.state == nil {
		return model.DroneFlags{}, ErrNotReady
	}
	return s.state.Filter(), nil
}

// ListDrones returns the snapshots published by the last frame.
func (s *Service) ListDrones(ctx context.Context) ([]model.DroneSnapshot, error) {
	if s == nil || s.state == nil {
		return nil, ErrNotReady
	}
	return s.state.Catalog().List(), nil
}

func (s *Service) ensureReady() error {
	if s == nil || s.state == nil || s.spawner == nil {
		return ErrNotReady
	}
	return nil
}

// logger prefers the request-scoped logger installed by the gRPC
// interceptors.
func (s *Service) logger(ctx context.Context) logging.Logger {
	if l := logging.LoggerFromContext(ctx); l != nil {
		return l
	}
	return s.log
}

func typeNames(f model.DroneFlags) []string {
	types := f.Types()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
