package command

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/drone-simulator/core"
	"github.com/signalsfoundry/drone-simulator/internal/sim/state"
)

// ToStatusError maps simulator errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, state.ErrDroneNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrInvalidCommand),
		errors.Is(err, ErrInvalidPolicy),
		errors.Is(err, state.ErrNilDrone),
		errors.Is(err, core.ErrZeroAxis),
		errors.Is(err, core.ErrZeroStart),
		errors.Is(err, core.ErrDegenerateAxis),
		errors.Is(err, core.ErrInvalidSpeed),
		errors.Is(err, core.ErrInvalidRadius):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, state.ErrDroneExists):
		return status.Error(codes.AlreadyExists, err.Error())

	case errors.Is(err, ErrNotReady):
		return status.Error(codes.Unavailable, err.Error())

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
