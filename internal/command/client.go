package command

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/drone-simulator/model"
)

// Client calls dronesim.v1.CommandService over a gRPC connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// WithRequestID tags outgoing calls made with ctx so server logs can be
// correlated with the caller.
func WithRequestID(ctx context.Context, id string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, RequestIDMetadataKey, id)
}

func (c *Client) AddDrones(ctx context.Context, types model.DroneFlags, count int, opts ...grpc.CallOption) (AddResult, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, AddDronesMethod, newAddRequest(types, count), out, opts...); err != nil {
		return AddResult{}, err
	}
	return addResultFromStruct(out), nil
}

func (c *Client) SetVisibilityFilter(ctx context.Context, types model.DroneFlags, opts ...grpc.CallOption) error {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{"types": flagsToValue(types)}}
	return c.cc.Invoke(ctx, SetVisibilityFilterMethod, in, new(emptypb.Empty), opts...)
}

func (c *Client) GetVisibilityFilter(ctx context.Context, opts ...grpc.CallOption) (model.DroneFlags, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetVisibilityFilterMethod, new(emptypb.Empty), out, opts...); err != nil {
		return model.DroneFlags{}, err
	}
	return flagsFromStruct(out)
}

func (c *Client) ListDrones(ctx context.Context, opts ...grpc.CallOption) ([]model.DroneSnapshot, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ListDronesMethod, new(emptypb.Empty), out, opts...); err != nil {
		return nil, err
	}
	return listFromStruct(out), nil
}
