package command

import (
	"context"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/drone-simulator/internal/logging"
	"github.com/signalsfoundry/drone-simulator/internal/observability"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "dronesim.v1.CommandService"

const (
	AddDronesMethod           = "/" + ServiceName + "/AddDrones"
	SetVisibilityFilterMethod = "/" + ServiceName + "/SetVisibilityFilter"
	GetVisibilityFilterMethod = "/" + ServiceName + "/GetVisibilityFilter"
	ListDronesMethod          = "/" + ServiceName + "/ListDrones"
)

// CommandServer is the server API of dronesim.v1.CommandService.
type CommandServer interface {
	AddDrones(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetVisibilityFilter(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	GetVisibilityFilter(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListDrones(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// CommandServiceDesc describes dronesim.v1.CommandService for grpc.Server.
var CommandServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CommandServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AddDrones", Handler: addDronesHandler},
		{MethodName: "SetVisibilityFilter", Handler: setVisibilityFilterHandler},
		{MethodName: "GetVisibilityFilter", Handler: getVisibilityFilterHandler},
		{MethodName: "ListDrones", Handler: listDronesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dronesim/v1/command.proto",
}

// RegisterCommandServer registers srv on s.
func RegisterCommandServer(s grpc.ServiceRegistrar, srv CommandServer) {
	s.RegisterService(&CommandServiceDesc, srv)
}

// NewServer builds a gRPC server with the request-id, tracing, metrics and
// logging interceptors installed and the command service registered.
func NewServer(svc *Service, log logging.Logger, collector *observability.SimCollector, opts ...grpc.ServerOption) *grpc.Server {
	interceptors := []grpc.UnaryServerInterceptor{
		RequestIDUnaryServerInterceptor(log),
		TracingUnaryServerInterceptor(),
	}
	if collector != nil {
		interceptors = append(interceptors, collector.UnaryServerInterceptor())
	}
	interceptors = append(interceptors, LoggingUnaryServerInterceptor(log))

	opts = append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors...),
	}, opts...)
	server := grpc.NewServer(opts...)
	RegisterCommandServer(server, NewGRPCService(svc))
	return server
}

// GRPCService adapts Service to CommandServer.
type GRPCService struct {
	svc *Service
}

// NewGRPCService wraps svc.
func NewGRPCService(svc *Service) *GRPCService {
	return &GRPCService{svc: svc}
}

func (g *GRPCService) AddDrones(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	types, count, err := parseAddRequest(in)
	if err != nil {
		return nil, ToStatusError(err)
	}
	res, err := g.svc.AddDrones(ctx, types, count)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return addResultToStruct(res), nil
}

func (g *GRPCService) SetVisibilityFilter(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	types, err := flagsFromStruct(in)
	if err != nil {
		return nil, ToStatusError(err)
	}
	if err := g.svc.SetVisibilityFilter(ctx, types); err != nil {
		return nil, ToStatusError(err)
	}
	return &emptypb.Empty{}, nil
}

func (g *GRPCService) GetVisibilityFilter(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	f, err := g.svc.VisibilityFilter()
	if err != nil {
		return nil, ToStatusError(err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{"types": flagsToValue(f)}}, nil
}

func (g *GRPCService) ListDrones(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	drones, err := g.svc.ListDrones(ctx)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return listToStruct(drones), nil
}

func addDronesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CommandServer).AddDrones(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AddDronesMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CommandServer).AddDrones(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func setVisibilityFilterHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CommandServer).SetVisibilityFilter(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SetVisibilityFilterMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CommandServer).SetVisibilityFilter(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getVisibilityFilterHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CommandServer).GetVisibilityFilter(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetVisibilityFilterMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CommandServer).GetVisibilityFilter(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func listDronesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CommandServer).ListDrones(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListDronesMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CommandServer).ListDrones(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}
