package command

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/drone-simulator/internal/logging"
	"github.com/signalsfoundry/drone-simulator/internal/observability"
	"github.com/signalsfoundry/drone-simulator/model"
)

const tracerName = "github.com/signalsfoundry/drone-simulator/internal/command"

// Span attribute keys for drone commands.
const (
	attrDroneTypes = attribute.Key("drone.types")
	attrDroneCount = attribute.Key("drone.count")
	attrDroneID    = attribute.Key("drone.id")
)

// TracingUnaryServerInterceptor names the command span after the RPC and
// tags it with the drone types and count carried by the request. A server
// span is started when the otelgrpc stats handler has not created one.
func TracingUnaryServerInterceptor() grpc.UnaryServerInterceptor {
	tracer := otel.Tracer(tracerName)

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		service, method := observability.SplitMethod(info.FullMethod)
		name := "Command/" + method
		span := trace.SpanFromContext(ctx)
		owned := !span.SpanContext().IsValid()
		if owned {
			ctx, span = tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()
		} else {
			span.SetName(name)
		}

		span.SetAttributes(
			attribute.String("rpc.system", "grpc"),
			attribute.String("rpc.service", service),
			attribute.String("rpc.method", method),
			attribute.String("rpc.full_method", strings.TrimPrefix(info.FullMethod, "/")),
		)
		if reqID := logging.RequestIDFromContext(ctx); reqID != "" {
			span.SetAttributes(attribute.String("request_id", reqID))
		}
		if in, ok := req.(*structpb.Struct); ok {
			span.SetAttributes(requestDroneAttributes(in)...)
		}

		resp, err := handler(ctx, req)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return resp, err
	}
}

// requestDroneAttributes reads the types and count fields of a command
// request. Malformed fields are left for the handler to reject.
func requestDroneAttributes(in *structpb.Struct) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if _, ok := in.GetFields()["types"]; ok {
		if types, err := flagsFromStruct(in); err == nil {
			attrs = append(attrs, attrDroneTypes.StringSlice(typeNames(types)))
		}
	}
	if v, ok := in.GetFields()["count"]; ok {
		attrs = append(attrs, attrDroneCount.Int(int(v.GetNumberValue())))
	}
	return attrs
}

// startDroneSpan starts a child span for a command acting on drones of the
// given types. droneID is set when the command targets one drone.
func startDroneSpan(ctx context.Context, name string, types model.DroneFlags, droneID string, extra ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs := make([]attribute.KeyValue, 0, len(extra)+2)
	if types.Any() {
		attrs = append(attrs, attrDroneTypes.StringSlice(typeNames(types)))
	}
	if droneID != "" {
		attrs = append(attrs, attrDroneID.String(droneID))
	}
	attrs = append(attrs, extra...)
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}
