package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/drone-simulator/model"
)

// SimCollector bundles Prometheus metrics for the drone simulator: the
// command RPC surface and the frame loop. It satisfies the metrics recorder
// expected by ScenarioState.
type SimCollector struct {
	gatherer prometheus.Gatherer

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec

	DronesActive   *prometheus.GaugeVec
	DronesSpawned  *prometheus.CounterVec
	DronesRejected *prometheus.CounterVec
	DronesRetired  *prometheus.CounterVec

	Frames        prometheus.Counter
	FrameDuration prometheus.Histogram
}

// NewSimCollector registers simulator Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when nil.
// Registering twice against the same registry returns the existing
// collectors.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dronesim_requests_total",
		Help: "Total number of handled command RPCs, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "dronesim_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dronesim_request_duration_seconds",
		Help:    "Command RPC latency in seconds.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"service", "method"}), "dronesim_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	active, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dronesim_drones_active",
		Help: "Current number of live drones, labeled by drone type.",
	}, []string{"type"}), "dronesim_drones_active")
	if err != nil {
		return nil, err
	}
	spawned, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dronesim_drones_spawned_total",
		Help: "Drones added to the scene, labeled by drone type.",
	}, []string{"type"}), "dronesim_drones_spawned_total")
	if err != nil {
		return nil, err
	}
	rejected, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dronesim_drones_rejected_total",
		Help: "Drone spawns rejected by motion preconditions, labeled by drone type.",
	}, []string{"type"}), "dronesim_drones_rejected_total")
	if err != nil {
		return nil, err
	}
	retired, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dronesim_drones_retired_total",
		Help: "Drones pruned from the simulation, labeled by drone type and reason.",
	}, []string{"type", "reason"}), "dronesim_drones_retired_total")
	if err != nil {
		return nil, err
	}

	frames, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dronesim_frames_total",
		Help: "Number of simulation frames run.",
	}), "dronesim_frames_total")
	if err != nil {
		return nil, err
	}
	frameDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dronesim_frame_duration_seconds",
		Help:    "Wall-clock time spent advancing and publishing one frame.",
		Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
	}), "dronesim_frame_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:       gatherer,
		RPCRequests:    requests,
		RPCDurations:   durations,
		DronesActive:   active,
		DronesSpawned:  spawned,
		DronesRejected: rejected,
		DronesRetired:  retired,
		Frames:         frames,
		FrameDuration:  frameDuration,
	}, nil
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *SimCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		code := status.Code(err).String()

		if c.RPCRequests != nil {
			c.RPCRequests.WithLabelValues(service, method, code).Inc()
		}
		if c.RPCDurations != nil {
			c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		}

		return resp, err
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetActiveDrones replaces the per-type live drone gauges.
func (c *SimCollector) SetActiveDrones(counts map[model.DroneType]int) {
	if c == nil || c.DronesActive == nil {
		return
	}
	for t, n := range counts {
		c.DronesActive.WithLabelValues(string(t)).Set(float64(n))
	}
}

func (c *SimCollector) IncSpawned(t model.DroneType) {
	if c == nil || c.DronesSpawned == nil {
		return
	}
	c.DronesSpawned.WithLabelValues(string(t)).Inc()
}

func (c *SimCollector) IncRejected(t model.DroneType) {
	if c == nil || c.DronesRejected == nil {
		return
	}
	c.DronesRejected.WithLabelValues(string(t)).Inc()
}

func (c *SimCollector) IncRetired(t model.DroneType, reason string) {
	if c == nil || c.DronesRetired == nil {
		return
	}
	c.DronesRetired.WithLabelValues(string(t), reason).Inc()
}

// ObserveFrame counts one frame and records how long it took.
func (c *SimCollector) ObserveFrame(d time.Duration) {
	if c == nil {
		return
	}
	if c.Frames != nil {
		c.Frames.Inc()
	}
	if c.FrameDuration != nil {
		c.FrameDuration.Observe(d.Seconds())
	}
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

// register adds c to reg. When an equal collector is already registered
// the existing one is returned so that several components can share a
// registry.
func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return c, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	return register(reg, vec, name)
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	return register(reg, vec, name)
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	return register(reg, vec, name)
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter, name string) (prometheus.Counter, error) {
	return register(reg, c, name)
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	return register(reg, h, name)
}
