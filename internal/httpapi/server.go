// Package httpapi serves the read-mostly HTTP surface of the simulator:
// health, metrics, the drone list as JSON and GeoJSON, filter and expansion
// control and a websocket feed of catalog changes.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/signalsfoundry/drone-simulator/internal/command"
	"github.com/signalsfoundry/drone-simulator/internal/logging"
	"github.com/signalsfoundry/drone-simulator/internal/sim/state"
	"github.com/signalsfoundry/drone-simulator/kb"
	"github.com/signalsfoundry/drone-simulator/model"
)

const requestIDHeader = "X-Request-ID"

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	svc     *command.Service
	catalog *kb.KnowledgeBase
	metrics http.Handler
	feed    *Feed
	log     logging.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLogger sets the base logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithFeedInterval sets how often websocket clients receive batched
// changes.
func WithFeedInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.feed.interval = d
		}
	}
}

// NewServer wires the HTTP surface. Reads come from catalog; writes go
// through svc.
func NewServer(svc *command.Service, catalog *kb.KnowledgeBase, opts ...Option) *Server {
	s := &Server{
		svc:     svc,
		catalog: catalog,
		log:     logging.Noop(),
	}
	s.feed = NewFeed(catalog, DefaultFeedInterval, nil)
	for _, opt := range opts {
		opt(s)
	}
	s.feed.log = s.log
	return s
}

// Feed returns the websocket feed.
func (s *Server) Feed() *Feed { return s.feed }

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestLogging)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/drones", s.listDrones).Methods(http.MethodGet)
	api.HandleFunc("/drones", s.addDrones).Methods(http.MethodPost)
	api.HandleFunc("/drones.geojson", s.dronesGeoJSON).Methods(http.MethodGet)
	api.HandleFunc("/drones/{id}", s.getDrone).Methods(http.MethodGet)
	api.HandleFunc("/drones/{id}/expanded", s.putExpanded).Methods(http.MethodPut)
	api.HandleFunc("/filter", s.getFilter).Methods(http.MethodGet)
	api.HandleFunc("/filter", s.putFilter).Methods(http.MethodPut)

	r.Handle("/ws/drones", s.feed).Methods(http.MethodGet)
	return r
}

// ListenAndServe serves the router on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves the router on lis until ctx is cancelled, then shuts down
// gracefully and disconnects feed clients.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(lis)
	}()
	s.log.Info(ctx, "serving HTTP API", logging.String("addr", lis.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.feed.Close()
		return srv.Shutdown(shutdownCtx)
	}
}

type addDronesRequest struct {
	Types []string `json:"types"`
	Count int      `json:"count"`
}

type expandedRequest struct {
	Expanded *bool `json:"expanded"`
}

type addDronesResponse struct {
	Added    []string `json:"added"`
	Rejected int      `json:"rejected"`
}

type listResponse struct {
	Frame  uint64                `json:"frame"`
	Drones []model.DroneSnapshot `json:"drones"`
}

func (s *Server) listDrones(w http.ResponseWriter, r *http.Request) {
	drones := s.catalog.List()
	if raw := r.URL.Query().Get("type"); raw != "" {
		t, err := model.ParseDroneType(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		kept := drones[:0]
		for _, d := range drones {
			if d.Type == t {
				kept = append(kept, d)
			}
		}
		drones = kept
	}
	writeJSON(w, http.StatusOK, listResponse{Frame: s.catalog.Frame(), Drones: drones})
}

func (s *Server) getDrone(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	d, ok := s.catalog.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("drone not found"))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) addDrones(w http.ResponseWriter, r *http.Request) {
	var req addDronesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var types model.DroneFlags
	for _, raw := range req.Types {
		t, err := model.ParseDroneType(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		types = types.With(t, true)
	}
	res, err := s.svc.AddDrones(r.Context(), types, req.Count)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	added := res.Added
	if added == nil {
		added = []string{}
	}
	writeJSON(w, http.StatusCreated, addDronesResponse{Added: added, Rejected: res.Rejected})
}

func (s *Server) putExpanded(w http.ResponseWriter, r *http.Request) {
	var req expandedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Expanded == nil {
		writeError(w, http.StatusBadRequest, errors.New("expanded is required"))
		return
	}
	if err := s.svc.SetExpanded(r.Context(), mux.Vars(r)["id"], *req.Expanded); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getFilter(w http.ResponseWriter, _ *http.Request) {
	f, err := s.svc.VisibilityFilter()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) putFilter(w http.ResponseWriter, r *http.Request) {
	var f model.DroneFlags
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.svc.SetVisibilityFilter(r.Context(), f); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := r.Header.Get(requestIDHeader); id != "" {
			ctx = logging.ContextWithRequestID(ctx, id)
		}
		ctx, reqLog := logging.WithRequestLogger(ctx, s.log.With(
			logging.String("http_method", r.Method),
			logging.String("path", r.URL.Path),
		))
		ctx = logging.ContextWithLogger(ctx, reqLog)
		w.Header().Set(requestIDHeader, logging.RequestIDFromContext(ctx))

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		reqLog.Debug(ctx, "http request handled",
			logging.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
		)
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, command.ErrInvalidCommand):
		return http.StatusBadRequest
	case errors.Is(err, state.ErrDroneNotFound):
		return http.StatusNotFound
	case errors.Is(err, command.ErrNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
