package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/drone-simulator/internal/command"
	"github.com/signalsfoundry/drone-simulator/internal/config"
	"github.com/signalsfoundry/drone-simulator/internal/httpapi"
	"github.com/signalsfoundry/drone-simulator/internal/logging"
	"github.com/signalsfoundry/drone-simulator/internal/observability"
	"github.com/signalsfoundry/drone-simulator/internal/render"
	"github.com/signalsfoundry/drone-simulator/internal/scene"
	sim "github.com/signalsfoundry/drone-simulator/internal/sim/state"
	"github.com/signalsfoundry/drone-simulator/internal/termview"
	"github.com/signalsfoundry/drone-simulator/model"
	"github.com/signalsfoundry/drone-simulator/timectrl"
)

// maxFrameDelta caps a single interactive frame after the terminal stalls.
const maxFrameDelta = 250 * time.Millisecond

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("DRONESIM_CONFIG"), "Path to a YAML config file")
	tui := flag.Bool("tui", false, "Run the interactive terminal frontend")
	duration := flag.Duration("duration", 0, "Simulated time to run headless before exiting (0 runs until interrupted)")
	logFile := flag.String("log-file", "", "Write logs to this file (required to see logs with -tui)")
	mute := flag.Bool("mute", false, "Disable the audio cue in the terminal frontend")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dronesim: %v\n", err)
		os.Exit(2)
	}

	logOut, closeLog, err := logOutput(*logFile, *tui)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dronesim: %v\n", err)
		os.Exit(2)
	}
	defer closeLog()
	cfg.Logging.Output = logOut
	log := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	grpcLis, httpLis, err := listen(cfg.Server)
	if err != nil {
		log.Error(ctx, "failed to listen", logging.Err(err))
		os.Exit(1)
	}

	if *tui {
		err = runTUI(ctx, cfg, log, grpcLis, httpLis, !*mute)
	} else {
		err = run(ctx, cfg, log, grpcLis, httpLis, *duration)
	}
	if err != nil {
		log.Error(ctx, "simulator exited", logging.Err(err))
		os.Exit(1)
	}
}

// logOutput picks the log sink. The terminal frontend owns stdout, so its
// logs go to a file or nowhere.
func logOutput(path string, tui bool) (io.Writer, func(), error) {
	if path == "" {
		if tui {
			return io.Discard, func() {}, nil
		}
		return os.Stdout, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func listen(cfg config.ServerConfig) (grpcLis, httpLis net.Listener, err error) {
	if cfg.GRPCAddr != "" {
		if grpcLis, err = net.Listen("tcp", cfg.GRPCAddr); err != nil {
			return nil, nil, fmt.Errorf("grpc %s: %w", cfg.GRPCAddr, err)
		}
	}
	if cfg.HTTPAddr != "" {
		if httpLis, err = net.Listen("tcp", cfg.HTTPAddr); err != nil {
			if grpcLis != nil {
				_ = grpcLis.Close()
			}
			return nil, nil, fmt.Errorf("http %s: %w", cfg.HTTPAddr, err)
		}
	}
	return grpcLis, httpLis, nil
}

func closeListeners(ls ...net.Listener) {
	for _, l := range ls {
		if l != nil {
			_ = l.Close()
		}
	}
}

// app is the wired simulator: scene, scenario state, command service and
// metrics.
type app struct {
	cfg       config.Config
	log       logging.Logger
	overlay   *render.Overlay
	labels    *render.LabelLayer
	state     *sim.ScenarioState
	svc       *command.Service
	collector *observability.SimCollector
}

func newApp(ctx context.Context, cfg config.Config, log logging.Logger, reg prometheus.Registerer) (*app, error) {
	collector, err := observability.NewSimCollector(reg)
	if err != nil {
		return nil, fmt.Errorf("metrics collector: %w", err)
	}

	overlay := render.NewOverlay(cfg.Sim.Anchor, render.WithPickScale(cfg.Sim.PickScale))
	labels := render.NewLabelLayer(1280, 720)
	ctrl := scene.NewController(overlay, labels, scene.WithLogger(log))
	st := sim.NewScenarioState(ctrl, log, sim.WithMetricsRecorder(collector))

	seed := cfg.Sim.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	spawner, err := command.NewSpawner(cfg.Spawn, seed)
	if err != nil {
		return nil, err
	}
	svc := command.NewService(st, spawner, log)

	if err := svc.SetVisibilityFilter(ctx, cfg.Sim.Filter); err != nil {
		return nil, err
	}
	if n := cfg.Sim.InitialPerType; n > 0 {
		res, err := svc.AddDrones(ctx, model.AllDrones(), n)
		if err != nil {
			return nil, fmt.Errorf("initial drones: %w", err)
		}
		log.Info(ctx, "spawned initial drones",
			logging.Int("added", len(res.Added)),
			logging.Int("rejected", res.Rejected),
		)
	}
	// Publish the starting positions before any listener accepts requests.
	st.RunFrame(ctx, 0)

	return &app{
		cfg:       cfg,
		log:       log,
		overlay:   overlay,
		labels:    labels,
		state:     st,
		svc:       svc,
		collector: collector,
	}, nil
}

// serve runs the gRPC and HTTP listeners until ctx is cancelled. Either
// listener may be nil. The returned channel yields the first serve error,
// or nil once both have stopped, and is then closed.
func (a *app) serve(ctx context.Context, grpcLis, httpLis net.Listener) <-chan error {
	errCh := make(chan error, 2)
	pending := 0

	if grpcLis != nil {
		pending++
		server := command.NewServer(a.svc, a.log, a.collector)
		a.log.Info(ctx, "starting command gRPC server", logging.String("addr", grpcLis.Addr().String()))
		go func() {
			errCh <- server.Serve(grpcLis)
		}()
		go func() {
			<-ctx.Done()
			server.GracefulStop()
		}()
	}
	if httpLis != nil {
		pending++
		api := httpapi.NewServer(a.svc, a.state.Catalog(),
			httpapi.WithLogger(a.log),
			httpapi.WithMetricsHandler(a.collector.Handler()),
			httpapi.WithFeedInterval(a.cfg.Server.FeedInterval),
		)
		go func() {
			errCh <- api.Serve(ctx, httpLis)
		}()
	}

	out := make(chan error, 1)
	go func() {
		var first error
		for i := 0; i < pending; i++ {
			if err := <-errCh; err != nil && first == nil {
				first = err
			}
		}
		out <- first
		close(out)
	}()
	return out
}

// run is the headless mode: a fixed-tick time controller drives frames
// until duration of simulated time has passed or ctx is cancelled.
func run(ctx context.Context, cfg config.Config, log logging.Logger, grpcLis, httpLis net.Listener, duration time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := newApp(ctx, cfg, log, nil)
	if err != nil {
		closeListeners(grpcLis, httpLis)
		return err
	}
	served := a.serve(ctx, grpcLis, httpLis)

	tc := timectrl.NewTimeController(a.state.SimTime(), cfg.Sim.Tick, cfg.TimeMode())
	tc.AddListener(func(f timectrl.Frame) {
		a.state.RunFrame(ctx, f.Seconds())
	})
	log.Info(ctx, "simulation running",
		logging.Duration("tick", cfg.Sim.Tick),
		logging.String("mode", cfg.Sim.Mode),
		logging.Int("drones", a.state.Len()),
	)

	done := tc.Start(ctx, duration)
	select {
	case <-done:
	case err := <-served:
		if err != nil {
			cancel()
			<-done
			return err
		}
		// No listeners configured; keep simulating.
		<-done
	}

	cancel()
	log.Info(context.Background(), "shutting down simulator",
		logging.Int("drones", a.state.Len()),
		logging.String("sim_time", tc.Now().Format(time.RFC3339)),
	)
	if err := <-served; err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// runTUI drives frames from the terminal frontend. The listeners keep
// serving so remote clients see the same scene.
func runTUI(ctx context.Context, cfg config.Config, log logging.Logger, grpcLis, httpLis net.Listener, audio bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := newApp(ctx, cfg, log, nil)
	if err != nil {
		closeListeners(grpcLis, httpLis)
		return err
	}

	screen, err := tcell.NewScreen()
	if err == nil {
		err = screen.Init()
	}
	if err != nil {
		closeListeners(grpcLis, httpLis)
		return fmt.Errorf("terminal: %w", err)
	}
	defer screen.Fini()

	opts := []termview.Option{termview.WithLogger(log)}
	if audio {
		if spk, err := termview.NewSpeaker(); err != nil {
			log.Warn(ctx, "audio unavailable", logging.Err(err))
		} else {
			defer spk.Close()
			opts = append(opts, termview.WithBlipper(spk))
		}
	}

	served := a.serve(ctx, grpcLis, httpLis)
	view := termview.New(screen, a.state, a.overlay, a.labels, a.svc, opts...)
	runErr := view.Run(ctx, cfg.Sim.Tick, timectrl.NewDeltaClock(time.Now, maxFrameDelta))

	cancel()
	if err := <-served; err != nil && !errors.Is(err, net.ErrClosed) && runErr == nil {
		runErr = err
	}
	return runErr
}
