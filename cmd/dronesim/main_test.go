package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/drone-simulator/internal/command"
	"github.com/signalsfoundry/drone-simulator/internal/config"
	"github.com/signalsfoundry/drone-simulator/internal/logging"
	"github.com/signalsfoundry/drone-simulator/model"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Sim.Tick = 20 * time.Millisecond
	cfg.Sim.Seed = 7
	cfg.Sim.InitialPerType = 2
	cfg.Logging = logging.Config{Level: "warn", Format: "text", Output: io.Discard}
	cfg.Tracing.Enabled = false
	return cfg
}

func TestDroneSimStartupSmoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	grpcLis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	httpLis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}

	cfg := testConfig()
	log := logging.New(cfg.Logging)

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, cfg, log, grpcLis, httpLis, 0)
	}()

	conn, err := grpc.NewClient(grpcLis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	defer conn.Close()
	client := command.NewClient(conn)

	drones, err := client.ListDrones(ctx, grpc.WaitForReady(true))
	if err != nil {
		t.Fatalf("ListDrones: %v", err)
	}
	if len(drones) == 0 || len(drones) > 6 {
		t.Fatalf("ListDrones returned %d drones, want 1..6", len(drones))
	}

	if err := client.SetVisibilityFilter(ctx, model.FlagsOf(model.DroneTypeSquare)); err != nil {
		t.Fatalf("SetVisibilityFilter: %v", err)
	}
	filter, err := client.GetVisibilityFilter(ctx)
	if err != nil {
		t.Fatalf("GetVisibilityFilter: %v", err)
	}
	if !filter.Square || filter.Circle || filter.Triangle {
		t.Fatalf("filter = %+v, want squares only", filter)
	}

	resp, err := http.Get("http://" + httpLis.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /healthz status = %d", resp.StatusCode)
	}

	cancel()

	if err := <-errCh; err != nil {
		t.Fatalf("run returned error: %v", err)
	}
}

func TestRunHeadlessStopsAfterDuration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := testConfig()
	cfg.Sim.Mode = "accelerated"
	cfg.Sim.Tick = time.Second

	if err := run(ctx, cfg, logging.Noop(), nil, nil, time.Minute); err != nil {
		t.Fatalf("run: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatalf("run only returned after the context expired")
	}
}

func TestLogOutput(t *testing.T) {
	w, closeFn, err := logOutput("", true)
	if err != nil || w != io.Discard {
		t.Fatalf("tui without file: writer=%v err=%v", w, err)
	}
	closeFn()

	w, closeFn, err = logOutput("", false)
	if err != nil || w != os.Stdout {
		t.Fatalf("headless without file: writer=%v err=%v", w, err)
	}
	closeFn()

	path := filepath.Join(t.TempDir(), "dronesim.log")
	w, closeFn, err = logOutput(path, true)
	if err != nil {
		t.Fatalf("logOutput(%s): %v", path, err)
	}
	if _, err := io.WriteString(w, "hello\n"); err != nil {
		t.Fatalf("write log: %v", err)
	}
	closeFn()
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "hello\n" {
		t.Fatalf("log file = %q, %v", data, err)
	}

	if _, _, err := logOutput(filepath.Join(t.TempDir(), "missing", "x.log"), false); err == nil {
		t.Fatalf("expected error for a missing directory")
	}
}
