package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/drone-simulator/internal/command"
	"github.com/signalsfoundry/drone-simulator/internal/logging"
	"github.com/signalsfoundry/drone-simulator/internal/render"
	"github.com/signalsfoundry/drone-simulator/internal/scene"
	"github.com/signalsfoundry/drone-simulator/internal/sim/state"
	"github.com/signalsfoundry/drone-simulator/model"
)

func startServer(t *testing.T) (*command.Client, *state.ScenarioState) {
	t.Helper()
	anchor := model.GeoPoint{Lat: 59.437, Lng: 24.7536}
	st := state.NewScenarioState(scene.NewController(render.NewOverlay(anchor), render.NewLabelLayer(800, 600)), logging.Noop())
	spawner, err := command.NewSpawner(command.DefaultSpawnPolicy(), 3)
	if err != nil {
		t.Fatalf("NewSpawner: %v", err)
	}
	srv := command.NewServer(command.NewService(st, spawner, nil), logging.Noop(), nil)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return command.NewClient(conn), st
}

func TestDispatchAddFilterList(t *testing.T) {
	client, st := startServer(t)
	ctx := context.Background()

	var out bytes.Buffer
	if err := dispatch(ctx, client, []string{"add", "-types", "square", "-count", "3"}, &out); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.HasPrefix(out.String(), "added 3, rejected 0\n") {
		t.Fatalf("add output = %q", out.String())
	}

	out.Reset()
	if err := dispatch(ctx, client, []string{"filter", "circle,triangle"}, &out); err != nil {
		t.Fatalf("filter set: %v", err)
	}
	out.Reset()
	if err := dispatch(ctx, client, []string{"filter"}, &out); err != nil {
		t.Fatalf("filter get: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "circle,triangle" {
		t.Fatalf("filter = %q", got)
	}

	st.RunFrame(ctx, 1)
	out.Reset()
	if err := dispatch(ctx, client, []string{"list"}, &out); err != nil {
		t.Fatalf("list: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 || !strings.HasPrefix(lines[0], "ID") {
		t.Fatalf("list output = %q", out.String())
	}
	if !strings.Contains(lines[1], "square") || !strings.Contains(lines[1], "false") {
		t.Fatalf("list row = %q", lines[1])
	}
}

func TestDispatchErrors(t *testing.T) {
	client, _ := startServer(t)
	ctx := context.Background()

	if err := dispatch(ctx, client, nil, &bytes.Buffer{}); !errors.Is(err, errUsage) {
		t.Fatalf("no args err = %v", err)
	}
	if err := dispatch(ctx, client, []string{"launch"}, &bytes.Buffer{}); !errors.Is(err, errUsage) {
		t.Fatalf("unknown command err = %v", err)
	}
	if err := dispatch(ctx, client, []string{"add", "-types", "hexagon"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for unknown type")
	}
	if err := dispatch(ctx, client, []string{"add", "-count", "0"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for zero count")
	}
}

func TestParseAndFormatTypes(t *testing.T) {
	f, err := parseTypes("Square, circle")
	if err != nil {
		t.Fatalf("parseTypes: %v", err)
	}
	if f != model.FlagsOf(model.DroneTypeCircle, model.DroneTypeSquare) {
		t.Fatalf("parseTypes = %+v", f)
	}
	if got := formatTypes(f); got != "circle,square" {
		t.Fatalf("formatTypes = %q", got)
	}
	if f, err := parseTypes("none"); err != nil || f.Any() {
		t.Fatalf("parseTypes(none) = %+v, %v", f, err)
	}
	if got := formatTypes(model.DroneFlags{}); got != "none" {
		t.Fatalf("formatTypes(empty) = %q", got)
	}
}
