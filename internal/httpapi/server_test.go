package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/signalsfoundry/drone-simulator/internal/command"
	"github.com/signalsfoundry/drone-simulator/internal/logging"
	"github.com/signalsfoundry/drone-simulator/internal/render"
	"github.com/signalsfoundry/drone-simulator/internal/scene"
	"github.com/signalsfoundry/drone-simulator/internal/sim/state"
	"github.com/signalsfoundry/drone-simulator/kb"
	"github.com/signalsfoundry/drone-simulator/model"
)

var tallinn = model.GeoPoint{Lat: 59.437, Lng: 24.7536}

type fixture struct {
	state  *state.ScenarioState
	server *Server
	http   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := scene.NewController(render.NewOverlay(tallinn), render.NewLabelLayer(800, 600))
	st := state.NewScenarioState(ctrl, logging.Noop())
	spawner, err := command.NewSpawner(command.DefaultSpawnPolicy(), 9)
	if err != nil {
		t.Fatalf("NewSpawner: %v", err)
	}
	svc := command.NewService(st, spawner, nil)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("dronesim_frames_total 0\n"))
	})
	srv := NewServer(svc, st.Catalog(), WithMetricsHandler(metrics), WithFeedInterval(10*time.Millisecond))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		srv.Feed().Close()
		ts.Close()
	})
	return &fixture{state: st, server: srv, http: ts}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, f.http.URL+path, &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	if resp := f.do(t, http.MethodGet, "/healthz", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("/healthz status = %d", resp.StatusCode)
	}
	resp := f.do(t, http.MethodGet, "/metrics", nil)
	if resp.StatusCode != http.StatusOK || resp.Header.Get(requestIDHeader) == "" {
		t.Fatalf("/metrics status = %d, request id %q", resp.StatusCode, resp.Header.Get(requestIDHeader))
	}
}

func TestAddAndListDrones(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/drones", addDronesRequest{Types: []string{"circle", "triangle"}, Count: 2})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST status = %d", resp.StatusCode)
	}
	var added addDronesResponse
	if err := json.NewDecoder(resp.Body).Decode(&added); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(added.Added) != 4 {
		t.Fatalf("added = %+v", added)
	}

	f.state.RunFrame(context.Background(), 1)

	var list listResponse
	if err := json.NewDecoder(f.do(t, http.MethodGet, "/api/v1/drones?type=triangle", nil).Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Frame != 1 || len(list.Drones) != 2 {
		t.Fatalf("list = %+v", list)
	}
	for _, d := range list.Drones {
		if d.Type != model.DroneTypeTriangle || d.TTL == nil {
			t.Fatalf("listed drone = %+v", d)
		}
	}

	resp = f.do(t, http.MethodGet, "/api/v1/drones/"+added.Added[0], nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET drone status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodGet, "/api/v1/drones/missing", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET missing status = %d", resp.StatusCode)
	}
}

func TestAddDronesRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		body any
		code int
	}{
		{addDronesRequest{Types: []string{"circle"}, Count: 0}, http.StatusBadRequest},
		{addDronesRequest{Count: 3}, http.StatusBadRequest},
		{addDronesRequest{Types: []string{"blimp"}, Count: 1}, http.StatusBadRequest},
		{"not an object", http.StatusBadRequest},
	}
	for _, tc := range cases {
		if resp := f.do(t, http.MethodPost, "/api/v1/drones", tc.body); resp.StatusCode != tc.code {
			t.Fatalf("POST %v status = %d, want %d", tc.body, resp.StatusCode, tc.code)
		}
	}
	if resp := f.do(t, http.MethodGet, "/api/v1/drones?type=blimp", nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("GET ?type=blimp status = %d", resp.StatusCode)
	}
}

func TestFilterRoundTrip(t *testing.T) {
	f := newFixture(t)
	want := model.FlagsOf(model.DroneTypeSquare, model.DroneTypeCircle)
	if resp := f.do(t, http.MethodPut, "/api/v1/filter", want); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("PUT status = %d", resp.StatusCode)
	}
	var got model.DroneFlags
	if err := json.NewDecoder(f.do(t, http.MethodGet, "/api/v1/filter", nil).Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Fatalf("filter = %+v, want %+v", got, want)
	}
}

func TestPutExpanded(t *testing.T) {
	f := newFixture(t)
	var added addDronesResponse
	if err := json.NewDecoder(f.do(t, http.MethodPost, "/api/v1/drones", addDronesRequest{Types: []string{"square"}, Count: 1}).Body).Decode(&added); err != nil {
		t.Fatalf("decode: %v", err)
	}
	id := added.Added[0]
	path := "/api/v1/drones/" + id + "/expanded"

	if resp := f.do(t, http.MethodPut, path, map[string]bool{"expanded": true}); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("PUT expanded status = %d", resp.StatusCode)
	}
	f.state.RunFrame(context.Background(), 0)
	if d, ok := f.state.Catalog().Get(id); !ok || !d.Expanded {
		t.Fatalf("snapshot = %+v, %v; want expanded", d, ok)
	}

	if resp := f.do(t, http.MethodPut, path, map[string]bool{"expanded": false}); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("PUT collapse status = %d", resp.StatusCode)
	}
	f.state.RunFrame(context.Background(), 0)
	if d, _ := f.state.Catalog().Get(id); d.Expanded {
		t.Fatalf("drone still expanded after collapse")
	}

	if resp := f.do(t, http.MethodPut, "/api/v1/drones/missing/expanded", map[string]bool{"expanded": true}); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("PUT missing status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodPut, path, map[string]string{}); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("PUT without field status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodPut, path, "yes"); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("PUT bad body status = %d", resp.StatusCode)
	}
}

func TestGeoJSONExport(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/v1/drones", addDronesRequest{Types: []string{"square"}, Count: 1})
	f.state.RunFrame(context.Background(), 0)

	resp := f.do(t, http.MethodGet, "/api/v1/drones.geojson", nil)
	if ct := resp.Header.Get("Content-Type"); ct != "application/geo+json" {
		t.Fatalf("content type = %q", ct)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(buf.Bytes())
	if err != nil {
		t.Fatalf("UnmarshalFeatureCollection: %v", err)
	}
	if len(fc.Features) != 1 {
		t.Fatalf("features = %d, want 1", len(fc.Features))
	}
	feat := fc.Features[0]
	p, ok := feat.Geometry.(orb.Point)
	snap := f.state.Catalog().List()[0]
	if !ok || p.Lon() != snap.Location.Lng || p.Lat() != snap.Location.Lat {
		t.Fatalf("geometry = %v, want %v", feat.Geometry, snap.Location)
	}
	if feat.Properties.MustString("type") != "square" {
		t.Fatalf("properties = %v", feat.Properties)
	}
	if _, ok := feat.Properties["ttl"]; ok {
		t.Fatalf("square feature must not carry a ttl")
	}
}

func TestFeedStreamsSnapshotThenDelta(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/v1/drones", addDronesRequest{Types: []string{"circle"}, Count: 1})
	f.state.RunFrame(context.Background(), 0)

	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws/drones"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first FeedMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if first.Type != "snapshot" || len(first.Drones) != 1 {
		t.Fatalf("first message = %+v", first)
	}

	// A circle completes its lap and is pruned.
	f.state.RunFrame(context.Background(), 10_000)
	for {
		var msg FeedMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read delta: %v", err)
		}
		if msg.Type != "delta" {
			t.Fatalf("message type = %q", msg.Type)
		}
		if len(msg.Removed) == 1 && msg.Removed[0] == first.Drones[0].ID {
			if msg.Frame != 2 {
				t.Fatalf("delta frame = %d, want 2", msg.Frame)
			}
			break
		}
	}
}

func TestPendingCoalesces(t *testing.T) {
	p := newPending()
	snap := model.DroneSnapshot{ID: "a"}
	p.add(kbEvent(true, snap))
	p.add(kbEvent(false, snap))
	p.add(kbEvent(true, model.DroneSnapshot{ID: "b"}))

	updated, removed := p.drain()
	if len(updated) != 1 || updated[0].ID != "b" || len(removed) != 1 || removed[0] != "a" {
		t.Fatalf("drain = %+v, %v", updated, removed)
	}
	if u, r := p.drain(); len(u) != 0 || len(r) != 0 {
		t.Fatalf("second drain not empty: %v, %v", u, r)
	}
}

func kbEvent(updated bool, d model.DroneSnapshot) kb.Event {
	if updated {
		return kb.Event{Type: kb.EventDroneUpdated, Drone: d}
	}
	return kb.Event{Type: kb.EventDroneRemoved, Drone: d}
}
