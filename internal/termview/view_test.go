package termview

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/signalsfoundry/drone-simulator/core"
	"github.com/signalsfoundry/drone-simulator/internal/command"
	"github.com/signalsfoundry/drone-simulator/internal/logging"
	"github.com/signalsfoundry/drone-simulator/internal/render"
	"github.com/signalsfoundry/drone-simulator/internal/scene"
	"github.com/signalsfoundry/drone-simulator/internal/sim/state"
	"github.com/signalsfoundry/drone-simulator/model"
)

var tallinn = model.GeoPoint{Lat: 59.437, Lng: 24.7536}

type countingBlipper struct{ n int }

func (b *countingBlipper) Blip() { b.n++ }

type harness struct {
	view    *View
	state   *state.ScenarioState
	overlay *render.Overlay
	labels  *render.LabelLayer
	svc     *command.Service
	screen  tcell.SimulationScreen
	blip    *countingBlipper
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("screen.Init: %v", err)
	}
	t.Cleanup(screen.Fini)
	screen.SetSize(80, 24)

	overlay := render.NewOverlay(tallinn)
	labels := render.NewLabelLayer(80, 24)
	st := state.NewScenarioState(scene.NewController(overlay, labels), logging.Noop())
	spawner, err := command.NewSpawner(command.DefaultSpawnPolicy(), 5)
	if err != nil {
		t.Fatalf("NewSpawner: %v", err)
	}
	svc := command.NewService(st, spawner, nil)
	blip := &countingBlipper{}
	view := New(screen, st, overlay, labels, svc, WithBlipper(blip), WithAddCount(2))
	return &harness{view: view, state: st, overlay: overlay, labels: labels, svc: svc, screen: screen, blip: blip}
}

// cellOf returns the terminal cell a drone is drawn in.
func (h *harness) cellOf(t *testing.T, id string) (int, int) {
	t.Helper()
	w, ht := h.screen.Size()
	for _, m := range h.overlay.Scene.Meshes() {
		if m.DroneID() != id {
			continue
		}
		x, y, ok := h.overlay.ScreenPoint(m.Position(), float64(w), float64(ht))
		if !ok {
			t.Fatalf("drone %s behind camera", id)
		}
		return int(x), int(y)
	}
	t.Fatalf("no mesh for %s", id)
	return 0, 0
}

func (h *harness) screenText() string {
	w, ht := h.screen.Size()
	var b strings.Builder
	for y := 0; y < ht; y++ {
		for x := 0; x < w; x++ {
			r, _, _, _ := h.screen.GetContent(x, y)
			b.WriteRune(r)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func mouse(x, y int, buttons tcell.ButtonMask) *tcell.EventMouse {
	return tcell.NewEventMouse(x, y, buttons, tcell.ModNone)
}

func key(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestDrawPlacesGlyphs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d, err := core.NewSquareDrone(tallinn, model.GeoPoint{Lat: 0, Lng: 24.7536}, 20)
	if err != nil {
		t.Fatalf("NewSquareDrone: %v", err)
	}
	if err := h.state.AddDrone(ctx, d); err != nil {
		t.Fatalf("AddDrone: %v", err)
	}
	h.state.RunFrame(ctx, 0)
	h.view.Draw()

	x, y := h.cellOf(t, d.ID())
	if r, _, _, _ := h.screen.GetContent(x, y); r != '■' {
		t.Fatalf("cell (%d,%d) = %q, want box glyph", x, y, r)
	}
	if !strings.Contains(h.screenText(), "drones 1  filter [CTS]  @(59.437000;24.753600)") {
		t.Fatalf("status line missing:\n%s", h.screenText())
	}
}

func TestHoverClickAndLabel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d, err := core.NewTriangleDrone(tallinn, model.GeoPoint{Lat: 0, Lng: 0}, 10)
	if err != nil {
		t.Fatalf("NewTriangleDrone: %v", err)
	}
	if err := h.state.AddDrone(ctx, d); err != nil {
		t.Fatalf("AddDrone: %v", err)
	}
	h.state.RunFrame(ctx, 0)
	x, y := h.cellOf(t, d.ID())

	h.view.HandleEvent(ctx, mouse(x, y, tcell.ButtonNone))
	if report := h.state.RunFrame(ctx, 0); report.Highlighted != d.ID() {
		t.Fatalf("highlighted = %q, want %q", report.Highlighted, d.ID())
	}
	if !h.overlay.PointerHint() {
		t.Fatalf("pointer hint not set while hovering")
	}

	h.view.HandleEvent(ctx, mouse(x, y, tcell.Button1))
	h.view.HandleEvent(ctx, mouse(x, y, tcell.Button1)) // drag, not a new press
	if h.blip.n != 1 {
		t.Fatalf("blips = %d, want 1", h.blip.n)
	}
	h.state.RunFrame(ctx, 1)
	h.view.Draw()
	text := h.screenText()
	if !strings.Contains(text, "Speed    36.00km/h") || !strings.Contains(text, "TTL      3599.0 seconds") {
		t.Fatalf("label not drawn:\n%s", text)
	}

	h.view.HandleEvent(ctx, mouse(x, y, tcell.ButtonNone))
	h.view.HandleEvent(ctx, mouse(x, y, tcell.Button1))
	h.state.RunFrame(ctx, 0)
	if len(h.labels.Labels()) != 0 || h.blip.n != 1 {
		t.Fatalf("collapse left %d labels, %d blips", len(h.labels.Labels()), h.blip.n)
	}
}

func TestKeys(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if h.view.HandleEvent(ctx, key('3')) {
		t.Fatalf("filter key quit the view")
	}
	f, _ := h.svc.VisibilityFilter()
	if f.Square || !f.Circle || !f.Triangle {
		t.Fatalf("filter after '3' = %+v", f)
	}
	h.view.HandleEvent(ctx, key('3'))
	if f, _ := h.svc.VisibilityFilter(); !f.Square {
		t.Fatalf("second '3' did not restore square")
	}

	h.view.HandleEvent(ctx, key('a'))
	if h.state.Len() != 6 {
		t.Fatalf("drones after 'a' = %d, want 6", h.state.Len())
	}

	before := h.overlay.Camera.Eye.Y()
	h.view.HandleEvent(ctx, key('+'))
	if got := h.overlay.Camera.Eye.Y(); got >= before {
		t.Fatalf("zoom in moved eye from %v to %v", before, got)
	}

	if !h.view.HandleEvent(ctx, key('q')) {
		t.Fatalf("'q' did not quit")
	}
	if !h.view.HandleEvent(ctx, tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)) {
		t.Fatalf("Esc did not quit")
	}
}

func TestResizeUpdatesLabelLayer(t *testing.T) {
	h := newHarness(t)
	h.screen.SetSize(100, 30)
	h.view.HandleEvent(context.Background(), tcell.NewEventResize(100, 30))
	if w, ht := h.labels.Size(); w != 100 || ht != 30 {
		t.Fatalf("label layer = %vx%v, want 100x30", w, ht)
	}
	if got, want := h.overlay.Camera.Aspect, 100.0/60.0; got != want {
		t.Fatalf("camera aspect = %v, want %v", got, want)
	}
}

func TestToneLength(t *testing.T) {
	s := Tone(sampleRate, 440, 10*time.Millisecond)
	buf := make([][2]float64, 128)
	total := 0
	for {
		n, ok := s.Stream(buf)
		total += n
		if !ok {
			break
		}
	}
	if want := sampleRate.N(10 * time.Millisecond); total != want {
		t.Fatalf("tone produced %d samples, want %d", total, want)
	}
}
