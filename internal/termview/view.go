// Package termview draws the live scene in a terminal with tcell and turns
// mouse and key events into scene interactions.
package termview

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/signalsfoundry/drone-simulator/internal/command"
	"github.com/signalsfoundry/drone-simulator/internal/logging"
	"github.com/signalsfoundry/drone-simulator/internal/render"
	"github.com/signalsfoundry/drone-simulator/internal/scene"
	"github.com/signalsfoundry/drone-simulator/internal/sim/state"
	"github.com/signalsfoundry/drone-simulator/model"
	"github.com/signalsfoundry/drone-simulator/timectrl"
)

// cellAspect is the height of a terminal cell over its width.
const cellAspect = 2.0

var filterKeys = map[rune]model.DroneType{
	'1': model.DroneTypeCircle,
	'2': model.DroneTypeTriangle,
	'3': model.DroneTypeSquare,
}

// View owns a tcell screen and draws the overlay scene on it. Frames and
// input are serialized through the ScenarioState.
type View struct {
	screen  tcell.Screen
	state   *state.ScenarioState
	overlay *render.Overlay
	labels  *render.LabelLayer
	svc     *command.Service
	log     logging.Logger
	blip    Blipper

	addCount int
	buttons  tcell.ButtonMask
	status   string
}

// Option configures a View.
type Option func(*View)

// WithBlipper plays a cue whenever a drone is expanded.
func WithBlipper(b Blipper) Option {
	return func(v *View) { v.blip = b }
}

// WithLogger sets the view logger. The screen owns stdout, so the logger
// should write elsewhere.
func WithLogger(l logging.Logger) Option {
	return func(v *View) {
		if l != nil {
			v.log = l
		}
	}
}

// WithAddCount sets how many drones of each type the 'a' key adds.
func WithAddCount(n int) Option {
	return func(v *View) {
		if n > 0 {
			v.addCount = n
		}
	}
}

// New builds a view over an initialised screen. labels must be the layer
// the scene controller was built with.
func New(screen tcell.Screen, st *state.ScenarioState, overlay *render.Overlay, labels *render.LabelLayer, svc *command.Service, opts ...Option) *View {
	v := &View{
		screen:   screen,
		state:    st,
		overlay:  overlay,
		labels:   labels,
		svc:      svc,
		log:      logging.Noop(),
		addCount: 10,
	}
	for _, opt := range opts {
		opt(v)
	}
	screen.EnableMouse()
	v.resize()
	return v
}

// Run drives frames from a variable-delta clock until ctx is cancelled or
// the user quits. tick is the redraw period.
func (v *View) Run(ctx context.Context, tick time.Duration, clock *timectrl.DeltaClock) error {
	events := make(chan tcell.Event, 64)
	quit := make(chan struct{})
	defer close(quit)
	go v.screen.ChannelEvents(events, quit)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if v.HandleEvent(ctx, ev) {
				return nil
			}
		case <-ticker.C:
			v.state.RunFrame(ctx, clock.Delta())
			v.Draw()
		}
	}
}

// HandleEvent applies one input event and reports whether the user asked
// to quit.
func (v *View) HandleEvent(ctx context.Context, ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		v.screen.Sync()
		v.resize()
	case *tcell.EventMouse:
		x, y := ev.Position()
		w, h := v.screen.Size()
		v.state.PointerMoved(scene.NDCFromPixel(float64(x)+0.5, float64(y)+0.5, float64(w), float64(h)))

		pressed := ev.Buttons()&tcell.Button1 != 0 && v.buttons&tcell.Button1 == 0
		v.buttons = ev.Buttons()
		if pressed {
			v.click(ctx)
		}
	case *tcell.EventKey:
		return v.handleKey(ctx, ev)
	}
	return false
}

func (v *View) handleKey(ctx context.Context, ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyRune:
	default:
		return false
	}

	r := ev.Rune()
	if t, ok := filterKeys[r]; ok {
		f, err := v.svc.VisibilityFilter()
		if err != nil {
			v.status = err.Error()
			return false
		}
		if err := v.svc.SetVisibilityFilter(ctx, f.With(t, !f.Allows(t))); err != nil {
			v.status = err.Error()
		}
		return false
	}

	switch r {
	case 'q':
		return true
	case 'a':
		res, err := v.svc.AddDrones(ctx, model.AllDrones(), v.addCount)
		if err != nil {
			v.status = err.Error()
			v.log.Warn(ctx, "add drones failed", logging.Err(err))
		} else {
			v.status = fmt.Sprintf("added %d drones", len(res.Added))
		}
	case '+', '=':
		v.zoom(0.8)
	case '-', '_':
		v.zoom(1.25)
	}
	return false
}

func (v *View) click(ctx context.Context) {
	id := v.state.PointerClicked(ctx)
	if id == "" {
		return
	}
	var expanded bool
	v.state.View(func(c *scene.Controller) { expanded = c.Expanded(id) })
	if expanded && v.blip != nil {
		v.blip.Blip()
	}
}

func (v *View) zoom(factor float64) {
	v.state.View(func(*scene.Controller) {
		v.overlay.Camera.Zoom(factor)
		v.updatePickScale()
	})
}

// resize matches the label container and camera to the terminal.
func (v *View) resize() {
	w, h := v.screen.Size()
	if w <= 0 || h <= 0 {
		return
	}
	v.state.View(func(*scene.Controller) {
		v.labels.SetSize(float64(w), float64(h))
		v.overlay.Camera.Aspect = float64(w) / (float64(h) * cellAspect)
		v.updatePickScale()
	})
}

// updatePickScale makes a drone clickable anywhere in its cell. Caller
// serializes with the frame loop.
func (v *View) updatePickScale() {
	_, h := v.screen.Size()
	if h <= 0 {
		return
	}
	cam := v.overlay.Camera
	visibleHeight := 2 * cam.Eye.Sub(cam.Target).Len() * math.Tan(cam.FovY/2)
	rowM := visibleHeight / float64(h)
	colM := rowM / cellAspect
	v.overlay.SetPickScale(math.Max(1, math.Max(rowM, colM)/render.MeshSizeM))
}

// Draw paints meshes, labels and the status line.
func (v *View) Draw() {
	v.screen.Clear()
	w, h := v.screen.Size()

	var (
		visible int
		filter  model.DroneFlags
	)
	v.state.View(func(c *scene.Controller) {
		filter = c.Filter()
		for _, m := range v.overlay.Scene.Meshes() {
			if !m.Visible() {
				continue
			}
			x, y, ok := v.overlay.ScreenPoint(m.Position(), float64(w), float64(h))
			if !ok || x < 0 || y < 0 || int(x) >= w || int(y) >= h-1 {
				continue
			}
			visible++
			style := tcell.StyleDefault.Foreground(tcell.NewHexColor(int32(m.Color())))
			v.screen.SetContent(int(x), int(y), glyph(m.Kind()), nil, style)
		}
		for _, l := range v.labels.Labels() {
			v.drawLabel(l, w, h)
		}
	})

	hint := ""
	if v.overlay.PointerHint() {
		hint = " [pointer]"
	}
	line := fmt.Sprintf(" drones %d  filter %s  @%s%s  %s",
		visible, filterString(filter), v.overlay.Anchor(), hint, v.status)
	drawText(v.screen, 0, h-1, line, tcell.StyleDefault.Reverse(true), w)
	v.screen.Show()
}

func (v *View) drawLabel(l render.LabelView, w, h int) {
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorDarkSlateGray)
	x, y := int(l.X)+1, int(l.Y)
	for i, line := range strings.Split(l.Text, "\n") {
		row := y + i
		if row < 0 || row >= h-1 {
			continue
		}
		drawText(v.screen, x, row, line, style, w)
	}
}

func drawText(s tcell.Screen, x, y int, text string, style tcell.Style, width int) {
	for _, r := range text {
		if x >= width {
			return
		}
		if x >= 0 {
			s.SetContent(x, y, r, nil, style)
		}
		x++
	}
}

func glyph(k model.RenderKind) rune {
	switch k {
	case model.RenderKindBox:
		return '■'
	case model.RenderKindTetrahedron:
		return '▲'
	default:
		return '●'
	}
}

func filterString(f model.DroneFlags) string {
	mark := func(on bool, c string) string {
		if on {
			return c
		}
		return "-"
	}
	return "[" + mark(f.Circle, "C") + mark(f.Triangle, "T") + mark(f.Square, "S") + "]"
}
