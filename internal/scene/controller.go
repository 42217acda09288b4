package scene

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/drone-simulator/core"
	"github.com/signalsfoundry/drone-simulator/internal/logging"
	"github.com/signalsfoundry/drone-simulator/model"
)

var (
	// ErrUnknownDrone is returned when an ID has no live proxy.
	ErrUnknownDrone = errors.New("unknown drone")
	// ErrDuplicateDrone is returned when a drone is added twice.
	ErrDuplicateDrone = errors.New("drone already added")
)

// Controller bridges the simulation and the renderer. It is single-threaded:
// a multi-threaded host must serialize every call.
type Controller struct {
	sim      *core.Simulation
	renderer Renderer
	labels   LabelLayer
	log      logging.Logger

	proxies map[string]*proxy
	order   []string // insertion order, keeps hit-test input stable

	filter      model.DroneFlags
	highlighted string
	pointer     mgl64.Vec2
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// NewController builds a controller with every drone type visible.
func NewController(r Renderer, labels LabelLayer, opts ...Option) *Controller {
	c := &Controller{
		sim:      core.NewSimulation(),
		renderer: r,
		labels:   labels,
		log:      logging.Noop(),
		proxies:  make(map[string]*proxy),
		filter:   model.AllDrones(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Simulation returns the underlying simulation.
func (c *Controller) Simulation() *core.Simulation { return c.sim }

// AddDrone registers d with the simulation and creates its proxy.
func (c *Controller) AddDrone(d *core.Drone) error {
	if d == nil {
		return fmt.Errorf("add drone: nil drone")
	}
	if _, ok := c.proxies[d.ID()]; ok {
		return fmt.Errorf("add drone %s: %w", d.ID(), ErrDuplicateDrone)
	}
	c.sim.AddDrone(d)

	mesh := c.renderer.NewMesh(d.ID(), d.RenderKind(), d.Tint())
	mesh.SetPosition(c.renderer.Project(d.Location()))
	mesh.SetVisible(c.filter.Allows(d.Type()))
	c.renderer.Add(mesh)

	c.proxies[d.ID()] = newProxy(d, mesh)
	c.order = append(c.order, d.ID())
	return nil
}

// SetFilter replaces the visibility filter. It takes effect on the next
// Update.
func (c *Controller) SetFilter(f model.DroneFlags) { c.filter = f }

// Filter returns the current visibility filter.
func (c *Controller) Filter() model.DroneFlags { return c.filter }

// PointerMoved records the pointer position for the next BeforeDraw.
func (c *Controller) PointerMoved(ndc mgl64.Vec2) { c.pointer = ndc }

// PointerClicked toggles the expanded state of the highlighted drone. With
// nothing highlighted it does nothing and returns "".
func (c *Controller) PointerClicked() string {
	p, ok := c.proxies[c.highlighted]
	if !ok {
		return ""
	}
	c.setExpanded(p, !p.expanded, true)
	return c.highlighted
}

// SetExpanded expands or collapses a drone by ID.
func (c *Controller) SetExpanded(id string, expanded bool) error {
	p, ok := c.proxies[id]
	if !ok {
		return fmt.Errorf("expand %s: %w", id, ErrUnknownDrone)
	}
	c.setExpanded(p, expanded, id == c.highlighted)
	return nil
}

func (c *Controller) setExpanded(p *proxy, expanded, hovered bool) {
	p.expanded = expanded
	p.resolve(hovered)
	if !expanded {
		p.releaseLabel()
	}
}

// Highlighted returns the ID of the hovered drone, or "" when none is.
func (c *Controller) Highlighted() string { return c.highlighted }

// Expanded reports whether the drone with the given ID is expanded.
func (c *Controller) Expanded(id string) bool {
	p, ok := c.proxies[id]
	return ok && p.expanded
}

// Len returns the number of live proxies.
func (c *Controller) Len() int { return len(c.proxies) }

// Update advances the simulation by dt seconds and reconciles the proxies.
// It returns the drones retired in this frame.
func (c *Controller) Update(dt float64) []*core.Drone {
	retired := c.sim.Update(dt)

	for _, id := range c.order {
		p := c.proxies[id]
		p.mesh.SetVisible(c.filter.Allows(p.drone.Type()))

		if !p.drone.Active() {
			c.renderer.Remove(p.mesh)
			p.releaseLabel()
			if c.highlighted == id {
				c.highlighted = ""
				c.renderer.SetPointerHint(false)
			}
			p.evict = true
			continue
		}

		p.mesh.SetPosition(c.renderer.Project(p.drone.Location()))
		c.refreshLabel(p)
	}

	c.sweep()
	for _, d := range retired {
		c.log.Debug(context.Background(), "drone retired",
			logging.String("drone_id", d.ID()),
			logging.String("type", string(d.Type())),
			logging.String("reason", string(d.RetireReason())),
		)
	}
	return retired
}

// sweep evicts proxies marked during Update.
func (c *Controller) sweep() {
	kept := c.order[:0]
	for _, id := range c.order {
		if c.proxies[id].evict {
			delete(c.proxies, id)
			continue
		}
		kept = append(kept, id)
	}
	for i := len(kept); i < len(c.order); i++ {
		c.order[i] = ""
	}
	c.order = kept
}

func (c *Controller) refreshLabel(p *proxy) {
	if !p.expanded {
		p.releaseLabel()
		return
	}
	if p.label == nil {
		p.label = c.labels.NewLabel()
	}
	p.label.SetText(LabelText(p.drone))

	w, h := c.labels.Size()
	x, y := ScreenPosition(p.mesh.Position(), c.renderer.Projection(), c.renderer.View(), w, h)
	p.label.SetPosition(x, y)
}

// BeforeDraw runs the per-frame hit test. The render driver calls it once
// per frame before drawing.
func (c *Controller) BeforeDraw() {
	if p, ok := c.proxies[c.highlighted]; ok {
		p.resolve(false)
	}
	c.highlighted = ""

	candidates := make([]Renderable, 0, len(c.order))
	for _, id := range c.order {
		if p := c.proxies[id]; p.mesh.Visible() {
			candidates = append(candidates, p.mesh)
		}
	}

	hit, ok := c.renderer.Raycast(c.pointer, candidates)
	if !ok {
		c.renderer.SetPointerHint(false)
		return
	}
	p, known := c.proxies[hit.DroneID()]
	if !known {
		c.renderer.SetPointerHint(false)
		return
	}
	c.highlighted = hit.DroneID()
	p.resolve(true)
	c.renderer.SetPointerHint(true)
}

// Snapshots returns one snapshot per live proxy in insertion order. ECEF
// positions are computed for the given wall-clock time.
func (c *Controller) Snapshots(at time.Time) []model.DroneSnapshot {
	out := make([]model.DroneSnapshot, 0, len(c.order))
	for _, id := range c.order {
		p := c.proxies[id]
		d := p.drone
		loc := d.Location()
		s := model.DroneSnapshot{
			ID:          id,
			Type:        d.Type(),
			Location:    loc,
			ECEF:        core.GeodeticToECEF(loc, 0, at),
			SpeedMS:     d.SpeedMS(),
			Visible:     p.mesh.Visible(),
			Expanded:    p.expanded,
			Highlighted: id == c.highlighted,
		}
		if ttl, finite := d.TTL(); finite {
			s.TTL = &ttl
		}
		out = append(out, s)
	}
	return out
}

// Label returns the open label of an expanded drone, or nil.
func (c *Controller) Label(id string) Label {
	if p, ok := c.proxies[id]; ok {
		return p.label
	}
	return nil
}
