package scene

import (
	"github.com/signalsfoundry/drone-simulator/core"
	"github.com/signalsfoundry/drone-simulator/model"
)

const (
	// HoverTint is shown on the drone under the pointer.
	HoverTint model.Color = 0xcccccc
	// ExpandedTint is shown on expanded drones that are not hovered.
	ExpandedTint model.Color = 0xffffff
)

type override int

const (
	overrideNone override = iota
	overrideHovered
	overrideExpanded
)

// proxy is the controller's side-table entry for one drone.
type proxy struct {
	drone *core.Drone // not owned
	mesh  Renderable

	base     model.Color // captured once at creation
	override override
	expanded bool
	label    Label // non-nil only while expanded

	evict bool
}

func newProxy(d *core.Drone, mesh Renderable) *proxy {
	return &proxy{drone: d, mesh: mesh, base: mesh.Color()}
}

// resolve is the single restore routine: it derives the override from the
// hover and expanded state and writes the resulting display color.
func (p *proxy) resolve(hovered bool) {
	switch {
	case hovered:
		p.override = overrideHovered
	case p.expanded:
		p.override = overrideExpanded
	default:
		p.override = overrideNone
	}
	p.mesh.SetColor(p.displayColor())
}

func (p *proxy) displayColor() model.Color {
	switch p.override {
	case overrideHovered:
		return HoverTint
	case overrideExpanded:
		return ExpandedTint
	default:
		return p.base
	}
}

func (p *proxy) releaseLabel() {
	if p.label != nil {
		p.label.Close()
		p.label = nil
	}
}
