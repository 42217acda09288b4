package scene

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/drone-simulator/core"
)

// LabelText renders the info label for d. The TTL row appears only when
// the drone has a finite TTL.
func LabelText(d *core.Drone) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Speed    %.2fkm/h\n", core.MsToKmh(d.SpeedMS()))
	loc := d.Location()
	fmt.Fprintf(&b, "Location (%.6f;%.6f)", loc.Lat, loc.Lng)
	if ttl, finite := d.TTL(); finite {
		fmt.Fprintf(&b, "\nTTL      %.1f seconds", ttl)
	}
	return b.String()
}

// ScreenPosition projects a world position through projection × view and
// maps the clip-space x/y onto a container of the given size, with the
// origin at the top-left corner.
func ScreenPosition(world mgl64.Vec3, projection, view mgl64.Mat4, width, height float64) (x, y float64) {
	clip := projection.Mul4(view).Mul4x1(world.Vec4(1))
	ndcX, ndcY := clip.X(), clip.Y()
	if w := clip.W(); w != 0 {
		ndcX /= w
		ndcY /= w
	}
	hw, hh := width/2, height/2
	return ndcX*hw + hw, -ndcY*hh + hh
}

// NDCFromPixel converts a container-relative pixel position into
// normalized device coordinates in [-1, 1], Y up.
func NDCFromPixel(x, y, width, height float64) mgl64.Vec2 {
	if width <= 0 || height <= 0 {
		return mgl64.Vec2{}
	}
	return mgl64.Vec2{2*x/width - 1, 1 - 2*y/height}
}
