package render

import (
	"sort"
	"sync"

	"github.com/signalsfoundry/drone-simulator/internal/scene"
)

// TextLabel is an in-memory label. Frontends read it through
// LabelLayer.Labels.
type TextLabel struct {
	layer *LabelLayer
	id    int

	Text string
	X, Y float64
}

// SetText implements scene.Label.
func (l *TextLabel) SetText(s string) {
	l.layer.mu.Lock()
	l.Text = s
	l.layer.mu.Unlock()
}

// SetPosition implements scene.Label.
func (l *TextLabel) SetPosition(x, y float64) {
	l.layer.mu.Lock()
	l.X, l.Y = x, y
	l.layer.mu.Unlock()
}

// Close implements scene.Label. Closing twice is harmless.
func (l *TextLabel) Close() {
	l.layer.mu.Lock()
	delete(l.layer.labels, l.id)
	l.layer.mu.Unlock()
}

// LabelLayer holds the open labels and the size of the container they are
// placed in.
type LabelLayer struct {
	mu     sync.Mutex
	width  float64
	height float64
	labels map[int]*TextLabel
	nextID int
}

// NewLabelLayer creates a layer of the given size.
func NewLabelLayer(width, height float64) *LabelLayer {
	return &LabelLayer{width: width, height: height, labels: make(map[int]*TextLabel)}
}

// NewLabel implements scene.LabelLayer.
func (l *LabelLayer) NewLabel() scene.Label {
	l.mu.Lock()
	defer l.mu.Unlock()
	lbl := &TextLabel{layer: l, id: l.nextID}
	l.nextID++
	l.labels[lbl.id] = lbl
	return lbl
}

// Size implements scene.LabelLayer.
func (l *LabelLayer) Size() (float64, float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.width, l.height
}

// SetSize updates the container size, e.g. after a terminal resize.
func (l *LabelLayer) SetSize(width, height float64) {
	l.mu.Lock()
	l.width, l.height = width, height
	l.mu.Unlock()
}

// LabelView is a copy of an open label.
type LabelView struct {
	Text string
	X, Y float64
}

// Labels returns copies of the open labels in creation order.
func (l *LabelLayer) Labels() []LabelView {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]int, 0, len(l.labels))
	for id := range l.labels {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]LabelView, 0, len(ids))
	for _, id := range ids {
		lbl := l.labels[id]
		out = append(out, LabelView{Text: lbl.Text, X: lbl.X, Y: lbl.Y})
	}
	return out
}
