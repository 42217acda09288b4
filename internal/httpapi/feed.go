package httpapi

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/drone-simulator/internal/logging"
	"github.com/signalsfoundry/drone-simulator/kb"
	"github.com/signalsfoundry/drone-simulator/model"
)

// DefaultFeedInterval is the batching period of the websocket feed.
const DefaultFeedInterval = 250 * time.Millisecond

const writeTimeout = 5 * time.Second

// FeedMessage is one websocket frame. The first message on a connection is
// a "snapshot" with every drone; later ones are "delta" messages with the
// drones updated and removed since the previous message.
type FeedMessage struct {
	Type    string                `json:"type"`
	Frame   uint64                `json:"frame"`
	Drones  []model.DroneSnapshot `json:"drones,omitempty"`
	Removed []string              `json:"removed,omitempty"`
}

// Feed streams catalog changes to websocket clients.
type Feed struct {
	catalog  *kb.KnowledgeBase
	interval time.Duration
	log      logging.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
}

// NewFeed builds a feed over catalog.
func NewFeed(catalog *kb.KnowledgeBase, interval time.Duration, log logging.Logger) *Feed {
	if interval <= 0 {
		interval = DefaultFeedInterval
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Feed{
		catalog:  catalog,
		interval: interval,
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		conns:    make(map[*websocket.Conn]struct{}),
	}
}

// Clients returns the number of connected clients.
func (f *Feed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

// Close disconnects every client and refuses new ones.
func (f *Feed) Close() {
	f.mu.Lock()
	f.closed = true
	conns := f.conns
	f.conns = make(map[*websocket.Conn]struct{})
	f.mu.Unlock()

	for c := range conns {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(time.Second))
		_ = c.Close()
	}
}

// ServeHTTP upgrades the request and streams until the client goes away.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.log.Warn(r.Context(), "websocket upgrade failed", logging.Err(err))
		return
	}
	if !f.track(conn) {
		_ = conn.Close()
		return
	}
	defer f.untrack(conn)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	p := newPending()
	unsubscribe := f.catalog.Subscribe(p.add)
	defer unsubscribe()

	// Reads only detect the client closing; inbound messages are ignored.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := f.write(conn, FeedMessage{Type: "snapshot", Frame: f.catalog.Frame(), Drones: f.catalog.List()}); err != nil {
		return
	}

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updated, removed := p.drain()
			if len(updated) == 0 && len(removed) == 0 {
				continue
			}
			msg := FeedMessage{Type: "delta", Frame: f.catalog.Frame(), Drones: updated, Removed: removed}
			if err := f.write(conn, msg); err != nil {
				f.log.Debug(ctx, "websocket client dropped", logging.Err(err))
				return
			}
		}
	}
}

func (f *Feed) write(conn *websocket.Conn, msg FeedMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(msg)
}

func (f *Feed) track(c *websocket.Conn) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.conns[c] = struct{}{}
	return true
}

func (f *Feed) untrack(c *websocket.Conn) {
	f.mu.Lock()
	_, ok := f.conns[c]
	delete(f.conns, c)
	f.mu.Unlock()
	if ok {
		_ = c.Close()
	}
}

// pending coalesces catalog events between two feed messages. The latest
// event per drone wins.
type pending struct {
	mu      sync.Mutex
	updated map[string]model.DroneSnapshot
	removed map[string]struct{}
}

func newPending() *pending {
	return &pending{
		updated: make(map[string]model.DroneSnapshot),
		removed: make(map[string]struct{}),
	}
}

func (p *pending) add(ev kb.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := ev.Drone.ID
	switch ev.Type {
	case kb.EventDroneUpdated:
		p.updated[id] = ev.Drone
		delete(p.removed, id)
	case kb.EventDroneRemoved:
		delete(p.updated, id)
		p.removed[id] = struct{}{}
	}
}

func (p *pending) drain() ([]model.DroneSnapshot, []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	updated := make([]model.DroneSnapshot, 0, len(p.updated))
	for _, d := range p.updated {
		updated = append(updated, d)
	}
	removed := make([]string, 0, len(p.removed))
	for id := range p.removed {
		removed = append(removed, id)
	}
	clear(p.updated)
	clear(p.removed)
	sort.Slice(updated, func(i, j int) bool { return updated[i].ID < updated[j].ID })
	sort.Strings(removed)
	return updated, removed
}
