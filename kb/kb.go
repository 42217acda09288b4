package kb

import (
	"sort"
	"sync"

	"github.com/signalsfoundry/drone-simulator/model"
)

// EventType indicates what kind of change happened in the catalog.
type EventType int

const (
	EventDroneUpdated EventType = iota
	EventDroneRemoved
)

func (t EventType) String() string {
	switch t {
	case EventDroneUpdated:
		return "updated"
	case EventDroneRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is emitted to subscribers when a drone snapshot changes or leaves
// the catalog.
type Event struct {
	Type  EventType
	Drone model.DroneSnapshot
}

// KnowledgeBase is an in-memory, thread-safe catalog of drone snapshots.
// The frame loop is the only writer; HTTP and gRPC read paths query it
// instead of the live simulation.
type KnowledgeBase struct {
	mu sync.RWMutex

	drones map[string]model.DroneSnapshot
	frame  uint64

	subs   map[int]func(Event)
	nextID int
}

// NewKnowledgeBase constructs an empty catalog.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		drones: make(map[string]model.DroneSnapshot),
		subs:   make(map[int]func(Event)),
	}
}

// Sync replaces the catalog contents with the given frame of snapshots.
// Snapshots absent from the frame are removed and snapshots without an ID
// are skipped. Subscribers receive one
// event per updated or removed drone, outside the lock.
func (kb *KnowledgeBase) Sync(frame []model.DroneSnapshot) {
	seen := make(map[string]struct{}, len(frame))
	events := make([]Event, 0, len(frame))

	kb.mu.Lock()
	for _, s := range frame {
		if s.ID == "" {
			continue
		}
		seen[s.ID] = struct{}{}
		kb.drones[s.ID] = cloneSnapshot(s)
		events = append(events, Event{Type: EventDroneUpdated, Drone: s})
	}
	for id, old := range kb.drones {
		if _, ok := seen[id]; ok {
			continue
		}
		delete(kb.drones, id)
		events = append(events, Event{Type: EventDroneRemoved, Drone: old})
	}
	kb.frame++
	subs := kb.subscribers()
	kb.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	notify(subs, events)
}

// Get returns the snapshot with the given ID.
func (kb *KnowledgeBase) Get(id string) (model.DroneSnapshot, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	s, ok := kb.drones[id]
	if !ok {
		return model.DroneSnapshot{}, false
	}
	return cloneSnapshot(s), true
}

// List returns a copy of every snapshot, sorted by ID for stable output.
func (kb *KnowledgeBase) List() []model.DroneSnapshot {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]model.DroneSnapshot, 0, len(kb.drones))
	for _, s := range kb.drones {
		res = append(res, cloneSnapshot(s))
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Len returns the number of catalogued drones.
func (kb *KnowledgeBase) Len() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.drones)
}

// Frame returns how many times Sync has run.
func (kb *KnowledgeBase) Frame() uint64 {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.frame
}

// Subscribe registers a callback for catalog events. It returns an
// unsubscribe function that is safe to call more than once.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	id := kb.nextID
	kb.nextID++
	kb.subs[id] = fn

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		delete(kb.subs, id)
	}
}

// subscribers copies the callback set. Caller holds kb.mu.
func (kb *KnowledgeBase) subscribers() []func(Event) {
	if len(kb.subs) == 0 {
		return nil
	}
	ids := make([]int, 0, len(kb.subs))
	for id := range kb.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		out = append(out, kb.subs[id])
	}
	return out
}

func notify(subs []func(Event), events []Event) {
	for _, sub := range subs {
		for _, e := range events {
			sub(e)
		}
	}
}

func cloneSnapshot(s model.DroneSnapshot) model.DroneSnapshot {
	if s.TTL != nil {
		ttl := *s.TTL
		s.TTL = &ttl
	}
	return s
}
