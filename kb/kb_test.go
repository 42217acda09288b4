package kb

import (
	"fmt"
	"sync"
	"testing"

	"github.com/signalsfoundry/drone-simulator/model"
)

func snapshot(id string, t model.DroneType) model.DroneSnapshot {
	return model.DroneSnapshot{
		ID:       id,
		Type:     t,
		Location: model.GeoPoint{Lat: 59, Lng: 24},
		SpeedMS:  36,
		Visible:  true,
	}
}

func TestSyncAndGet(t *testing.T) {
	store := NewKnowledgeBase()
	store.Sync([]model.DroneSnapshot{snapshot("d1", model.DroneTypeCircle), {}})
	got, ok := store.Get("d1")
	if !ok || got.Type != model.DroneTypeCircle {
		t.Fatalf("Get returned %#v (ok=%v), want circle d1", got, ok)
	}
	if _, ok := store.Get("missing"); ok {
		t.Fatalf("expected missing ID to be absent")
	}
	if store.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (snapshot without ID must be skipped)", store.Len())
	}
}

func TestSyncReplacesContents(t *testing.T) {
	store := NewKnowledgeBase()
	store.Sync([]model.DroneSnapshot{
		snapshot("a", model.DroneTypeCircle),
		snapshot("b", model.DroneTypeSquare),
	})
	store.Sync([]model.DroneSnapshot{
		snapshot("b", model.DroneTypeSquare),
		snapshot("c", model.DroneTypeTriangle),
	})

	list := store.List()
	if len(list) != 2 || list[0].ID != "b" || list[1].ID != "c" {
		t.Fatalf("List = %v, want [b c]", list)
	}
	if store.Frame() != 2 {
		t.Fatalf("Frame = %d, want 2", store.Frame())
	}
}

func TestSyncEvents(t *testing.T) {
	store := NewKnowledgeBase()
	store.Sync([]model.DroneSnapshot{snapshot("a", model.DroneTypeCircle)})

	var got []Event
	unsubscribe := store.Subscribe(func(e Event) { got = append(got, e) })

	store.Sync([]model.DroneSnapshot{snapshot("b", model.DroneTypeSquare)})
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].Type != EventDroneUpdated || got[0].Drone.ID != "b" {
		t.Fatalf("first event = %v %s, want updated b", got[0].Type, got[0].Drone.ID)
	}
	if got[1].Type != EventDroneRemoved || got[1].Drone.ID != "a" {
		t.Fatalf("second event = %v %s, want removed a", got[1].Type, got[1].Drone.ID)
	}

	unsubscribe()
	unsubscribe()
	store.Sync(nil)
	if len(got) != 2 {
		t.Fatalf("unsubscribed callback still received events")
	}
}

func TestSyncEmptyFrameClearsCatalog(t *testing.T) {
	store := NewKnowledgeBase()
	store.Sync([]model.DroneSnapshot{snapshot("d1", model.DroneTypeSquare)})
	store.Sync(nil)
	if store.Len() != 0 {
		t.Fatalf("Len = %d after empty frame, want 0", store.Len())
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	store := NewKnowledgeBase()
	ttl := 45.0
	s := snapshot("d1", model.DroneTypeTriangle)
	s.TTL = &ttl
	store.Sync([]model.DroneSnapshot{s})

	ttl = 1
	got, _ := store.Get("d1")
	if *got.TTL != 45 {
		t.Fatalf("stored TTL changed through caller pointer: %v", *got.TTL)
	}
	*got.TTL = 2
	again, _ := store.Get("d1")
	if *again.TTL != 45 {
		t.Fatalf("stored TTL changed through returned pointer: %v", *again.TTL)
	}
}

func TestConcurrentAccess(t *testing.T) {
	store := NewKnowledgeBase()
	store.Subscribe(func(Event) {})

	var wg sync.WaitGroup
	// Concurrent readers/writers
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = store.Get("d0")
			_ = store.List()
		}()
		go func() {
			defer wg.Done()
			store.Sync([]model.DroneSnapshot{snapshot(fmt.Sprintf("d%d", i), model.DroneTypeCircle)})
		}()
	}
	wg.Wait()
	if store.Len() != 1 {
		t.Fatalf("Len = %d after concurrent syncs, want 1", store.Len())
	}
}
