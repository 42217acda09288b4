package timectrl

import (
	"context"
	"testing"
	"time"
)

func TestTimeControllerStepAdvancesNow(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Second, RealTime)

	f := tc.Step()
	if want := start.Add(time.Second); !f.Time.Equal(want) || !tc.Now().Equal(want) || f.Index != 1 {
		t.Fatalf("after Step: frame=%+v now=%v, want %v", f, tc.Now(), want)
	}
}

func TestTimeControllerStartUpdatesNow(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 5*time.Millisecond, Accelerated)

	var frames []Frame
	tc.AddListener(func(f Frame) { frames = append(frames, f) })

	done := tc.Start(context.Background(), 15*time.Millisecond)
	<-done

	expected := start.Add(15 * time.Millisecond)
	if got := tc.Now(); !got.Equal(expected) {
		t.Fatalf("Now() = %v, want %v", got, expected)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	if frames[2].Index != 3 || frames[2].Seconds() != 0.005 {
		t.Fatalf("last frame = %+v", frames[2])
	}
}

func TestTimeControllerStopsOnCancel(t *testing.T) {
	tc := NewTimeController(time.Now(), time.Millisecond, RealTime)
	ctx, cancel := context.WithCancel(context.Background())
	done := tc.Start(ctx, 0)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("controller did not stop after cancel")
	}
}

func TestParseMode(t *testing.T) {
	if m, ok := ParseMode("accelerated"); !ok || m != Accelerated {
		t.Fatalf("ParseMode(accelerated) = %v, %v", m, ok)
	}
	if _, ok := ParseMode("warp"); ok {
		t.Fatalf("expected unknown mode to be rejected")
	}
}

func TestDeltaClock(t *testing.T) {
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	now := base
	c := NewDeltaClock(func() time.Time { return now }, 100*time.Millisecond)

	if d := c.Delta(); d != 0 {
		t.Fatalf("first Delta = %v, want 0", d)
	}
	now = now.Add(16 * time.Millisecond)
	if d := c.Delta(); d != 0.016 {
		t.Fatalf("Delta = %v, want 0.016", d)
	}
	now = now.Add(5 * time.Second)
	if d := c.Delta(); d != 0.1 {
		t.Fatalf("stalled Delta = %v, want clamp to 0.1", d)
	}
	now = now.Add(-time.Second)
	if d := c.Delta(); d != 0 {
		t.Fatalf("backwards Delta = %v, want 0", d)
	}
}
