package inference

import (
	"testing"
	"time"

	"ethos/internal/evidence"
)

func TestBuildWindowsSymmetric(t *testing.T) {
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	anchors := []evidence.SwipeEvent{
		{ID: 1, LocationID: 7, Timestamp: at},
		{ID: 2, LocationID: 7, Timestamp: at.Add(time.Hour)},
		{ID: 3, LocationID: 9, Timestamp: at.Add(2 * time.Hour)},
	}

	windows, locationIDs := BuildWindows(anchors, 3*time.Minute)
	if len(windows) != 3 {
		t.Fatalf("expected 3 windows, got %d", len(windows))
	}
	if !windows[0].Start.Equal(at.Add(-3 * time.Minute)) || !windows[0].End.Equal(at.Add(3 * time.Minute)) {
		t.Fatalf("window not symmetric around anchor: %v", windows[0])
	}
	if len(locationIDs) != 2 || locationIDs[0] != 7 || locationIDs[1] != 9 {
		t.Fatalf("expected deduped locations [7 9], got %v", locationIDs)
	}
}

func TestWindowClosedBounds(t *testing.T) {
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	w := WindowAround(evidence.SwipeEvent{Timestamp: at}, 3*time.Minute)

	if !w.Contains(at.Add(3 * time.Minute)) {
		t.Fatalf("expected record at window end to be inside")
	}
	if !w.Contains(at.Add(-3 * time.Minute)) {
		t.Fatalf("expected record at window start to be inside")
	}
	if w.Contains(at.Add(3*time.Minute + time.Millisecond)) {
		t.Fatalf("expected record 1ms past window end to be outside")
	}
	if w.Contains(at.Add(-3*time.Minute - time.Millisecond)) {
		t.Fatalf("expected record 1ms before window start to be outside")
	}
}
