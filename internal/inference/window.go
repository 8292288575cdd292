package inference

import (
	"time"

	"ethos/internal/evidence"
)

// BuildWindows derives a symmetric closed window around each anchor swipe
// and the distinct set of locations the anchors reference. Both feed the
// bulk evidence fetch; containment checks during scoring re-derive the
// per-anchor window from the same half-width.
func BuildWindows(anchors []evidence.SwipeEvent, half time.Duration) ([]evidence.Window, []int) {
	windows := make([]evidence.Window, 0, len(anchors))
	seen := make(map[int]bool)
	var locationIDs []int
	for _, a := range anchors {
		windows = append(windows, WindowAround(a, half))
		if !seen[a.LocationID] {
			seen[a.LocationID] = true
			locationIDs = append(locationIDs, a.LocationID)
		}
	}
	return windows, locationIDs
}

// WindowAround returns the closed interval [t-half, t+half] for one anchor.
func WindowAround(a evidence.SwipeEvent, half time.Duration) evidence.Window {
	return evidence.Window{Start: a.Timestamp.Add(-half), End: a.Timestamp.Add(half)}
}
