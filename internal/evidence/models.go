package evidence

import "time"

// User is a member of the campus population and a potential card owner.
type User struct {
	ID         int     `json:"id"`
	ExternalID *string `json:"external_id,omitempty"`
	FullName   string  `json:"full_name"`
	Role       string  `json:"role"`
}

// Location is a physical point on campus: gate, AP, camera, room.
type Location struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Building *string `json:"building,omitempty"`
}

// Window is a closed time interval; records at either bound are inside it.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// SwipeEvent is a card swipe at a gate. OwnerID is the user linked to the
// swiping card at query time, nil for unattributed cards.
type SwipeEvent struct {
	ID           int
	CardID       string
	LocationID   int
	LocationName string
	OwnerID      *int
	Timestamp    time.Time
}

// WifiAssociation is a device association with an access point. OwnerID is
// the user the device hash is registered to, nil for unknown devices.
type WifiAssociation struct {
	ID           int
	DeviceHash   string
	OwnerID      *int
	LocationID   int
	LocationName string
	Timestamp    time.Time
}

// RoomBooking is an explicit, user-claimed presence interval.
type RoomBooking struct {
	ID           int
	UserID       int
	LocationID   int
	LocationName string
	Start        time.Time
	End          time.Time
}

// CctvFrame is one analyzed camera frame with the face ids detected in it.
type CctvFrame struct {
	ID           int
	LocationID   int
	LocationName string
	Timestamp    time.Time
	FaceIDs      []string
}

// HistoryPoint is one observed (location, time) pair in a user's movement
// history, drawn from swipes, wifi associations and booking starts.
type HistoryPoint struct {
	LocationID int
	Timestamp  time.Time
}
