package inference

import (
	"fmt"
	"time"

	"ethos/internal/evidence"
)

// Weights are the per-record evidence contributions. Wifi is passive
// presence, a booking is an explicit claim, a face match is biometric, and
// an alibi subtracts. Booking must outweigh wifi and face must outweigh
// both for the defaults to make sense, but nothing here enforces that; the
// weights are operator-tunable.
type Weights struct {
	Wifi    float64
	Booking float64
	Face    float64
	Alibi   float64
}

// Bundle is the joined result of the four bulk evidence fetches plus the
// face-to-user mapping.
type Bundle struct {
	Wifi       []evidence.WifiAssociation
	Bookings   []evidence.RoomBooking
	Alibis     []evidence.SwipeEvent
	Frames     []evidence.CctvFrame
	FaceOwners map[string]int
}

// Candidate is the per-user accumulation produced by one scoring pass.
// Composite is the raw additive score; Trail holds one entry per counted
// record in the order it was scored.
type Candidate struct {
	User      evidence.User
	Composite float64
	Trail     []string

	hasPositive bool
}

// ScoreCandidates folds the fetched evidence into one Candidate per user
// with at least one positive-weight contribution. Each record counts at
// most once per candidate even when several anchor windows contain it, so
// overlapping windows never double-count. The fold is deterministic:
// anchors, then evidence classes, in fetch order.
func ScoreCandidates(anchors []evidence.SwipeEvent, users []evidence.User, b Bundle, w Weights, half time.Duration) []Candidate {
	if len(anchors) == 0 || len(users) == 0 {
		return nil
	}

	byUser := make(map[int]*Candidate, len(users))
	order := make([]int, 0, len(users))
	for _, u := range users {
		byUser[u.ID] = &Candidate{User: u}
		order = append(order, u.ID)
	}

	type seenKey struct {
		user   int
		class  string
		record int
	}
	seen := make(map[seenKey]bool)
	count := func(userID int, class string, recordID int) bool {
		k := seenKey{userID, class, recordID}
		if seen[k] {
			return false
		}
		seen[k] = true
		return true
	}

	for _, anchor := range anchors {
		window := WindowAround(anchor, half)

		for _, rec := range b.Wifi {
			if rec.OwnerID == nil || rec.LocationID != anchor.LocationID || !window.Contains(rec.Timestamp) {
				continue
			}
			cand, ok := byUser[*rec.OwnerID]
			if !ok || !count(cand.User.ID, "wifi", rec.ID) {
				continue
			}
			cand.Composite += w.Wifi
			cand.hasPositive = true
			cand.Trail = append(cand.Trail, fmt.Sprintf("Device associated near %s at %s", rec.LocationName, stamp(rec.Timestamp)))
		}

		for _, rec := range b.Bookings {
			if rec.LocationID != anchor.LocationID || anchor.Timestamp.Before(rec.Start) || anchor.Timestamp.After(rec.End) {
				continue
			}
			cand, ok := byUser[rec.UserID]
			if !ok || !count(cand.User.ID, "booking", rec.ID) {
				continue
			}
			cand.Composite += w.Booking
			cand.hasPositive = true
			cand.Trail = append(cand.Trail, fmt.Sprintf("Active booking for %s covering %s", rec.LocationName, stamp(anchor.Timestamp)))
		}

		for _, rec := range b.Frames {
			if rec.LocationID != anchor.LocationID || !window.Contains(rec.Timestamp) {
				continue
			}
			for _, faceID := range rec.FaceIDs {
				userID, ok := b.FaceOwners[faceID]
				if !ok {
					continue
				}
				cand, ok := byUser[userID]
				if !ok || !count(cand.User.ID, "face", rec.ID) {
					continue
				}
				cand.Composite += w.Face
				cand.hasPositive = true
				cand.Trail = append(cand.Trail, fmt.Sprintf("Face detected on CCTV at %s at %s", rec.LocationName, stamp(rec.Timestamp)))
			}
		}

		for _, rec := range b.Alibis {
			if rec.OwnerID == nil || rec.LocationID == anchor.LocationID || !window.Contains(rec.Timestamp) {
				continue
			}
			cand, ok := byUser[*rec.OwnerID]
			if !ok || !count(cand.User.ID, "alibi", rec.ID) {
				continue
			}
			cand.Composite -= w.Alibi
			cand.Trail = append(cand.Trail, fmt.Sprintf("Alibi: swiped at %s at %s", rec.LocationName, stamp(rec.Timestamp)))
		}
	}

	// Candidates without a single positive signal never surface; an
	// alibi-only trail is an exclusion, not a ranking.
	var out []Candidate
	for _, id := range order {
		if cand := byUser[id]; cand.hasPositive {
			out = append(out, *cand)
		}
	}
	return out
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
