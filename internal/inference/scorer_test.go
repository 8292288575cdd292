package inference

import (
	"strings"
	"testing"
	"time"

	"ethos/internal/evidence"
)

var testWeights = Weights{Wifi: 1.0, Booking: 1.5, Face: 2.5, Alibi: 2.0}

func intPtr(i int) *int { return &i }

func anchorAt(loc int, at time.Time) evidence.SwipeEvent {
	return evidence.SwipeEvent{ID: 100, CardID: "C-UNRES", LocationID: loc, LocationName: "Location A", Timestamp: at}
}

func TestScoreWifiAndAlibi(t *testing.T) {
	at := time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC)
	anchors := []evidence.SwipeEvent{anchorAt(1, at)}
	users := []evidence.User{
		{ID: 7, FullName: "User Seven"},
		{ID: 42, FullName: "User FortyTwo"},
	}
	bundle := Bundle{
		Wifi: []evidence.WifiAssociation{
			{ID: 1, OwnerID: intPtr(42), LocationID: 1, LocationName: "Location A", Timestamp: at.Add(2 * time.Minute)},
		},
		Alibis: []evidence.SwipeEvent{
			{ID: 2, OwnerID: intPtr(7), LocationID: 5, LocationName: "Location B", Timestamp: at.Add(time.Minute)},
		},
	}

	cands := ScoreCandidates(anchors, users, bundle, testWeights, 3*time.Minute)
	if len(cands) != 1 {
		t.Fatalf("expected only the wifi candidate to survive, got %d", len(cands))
	}
	c := cands[0]
	if c.User.ID != 42 {
		t.Fatalf("expected user 42, got %d", c.User.ID)
	}
	if c.Composite != testWeights.Wifi {
		t.Fatalf("expected composite %g, got %g", testWeights.Wifi, c.Composite)
	}
	if len(c.Trail) != 1 || !strings.Contains(c.Trail[0], "Device associated near Location A") {
		t.Fatalf("unexpected trail: %v", c.Trail)
	}
}

func TestAlibiOnlyCandidateDropped(t *testing.T) {
	at := time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC)
	anchors := []evidence.SwipeEvent{anchorAt(1, at)}
	users := []evidence.User{{ID: 7, FullName: "User Seven"}}
	bundle := Bundle{
		Alibis: []evidence.SwipeEvent{
			{ID: 2, OwnerID: intPtr(7), LocationID: 5, LocationName: "Location B", Timestamp: at.Add(time.Minute)},
		},
	}

	if cands := ScoreCandidates(anchors, users, bundle, testWeights, 3*time.Minute); len(cands) != 0 {
		t.Fatalf("expected alibi-only candidate to be dropped, got %v", cands)
	}
}

func TestAlibiPenalizesCorroboratedCandidate(t *testing.T) {
	at := time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC)
	anchors := []evidence.SwipeEvent{anchorAt(1, at)}
	users := []evidence.User{{ID: 7, FullName: "User Seven"}}
	bundle := Bundle{
		Wifi: []evidence.WifiAssociation{
			{ID: 1, OwnerID: intPtr(7), LocationID: 1, LocationName: "Location A", Timestamp: at},
		},
		Alibis: []evidence.SwipeEvent{
			{ID: 2, OwnerID: intPtr(7), LocationID: 5, LocationName: "Location B", Timestamp: at.Add(time.Minute)},
		},
	}

	cands := ScoreCandidates(anchors, users, bundle, testWeights, 3*time.Minute)
	if len(cands) != 1 {
		t.Fatalf("expected candidate with positive evidence to survive, got %d", len(cands))
	}
	want := testWeights.Wifi - testWeights.Alibi
	if cands[0].Composite != want {
		t.Fatalf("expected composite %g, got %g", want, cands[0].Composite)
	}
	if len(cands[0].Trail) != 2 || !strings.HasPrefix(cands[0].Trail[1], "Alibi: swiped at Location B") {
		t.Fatalf("unexpected trail: %v", cands[0].Trail)
	}
}

func TestBookingAndFaceWeights(t *testing.T) {
	at := time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC)
	anchors := []evidence.SwipeEvent{anchorAt(1, at)}
	users := []evidence.User{
		{ID: 1, FullName: "Booked"},
		{ID: 2, FullName: "Seen"},
	}
	bundle := Bundle{
		Bookings: []evidence.RoomBooking{
			{ID: 1, UserID: 1, LocationID: 1, LocationName: "Location A", Start: at.Add(-time.Hour), End: at.Add(time.Hour)},
		},
		Frames: []evidence.CctvFrame{
			{ID: 1, LocationID: 1, LocationName: "Location A", Timestamp: at.Add(time.Minute), FaceIDs: []string{"face-2", "face-unknown"}},
		},
		FaceOwners: map[string]int{"face-2": 2},
	}

	cands := ScoreCandidates(anchors, users, bundle, testWeights, 3*time.Minute)
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(cands))
	}
	byID := map[int]Candidate{}
	for _, c := range cands {
		byID[c.User.ID] = c
	}
	if byID[1].Composite != testWeights.Booking {
		t.Fatalf("expected booking weight %g, got %g", testWeights.Booking, byID[1].Composite)
	}
	if byID[2].Composite != testWeights.Face {
		t.Fatalf("expected face weight %g, got %g", testWeights.Face, byID[2].Composite)
	}
	if !strings.Contains(byID[2].Trail[0], "Face detected on CCTV at Location A") {
		t.Fatalf("unexpected face trail: %v", byID[2].Trail)
	}
}

func TestOverlappingWindowsDoNotDoubleCount(t *testing.T) {
	at := time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC)
	// Two anchors a minute apart at the same gate; their windows overlap
	// and both contain the single wifi record.
	anchors := []evidence.SwipeEvent{anchorAt(1, at), anchorAt(1, at.Add(time.Minute))}
	users := []evidence.User{{ID: 42, FullName: "User FortyTwo"}}
	bundle := Bundle{
		Wifi: []evidence.WifiAssociation{
			{ID: 1, OwnerID: intPtr(42), LocationID: 1, LocationName: "Location A", Timestamp: at.Add(30 * time.Second)},
		},
	}

	cands := ScoreCandidates(anchors, users, bundle, testWeights, 3*time.Minute)
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
	if cands[0].Composite != testWeights.Wifi {
		t.Fatalf("record double-counted: composite %g", cands[0].Composite)
	}
	if len(cands[0].Trail) != 1 {
		t.Fatalf("expected single trail entry, got %v", cands[0].Trail)
	}
}

func TestEvidenceOutsideWindowIgnored(t *testing.T) {
	at := time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC)
	anchors := []evidence.SwipeEvent{anchorAt(1, at)}
	users := []evidence.User{{ID: 42, FullName: "User FortyTwo"}}
	bundle := Bundle{
		Wifi: []evidence.WifiAssociation{
			{ID: 1, OwnerID: intPtr(42), LocationID: 1, LocationName: "Location A", Timestamp: at.Add(3*time.Minute + time.Millisecond)},
			{ID: 2, OwnerID: intPtr(42), LocationID: 9, LocationName: "Location C", Timestamp: at},
		},
	}

	if cands := ScoreCandidates(anchors, users, bundle, testWeights, 3*time.Minute); len(cands) != 0 {
		t.Fatalf("expected out-of-window and wrong-location records to score nothing, got %v", cands)
	}
}

func TestZeroAnchorsScoresNothing(t *testing.T) {
	users := []evidence.User{{ID: 1, FullName: "Someone"}}
	if cands := ScoreCandidates(nil, users, Bundle{}, testWeights, 3*time.Minute); cands != nil {
		t.Fatalf("expected nil candidates for zero anchors, got %v", cands)
	}
}
