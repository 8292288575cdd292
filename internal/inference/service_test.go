package inference

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"ethos/internal/evidence"
)

type fakeStore struct {
	anchors    []evidence.SwipeEvent
	users      []evidence.User
	wifi       []evidence.WifiAssociation
	bookings   []evidence.RoomBooking
	alibis     []evidence.SwipeEvent
	frames     []evidence.CctvFrame
	faceOwners map[string]int

	wifiErr    error
	fetchCalls int
}

func (f *fakeStore) AnchorSwipes(_ context.Context, cardID string) ([]evidence.SwipeEvent, error) {
	return f.anchors, nil
}

func (f *fakeStore) WifiInWindows(_ context.Context, _ []int, _ []evidence.Window) ([]evidence.WifiAssociation, error) {
	f.fetchCalls++
	return f.wifi, f.wifiErr
}

func (f *fakeStore) BookingsCovering(_ context.Context, _ []evidence.SwipeEvent) ([]evidence.RoomBooking, error) {
	f.fetchCalls++
	return f.bookings, nil
}

func (f *fakeStore) AlibiSwipes(_ context.Context, _ []int, _ []evidence.Window) ([]evidence.SwipeEvent, error) {
	f.fetchCalls++
	return f.alibis, nil
}

func (f *fakeStore) CctvInWindows(_ context.Context, _ []int, _ []evidence.Window) ([]evidence.CctvFrame, error) {
	f.fetchCalls++
	return f.frames, nil
}

func (f *fakeStore) FaceOwners(_ context.Context) (map[string]int, error) {
	return f.faceOwners, nil
}

func (f *fakeStore) AllUsers(_ context.Context) ([]evidence.User, error) {
	return f.users, nil
}

func TestPredictNoAnchorsReturnsEmpty(t *testing.T) {
	store := &fakeStore{users: []evidence.User{{ID: 1}}}
	svc := NewService(store, testWeights, 3*time.Minute, 0)

	preds, err := svc.Predict(context.Background(), "C-EMPTY")
	if err != nil {
		t.Fatalf("expected no error for unknown card, got %v", err)
	}
	if len(preds) != 0 {
		t.Fatalf("expected empty predictions, got %v", preds)
	}
	if store.fetchCalls != 0 {
		t.Fatalf("expected no evidence fetch without anchors, got %d calls", store.fetchCalls)
	}
}

func TestPredictMissingCardID(t *testing.T) {
	svc := NewService(&fakeStore{}, testWeights, 3*time.Minute, 0)
	if _, err := svc.Predict(context.Background(), ""); err == nil {
		t.Fatalf("expected error for missing card id")
	}
}

func TestPredictFetchErrorAbortsRun(t *testing.T) {
	at := time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC)
	store := &fakeStore{
		anchors: []evidence.SwipeEvent{{ID: 1, LocationID: 1, LocationName: "Gate", Timestamp: at}},
		users:   []evidence.User{{ID: 1, FullName: "Someone"}},
		wifiErr: errors.New("connection refused"),
	}
	svc := NewService(store, testWeights, 3*time.Minute, 0)

	if _, err := svc.Predict(context.Background(), "C-UNRES"); err == nil {
		t.Fatalf("expected upstream failure to abort the whole inference")
	}
}

func TestPredictEndToEnd(t *testing.T) {
	at := time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC)
	store := &fakeStore{
		anchors: []evidence.SwipeEvent{
			{ID: 1, CardID: "C-UNRES", LocationID: 1, LocationName: "Main Gate", Timestamp: at},
		},
		users: []evidence.User{
			{ID: 7, FullName: "Alibi Holder"},
			{ID: 42, FullName: "Likely Owner"},
			{ID: 99, FullName: "Bystander"},
		},
		wifi: []evidence.WifiAssociation{
			{ID: 1, OwnerID: intPtr(42), LocationID: 1, LocationName: "Main Gate", Timestamp: at.Add(2 * time.Minute)},
		},
		bookings: []evidence.RoomBooking{
			{ID: 1, UserID: 42, LocationID: 1, LocationName: "Main Gate", Start: at.Add(-time.Hour), End: at.Add(time.Hour)},
		},
		alibis: []evidence.SwipeEvent{
			{ID: 2, OwnerID: intPtr(7), LocationID: 5, LocationName: "Library", Timestamp: at.Add(time.Minute)},
		},
		faceOwners: map[string]int{},
	}
	svc := NewService(store, testWeights, 3*time.Minute, 0)

	preds, err := svc.Predict(context.Background(), "C-UNRES")
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if len(preds) != 1 {
		t.Fatalf("expected single ranked candidate, got %d", len(preds))
	}
	if preds[0].User.ID != 42 || preds[0].Score != 1.0 {
		t.Fatalf("unexpected top prediction: %+v", preds[0])
	}
	if len(preds[0].Evidence) != 2 {
		t.Fatalf("expected wifi and booking trail entries, got %v", preds[0].Evidence)
	}
}

func TestPredictDeterministic(t *testing.T) {
	at := time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC)
	store := &fakeStore{
		anchors: []evidence.SwipeEvent{
			{ID: 1, CardID: "C-UNRES", LocationID: 1, LocationName: "Main Gate", Timestamp: at},
		},
		users: []evidence.User{
			{ID: 3, FullName: "Third"},
			{ID: 5, FullName: "Fifth"},
		},
		wifi: []evidence.WifiAssociation{
			{ID: 1, OwnerID: intPtr(3), LocationID: 1, LocationName: "Main Gate", Timestamp: at},
			{ID: 2, OwnerID: intPtr(5), LocationID: 1, LocationName: "Main Gate", Timestamp: at.Add(time.Minute)},
		},
	}
	svc := NewService(store, testWeights, 3*time.Minute, 0)

	first, err := svc.Predict(context.Background(), "C-UNRES")
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	second, err := svc.Predict(context.Background(), "C-UNRES")
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical evidence produced different output:\n%v\n%v", first, second)
	}
	// Equal scores rank by ascending user id.
	if first[0].User.ID != 3 || first[1].User.ID != 5 {
		t.Fatalf("tie not broken by ascending user id: %v", first)
	}
}
