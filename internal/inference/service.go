package inference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"ethos/internal/evidence"
	"ethos/internal/metrics"
)

// Store is the evidence source the service correlates over. The Postgres
// repository satisfies it; tests substitute a fixture-backed fake.
type Store interface {
	AnchorSwipes(ctx context.Context, cardID string) ([]evidence.SwipeEvent, error)
	WifiInWindows(ctx context.Context, locationIDs []int, windows []evidence.Window) ([]evidence.WifiAssociation, error)
	BookingsCovering(ctx context.Context, anchors []evidence.SwipeEvent) ([]evidence.RoomBooking, error)
	AlibiSwipes(ctx context.Context, excludeLocationIDs []int, windows []evidence.Window) ([]evidence.SwipeEvent, error)
	CctvInWindows(ctx context.Context, locationIDs []int, windows []evidence.Window) ([]evidence.CctvFrame, error)
	FaceOwners(ctx context.Context) (map[string]int, error)
	AllUsers(ctx context.Context) ([]evidence.User, error)
}

// Service runs owner inference for unattributed cards: fetch, window,
// score, rank. Stateless per request; concurrent requests for different
// cards need no coordination.
type Service struct {
	store   Store
	weights Weights
	half    time.Duration
	topN    int
}

// NewService creates a service with the given weight configuration and
// window half-width.
func NewService(store Store, weights Weights, half time.Duration, topN int) *Service {
	if half <= 0 {
		half = 3 * time.Minute
	}
	return &Service{store: store, weights: weights, half: half, topN: topN}
}

// Predict ranks candidate owners for a card. A card with no swipe history
// yields an empty list, not an error; any evidence-fetch failure aborts the
// whole run so the caller can retry.
func (s *Service) Predict(ctx context.Context, cardID string) ([]Prediction, error) {
	start := time.Now()
	preds, err := s.predict(ctx, cardID)
	metrics.ObserveInference(time.Since(start), len(preds), err)
	return preds, err
}

func (s *Service) predict(ctx context.Context, cardID string) ([]Prediction, error) {
	if cardID == "" {
		return nil, errors.New("card id required")
	}

	anchors, err := s.store.AnchorSwipes(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("fetch anchors: %w", err)
	}
	if len(anchors) == 0 {
		return nil, nil
	}
	users, err := s.store.AllUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch users: %w", err)
	}
	if len(users) == 0 {
		return nil, nil
	}

	windows, locationIDs := BuildWindows(anchors, s.half)

	// The four evidence classes are independent; fetch them concurrently
	// and join before scoring. One failure fails the run.
	var bundle Bundle
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bundle.Wifi, err = s.store.WifiInWindows(gctx, locationIDs, windows)
		return err
	})
	g.Go(func() error {
		var err error
		bundle.Bookings, err = s.store.BookingsCovering(gctx, anchors)
		return err
	})
	g.Go(func() error {
		var err error
		bundle.Alibis, err = s.store.AlibiSwipes(gctx, locationIDs, windows)
		return err
	})
	g.Go(func() error {
		var err error
		bundle.Frames, err = s.store.CctvInWindows(gctx, locationIDs, windows)
		return err
	})
	g.Go(func() error {
		var err error
		bundle.FaceOwners, err = s.store.FaceOwners(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch evidence: %w", err)
	}

	candidates := ScoreCandidates(anchors, users, bundle, s.weights, s.half)
	return Rank(candidates, s.topN), nil
}
