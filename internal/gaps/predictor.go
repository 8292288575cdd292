// Package gaps infers the most probable intervening location for a gap
// between two consecutive observed locations in one user's timeline. It
// blends two signals over the user's full movement history: journey
// transition probability (how often before->X->after chains occur) and
// historical frequency within a similar day-of-week and hour bucket, with
// raw frequency as the fallback when the bucket is empty.
package gaps

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"ethos/internal/evidence"
	"ethos/internal/metrics"
)

// Blend weights between the journey and historical signals.
const (
	journeyWeight    = 0.7
	historicalWeight = 0.3
)

// Store supplies the movement history and location catalog.
type Store interface {
	UserHistory(ctx context.Context, userID int) ([]evidence.HistoryPoint, error)
	AllLocations(ctx context.Context) ([]evidence.Location, error)
}

// Request describes one gap to fill.
type Request struct {
	UserID           int
	Start            time.Time
	End              time.Time
	BeforeLocationID int
	AfterLocationID  int
}

// Result is the response contract: a predicted location, nil when the
// history carries no signal, and a human-readable rationale.
type Result struct {
	Prediction *evidence.Location `json:"prediction"`
	Reason     string             `json:"reason"`
}

// Predictor runs gap inference. Stateless per request.
type Predictor struct {
	store Store
}

// NewPredictor creates a predictor.
func NewPredictor(store Store) *Predictor {
	return &Predictor{store: store}
}

// Predict fills the gap described by req. A user with no recorded history
// is not an error; the result carries a nil prediction.
func (p *Predictor) Predict(ctx context.Context, req Request) (Result, error) {
	res, err := p.predict(ctx, req)
	metrics.ObserveGapPrediction(res.Prediction != nil, err)
	return res, err
}

func (p *Predictor) predict(ctx context.Context, req Request) (Result, error) {
	if req.UserID <= 0 {
		return Result{}, errors.New("user id required")
	}
	if req.Start.IsZero() || req.End.IsZero() || req.End.Before(req.Start) {
		return Result{}, errors.New("valid start and end times required")
	}

	history, err := p.store.UserHistory(ctx, req.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("fetch history: %w", err)
	}
	if len(history) == 0 {
		return Result{Reason: "No recorded movement history for this user."}, nil
	}
	locations, err := p.store.AllLocations(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetch locations: %w", err)
	}
	byID := make(map[int]evidence.Location, len(locations))
	for _, l := range locations {
		byID[l.ID] = l
	}

	scores, visits, lastVisit := scoreLocations(history, req)

	bestID, bestScore := pickBest(scores, lastVisit)
	if bestID == 0 || bestScore == 0 {
		return Result{Reason: "Not enough historical data to predict a likely journey."}, nil
	}
	loc, ok := byID[bestID]
	if !ok {
		// History can reference a since-deleted location; treat as no signal.
		return Result{Reason: "Not enough historical data to predict a likely journey."}, nil
	}

	reason := fmt.Sprintf("Most likely stop between %s and %s based on %d historical visits. Confidence: %.0f%%.",
		locationName(byID, req.BeforeLocationID), locationName(byID, req.AfterLocationID), visits[bestID], bestScore*100)
	return Result{Prediction: &loc, Reason: reason}, nil
}

// scoreLocations folds the history into per-location scores plus visit
// counts and most-recent-visit times for tie breaking.
func scoreLocations(history []evidence.HistoryPoint, req Request) (scores map[int]float64, visits map[int]int, lastVisit map[int]time.Time) {
	visits = make(map[int]int)
	lastVisit = make(map[int]time.Time)
	bucketVisits := make(map[int]int)
	bucketTotal := 0
	wantDay := req.Start.Weekday()
	wantHour := req.Start.Hour()

	for _, pt := range history {
		visits[pt.LocationID]++
		if pt.Timestamp.After(lastVisit[pt.LocationID]) {
			lastVisit[pt.LocationID] = pt.Timestamp
		}
		if pt.Timestamp.Weekday() == wantDay && hourNear(pt.Timestamp.Hour(), wantHour) {
			bucketVisits[pt.LocationID]++
			bucketTotal++
		}
	}

	// Transition counts between consecutive history points.
	transitions := make(map[int]map[int]int)
	for i := 0; i+1 < len(history); i++ {
		from, to := history[i].LocationID, history[i+1].LocationID
		if transitions[from] == nil {
			transitions[from] = make(map[int]int)
		}
		transitions[from][to]++
	}

	journey := make(map[int]float64)
	if outOfBefore := transitions[req.BeforeLocationID]; len(outOfBefore) > 0 {
		totalAB := 0
		for _, n := range outOfBefore {
			totalAB += n
		}
		for via, countAB := range outOfBefore {
			outOfVia := transitions[via]
			countBC, ok := outOfVia[req.AfterLocationID]
			if !ok {
				continue
			}
			totalBC := 0
			for _, n := range outOfVia {
				totalBC += n
			}
			journey[via] = float64(countAB) / float64(totalAB) * float64(countBC) / float64(totalBC)
		}
	}

	// Bucketed frequency when the time slot has data, raw frequency
	// otherwise.
	frequency := make(map[int]float64)
	if bucketTotal > 0 {
		for id, n := range bucketVisits {
			frequency[id] = float64(n) / float64(bucketTotal)
		}
	} else {
		for id, n := range visits {
			frequency[id] = float64(n) / float64(len(history))
		}
	}

	scores = make(map[int]float64)
	for id := range visits {
		scores[id] = journeyWeight*journey[id] + historicalWeight*frequency[id]
	}
	return scores, visits, lastVisit
}

// pickBest returns the highest-scoring location; ties go to the most
// recently visited, then the lowest id, so output is deterministic.
func pickBest(scores map[int]float64, lastVisit map[int]time.Time) (int, float64) {
	ids := make([]int, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	bestID, bestScore := 0, 0.0
	for _, id := range ids {
		s := scores[id]
		switch {
		case s > bestScore:
			bestID, bestScore = id, s
		case s == bestScore && bestID != 0 && lastVisit[id].After(lastVisit[bestID]):
			bestID = id
		}
	}
	return bestID, bestScore
}

func hourNear(h, want int) bool {
	diff := h - want
	if diff < 0 {
		diff = -diff
	}
	return diff <= 1
}

func locationName(byID map[int]evidence.Location, id int) string {
	if l, ok := byID[id]; ok {
		return l.Name
	}
	return "an unknown location"
}
