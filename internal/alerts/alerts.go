// Package alerts flags users with no observed activity across any evidence
// stream inside a trailing window, with their last known sighting attached.
package alerts

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"ethos/internal/evidence"
)

// Alert is one inactivity finding.
type Alert struct {
	User         evidence.User `json:"user"`
	LastSeen     time.Time     `json:"last_seen"`
	LastLocation string        `json:"last_location"`
	AlertType    string        `json:"alert_type"`
	Severity     string        `json:"severity"`
}

// Sighting is the most recent observation of a user in one stream.
type Sighting struct {
	Timestamp time.Time
	Details   string
}

// Repository reads inactivity data from Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InactiveUsers returns users with no swipe, wifi, booking or checkout
// activity since the cutoff.
func (r *Repository) InactiveUsers(ctx context.Context, since time.Time) ([]evidence.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.external_id, u.full_name, u.role
		FROM users u
		WHERE u.id NOT IN (
			SELECT c.user_id FROM swipe_logs s JOIN campus_cards c ON c.card_id = s.card_id
			WHERE s.timestamp >= $1 AND c.user_id IS NOT NULL
			UNION
			SELECT d.user_id FROM wifi_logs w JOIN devices d ON d.device_hash = w.device_hash
			WHERE w.timestamp >= $1
			UNION
			SELECT b.user_id FROM room_bookings b WHERE b.start_time >= $1
			UNION
			SELECT lc.user_id FROM library_checkouts lc WHERE lc.checkout_time >= $1
		)
		ORDER BY u.id
	`, since)
	if err != nil {
		return nil, fmt.Errorf("inactive users: %w", err)
	}
	defer rows.Close()
	var res []evidence.User
	for rows.Next() {
		var u evidence.User
		if err := rows.Scan(&u.ID, &u.ExternalID, &u.FullName, &u.Role); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// LastSwipes returns the most recent swipe sighting per user.
func (r *Repository) LastSwipes(ctx context.Context) (map[int]Sighting, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT ON (c.user_id) c.user_id, s.timestamp, l.name
		FROM swipe_logs s
		JOIN campus_cards c ON c.card_id = s.card_id
		JOIN locations l ON l.id = s.location_id
		WHERE c.user_id IS NOT NULL AND s.timestamp IS NOT NULL
		ORDER BY c.user_id, s.timestamp DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("last swipes: %w", err)
	}
	defer rows.Close()
	out := make(map[int]Sighting)
	for rows.Next() {
		var userID int
		var ts time.Time
		var name string
		if err := rows.Scan(&userID, &ts, &name); err != nil {
			return nil, err
		}
		out[userID] = Sighting{Timestamp: ts, Details: "Last seen at " + name}
	}
	return out, rows.Err()
}

// LastWifi returns the most recent wifi sighting per user.
func (r *Repository) LastWifi(ctx context.Context) (map[int]Sighting, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT ON (d.user_id) d.user_id, w.timestamp, l.name
		FROM wifi_logs w
		JOIN devices d ON d.device_hash = w.device_hash
		JOIN locations l ON l.id = w.access_point_id
		WHERE w.timestamp IS NOT NULL
		ORDER BY d.user_id, w.timestamp DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("last wifi: %w", err)
	}
	defer rows.Close()
	out := make(map[int]Sighting)
	for rows.Next() {
		var userID int
		var ts time.Time
		var name string
		if err := rows.Scan(&userID, &ts, &name); err != nil {
			return nil, err
		}
		out[userID] = Sighting{Timestamp: ts, Details: "Last connected to AP " + name}
	}
	return out, rows.Err()
}

// Service produces inactivity alerts.
type Service struct {
	repo   *Repository
	window time.Duration
}

// NewService creates a service; window is the trailing inactivity period.
func NewService(repo *Repository, window time.Duration) *Service {
	if window <= 0 {
		window = 12 * time.Hour
	}
	return &Service{repo: repo, window: window}
}

// Sweep returns alerts for all currently inactive users, oldest last-seen
// first.
func (s *Service) Sweep(ctx context.Context, now time.Time) ([]Alert, error) {
	inactive, err := s.repo.InactiveUsers(ctx, now.Add(-s.window))
	if err != nil {
		return nil, err
	}
	if len(inactive) == 0 {
		return nil, nil
	}
	lastSwipes, err := s.repo.LastSwipes(ctx)
	if err != nil {
		return nil, err
	}
	lastWifi, err := s.repo.LastWifi(ctx)
	if err != nil {
		return nil, err
	}
	return BuildAlerts(inactive, lastSwipes, lastWifi), nil
}

// BuildAlerts merges per-stream sightings into one alert per inactive user,
// picking whichever sighting is most recent.
func BuildAlerts(inactive []evidence.User, lastSwipes, lastWifi map[int]Sighting) []Alert {
	alerts := make([]Alert, 0, len(inactive))
	for _, u := range inactive {
		last := Sighting{Details: "No activity found"}
		if s, ok := lastSwipes[u.ID]; ok && s.Timestamp.After(last.Timestamp) {
			last = s
		}
		if w, ok := lastWifi[u.ID]; ok && w.Timestamp.After(last.Timestamp) {
			last = w
		}
		alerts = append(alerts, Alert{
			User:         u,
			LastSeen:     last.Timestamp,
			LastLocation: last.Details,
			AlertType:    "Inactivity",
			Severity:     "Warning",
		})
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		if !alerts[i].LastSeen.Equal(alerts[j].LastSeen) {
			return alerts[i].LastSeen.Before(alerts[j].LastSeen)
		}
		return alerts[i].User.ID < alerts[j].User.ID
	})
	return alerts
}
