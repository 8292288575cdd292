package evidence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
)

// ErrNotFound is returned when a referenced user or card has no record at all.
var ErrNotFound = errors.New("not found")

// Repository reads raw event records from Postgres. It fetches in bulk,
// bounded by location sets and time windows, and leaves relevance and
// scoring decisions to the caller.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// AnchorSwipes returns the full swipe history of a card in chronological
// order. Rows missing a location or timestamp carry no anchor value and are
// excluded here.
func (r *Repository) AnchorSwipes(ctx context.Context, cardID string) ([]SwipeEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.card_id, s.location_id, l.name, s.timestamp
		FROM swipe_logs s
		JOIN locations l ON l.id = s.location_id
		WHERE s.card_id = $1 AND s.location_id IS NOT NULL AND s.timestamp IS NOT NULL
		ORDER BY s.timestamp ASC
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("anchor swipes: %w", err)
	}
	defer rows.Close()
	var res []SwipeEvent
	for rows.Next() {
		var e SwipeEvent
		if err := rows.Scan(&e.ID, &e.CardID, &e.LocationID, &e.LocationName, &e.Timestamp); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// WifiInWindows returns wifi associations at any of the given access-point
// locations falling inside any window, joined through devices so each row
// carries the owning user when the device is registered.
func (r *Repository) WifiInWindows(ctx context.Context, locationIDs []int, windows []Window) ([]WifiAssociation, error) {
	if len(locationIDs) == 0 || len(windows) == 0 {
		return nil, nil
	}
	args := []any{}
	query := `
		SELECT w.id, w.device_hash, d.user_id, w.access_point_id, l.name, w.timestamp
		FROM wifi_logs w
		LEFT JOIN devices d ON d.device_hash = w.device_hash
		JOIN locations l ON l.id = w.access_point_id
		WHERE ` + inClause("w.access_point_id", &args, locationIDs) +
		` AND ` + windowClause("w.timestamp", &args, windows)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("wifi evidence: %w", err)
	}
	defer rows.Close()
	var res []WifiAssociation
	for rows.Next() {
		var w WifiAssociation
		if err := rows.Scan(&w.ID, &w.DeviceHash, &w.OwnerID, &w.LocationID, &w.LocationName, &w.Timestamp); err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

// BookingsCovering returns room bookings whose interval contains an anchor
// instant at that anchor's location.
func (r *Repository) BookingsCovering(ctx context.Context, anchors []SwipeEvent) ([]RoomBooking, error) {
	if len(anchors) == 0 {
		return nil, nil
	}
	args := []any{}
	clauses := make([]string, 0, len(anchors))
	for _, a := range anchors {
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(b.location_id = $%d AND b.start_time <= $%d AND b.end_time >= $%d)", n+1, n+2, n+3))
		args = append(args, a.LocationID, a.Timestamp, a.Timestamp)
	}
	query := `
		SELECT b.id, b.user_id, b.location_id, l.name, b.start_time, b.end_time
		FROM room_bookings b
		JOIN locations l ON l.id = b.location_id
		WHERE ` + joinClauses(clauses, " OR ")

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("booking evidence: %w", err)
	}
	defer rows.Close()
	var res []RoomBooking
	for rows.Next() {
		var b RoomBooking
		if err := rows.Scan(&b.ID, &b.UserID, &b.LocationID, &b.LocationName, &b.Start, &b.End); err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

// AlibiSwipes returns swipes at locations outside the anchor set falling
// inside any window, joined to campus cards so each row carries the card's
// owner. These place a candidate elsewhere during a window.
func (r *Repository) AlibiSwipes(ctx context.Context, excludeLocationIDs []int, windows []Window) ([]SwipeEvent, error) {
	if len(excludeLocationIDs) == 0 || len(windows) == 0 {
		return nil, nil
	}
	args := []any{}
	query := `
		SELECT s.id, s.card_id, s.location_id, l.name, c.user_id, s.timestamp
		FROM swipe_logs s
		JOIN locations l ON l.id = s.location_id
		LEFT JOIN campus_cards c ON c.card_id = s.card_id
		WHERE NOT ` + inClause("s.location_id", &args, excludeLocationIDs) +
		` AND ` + windowClause("s.timestamp", &args, windows)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("alibi evidence: %w", err)
	}
	defer rows.Close()
	var res []SwipeEvent
	for rows.Next() {
		var e SwipeEvent
		if err := rows.Scan(&e.ID, &e.CardID, &e.LocationID, &e.LocationName, &e.OwnerID, &e.Timestamp); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// CctvInWindows returns analyzed camera frames at anchor locations inside
// any window. Frames with malformed face-id payloads are skipped, not fatal.
func (r *Repository) CctvInWindows(ctx context.Context, locationIDs []int, windows []Window) ([]CctvFrame, error) {
	if len(locationIDs) == 0 || len(windows) == 0 {
		return nil, nil
	}
	args := []any{}
	query := `
		SELECT f.id, f.location_id, l.name, f.timestamp, f.detected_face_ids
		FROM cctv_frame_logs f
		JOIN locations l ON l.id = f.location_id
		WHERE ` + inClause("f.location_id", &args, locationIDs) +
		` AND ` + windowClause("f.timestamp", &args, windows)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("cctv evidence: %w", err)
	}
	defer rows.Close()
	var res []CctvFrame
	for rows.Next() {
		var f CctvFrame
		var raw []byte
		if err := rows.Scan(&f.ID, &f.LocationID, &f.LocationName, &f.Timestamp, &raw); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &f.FaceIDs); err != nil {
				log.Printf("cctv frame %d: bad face id payload, skipping: %v", f.ID, err)
				continue
			}
		}
		res = append(res, f)
	}
	return res, rows.Err()
}

// FaceOwners returns the face-id to user-id mapping from facial profiles.
// The embedding column is deliberately not read.
func (r *Repository) FaceOwners(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT face_id, user_id FROM facial_profiles`)
	if err != nil {
		return nil, fmt.Errorf("face profiles: %w", err)
	}
	defer rows.Close()
	owners := make(map[string]int)
	for rows.Next() {
		var faceID string
		var userID int
		if err := rows.Scan(&faceID, &userID); err != nil {
			return nil, err
		}
		owners[faceID] = userID
	}
	return owners, rows.Err()
}

// AllUsers returns the full candidate population.
func (r *Repository) AllUsers(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, external_id, full_name, role FROM users ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("users: %w", err)
	}
	defer rows.Close()
	var res []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.ExternalID, &u.FullName, &u.Role); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// User returns a single user, or ErrNotFound.
func (r *Repository) User(ctx context.Context, id int) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, external_id, full_name, role FROM users WHERE id = $1
	`, id)
	var u User
	if err := row.Scan(&u.ID, &u.ExternalID, &u.FullName, &u.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// AllLocations returns every known location.
func (r *Repository) AllLocations(ctx context.Context) ([]Location, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, type, building FROM locations ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("locations: %w", err)
	}
	defer rows.Close()
	var res []Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Type, &l.Building); err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

// UserHistory returns a user's full movement history, merged from card
// swipes, wifi associations and booking starts, in chronological order.
func (r *Repository) UserHistory(ctx context.Context, userID int) ([]HistoryPoint, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.location_id, s.timestamp
		FROM swipe_logs s
		JOIN campus_cards c ON c.card_id = s.card_id
		WHERE c.user_id = $1 AND s.location_id IS NOT NULL AND s.timestamp IS NOT NULL
		UNION ALL
		SELECT w.access_point_id, w.timestamp
		FROM wifi_logs w
		JOIN devices d ON d.device_hash = w.device_hash
		WHERE d.user_id = $1 AND w.access_point_id IS NOT NULL AND w.timestamp IS NOT NULL
		UNION ALL
		SELECT b.location_id, b.start_time
		FROM room_bookings b
		WHERE b.user_id = $1
		ORDER BY 2 ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("user history: %w", err)
	}
	defer rows.Close()
	var res []HistoryPoint
	for rows.Next() {
		var p HistoryPoint
		if err := rows.Scan(&p.LocationID, &p.Timestamp); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// inClause renders "col IN ($n,...)" appending ids to args.
func inClause(column string, args *[]any, ids []int) string {
	placeholders := ""
	for i, id := range ids {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "$" + itoa(len(*args)+1)
		*args = append(*args, id)
	}
	return column + " IN (" + placeholders + ")"
}

// windowClause renders "(col BETWEEN $a AND $b OR ...)" appending window
// bounds to args. BETWEEN is inclusive on both ends, matching the closed
// window contract.
func windowClause(column string, args *[]any, windows []Window) string {
	clauses := make([]string, 0, len(windows))
	for _, w := range windows {
		n := len(*args)
		clauses = append(clauses, fmt.Sprintf("%s BETWEEN $%d AND $%d", column, n+1, n+2))
		*args = append(*args, w.Start, w.End)
	}
	return "(" + joinClauses(clauses, " OR ") + ")"
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }

func joinClauses(parts []string, sep string) string {
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for i := 1; i < len(parts); i++ {
		out += sep + parts[i]
	}
	return out
}
