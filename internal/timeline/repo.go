// Package timeline assembles the merged activity feed the investigator UI
// renders for one user: card swipes, wifi associations, room bookings,
// library checkouts and helpdesk tickets in one reverse-chronological list.
package timeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ethos/internal/evidence"
)

// Entry is one rendered timeline row.
type Entry struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details"`
}

// Repository reads timelines from Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// UserTimeline returns the merged feed for a user, newest first, with
// limit/offset pagination. Unknown users yield evidence.ErrNotFound.
func (r *Repository) UserTimeline(ctx context.Context, userID, limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var exists int
	if err := r.db.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1`, userID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, evidence.ErrNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, ts, details FROM (
			SELECT 'Card Swipe' AS kind, s.timestamp AS ts, 'Swiped at ' || l.name AS details
			FROM swipe_logs s
			JOIN campus_cards c ON c.card_id = s.card_id
			JOIN locations l ON l.id = s.location_id
			WHERE c.user_id = $1 AND s.timestamp IS NOT NULL
			UNION ALL
			SELECT 'Wi-Fi Connection', w.timestamp, 'Connected to AP ' || l.name
			FROM wifi_logs w
			JOIN devices d ON d.device_hash = w.device_hash
			JOIN locations l ON l.id = w.access_point_id
			WHERE d.user_id = $1 AND w.timestamp IS NOT NULL
			UNION ALL
			SELECT 'Room Booking', b.start_time, 'Booked ' || l.name || ' until ' || to_char(b.end_time, 'YYYY-MM-DD HH24:MI')
			FROM room_bookings b
			JOIN locations l ON l.id = b.location_id
			WHERE b.user_id = $1
			UNION ALL
			SELECT 'Library Checkout', lc.checkout_time, 'Checked out "' || a.title || '"'
			FROM library_checkouts lc
			JOIN library_assets a ON a.id = lc.asset_id
			WHERE lc.user_id = $1
			UNION ALL
			SELECT 'Helpdesk Ticket', h.created_at, 'Created ticket: "' || COALESCE(h.title, h.description, '') || '"'
			FROM helpdesk_tickets h
			WHERE h.user_id = $1
		) feed
		ORDER BY ts DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Type, &e.Timestamp, &e.Details); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
