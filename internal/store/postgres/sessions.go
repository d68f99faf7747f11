package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jensholdgaard/clubhub/internal/store"
)

type sessionRepo struct{ c *conn }

const sessionColumns = `id, coach_id, sport_id, title, scheduled_at, is_active`

func (r *sessionRepo) Create(ctx context.Context, s *store.CoachingSession) error {
	if s.ID == "" {
		s.ID = newID()
	}
	return r.c.insert(ctx, "coaching session",
		`INSERT INTO coaching_sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.CoachID, s.SportID, s.Title, s.ScheduledAt, s.IsActive)
}

func (r *sessionRepo) Get(ctx context.Context, id string) (*store.CoachingSession, error) {
	var s store.CoachingSession
	if err := r.c.get(ctx, &s, "coaching session", id,
		r.c.locking(`SELECT `+sessionColumns+` FROM coaching_sessions WHERE id = $1`), id); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) Update(ctx context.Context, s *store.CoachingSession) error {
	return r.c.update(ctx, "coaching session", s.ID,
		`UPDATE coaching_sessions SET title = :title, scheduled_at = :scheduled_at, is_active = :is_active
		 WHERE id = :id`, s)
}

func (r *sessionRepo) UpsertAttendance(ctx context.Context, a *store.SessionAttendance) error {
	if a.ID == "" {
		a.ID = newID()
	}
	err := r.c.q.QueryRowxContext(ctx,
		`INSERT INTO session_attendance (id, session_id, player_id, attended, rating)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (session_id, player_id) DO UPDATE SET attended = EXCLUDED.attended, rating = EXCLUDED.rating
		 RETURNING id`,
		a.ID, a.SessionID, a.PlayerID, a.Attended, a.Rating).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("saving attendance: %w", err)
	}
	return nil
}

func (r *sessionRepo) ListAttendance(ctx context.Context, sessionID string) ([]store.SessionAttendance, error) {
	var out []store.SessionAttendance
	err := r.c.list(ctx, &out, "attendance",
		`SELECT id, session_id, player_id, attended, rating FROM session_attendance
		 WHERE session_id = $1 ORDER BY player_id`, sessionID)
	return out, err
}

func (r *sessionRepo) AttendedRatings(ctx context.Context, playerID, sportID string) ([]int, error) {
	var out []int
	err := r.c.list(ctx, &out, "attended ratings",
		`SELECT a.rating FROM session_attendance a JOIN coaching_sessions s ON s.id = a.session_id
		 WHERE a.player_id = $1 AND a.attended AND s.sport_id = $2
		 ORDER BY s.scheduled_at, s.id`, playerID, sportID)
	return out, err
}

func (r *sessionRepo) AttendedRatingsBetween(ctx context.Context, playerID string, from, to time.Time) ([]int, error) {
	var out []int
	err := r.c.list(ctx, &out, "attended ratings",
		`SELECT a.rating FROM session_attendance a JOIN coaching_sessions s ON s.id = a.session_id
		 WHERE a.player_id = $1 AND a.attended AND s.scheduled_at >= $2 AND s.scheduled_at < $3
		 ORDER BY s.scheduled_at, s.id`, playerID, from, to)
	return out, err
}

type notificationRepo struct{ c *conn }

func (r *notificationRepo) Create(ctx context.Context, n *store.Notification) error {
	if n.ID == "" {
		n.ID = newID()
	}
	n.CreatedAt = r.c.clk.Now()
	return r.c.insert(ctx, "notification",
		`INSERT INTO notifications (id, user_id, title, message, type, is_read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.UserID, n.Title, n.Message, n.Type, n.IsRead, n.CreatedAt)
}

func (r *notificationRepo) ListByUser(ctx context.Context, userID string) ([]store.Notification, error) {
	var out []store.Notification
	err := r.c.list(ctx, &out, "notifications",
		`SELECT id, user_id, title, message, type, is_read, created_at FROM notifications
		 WHERE user_id = $1 ORDER BY seq`, userID)
	return out, err
}
