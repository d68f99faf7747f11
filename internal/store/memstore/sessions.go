package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/jensholdgaard/clubhub/internal/event"
	"github.com/jensholdgaard/clubhub/internal/store"
)

type sessionRepo struct{ c *conn }

func (r *sessionRepo) Create(_ context.Context, s *store.CoachingSession) error {
	defer r.c.lock()()
	if s.ID == "" {
		s.ID = newID()
	}
	r.c.st().sessions[s.ID] = *s
	return nil
}

func (r *sessionRepo) Get(_ context.Context, id string) (*store.CoachingSession, error) {
	defer r.c.lock()()
	s, ok := r.c.st().sessions[id]
	if !ok {
		return nil, notFound("coaching session", id)
	}
	return &s, nil
}

func (r *sessionRepo) Update(_ context.Context, s *store.CoachingSession) error {
	defer r.c.lock()()
	st := r.c.st()
	if _, ok := st.sessions[s.ID]; !ok {
		return notFound("coaching session", s.ID)
	}
	st.sessions[s.ID] = *s
	return nil
}

func (r *sessionRepo) UpsertAttendance(_ context.Context, a *store.SessionAttendance) error {
	defer r.c.lock()()
	st := r.c.st()
	key := a.SessionID + "/" + a.PlayerID
	if existing, ok := st.attendance[key]; ok {
		a.ID = existing.ID
	} else if a.ID == "" {
		a.ID = newID()
	}
	st.attendance[key] = *a
	return nil
}

func (r *sessionRepo) ListAttendance(_ context.Context, sessionID string) ([]store.SessionAttendance, error) {
	defer r.c.lock()()
	var out []store.SessionAttendance
	for _, a := range r.c.st().attendance {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out, nil
}

func (r *sessionRepo) ratings(playerID string, keep func(store.CoachingSession) bool) []int {
	defer r.c.lock()()
	st := r.c.st()
	type rated struct {
		at     int64
		id     string
		rating int
	}
	var rows []rated
	for _, a := range st.attendance {
		if a.PlayerID != playerID || !a.Attended {
			continue
		}
		s, ok := st.sessions[a.SessionID]
		if !ok || !keep(s) {
			continue
		}
		rows = append(rows, rated{at: s.ScheduledAt.UnixNano(), id: s.ID, rating: a.Rating})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].at != rows[j].at {
			return rows[i].at < rows[j].at
		}
		return rows[i].id < rows[j].id
	})
	out := make([]int, len(rows))
	for i, row := range rows {
		out[i] = row.rating
	}
	return out
}

func (r *sessionRepo) AttendedRatings(_ context.Context, playerID, sportID string) ([]int, error) {
	return r.ratings(playerID, func(s store.CoachingSession) bool { return s.SportID == sportID }), nil
}

func (r *sessionRepo) AttendedRatingsBetween(_ context.Context, playerID string, from, to time.Time) ([]int, error) {
	return r.ratings(playerID, func(s store.CoachingSession) bool {
		return !s.ScheduledAt.Before(from) && s.ScheduledAt.Before(to)
	}), nil
}

type notificationRepo struct{ c *conn }

func (r *notificationRepo) Create(_ context.Context, n *store.Notification) error {
	defer r.c.lock()()
	if n.ID == "" {
		n.ID = newID()
	}
	n.CreatedAt = r.c.now()
	st := r.c.st()
	st.notifications = append(st.notifications, *n)
	return nil
}

func (r *notificationRepo) ListByUser(_ context.Context, userID string) ([]store.Notification, error) {
	defer r.c.lock()()
	var out []store.Notification
	for _, n := range r.c.st().notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

type eventStore struct{ c *conn }

func (s *eventStore) Append(_ context.Context, events ...event.Event) error {
	defer s.c.lock()()
	st := s.c.st()
	now := s.c.now()
	for _, evt := range events {
		if evt.ID == "" {
			evt.ID = newID()
		}
		if evt.CreatedAt.IsZero() {
			evt.CreatedAt = now
		}
		st.events = append(st.events, evt)
	}
	return nil
}

func (s *eventStore) Load(_ context.Context, aggregateID string) ([]event.Event, error) {
	defer s.c.lock()()
	var out []event.Event
	for _, evt := range s.c.st().events {
		if evt.AggregateID == aggregateID {
			out = append(out, evt)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (s *eventStore) LoadByType(_ context.Context, eventType event.Type) ([]event.Event, error) {
	defer s.c.lock()()
	var out []event.Event
	for _, evt := range s.c.st().events {
		if evt.Type == eventType {
			out = append(out, evt)
		}
	}
	return out, nil
}
