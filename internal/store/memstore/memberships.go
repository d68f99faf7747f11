package memstore

import (
	"context"
	"sort"

	"github.com/jensholdgaard/clubhub/internal/store"
)

type membershipRepo struct{ c *conn }

func (r *membershipRepo) Create(_ context.Context, p *store.PlayerSportProfile) error {
	defer r.c.lock()()
	st := r.c.st()
	for _, existing := range st.profiles {
		if existing.PlayerID == p.PlayerID && existing.SportID == p.SportID {
			return duplicate("sport profile for player " + p.PlayerID)
		}
	}
	if p.ID == "" {
		p.ID = newID()
	}
	st.profiles[p.ID] = *p
	return nil
}

func (r *membershipRepo) Get(_ context.Context, id string) (*store.PlayerSportProfile, error) {
	defer r.c.lock()()
	p, ok := r.c.st().profiles[id]
	if !ok {
		return nil, notFound("sport profile", id)
	}
	return &p, nil
}

func (r *membershipRepo) GetByPlayerSport(_ context.Context, playerID, sportID string) (*store.PlayerSportProfile, error) {
	defer r.c.lock()()
	for _, p := range r.c.st().profiles {
		if p.PlayerID == playerID && p.SportID == sportID {
			return &p, nil
		}
	}
	return nil, notFound("sport profile", playerID+"/"+sportID)
}

func (r *membershipRepo) Update(_ context.Context, p *store.PlayerSportProfile) error {
	defer r.c.lock()()
	st := r.c.st()
	if _, ok := st.profiles[p.ID]; !ok {
		return notFound("sport profile", p.ID)
	}
	if p.TeamID != nil && p.IsActive {
		for _, other := range st.profiles {
			if other.ID != p.ID && other.PlayerID == p.PlayerID && other.SportID == p.SportID &&
				other.TeamID != nil && other.IsActive {
				return duplicate("team membership for player " + p.PlayerID)
			}
		}
	}
	st.profiles[p.ID] = *p
	return nil
}

func (r *membershipRepo) list(keep func(store.PlayerSportProfile) bool) []store.PlayerSportProfile {
	defer r.c.lock()()
	var out []store.PlayerSportProfile
	for _, p := range r.c.st().profiles {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *membershipRepo) ListByPlayer(_ context.Context, playerID string) ([]store.PlayerSportProfile, error) {
	return r.list(func(p store.PlayerSportProfile) bool { return p.PlayerID == playerID }), nil
}

func (r *membershipRepo) ListByTeam(_ context.Context, teamID string) ([]store.PlayerSportProfile, error) {
	return r.list(func(p store.PlayerSportProfile) bool {
		return p.TeamID != nil && *p.TeamID == teamID
	}), nil
}

func (r *membershipRepo) ListByCoachSport(_ context.Context, coachID, sportID string) ([]store.PlayerSportProfile, error) {
	return r.list(func(p store.PlayerSportProfile) bool {
		return p.SportID == sportID && p.CoachID != nil && *p.CoachID == coachID
	}), nil
}

func (r *membershipRepo) ListTeamed(_ context.Context, playerID, sportID, excludeID string) ([]store.PlayerSportProfile, error) {
	return r.list(func(p store.PlayerSportProfile) bool {
		return p.PlayerID == playerID && p.SportID == sportID && p.ID != excludeID &&
			p.IsActive && p.TeamID != nil
	}), nil
}

func (r *membershipRepo) GetCareer(_ context.Context, profileID string) (*store.CricketStats, error) {
	defer r.c.lock()()
	s, ok := r.c.st().careers[profileID]
	if !ok {
		return nil, notFound("career stats", profileID)
	}
	return &s, nil
}

func (r *membershipRepo) SaveCareer(_ context.Context, s *store.CricketStats) error {
	defer r.c.lock()()
	r.c.st().careers[s.ProfileID] = *s
	return nil
}

type teamRepo struct{ c *conn }

func (r *teamRepo) Create(_ context.Context, t *store.Team) error {
	defer r.c.lock()()
	st := r.c.st()
	if t.ID == "" {
		t.ID = newID()
	}
	t.CreatedAt = r.c.now()
	st.teams[t.ID] = *t
	return nil
}

func (r *teamRepo) Get(_ context.Context, id string) (*store.Team, error) {
	defer r.c.lock()()
	t, ok := r.c.st().teams[id]
	if !ok {
		return nil, notFound("team", id)
	}
	return &t, nil
}

func (r *teamRepo) SetCoach(_ context.Context, teamID, coachID string) error {
	defer r.c.lock()()
	st := r.c.st()
	t, ok := st.teams[teamID]
	if !ok {
		return notFound("team", teamID)
	}
	t.CoachID = &coachID
	st.teams[teamID] = t
	return nil
}
