package memstore

import (
	"context"
	"slices"
	"sort"

	"github.com/jensholdgaard/clubhub/internal/store"
)

type tournamentRepo struct{ c *conn }

func (r *tournamentRepo) Create(_ context.Context, t *store.Tournament) error {
	defer r.c.lock()()
	if t.ID == "" {
		t.ID = newID()
	}
	r.c.st().tournaments[t.ID] = *t
	return nil
}

func (r *tournamentRepo) Get(_ context.Context, id string) (*store.Tournament, error) {
	defer r.c.lock()()
	t, ok := r.c.st().tournaments[id]
	if !ok {
		return nil, notFound("tournament", id)
	}
	return &t, nil
}

func (r *tournamentRepo) Update(_ context.Context, t *store.Tournament) error {
	defer r.c.lock()()
	st := r.c.st()
	if _, ok := st.tournaments[t.ID]; !ok {
		return notFound("tournament", t.ID)
	}
	st.tournaments[t.ID] = *t
	return nil
}

func (r *tournamentRepo) AddTeam(_ context.Context, tournamentID, teamID string) error {
	defer r.c.lock()()
	st := r.c.st()
	if slices.Contains(st.tournamentTeams[tournamentID], teamID) {
		return duplicate("tournament team " + teamID)
	}
	st.tournamentTeams[tournamentID] = append(slices.Clone(st.tournamentTeams[tournamentID]), teamID)
	return nil
}

func (r *tournamentRepo) HasTeam(_ context.Context, tournamentID, teamID string) (bool, error) {
	defer r.c.lock()()
	return slices.Contains(r.c.st().tournamentTeams[tournamentID], teamID), nil
}

func (r *tournamentRepo) ListTeams(_ context.Context, tournamentID string) ([]store.Team, error) {
	defer r.c.lock()()
	st := r.c.st()
	out := make([]store.Team, 0, len(st.tournamentTeams[tournamentID]))
	for _, id := range st.tournamentTeams[tournamentID] {
		if t, ok := st.teams[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func pointsKey(tournamentID, teamID string) string { return tournamentID + "/" + teamID }

func (r *tournamentRepo) EnsurePoints(_ context.Context, tournamentID, teamID string) (*store.TournamentPoints, error) {
	defer r.c.lock()()
	st := r.c.st()
	key := pointsKey(tournamentID, teamID)
	p, ok := st.points[key]
	if !ok {
		p = store.TournamentPoints{ID: newID(), TournamentID: tournamentID, TeamID: teamID}
		st.points[key] = p
	}
	return &p, nil
}

func (r *tournamentRepo) SavePoints(_ context.Context, p *store.TournamentPoints) error {
	defer r.c.lock()()
	st := r.c.st()
	key := pointsKey(p.TournamentID, p.TeamID)
	if _, ok := st.points[key]; !ok {
		return notFound("points row", key)
	}
	st.points[key] = *p
	return nil
}

func (r *tournamentRepo) ListPoints(_ context.Context, tournamentID string) ([]store.TournamentPoints, error) {
	defer r.c.lock()()
	var out []store.TournamentPoints
	for _, p := range r.c.st().points {
		if p.TournamentID == tournamentID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TeamID < out[j].TeamID })
	return out, nil
}

func (r *tournamentRepo) Award(_ context.Context, a *store.Achievement) (bool, error) {
	defer r.c.lock()()
	st := r.c.st()
	for _, existing := range st.achievements {
		if existing.PlayerID == a.PlayerID && existing.Title == a.Title && deref(existing.MatchID) == deref(a.MatchID) {
			return false, nil
		}
	}
	if a.ID == "" {
		a.ID = newID()
	}
	a.AwardedAt = r.c.now()
	st.achievements[a.ID] = *a
	return true, nil
}

func (r *tournamentRepo) ListAchievements(_ context.Context, playerID string) ([]store.Achievement, error) {
	defer r.c.lock()()
	var out []store.Achievement
	for _, a := range r.c.st().achievements {
		if a.PlayerID == playerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AwardedAt.Equal(out[j].AwardedAt) {
			return out[i].AwardedAt.Before(out[j].AwardedAt)
		}
		return out[i].Title < out[j].Title
	})
	return out, nil
}

type matchRepo struct{ c *conn }

func (r *matchRepo) Create(_ context.Context, m *store.Match) error {
	defer r.c.lock()()
	if m.ID == "" {
		m.ID = newID()
	}
	r.c.st().matches[m.ID] = *m
	return nil
}

func (r *matchRepo) Get(_ context.Context, id string) (*store.Match, error) {
	defer r.c.lock()()
	m, ok := r.c.st().matches[id]
	if !ok {
		return nil, notFound("match", id)
	}
	return &m, nil
}

func (r *matchRepo) Update(_ context.Context, m *store.Match) error {
	defer r.c.lock()()
	st := r.c.st()
	if _, ok := st.matches[m.ID]; !ok {
		return notFound("match", m.ID)
	}
	st.matches[m.ID] = *m
	return nil
}

func (r *matchRepo) ListByTournament(_ context.Context, tournamentID string) ([]store.Match, error) {
	defer r.c.lock()()
	var out []store.Match
	for _, m := range r.c.st().matches {
		if m.TournamentID == tournamentID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ScheduledAt.Before(out[j].ScheduledAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *matchRepo) GetState(_ context.Context, matchID string) (*store.CricketMatchState, error) {
	defer r.c.lock()()
	s, ok := r.c.st().matchStates[matchID]
	if !ok {
		return nil, notFound("match state", matchID)
	}
	return &s, nil
}

func (r *matchRepo) SaveState(_ context.Context, s *store.CricketMatchState) error {
	defer r.c.lock()()
	s.UpdatedAt = r.c.now()
	r.c.st().matchStates[s.MatchID] = *s
	return nil
}

func statsKey(matchID, playerID string) string { return matchID + "/" + playerID }

func (r *matchRepo) EnsureStats(_ context.Context, s *store.MatchPlayerStats) error {
	defer r.c.lock()()
	st := r.c.st()
	key := statsKey(s.MatchID, s.PlayerID)
	if _, ok := st.matchStats[key]; ok {
		return nil
	}
	if s.ID == "" {
		s.ID = newID()
	}
	st.matchStats[key] = *s
	return nil
}

func (r *matchRepo) GetStats(_ context.Context, matchID, playerID string) (*store.MatchPlayerStats, error) {
	defer r.c.lock()()
	s, ok := r.c.st().matchStats[statsKey(matchID, playerID)]
	if !ok {
		return nil, notFound("match stats", statsKey(matchID, playerID))
	}
	return &s, nil
}

func (r *matchRepo) SaveStats(_ context.Context, s *store.MatchPlayerStats) error {
	defer r.c.lock()()
	st := r.c.st()
	key := statsKey(s.MatchID, s.PlayerID)
	if _, ok := st.matchStats[key]; !ok {
		return notFound("match stats", key)
	}
	st.matchStats[key] = *s
	return nil
}

func (r *matchRepo) ListStats(_ context.Context, matchID string) ([]store.MatchPlayerStats, error) {
	defer r.c.lock()()
	var out []store.MatchPlayerStats
	for _, s := range r.c.st().matchStats {
		if s.MatchID == matchID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TeamID != out[j].TeamID {
			return out[i].TeamID < out[j].TeamID
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	return out, nil
}

func (r *matchRepo) TournamentTotals(_ context.Context, tournamentID string) ([]store.PlayerTotal, error) {
	defer r.c.lock()()
	st := r.c.st()
	totals := map[string]*store.PlayerTotal{}
	get := func(playerID string) *store.PlayerTotal {
		t, ok := totals[playerID]
		if !ok {
			t = &store.PlayerTotal{PlayerID: playerID}
			totals[playerID] = t
		}
		return t
	}
	for _, s := range st.matchStats {
		m, ok := st.matches[s.MatchID]
		if !ok || m.TournamentID != tournamentID {
			continue
		}
		t := get(s.PlayerID)
		t.Runs += s.RunsScored
		t.Wickets += s.WicketsTaken
	}
	for _, m := range st.matches {
		if m.TournamentID == tournamentID && m.ManOfTheMatchID != nil {
			get(*m.ManOfTheMatchID).ManOfTheMatch++
		}
	}
	out := make([]store.PlayerTotal, 0, len(totals))
	for _, t := range totals {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out, nil
}
