package postgres

import (
	"context"
	"fmt"

	"github.com/jensholdgaard/clubhub/internal/store"
)

type membershipRepo struct{ c *conn }

const profileColumns = `id, player_id, sport_id, team_id, coach_id, is_active, career_score, session_count`

func (r *membershipRepo) Create(ctx context.Context, p *store.PlayerSportProfile) error {
	if p.ID == "" {
		p.ID = newID()
	}
	return r.c.insertOnce(ctx, "sport profile for player "+p.PlayerID,
		`INSERT INTO player_sport_profiles (`+profileColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT DO NOTHING RETURNING id`,
		p.ID, p.PlayerID, p.SportID, p.TeamID, p.CoachID, p.IsActive, p.CareerScore, p.SessionCount)
}

func (r *membershipRepo) Get(ctx context.Context, id string) (*store.PlayerSportProfile, error) {
	var p store.PlayerSportProfile
	if err := r.c.get(ctx, &p, "sport profile", id,
		r.c.locking(`SELECT `+profileColumns+` FROM player_sport_profiles WHERE id = $1`), id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *membershipRepo) GetByPlayerSport(ctx context.Context, playerID, sportID string) (*store.PlayerSportProfile, error) {
	var p store.PlayerSportProfile
	if err := r.c.get(ctx, &p, "sport profile", playerID+"/"+sportID,
		r.c.locking(`SELECT `+profileColumns+` FROM player_sport_profiles WHERE player_id = $1 AND sport_id = $2`),
		playerID, sportID); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *membershipRepo) Update(ctx context.Context, p *store.PlayerSportProfile) error {
	return r.c.update(ctx, "sport profile", p.ID,
		`UPDATE player_sport_profiles SET team_id = :team_id, coach_id = :coach_id, is_active = :is_active,
		 career_score = :career_score, session_count = :session_count WHERE id = :id`, p)
}

func (r *membershipRepo) ListByPlayer(ctx context.Context, playerID string) ([]store.PlayerSportProfile, error) {
	var out []store.PlayerSportProfile
	err := r.c.list(ctx, &out, "sport profiles",
		`SELECT `+profileColumns+` FROM player_sport_profiles WHERE player_id = $1 ORDER BY id`, playerID)
	return out, err
}

func (r *membershipRepo) ListByTeam(ctx context.Context, teamID string) ([]store.PlayerSportProfile, error) {
	var out []store.PlayerSportProfile
	err := r.c.list(ctx, &out, "team roster",
		`SELECT `+profileColumns+` FROM player_sport_profiles WHERE team_id = $1 ORDER BY id`, teamID)
	return out, err
}

func (r *membershipRepo) ListByCoachSport(ctx context.Context, coachID, sportID string) ([]store.PlayerSportProfile, error) {
	var out []store.PlayerSportProfile
	err := r.c.list(ctx, &out, "coached profiles",
		`SELECT `+profileColumns+` FROM player_sport_profiles
		 WHERE coach_id = $1 AND sport_id = $2 ORDER BY id`, coachID, sportID)
	return out, err
}

func (r *membershipRepo) ListTeamed(ctx context.Context, playerID, sportID, excludeID string) ([]store.PlayerSportProfile, error) {
	var out []store.PlayerSportProfile
	err := r.c.list(ctx, &out, "teamed profiles",
		`SELECT `+profileColumns+` FROM player_sport_profiles
		 WHERE player_id = $1 AND sport_id = $2 AND id <> $3 AND is_active AND team_id IS NOT NULL
		 ORDER BY id`, playerID, sportID, excludeID)
	return out, err
}

func (r *membershipRepo) GetCareer(ctx context.Context, profileID string) (*store.CricketStats, error) {
	var s store.CricketStats
	if err := r.c.get(ctx, &s, "career stats", profileID,
		r.c.locking(`SELECT profile_id, runs, wickets, matches_played, average FROM cricket_stats WHERE profile_id = $1`),
		profileID); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *membershipRepo) SaveCareer(ctx context.Context, s *store.CricketStats) error {
	return r.c.upsert(ctx, "career stats",
		`INSERT INTO cricket_stats (profile_id, runs, wickets, matches_played, average)
		 VALUES (:profile_id, :runs, :wickets, :matches_played, :average)
		 ON CONFLICT (profile_id) DO UPDATE SET runs = EXCLUDED.runs, wickets = EXCLUDED.wickets,
		 matches_played = EXCLUDED.matches_played, average = EXCLUDED.average`, s)
}

type teamRepo struct{ c *conn }

const teamColumns = `id, name, sport_id, manager_id, coach_id, created_at`

func (r *teamRepo) Create(ctx context.Context, t *store.Team) error {
	if t.ID == "" {
		t.ID = newID()
	}
	t.CreatedAt = r.c.clk.Now()
	return r.c.insert(ctx, "team "+t.Name,
		`INSERT INTO teams (`+teamColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.Name, t.SportID, t.ManagerID, t.CoachID, t.CreatedAt)
}

func (r *teamRepo) Get(ctx context.Context, id string) (*store.Team, error) {
	var t store.Team
	if err := r.c.get(ctx, &t, "team", id, `SELECT `+teamColumns+` FROM teams WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *teamRepo) SetCoach(ctx context.Context, teamID, coachID string) error {
	res, err := r.c.q.ExecContext(ctx, `UPDATE teams SET coach_id = $2 WHERE id = $1`, teamID, coachID)
	if err != nil {
		return fmt.Errorf("setting team coach: %w", err)
	}
	return affected(res, "team", teamID)
}
