package postgres

import (
	"context"
	"fmt"

	"github.com/jensholdgaard/clubhub/internal/store"
)

type tournamentRepo struct{ c *conn }

const (
	tournamentColumns = `id, name, sport_id, status, start_date, end_date`
	pointsColumns     = `id, tournament_id, team_id, matches_played, won, lost, tied, no_result, points,
		runs_for, balls_faced, runs_against, balls_bowled, net_run_rate`
	achievementColumns = `id, player_id, title, description, tournament_id, match_id, awarded_at`
)

func (r *tournamentRepo) Create(ctx context.Context, t *store.Tournament) error {
	if t.ID == "" {
		t.ID = newID()
	}
	return r.c.insert(ctx, "tournament "+t.Name,
		`INSERT INTO tournaments (`+tournamentColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.Name, t.SportID, t.Status, t.StartDate, t.EndDate)
}

func (r *tournamentRepo) Get(ctx context.Context, id string) (*store.Tournament, error) {
	var t store.Tournament
	if err := r.c.get(ctx, &t, "tournament", id,
		r.c.locking(`SELECT `+tournamentColumns+` FROM tournaments WHERE id = $1`), id); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tournamentRepo) Update(ctx context.Context, t *store.Tournament) error {
	return r.c.update(ctx, "tournament", t.ID,
		`UPDATE tournaments SET name = :name, status = :status, start_date = :start_date, end_date = :end_date
		 WHERE id = :id`, t)
}

func (r *tournamentRepo) AddTeam(ctx context.Context, tournamentID, teamID string) error {
	return r.c.insertOnce(ctx, "tournament team "+teamID,
		`INSERT INTO tournament_teams (tournament_id, team_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING RETURNING team_id`, tournamentID, teamID)
}

func (r *tournamentRepo) HasTeam(ctx context.Context, tournamentID, teamID string) (bool, error) {
	var ok bool
	err := r.c.scalar(ctx, &ok,
		`SELECT EXISTS (SELECT 1 FROM tournament_teams WHERE tournament_id = $1 AND team_id = $2)`,
		tournamentID, teamID)
	if err != nil {
		return false, fmt.Errorf("checking tournament team: %w", err)
	}
	return ok, nil
}

func (r *tournamentRepo) ListTeams(ctx context.Context, tournamentID string) ([]store.Team, error) {
	out := []store.Team{}
	err := r.c.list(ctx, &out, "tournament teams",
		`SELECT t.id, t.name, t.sport_id, t.manager_id, t.coach_id, t.created_at
		 FROM tournament_teams tt JOIN teams t ON t.id = tt.team_id
		 WHERE tt.tournament_id = $1 ORDER BY tt.seq`, tournamentID)
	return out, err
}

func (r *tournamentRepo) EnsurePoints(ctx context.Context, tournamentID, teamID string) (*store.TournamentPoints, error) {
	_, err := r.c.q.ExecContext(ctx,
		`INSERT INTO tournament_points (id, tournament_id, team_id) VALUES ($1, $2, $3)
		 ON CONFLICT (tournament_id, team_id) DO NOTHING`, newID(), tournamentID, teamID)
	if err != nil {
		return nil, fmt.Errorf("creating points row: %w", err)
	}
	var p store.TournamentPoints
	if err := r.c.get(ctx, &p, "points row", tournamentID+"/"+teamID,
		r.c.locking(`SELECT `+pointsColumns+` FROM tournament_points WHERE tournament_id = $1 AND team_id = $2`),
		tournamentID, teamID); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *tournamentRepo) SavePoints(ctx context.Context, p *store.TournamentPoints) error {
	return r.c.update(ctx, "points row", p.TournamentID+"/"+p.TeamID,
		`UPDATE tournament_points SET matches_played = :matches_played, won = :won, lost = :lost, tied = :tied,
		 no_result = :no_result, points = :points, runs_for = :runs_for, balls_faced = :balls_faced,
		 runs_against = :runs_against, balls_bowled = :balls_bowled, net_run_rate = :net_run_rate
		 WHERE tournament_id = :tournament_id AND team_id = :team_id`, p)
}

func (r *tournamentRepo) ListPoints(ctx context.Context, tournamentID string) ([]store.TournamentPoints, error) {
	var out []store.TournamentPoints
	err := r.c.list(ctx, &out, "points table",
		`SELECT `+pointsColumns+` FROM tournament_points WHERE tournament_id = $1 ORDER BY team_id`, tournamentID)
	return out, err
}

func (r *tournamentRepo) Award(ctx context.Context, a *store.Achievement) (bool, error) {
	id := a.ID
	if id == "" {
		id = newID()
	}
	at := r.c.clk.Now()
	err := r.c.insertOnce(ctx, "achievement "+a.Title,
		`INSERT INTO achievements (`+achievementColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (player_id, title, (COALESCE(match_id, ''))) DO NOTHING RETURNING id`,
		id, a.PlayerID, a.Title, a.Description, a.TournamentID, a.MatchID, at)
	if isDuplicate(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	a.ID, a.AwardedAt = id, at
	return true, nil
}

func (r *tournamentRepo) ListAchievements(ctx context.Context, playerID string) ([]store.Achievement, error) {
	var out []store.Achievement
	err := r.c.list(ctx, &out, "achievements",
		`SELECT `+achievementColumns+` FROM achievements WHERE player_id = $1 ORDER BY awarded_at, title`, playerID)
	return out, err
}

type matchRepo struct{ c *conn }

const (
	matchColumns = `id, tournament_id, team1_id, team2_id, status, winner_id, man_of_the_match_id, scheduled_at`
	stateColumns = `match_id, toss_winner_id, batting_first_id, batting_team_id, bowling_team_id,
		batsman1_id, batsman2_id, striker_id, bowler_id, innings, current_over, current_ball,
		total_balls_bowled, team1_runs, team1_wickets, team1_balls, team2_runs, team2_wickets,
		team2_balls, updated_at`
	statsColumns = `id, match_id, player_id, team_id, runs_scored, balls_faced, fours, sixes, is_out,
		overs_bowled, runs_conceded, wickets_taken, catches`
)

func (r *matchRepo) Create(ctx context.Context, m *store.Match) error {
	if m.ID == "" {
		m.ID = newID()
	}
	return r.c.insert(ctx, "match",
		`INSERT INTO matches (`+matchColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.TournamentID, m.Team1ID, m.Team2ID, m.Status, m.WinnerID, m.ManOfTheMatchID, m.ScheduledAt)
}

func (r *matchRepo) Get(ctx context.Context, id string) (*store.Match, error) {
	var m store.Match
	if err := r.c.get(ctx, &m, "match", id,
		r.c.locking(`SELECT `+matchColumns+` FROM matches WHERE id = $1`), id); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *matchRepo) Update(ctx context.Context, m *store.Match) error {
	return r.c.update(ctx, "match", m.ID,
		`UPDATE matches SET status = :status, winner_id = :winner_id, man_of_the_match_id = :man_of_the_match_id,
		 scheduled_at = :scheduled_at WHERE id = :id`, m)
}

func (r *matchRepo) ListByTournament(ctx context.Context, tournamentID string) ([]store.Match, error) {
	var out []store.Match
	err := r.c.list(ctx, &out, "matches",
		`SELECT `+matchColumns+` FROM matches WHERE tournament_id = $1 ORDER BY scheduled_at, id`, tournamentID)
	return out, err
}

func (r *matchRepo) GetState(ctx context.Context, matchID string) (*store.CricketMatchState, error) {
	var s store.CricketMatchState
	if err := r.c.get(ctx, &s, "match state", matchID,
		r.c.locking(`SELECT `+stateColumns+` FROM cricket_match_states WHERE match_id = $1`), matchID); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *matchRepo) SaveState(ctx context.Context, s *store.CricketMatchState) error {
	s.UpdatedAt = r.c.clk.Now()
	return r.c.upsert(ctx, "match state",
		`INSERT INTO cricket_match_states (`+stateColumns+`) VALUES (:match_id, :toss_winner_id,
		 :batting_first_id, :batting_team_id, :bowling_team_id, :batsman1_id, :batsman2_id, :striker_id,
		 :bowler_id, :innings, :current_over, :current_ball, :total_balls_bowled, :team1_runs,
		 :team1_wickets, :team1_balls, :team2_runs, :team2_wickets, :team2_balls, :updated_at)
		 ON CONFLICT (match_id) DO UPDATE SET toss_winner_id = EXCLUDED.toss_winner_id,
		 batting_first_id = EXCLUDED.batting_first_id, batting_team_id = EXCLUDED.batting_team_id,
		 bowling_team_id = EXCLUDED.bowling_team_id, batsman1_id = EXCLUDED.batsman1_id,
		 batsman2_id = EXCLUDED.batsman2_id, striker_id = EXCLUDED.striker_id, bowler_id = EXCLUDED.bowler_id,
		 innings = EXCLUDED.innings, current_over = EXCLUDED.current_over, current_ball = EXCLUDED.current_ball,
		 total_balls_bowled = EXCLUDED.total_balls_bowled, team1_runs = EXCLUDED.team1_runs,
		 team1_wickets = EXCLUDED.team1_wickets, team1_balls = EXCLUDED.team1_balls,
		 team2_runs = EXCLUDED.team2_runs, team2_wickets = EXCLUDED.team2_wickets,
		 team2_balls = EXCLUDED.team2_balls, updated_at = EXCLUDED.updated_at`, s)
}

func (r *matchRepo) EnsureStats(ctx context.Context, s *store.MatchPlayerStats) error {
	if s.ID == "" {
		s.ID = newID()
	}
	return r.c.upsert(ctx, "match stats",
		`INSERT INTO match_player_stats (`+statsColumns+`) VALUES (:id, :match_id, :player_id, :team_id,
		 :runs_scored, :balls_faced, :fours, :sixes, :is_out, :overs_bowled, :runs_conceded,
		 :wickets_taken, :catches) ON CONFLICT (match_id, player_id) DO NOTHING`, s)
}

func (r *matchRepo) GetStats(ctx context.Context, matchID, playerID string) (*store.MatchPlayerStats, error) {
	var s store.MatchPlayerStats
	if err := r.c.get(ctx, &s, "match stats", matchID+"/"+playerID,
		r.c.locking(`SELECT `+statsColumns+` FROM match_player_stats WHERE match_id = $1 AND player_id = $2`),
		matchID, playerID); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *matchRepo) SaveStats(ctx context.Context, s *store.MatchPlayerStats) error {
	return r.c.update(ctx, "match stats", s.MatchID+"/"+s.PlayerID,
		`UPDATE match_player_stats SET runs_scored = :runs_scored, balls_faced = :balls_faced, fours = :fours,
		 sixes = :sixes, is_out = :is_out, overs_bowled = :overs_bowled, runs_conceded = :runs_conceded,
		 wickets_taken = :wickets_taken, catches = :catches
		 WHERE match_id = :match_id AND player_id = :player_id`, s)
}

func (r *matchRepo) ListStats(ctx context.Context, matchID string) ([]store.MatchPlayerStats, error) {
	var out []store.MatchPlayerStats
	err := r.c.list(ctx, &out, "match stats",
		`SELECT `+statsColumns+` FROM match_player_stats WHERE match_id = $1 ORDER BY team_id, player_id`, matchID)
	return out, err
}

func (r *matchRepo) TournamentTotals(ctx context.Context, tournamentID string) ([]store.PlayerTotal, error) {
	var out []store.PlayerTotal
	err := r.c.list(ctx, &out, "tournament totals",
		`SELECT player_id, SUM(runs) AS runs, SUM(wickets) AS wickets, SUM(mom) AS man_of_the_match
		 FROM (
		     SELECT s.player_id, s.runs_scored AS runs, s.wickets_taken AS wickets, 0 AS mom
		     FROM match_player_stats s JOIN matches m ON m.id = s.match_id
		     WHERE m.tournament_id = $1
		     UNION ALL
		     SELECT man_of_the_match_id, 0, 0, 1
		     FROM matches WHERE tournament_id = $1 AND man_of_the_match_id IS NOT NULL
		 ) totals
		 GROUP BY player_id ORDER BY player_id`, tournamentID)
	return out, err
}
