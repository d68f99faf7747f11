package cricket

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/clubhub/internal/store"
)

// Scorecard is the read view of a match, derived from its live state.
type Scorecard struct {
	MatchID         string        `json:"match_id"`
	Status          string        `json:"status"`
	Innings         int           `json:"innings"`
	BattingTeamID   string        `json:"batting_team_id,omitempty"`
	BowlingTeamID   string        `json:"bowling_team_id,omitempty"`
	Over            string        `json:"over"`
	StrikerID       string        `json:"striker_id,omitempty"`
	NonStrikerID    string        `json:"non_striker_id,omitempty"`
	BowlerID        string        `json:"bowler_id,omitempty"`
	Team1           TeamScore     `json:"team1"`
	Team2           TeamScore     `json:"team2"`
	WinnerID        string        `json:"winner_id,omitempty"`
	ManOfTheMatchID string        `json:"man_of_the_match_id,omitempty"`
	Batting         []BattingLine `json:"batting"`
	Bowling         []BowlingLine `json:"bowling"`
}

// TeamScore is one side's total.
type TeamScore struct {
	TeamID  string `json:"team_id"`
	Runs    int    `json:"runs"`
	Wickets int    `json:"wickets"`
	Overs   string `json:"overs"`
}

// BattingLine is a batsman's innings.
type BattingLine struct {
	PlayerID string `json:"player_id"`
	TeamID   string `json:"team_id"`
	Runs     int    `json:"runs"`
	Balls    int    `json:"balls"`
	Fours    int    `json:"fours"`
	Sixes    int    `json:"sixes"`
	Out      bool   `json:"out"`
}

// BowlingLine is a bowler's figures.
type BowlingLine struct {
	PlayerID string  `json:"player_id"`
	TeamID   string  `json:"team_id"`
	Overs    float64 `json:"overs"`
	Runs     int     `json:"runs"`
	Wickets  int     `json:"wickets"`
	Catches  int     `json:"catches"`
}

// Overs renders a ball count in over.ball notation.
func Overs(balls int) string { return fmt.Sprintf("%d.%d", balls/6, balls%6) }

// Scorecard returns the current scorecard of a match. A match that never
// started has zero totals.
func (e *Engine) Scorecard(ctx context.Context, matchID string) (*Scorecard, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Scorecard",
		trace.WithAttributes(attribute.String("match_id", matchID)),
	)
	defer span.End()

	m, err := e.store.Matches.Get(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("getting match: %w", err)
	}
	st, err := e.store.Matches.GetState(ctx, matchID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("getting match state: %w", err)
	}
	return buildScorecard(ctx, e.store.Repositories, m, st)
}

func buildScorecard(ctx context.Context, repos *store.Repositories, m *store.Match, st *store.CricketMatchState) (*Scorecard, error) {
	card := &Scorecard{
		MatchID: m.ID,
		Status:  string(m.Status),
		Over:    Overs(0),
		Team1:   TeamScore{TeamID: m.Team1ID, Overs: Overs(0)},
		Team2:   TeamScore{TeamID: m.Team2ID, Overs: Overs(0)},
		Batting: []BattingLine{},
		Bowling: []BowlingLine{},
	}
	if m.WinnerID != nil {
		card.WinnerID = *m.WinnerID
	}
	if m.ManOfTheMatchID != nil {
		card.ManOfTheMatchID = *m.ManOfTheMatchID
	}
	if st == nil {
		return card, nil
	}

	card.Innings = st.Innings
	card.BattingTeamID = st.BattingTeamID
	card.BowlingTeamID = st.BowlingTeamID
	card.Over = fmt.Sprintf("%d.%d", st.CurrentOver, st.CurrentBall)
	card.Team1 = TeamScore{TeamID: m.Team1ID, Runs: st.Team1Runs, Wickets: st.Team1Wickets, Overs: Overs(st.Team1Balls)}
	card.Team2 = TeamScore{TeamID: m.Team2ID, Runs: st.Team2Runs, Wickets: st.Team2Wickets, Overs: Overs(st.Team2Balls)}
	if st.StrikerID != nil {
		card.StrikerID = *st.StrikerID
		for _, b := range []*string{st.Batsman1ID, st.Batsman2ID} {
			if b != nil && *b != *st.StrikerID {
				card.NonStrikerID = *b
			}
		}
	}
	if st.BowlerID != nil {
		card.BowlerID = *st.BowlerID
	}

	all, err := repos.Matches.ListStats(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("listing match stats: %w", err)
	}
	for _, s := range all {
		if s.BallsFaced > 0 || s.IsOut {
			card.Batting = append(card.Batting, BattingLine{
				PlayerID: s.PlayerID,
				TeamID:   s.TeamID,
				Runs:     s.RunsScored,
				Balls:    s.BallsFaced,
				Fours:    s.Fours,
				Sixes:    s.Sixes,
				Out:      s.IsOut,
			})
		}
		if s.OversBowled > 0 || s.RunsConceded > 0 || s.WicketsTaken > 0 || s.Catches > 0 {
			card.Bowling = append(card.Bowling, BowlingLine{
				PlayerID: s.PlayerID,
				TeamID:   s.TeamID,
				Overs:    s.OversBowled,
				Runs:     s.RunsConceded,
				Wickets:  s.WicketsTaken,
				Catches:  s.Catches,
			})
		}
	}
	return card, nil
}
