package cricket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/clubhub/internal/authz"
	"github.com/jensholdgaard/clubhub/internal/event"
	"github.com/jensholdgaard/clubhub/internal/notify"
	"github.com/jensholdgaard/clubhub/internal/store"
)

// Points awarded per result.
const (
	WinPoints = 2
	TiePoints = 1
)

// Complete finishes an in-progress match. The side with more runs wins; a
// tie gives both sides a point. Points rows and career stats are updated
// and momCode, a player code, receives the Man of the Match award.
func (e *Engine) Complete(ctx context.Context, actor authz.Actor, matchID, momCode string) (*Scorecard, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Complete",
		trace.WithAttributes(
			attribute.String("match_id", matchID),
			attribute.String("man_of_the_match", momCode),
		),
	)
	defer span.End()

	var result event.MatchResultData
	card, err := e.update(ctx, actor, matchID, string(event.MatchCompleted), true, func(ctx context.Context, p *play) error {
		m, st := p.match, p.state

		var mom *store.Player
		if momCode != "" {
			var err error
			if mom, err = p.tx.Profiles.GetPlayerByCode(ctx, momCode); err != nil {
				return fmt.Errorf("looking up man of the match: %w", err)
			}
			m.ManOfTheMatchID = &mom.ID
		}

		switch {
		case st.Team1Runs > st.Team2Runs:
			m.WinnerID = &m.Team1ID
		case st.Team2Runs > st.Team1Runs:
			m.WinnerID = &m.Team2ID
		}

		if err := e.settlePoints(ctx, p); err != nil {
			return err
		}
		if err := e.foldCareers(ctx, p); err != nil {
			return err
		}
		if mom != nil {
			if err := e.awardManOfTheMatch(ctx, p, mom); err != nil {
				return err
			}
		}

		m.Status = store.MatchCompleted
		if err := p.tx.Matches.Update(ctx, m); err != nil {
			return fmt.Errorf("updating match: %w", err)
		}

		result = event.MatchResultData{Team1Runs: st.Team1Runs, Team2Runs: st.Team2Runs, ManOfTheMatch: momCode}
		if m.WinnerID != nil {
			result.WinnerID = *m.WinnerID
		}
		e.record(ctx, p, event.MatchCompleted, result)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("completing match: %w", err)
	}

	e.logger.InfoContext(ctx, "match completed",
		slog.String("match_id", matchID),
		slog.String("winner_id", result.WinnerID),
		slog.Int("team1_runs", result.Team1Runs),
		slog.Int("team2_runs", result.Team2Runs),
	)
	return card, nil
}

// settlePoints folds the result and run rates into both points rows.
func (e *Engine) settlePoints(ctx context.Context, p *play) error {
	m, st := p.match, p.state
	sides := []struct {
		teamID            string
		runsFor, ballsFor int
		runsAg, ballsAg   int
	}{
		{m.Team1ID, st.Team1Runs, st.Team1Balls, st.Team2Runs, st.Team2Balls},
		{m.Team2ID, st.Team2Runs, st.Team2Balls, st.Team1Runs, st.Team1Balls},
	}
	for _, s := range sides {
		pts, err := p.tx.Tournaments.EnsurePoints(ctx, m.TournamentID, s.teamID)
		if err != nil {
			return fmt.Errorf("loading points row: %w", err)
		}
		pts.MatchesPlayed++
		switch {
		case m.WinnerID == nil:
			pts.Tied++
			pts.Points += TiePoints
		case *m.WinnerID == s.teamID:
			pts.Won++
			pts.Points += WinPoints
		default:
			pts.Lost++
		}
		pts.RunsFor += s.runsFor
		pts.BallsFaced += s.ballsFor
		pts.RunsAgainst += s.runsAg
		pts.BallsBowled += s.ballsAg
		pts.NetRunRate = NetRunRate(pts.RunsFor, pts.BallsFaced, pts.RunsAgainst, pts.BallsBowled)
		if err := p.tx.Tournaments.SavePoints(ctx, pts); err != nil {
			return fmt.Errorf("saving points row: %w", err)
		}
	}
	return nil
}

// NetRunRate is runs scored per over minus runs conceded per over, rounded
// to three places.
func NetRunRate(runsFor, ballsFaced, runsAgainst, ballsBowled int) float64 {
	rate := func(runs, balls int) float64 {
		if balls == 0 {
			return 0
		}
		return float64(runs) / (float64(balls) / 6)
	}
	return math.Round((rate(runsFor, ballsFaced)-rate(runsAgainst, ballsBowled))*1000) / 1000
}

// foldCareers adds every player's match figures to the career stats of
// their active profile in the sport.
func (e *Engine) foldCareers(ctx context.Context, p *play) error {
	all, err := p.tx.Matches.ListStats(ctx, p.match.ID)
	if err != nil {
		return fmt.Errorf("listing match stats: %w", err)
	}
	for _, s := range all {
		psp, err := p.tx.Memberships.GetByPlayerSport(ctx, s.PlayerID, p.tournament.SportID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("looking up sport profile: %w", err)
		}
		if !psp.IsActive {
			continue
		}
		career, err := p.tx.Memberships.GetCareer(ctx, psp.ID)
		if errors.Is(err, store.ErrNotFound) {
			career = &store.CricketStats{ProfileID: psp.ID}
		} else if err != nil {
			return fmt.Errorf("loading career stats: %w", err)
		}
		career.Runs += s.RunsScored
		career.Wickets += s.WicketsTaken
		career.MatchesPlayed++
		career.Average = float64(career.Runs) / float64(career.MatchesPlayed)
		if err := p.tx.Memberships.SaveCareer(ctx, career); err != nil {
			return fmt.Errorf("saving career stats: %w", err)
		}
	}
	return nil
}

func (e *Engine) awardManOfTheMatch(ctx context.Context, p *play, mom *store.Player) error {
	names := make([]string, 0, 2)
	for _, id := range []string{p.match.Team1ID, p.match.Team2ID} {
		t, err := p.tx.Teams.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("looking up team: %w", err)
		}
		names = append(names, t.Name)
	}
	created, err := p.tx.Tournaments.Award(ctx, &store.Achievement{
		PlayerID:     mom.ID,
		Title:        "Man of the Match - " + p.tournament.Name,
		Description:  fmt.Sprintf("Man of the Match in %s vs %s", names[0], names[1]),
		TournamentID: &p.tournament.ID,
		MatchID:      &p.match.ID,
	})
	if err != nil {
		return fmt.Errorf("awarding man of the match: %w", err)
	}
	if created {
		p.msgs = append(p.msgs, notify.Message{
			UserID: mom.UserID,
			Title:  "Man of the Match",
			Body:   fmt.Sprintf("You were named Man of the Match in %s vs %s.", names[0], names[1]),
			Type:   notify.TypeMatch,
		})
	}
	return nil
}

// Cancel ends a scheduled or in-progress match without a result. Both
// teams are charged a played match with no result; scores and player
// stats are left alone.
func (e *Engine) Cancel(ctx context.Context, actor authz.Actor, matchID string) (*Scorecard, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Cancel",
		trace.WithAttributes(attribute.String("match_id", matchID)),
	)
	defer span.End()

	card, err := e.update(ctx, actor, matchID, string(event.MatchCancelled), false, func(ctx context.Context, p *play) error {
		m := p.match
		if m.Status.IsTerminal() {
			return ErrMatchFinished.With("status", string(m.Status))
		}
		for _, teamID := range []string{m.Team1ID, m.Team2ID} {
			pts, err := p.tx.Tournaments.EnsurePoints(ctx, m.TournamentID, teamID)
			if err != nil {
				return fmt.Errorf("loading points row: %w", err)
			}
			pts.MatchesPlayed++
			pts.NoResult++
			if err := p.tx.Tournaments.SavePoints(ctx, pts); err != nil {
				return fmt.Errorf("saving points row: %w", err)
			}
		}
		m.Status = store.MatchNoResult
		if err := p.tx.Matches.Update(ctx, m); err != nil {
			return fmt.Errorf("updating match: %w", err)
		}
		event.Record(ctx, p.tx.Events, e.logger, event.New(m.ID, event.MatchCancelled, 0, map[string]string{
			"status": string(m.Status),
		}))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cancelling match: %w", err)
	}

	e.logger.InfoContext(ctx, "match cancelled", slog.String("match_id", matchID))
	return card, nil
}
