package cricket

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/clubhub/internal/authz"
	"github.com/jensholdgaard/clubhub/internal/event"
)

// SetBatsmen puts two batsmen of the batting team at the crease. An empty
// strikerID puts batsman1 on strike.
func (e *Engine) SetBatsmen(ctx context.Context, actor authz.Actor, matchID, batsman1ID, batsman2ID, strikerID string) (*Scorecard, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.SetBatsmen",
		trace.WithAttributes(
			attribute.String("match_id", matchID),
			attribute.String("batsman1_id", batsman1ID),
			attribute.String("batsman2_id", batsman2ID),
		),
	)
	defer span.End()

	if strikerID == "" {
		strikerID = batsman1ID
	}
	card, err := e.update(ctx, actor, matchID, "batsmen_set", true, func(ctx context.Context, p *play) error {
		if batsman1ID == batsman2ID {
			return ErrSameBatsman
		}
		if strikerID != batsman1ID && strikerID != batsman2ID {
			return ErrStrikerNotBatting.With("player_id", strikerID)
		}
		for _, id := range []string{batsman1ID, batsman2ID} {
			if err := e.onRoster(ctx, p, p.state.BattingTeamID, id); err != nil {
				return err
			}
		}
		p.state.Batsman1ID = &batsman1ID
		p.state.Batsman2ID = &batsman2ID
		p.state.StrikerID = &strikerID
		if err := p.tx.Matches.SaveState(ctx, p.state); err != nil {
			return fmt.Errorf("saving match state: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("setting batsmen: %w", err)
	}
	return card, nil
}

// SetBowler sets the bowler from the bowling team.
func (e *Engine) SetBowler(ctx context.Context, actor authz.Actor, matchID, bowlerID string) (*Scorecard, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.SetBowler",
		trace.WithAttributes(
			attribute.String("match_id", matchID),
			attribute.String("bowler_id", bowlerID),
		),
	)
	defer span.End()

	card, err := e.update(ctx, actor, matchID, "bowler_set", true, func(ctx context.Context, p *play) error {
		if err := e.onRoster(ctx, p, p.state.BowlingTeamID, bowlerID); err != nil {
			return err
		}
		p.state.BowlerID = &bowlerID
		if err := p.tx.Matches.SaveState(ctx, p.state); err != nil {
			return fmt.Errorf("saving match state: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("setting bowler: %w", err)
	}
	return card, nil
}

// Score records one legal delivery worth runs. Odd runs change the strike.
func (e *Engine) Score(ctx context.Context, actor authz.Actor, matchID string, runs int) (*Scorecard, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Score",
		trace.WithAttributes(
			attribute.String("match_id", matchID),
			attribute.Int("runs", runs),
		),
	)
	defer span.End()

	if runs < 0 || runs > 6 {
		return nil, ErrInvalidRuns.With("runs", fmt.Sprint(runs))
	}

	var ball event.BallData
	card, err := e.update(ctx, actor, matchID, string(event.BallScored), true, func(ctx context.Context, p *play) error {
		st := p.state
		if st.StrikerID == nil || st.BowlerID == nil {
			return ErrPlayersNotSet
		}
		ball = event.BallData{Over: st.CurrentOver, Ball: st.CurrentBall, Runs: runs, StrikerID: *st.StrikerID, BowlerID: *st.BowlerID}

		p.addRuns(runs)

		batter, err := e.stats(ctx, p, *st.StrikerID, st.BattingTeamID)
		if err != nil {
			return err
		}
		batter.RunsScored += runs
		batter.BallsFaced++
		switch runs {
		case 4:
			batter.Fours++
		case 6:
			batter.Sixes++
		}
		if err := p.tx.Matches.SaveStats(ctx, batter); err != nil {
			return fmt.Errorf("saving batting stats: %w", err)
		}

		bowler, err := e.stats(ctx, p, *st.BowlerID, st.BowlingTeamID)
		if err != nil {
			return err
		}
		bowler.RunsConceded += runs
		bowler.OversBowled = float64(st.TotalBallsBowled) / 6
		if err := p.tx.Matches.SaveStats(ctx, bowler); err != nil {
			return fmt.Errorf("saving bowling stats: %w", err)
		}

		p.advance()
		if runs%2 == 1 {
			p.rotateStrike()
		}
		if err := p.tx.Matches.SaveState(ctx, st); err != nil {
			return fmt.Errorf("saving match state: %w", err)
		}
		e.record(ctx, p, event.BallScored, ball)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scoring: %w", err)
	}

	e.balls.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "runs")))
	e.logger.DebugContext(ctx, "ball scored",
		slog.String("match_id", matchID),
		slog.Int("over", ball.Over),
		slog.Int("ball", ball.Ball),
		slog.Int("runs", runs),
	)
	return card, nil
}

// Wicket dismisses the striker. The next batsman takes the vacated slot and
// the strike. fielderID, when set, is credited with a catch.
func (e *Engine) Wicket(ctx context.Context, actor authz.Actor, matchID, nextBatsmanID, fielderID string) (*Scorecard, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Wicket",
		trace.WithAttributes(
			attribute.String("match_id", matchID),
			attribute.String("next_batsman_id", nextBatsmanID),
		),
	)
	defer span.End()

	var ball event.BallData
	card, err := e.update(ctx, actor, matchID, string(event.WicketFell), true, func(ctx context.Context, p *play) error {
		st := p.state
		if st.StrikerID == nil {
			return ErrNoStriker
		}
		out := *st.StrikerID
		if err := e.onRoster(ctx, p, st.BattingTeamID, nextBatsmanID); err != nil {
			return err
		}
		if nextBatsmanID == out || (st.Batsman1ID != nil && *st.Batsman1ID == nextBatsmanID) ||
			(st.Batsman2ID != nil && *st.Batsman2ID == nextBatsmanID) {
			return ErrSameBatsman.With("player_id", nextBatsmanID)
		}
		incoming, err := e.stats(ctx, p, nextBatsmanID, st.BattingTeamID)
		if err != nil {
			return err
		}
		if incoming.IsOut {
			return ErrAlreadyOut.With("player_id", nextBatsmanID)
		}
		if fielderID != "" {
			if err := e.onRoster(ctx, p, st.BowlingTeamID, fielderID); err != nil {
				return err
			}
		}

		ball = event.BallData{Over: st.CurrentOver, Ball: st.CurrentBall, StrikerID: out, OutID: out, FielderID: fielderID}

		batter, err := e.stats(ctx, p, out, st.BattingTeamID)
		if err != nil {
			return err
		}
		batter.IsOut = true
		batter.BallsFaced++
		if err := p.tx.Matches.SaveStats(ctx, batter); err != nil {
			return fmt.Errorf("saving batting stats: %w", err)
		}

		if st.BowlerID != nil {
			ball.BowlerID = *st.BowlerID
			bowler, err := e.stats(ctx, p, *st.BowlerID, st.BowlingTeamID)
			if err != nil {
				return err
			}
			bowler.WicketsTaken++
			bowler.OversBowled = float64(st.TotalBallsBowled) / 6
			if err := p.tx.Matches.SaveStats(ctx, bowler); err != nil {
				return fmt.Errorf("saving bowling stats: %w", err)
			}
		}
		if fielderID != "" {
			fielder, err := e.stats(ctx, p, fielderID, st.BowlingTeamID)
			if err != nil {
				return err
			}
			fielder.Catches++
			if err := p.tx.Matches.SaveStats(ctx, fielder); err != nil {
				return fmt.Errorf("saving fielding stats: %w", err)
			}
		}

		p.addWicket()
		next := nextBatsmanID
		if st.Batsman1ID != nil && *st.Batsman1ID == out {
			st.Batsman1ID = &next
		} else {
			st.Batsman2ID = &next
		}
		st.StrikerID = &next
		p.advance()
		if err := p.tx.Matches.SaveState(ctx, st); err != nil {
			return fmt.Errorf("saving match state: %w", err)
		}
		e.record(ctx, p, event.WicketFell, ball)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("recording wicket: %w", err)
	}

	e.balls.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "wicket")))
	e.logger.InfoContext(ctx, "wicket",
		slog.String("match_id", matchID),
		slog.String("out_id", ball.OutID),
		slog.String("next_batsman_id", nextBatsmanID),
	)
	return card, nil
}

// SwitchInnings hands the bat to the other team. Counters restart and all
// players at the crease must be chosen again.
func (e *Engine) SwitchInnings(ctx context.Context, actor authz.Actor, matchID string) (*Scorecard, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.SwitchInnings",
		trace.WithAttributes(attribute.String("match_id", matchID)),
	)
	defer span.End()

	card, err := e.update(ctx, actor, matchID, string(event.InningsSwitched), true, func(ctx context.Context, p *play) error {
		st := p.state
		if st.Innings >= 2 {
			return ErrInningsSwitched
		}
		st.BattingTeamID, st.BowlingTeamID = st.BowlingTeamID, st.BattingTeamID
		st.CurrentOver = 0
		st.CurrentBall = 0
		st.Batsman1ID = nil
		st.Batsman2ID = nil
		st.StrikerID = nil
		st.BowlerID = nil
		st.Innings++
		if err := p.tx.Matches.SaveState(ctx, st); err != nil {
			return fmt.Errorf("saving match state: %w", err)
		}
		e.record(ctx, p, event.InningsSwitched, map[string]string{"batting_team_id": st.BattingTeamID})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("switching innings: %w", err)
	}

	e.logger.InfoContext(ctx, "innings switched", slog.String("match_id", matchID))
	return card, nil
}

func (p *play) team1Batting() bool { return p.state.BattingTeamID == p.match.Team1ID }

// addRuns credits runs and the delivery to the batting team.
func (p *play) addRuns(runs int) {
	if p.team1Batting() {
		p.state.Team1Runs += runs
		p.state.Team1Balls++
		return
	}
	p.state.Team2Runs += runs
	p.state.Team2Balls++
}

func (p *play) addWicket() {
	if p.team1Batting() {
		p.state.Team1Wickets++
		p.state.Team1Balls++
		return
	}
	p.state.Team2Wickets++
	p.state.Team2Balls++
}

// advance counts one legal delivery; six complete an over.
func (p *play) advance() {
	st := p.state
	st.CurrentBall++
	st.TotalBallsBowled++
	if st.CurrentBall >= 6 {
		st.CurrentBall = 0
		st.CurrentOver++
	}
}

func (p *play) rotateStrike() {
	st := p.state
	if st.StrikerID == nil || st.Batsman1ID == nil || st.Batsman2ID == nil {
		return
	}
	if *st.StrikerID == *st.Batsman1ID {
		st.StrikerID = st.Batsman2ID
	} else {
		st.StrikerID = st.Batsman1ID
	}
}
