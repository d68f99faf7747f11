// Package cricket runs live cricket matches ball by ball.
//
// The CricketMatchState row is the only place scores live. Every event on a
// match runs under a per-match lock inside one store transaction, and the
// resulting scorecard is published after commit.
package cricket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/clubhub/internal/authz"
	"github.com/jensholdgaard/clubhub/internal/clock"
	"github.com/jensholdgaard/clubhub/internal/domainerr"
	"github.com/jensholdgaard/clubhub/internal/event"
	"github.com/jensholdgaard/clubhub/internal/notify"
	"github.com/jensholdgaard/clubhub/internal/roster"
	"github.com/jensholdgaard/clubhub/internal/store"
)

var (
	ErrNotOrganizer       = domainerr.Forbidden("not_match_organizer", "only an admin or a manager of the sport may run matches")
	ErrNotCricket         = domainerr.Precondition("not_cricket", "match management is only available for cricket")
	ErrTeamNotInMatch     = domainerr.Precondition("team_not_in_match", "team is not playing this match")
	ErrTeamNotRegistered  = domainerr.Precondition("team_not_registered", "team is not registered for the tournament")
	ErrMatchNotScheduled  = domainerr.Conflict("match_not_scheduled", "match has already started or finished")
	ErrMatchNotInProgress = domainerr.Conflict("match_not_in_progress", "match is not in progress")
	ErrMatchFinished      = domainerr.Conflict("match_finished", "match is already finished")
	ErrInningsSwitched    = domainerr.Conflict("innings_already_switched", "the second innings is already under way")
	ErrNotOnRoster        = domainerr.Precondition("not_on_roster", "player is not on the team's active roster")
	ErrSameBatsman        = domainerr.Precondition("same_batsman", "batsmen must be different")
	ErrStrikerNotBatting  = domainerr.Precondition("striker_not_batting", "striker must be one of the two batsmen")
	ErrAlreadyOut         = domainerr.Precondition("batsman_out", "batsman has already been dismissed")
	ErrPlayersNotSet      = domainerr.Precondition("players_not_set", "batsman and bowler must be set")
	ErrNoStriker          = domainerr.Precondition("no_striker", "no batsman on strike")
	ErrInvalidRuns        = domainerr.Precondition("invalid_runs", "runs must be between 0 and 6")
)

// Publisher receives live match updates after they commit.
type Publisher interface {
	Publish(room, typ string, payload any)
}

// Room returns the live room a match publishes to.
func Room(matchID string) string { return "match:" + matchID }

// Engine drives cricket matches.
type Engine struct {
	store    *store.Store
	notifier *notify.Notifier
	pub      Publisher
	logger   *slog.Logger
	tracer   trace.Tracer
	balls    metric.Int64Counter
	clk      clock.Clock
	locks    *matchLocks
}

// NewEngine returns a new Engine. pub may be nil.
func NewEngine(st *store.Store, notifier *notify.Notifier, pub Publisher, logger *slog.Logger, tp trace.TracerProvider, mp metric.MeterProvider, clk clock.Clock) (*Engine, error) {
	balls, err := mp.Meter("github.com/jensholdgaard/clubhub/internal/cricket").Int64Counter(
		"clubhub.cricket.balls",
		metric.WithDescription("Deliveries recorded, by outcome."),
	)
	if err != nil {
		return nil, fmt.Errorf("creating balls counter: %w", err)
	}
	return &Engine{
		store:    st,
		notifier: notifier,
		pub:      pub,
		logger:   logger,
		tracer:   tp.Tracer("github.com/jensholdgaard/clubhub/internal/cricket"),
		balls:    balls,
		clk:      clk,
		locks:    newMatchLocks(),
	}, nil
}

// play is the locked view of a match inside a transaction.
type play struct {
	tx         *store.Repositories
	match      *store.Match
	state      *store.CricketMatchState
	tournament *store.Tournament
	msgs       []notify.Message
}

// update serializes on matchID, loads the match, checks that actor may run
// it and, when needState is set, loads its live state, then runs fn in one
// transaction. The scorecard of
// the committed state is published under typ.
func (e *Engine) update(ctx context.Context, actor authz.Actor, matchID, typ string, needState bool, fn func(ctx context.Context, p *play) error) (*Scorecard, error) {
	unlock := e.locks.lock(matchID)
	defer unlock()

	var card *Scorecard
	var msgs []notify.Message
	err := e.store.InTx(ctx, func(ctx context.Context, tx *store.Repositories) error {
		p := &play{tx: tx}
		var err error
		if p.match, err = tx.Matches.Get(ctx, matchID); err != nil {
			return fmt.Errorf("looking up match: %w", err)
		}
		if p.tournament, err = tx.Tournaments.Get(ctx, p.match.TournamentID); err != nil {
			return fmt.Errorf("looking up tournament: %w", err)
		}
		ok, err := authz.OrganizesSport(ctx, tx.Profiles, actor, p.tournament.SportID)
		if err != nil {
			return fmt.Errorf("checking match organizer: %w", err)
		}
		if !ok {
			return ErrNotOrganizer.With("match_id", matchID)
		}
		if needState {
			if p.match.Status != store.MatchInProgress {
				return ErrMatchNotInProgress.With("status", string(p.match.Status))
			}
			if p.state, err = tx.Matches.GetState(ctx, matchID); err != nil {
				return fmt.Errorf("looking up match state: %w", err)
			}
		}
		if err := fn(ctx, p); err != nil {
			return err
		}
		if p.state == nil {
			if p.state, err = tx.Matches.GetState(ctx, matchID); err != nil && !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("looking up match state: %w", err)
			}
		}
		if card, err = buildScorecard(ctx, tx, p.match, p.state); err != nil {
			return err
		}
		e.notifier.Record(ctx, tx.Notifications, p.msgs...)
		msgs = p.msgs
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.notifier.Deliver(ctx, msgs...)
	if e.pub != nil {
		e.pub.Publish(Room(matchID), typ, card)
	}
	return card, nil
}

func (e *Engine) onRoster(ctx context.Context, p *play, teamID, playerID string) error {
	ok, err := roster.OnActiveRoster(ctx, p.tx.Memberships, teamID, playerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotOnRoster.With("player_id", playerID).With("team_id", teamID)
	}
	return nil
}

func (e *Engine) record(ctx context.Context, p *play, typ event.Type, data any) {
	event.Record(ctx, p.tx.Events, e.logger, event.New(p.match.ID, typ, p.state.TotalBallsBowled, data))
}

// Start tosses and opens a scheduled match on behalf of an organizer. Every roster member of both
// teams gets a zeroed stats row and both teams get a points row.
func (e *Engine) Start(ctx context.Context, actor authz.Actor, matchID, tossWinnerID, battingFirstID string) (*Scorecard, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Start",
		trace.WithAttributes(
			attribute.String("match_id", matchID),
			attribute.String("toss_winner_id", tossWinnerID),
			attribute.String("batting_first_id", battingFirstID),
		),
	)
	defer span.End()

	card, err := e.update(ctx, actor, matchID, string(event.MatchStarted), false, func(ctx context.Context, p *play) error {
		m := p.match
		sport, err := p.tx.Sports.GetByID(ctx, p.tournament.SportID)
		if err != nil {
			return fmt.Errorf("looking up sport: %w", err)
		}
		if !strings.EqualFold(sport.Name, store.CricketSport) {
			return ErrNotCricket.With("sport", sport.Name)
		}
		if m.Status != store.MatchScheduled {
			return ErrMatchNotScheduled.With("status", string(m.Status))
		}
		for _, id := range []string{tossWinnerID, battingFirstID} {
			if id != m.Team1ID && id != m.Team2ID {
				return ErrTeamNotInMatch.With("team_id", id)
			}
		}
		for _, id := range []string{m.Team1ID, m.Team2ID} {
			ok, err := p.tx.Tournaments.HasTeam(ctx, m.TournamentID, id)
			if err != nil {
				return fmt.Errorf("checking tournament teams: %w", err)
			}
			if !ok {
				return ErrTeamNotRegistered.With("team_id", id)
			}
		}

		bowling := m.Team2ID
		if battingFirstID == m.Team2ID {
			bowling = m.Team1ID
		}
		p.state = &store.CricketMatchState{
			MatchID:        m.ID,
			TossWinnerID:   tossWinnerID,
			BattingFirstID: battingFirstID,
			BattingTeamID:  battingFirstID,
			BowlingTeamID:  bowling,
			Innings:        1,
		}
		if err := p.tx.Matches.SaveState(ctx, p.state); err != nil {
			return fmt.Errorf("saving match state: %w", err)
		}

		for _, teamID := range []string{m.Team1ID, m.Team2ID} {
			if err := e.seedStats(ctx, p, teamID); err != nil {
				return err
			}
			if _, err := p.tx.Tournaments.EnsurePoints(ctx, m.TournamentID, teamID); err != nil {
				return fmt.Errorf("ensuring points row: %w", err)
			}
		}

		m.Status = store.MatchInProgress
		if err := p.tx.Matches.Update(ctx, m); err != nil {
			return fmt.Errorf("updating match: %w", err)
		}
		e.record(ctx, p, event.MatchStarted, map[string]string{
			"toss_winner_id":   tossWinnerID,
			"batting_first_id": battingFirstID,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("starting match: %w", err)
	}

	e.logger.InfoContext(ctx, "match started",
		slog.String("match_id", matchID),
		slog.String("batting_first_id", battingFirstID),
	)
	return card, nil
}

// seedStats creates zeroed stats rows for the team's active roster, or for
// every profile on the team when none is active.
func (e *Engine) seedStats(ctx context.Context, p *play, teamID string) error {
	members, err := roster.ActiveRoster(ctx, p.tx.Memberships, teamID)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		if members, err = p.tx.Memberships.ListByTeam(ctx, teamID); err != nil {
			return fmt.Errorf("listing team %s: %w", teamID, err)
		}
		e.logger.WarnContext(ctx, "no active players on team, seeding every profile",
			slog.String("team_id", teamID),
			slog.Int("profiles", len(members)),
		)
	}
	for _, psp := range members {
		if err := p.tx.Matches.EnsureStats(ctx, &store.MatchPlayerStats{
			MatchID:  p.match.ID,
			PlayerID: psp.PlayerID,
			TeamID:   teamID,
		}); err != nil {
			return fmt.Errorf("seeding stats for %s: %w", psp.PlayerID, err)
		}
	}
	return nil
}

// stats returns the player's row for this match, creating it on first use.
func (e *Engine) stats(ctx context.Context, p *play, playerID, teamID string) (*store.MatchPlayerStats, error) {
	if err := p.tx.Matches.EnsureStats(ctx, &store.MatchPlayerStats{
		MatchID:  p.match.ID,
		PlayerID: playerID,
		TeamID:   teamID,
	}); err != nil {
		return nil, fmt.Errorf("ensuring stats for %s: %w", playerID, err)
	}
	s, err := p.tx.Matches.GetStats(ctx, p.match.ID, playerID)
	if err != nil {
		return nil, fmt.Errorf("loading stats for %s: %w", playerID, err)
	}
	return s, nil
}

// State returns the live state of a started match.
func (e *Engine) State(ctx context.Context, matchID string) (*store.CricketMatchState, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.State",
		trace.WithAttributes(attribute.String("match_id", matchID)),
	)
	defer span.End()

	s, err := e.store.Matches.GetState(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("getting match state: %w", err)
	}
	return s, nil
}
