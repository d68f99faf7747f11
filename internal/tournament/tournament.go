// Package tournament organizes cricket tournaments: registering teams,
// scheduling fixtures, ranking the points table and closing a tournament
// with its awards.
package tournament

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/clubhub/internal/authz"
	"github.com/jensholdgaard/clubhub/internal/clock"
	"github.com/jensholdgaard/clubhub/internal/domainerr"
	"github.com/jensholdgaard/clubhub/internal/notify"
	"github.com/jensholdgaard/clubhub/internal/store"
)

var (
	ErrNotOrganizer      = domainerr.Forbidden("not_organizer", "only an admin or a manager of the sport may organize tournaments")
	ErrNameRequired      = domainerr.Precondition("name_required", "tournament name is required")
	ErrSportMismatch     = domainerr.Precondition("sport_mismatch", "team plays a different sport")
	ErrTeamAlreadyAdded  = domainerr.Conflict("team_already_added", "team is already in the tournament")
	ErrNotCricket        = domainerr.Precondition("not_cricket", "tournament management is only available for cricket")
	ErrNotUpcoming       = domainerr.Conflict("tournament_not_upcoming", "tournament can only be started from upcoming")
	ErrNotOngoing        = domainerr.Conflict("tournament_not_ongoing", "tournament must be ongoing")
	ErrFinished          = domainerr.Conflict("tournament_finished", "tournament is already completed")
	ErrSameTeam          = domainerr.Precondition("same_team", "a team cannot play itself")
	ErrTeamNotRegistered = domainerr.Precondition("team_not_registered", "team is not registered for the tournament")
)

// Manager runs tournaments.
type Manager struct {
	store    *store.Store
	notifier *notify.Notifier
	logger   *slog.Logger
	tracer   trace.Tracer
	clk      clock.Clock
}

// NewManager returns a new tournament Manager.
func NewManager(st *store.Store, notifier *notify.Notifier, logger *slog.Logger, tp trace.TracerProvider, clk clock.Clock) *Manager {
	return &Manager{
		store:    st,
		notifier: notifier,
		logger:   logger,
		tracer:   tp.Tracer("github.com/jensholdgaard/clubhub/internal/tournament"),
		clk:      clk,
	}
}

func (m *Manager) requireOrganizer(ctx context.Context, tx *store.Repositories, actor authz.Actor, sportID string) error {
	ok, err := authz.OrganizesSport(ctx, tx.Profiles, actor, sportID)
	if err != nil {
		return fmt.Errorf("checking manager sport: %w", err)
	}
	if !ok {
		return ErrNotOrganizer.With("sport_id", sportID)
	}
	return nil
}

// Create opens an upcoming tournament in sportID.
func (m *Manager) Create(ctx context.Context, actor authz.Actor, name, sportID string, startDate time.Time) (*store.Tournament, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Create",
		trace.WithAttributes(
			attribute.String("name", name),
			attribute.String("sport_id", sportID),
		),
	)
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	t := &store.Tournament{Name: name, SportID: sportID, Status: store.TournamentUpcoming, StartDate: startDate}
	err := m.store.InTx(ctx, func(ctx context.Context, tx *store.Repositories) error {
		if _, err := tx.Sports.GetByID(ctx, sportID); err != nil {
			return fmt.Errorf("looking up sport: %w", err)
		}
		if err := m.requireOrganizer(ctx, tx, actor, sportID); err != nil {
			return err
		}
		return tx.Tournaments.Create(ctx, t)
	})
	if err != nil {
		return nil, fmt.Errorf("creating tournament: %w", err)
	}

	m.logger.InfoContext(ctx, "tournament created",
		slog.String("tournament_id", t.ID),
		slog.String("name", t.Name),
	)
	return t, nil
}

// AddTeam registers a team of the tournament's sport.
func (m *Manager) AddTeam(ctx context.Context, actor authz.Actor, tournamentID, teamID string) error {
	ctx, span := m.tracer.Start(ctx, "Manager.AddTeam",
		trace.WithAttributes(
			attribute.String("tournament_id", tournamentID),
			attribute.String("team_id", teamID),
		),
	)
	defer span.End()

	err := m.store.InTx(ctx, func(ctx context.Context, tx *store.Repositories) error {
		t, err := tx.Tournaments.Get(ctx, tournamentID)
		if err != nil {
			return fmt.Errorf("looking up tournament: %w", err)
		}
		if err := m.requireOrganizer(ctx, tx, actor, t.SportID); err != nil {
			return err
		}
		if t.Status == store.TournamentCompleted {
			return ErrFinished
		}
		team, err := tx.Teams.Get(ctx, teamID)
		if err != nil {
			return fmt.Errorf("looking up team: %w", err)
		}
		if team.SportID != t.SportID {
			return ErrSportMismatch.With("team", team.Name)
		}
		ok, err := tx.Tournaments.HasTeam(ctx, tournamentID, teamID)
		if err != nil {
			return fmt.Errorf("checking tournament teams: %w", err)
		}
		if ok {
			return ErrTeamAlreadyAdded.With("team", team.Name)
		}
		return tx.Tournaments.AddTeam(ctx, tournamentID, teamID)
	})
	if err != nil {
		return fmt.Errorf("adding team: %w", err)
	}

	m.logger.InfoContext(ctx, "team added to tournament",
		slog.String("tournament_id", tournamentID),
		slog.String("team_id", teamID),
	)
	return nil
}

// Start moves an upcoming cricket tournament to ongoing.
func (m *Manager) Start(ctx context.Context, actor authz.Actor, tournamentID string) (*store.Tournament, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Start",
		trace.WithAttributes(attribute.String("tournament_id", tournamentID)),
	)
	defer span.End()

	var t *store.Tournament
	err := m.store.InTx(ctx, func(ctx context.Context, tx *store.Repositories) error {
		var err error
		if t, err = tx.Tournaments.Get(ctx, tournamentID); err != nil {
			return fmt.Errorf("looking up tournament: %w", err)
		}
		if err := m.requireOrganizer(ctx, tx, actor, t.SportID); err != nil {
			return err
		}
		if t.Status != store.TournamentUpcoming {
			return ErrNotUpcoming.With("status", string(t.Status))
		}
		sport, err := tx.Sports.GetByID(ctx, t.SportID)
		if err != nil {
			return fmt.Errorf("looking up sport: %w", err)
		}
		if !strings.EqualFold(sport.Name, store.CricketSport) {
			return ErrNotCricket.With("sport", sport.Name)
		}
		t.Status = store.TournamentOngoing
		if t.StartDate.IsZero() {
			t.StartDate = m.clk.Now()
		}
		return tx.Tournaments.Update(ctx, t)
	})
	if err != nil {
		return nil, fmt.Errorf("starting tournament: %w", err)
	}

	m.logger.InfoContext(ctx, "tournament started", slog.String("tournament_id", tournamentID))
	return t, nil
}

// ScheduleMatch creates a fixture between two registered teams.
func (m *Manager) ScheduleMatch(ctx context.Context, actor authz.Actor, tournamentID, team1ID, team2ID string, at time.Time) (*store.Match, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.ScheduleMatch",
		trace.WithAttributes(
			attribute.String("tournament_id", tournamentID),
			attribute.String("team1_id", team1ID),
			attribute.String("team2_id", team2ID),
		),
	)
	defer span.End()

	if team1ID == team2ID {
		return nil, ErrSameTeam
	}

	match := &store.Match{
		TournamentID: tournamentID,
		Team1ID:      team1ID,
		Team2ID:      team2ID,
		Status:       store.MatchScheduled,
		ScheduledAt:  at,
	}
	err := m.store.InTx(ctx, func(ctx context.Context, tx *store.Repositories) error {
		t, err := tx.Tournaments.Get(ctx, tournamentID)
		if err != nil {
			return fmt.Errorf("looking up tournament: %w", err)
		}
		if err := m.requireOrganizer(ctx, tx, actor, t.SportID); err != nil {
			return err
		}
		if t.Status == store.TournamentCompleted {
			return ErrFinished
		}
		for _, id := range []string{team1ID, team2ID} {
			ok, err := tx.Tournaments.HasTeam(ctx, tournamentID, id)
			if err != nil {
				return fmt.Errorf("checking tournament teams: %w", err)
			}
			if !ok {
				return ErrTeamNotRegistered.With("team_id", id)
			}
		}
		return tx.Matches.Create(ctx, match)
	})
	if err != nil {
		return nil, fmt.Errorf("scheduling match: %w", err)
	}

	m.logger.InfoContext(ctx, "match scheduled",
		slog.String("tournament_id", tournamentID),
		slog.String("match_id", match.ID),
	)
	return match, nil
}

// Standing is a points table row with its team name.
type Standing struct {
	store.TournamentPoints
	TeamName string `json:"team_name"`
}

// PointsTable returns the standings, ranked by points then net run rate.
func (m *Manager) PointsTable(ctx context.Context, tournamentID string) ([]Standing, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.PointsTable",
		trace.WithAttributes(attribute.String("tournament_id", tournamentID)),
	)
	defer span.End()

	if _, err := m.store.Tournaments.Get(ctx, tournamentID); err != nil {
		return nil, fmt.Errorf("looking up tournament: %w", err)
	}
	points, err := m.store.Tournaments.ListPoints(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("listing points: %w", err)
	}
	rank(points)

	table := make([]Standing, 0, len(points))
	for _, p := range points {
		row := Standing{TournamentPoints: p}
		if team, err := m.store.Teams.Get(ctx, p.TeamID); err == nil {
			row.TeamName = team.Name
		}
		table = append(table, row)
	}
	return table, nil
}

// rank sorts points rows by points, then net run rate, both descending.
func rank(points []store.TournamentPoints) {
	slices.SortStableFunc(points, func(a, b store.TournamentPoints) int {
		if c := cmp.Compare(b.Points, a.Points); c != 0 {
			return c
		}
		return cmp.Compare(b.NetRunRate, a.NetRunRate)
	})
}
