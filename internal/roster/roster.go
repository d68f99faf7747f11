// Package roster enforces that a player belongs to at most one team per
// sport, and answers who is on a team.
package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/clubhub/internal/authz"
	"github.com/jensholdgaard/clubhub/internal/domainerr"
	"github.com/jensholdgaard/clubhub/internal/store"
)

var (
	ErrAlreadyInTeam = domainerr.Precondition("already_in_team", "player already belongs to a team in this sport")
	ErrSportMismatch = domainerr.Precondition("sport_mismatch", "team and profile are in different sports")
	ErrNotAllowed    = domainerr.Forbidden("roster_not_allowed", "only the sport's manager or the team's coach may change this roster")
)

// Assign puts profile on team. Both the profile itself and every other
// active profile of the player in the sport are checked, and the error
// names the team the player is already on.
func Assign(ctx context.Context, tx *store.Repositories, profile *store.PlayerSportProfile, team *store.Team) error {
	if profile.SportID != team.SportID {
		return ErrSportMismatch.With("team_id", team.ID)
	}
	fresh, err := tx.Memberships.Get(ctx, profile.ID)
	if err != nil {
		return fmt.Errorf("locking sport profile: %w", err)
	}
	if fresh.TeamID != nil && *fresh.TeamID != team.ID {
		return conflict(ctx, tx, fresh.PlayerID, *fresh.TeamID)
	}
	others, err := tx.Memberships.ListTeamed(ctx, fresh.PlayerID, fresh.SportID, fresh.ID)
	if err != nil {
		return fmt.Errorf("checking other memberships: %w", err)
	}
	for _, o := range others {
		if *o.TeamID != team.ID {
			return conflict(ctx, tx, fresh.PlayerID, *o.TeamID)
		}
	}

	fresh.TeamID = &team.ID
	if err := tx.Memberships.Update(ctx, fresh); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return ErrAlreadyInTeam.With("player_id", fresh.PlayerID)
		}
		return fmt.Errorf("assigning team: %w", err)
	}
	*profile = *fresh
	return nil
}

func conflict(ctx context.Context, tx *store.Repositories, playerID, teamID string) error {
	name := teamID
	if t, err := tx.Teams.Get(ctx, teamID); err == nil {
		name = t.Name
	}
	return domainerr.Precondition(ErrAlreadyInTeam.Code, "player %s is already in team %q", playerID, name).
		With("team_id", teamID)
}

// Release takes profile off its team.
func Release(ctx context.Context, tx *store.Repositories, profile *store.PlayerSportProfile) error {
	if profile.TeamID == nil {
		return nil
	}
	profile.TeamID = nil
	if err := tx.Memberships.Update(ctx, profile); err != nil {
		return fmt.Errorf("releasing team: %w", err)
	}
	return nil
}

// ActiveRoster returns the active profiles on a team.
func ActiveRoster(ctx context.Context, repo store.MembershipRepository, teamID string) ([]store.PlayerSportProfile, error) {
	all, err := repo.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("listing team %s: %w", teamID, err)
	}
	active := all[:0]
	for _, p := range all {
		if p.IsActive {
			active = append(active, p)
		}
	}
	return active, nil
}

// OnActiveRoster reports whether playerID is on the team's active roster.
func OnActiveRoster(ctx context.Context, repo store.MembershipRepository, teamID, playerID string) (bool, error) {
	members, err := ActiveRoster(ctx, repo, teamID)
	if err != nil {
		return false, err
	}
	for _, p := range members {
		if p.PlayerID == playerID {
			return true, nil
		}
	}
	return false, nil
}

// Manager changes rosters on behalf of managers and coaches.
type Manager struct {
	store  *store.Store
	logger *slog.Logger
	tracer trace.Tracer
}

// NewManager returns a new roster Manager.
func NewManager(st *store.Store, logger *slog.Logger, tp trace.TracerProvider) *Manager {
	return &Manager{
		store:  st,
		logger: logger,
		tracer: tp.Tracer("github.com/jensholdgaard/clubhub/internal/roster"),
	}
}

// SetTeam places a sport profile on teamID, or releases it when teamID is
// empty. The actor must manage the sport or coach the affected team.
func (m *Manager) SetTeam(ctx context.Context, actor authz.Actor, profileID, teamID string) (*store.PlayerSportProfile, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.SetTeam",
		trace.WithAttributes(
			attribute.String("profile_id", profileID),
			attribute.String("team_id", teamID),
		),
	)
	defer span.End()

	var psp *store.PlayerSportProfile
	err := m.store.InTx(ctx, func(ctx context.Context, tx *store.Repositories) error {
		var err error
		psp, err = tx.Memberships.Get(ctx, profileID)
		if err != nil {
			return fmt.Errorf("looking up sport profile: %w", err)
		}

		affected := teamID
		if affected == "" && psp.TeamID != nil {
			affected = *psp.TeamID
		}
		var team *store.Team
		if affected != "" {
			team, err = tx.Teams.Get(ctx, affected)
			if err != nil {
				return fmt.Errorf("looking up team: %w", err)
			}
		}
		ok, err := mayEdit(ctx, tx, actor, psp.SportID, team)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotAllowed
		}

		if teamID == "" {
			return Release(ctx, tx, psp)
		}
		return Assign(ctx, tx, psp, team)
	})
	if err != nil {
		return nil, fmt.Errorf("setting team: %w", err)
	}

	m.logger.InfoContext(ctx, "roster updated",
		slog.String("profile_id", profileID),
		slog.String("team_id", teamID),
		slog.String("actor", actor.UserID),
	)
	return psp, nil
}

func mayEdit(ctx context.Context, tx *store.Repositories, actor authz.Actor, sportID string, team *store.Team) (bool, error) {
	deciders := authz.Parties{}
	if team != nil && team.CoachID != nil {
		deciders = append(deciders, authz.Party{Role: store.RoleCoach, ProfileID: *team.CoachID})
	}
	managers, err := tx.Profiles.ListManagersForSport(ctx, sportID)
	if err != nil {
		return false, fmt.Errorf("listing sport managers: %w", err)
	}
	for _, mgr := range managers {
		deciders = append(deciders, authz.Party{Role: store.RoleManager, ProfileID: mgr.ID})
	}
	return authz.CanDecide(actor, deciders), nil
}
