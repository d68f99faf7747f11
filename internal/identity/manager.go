// Package identity owns users, their single mutable role, and the
// role-specific profiles provisioned on every role change.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/clubhub/internal/authz"
	"github.com/jensholdgaard/clubhub/internal/clock"
	"github.com/jensholdgaard/clubhub/internal/domainerr"
	"github.com/jensholdgaard/clubhub/internal/event"
	"github.com/jensholdgaard/clubhub/internal/store"
)

var (
	ErrAdminRequired     = domainerr.Forbidden("admin_required", "only an admin may do this")
	ErrUsernameRequired  = domainerr.Precondition("username_required", "username is required")
	ErrManagerSportTaken = domainerr.Precondition("manager_sport_exists", "manager is already assigned to this sport")
)

// RegisterInput describes a new user.
type RegisterInput struct {
	Username  string
	Email     string
	DiscordID string
	// Role defaults to player.
	Role store.Role
	// SportIDs are the sports a new player joins.
	SportIDs []string
	// PrimarySportID is required when Role is coach.
	PrimarySportID string
}

// Manager handles registration, role changes and actor resolution.
type Manager struct {
	store  *store.Store
	logger *slog.Logger
	tracer trace.Tracer
	clk    clock.Clock
}

// NewManager returns a new identity Manager.
func NewManager(st *store.Store, logger *slog.Logger, tp trace.TracerProvider, clk clock.Clock) *Manager {
	return &Manager{
		store:  st,
		logger: logger,
		tracer: tp.Tracer("github.com/jensholdgaard/clubhub/internal/identity"),
		clk:    clk,
	}
}

// RegisterUser creates a user and provisions the profile of its role. A new
// player also gets an active sport profile for every requested sport.
func (m *Manager) RegisterUser(ctx context.Context, in RegisterInput) (*store.User, Profile, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.RegisterUser",
		trace.WithAttributes(
			attribute.String("username", in.Username),
			attribute.String("role", string(in.Role)),
		),
	)
	defer span.End()

	if strings.TrimSpace(in.Username) == "" {
		return nil, Profile{}, ErrUsernameRequired
	}
	if in.Role == "" {
		in.Role = store.RolePlayer
	}
	if !in.Role.Valid() {
		return nil, Profile{}, ErrInvalidRole.With("role", string(in.Role))
	}

	u := &store.User{Username: in.Username, Email: in.Email, Role: in.Role}
	if in.DiscordID != "" {
		u.DiscordID = &in.DiscordID
	}

	var profile Profile
	err := m.store.InTx(ctx, func(ctx context.Context, tx *store.Repositories) error {
		if err := tx.Users.Create(ctx, u); err != nil {
			return fmt.Errorf("creating user: %w", err)
		}
		var err error
		profile, err = ProvisionProfileForRole(ctx, tx, m.clk, u, in.Role, ProvisionOptions{PrimarySportID: in.PrimarySportID})
		if err != nil {
			return err
		}
		if in.Role == store.RolePlayer {
			for _, sportID := range in.SportIDs {
				if _, err := JoinSport(ctx, tx, profile.Player.ID, sportID); err != nil {
					return err
				}
			}
		}
		event.Record(ctx, tx.Events, m.logger, event.New(u.ID, event.UserRegistered, 1, event.RoleChangedData{
			UserID:  u.ID,
			NewRole: string(in.Role),
		}))
		return nil
	})
	if err != nil {
		return nil, Profile{}, fmt.Errorf("registering user: %w", err)
	}

	m.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", u.ID),
		slog.String("role", string(u.Role)),
		slog.String("code", profile.Code()),
	)
	return u, profile, nil
}

// JoinSport returns the player's profile for sport, creating an active one
// when absent.
func JoinSport(ctx context.Context, tx *store.Repositories, playerID, sportID string) (*store.PlayerSportProfile, error) {
	if _, err := tx.Sports.GetByID(ctx, sportID); err != nil {
		return nil, fmt.Errorf("looking up sport: %w", err)
	}
	psp, err := tx.Memberships.GetByPlayerSport(ctx, playerID, sportID)
	if err == nil {
		return psp, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("looking up sport profile: %w", err)
	}
	psp = &store.PlayerSportProfile{PlayerID: playerID, SportID: sportID, IsActive: true}
	if err := tx.Memberships.Create(ctx, psp); err != nil {
		return nil, fmt.Errorf("creating sport profile: %w", err)
	}
	return psp, nil
}

// ChangeRole moves a user to role. Changing to the current role is a no-op
// returning the current profile. Otherwise the change is audited, the
// previous role's profile is deactivated and the new one provisioned.
func (m *Manager) ChangeRole(ctx context.Context, actor authz.Actor, userID string, role store.Role, primarySportID string) (Profile, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.ChangeRole",
		trace.WithAttributes(
			attribute.String("user_id", userID),
			attribute.String("role", string(role)),
		),
	)
	defer span.End()

	if !actor.IsAdmin() {
		return Profile{}, ErrAdminRequired
	}
	if !role.Valid() {
		return Profile{}, ErrInvalidRole.With("role", string(role))
	}

	var (
		profile  Profile
		previous store.Role
	)
	err := m.store.InTx(ctx, func(ctx context.Context, tx *store.Repositories) error {
		u, err := tx.Users.GetByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("looking up user: %w", err)
		}
		previous = u.Role
		if u.Role == role {
			profile, err = ProvisionProfileForRole(ctx, tx, m.clk, u, role, ProvisionOptions{PrimarySportID: primarySportID})
			return err
		}

		if err := tx.Users.AppendRoleHistory(ctx, &store.RoleHistory{
			UserID:       u.ID,
			PreviousRole: u.Role,
			NewRole:      role,
			ChangedBy:    &actor.UserID,
			ChangedAt:    m.clk.Now(),
		}); err != nil {
			return fmt.Errorf("writing role history: %w", err)
		}
		if err := DeactivateProfile(ctx, tx.Profiles, u.ID, u.Role); err != nil {
			return err
		}
		if err := tx.Users.UpdateRole(ctx, u.ID, role); err != nil {
			return fmt.Errorf("updating role: %w", err)
		}
		u.Role = role
		profile, err = ProvisionProfileForRole(ctx, tx, m.clk, u, role, ProvisionOptions{
			PrimarySportID: primarySportID,
			ActorID:        &actor.UserID,
		})
		if err != nil {
			return err
		}
		event.Record(ctx, tx.Events, m.logger, event.New(u.ID, event.RoleChanged, 0, event.RoleChangedData{
			UserID:       u.ID,
			PreviousRole: string(previous),
			NewRole:      string(role),
			ChangedBy:    actor.UserID,
		}))
		return nil
	})
	if err != nil {
		return Profile{}, fmt.Errorf("changing role: %w", err)
	}

	if previous != role {
		m.logger.InfoContext(ctx, "role changed",
			slog.String("user_id", userID),
			slog.String("from", string(previous)),
			slog.String("to", string(role)),
		)
	}
	return profile, nil
}

// Profile returns the user's profile for its current role.
func (m *Manager) Profile(ctx context.Context, userID string) (Profile, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Profile")
	defer span.End()

	u, err := m.store.Users.GetByID(ctx, userID)
	if err != nil {
		return Profile{}, fmt.Errorf("looking up user: %w", err)
	}
	p, err := LookupProfile(ctx, m.store.Profiles, u.ID, u.Role)
	if errors.Is(err, store.ErrNotFound) {
		return Profile{}, ErrNoProfile.With("user_id", userID)
	}
	return p, err
}

// ResolveActor builds the actor for a user. The profile ID is only set when
// the user has an active profile for its role.
func (m *Manager) ResolveActor(ctx context.Context, userID string) (authz.Actor, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.ResolveActor")
	defer span.End()

	u, err := m.store.Users.GetByID(ctx, userID)
	if err != nil {
		return authz.Actor{}, fmt.Errorf("resolving actor: %w", err)
	}
	return m.actorFor(ctx, u)
}

// ResolveDiscordActor builds the actor for a linked Discord account.
func (m *Manager) ResolveDiscordActor(ctx context.Context, discordID string) (authz.Actor, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.ResolveDiscordActor")
	defer span.End()

	u, err := m.store.Users.GetByDiscordID(ctx, discordID)
	if err != nil {
		return authz.Actor{}, fmt.Errorf("resolving discord actor: %w", err)
	}
	return m.actorFor(ctx, u)
}

func (m *Manager) actorFor(ctx context.Context, u *store.User) (authz.Actor, error) {
	a := authz.Actor{UserID: u.ID, Role: u.Role}
	p, err := LookupProfile(ctx, m.store.Profiles, u.ID, u.Role)
	switch {
	case err == nil:
		if p.Active() {
			a.ProfileID = p.ID()
		}
	case !errors.Is(err, store.ErrNotFound):
		return authz.Actor{}, fmt.Errorf("looking up profile: %w", err)
	}
	return a, nil
}

// AssignManagerSport puts a manager in charge of a sport.
func (m *Manager) AssignManagerSport(ctx context.Context, actor authz.Actor, managerID, sportID string) error {
	ctx, span := m.tracer.Start(ctx, "Manager.AssignManagerSport",
		trace.WithAttributes(
			attribute.String("manager_id", managerID),
			attribute.String("sport_id", sportID),
		),
	)
	defer span.End()

	if !actor.IsAdmin() {
		return ErrAdminRequired
	}
	err := m.store.InTx(ctx, func(ctx context.Context, tx *store.Repositories) error {
		if _, err := tx.Profiles.GetManager(ctx, managerID); err != nil {
			return fmt.Errorf("looking up manager: %w", err)
		}
		if _, err := tx.Sports.GetByID(ctx, sportID); err != nil {
			return fmt.Errorf("looking up sport: %w", err)
		}
		err := tx.Profiles.AssignSport(ctx, &store.ManagerSport{ManagerID: managerID, SportID: sportID, AssignedBy: &actor.UserID})
		if errors.Is(err, store.ErrDuplicate) {
			return ErrManagerSportTaken
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("assigning manager sport: %w", err)
	}
	m.logger.InfoContext(ctx, "manager assigned to sport",
		slog.String("manager_id", managerID),
		slog.String("sport_id", sportID),
	)
	return nil
}

// RemoveManagerSport takes a sport away from a manager.
func (m *Manager) RemoveManagerSport(ctx context.Context, actor authz.Actor, managerID, sportID string) error {
	ctx, span := m.tracer.Start(ctx, "Manager.RemoveManagerSport",
		trace.WithAttributes(
			attribute.String("manager_id", managerID),
			attribute.String("sport_id", sportID),
		),
	)
	defer span.End()

	if !actor.IsAdmin() {
		return ErrAdminRequired
	}
	if err := m.store.Profiles.RemoveSport(ctx, managerID, sportID); err != nil {
		return fmt.Errorf("removing manager sport: %w", err)
	}
	return nil
}
