package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jensholdgaard/clubhub/internal/clock"
	"github.com/jensholdgaard/clubhub/internal/domainerr"
	"github.com/jensholdgaard/clubhub/internal/store"
)

var (
	ErrPrimarySportRequired = domainerr.Precondition("primary_sport_required", "a coach needs a primary sport")
	ErrInvalidRole          = domainerr.Precondition("invalid_role", "unknown role")
	ErrNoProfile            = domainerr.NotFound("profile_not_found", "user has no profile for its role")
)

// Profile is the role-specific record of a user. Exactly the field named by
// Role is set.
type Profile struct {
	Role    store.Role
	Player  *store.Player
	Coach   *store.Coach
	Manager *store.Manager
	Admin   *store.Admin
}

// ID returns the profile's ID.
func (p Profile) ID() string {
	switch p.Role {
	case store.RolePlayer:
		return p.Player.ID
	case store.RoleCoach:
		return p.Coach.ID
	case store.RoleManager:
		return p.Manager.ID
	case store.RoleAdmin:
		return p.Admin.ID
	}
	return ""
}

// Active reports whether the profile is active.
func (p Profile) Active() bool {
	switch p.Role {
	case store.RolePlayer:
		return p.Player.IsActive
	case store.RoleCoach:
		return p.Coach.IsActive
	case store.RoleManager:
		return p.Manager.IsActive
	case store.RoleAdmin:
		return p.Admin.IsActive
	}
	return false
}

// Code returns the external code of player and coach profiles, or "".
func (p Profile) Code() string {
	switch p.Role {
	case store.RolePlayer:
		return p.Player.Code
	case store.RoleCoach:
		return p.Coach.Code
	}
	return ""
}

// ProvisionOptions carries the role-specific inputs of provisioning.
type ProvisionOptions struct {
	// PrimarySportID is required for a new coach profile.
	PrimarySportID string
	// FromPlayerID records promotion provenance on a new coach profile.
	FromPlayerID *string
	// ActorID is the user that triggered provisioning, if any.
	ActorID *string
}

// LookupProfile returns the user's profile for role, active or not.
func LookupProfile(ctx context.Context, repo store.ProfileRepository, userID string, role store.Role) (Profile, error) {
	var err error
	p := Profile{Role: role}
	switch role {
	case store.RolePlayer:
		p.Player, err = repo.GetPlayerByUser(ctx, userID)
	case store.RoleCoach:
		p.Coach, err = repo.GetCoachByUser(ctx, userID)
	case store.RoleManager:
		p.Manager, err = repo.GetManagerByUser(ctx, userID)
	case store.RoleAdmin:
		p.Admin, err = repo.GetAdminByUser(ctx, userID)
	default:
		return Profile{}, ErrInvalidRole.With("role", string(role))
	}
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

// ProvisionProfileForRole returns the user's profile for role, creating it
// when absent and reactivating it when it exists. New player and coach
// profiles get the next code of the year.
func ProvisionProfileForRole(ctx context.Context, tx *store.Repositories, clk clock.Clock, user *store.User, role store.Role, opts ProvisionOptions) (Profile, error) {
	existing, err := LookupProfile(ctx, tx.Profiles, user.ID, role)
	switch {
	case err == nil:
		if err := setActive(ctx, tx.Profiles, existing, true); err != nil {
			return Profile{}, err
		}
		return LookupProfile(ctx, tx.Profiles, user.ID, role)
	case !errors.Is(err, store.ErrNotFound):
		return Profile{}, fmt.Errorf("looking up %s profile: %w", role, err)
	}

	now := clk.Now()
	switch role {
	case store.RolePlayer:
		code, err := NextCode(ctx, tx.Profiles, PlayerLetter, now)
		if err != nil {
			return Profile{}, err
		}
		p := &store.Player{UserID: user.ID, Code: code, IsActive: true}
		if err := tx.Profiles.CreatePlayer(ctx, p); err != nil {
			return Profile{}, fmt.Errorf("creating player: %w", err)
		}
		return Profile{Role: role, Player: p}, nil

	case store.RoleCoach:
		if opts.PrimarySportID == "" {
			return Profile{}, ErrPrimarySportRequired
		}
		if _, err := tx.Sports.GetByID(ctx, opts.PrimarySportID); err != nil {
			return Profile{}, fmt.Errorf("looking up primary sport: %w", err)
		}
		code, err := NextCode(ctx, tx.Profiles, CoachLetter, now)
		if err != nil {
			return Profile{}, err
		}
		c := &store.Coach{
			UserID:         user.ID,
			Code:           code,
			PrimarySportID: opts.PrimarySportID,
			FromPlayerID:   opts.FromPlayerID,
			IsActive:       true,
		}
		if err := tx.Profiles.CreateCoach(ctx, c); err != nil {
			return Profile{}, fmt.Errorf("creating coach: %w", err)
		}
		return Profile{Role: role, Coach: c}, nil

	case store.RoleManager:
		m := &store.Manager{UserID: user.ID, IsActive: true}
		if err := tx.Profiles.CreateManager(ctx, m); err != nil {
			return Profile{}, fmt.Errorf("creating manager: %w", err)
		}
		// New managers oversee every sport until an admin narrows it down.
		sports, err := tx.Sports.List(ctx)
		if err != nil {
			return Profile{}, fmt.Errorf("listing sports: %w", err)
		}
		for _, sp := range sports {
			ms := &store.ManagerSport{ManagerID: m.ID, SportID: sp.ID, AssignedBy: opts.ActorID}
			if err := tx.Profiles.AssignSport(ctx, ms); err != nil && !errors.Is(err, store.ErrDuplicate) {
				return Profile{}, fmt.Errorf("assigning sport %s: %w", sp.Name, err)
			}
		}
		return Profile{Role: role, Manager: m}, nil

	case store.RoleAdmin:
		a := &store.Admin{UserID: user.ID, IsActive: true}
		if err := tx.Profiles.CreateAdmin(ctx, a); err != nil {
			return Profile{}, fmt.Errorf("creating admin: %w", err)
		}
		return Profile{Role: role, Admin: a}, nil
	}
	return Profile{}, ErrInvalidRole.With("role", string(role))
}

// DeactivateProfile marks the user's profile for role inactive. A missing
// profile is not an error.
func DeactivateProfile(ctx context.Context, repo store.ProfileRepository, userID string, role store.Role) error {
	p, err := LookupProfile(ctx, repo, userID, role)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return setActive(ctx, repo, p, false)
}

func setActive(ctx context.Context, repo store.ProfileRepository, p Profile, active bool) error {
	if p.Active() == active {
		return nil
	}
	var err error
	switch p.Role {
	case store.RolePlayer:
		p.Player.IsActive = active
		err = repo.UpdatePlayer(ctx, p.Player)
	case store.RoleCoach:
		p.Coach.IsActive = active
		err = repo.UpdateCoach(ctx, p.Coach)
	case store.RoleManager:
		p.Manager.IsActive = active
		err = repo.UpdateManager(ctx, p.Manager)
	case store.RoleAdmin:
		p.Admin.IsActive = active
		err = repo.UpdateAdmin(ctx, p.Admin)
	}
	if err != nil {
		return fmt.Errorf("updating %s profile: %w", p.Role, err)
	}
	return nil
}
