// Package clubtest builds populated in-memory clubs for tests.
package clubtest

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jensholdgaard/clubhub/internal/authz"
	"github.com/jensholdgaard/clubhub/internal/clock"
	"github.com/jensholdgaard/clubhub/internal/identity"
	"github.com/jensholdgaard/clubhub/internal/store"
	"github.com/jensholdgaard/clubhub/internal/store/memstore"
)

// Now is the fixed time every Club's clock reports.
var Now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// Club is an in-memory store with an admin already registered.
type Club struct {
	Store    *store.Store
	Clock    clock.Clock
	Identity *identity.Manager
	Admin    authz.Actor
}

// New returns an empty club.
func New(t testing.TB) *Club {
	t.Helper()
	clk := clock.Mock{T: Now}
	st := memstore.New(clk).Store()
	c := &Club{
		Store:    st,
		Clock:    clk,
		Identity: identity.NewManager(st, slog.Default(), noop.NewTracerProvider(), clk),
	}
	u, _, err := c.Identity.RegisterUser(context.Background(), identity.RegisterInput{
		Username: "root",
		Role:     store.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("registering admin: %v", err)
	}
	c.Admin = c.Actor(t, u.ID)
	return c
}

// Sport returns the catalog sport with name.
func (c *Club) Sport(t testing.TB, name string) store.Sport {
	t.Helper()
	sp, err := c.Store.Sports.GetByName(context.Background(), name)
	if err != nil {
		t.Fatalf("sport %q: %v", name, err)
	}
	return *sp
}

// Actor resolves the actor of userID.
func (c *Club) Actor(t testing.TB, userID string) authz.Actor {
	t.Helper()
	a, err := c.Identity.ResolveActor(context.Background(), userID)
	if err != nil {
		t.Fatalf("resolving actor: %v", err)
	}
	return a
}

// Player registers a player in sportIDs.
func (c *Club) Player(t testing.TB, name string, sportIDs ...string) (authz.Actor, *store.Player) {
	t.Helper()
	u, p, err := c.Identity.RegisterUser(context.Background(), identity.RegisterInput{
		Username: name,
		Role:     store.RolePlayer,
		SportIDs: sportIDs,
	})
	if err != nil {
		t.Fatalf("registering player %q: %v", name, err)
	}
	return c.Actor(t, u.ID), p.Player
}

// Coach registers a coach whose primary sport is sportID.
func (c *Club) Coach(t testing.TB, name, sportID string) (authz.Actor, *store.Coach) {
	t.Helper()
	u, p, err := c.Identity.RegisterUser(context.Background(), identity.RegisterInput{
		Username:       name,
		Role:           store.RoleCoach,
		PrimarySportID: sportID,
	})
	if err != nil {
		t.Fatalf("registering coach %q: %v", name, err)
	}
	return c.Actor(t, u.ID), p.Coach
}

// Manager registers a manager, assigned to every sport.
func (c *Club) Manager(t testing.TB, name string) (authz.Actor, *store.Manager) {
	t.Helper()
	u, p, err := c.Identity.RegisterUser(context.Background(), identity.RegisterInput{
		Username: name,
		Role:     store.RoleManager,
	})
	if err != nil {
		t.Fatalf("registering manager %q: %v", name, err)
	}
	return c.Actor(t, u.ID), p.Manager
}

// Team creates a team. Empty managerID or coachID leave the slot unset.
func (c *Club) Team(t testing.TB, name, sportID, managerID, coachID string) *store.Team {
	t.Helper()
	team := &store.Team{Name: name, SportID: sportID}
	if managerID != "" {
		team.ManagerID = &managerID
	}
	if coachID != "" {
		team.CoachID = &coachID
	}
	if err := c.Store.Teams.Create(context.Background(), team); err != nil {
		t.Fatalf("creating team %q: %v", name, err)
	}
	return team
}

// Membership returns the player's profile in sport.
func (c *Club) Membership(t testing.TB, playerID, sportID string) *store.PlayerSportProfile {
	t.Helper()
	psp, err := c.Store.Memberships.GetByPlayerSport(context.Background(), playerID, sportID)
	if err != nil {
		t.Fatalf("membership %s/%s: %v", playerID, sportID, err)
	}
	return psp
}

// Enroll places a player on a team with coachID, bypassing the workflows.
func (c *Club) Enroll(t testing.TB, playerID string, team *store.Team) *store.PlayerSportProfile {
	t.Helper()
	ctx := context.Background()
	var psp *store.PlayerSportProfile
	err := c.Store.InTx(ctx, func(ctx context.Context, tx *store.Repositories) error {
		var err error
		psp, err = identity.JoinSport(ctx, tx, playerID, team.SportID)
		if err != nil {
			return err
		}
		psp.TeamID = &team.ID
		psp.CoachID = team.CoachID
		psp.IsActive = true
		return tx.Memberships.Update(ctx, psp)
	})
	if err != nil {
		t.Fatalf("enrolling %s in %s: %v", playerID, team.Name, err)
	}
	return psp
}
