package identity_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jensholdgaard/clubhub/internal/authz"
	"github.com/jensholdgaard/clubhub/internal/clubtest"
	"github.com/jensholdgaard/clubhub/internal/domainerr"
	"github.com/jensholdgaard/clubhub/internal/identity"
	"github.com/jensholdgaard/clubhub/internal/store"
)

type fakeSequencer struct {
	max    string
	locked []string
}

func (f *fakeSequencer) LockSequence(_ context.Context, prefix string) error {
	f.locked = append(f.locked, prefix)
	return nil
}

func (f *fakeSequencer) MaxCode(context.Context, string) (string, error) { return f.max, nil }

func TestNextCode(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		letter  rune
		max     string
		want    string
		wantErr error
	}{
		{name: "first of the year", letter: identity.PlayerLetter, want: "P2500001"},
		{name: "continues from max", letter: identity.PlayerLetter, max: "P2500041", want: "P2500042"},
		{name: "coach prefix", letter: identity.CoachLetter, max: "C2500009", want: "C2500010"},
		{name: "last code", letter: identity.PlayerLetter, max: "P2599998", want: "P2599999"},
		{name: "exhausted", letter: identity.PlayerLetter, max: "P2599999", wantErr: domainerr.ErrSequenceExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq := &fakeSequencer{max: tt.max}
			got, err := identity.NextCode(context.Background(), seq, tt.letter, now)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NextCode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NextCode() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("NextCode() = %q, want %q", got, tt.want)
			}
			if len(seq.locked) != 1 || seq.locked[0] != got[:3] {
				t.Errorf("locked = %v, want [%s]", seq.locked, got[:3])
			}
		})
	}
}

func TestRegisterUser_Scenario(t *testing.T) {
	c := clubtest.New(t)
	cricket := c.Sport(t, store.CricketSport)

	_, player := c.Player(t, "alice", cricket.ID)

	if player.Code != "P2500001" {
		t.Errorf("Code = %q, want P2500001", player.Code)
	}
	psp := c.Membership(t, player.ID, cricket.ID)
	if !psp.IsActive {
		t.Error("sport profile should be active")
	}
	all, err := c.Store.Memberships.ListByPlayer(context.Background(), player.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("sport profiles = %d, want 1", len(all))
	}
}

func TestRegisterUser_Validation(t *testing.T) {
	c := clubtest.New(t)

	tests := []struct {
		name    string
		in      identity.RegisterInput
		wantErr error
	}{
		{name: "missing username", in: identity.RegisterInput{}, wantErr: identity.ErrUsernameRequired},
		{name: "bad role", in: identity.RegisterInput{Username: "x", Role: "owner"}, wantErr: identity.ErrInvalidRole},
		{name: "coach without sport", in: identity.RegisterInput{Username: "y", Role: store.RoleCoach}, wantErr: identity.ErrPrimarySportRequired},
		{name: "unknown sport", in: identity.RegisterInput{Username: "z", SportIDs: []string{"nope"}}, wantErr: store.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := c.Identity.RegisterUser(context.Background(), tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("RegisterUser() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	// Nothing from the failed registrations survives.
	code, err := c.Store.Profiles.MaxCode(context.Background(), "P25")
	if err != nil {
		t.Fatal(err)
	}
	if code != "" {
		t.Errorf("MaxCode = %q, want none", code)
	}
}

func TestRegisterUser_ConcurrentCodesAreContiguous(t *testing.T) {
	c := clubtest.New(t)
	const n = 25

	codes := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, p, err := c.Identity.RegisterUser(context.Background(), identity.RegisterInput{
				Username: fmt.Sprintf("player-%02d", i),
			})
			if err != nil {
				t.Errorf("RegisterUser(%d) error = %v", i, err)
				return
			}
			codes[i] = p.Code()
		}()
	}
	wg.Wait()

	sort.Strings(codes)
	for i, code := range codes {
		want := fmt.Sprintf("P25%05d", i+1)
		if code != want {
			t.Fatalf("codes[%d] = %q, want %q (all: %v)", i, code, want, codes)
		}
	}
}

func TestChangeRole(t *testing.T) {
	ctx := context.Background()
	c := clubtest.New(t)
	football := c.Sport(t, "Football")
	actor, player := c.Player(t, "bob", football.ID)

	if _, err := c.Identity.ChangeRole(ctx, actor, actor.UserID, store.RoleCoach, football.ID); !errors.Is(err, identity.ErrAdminRequired) {
		t.Fatalf("ChangeRole(non-admin) error = %v, want ErrAdminRequired", err)
	}

	profile, err := c.Identity.ChangeRole(ctx, c.Admin, actor.UserID, store.RoleCoach, football.ID)
	if err != nil {
		t.Fatalf("ChangeRole() error = %v", err)
	}
	if profile.Role != store.RoleCoach || profile.Coach.Code != "C2500001" {
		t.Errorf("profile = %+v", profile)
	}

	oldPlayer, err := c.Store.Profiles.GetPlayer(ctx, player.ID)
	if err != nil {
		t.Fatal(err)
	}
	if oldPlayer.IsActive {
		t.Error("stale player profile should be deactivated")
	}

	// Same role again: no new history, same profile.
	again, err := c.Identity.ChangeRole(ctx, c.Admin, actor.UserID, store.RoleCoach, football.ID)
	if err != nil {
		t.Fatalf("ChangeRole(same) error = %v", err)
	}
	if again.ID() != profile.ID() {
		t.Errorf("profile ID = %q, want %q", again.ID(), profile.ID())
	}
	history, err := c.Store.Users.ListRoleHistory(ctx, actor.UserID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Fatalf("history = %d rows, want 1", len(history))
	}
	if history[0].PreviousRole != store.RolePlayer || history[0].NewRole != store.RoleCoach {
		t.Errorf("history = %+v", history[0])
	}

	// Back to player reactivates the original profile and keeps its code.
	back, err := c.Identity.ChangeRole(ctx, c.Admin, actor.UserID, store.RolePlayer, "")
	if err != nil {
		t.Fatalf("ChangeRole(back) error = %v", err)
	}
	if back.ID() != player.ID || back.Code() != player.Code || !back.Active() {
		t.Errorf("profile = %+v, want reactivated %s", back.Player, player.ID)
	}
}

// Random role walks never leave more than one active profile, and the
// active one always matches the user's role.
func TestChangeRole_SingleActiveProfile(t *testing.T) {
	roles := []store.Role{store.RolePlayer, store.RoleCoach, store.RoleManager, store.RoleAdmin}

	tests := []struct {
		name  string
		seed  uint64
		steps int
	}{
		{name: "seed 1", seed: 1, steps: 40},
		{name: "seed 7", seed: 7, steps: 40},
		{name: "seed 2025", seed: 2025, steps: 60},
		{name: "seed 90210", seed: 90210, steps: 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			c := clubtest.New(t)
			cricket := c.Sport(t, store.CricketSport)
			actor, _ := c.Player(t, "walker", cricket.ID)
			rng := rand.New(rand.NewPCG(tt.seed, tt.seed))

			for i := range tt.steps {
				role := roles[rng.IntN(len(roles))]
				if _, err := c.Identity.ChangeRole(ctx, c.Admin, actor.UserID, role, cricket.ID); err != nil {
					t.Fatalf("step %d ChangeRole(%s) error = %v", i, role, err)
				}

				u, err := c.Store.Users.GetByID(ctx, actor.UserID)
				if err != nil {
					t.Fatal(err)
				}
				if u.Role != role {
					t.Fatalf("step %d: user role = %s, want %s", i, u.Role, role)
				}

				active := 0
				for _, r := range roles {
					p, err := identity.LookupProfile(ctx, c.Store.Profiles, actor.UserID, r)
					if errors.Is(err, store.ErrNotFound) {
						continue
					}
					if err != nil {
						t.Fatal(err)
					}
					if p.Active() {
						active++
						if r != role {
							t.Fatalf("step %d: active %s profile while role is %s", i, r, role)
						}
					}
				}
				if active != 1 {
					t.Fatalf("step %d (%s): %d active profiles, want 1", i, role, active)
				}
			}
		})
	}
}

func TestResolveActor(t *testing.T) {
	ctx := context.Background()
	c := clubtest.New(t)
	actor, mgr := c.Manager(t, "mia")

	if actor.Role != store.RoleManager || actor.ProfileID != mgr.ID {
		t.Errorf("actor = %+v, want manager %s", actor, mgr.ID)
	}

	discordID := "42"
	u := &store.User{Username: "linked", Role: store.RoleAdmin, DiscordID: &discordID}
	if err := c.Store.Users.Create(ctx, u); err != nil {
		t.Fatal(err)
	}
	got, err := c.Identity.ResolveDiscordActor(ctx, discordID)
	if err != nil {
		t.Fatalf("ResolveDiscordActor() error = %v", err)
	}
	if got.UserID != u.ID || got.ProfileID != "" || !got.IsAdmin() {
		t.Errorf("actor = %+v", got)
	}

	if _, err := c.Identity.Profile(ctx, u.ID); !errors.Is(err, identity.ErrNoProfile) {
		t.Errorf("Profile() error = %v, want ErrNoProfile", err)
	}
	if _, err := c.Identity.ResolveActor(ctx, "missing"); !errors.Is(err, domainerr.ErrNotFound) {
		t.Errorf("ResolveActor(missing) error = %v, want not found", err)
	}
}

func TestManagerSports(t *testing.T) {
	ctx := context.Background()
	c := clubtest.New(t)
	tennis := c.Sport(t, "Tennis")
	actor, mgr := c.Manager(t, "mo")

	assigned, err := c.Store.Profiles.IsAssigned(ctx, mgr.ID, tennis.ID)
	if err != nil || !assigned {
		t.Fatalf("new manager should oversee every sport: %v, %v", assigned, err)
	}

	tests := []struct {
		name    string
		actor   authz.Actor
		run     func(authz.Actor) error
		wantErr error
	}{
		{
			name:    "non-admin",
			actor:   actor,
			run:     func(a authz.Actor) error { return c.Identity.RemoveManagerSport(ctx, a, mgr.ID, tennis.ID) },
			wantErr: identity.ErrAdminRequired,
		},
		{
			name:    "duplicate assignment",
			actor:   c.Admin,
			run:     func(a authz.Actor) error { return c.Identity.AssignManagerSport(ctx, a, mgr.ID, tennis.ID) },
			wantErr: identity.ErrManagerSportTaken,
		},
		{
			name:  "remove",
			actor: c.Admin,
			run:   func(a authz.Actor) error { return c.Identity.RemoveManagerSport(ctx, a, mgr.ID, tennis.ID) },
		},
		{
			name:    "remove again",
			actor:   c.Admin,
			run:     func(a authz.Actor) error { return c.Identity.RemoveManagerSport(ctx, a, mgr.ID, tennis.ID) },
			wantErr: store.ErrNotFound,
		},
		{
			name:  "assign back",
			actor: c.Admin,
			run:   func(a authz.Actor) error { return c.Identity.AssignManagerSport(ctx, a, mgr.ID, tennis.ID) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(tt.actor)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
